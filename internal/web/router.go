package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jlpedu/enroll/internal/handlers"
)

func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public
	r.Get("/healthz", handlers.Health)
	r.Post("/api/users/register", handlers.Register)
	r.Post("/api/users/login", handlers.Login)

	// Authenticated parents (and admins)
	r.Group(func(pr chi.Router) {
		pr.Use(handlers.RequireAuth)

		pr.Get("/api/users/me", handlers.Me)
		pr.Get("/api/users/me/qr", handlers.MyQR)

		pr.Post("/api/children", handlers.CreateChild)
		pr.Get("/api/children", handlers.ListMyChildren)
		pr.Patch("/api/children/{id}", handlers.UpdateChild)
		pr.Delete("/api/children/{id}", handlers.DeleteChild)

		pr.Get("/api/testslots", handlers.ListTestSlots)
		pr.Get("/api/testslots/{id}", handlers.GetTestSlot)

		pr.Post("/api/bookings", handlers.CreateBooking)
		pr.Get("/api/bookings/mine", handlers.ListMyBookings)
		pr.Patch("/api/bookings/{id}/slot", handlers.MoveBooking)
		pr.Delete("/api/bookings/{id}", handlers.DeleteBooking)
		pr.Get("/api/bookings/{id}/qr", handlers.BookingQR)

		pr.Get("/api/presentations/slots", handlers.ListPresentationSlots)
		pr.Post("/api/presentations/slots/{id}/attendees", handlers.BookPresentation)
		pr.Get("/api/presentations/mine", handlers.MyPresentationBookings)
		pr.Patch("/api/presentations/slots/{id}/attendees/{parentID}", handlers.MovePresentationBooking)
		pr.Delete("/api/presentations/slots/{id}/attendees/{parentID}", handlers.RemovePresentationAttendee)

		pr.Get("/api/priority-window", handlers.GetPriorityWindow)

		// Admin only
		pr.Group(func(ag chi.Router) {
			ag.Use(handlers.RequireAdmin)

			ag.Post("/api/groups", handlers.CreateGroup)
			ag.Get("/api/groups", handlers.ListGroups)
			ag.Patch("/api/groups/{id}", handlers.UpdateGroup)
			ag.Post("/api/groups/{id}/children", handlers.AssignChildren)
			ag.Get("/api/groups/{id}/children", handlers.ListGroupChildren)

			ag.Post("/api/testslots", handlers.CreateTestSlot)
			ag.Get("/api/testslots/admin", handlers.ListTestSlotsAdmin)
			ag.Patch("/api/testslots/{id}", handlers.UpdateTestSlot)
			ag.Delete("/api/testslots/{id}", handlers.DeleteTestSlot)

			ag.Get("/api/bookings", handlers.ListBookings)
			ag.Patch("/api/bookings/{id}/payment", handlers.ConfirmPayment)

			ag.Post("/api/presentations/slots", handlers.CreatePresentationSlot)
			ag.Delete("/api/presentations/slots/{id}", handlers.DeletePresentationSlot)
			ag.Get("/api/presentations/slots/{id}/attendees", handlers.ListPresentationAttendees)

			ag.Put("/api/priority-window", handlers.SetPriorityWindow)
			ag.Patch("/api/scanner/validate", handlers.ValidateAttendance)
			ag.Post("/api/sms/broadcast", handlers.BroadcastSMS)
		})
	})

	return r
}
