package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	svc "github.com/jlpedu/enroll/internal/services"
)

type createBookingRequest struct {
	ChildID    uint `json:"child_id"`
	TestSlotID uint `json:"test_slot_id"`
}

// POST /api/bookings. The fee is always recomputed server-side from the
// child's grade; anything price-shaped in the request body is ignored.
func CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := svc.BookTestSlot(db.Conn(), notifier, svc.BookTestSlotInput{
		ParentID:   currentClaims(r).ParentID,
		ChildID:    req.ChildID,
		TestSlotID: req.TestSlotID,
	}, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/bookings (admin) — all bookings with their slot and child.
func ListBookings(w http.ResponseWriter, r *http.Request) {
	var bookings []models.Booking
	if err := db.Conn().Order("created_at desc").Find(&bookings).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// GET /api/bookings/mine
func ListMyBookings(w http.ResponseWriter, r *http.Request) {
	var bookings []models.Booking
	if err := db.Conn().Where("parent_id = ?", currentClaims(r).ParentID).
		Order("created_at desc").Find(&bookings).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

type paymentRequest struct {
	Paid bool `json:"paid"`
}

// PATCH /api/bookings/{id}/payment (admin)
func ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	booking, err := bookingByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := db.Conn().Model(booking).Update("paid", req.Paid).Error; err != nil {
		writeError(w, err)
		return
	}
	booking.Paid = req.Paid
	writeJSON(w, http.StatusOK, booking)
}

type moveBookingRequest struct {
	NewSlotID uint `json:"new_slot_id"`
}

// PATCH /api/bookings/{id}/slot — move to another test slot.
func MoveBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.NewSlotID == 0 {
		writeError(w, fmt.Errorf("%w: new_slot_id is required", svc.ErrValidation))
		return
	}

	booking, err := svc.MoveBooking(db.Conn(), id, req.NewSlotID, currentActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// DELETE /api/bookings/{id}
func DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := svc.DeleteBooking(db.Conn(), id, currentActor(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// GET /api/bookings/{id}/qr — PNG entry pass for the test.
func BookingQR(w http.ResponseWriter, r *http.Request) {
	booking, err := bookingByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := currentActor(r)
	if booking.ParentID != actor.ParentID && actor.Role == models.RoleParent {
		writeError(w, fmt.Errorf("%w: not your booking", svc.ErrForbidden))
		return
	}
	if len(booking.QRPNG) == 0 {
		writeError(w, fmt.Errorf("%w: no QR code for this booking", svc.ErrNotFound))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(booking.QRPNG)
}

func bookingIDParam(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid booking id", svc.ErrValidation)
	}
	return uint(id), nil
}

func bookingByParam(r *http.Request) (*models.Booking, error) {
	id, err := bookingIDParam(r)
	if err != nil {
		return nil, err
	}
	var booking models.Booking
	if err := db.Conn().First(&booking, id).Error; err != nil {
		return nil, fmt.Errorf("%w: booking", svc.ErrNotFound)
	}
	return &booking, nil
}
