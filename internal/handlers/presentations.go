package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	svc "github.com/jlpedu/enroll/internal/services"
)

var validAgeGroups = map[string]bool{
	svc.AgeGroupKindergarten: true,
	svc.AgeGroupElementary:   true,
	svc.AgeGroupMiddle:       true,
}

type presentationSlotRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`       // "2006-01-02"
	StartTime   string `json:"start_time"` // RFC 3339
	EndTime     string `json:"end_time"`
	AgeGroup    string `json:"age_group"`
	Capacity    int    `json:"capacity"`
}

func (req *presentationSlotRequest) validate() (date, start, end time.Time, err error) {
	if strings.TrimSpace(req.Name) == "" {
		err = fmt.Errorf("%w: name is required", svc.ErrValidation)
		return
	}
	if !validAgeGroups[req.AgeGroup] {
		err = fmt.Errorf("%w: invalid age group", svc.ErrValidation)
		return
	}
	if req.Capacity < 1 {
		err = fmt.Errorf("%w: capacity must be at least 1", svc.ErrValidation)
		return
	}
	if date, err = time.Parse("2006-01-02", req.Date); err != nil {
		err = fmt.Errorf("%w: invalid date", svc.ErrValidation)
		return
	}
	if start, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
		err = fmt.Errorf("%w: invalid start_time", svc.ErrValidation)
		return
	}
	if end, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
		err = fmt.Errorf("%w: invalid end_time", svc.ErrValidation)
		return
	}
	if !end.After(start) {
		err = fmt.Errorf("%w: end_time must be after start_time", svc.ErrValidation)
	}
	return
}

// POST /api/presentations/slots (admin)
func CreatePresentationSlot(w http.ResponseWriter, r *http.Request) {
	var req presentationSlotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, start, end, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	slot := models.PresentationSlot{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		Date:        date,
		AgeGroup:    req.AgeGroup,
		StartTime:   start,
		EndTime:     end,
		Capacity:    req.Capacity,
		Status:      models.StatusAvailable,
	}
	if err := db.Conn().Create(&slot).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

// GET /api/presentations/slots — open to every authenticated parent.
func ListPresentationSlots(w http.ResponseWriter, r *http.Request) {
	q := db.Conn().Order("date, start_time")
	if ag := r.URL.Query().Get("age_group"); ag != "" {
		if !validAgeGroups[ag] {
			writeError(w, fmt.Errorf("%w: invalid age group", svc.ErrValidation))
			return
		}
		q = q.Where("age_group = ?", ag)
	}
	var slots []models.PresentationSlot
	if err := q.Find(&slots).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// DELETE /api/presentations/slots/{id} (admin) — slot and its attendees go
// together in one transaction.
func DeletePresentationSlot(w http.ResponseWriter, r *http.Request) {
	id, err := presentationSlotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := svc.DeletePresentationSlot(db.Conn(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// POST /api/presentations/slots/{id}/attendees — book the calling parent in.
func BookPresentation(w http.ResponseWriter, r *http.Request) {
	id, err := presentationSlotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := svc.BookPresentationSlot(db.Conn(), notifier, currentClaims(r).ParentID, id, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/presentations/slots/{id}/attendees (admin)
func ListPresentationAttendees(w http.ResponseWriter, r *http.Request) {
	id, err := presentationSlotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var bookings []models.PresentationBooking
	if err := db.Conn().Where("slot_id = ?", id).Order("booked_at").Find(&bookings).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// DELETE /api/presentations/slots/{id}/attendees/{parentID}
func RemovePresentationAttendee(w http.ResponseWriter, r *http.Request) {
	slotID, err := presentationSlotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	parentID, err := strconv.ParseUint(chi.URLParam(r, "parentID"), 10, 64)
	if err != nil || parentID == 0 {
		writeError(w, fmt.Errorf("%w: invalid parent id", svc.ErrValidation))
		return
	}
	if err := svc.RemovePresentationAttendee(db.Conn(), slotID, uint(parentID), currentActor(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": parentID})
}

type movePresentationRequest struct {
	NewSlotID uint `json:"new_slot_id"`
}

// PATCH /api/presentations/slots/{id}/attendees/{parentID} — move an attendee
// to another slot of the same age group.
func MovePresentationBooking(w http.ResponseWriter, r *http.Request) {
	oldSlotID, err := presentationSlotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	parentID, err := strconv.ParseUint(chi.URLParam(r, "parentID"), 10, 64)
	if err != nil || parentID == 0 {
		writeError(w, fmt.Errorf("%w: invalid parent id", svc.ErrValidation))
		return
	}
	var req movePresentationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.NewSlotID == 0 {
		writeError(w, fmt.Errorf("%w: new_slot_id is required", svc.ErrValidation))
		return
	}
	if err := svc.MovePresentationBooking(db.Conn(), uint(parentID), oldSlotID, req.NewSlotID, currentActor(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": parentID, "slot_id": req.NewSlotID})
}

// GET /api/presentations/mine — the calling parent's presentation bookings.
func MyPresentationBookings(w http.ResponseWriter, r *http.Request) {
	var bookings []models.PresentationBooking
	if err := db.Conn().Where("parent_id = ?", currentClaims(r).ParentID).
		Order("booked_at").Find(&bookings).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func presentationSlotIDParam(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid slot id", svc.ErrValidation)
	}
	return uint(id), nil
}
