package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	svc "github.com/jlpedu/enroll/internal/services"
)

var hhmmRE = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

type testSlotRequest struct {
	Title     string `json:"title"`
	Date      string `json:"date"` // "2006-01-02"
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Campus    string `json:"campus"`
	TestGrade string `json:"test_grade"`
	GroupID   *uint  `json:"group_id"`
	Capacity  int    `json:"capacity"`
}

func (req *testSlotRequest) validate() (time.Time, error) {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return time.Time{}, fmt.Errorf("%w: title is required", svc.ErrValidation)
	case !hhmmRE.MatchString(req.StartTime) || !hhmmRE.MatchString(req.EndTime):
		return time.Time{}, fmt.Errorf("%w: times must be HH:MM", svc.ErrValidation)
	case req.StartTime >= req.EndTime:
		return time.Time{}, fmt.Errorf("%w: end time must be after start time", svc.ErrValidation)
	case req.Capacity < 1:
		return time.Time{}, fmt.Errorf("%w: capacity must be at least 1", svc.ErrValidation)
	case !validCampuses[req.Campus]:
		return time.Time{}, fmt.Errorf("%w: invalid campus", svc.ErrValidation)
	case !svc.ValidTestGrade(req.TestGrade):
		return time.Time{}, fmt.Errorf("%w: invalid test grade", svc.ErrValidation)
	}
	d, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date", svc.ErrValidation)
	}
	return d, nil
}

// POST /api/testslots (admin)
func CreateTestSlot(w http.ResponseWriter, r *http.Request) {
	var req testSlotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	slot := models.TestSlot{
		Title:     strings.TrimSpace(req.Title),
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Campus:    req.Campus,
		TestGrade: req.TestGrade,
		GroupID:   req.GroupID,
		Capacity:  req.Capacity,
		Status:    models.StatusAvailable,
	}
	if err := db.Conn().Create(&slot).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

type slotView struct {
	models.TestSlot
	AvailableSlots int `json:"available_slots"`
}

// GET /api/testslots?group=N — group-scoped listing. The group must be open
// for booking; attended parents pass the same fallback gate the allocator
// applies.
func ListTestSlots(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseUint(r.URL.Query().Get("group"), 10, 64)
	if err != nil || groupID == 0 {
		writeError(w, fmt.Errorf("%w: invalid group id", svc.ErrValidation))
		return
	}

	var group models.Group
	if err := db.Conn().First(&group, groupID).Error; err != nil {
		writeError(w, fmt.Errorf("%w: group", svc.ErrNotFound))
		return
	}
	now := time.Now()
	open := group.CanBook &&
		(group.StartDate == nil || !now.Before(*group.StartDate)) &&
		(group.EndDate == nil || !now.After(*group.EndDate))
	if !open {
		writeError(w, fmt.Errorf("%w: this group cannot book at the moment or is out of the booking period", svc.ErrForbidden))
		return
	}

	var slots []models.TestSlot
	if err := db.Conn().Where("group_id = ?", groupID).Order("date, start_time").Find(&slots).Error; err != nil {
		writeError(w, err)
		return
	}
	out := make([]slotView, len(slots))
	for i, s := range slots {
		out[i] = slotView{TestSlot: s, AvailableSlots: s.Capacity - s.BookedCount}
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/testslots/admin (admin) — unfiltered.
func ListTestSlotsAdmin(w http.ResponseWriter, r *http.Request) {
	var slots []models.TestSlot
	if err := db.Conn().Order("date, start_time").Find(&slots).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// GET /api/testslots/{id}
func GetTestSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := slotByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

type testSlotUpdate struct {
	Title     *string `json:"title"`
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Capacity  *int    `json:"capacity"`
	GroupID   *uint   `json:"group_id"`
}

// PATCH /api/testslots/{id} (admin). Capacity can grow or shrink, but never
// below current occupancy; status is recomputed, not client-set. The write
// itself goes through the versioned service update so a concurrent booking
// can never be overwritten by this handler's snapshot.
func UpdateTestSlot(w http.ResponseWriter, r *http.Request) {
	id, err := slotIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req testSlotUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var in svc.TestSlotUpdate
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		in.Title = &title
	}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid date", svc.ErrValidation))
			return
		}
		in.Date = &d
	}
	if req.StartTime != nil {
		if !hhmmRE.MatchString(*req.StartTime) {
			writeError(w, fmt.Errorf("%w: times must be HH:MM", svc.ErrValidation))
			return
		}
		in.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		if !hhmmRE.MatchString(*req.EndTime) {
			writeError(w, fmt.Errorf("%w: times must be HH:MM", svc.ErrValidation))
			return
		}
		in.EndTime = req.EndTime
	}
	in.GroupID = req.GroupID
	in.Capacity = req.Capacity

	slot, err := svc.UpdateTestSlot(db.Conn(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// DELETE /api/testslots/{id} (admin) — removes the slot and its bookings.
func DeleteTestSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := slotByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := svc.DeleteTestSlot(db.Conn(), slot.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": slot.ID})
}

func slotIDParam(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid slot id", svc.ErrValidation)
	}
	return uint(id), nil
}

func slotByParam(r *http.Request) (*models.TestSlot, error) {
	id, err := slotIDParam(r)
	if err != nil {
		return nil, err
	}
	var slot models.TestSlot
	if err := db.Conn().First(&slot, id).Error; err != nil {
		return nil, fmt.Errorf("%w: test slot", svc.ErrNotFound)
	}
	return &slot, nil
}
