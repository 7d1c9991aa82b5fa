package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	svc "github.com/jlpedu/enroll/internal/services"
)

// GET /api/priority-window — the active window, or an empty object when none
// is configured.
func GetPriorityWindow(w http.ResponseWriter, r *http.Request) {
	window, err := svc.LoadPriorityWindow(db.Conn())
	if err != nil {
		writeError(w, err)
		return
	}
	if window == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, window)
}

type priorityWindowRequest struct {
	Start string `json:"start"` // RFC 3339
	End   string `json:"end"`
}

// PUT /api/priority-window (admin) — upsert the singleton.
func SetPriorityWindow(w http.ResponseWriter, r *http.Request) {
	var req priorityWindowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid start", svc.ErrValidation))
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, fmt.Errorf("%w: invalid end", svc.ErrValidation))
		return
	}
	if !end.After(start) {
		writeError(w, fmt.Errorf("%w: end must be after start", svc.ErrValidation))
		return
	}

	var window models.PriorityWindow
	err = db.Conn().First(&window).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		window = models.PriorityWindow{Start: start, End: end}
		err = db.Conn().Create(&window).Error
	case err == nil:
		window.Start = start
		window.End = end
		err = db.Conn().Save(&window).Error
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}
