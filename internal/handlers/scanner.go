package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	svc "github.com/jlpedu/enroll/internal/services"
)

type scanRequest struct {
	ParentID uint `json:"parent_id"`
}

// PATCH /api/scanner/validate (admin) — called by the door scanner with the
// parent id decoded from the entry QR.
func ValidateAttendance(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ParentID == 0 {
		writeError(w, fmt.Errorf("%w: parent_id is required", svc.ErrValidation))
		return
	}
	if err := svc.ValidateAttendance(db.Conn(), req.ParentID, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"validated": req.ParentID})
}

// GET /api/users/me/qr — the parent's own entry credential.
func MyQR(w http.ResponseWriter, r *http.Request) {
	var parent models.Parent
	if err := db.Conn().First(&parent, currentClaims(r).ParentID).Error; err != nil {
		writeError(w, fmt.Errorf("%w: parent", svc.ErrNotFound))
		return
	}
	if len(parent.QRPNG) == 0 {
		writeError(w, fmt.Errorf("%w: no QR code issued yet", svc.ErrNotFound))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(parent.QRPNG)
}
