package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	svc "github.com/jlpedu/enroll/internal/services"
)

type broadcastRequest struct {
	Message string   `json:"message"`
	Phones  []string `json:"phones"` // empty means every parent
}

// POST /api/sms/broadcast (admin). Fire-and-forget per recipient; one bad
// number never blocks the rest.
func BroadcastSMS(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, fmt.Errorf("%w: message is required", svc.ErrValidation))
		return
	}

	phones := req.Phones
	if len(phones) == 0 {
		if err := db.Conn().Model(&models.Parent{}).
			Where("role = ?", models.RoleParent).
			Pluck("phone", &phones).Error; err != nil {
			writeError(w, err)
			return
		}
	}

	sent, failed := 0, 0
	for _, raw := range phones {
		phone := svc.NormPhone(raw)
		if phone == "" {
			failed++
			continue
		}
		if err := notifier.Send(phone, req.Message); err != nil {
			log.Printf("sms: broadcast to %s failed: %v", phone, err)
			failed++
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "failed": failed})
}
