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

type groupRequest struct {
	Name      string  `json:"name"`
	CanBook   *bool   `json:"can_book"`
	StartDate *string `json:"start_date"` // "2006-01-02T15:04"
	EndDate   *string `json:"end_date"`
}

func parseGroupDate(s string) (*time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q", svc.ErrValidation, s)
}

// POST /api/groups (admin)
func CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, fmt.Errorf("%w: name is required", svc.ErrValidation))
		return
	}

	group := models.Group{Name: strings.TrimSpace(req.Name)}
	if req.CanBook != nil {
		group.CanBook = *req.CanBook
	}
	var err error
	if req.StartDate != nil {
		if group.StartDate, err = parseGroupDate(*req.StartDate); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.EndDate != nil {
		if group.EndDate, err = parseGroupDate(*req.EndDate); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := db.Conn().Create(&group).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			writeError(w, fmt.Errorf("%w: a group with this name already exists", svc.ErrConflict))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// GET /api/groups (admin)
func ListGroups(w http.ResponseWriter, r *http.Request) {
	var groups []models.Group
	if err := db.Conn().Order("id").Find(&groups).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// PATCH /api/groups/{id} (admin) — toggle can_book and adjust the window.
func UpdateGroup(w http.ResponseWriter, r *http.Request) {
	group, err := groupByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) != "" {
		group.Name = strings.TrimSpace(req.Name)
	}
	if req.CanBook != nil {
		group.CanBook = *req.CanBook
	}
	if req.StartDate != nil {
		if group.StartDate, err = parseGroupDate(*req.StartDate); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.EndDate != nil {
		if group.EndDate, err = parseGroupDate(*req.EndDate); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := db.Conn().Save(group).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

type assignChildrenRequest struct {
	ChildIDs []uint `json:"child_ids"`
}

// POST /api/groups/{id}/children (admin) — bulk-assign children to a group.
func AssignChildren(w http.ResponseWriter, r *http.Request) {
	group, err := groupByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req assignChildrenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.ChildIDs) == 0 {
		writeError(w, fmt.Errorf("%w: child_ids is required", svc.ErrValidation))
		return
	}

	res := db.Conn().Model(&models.Child{}).
		Where("id IN ?", req.ChildIDs).
		Update("group_id", group.ID)
	if res.Error != nil {
		writeError(w, res.Error)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": group.ID, "assigned": res.RowsAffected})
}

// GET /api/groups/{id}/children (admin)
func ListGroupChildren(w http.ResponseWriter, r *http.Request) {
	group, err := groupByParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var children []models.Child
	if err := db.Conn().Where("group_id = ?", group.ID).Order("id").Find(&children).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func groupByParam(r *http.Request) (*models.Group, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: invalid group id", svc.ErrValidation)
	}
	var group models.Group
	if err := db.Conn().First(&group, id).Error; err != nil {
		return nil, fmt.Errorf("%w: group", svc.ErrNotFound)
	}
	return &group, nil
}
