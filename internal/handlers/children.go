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

type childRequest struct {
	Name           string `json:"name"`
	BirthDate      string `json:"birth_date"` // "2006-01-02"
	Gender         string `json:"gender"`
	PreviousSchool string `json:"previous_school"`
}

func (req *childRequest) validate() (time.Time, error) {
	if strings.TrimSpace(req.Name) == "" || req.BirthDate == "" {
		return time.Time{}, fmt.Errorf("%w: name and birth_date are required", svc.ErrValidation)
	}
	switch req.Gender {
	case "male", "female":
	default:
		return time.Time{}, fmt.Errorf("%w: invalid gender", svc.ErrValidation)
	}
	d, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid birth_date", svc.ErrValidation)
	}
	return d, nil
}

// POST /api/children
func CreateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dob, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	child := models.Child{
		Name:           strings.TrimSpace(req.Name),
		BirthDate:      dob,
		Gender:         req.Gender,
		PreviousSchool: strings.TrimSpace(req.PreviousSchool),
		ParentID:       currentClaims(r).ParentID,
	}
	svc.ApplyDerivedGrade(&child, time.Now())

	if err := db.Conn().Create(&child).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

// GET /api/children — the requester's own children.
func ListMyChildren(w http.ResponseWriter, r *http.Request) {
	var children []models.Child
	if err := db.Conn().Where("parent_id = ?", currentClaims(r).ParentID).
		Order("id").Find(&children).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// PATCH /api/children/{id}
func UpdateChild(w http.ResponseWriter, r *http.Request) {
	child, err := ownedChild(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req childRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dob, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	child.Name = strings.TrimSpace(req.Name)
	child.BirthDate = dob
	child.Gender = req.Gender
	child.PreviousSchool = strings.TrimSpace(req.PreviousSchool)
	svc.ApplyDerivedGrade(child, time.Now())

	if err := db.Conn().Save(child).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// DELETE /api/children/{id}
func DeleteChild(w http.ResponseWriter, r *http.Request) {
	child, err := ownedChild(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// A child with an active booking holds slot capacity; the booking has
	// to be deleted first so its compensation runs.
	var n int64
	if err := db.Conn().Model(&models.Booking{}).Where("child_id = ?", child.ID).Count(&n).Error; err != nil {
		writeError(w, err)
		return
	}
	if n > 0 {
		writeError(w, fmt.Errorf("%w: child has an active test booking", svc.ErrConflict))
		return
	}

	if err := db.Conn().Delete(child).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": child.ID})
}

func ownedChild(r *http.Request) (*models.Child, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: invalid child id", svc.ErrValidation)
	}
	var child models.Child
	if err := db.Conn().First(&child, id).Error; err != nil {
		return nil, fmt.Errorf("%w: child", svc.ErrNotFound)
	}
	actor := currentActor(r)
	if child.ParentID != actor.ParentID && actor.Role == models.RoleParent {
		return nil, fmt.Errorf("%w: not your child", svc.ErrForbidden)
	}
	return &child, nil
}
