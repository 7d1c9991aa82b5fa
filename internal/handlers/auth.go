package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jlpedu/enroll/internal/db"
	"github.com/jlpedu/enroll/internal/models"
	"github.com/jlpedu/enroll/internal/notify"
	svc "github.com/jlpedu/enroll/internal/services"
)

// Package-level wiring set once at startup, mirroring db.Conn().
var (
	jwtSecret  []byte
	bcryptCost = bcrypt.DefaultCost
	notifier   notify.Sender = notify.Noop{}
)

func Configure(secret string, cost int, sender notify.Sender) {
	jwtSecret = []byte(secret)
	if cost > 0 {
		bcryptCost = cost
	}
	if sender != nil {
		notifier = sender
	}
}

// Claims carried in the bearer token; the same shape the original frontend
// relies on.
type Claims struct {
	ParentID uint   `json:"pid"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Campus   string `json:"campus"`
	jwt.RegisteredClaims
}

type ctxKey int

const claimsKey ctxKey = 0

func signToken(p *models.Parent) (string, error) {
	now := time.Now()
	claims := Claims{
		ParentID: p.ID,
		Role:     p.Role,
		Name:     p.Name,
		Phone:    p.Phone,
		Campus:   p.Campus,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(p.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// RequireAuth validates the Bearer token and stashes the claims in the
// request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{"missing bearer token", "unauthorized"})
			return
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		var claims Claims
		tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return jwtSecret, nil
		})
		if err != nil || !tok.Valid {
			writeJSON(w, http.StatusUnauthorized, errorBody{"invalid or expired token", "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, &claims)))
	})
}

// RequireAdmin allows admin and superadmin roles only. Must run inside
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := currentClaims(r)
		if c == nil || (c.Role != models.RoleAdmin && c.Role != models.RoleSuperAdmin) {
			writeJSON(w, http.StatusForbidden, errorBody{"admin rights required", "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentClaims(r *http.Request) *Claims {
	c, _ := r.Context().Value(claimsKey).(*Claims)
	return c
}

func currentActor(r *http.Request) svc.Actor {
	c := currentClaims(r)
	if c == nil {
		return svc.Actor{}
	}
	return svc.Actor{ParentID: c.ParentID, Role: c.Role}
}

var validCampuses = map[string]bool{"Suji": true, "Dongtan": true, "Bundang": true}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Campus   string `json:"campus"`
}

type authResponse struct {
	Token                string `json:"token"`
	ID                   uint   `json:"id"`
	Role                 string `json:"role"`
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	Campus               string `json:"campus"`
	AttendedPresentation bool   `json:"attended_presentation"`
}

// POST /api/users/register
func Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	email, ok := svc.NormEmail(req.Email)
	phone := svc.NormPhone(req.Phone)
	switch {
	case !ok, phone == "", strings.TrimSpace(req.Name) == "", len(req.Password) < 8:
		writeError(w, fmt.Errorf("%w: name, email, phone and a password of 8+ characters are required", svc.ErrValidation))
		return
	case !validCampuses[req.Campus]:
		writeError(w, fmt.Errorf("%w: invalid campus", svc.ErrValidation))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		writeError(w, err)
		return
	}

	parent := models.Parent{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Phone:        phone,
		Role:         models.RoleParent,
		Campus:       req.Campus,
	}
	if err := db.Conn().Create(&parent).Error; err != nil {
		le := strings.ToLower(err.Error())
		if strings.Contains(le, "unique") {
			writeError(w, fmt.Errorf("%w: this email is already registered", svc.ErrConflict))
			return
		}
		writeError(w, err)
		return
	}

	token, err := signToken(&parent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		Token: token, ID: parent.ID, Role: parent.Role,
		Name: parent.Name, Phone: parent.Phone, Campus: parent.Campus,
		AttendedPresentation: parent.AttendedPresentation,
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// POST /api/users/login — parents log in with their phone number.
func Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var parent models.Parent
	if err := db.Conn().Where("phone = ?", svc.NormPhone(req.Phone)).First(&parent).Error; err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid phone or password", "bad_credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(parent.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid phone or password", "bad_credentials"})
		return
	}

	token, err := signToken(&parent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token: token, ID: parent.ID, Role: parent.Role,
		Name: parent.Name, Phone: parent.Phone, Campus: parent.Campus,
		AttendedPresentation: parent.AttendedPresentation,
	})
}

// GET /api/users/me
func Me(w http.ResponseWriter, r *http.Request) {
	c := currentClaims(r)
	var parent models.Parent
	if err := db.Conn().Preload("Children").First(&parent, c.ParentID).Error; err != nil {
		writeError(w, fmt.Errorf("%w: parent", svc.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, parent)
}
