// handlers/auth.go
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"p9e.in/pothole/middleware"
	"p9e.in/pothole/models"
	"p9e.in/pothole/pkg/errs"
)

const minPasswordLen = 8

type AuthHandler struct {
	db   *gorm.DB
	auth *middleware.Auth
}

func NewAuthHandler(db *gorm.DB, auth *middleware.Auth) *AuthHandler {
	return &AuthHandler{db: db, auth: auth}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a plain user. Administrators are only ever seeded.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errs.Validation("invalid JSON"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		respondError(w, r, errs.Validation("name required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, r, errs.Validation("valid email required"))
		return
	}
	if len(req.Password) < minPasswordLen {
		respondError(w, r, errs.Validation("password must be at least 8 characters"))
		return
	}

	// hash pw
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, err)
		return
	}
	u := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := h.db.WithContext(r.Context()).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(w, r, errs.Conflict("email already registered"))
			return
		}
		respondError(w, r, err)
		return
	}

	log.Printf("[AUTH] registered %s (%s)", u.Email, u.ID)
	respond(w, http.StatusCreated, "user registered", u.Public())
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string          `json:"token,omitempty"`
	User  models.Reporter `json:"user"`
	Role  models.Role     `json:"role"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errs.Validation("invalid JSON"))
		return
	}

	var u models.User
	err := h.db.WithContext(r.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&u).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, r, err)
			return
		}
		respondError(w, r, errs.Unauthorized("invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, r, errs.Unauthorized("invalid credentials"))
		return
	}
	if !u.IsActive {
		respondError(w, r, errs.Forbidden("account disabled"))
		return
	}

	token, err := h.auth.GenerateToken(u)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "login successful", loginResp{Token: token, User: u.Public(), Role: u.Role})
}

// Profile returns the public identity of the caller.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if !actor.Authenticated() {
		respondError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	var u models.User
	if err := h.db.WithContext(r.Context()).First(&u, "id = ?", actor.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, r, errs.NotFound("user not found"))
			return
		}
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", loginResp{User: u.Public(), Role: u.Role})
}
