package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

type AuthHandler struct {
	userSvc  *services.UserService
	tokenSvc *services.TokenService
}

func NewAuthHandler(u *services.UserService, t *services.TokenService) *AuthHandler {
	return &AuthHandler{userSvc: u, tokenSvc: t}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	user, err := h.userSvc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - register failed", "email", req.Email, logging.Err(err))
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrEmailTaken) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.issueToken(w, r, user)
	log.InfoContext(r.Context(), "auth handler - register success", logging.User(user.ID))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	user, err := h.userSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.InfoContext(r.Context(), "auth handler - login failed", "email", req.Email)
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	h.issueToken(w, r, user)
	log.InfoContext(r.Context(), "auth handler - login success", logging.User(user.ID))
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request, user *domain.User) {
	token, err := h.tokenSvc.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token": token,
		"user": map[string]string{
			"id":           user.ID,
			"username":     user.Username,
			"email":        user.Email,
			"profileImage": user.ProfileImage,
		},
	})
}
