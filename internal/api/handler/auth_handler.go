package handler

import (
	"net/http"

	"algoforge/internal/api/middleware"
	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
	log         *logger.Logger
}

func NewAuthHandler(authService *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.register)
	r.Post("/login", h.login)
	r.Post("/google", h.google)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Get("/me", h.me)
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) google(w http.ResponseWriter, r *http.Request) {
	var req service.GoogleLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.LoginWithGoogle(r.Context(), req)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.authService.CurrentUser(r.Context(), userID)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, profile)
}
