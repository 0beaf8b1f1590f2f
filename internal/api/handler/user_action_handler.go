package handler

import (
	"net/http"

	"algoforge/internal/api/middleware"
	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

type UserActionHandler struct {
	actions *service.UserActionService
	log     *logger.Logger
}

func NewUserActionHandler(actions *service.UserActionService, log *logger.Logger) *UserActionHandler {
	return &UserActionHandler{actions: actions, log: log}
}

func (h *UserActionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/problems/{problemID}/status", h.setStatus)
	r.Post("/problems/{problemID}/bookmark", h.toggleBookmark)
	r.Put("/problems/{problemID}/notes", h.updateNotes)
	r.Get("/progress", h.progress)
}

func (h *UserActionHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.SetStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, err := h.actions.SetStatus(r.Context(), userID, chi.URLParam(r, "problemID"), req.Status)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, state)
}

func (h *UserActionHandler) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	state, err := h.actions.ToggleBookmark(r.Context(), userID, chi.URLParam(r, "problemID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, state)
}

func (h *UserActionHandler) updateNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.UpdateNotesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, err := h.actions.UpdateNotes(r.Context(), userID, chi.URLParam(r, "problemID"), req.Notes)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, state)
}

func (h *UserActionHandler) progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	states, err := h.actions.GetProgress(r.Context(), userID)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, states)
}
