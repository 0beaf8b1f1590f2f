package handler

import (
	"net/http"

	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
	log         *logger.Logger
}

func NewLeaderboardHandler(ls *service.LeaderboardService, log *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: ls, log: log}
}

func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.top)
}

func (h *LeaderboardHandler) top(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.Top(r.Context(), queryInt(r, "limit", service.DefaultLeaderboardSize))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}
