package handler

import (
	"net/http"

	"algoforge/internal/api/middleware"
	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// AdminHandler groups every route that requires the admin role.
type AdminHandler struct {
	admin   *service.AdminService
	content *service.ContentService
	forum   *service.ForumService
	board   *service.LeaderboardService
	log     *logger.Logger
}

func NewAdminHandler(admin *service.AdminService, content *service.ContentService, forum *service.ForumService, board *service.LeaderboardService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, content: content, forum: forum, board: board, log: log}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.RequireAdmin(h.admin))

	r.Get("/stats", h.stats)
	r.Get("/users", h.listUsers)
	r.Put("/users/{userID}/role", h.setRole)

	r.Post("/paths", h.createPath)
	r.Put("/paths/{pathID}", h.updatePath)
	r.Delete("/paths/{pathID}", h.deletePath)

	r.Post("/topics", h.createTopic)
	r.Put("/topics/{topicID}", h.updateTopic)
	r.Delete("/topics/{topicID}", h.deleteTopic)

	r.Post("/problems", h.createProblem)
	r.Put("/problems/{problemID}", h.updateProblem)
	r.Delete("/problems/{problemID}", h.deleteProblem)

	r.Put("/forum/{postID}/pin", h.setPinned)

	r.Post("/leaderboard/rebuild", h.rebuildLeaderboard)
}

func (h *AdminHandler) rebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := h.board.Rebuild(r.Context())
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int{"users": n})
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) setRole(w http.ResponseWriter, r *http.Request) {
	var req service.SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.admin.SetRole(r.Context(), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) createPath(w http.ResponseWriter, r *http.Request) {
	var in service.PathInput
	if !decodeJSON(w, r, &in) {
		return
	}
	path, err := h.content.CreatePath(r.Context(), in)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, path)
}

func (h *AdminHandler) updatePath(w http.ResponseWriter, r *http.Request) {
	var in service.PathInput
	if !decodeJSON(w, r, &in) {
		return
	}
	path, err := h.content.UpdatePath(r.Context(), chi.URLParam(r, "pathID"), in)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, path)
}

func (h *AdminHandler) deletePath(w http.ResponseWriter, r *http.Request) {
	if err := h.content.DeletePath(r.Context(), chi.URLParam(r, "pathID")); err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) createTopic(w http.ResponseWriter, r *http.Request) {
	var in service.TopicInput
	if !decodeJSON(w, r, &in) {
		return
	}
	topic, err := h.content.CreateTopic(r.Context(), in)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, topic)
}

func (h *AdminHandler) updateTopic(w http.ResponseWriter, r *http.Request) {
	var in service.TopicInput
	if !decodeJSON(w, r, &in) {
		return
	}
	topic, err := h.content.UpdateTopic(r.Context(), chi.URLParam(r, "topicID"), in)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, topic)
}

func (h *AdminHandler) deleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := h.content.DeleteTopic(r.Context(), chi.URLParam(r, "topicID")); err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) createProblem(w http.ResponseWriter, r *http.Request) {
	var in service.ProblemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	problem, err := h.content.CreateProblem(r.Context(), in)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, problem)
}

func (h *AdminHandler) updateProblem(w http.ResponseWriter, r *http.Request) {
	var in service.ProblemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	problem, err := h.content.UpdateProblem(r.Context(), chi.URLParam(r, "problemID"), in)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

func (h *AdminHandler) deleteProblem(w http.ResponseWriter, r *http.Request) {
	if err := h.content.DeleteProblem(r.Context(), chi.URLParam(r, "problemID")); err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) setPinned(w http.ResponseWriter, r *http.Request) {
	var req service.SetPinnedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	post, err := h.forum.SetPinned(r.Context(), chi.URLParam(r, "postID"), req.Pinned)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, post)
}
