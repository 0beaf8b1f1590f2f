package handler

import (
	"net/http"

	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// ContentHandler serves the public catalog. Admin writes live in AdminHandler.
type ContentHandler struct {
	contentService *service.ContentService
	log            *logger.Logger
}

func NewContentHandler(cs *service.ContentService, log *logger.Logger) *ContentHandler {
	return &ContentHandler{contentService: cs, log: log}
}

func (h *ContentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/paths", h.listPaths)
	r.Get("/paths/{pathID}/topics", h.listTopics)
	r.Get("/topics", h.listAllTopics)
	r.Get("/topics/{topicID}", h.getTopic)
	r.Get("/topics/{topicID}/problems", h.listProblems)
	r.Get("/problems", h.listAllProblems)
}

func (h *ContentHandler) listPaths(w http.ResponseWriter, r *http.Request) {
	paths, err := h.contentService.ListPaths(r.Context())
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, paths)
}

func (h *ContentHandler) listTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.contentService.ListTopics(r.Context(), chi.URLParam(r, "pathID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, topics)
}

func (h *ContentHandler) listAllTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.contentService.ListAllTopics(r.Context())
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, topics)
}

func (h *ContentHandler) getTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := h.contentService.GetTopic(r.Context(), chi.URLParam(r, "topicID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, topic)
}

func (h *ContentHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.contentService.ListProblems(r.Context(), chi.URLParam(r, "topicID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}

func (h *ContentHandler) listAllProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.contentService.ListAllProblems(r.Context())
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problems)
}
