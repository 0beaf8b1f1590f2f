package handler

import (
	"net/http"

	"algoforge/internal/api/middleware"
	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

type ForumHandler struct {
	forum *service.ForumService
	log   *logger.Logger
}

func NewForumHandler(forum *service.ForumService, log *logger.Logger) *ForumHandler {
	return &ForumHandler{forum: forum, log: log}
}

func (h *ForumHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listPosts)       // GET /api/forum?category=&sort=&page=
	r.Get("/{postID}", h.getPost) // GET /api/forum/{id}

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Post("/", h.createPost)
		authed.Post("/{postID}/reply", h.addReply)
		authed.Post("/{postID}/like", h.likePost)
		authed.Post("/{postID}/replies/{replyID}/like", h.likeReply)
	})
}

func (h *ForumHandler) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.forum.ListPosts(r.Context(), q.Get("category"), q.Get("sort"), queryInt(r, "page", 1))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *ForumHandler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.forum.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, post)
}

func (h *ForumHandler) createPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	post, err := h.forum.CreatePost(r.Context(), userID, req)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, post)
}

func (h *ForumHandler) addReply(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req service.AddReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	post, err := h.forum.AddReply(r.Context(), userID, chi.URLParam(r, "postID"), req.Content)
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, post)
}

func (h *ForumHandler) likePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.forum.TogglePostLike(r.Context(), userID, chi.URLParam(r, "postID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}

func (h *ForumHandler) likeReply(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.forum.ToggleReplyLike(r.Context(), userID, chi.URLParam(r, "postID"), chi.URLParam(r, "replyID"))
	if err != nil {
		respondErr(h.log, w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, res)
}
