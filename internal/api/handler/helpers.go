package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"algoforge/internal/api/middleware"
	"algoforge/internal/common"
	"algoforge/internal/platform/logger"
)

// decodeJSON reads the request body into dst and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// respondErr maps err to its status and logs the cause of internal failures.
func respondErr(log *logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if common.HTTPStatusFromError(err) == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	common.RespondWithErr(w, err)
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
	}
	return userID, ok
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}
