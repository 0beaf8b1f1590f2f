package middleware

import (
	"context"
	"errors"
	"net/http"

	"algoforge/internal/common"
	"algoforge/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const UserIDCtxKey contextKey = "userID"

// Authenticator requires a valid bearer token, already parsed by
// jwtauth.Verifier, and stores the user id in the request context.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			if errors.Is(err, jwtauth.ErrNoTokenFound) {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			} else {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}
		if token == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			return
		}

		userID, err := security.GetUserIDFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminChecker reports whether a user currently holds the admin role.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin must run after Authenticator. The role is looked up per
// request, so demotions apply immediately.
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
				return
			}
			isAdmin, err := checker.IsAdmin(r.Context(), userID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				common.RespondWithErr(w, err)
				return
			}
			if !isAdmin {
				common.RespondWithError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok && userID != ""
}
