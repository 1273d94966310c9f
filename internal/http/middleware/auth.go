package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// workspaceIDKey is the context key the workspace ID verified from a
// bearer token is stored under.
type workspaceIDKey struct{}

// TokenVerifier is the capability Auth depends on, satisfied by
// *internal/authn.Verifier.
type TokenVerifier interface {
	Verify(tokenString string) (workspaceID string, err error)
}

// Auth is a middleware that requires a valid "Authorization: Bearer <jwt>"
// header, verifies it against verifier, and stores the resulting workspace
// ID in the request context for downstream handlers to scope queries by.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			workspaceID, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), workspaceIDKey{}, workspaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetWorkspaceID returns the workspace ID verified from the request's
// bearer token, or "" if Auth middleware wasn't applied or the claim was
// absent.
func GetWorkspaceID(ctx context.Context) string {
	if id, ok := ctx.Value(workspaceIDKey{}).(string); ok {
		return id
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"title":  "Unauthorized",
		"detail": detail,
	})
}
