package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// QuotaChecker is the capability Quota depends on, satisfied by
// *internal/quota.Limiter.
type QuotaChecker interface {
	Allow(workspaceID string) bool
}

// quotaGatedSuffixes lists the path suffixes spec.md §5 names as quota
// entry points: ingest and trigger_run. Both take a workspace-scoped
// action that spins up background work, unlike the read-only list/get
// routes.
var quotaGatedSuffixes = []string{"/ingest", "/pipeline/run"}

// Quota is a middleware that rejects requests past an ingest/trigger_run
// entry point once the caller's workspace has exhausted its token bucket.
// It must run after Auth so GetWorkspaceID has a value to check; requests
// with no workspace ID (auth disabled) are never throttled.
func Quota(checker QuotaChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isQuotaGated(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			workspaceID := GetWorkspaceID(r.Context())
			if workspaceID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !checker.Allow(workspaceID) {
				writeQuotaExceeded(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isQuotaGated(path string) bool {
	for _, suffix := range quotaGatedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func writeQuotaExceeded(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"title":  "QuotaExceeded",
		"detail": "workspace has exceeded its request quota, retry later",
	})
}
