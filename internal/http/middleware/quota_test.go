package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeQuotaChecker struct {
	allow bool
}

func (f fakeQuotaChecker) Allow(string) bool {
	return f.allow
}

func withWorkspace(req *http.Request, workspaceID string) *http.Request {
	ctx := context.WithValue(req.Context(), workspaceIDKey{}, workspaceID)
	return req.WithContext(ctx)
}

func TestQuota_AllowsNonGatedPath(t *testing.T) {
	handler := Quota(fakeQuotaChecker{allow: false})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := withWorkspace(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil), "ws-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuota_RejectsGatedPathWhenExhausted(t *testing.T) {
	handler := Quota(fakeQuotaChecker{allow: false})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := withWorkspace(httptest.NewRequest(http.MethodPost, "/api/v1/datasources/abc/ingest", nil), "ws-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestQuota_AllowsGatedPathWithinBudget(t *testing.T) {
	handler := Quota(fakeQuotaChecker{allow: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := withWorkspace(httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/run", nil), "ws-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuota_NoWorkspaceIDSkipsEnforcement(t *testing.T) {
	handler := Quota(fakeQuotaChecker{allow: false})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
