package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct {
	workspaceID string
	err         error
}

func (f fakeVerifier) Verify(string) (string, error) {
	return f.workspaceID, f.err
}

func TestAuth_MissingHeader(t *testing.T) {
	handler := Auth(fakeVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := Auth(fakeVerifier{err: assertError{}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidToken_SetsWorkspaceID(t *testing.T) {
	var gotWorkspaceID string
	handler := Auth(fakeVerifier{workspaceID: "ws-42"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWorkspaceID = GetWorkspaceID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ws-42", gotWorkspaceID)
}

func TestGetWorkspaceID_NoneSet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetWorkspaceID(req.Context()))
}

type assertError struct{}

func (assertError) Error() string { return "verification failed" }
