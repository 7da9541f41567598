package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ndewijer/coinfolio-ledger/internal/api/middleware"
)

// TestJWTSecret signs tokens in router tests.
const TestJWTSecret = "test-secret-that-is-at-least-32-bytes-long"

// NewRequestWithURLParams creates an HTTP request with chi URL parameters.
// This helper simplifies testing chi handlers that use chi.URLParam() to extract path parameters.
//
// Example:
//
//	req := testutil.NewRequestWithURLParams(
//	    http.MethodGet,
//	    "/api/portfolio/123-456",
//	    map[string]string{"uuid": "123-456"},
//	)
func NewRequestWithURLParams(method, path string, params map[string]string) *http.Request {
	return withURLParams(httptest.NewRequest(method, path, nil), params)
}

// NewUserRequest creates a request acting as userID, with an optional JSON body
// and chi URL parameters. It bypasses token parsing and is meant for handler tests.
func NewUserRequest(t *testing.T, method, path, userID string, body any, params map[string]string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, path, jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	return withURLParams(req, params)
}

// NewAuthenticatedRequest creates a request carrying a bearer token for userID,
// signed with TestJWTSecret. It is meant for tests that go through the router.
func NewAuthenticatedRequest(t *testing.T, method, path, userID string, body any) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, path, jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+SignToken(t, TestJWTSecret, userID, time.Hour))
	return req
}

// SignToken returns an HS256 token with userID as subject.
func SignToken(t *testing.T, secret, userID string, ttl time.Duration) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func jsonBody(t *testing.T, body any) io.Reader {
	t.Helper()

	switch b := body.(type) {
	case nil:
		return nil
	case string:
		return bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		return bytes.NewReader(data)
	}
}

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	if len(params) == 0 {
		return req
	}

	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
