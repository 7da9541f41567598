package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ndewijer/coinfolio-ledger/internal/api/middleware"
	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	// run sends req through the middleware and reports the user id the next handler saw.
	run := func(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string, bool) {
		t.Helper()
		var (
			seen   string
			called bool
		)
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			seen, _ = middleware.UserID(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		middleware.Authenticate(testutil.TestJWTSecret)(next).ServeHTTP(w, req)
		return w, seen, called
	}

	assertUnauthorized := func(t *testing.T, w *httptest.ResponseRecorder, details string) {
		t.Helper()
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body response.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "UnauthorizedError", body.Error)
		assert.Equal(t, details, body.Details)
	}

	t.Run("valid token exposes the subject", func(t *testing.T) {
		req := testutil.NewAuthenticatedRequest(t, http.MethodGet, "/api/portfolio", "user-42", nil)

		w, userID, called := run(t, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
		assert.Equal(t, "user-42", userID)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)

		w, _, called := run(t, req)

		assert.False(t, called)
		assertUnauthorized(t, w, "Missing bearer token")
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		w, _, called := run(t, req)

		assert.False(t, called)
		assertUnauthorized(t, w, "Missing bearer token")
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
		token := testutil.SignToken(t, "another-secret-that-is-32-bytes-long!!", "user-42", time.Hour)
		req.Header.Set("Authorization", "Bearer "+token)

		w, _, called := run(t, req)

		assert.False(t, called)
		assertUnauthorized(t, w, "Token is invalid or expired")
	})

	t.Run("expired token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
		token := testutil.SignToken(t, testutil.TestJWTSecret, "user-42", -time.Minute)
		req.Header.Set("Authorization", "Bearer "+token)

		w, _, called := run(t, req)

		assert.False(t, called)
		assertUnauthorized(t, w, "Token is invalid or expired")
	})

	t.Run("token without subject", func(t *testing.T) {
		claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testutil.TestJWTSecret))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w, _, called := run(t, req)

		assert.False(t, called)
		assertUnauthorized(t, w, "Token is invalid or expired")
	})

	t.Run("other signing algorithms are refused", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testutil.TestJWTSecret))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w, _, called := run(t, req)

		assert.False(t, called)
		assertUnauthorized(t, w, "Token is invalid or expired")
	})
}

func TestUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := middleware.UserID(req.Context())
	assert.False(t, ok)

	ctx := middleware.WithUserID(req.Context(), "user-7")
	id, ok := middleware.UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-7", id)
}
