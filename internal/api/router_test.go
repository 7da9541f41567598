package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/coinfolio-ledger/internal/config"
	"github.com/ndewijer/coinfolio-ledger/internal/logging"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRouter drives the full middleware chain.
//
// WHY: Handler tests inject the user directly. These tests make sure the
// routes are mounted behind authentication and id validation as intended.
func TestRouter(t *testing.T) {
	setupRouter := func(t *testing.T) http.Handler {
		t.Helper()
		db := testutil.SetupTestDB(t)
		cfg := &config.Config{
			CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
			Auth: config.AuthConfig{JWTSecret: testutil.TestJWTSecret},
		}
		services := Services{
			System:      testutil.NewTestSystemService(t, db),
			Portfolios:  testutil.NewTestPortfolioService(t, db, testutil.NewMockWalletClient(), nil),
			Transaction: testutil.NewTestTransactionService(t, db),
			Assets:      testutil.NewTestAssetService(t, db),
		}
		return NewRouter(services, cfg, logging.Nop())
	}

	serve := func(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("health needs no token", func(t *testing.T) {
		router := setupRouter(t)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/system/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("Content-Type"))
	})

	t.Run("portfolio routes require a token", func(t *testing.T) {
		router := setupRouter(t)

		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid ids are rejected before the handler", func(t *testing.T) {
		router := setupRouter(t)

		req := testutil.NewAuthenticatedRequest(t, http.MethodGet, "/api/portfolio/not-a-uuid", testutil.DefaultUserID, nil)
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("create then read through the router", func(t *testing.T) {
		router := setupRouter(t)

		body := map[string]any{"name": "Main", "type": "crypto"}
		w := serve(router, testutil.NewAuthenticatedRequest(t, http.MethodPost, "/api/portfolio", testutil.DefaultUserID, body))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created model.Portfolio
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		w = serve(router, testutil.NewAuthenticatedRequest(t, http.MethodGet, "/api/portfolio/"+created.ID, testutil.DefaultUserID, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = serve(router, testutil.NewAuthenticatedRequest(t, http.MethodGet, "/api/portfolio/"+created.ID, testutil.OtherUserID, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = serve(router, testutil.NewAuthenticatedRequest(t, http.MethodGet, "/api/portfolio/"+created.ID+"/transactions", testutil.DefaultUserID, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("public route is not shadowed by the id route", func(t *testing.T) {
		router := setupRouter(t)

		body := map[string]any{"name": "Shared", "type": "crypto", "settings": map[string]any{"isPublic": true}}
		w := serve(router, testutil.NewAuthenticatedRequest(t, http.MethodPost, "/api/portfolio", testutil.DefaultUserID, body))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created model.Portfolio
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

		w = serve(router, testutil.NewAuthenticatedRequest(t, http.MethodGet, "/api/portfolio/public/"+created.ID, testutil.OtherUserID, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}
