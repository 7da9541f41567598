package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/ndewijer/coinfolio-ledger/internal/api/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("writes one access line with status and request id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The request logger is reachable from handlers.
			zerolog.Ctx(r.Context()).Info().Msg("inside")
			w.WriteHeader(http.StatusTeapot)
		})
		handler := chimw.RequestID(middleware.Logger(logger)(next))

		req := httptest.NewRequest(http.MethodGet, "/api/portfolio/a%0Ab", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 2)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(lines[1], &entry))
		assert.Equal(t, "request", entry["message"])
		assert.Equal(t, "GET", entry["method"])
		assert.Equal(t, "/api/portfolio/ab", entry["path"])
		assert.EqualValues(t, http.StatusTeapot, entry["status"])
		assert.NotEmpty(t, entry["request_id"])
	})

	t.Run("defaults to 200 when the handler never writes a status", func(t *testing.T) {
		var buf bytes.Buffer
		next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

		w := httptest.NewRecorder()
		middleware.Logger(zerolog.New(&buf))(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.EqualValues(t, http.StatusOK, entry["status"])
	})
}
