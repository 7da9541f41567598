package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionHandler(t *testing.T) {
	type fixture struct {
		handler   *TransactionHandler
		db        *sql.DB
		portfolio model.Portfolio
		asset     model.Asset
	}

	setup := func(t *testing.T) fixture {
		t.Helper()
		db := testutil.SetupTestDB(t)
		return fixture{
			handler:   NewTransactionHandler(testutil.NewTestTransactionService(t, db)),
			db:        db,
			portfolio: testutil.CreatePortfolio(t, db, testutil.DefaultUserID),
			asset:     testutil.CreateAsset(t, db, "BTC"),
		}
	}

	create := func(t *testing.T, f fixture, body map[string]any) *httptest.ResponseRecorder {
		t.Helper()
		req := testutil.NewUserRequest(t, http.MethodPost, "/api/transaction", testutil.DefaultUserID, body, nil)
		w := httptest.NewRecorder()
		f.handler.CreateTransaction(w, req)
		return w
	}

	buy := func(f fixture, amount, price string) map[string]any {
		return map[string]any{
			"portfolioId": f.portfolio.ID,
			"assetId":     f.asset.ID,
			"type":        "buy",
			"amount":      amount,
			"price":       price,
			"date":        "2024-01-15",
		}
	}

	positions := func(t *testing.T, f fixture) []model.Position {
		t.Helper()
		p, err := testutil.NewTestRepositories(t, f.db).Portfolios.GetPortfolio(context.Background(), f.portfolio.ID)
		require.NoError(t, err)
		return p.Assets
	}

	t.Run("creates a buy and updates the position", func(t *testing.T) {
		f := setup(t)

		w := create(t, f, buy(f, "2", "100"))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		tx := decode[model.Transaction](t, w)
		assert.Equal(t, model.TransactionBuy, tx.Type)
		assert.Equal(t, "BTC", tx.Symbol)

		held := positions(t, f)
		require.Len(t, held, 1)
		assert.Equal(t, "2", held[0].Amount.String())
	})

	t.Run("accepts JSON numbers for amounts", func(t *testing.T) {
		f := setup(t)
		body := buy(f, "", "")
		body["amount"] = 1.5
		body["price"] = 20

		w := create(t, f, body)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "1.5", decode[model.Transaction](t, w).Amount.String())
	})

	t.Run("oversell returns 400 and keeps the position", func(t *testing.T) {
		f := setup(t)
		require.Equal(t, http.StatusCreated, create(t, f, buy(f, "1", "100")).Code)

		sell := buy(f, "5", "100")
		sell["type"] = "sell"
		w := create(t, f, sell)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "InsufficientBalanceError", decode[response.ErrorResponse](t, w).Error)
		assert.Equal(t, "1", positions(t, f)[0].Amount.String())
	})

	t.Run("transfer without direction returns 400", func(t *testing.T) {
		f := setup(t)
		transfer := buy(f, "1", "100")
		transfer["type"] = "transfer"

		w := create(t, f, transfer)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MissingDirectionError", decode[response.ErrorResponse](t, w).Error)
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		f := setup(t)

		w := create(t, f, buy(f, "-1", "100"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ValidationError", decode[response.ErrorResponse](t, w).Error)
		testutil.AssertRowCount(t, f.db, `"transaction"`, 0)
	})

	t.Run("creating in another user's portfolio returns 403", func(t *testing.T) {
		f := setup(t)

		req := testutil.NewUserRequest(t, http.MethodPost, "/api/transaction", testutil.OtherUserID, buy(f, "1", "100"), nil)
		w := httptest.NewRecorder()
		f.handler.CreateTransaction(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("gets, updates and deletes a transaction", func(t *testing.T) {
		f := setup(t)
		created := decode[model.Transaction](t, create(t, f, buy(f, "2", "100")))
		params := map[string]string{"uuid": created.ID}

		// Get
		req := testutil.NewUserRequest(t, http.MethodGet, "/api/transaction/"+created.ID, testutil.DefaultUserID, nil, params)
		w := httptest.NewRecorder()
		f.handler.GetTransaction(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, created.ID, decode[model.Transaction](t, w).ID)

		// Update
		req = testutil.NewUserRequest(t, http.MethodPatch, "/api/transaction/"+created.ID, testutil.DefaultUserID,
			map[string]any{"amount": "3"}, params)
		w = httptest.NewRecorder()
		f.handler.UpdateTransaction(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "3", positions(t, f)[0].Amount.String())

		// Delete
		req = testutil.NewUserRequest(t, http.MethodDelete, "/api/transaction/"+created.ID, testutil.DefaultUserID, nil, params)
		w = httptest.NewRecorder()
		f.handler.DeleteTransaction(w, req)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		assert.Empty(t, positions(t, f))
		testutil.AssertRowCount(t, f.db, `"transaction"`, 0)
	})

	t.Run("external transactions cannot be edited", func(t *testing.T) {
		f := setup(t)
		external := testutil.NewTransaction(f.portfolio, f.asset).External("https://etherscan.io/tx/0x1").Build(t, f.db)
		params := map[string]string{"uuid": external.ID}

		req := testutil.NewUserRequest(t, http.MethodDelete, "/api/transaction/"+external.ID, testutil.DefaultUserID, nil, params)
		w := httptest.NewRecorder()
		f.handler.DeleteTransaction(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ImmutableRecordError", decode[response.ErrorResponse](t, w).Error)
	})

	t.Run("unknown transaction returns 404", func(t *testing.T) {
		f := setup(t)
		id := testutil.MakeID()

		req := testutil.NewUserRequest(t, http.MethodGet, "/api/transaction/"+id, testutil.DefaultUserID, nil,
			map[string]string{"uuid": id})
		w := httptest.NewRecorder()
		f.handler.GetTransaction(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("lists a portfolio's transactions", func(t *testing.T) {
		f := setup(t)
		require.Equal(t, http.StatusCreated, create(t, f, buy(f, "1", "100")).Code)
		require.Equal(t, http.StatusCreated, create(t, f, buy(f, "2", "110")).Code)

		req := testutil.NewUserRequest(t, http.MethodGet, "/api/portfolio/"+f.portfolio.ID+"/transactions",
			testutil.DefaultUserID, nil, map[string]string{"uuid": f.portfolio.ID})
		w := httptest.NewRecorder()
		f.handler.PortfolioTransactions(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, decode[[]model.Transaction](t, w), 2)
	})
}
