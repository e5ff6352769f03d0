package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanledger/internal/clock"
	"loanledger/internal/models"
	"loanledger/internal/services"
	"loanledger/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, clk clock.Clock) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewFileStore(t.TempDir(), store.Options{}, discardLogger())
	require.NoError(t, err)
	ledger, err := services.NewLedger(st, clk, services.LedgerOptions{}, discardLogger())
	require.NoError(t, err)
	svc := services.NewLibraryService(ledger, nil, clk, services.LibraryOptions{}, discardLogger())

	r := gin.New()
	r.Use(RequestLogger(discardLogger()))
	RegisterRoutes(r, svc, discardLogger())
	return r
}

func newPinnedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	clk := clock.NewManual()
	require.NoError(t, clk.SetDate("2025-03-23"))
	return newTestRouter(t, clk)
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func borrow(t *testing.T, r *gin.Engine, isbn, username string, days int) models.LoanRecord {
	t.Helper()
	w := do(t, r, http.MethodPost, "/loans", gin.H{
		"isbn": isbn, "username": username, "title": "Book " + isbn, "duration_days": days,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.LoanRecord](t, w)
}

func TestBorrowAndReturnOnTime(t *testing.T) {
	r := newPinnedRouter(t)

	loan := borrow(t, r, "111", "alice", 7)
	assert.Equal(t, "2025-03-30", loan.DueDate.String())

	w := do(t, r, http.MethodGet, "/loans/111/days-remaining", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), decode[map[string]any](t, w)["days_remaining"])

	w = do(t, r, http.MethodPost, "/loans/111/return", gin.H{"username": "alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	returned := decode[models.LoanRecord](t, w)
	assert.Equal(t, models.LoanStatusCompleted, returned.Status)

	w = do(t, r, http.MethodGet, "/users/alice/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.LoanRecord](t, w), 1)
}

func TestOverdueFlow(t *testing.T) {
	r := newPinnedRouter(t)
	borrow(t, r, "111", "alice", 7)

	w := do(t, r, http.MethodPut, "/clock", gin.H{"date": "2025-04-02"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.ReconcileResult{Created: 1}, decode[services.ReconcileResult](t, w))

	w = do(t, r, http.MethodGet, "/loans/111/days-overdue", nil)
	assert.Equal(t, float64(3), decode[map[string]any](t, w)["days_overdue"])

	w = do(t, r, http.MethodPost, "/loans/111/return", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/loans", gin.H{"isbn": "222", "username": "alice", "title": "T", "duration_days": 7})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "15.000")

	w = do(t, r, http.MethodGet, "/users/alice/penalties", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[services.PenaltySummary](t, w)
	assert.Equal(t, int64(15000), summary.Total)
	assert.Equal(t, "15.000", summary.TotalFormatted)

	w = do(t, r, http.MethodPost, "/penalties/111/pay", gin.H{"username": "bob"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/penalties/111/pay", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[models.PenaltyRecord](t, w)
	assert.Equal(t, models.PenaltyStatusPaid, paid.Status)
	assert.Equal(t, int64(15000), *paid.PaidAmount)

	w = do(t, r, http.MethodGet, "/users/alice/loans", nil)
	assert.Empty(t, decode[[]models.LoanRecord](t, w))
}

func TestErrorStatuses(t *testing.T) {
	r := newPinnedRouter(t)
	borrow(t, r, "111", "alice", 7)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"already borrowed", http.MethodPost, "/loans", gin.H{"isbn": "111", "username": "bob", "title": "T", "duration_days": 7}, http.StatusConflict},
		{"missing username", http.MethodPost, "/loans", gin.H{"isbn": "111"}, http.StatusBadRequest},
		{"invalid isbn", http.MethodPost, "/loans", gin.H{"isbn": "abc", "username": "bob", "title": "T", "duration_days": 7}, http.StatusBadRequest},
		{"negative duration", http.MethodPost, "/loans", gin.H{"isbn": "222", "username": "bob", "title": "T", "duration_days": -1}, http.StatusBadRequest},
		{"no active loan", http.MethodPost, "/loans/999/return", gin.H{"username": "alice"}, http.StatusNotFound},
		{"nothing due", http.MethodPost, "/penalties/111/pay", gin.H{"username": "alice"}, http.StatusConflict},
		{"unknown loan id", http.MethodDelete, "/loans/nope", nil, http.StatusNotFound},
		{"unknown penalty id", http.MethodDelete, "/penalties/nope", nil, http.StatusNotFound},
		{"bad threshold", http.MethodGet, "/users/alice/approaching?threshold=-2", nil, http.StatusBadRequest},
		{"bad clock date", http.MethodPut, "/clock", gin.H{"date": "23-03-2025"}, http.StatusBadRequest},
		{"no catalog", http.MethodGet, "/books", nil, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	r := newPinnedRouter(t)

	w := do(t, r, http.MethodPost, "/loans", gin.H{"isbn": "111", "username": "alice", "duration_days": 7})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title", decode[map[string]any](t, w)["field"])
}

func TestApproachingDueDate(t *testing.T) {
	r := newPinnedRouter(t)
	borrow(t, r, "111", "alice", 1)
	borrow(t, r, "222", "alice", 5)

	w := do(t, r, http.MethodGet, "/users/alice/approaching", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.LoanRecord](t, w), 1)

	w = do(t, r, http.MethodGet, "/users/alice/approaching?threshold=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.LoanRecord](t, w), 2)
}

func TestDeleteLoan(t *testing.T) {
	r := newPinnedRouter(t)
	loan := borrow(t, r, "111", "alice", 7)

	w := do(t, r, http.MethodDelete, "/loans/"+loan.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/users/alice/history", nil)
	assert.Empty(t, decode[[]models.LoanRecord](t, w))
}

func TestClockRequiresTestMode(t *testing.T) {
	r := newTestRouter(t, clock.System{})

	w := do(t, r, http.MethodPut, "/clock", gin.H{"date": "2025-01-01"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}
