package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

func withEmployee(r *http.Request) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), &domain.Session{
		Username: "employee",
		Name:     "Sales Employee",
		Role:     domain.RoleEmployee,
	}))
}

func TestSaleHandler_RecordSale(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockLedgerService)
		expectedStatus int
	}{
		{
			name: "records_sale_as_session_user",
			body: `{"items":[{"product_id":1,"quantity":2}],"amount_paid":"10.00","payment_method":"cash"}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req domain.SaleRequest) (*domain.Sale, error) {
						assert.Equal(t, "Sales Employee", req.Employee)
						assert.True(t, req.Online)
						assert.True(t, req.AmountPaid.Equal(decimal.NewFromInt(10)))
						return &domain.Sale{ID: 11, Total: decimal.RequireFromString("5.00"), Employee: req.Employee}, nil
					})
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "offline_terminal",
			body: `{"items":[{"product_id":1,"quantity":1}],"payment_method":"card","online":false}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req domain.SaleRequest) (*domain.Sale, error) {
						assert.False(t, req.Online)
						return &domain.Sale{ID: 12, IsOffline: true}, nil
					})
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "empty_cart",
			body: `{"items":[],"payment_method":"cash"}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).Return(nil, domain.ErrEmptyCart)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "insufficient_stock",
			body: `{"items":[{"product_id":1,"quantity":500}],"amount_paid":"9999","payment_method":"cash"}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).Return(nil, &domain.InsufficientStockError{
					ProductID: 1, ProductName: "Coffee", Requested: 500, Available: 100,
				})
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "insufficient_payment",
			body: `{"items":[{"product_id":1,"quantity":1}],"amount_paid":"1.00","payment_method":"cash"}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).Return(nil, &domain.InsufficientPaymentError{
					Total: decimal.RequireFromString("2.50"), Paid: decimal.NewFromInt(1),
				})
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ledger := mocks.NewMockLedgerService(ctrl)
			tt.setupMocks(ledger)

			h := handlers.NewSaleHandler(ledger, nil, helpers.TestLogger())
			req := withEmployee(httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString(tt.body)))
			w := httptest.NewRecorder()
			h.RecordSale(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestSaleHandler_SyncPending(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)
		tasks := mocks.NewMockTaskEnqueuer(ctrl)
		ledger.EXPECT().SyncPendingOfflineSales(gomock.Any()).Return(3, nil)

		h := handlers.NewSaleHandler(ledger, tasks, helpers.TestLogger())
		w := httptest.NewRecorder()
		h.SyncPending(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales/pending/sync", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]int
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp["synced"])
	})

	t.Run("async", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)
		tasks := mocks.NewMockTaskEnqueuer(ctrl)
		tasks.EXPECT().EnqueueSync(gomock.Any()).Return("task-9", nil)

		h := handlers.NewSaleHandler(ledger, tasks, helpers.TestLogger())
		w := httptest.NewRecorder()
		h.SyncPending(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales/pending/sync?async=true", nil))

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), "task-9")
	})

	t.Run("async_enqueue_failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tasks := mocks.NewMockTaskEnqueuer(ctrl)
		tasks.EXPECT().EnqueueSync(gomock.Any()).Return("", errors.New("redis down"))

		h := handlers.NewSaleHandler(mocks.NewMockLedgerService(ctrl), tasks, helpers.TestLogger())
		w := httptest.NewRecorder()
		h.SyncPending(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales/pending/sync?async=true", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("store_failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)
		ledger.EXPECT().SyncPendingOfflineSales(gomock.Any()).
			Return(0, &domain.PersistenceError{Op: "write", Key: "pos_sales", Err: errors.New("quota")})

		h := handlers.NewSaleHandler(ledger, nil, helpers.TestLogger())
		w := httptest.NewRecorder()
		h.SyncPending(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales/pending/sync?async=true", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSaleHandler_DeleteSale(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedgerService(ctrl)
	ledger.EXPECT().RequestSaleDeletion(gomock.Any(), int64(77)).
		Return(nil, &domain.NotFoundError{Resource: "sale", ID: 77})

	h := handlers.NewSaleHandler(ledger, nil, helpers.TestLogger())
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sales/77", nil)
	req.SetPathValue("id", "77")
	w := httptest.NewRecorder()
	h.DeleteSale(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("name", "is required"), http.StatusBadRequest},
		{domain.ErrEmptyCart, http.StatusBadRequest},
		{&domain.InsufficientStockError{}, http.StatusUnprocessableEntity},
		{&domain.InsufficientPaymentError{}, http.StatusUnprocessableEntity},
		{&domain.NotFoundError{Resource: "sale", ID: 1}, http.StatusNotFound},
		{domain.ErrInvalidConfirmation, http.StatusGone},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrSessionExpired, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{&domain.PersistenceError{Op: "read", Key: "pos_sales", Err: errors.New("x")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, handlers.StatusFor(tt.err), tt.err.Error())
	}
}
