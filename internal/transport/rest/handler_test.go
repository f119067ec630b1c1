package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordererrors "github.com/ordertrack/ordertrack/internal/errors"
	"github.com/ordertrack/ordertrack/internal/order"
	"github.com/ordertrack/ordertrack/internal/service"
)

// mockService implements service.OrderService with overridable funcs.
type mockService struct {
	createFn             func(ctx context.Context, dto service.OrderCreateDto) (*order.Order, error)
	getFn                func(ctx context.Context, id int64) (*order.Order, error)
	getByOwnerFn         func(ctx context.Context, owner string) (*order.Order, error)
	listFn               func(ctx context.Context) ([]order.Order, error)
	addItemFn            func(ctx context.Context, id int64, dto service.ItemCreateDto) (*order.Order, error)
	updateItemQuantityFn func(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error)
	removeItemFn         func(ctx context.Context, id, itemID int64) (*order.Order, error)
	clearFn              func(ctx context.Context, id int64) (bool, error)
	deleteFn             func(ctx context.Context, id int64) (bool, error)
	updateStatusFn       func(ctx context.Context, id int64, rawStatus string) (*order.Order, error)
}

func (m *mockService) Create(ctx context.Context, dto service.OrderCreateDto) (*order.Order, error) {
	return m.createFn(ctx, dto)
}

func (m *mockService) Get(ctx context.Context, id int64) (*order.Order, error) {
	return m.getFn(ctx, id)
}

func (m *mockService) GetByOwner(ctx context.Context, owner string) (*order.Order, error) {
	return m.getByOwnerFn(ctx, owner)
}

func (m *mockService) List(ctx context.Context) ([]order.Order, error) {
	return m.listFn(ctx)
}

func (m *mockService) AddItem(ctx context.Context, id int64, dto service.ItemCreateDto) (*order.Order, error) {
	return m.addItemFn(ctx, id, dto)
}

func (m *mockService) UpdateItemQuantity(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
	return m.updateItemQuantityFn(ctx, id, itemID, quantity)
}

func (m *mockService) RemoveItem(ctx context.Context, id, itemID int64) (*order.Order, error) {
	return m.removeItemFn(ctx, id, itemID)
}

func (m *mockService) Clear(ctx context.Context, id int64) (bool, error) {
	return m.clearFn(ctx, id)
}

func (m *mockService) Delete(ctx context.Context, id int64) (bool, error) {
	return m.deleteFn(ctx, id)
}

func (m *mockService) UpdateStatus(ctx context.Context, id int64, rawStatus string) (*order.Order, error) {
	return m.updateStatusFn(ctx, id, rawStatus)
}

func newRouter(svc service.OrderService) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(svc, slog.New(slog.DiscardHandler)).RegisterRoutes(r)
	return r
}

func testOrder(id int64) *order.Order {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	o := &order.Order{
		ID:        id,
		Owner:     "u1",
		Items:     []order.LineItem{{ID: 1, ProductRef: "p1", Name: "Coffee", Quantity: 2, UnitPrice: 1000}},
		Status:    order.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.RecordStatus(order.StatusPending, now)
	o.Recompute()
	return o
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func Test_Handler_Create(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		createFn   func(ctx context.Context, dto service.OrderCreateDto) (*order.Order, error)
		wantStatus int
		wantBody   string
	}{
		{
			name: "created",
			body: `{"owner":"u1"}`,
			createFn: func(_ context.Context, dto service.OrderCreateDto) (*order.Order, error) {
				return testOrder(1), nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing owner",
			body:       `{"items":[]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"validation_errors":{"Owner":"failed on rule: required"}}`,
		},
		{
			name:       "invalid item in seed",
			body:       `{"owner":"u1","items":[{"productRef":"p1","name":"Coffee","quantity":0,"unitPrice":100}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"owner":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid request body"}`,
		},
		{
			name: "owner conflict",
			body: `{"owner":"u1"}`,
			createFn: func(_ context.Context, dto service.OrderCreateDto) (*order.Order, error) {
				return nil, ordererrors.ErrOwnerConflict
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "store failure",
			body: `{"owner":"u1"}`,
			createFn: func(_ context.Context, dto service.OrderCreateDto) (*order.Order, error) {
				return nil, ordererrors.ErrCreateOrder
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newRouter(&mockService{createFn: tc.createFn})
			// when
			rr := doRequest(t, router, http.MethodPost, "/api/v1/orders/", tc.body)
			// then
			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, rr.Body.String())
			}
			if tc.wantStatus == http.StatusCreated {
				var got order.Order
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
				assert.Equal(t, int64(1), got.ID)
				assert.Equal(t, int64(2000), got.Total)
			}
		})
	}
}

func Test_Handler_Get(t *testing.T) {
	testCases := []struct {
		name       string
		target     string
		getFn      func(ctx context.Context, id int64) (*order.Order, error)
		wantStatus int
	}{
		{
			name:   "found",
			target: "/api/v1/orders/1",
			getFn: func(_ context.Context, id int64) (*order.Order, error) {
				return testOrder(id), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "not found",
			target: "/api/v1/orders/99",
			getFn: func(_ context.Context, id int64) (*order.Order, error) {
				return nil, ordererrors.ErrOrderNotFound
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "non-numeric id",
			target:     "/api/v1/orders/abc",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero id",
			target:     "/api/v1/orders/0",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newRouter(&mockService{getFn: tc.getFn})
			// when
			rr := doRequest(t, router, http.MethodGet, tc.target, "")
			// then
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func Test_Handler_GetByOwner(t *testing.T) {
	// given
	router := newRouter(&mockService{
		getByOwnerFn: func(_ context.Context, owner string) (*order.Order, error) {
			if owner == "u1" {
				return testOrder(1), nil
			}
			return nil, ordererrors.ErrOrderNotFound
		},
	})

	// when / then
	rr := doRequest(t, router, http.MethodGet, "/api/v1/orders/owner/u1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/api/v1/orders/owner/nobody", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func Test_Handler_List(t *testing.T) {
	// given
	router := newRouter(&mockService{
		listFn: func(_ context.Context) ([]order.Order, error) {
			return []order.Order{*testOrder(1), *testOrder(2)}, nil
		},
	})

	// when
	rr := doRequest(t, router, http.MethodGet, "/api/v1/orders/", "")

	// then
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var got []order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func Test_Handler_List_Empty(t *testing.T) {
	// given
	router := newRouter(&mockService{
		listFn: func(_ context.Context) ([]order.Order, error) {
			return []order.Order{}, nil
		},
	})

	// when
	rr := doRequest(t, router, http.MethodGet, "/api/v1/orders/", "")

	// then: an empty registry serializes as an empty array, not null
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func Test_Handler_AddItem(t *testing.T) {
	testCases := []struct {
		name       string
		target     string
		body       string
		addItemFn  func(ctx context.Context, id int64, dto service.ItemCreateDto) (*order.Order, error)
		wantStatus int
	}{
		{
			name:   "added",
			target: "/api/v1/orders/1/items/",
			body:   `{"productRef":"p1","name":"Coffee","quantity":2,"unitPrice":1000}`,
			addItemFn: func(_ context.Context, id int64, dto service.ItemCreateDto) (*order.Order, error) {
				return testOrder(id), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "zero quantity rejected by validation",
			target:     "/api/v1/orders/1/items/",
			body:       `{"productRef":"p1","name":"Coffee","quantity":0,"unitPrice":1000}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing product reference",
			target:     "/api/v1/orders/1/items/",
			body:       `{"name":"Coffee","quantity":1,"unitPrice":1000}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown order",
			target: "/api/v1/orders/99/items/",
			body:   `{"productRef":"p1","name":"Coffee","quantity":1,"unitPrice":1000}`,
			addItemFn: func(_ context.Context, id int64, dto service.ItemCreateDto) (*order.Order, error) {
				return nil, ordererrors.ErrOrderNotFound
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newRouter(&mockService{addItemFn: tc.addItemFn})
			// when
			rr := doRequest(t, router, http.MethodPost, tc.target, tc.body)
			// then
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func Test_Handler_UpdateItemQuantity(t *testing.T) {
	testCases := []struct {
		name       string
		target     string
		body       string
		fn         func(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error)
		wantStatus int
	}{
		{
			name:   "updated",
			target: "/api/v1/orders/1/items/1",
			body:   `{"quantity":5}`,
			fn: func(_ context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
				return testOrder(id), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "zero removes the item",
			target: "/api/v1/orders/1/items/1",
			body:   `{"quantity":0}`,
			fn: func(_ context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
				o := testOrder(id)
				o.Items = []order.LineItem{}
				o.Recompute()
				return o, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "negative quantity rejected",
			target:     "/api/v1/orders/1/items/1",
			body:       `{"quantity":-1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown item",
			target: "/api/v1/orders/1/items/42",
			body:   `{"quantity":5}`,
			fn: func(_ context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
				return nil, ordererrors.ErrItemNotFound
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad item id",
			target:     "/api/v1/orders/1/items/abc",
			body:       `{"quantity":5}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newRouter(&mockService{updateItemQuantityFn: tc.fn})
			// when
			rr := doRequest(t, router, http.MethodPut, tc.target, tc.body)
			// then
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func Test_Handler_RemoveItem(t *testing.T) {
	// given
	router := newRouter(&mockService{
		removeItemFn: func(_ context.Context, id, itemID int64) (*order.Order, error) {
			if itemID == 1 {
				o := testOrder(id)
				o.Items = []order.LineItem{}
				o.Recompute()
				return o, nil
			}
			return nil, ordererrors.ErrItemNotFound
		},
	})

	// when / then
	rr := doRequest(t, router, http.MethodDelete, "/api/v1/orders/1/items/1", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/orders/1/items/42", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func Test_Handler_Clear(t *testing.T) {
	// given
	router := newRouter(&mockService{
		clearFn: func(_ context.Context, id int64) (bool, error) {
			return id == 1, nil
		},
	})

	// when / then
	rr := doRequest(t, router, http.MethodDelete, "/api/v1/orders/1/items/", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/orders/99/items/", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func Test_Handler_UpdateStatus(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		fn         func(ctx context.Context, id int64, rawStatus string) (*order.Order, error)
		wantStatus int
	}{
		{
			name: "updated",
			body: `{"status":"shipped"}`,
			fn: func(_ context.Context, id int64, rawStatus string) (*order.Order, error) {
				o := testOrder(id)
				o.Status = order.StatusShipped
				return o, nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "unrecognized status",
			body: `{"status":"teleported"}`,
			fn: func(_ context.Context, id int64, rawStatus string) (*order.Order, error) {
				return nil, ordererrors.ErrInvalidStatus
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "transition rejected",
			body: `{"status":"pending"}`,
			fn: func(_ context.Context, id int64, rawStatus string) (*order.Order, error) {
				return nil, ordererrors.ErrTransitionNotAllowed
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing status field",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			router := newRouter(&mockService{updateStatusFn: tc.fn})
			// when
			rr := doRequest(t, router, http.MethodPut, "/api/v1/orders/1/status", tc.body)
			// then
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func Test_Handler_Delete(t *testing.T) {
	// given
	router := newRouter(&mockService{
		deleteFn: func(_ context.Context, id int64) (bool, error) {
			return id == 1, nil
		},
	})

	// when / then
	rr := doRequest(t, router, http.MethodDelete, "/api/v1/orders/1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, router, http.MethodDelete, "/api/v1/orders/99", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func Test_Handler_HealthCheck(t *testing.T) {
	// given
	router := newRouter(&mockService{})
	// when
	rr := doRequest(t, router, http.MethodGet, "/healthz", "")
	// then
	assert.Equal(t, http.StatusOK, rr.Code)
}
