package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/engine"
)

// stubOrderService implements OrderService with overridable funcs.
type stubOrderService struct {
	submit     func(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error)
	cancel     func(ctx context.Context, offeringID, orderID, userID string) error
	listTrades func(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error)
}

func (s *stubOrderService) SubmitOrder(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error) {
	return s.submit(ctx, req)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, offeringID, orderID, userID string) error {
	return s.cancel(ctx, offeringID, orderID, userID)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}

func (s *stubOrderService) ListOpenOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) GetOrderBook(ctx context.Context, offeringID string) (engine.BookSnapshot, error) {
	return engine.BookSnapshot{OfferingID: offeringID}, nil
}

func (s *stubOrderService) ListTrades(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.listTrades(ctx, offeringID, opts)
}

func (s *stubOrderService) ListUserTrades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitOrderStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result domain.SubmitResult
		err    error
		want   int
	}{
		{"created", domain.SubmitResult{OrderID: "ord-1", Status: domain.OrderStatusActive}, nil, http.StatusCreated},
		{"risk blocked", domain.SubmitResult{
			OrderID: "ord-1", Status: domain.OrderStatusRejected,
			Rejection: &domain.RiskDecision{LimitName: domain.LimitPositionPerOffer},
		}, nil, http.StatusUnprocessableEntity},
		{"invalid", domain.SubmitResult{}, domain.ErrInvalidOrder, http.StatusBadRequest},
		{"unknown offering", domain.SubmitResult{}, domain.ErrNotFound, http.StatusNotFound},
		{"market closed", domain.SubmitResult{}, domain.ErrMarketClosed, http.StatusConflict},
		{"rate limited", domain.SubmitResult{}, domain.ErrRateLimited, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubOrderService{
				submit: func(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error) {
					return tt.result, tt.err
				},
			}
			h := NewOrderHandler(svc, testLogger())

			body := `{"offering_id":"off-1","side":"buy","shares":10,"price_cents":4000,"tif":"GTC"}`
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			req.Header.Set("X-User-ID", "alice")
			rec := httptest.NewRecorder()
			h.SubmitOrder(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnprocessableEntity {
				var res domain.SubmitResult
				if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if res.Rejection == nil || res.Rejection.LimitName != domain.LimitPositionPerOffer {
					t.Errorf("body rejection = %+v, want the blocking decision", res.Rejection)
				}
			}
		})
	}
}

func TestSubmitOrderRequiresIdentityAndBody(t *testing.T) {
	svc := &stubOrderService{
		submit: func(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error) {
			t.Fatal("service called for an invalid request")
			return domain.SubmitResult{}, nil
		},
	}
	h := NewOrderHandler(svc, testLogger())

	// No user identity.
	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"offering_id":"off-1"}`))
	rec := httptest.NewRecorder()
	h.SubmitOrder(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without identity = %d, want 400", rec.Code)
	}

	// Malformed JSON.
	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{`))
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.SubmitOrder(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status with bad body = %d, want 400", rec.Code)
	}

	// Missing offering.
	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"side":"buy"}`))
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	h.SubmitOrder(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without offering = %d, want 400", rec.Code)
	}
}

func TestSubmitOrderUserFromQueryFallback(t *testing.T) {
	var got engine.SubmitRequest
	svc := &stubOrderService{
		submit: func(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error) {
			got = req
			return domain.SubmitResult{OrderID: "ord-1", Status: domain.OrderStatusActive}, nil
		},
	}
	h := NewOrderHandler(svc, testLogger())

	body := `{"offering_id":"off-1","side":"sell","shares":5,"price_cents":4200,"tif":"day"}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders?user_id=bob", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SubmitOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if got.UserID != "bob" {
		t.Errorf("UserID = %q, want bob from the query fallback", got.UserID)
	}
	if got.Side != domain.OrderSideSell || got.TIF != domain.TIFDay {
		t.Errorf("request = %+v, want sell/day passed through", got)
	}
}

func TestCancelOrderStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cancelled", nil, http.StatusOK},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"already filled", domain.ErrAlreadyFilled, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubOrderService{
				cancel: func(ctx context.Context, offeringID, orderID, userID string) error {
					if offeringID != "off-1" || orderID != "ord-1" || userID != "alice" {
						t.Errorf("cancel args = %s/%s/%s", offeringID, orderID, userID)
					}
					return tt.err
				},
			}
			h := NewOrderHandler(svc, testLogger())

			req := httptest.NewRequest(http.MethodDelete, "/api/offerings/off-1/orders/ord-1", nil)
			req.Header.Set("X-User-ID", "alice")
			req.SetPathValue("id", "off-1")
			req.SetPathValue("order_id", "ord-1")
			rec := httptest.NewRecorder()
			h.CancelOrder(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListTradesEmptyAndPagination(t *testing.T) {
	var gotOpts domain.ListOpts
	svc := &stubOrderService{
		listTrades: func(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error) {
			gotOpts = opts
			return nil, nil
		},
	}
	h := NewOrderHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/offerings/off-1/trades?limit=9999&offset=20", nil)
	req.SetPathValue("id", "off-1")
	rec := httptest.NewRecorder()
	h.ListTrades(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// A nil service result still renders an empty array, not null.
	if !strings.Contains(rec.Body.String(), `"trades":[]`) {
		t.Errorf("body = %s, want empty trades array", rec.Body.String())
	}
	if gotOpts.Limit != 500 {
		t.Errorf("Limit = %d, want clamped to 500", gotOpts.Limit)
	}
	if gotOpts.Offset != 20 {
		t.Errorf("Offset = %d, want 20", gotOpts.Offset)
	}
}
