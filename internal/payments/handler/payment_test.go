package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "tutorhub/pkg/errors"
	"tutorhub/pkg/logger"
	"tutorhub/pkg/middleware"
	"tutorhub/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
)

type mockPaymentService struct {
	createFunc func(ctx context.Context, actor model.Actor, input *model.CreatePaymentInput) (*model.Payment, error)
	rejectFunc func(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error)
}

func (m *mockPaymentService) Create(ctx context.Context, actor model.Actor, input *model.CreatePaymentInput) (*model.Payment, error) {
	return m.createFunc(ctx, actor, input)
}

func (m *mockPaymentService) Reject(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
	return m.rejectFunc(ctx, id, actor, input)
}

func (m *mockPaymentService) Cancel(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
	return &model.Payment{ID: id, Status: model.PaymentCancelled}, nil
}

func (m *mockPaymentService) GetByID(ctx context.Context, id string, actor model.Actor) (*model.Payment, error) {
	return &model.Payment{ID: id, Status: model.PaymentPending}, nil
}

func (m *mockPaymentService) ListPending(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Payment, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("admins only")
	}
	return []*model.Payment{{ID: "p-1"}}, 1, nil
}

func (m *mockPaymentService) ListForUser(ctx context.Context, actor model.Actor, userID string, limit int, offset int64) ([]*model.Payment, int64, error) {
	return []*model.Payment{}, 0, nil
}

func (m *mockPaymentService) Stats(ctx context.Context, actor model.Actor) (*model.PaymentStats, error) {
	return &model.PaymentStats{Total: 3, ConfirmedTotal: decimal.RequireFromString("150")}, nil
}

type mockCoordinator struct {
	calls int
	notes string
}

func (m *mockCoordinator) ConfirmPayment(ctx context.Context, id string, actor model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
	m.calls++
	m.notes = input.Notes
	if id == "slow" {
		return nil, apperrors.SettlementTimeout(id, context.DeadlineExceeded)
	}
	return &model.Payment{ID: id, Status: model.PaymentConfirmed, ConfirmedBy: actor.ID}, nil
}

var (
	student = &model.Actor{ID: "stud-1", Role: model.RoleStudent}
	admin   = &model.Actor{ID: "admin-1", Role: model.RoleAdmin}
)

func newRouter(svc *mockPaymentService, coord *mockCoordinator) *httprouter.Router {
	if coord == nil {
		coord = &mockCoordinator{}
	}
	router := httprouter.New()
	NewPaymentHandler(svc, coord, logger.Discard()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, actor *model.Actor, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreate_DefaultsPayerToCaller(t *testing.T) {
	var received *model.CreatePaymentInput
	svc := &mockPaymentService{createFunc: func(_ context.Context, _ model.Actor, input *model.CreatePaymentInput) (*model.Payment, error) {
		received = input
		return &model.Payment{ID: "p-1", Amount: input.Amount}, nil
	}}

	rec := serve(newRouter(svc, nil), student, http.MethodPost, "/api/v1/payments",
		`{"booking_id":"b-1","amount":"75.00"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if received.UserID != "stud-1" {
		t.Errorf("UserID = %q, want the caller", received.UserID)
	}
	if !received.Amount.Equal(decimal.RequireFromString("75")) {
		t.Errorf("Amount = %s", received.Amount)
	}
}

func TestConfirm_RoutesToSettlement(t *testing.T) {
	coord := &mockCoordinator{}
	router := newRouter(&mockPaymentService{}, coord)

	rec := serve(router, admin, http.MethodPost, "/api/v1/payments/id/p-1/confirm", `{"notes":"checked"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if coord.calls != 1 || coord.notes != "checked" {
		t.Errorf("coordinator calls=%d notes=%q", coord.calls, coord.notes)
	}

	var body struct {
		Data model.Payment `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Data.Status != model.PaymentConfirmed {
		t.Errorf("status = %s", body.Data.Status)
	}
}

func TestConfirm_TimeoutIsRetryable(t *testing.T) {
	rec := serve(newRouter(&mockPaymentService{}, nil), admin, http.MethodPost, "/api/v1/payments/id/slow/confirm", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Errorf("missing Retry-After")
	}
	var body apperrors.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != apperrors.CodeSettlementTimeout || !body.Retryable {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestReject_EmptyBody(t *testing.T) {
	var gotNotes *string
	svc := &mockPaymentService{rejectFunc: func(_ context.Context, id string, _ model.Actor, input *model.PaymentDecisionInput) (*model.Payment, error) {
		gotNotes = &input.Notes
		return &model.Payment{ID: id, Status: model.PaymentRejected}, nil
	}}

	rec := serve(newRouter(svc, nil), admin, http.MethodPost, "/api/v1/payments/id/p-1/reject", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotNotes == nil || *gotNotes != "" {
		t.Errorf("expected an empty decision input")
	}
}

func TestStaticRoutes(t *testing.T) {
	router := newRouter(&mockPaymentService{}, nil)

	tests := []struct {
		name   string
		actor  *model.Actor
		target string
		status int
	}{
		{"pending as admin", admin, "/api/v1/payments/pending", http.StatusOK},
		{"pending as student", student, "/api/v1/payments/pending", http.StatusForbidden},
		{"stats", admin, "/api/v1/payments/stats", http.StatusOK},
		{"by id", student, "/api/v1/payments/id/p-9", http.StatusOK},
		{"mine", student, "/api/v1/payments?limit=20", http.StatusOK},
		{"bad offset", student, "/api/v1/payments?offset=-", http.StatusBadRequest},
		{"anonymous", nil, "/api/v1/payments/stats", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.actor, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}
