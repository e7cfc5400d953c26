package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinicbill/internal/billing"
	"clinicbill/internal/middleware"
	"clinicbill/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// stubBillingService returns canned results so the tests exercise only
// routing, auth and status mapping.
type stubBillingService struct {
	session    service.SessionResponse
	confirmErr error
	getErr     error
	bill       service.BillResponse
	payErr     error
}

func (s *stubBillingService) OpenSession(_ context.Context, _ service.OpenSessionRequest) (service.SessionResponse, error) {
	return s.session, nil
}

func (s *stubBillingService) GetSession(_ context.Context, _ string) (service.SessionResponse, error) {
	if s.getErr != nil {
		return service.SessionResponse{}, s.getErr
	}
	return s.session, nil
}

func (s *stubBillingService) AddItem(_ context.Context, _ string, _ service.AddItemRequest) (service.SessionResponse, error) {
	return s.session, nil
}

func (s *stubBillingService) UpdateItem(_ context.Context, _, _ string, _ service.UpdateItemRequest) (service.SessionResponse, error) {
	return s.session, nil
}

func (s *stubBillingService) RemoveItem(_ context.Context, _, _ string) (service.SessionResponse, error) {
	return s.session, nil
}

func (s *stubBillingService) Confirm(_ context.Context, _ string) (service.ConfirmResponse, error) {
	if s.confirmErr != nil {
		return service.ConfirmResponse{}, s.confirmErr
	}
	return service.ConfirmResponse{BillID: "b1"}, nil
}

func (s *stubBillingService) Cancel(_ context.Context, _ string) error { return nil }

func (s *stubBillingService) ListBills(_ context.Context, _ service.BillFilter) ([]service.BillResponse, int64, error) {
	return []service.BillResponse{s.bill}, 1, nil
}

func (s *stubBillingService) GetBill(_ context.Context, _ string) (service.BillResponse, error) {
	return s.bill, nil
}

func (s *stubBillingService) PayBill(_ context.Context, _ string, _ service.PayBillRequest) (service.BillResponse, error) {
	if s.payErr != nil {
		return service.BillResponse{}, s.payErr
	}
	return s.bill, nil
}

func setupRouter(svc service.BillingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewBillingHandler(svc).RegisterRoutes(&router.RouterGroup)
	return router
}

func mintToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionsRequireAuth(t *testing.T) {
	router := setupRouter(&stubBillingService{})

	w := doJSON(t, router, http.MethodPost, "/api/billing/sessions", "", gin.H{
		"patient_id": "p", "record_id": "r",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestBillsForbiddenForDoctor(t *testing.T) {
	router := setupRouter(&stubBillingService{})
	token := mintToken(t, "doctor")

	w := doJSON(t, router, http.MethodGet, "/api/bills", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestOpenSessionReturnsEnvelope(t *testing.T) {
	router := setupRouter(&stubBillingService{
		session: service.SessionResponse{SessionID: "s1", InvoiceNo: "INV-20260831-101500", PatientName: "Alice"},
	})
	token := mintToken(t, "cashier")

	w := doJSON(t, router, http.MethodPost, "/api/billing/sessions", token, gin.H{
		"patient_id": "p", "record_id": "r",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Status string                  `json:"status"`
		Data   service.SessionResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Status != "success" {
		t.Fatalf("envelope status = %q", envelope.Status)
	}
	if envelope.Data.SessionID != "s1" || envelope.Data.PatientName != "Alice" {
		t.Fatalf("unexpected data: %+v", envelope.Data)
	}
}

func TestOpenSessionRejectsMissingFields(t *testing.T) {
	router := setupRouter(&stubBillingService{})
	token := mintToken(t, "doctor")

	w := doJSON(t, router, http.MethodPost, "/api/billing/sessions", token, gin.H{"patient_id": "p"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetUnknownSessionNotFound(t *testing.T) {
	router := setupRouter(&stubBillingService{getErr: service.ErrSessionNotFound})
	token := mintToken(t, "admin")

	w := doJSON(t, router, http.MethodGet, "/api/billing/sessions/s1", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestConfirmValidationUnprocessable(t *testing.T) {
	router := setupRouter(&stubBillingService{
		confirmErr: fmt.Errorf("empty: %w", billing.ErrEmptyBill),
	})
	token := mintToken(t, "cashier")

	w := doJSON(t, router, http.MethodPost, "/api/billing/sessions/s1/confirm", token, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestConfirmClosedSessionNotFound(t *testing.T) {
	router := setupRouter(&stubBillingService{confirmErr: billing.ErrClosed})
	token := mintToken(t, "cashier")

	w := doJSON(t, router, http.MethodPost, "/api/billing/sessions/s1/confirm", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestPayBill(t *testing.T) {
	router := setupRouter(&stubBillingService{
		bill: service.BillResponse{ID: "b1", Status: "PAID"},
	})
	token := mintToken(t, "cashier")

	w := doJSON(t, router, http.MethodPut, "/api/bills/b1/pay", token, gin.H{"payment_method": "cash"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data service.BillResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != "PAID" {
		t.Fatalf("bill status = %q, want PAID", envelope.Data.Status)
	}
}

func TestPayBillRequiresMethod(t *testing.T) {
	router := setupRouter(&stubBillingService{})
	token := mintToken(t, "admin")

	w := doJSON(t, router, http.MethodPut, "/api/bills/b1/pay", token, gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
