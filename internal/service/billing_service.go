package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinicbill/internal/billing"
	"clinicbill/internal/i18n"
	"clinicbill/internal/model"
	"clinicbill/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Billing event names broadcast over the websocket hub
const (
	EventItemChanged      = "billing.item_changed"
	EventTotalChanged     = "billing.total_changed"
	EventSessionCancelled = "billing.session_cancelled"
	EventBillConfirmed    = "bill.confirmed"
	EventBillPaid         = "bill.paid"
)

var ErrSessionNotFound = errors.New("billing session not found")

// EventPublisher pushes a typed event to connected clients. Satisfied by
// the websocket Hub; tests substitute a recorder.
type EventPublisher interface {
	Publish(event string, data interface{})
}

// --- DTOs ---

type OpenSessionRequest struct {
	PatientID  string `json:"patient_id" binding:"required"`
	RecordID   string `json:"record_id" binding:"required"`
	DoctorName string `json:"doctor_name"`
}

// AddItemRequest carries optional initial fields for a new line. Quantity
// and price stay strings end to end: the editor coerces bad numeric input
// to zero instead of rejecting it.
type AddItemRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
}

type UpdateItemRequest struct {
	Field string `json:"field" binding:"required,oneof=name type quantity price"`
	Value string `json:"value"`
}

type PayBillRequest struct {
	PaymentMethod         string `json:"payment_method" binding:"required"`
	ProviderTransactionID string `json:"provider_transaction_id"`
}

type SessionItemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Subtotal string `json:"subtotal"`
}

type SessionResponse struct {
	SessionID   string                `json:"session_id"`
	InvoiceNo   string                `json:"invoice_no"`
	PatientName string                `json:"patient_name"`
	DoctorName  string                `json:"doctor_name"`
	Items       []SessionItemResponse `json:"items"`
	Total       string                `json:"total"`
}

type ConfirmResponse struct {
	BillID  string           `json:"bill_id"`
	Payload *billing.Payload `json:"payload"`
}

type BillItemResponse struct {
	ItemName  string `json:"item_name"`
	ItemType  string `json:"item_type"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type BillResponse struct {
	ID                    string             `json:"id"`
	InvoiceNo             string             `json:"invoice_no"`
	PatientID             string             `json:"patient_id"`
	PatientName           string             `json:"patient_name,omitempty"`
	MedicalRecordID       string             `json:"medical_record_id"`
	DoctorName            string             `json:"doctor_name"`
	BillDate              string             `json:"bill_date"`
	TotalAmount           string             `json:"total_amount"`
	Status                string             `json:"status"`
	PaymentMethod         *string            `json:"payment_method"`
	ProviderTransactionID *string            `json:"provider_transaction_id"`
	PaidAt                *string            `json:"paid_at"`
	Items                 []BillItemResponse `json:"items,omitempty"`
}

type BillFilter struct {
	Status    string
	PatientID string
	Page      int
	Limit     int
}

// --- Interface ---

type BillingService interface {
	OpenSession(ctx context.Context, req OpenSessionRequest) (SessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (SessionResponse, error)
	AddItem(ctx context.Context, sessionID string, req AddItemRequest) (SessionResponse, error)
	UpdateItem(ctx context.Context, sessionID, itemID string, req UpdateItemRequest) (SessionResponse, error)
	RemoveItem(ctx context.Context, sessionID, itemID string) (SessionResponse, error)
	Confirm(ctx context.Context, sessionID string) (ConfirmResponse, error)
	Cancel(ctx context.Context, sessionID string) error
	ListBills(ctx context.Context, filter BillFilter) ([]BillResponse, int64, error)
	GetBill(ctx context.Context, id string) (BillResponse, error)
	PayBill(ctx context.Context, id string, req PayBillRequest) (BillResponse, error)
}

// BillingConfig tunes editor timing; zero values give production defaults.
type BillingConfig struct {
	SeedDelay   time.Duration
	SubmitDelay time.Duration
}

type billingService struct {
	manager     *billing.Manager
	patientRepo repository.PatientRepository
	billRepo    repository.BillRepository
	txManager   repository.TransactionManager
	hub         EventPublisher
	translate   i18n.Translator
	submitDelay time.Duration
}

func NewBillingService(
	patientRepo repository.PatientRepository,
	billRepo repository.BillRepository,
	txManager repository.TransactionManager,
	hub EventPublisher,
	translate i18n.Translator,
	cfg BillingConfig,
) BillingService {
	submitDelay := cfg.SubmitDelay
	if submitDelay == 0 {
		submitDelay = 400 * time.Millisecond
	}
	return &billingService{
		manager: billing.NewManager(billing.ManagerConfig{
			SeedDelay: cfg.SeedDelay,
			SeedName:  translate("billing.item.consultation_fee"),
		}),
		patientRepo: patientRepo,
		billRepo:    billRepo,
		txManager:   txManager,
		hub:         hub,
		translate:   translate,
		submitDelay: submitDelay,
	}
}

// --- Implementation ---

func (s *billingService) OpenSession(ctx context.Context, req OpenSessionRequest) (SessionResponse, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("invalid patient_id: %w", err)
	}
	recordID, err := uuid.Parse(req.RecordID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("invalid record_id: %w", err)
	}

	patient, err := s.patientRepo.FindByID(ctx, patientID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("patient not found: %w", err)
	}
	record, err := s.patientRepo.FindRecordByID(ctx, recordID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("medical record not found: %w", err)
	}
	if record.PatientID != patient.ID {
		return SessionResponse{}, errors.New("medical record does not belong to this patient")
	}

	doctorName := req.DoctorName
	if doctorName == "" {
		doctorName = record.DoctorName
	}

	sess := s.manager.Open(billing.Options{
		PatientName: patient.FullName,
		PatientID:   patient.ID.String(),
		RecordID:    record.ID.String(),
		DoctorName:  doctorName,
		SubmitDelay: s.submitDelay,
		OnCancel: func() {
			s.publish(EventSessionCancelled, nil)
		},
	})

	// Observers need the session id, which only exists now.
	sessionID := sess.ID.String()
	sess.Draft.SetObservers(
		func(li billing.LineItem) {
			s.publish(EventItemChanged, map[string]interface{}{
				"session_id": sessionID,
				"item_id":    li.ID.String(),
				"name":       li.Name,
				"type":       li.Type,
				"quantity":   li.Quantity,
				"price":      li.Price.StringFixed(2),
			})
		},
		func(total decimal.Decimal) {
			s.publish(EventTotalChanged, map[string]interface{}{
				"session_id": sessionID,
				"total":      total.Round(2).StringFixed(2),
			})
		},
	)

	return toSessionResponse(sess), nil
}

func (s *billingService) GetSession(ctx context.Context, sessionID string) (SessionResponse, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	return toSessionResponse(sess), nil
}

func (s *billingService) AddItem(ctx context.Context, sessionID string, req AddItemRequest) (SessionResponse, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return SessionResponse{}, err
	}

	item, err := sess.Draft.AddItem(billing.LineItem{Name: req.Name, Type: req.Type})
	if err != nil {
		return SessionResponse{}, err
	}
	// Quantity and price go through the coercing update path so bad input
	// clamps to zero exactly like an in-place edit would.
	if req.Quantity != "" {
		sess.Draft.UpdateItem(item.ID, "quantity", req.Quantity)
	}
	if req.Price != "" {
		sess.Draft.UpdateItem(item.ID, "price", req.Price)
	}

	return toSessionResponse(sess), nil
}

func (s *billingService) UpdateItem(ctx context.Context, sessionID, itemID string, req UpdateItemRequest) (SessionResponse, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	id, err := uuid.Parse(itemID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("invalid item id: %w", err)
	}

	// Unknown ids are a deliberate no-op inside the draft.
	sess.Draft.UpdateItem(id, req.Field, req.Value)
	return toSessionResponse(sess), nil
}

func (s *billingService) RemoveItem(ctx context.Context, sessionID, itemID string) (SessionResponse, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	id, err := uuid.Parse(itemID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("invalid item id: %w", err)
	}

	sess.Draft.RemoveItem(id)
	return toSessionResponse(sess), nil
}

func (s *billingService) Confirm(ctx context.Context, sessionID string) (ConfirmResponse, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return ConfirmResponse{}, err
	}

	payload, err := sess.Draft.Confirm()
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrEmptyBill):
			return ConfirmResponse{}, fmt.Errorf("%s: %w", s.translate("billing.error.empty"), err)
		case errors.Is(err, billing.ErrIncompleteItem):
			return ConfirmResponse{}, fmt.Errorf("%s: %w", s.translate("billing.error.incomplete"), err)
		default:
			return ConfirmResponse{}, err
		}
	}

	patientID, err := uuid.Parse(payload.Bill.PatientID)
	if err != nil {
		return ConfirmResponse{}, fmt.Errorf("invalid patient id in payload: %w", err)
	}
	recordID, err := uuid.Parse(payload.Bill.MedicalRecordID)
	if err != nil {
		return ConfirmResponse{}, fmt.Errorf("invalid record id in payload: %w", err)
	}

	// Persist from the draft's decimal values; the payload's floats are for
	// the wire only.
	draftItems := sess.Draft.Items()

	bill := model.Bill{
		InvoiceNo:       payload.Bill.InvoiceNumber,
		PatientID:       patientID,
		MedicalRecordID: recordID,
		DoctorName:      sess.Draft.DoctorName(),
		BillDate:        sess.Draft.CreatedAt(),
		TotalAmount:     sess.Draft.Total().Round(2),
		Status:          model.BillStatusUnpaid,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.billRepo.Create(txCtx, &bill); txErr != nil {
			return fmt.Errorf("failed to create bill: %w", txErr)
		}
		items := make([]model.BillItem, 0, len(draftItems))
		for _, li := range draftItems {
			items = append(items, model.BillItem{
				BillID:    bill.ID,
				ItemName:  li.Name,
				ItemType:  li.Type,
				Quantity:  li.Quantity,
				UnitPrice: li.Price.Round(2),
				Subtotal:  li.Subtotal().Round(2),
			})
		}
		if txErr := s.billRepo.CreateItems(txCtx, items); txErr != nil {
			return fmt.Errorf("failed to create bill items: %w", txErr)
		}
		return nil
	})
	if err != nil {
		// The draft is already closed, so free the session slot instead of
		// leaving a wedged handle that can never confirm again.
		s.manager.Release(sess.ID)
		return ConfirmResponse{}, err
	}

	s.manager.Release(sess.ID)
	s.publish(EventBillConfirmed, payload)

	return ConfirmResponse{BillID: bill.ID.String(), Payload: payload}, nil
}

func (s *billingService) Cancel(ctx context.Context, sessionID string) error {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return err
	}
	sess.Draft.Cancel()
	s.manager.Release(sess.ID)
	return nil
}

func (s *billingService) ListBills(ctx context.Context, filter BillFilter) ([]BillResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	bills, total, err := s.billRepo.List(ctx, repository.BillListFilter{
		Status:    filter.Status,
		PatientID: filter.PatientID,
		Page:      filter.Page,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch bills: %w", err)
	}

	result := make([]BillResponse, 0, len(bills))
	for _, b := range bills {
		result = append(result, toBillResponse(b))
	}
	return result, total, nil
}

func (s *billingService) GetBill(ctx context.Context, id string) (BillResponse, error) {
	billID, err := uuid.Parse(id)
	if err != nil {
		return BillResponse{}, fmt.Errorf("invalid bill id: %w", err)
	}

	bill, err := s.billRepo.FindByIDWithItems(ctx, billID)
	if err != nil {
		return BillResponse{}, fmt.Errorf("bill not found: %w", err)
	}
	return toBillResponse(*bill), nil
}

func (s *billingService) PayBill(ctx context.Context, id string, req PayBillRequest) (BillResponse, error) {
	billID, err := uuid.Parse(id)
	if err != nil {
		return BillResponse{}, fmt.Errorf("invalid bill id: %w", err)
	}

	var bill *model.Bill
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		bill, findErr = s.billRepo.FindByID(txCtx, billID)
		if findErr != nil {
			return fmt.Errorf("bill not found: %w", findErr)
		}

		if bill.Status != model.BillStatusUnpaid {
			return fmt.Errorf("bill is already %s", bill.Status)
		}

		now := time.Now()
		bill.Status = model.BillStatusPaid
		bill.PaymentMethod = &req.PaymentMethod
		if req.ProviderTransactionID != "" {
			bill.ProviderTransactionID = &req.ProviderTransactionID
		}
		bill.PaidAt = &now

		if updateErr := s.billRepo.UpdatePayment(txCtx, bill); updateErr != nil {
			return fmt.Errorf("failed to update bill: %w", updateErr)
		}
		return nil
	})
	if err != nil {
		return BillResponse{}, err
	}

	resp := toBillResponse(*bill)
	s.publish(EventBillPaid, resp)
	return resp, nil
}

// --- Helpers ---

func (s *billingService) findSession(sessionID string) (*billing.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	sess, ok := s.manager.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *billingService) publish(event string, data interface{}) {
	if s.hub != nil {
		s.hub.Publish(event, data)
	}
}

// --- Mapping ---

func toSessionResponse(sess *billing.Session) SessionResponse {
	items := sess.Draft.Items()
	itemResponses := make([]SessionItemResponse, 0, len(items))
	for _, li := range items {
		itemResponses = append(itemResponses, SessionItemResponse{
			ID:       li.ID.String(),
			Name:     li.Name,
			Type:     li.Type,
			Quantity: li.Quantity,
			Price:    li.Price.StringFixed(2),
			Subtotal: li.Subtotal().StringFixed(2),
		})
	}

	return SessionResponse{
		SessionID:   sess.ID.String(),
		InvoiceNo:   sess.Draft.InvoiceNumber(),
		PatientName: sess.Draft.PatientName(),
		DoctorName:  sess.Draft.DoctorName(),
		Items:       itemResponses,
		Total:       sess.Draft.Total().Round(2).StringFixed(2),
	}
}

func toBillResponse(bill model.Bill) BillResponse {
	resp := BillResponse{
		ID:                    bill.ID.String(),
		InvoiceNo:             bill.InvoiceNo,
		PatientID:             bill.PatientID.String(),
		MedicalRecordID:       bill.MedicalRecordID.String(),
		DoctorName:            bill.DoctorName,
		BillDate:              bill.BillDate.Format(time.RFC3339),
		TotalAmount:           bill.TotalAmount.StringFixed(2),
		Status:                bill.Status,
		PaymentMethod:         bill.PaymentMethod,
		ProviderTransactionID: bill.ProviderTransactionID,
	}

	if bill.Patient != nil {
		resp.PatientName = bill.Patient.FullName
	}
	if bill.PaidAt != nil {
		s := bill.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	for _, it := range bill.Items {
		resp.Items = append(resp.Items, BillItemResponse{
			ItemName:  it.ItemName,
			ItemType:  it.ItemType,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Subtotal:  it.Subtotal.StringFixed(2),
		})
	}

	return resp
}
