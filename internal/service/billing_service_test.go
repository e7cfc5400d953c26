package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"clinicbill/internal/billing"
	"clinicbill/internal/i18n"
	"clinicbill/internal/model"
	"clinicbill/internal/repository"

	"github.com/google/uuid"
)

// -- Mock repositories --

type mockPatientRepo struct {
	patients map[uuid.UUID]*model.Patient
	records  map[uuid.UUID]*model.MedicalRecord
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients: make(map[uuid.UUID]*model.Patient),
		records:  make(map[uuid.UUID]*model.MedicalRecord),
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *model.Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) List(_ context.Context, page, limit int) ([]model.Patient, int64, error) {
	var out []model.Patient
	for _, p := range m.patients {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (m *mockPatientRepo) FindRecordByID(_ context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return r, nil
}

func (m *mockPatientRepo) ListRecordsByPatient(_ context.Context, patientID uuid.UUID) ([]model.MedicalRecord, error) {
	var out []model.MedicalRecord
	for _, r := range m.records {
		if r.PatientID == patientID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockPatientRepo) CreateRecord(_ context.Context, r *model.MedicalRecord) error {
	r.ID = uuid.New()
	m.records[r.ID] = r
	return nil
}

type mockBillRepo struct {
	bills     map[uuid.UUID]*model.Bill
	items     map[uuid.UUID][]model.BillItem
	createErr error
}

func newMockBillRepo() *mockBillRepo {
	return &mockBillRepo{
		bills: make(map[uuid.UUID]*model.Bill),
		items: make(map[uuid.UUID][]model.BillItem),
	}
}

func (m *mockBillRepo) Create(_ context.Context, b *model.Bill) error {
	if m.createErr != nil {
		return m.createErr
	}
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.bills[b.ID] = b
	return nil
}

func (m *mockBillRepo) CreateItems(_ context.Context, items []model.BillItem) error {
	for _, it := range items {
		m.items[it.BillID] = append(m.items[it.BillID], it)
	}
	return nil
}

func (m *mockBillRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return b, nil
}

func (m *mockBillRepo) FindByIDWithItems(_ context.Context, id uuid.UUID) (*model.Bill, error) {
	b, err := m.FindByID(nil, id)
	if err != nil {
		return nil, err
	}
	copied := *b
	copied.Items = m.items[id]
	return &copied, nil
}

func (m *mockBillRepo) List(_ context.Context, filter repository.BillListFilter) ([]model.Bill, int64, error) {
	var out []model.Bill
	for _, b := range m.bills {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.PatientID != "" && b.PatientID.String() != filter.PatientID {
			continue
		}
		copied := *b
		copied.Items = m.items[b.ID]
		out = append(out, copied)
	}
	return out, int64(len(out)), nil
}

func (m *mockBillRepo) UpdatePayment(_ context.Context, b *model.Bill) error {
	m.bills[b.ID] = b
	return nil
}

type mockTxManager struct{}

func (mockTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingPublisher) Publish(event string, _ interface{}) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingPublisher) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

// -- Setup --

type billingFixture struct {
	svc      BillingService
	patients *mockPatientRepo
	bills    *mockBillRepo
	pub      *recordingPublisher
	patient  *model.Patient
	record   *model.MedicalRecord
}

func setupBilling(t *testing.T) *billingFixture {
	t.Helper()

	patients := newMockPatientRepo()
	bills := newMockBillRepo()
	pub := &recordingPublisher{}

	patient := &model.Patient{FullName: "Alice Nguyen"}
	if err := patients.Create(context.Background(), patient); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	record := &model.MedicalRecord{PatientID: patient.ID, DoctorName: "Dr. Tran", VisitDate: time.Now()}
	if err := patients.CreateRecord(context.Background(), record); err != nil {
		t.Fatalf("create record: %v", err)
	}

	svc := NewBillingService(patients, bills, mockTxManager{}, pub, i18n.New("en"), BillingConfig{
		SeedDelay:   -1, // deterministic: no async seeding in service tests
		SubmitDelay: -1,
	})

	return &billingFixture{svc: svc, patients: patients, bills: bills, pub: pub, patient: patient, record: record}
}

func (f *billingFixture) openSession(t *testing.T) SessionResponse {
	t.Helper()
	sess, err := f.svc.OpenSession(context.Background(), OpenSessionRequest{
		PatientID: f.patient.ID.String(),
		RecordID:  f.record.ID.String(),
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return sess
}

// -- Tests --

func TestOpenSessionResolvesPatient(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if sess.PatientName != "Alice Nguyen" {
		t.Fatalf("patient name = %q", sess.PatientName)
	}
	if sess.DoctorName != "Dr. Tran" {
		t.Fatalf("doctor name = %q, want record's doctor", sess.DoctorName)
	}
	if !strings.HasPrefix(sess.InvoiceNo, "INV-") {
		t.Fatalf("invoice no = %q", sess.InvoiceNo)
	}
	if len(sess.Items) != 0 {
		t.Fatalf("expected empty item list, got %d", len(sess.Items))
	}
}

func TestOpenSessionRejectsMismatchedRecord(t *testing.T) {
	f := setupBilling(t)

	other := &model.Patient{FullName: "Bob"}
	if err := f.patients.Create(context.Background(), other); err != nil {
		t.Fatalf("create patient: %v", err)
	}

	_, err := f.svc.OpenSession(context.Background(), OpenSessionRequest{
		PatientID: other.ID.String(),
		RecordID:  f.record.ID.String(),
	})
	if err == nil {
		t.Fatal("expected error for record belonging to a different patient")
	}
}

func TestAddAndUpdateItems(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	resp, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "X-ray", Type: billing.ItemExamination, Quantity: "2", Price: "80",
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	resp, err = f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "Drug A", Type: billing.ItemDrug, Quantity: "3", Price: "12.5",
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if resp.Total != "197.50" {
		t.Fatalf("total = %s, want 197.50", resp.Total)
	}

	// Garbage numeric input clamps to zero instead of erroring
	itemID := resp.Items[0].ID
	resp, err = f.svc.UpdateItem(context.Background(), sess.SessionID, itemID, UpdateItemRequest{
		Field: "price", Value: "12x.50",
	})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if resp.Items[0].Price != "0.00" {
		t.Fatalf("price = %s, want 0.00 after garbage input", resp.Items[0].Price)
	}

	if !f.pub.has(EventItemChanged) || !f.pub.has(EventTotalChanged) {
		t.Fatal("expected item and total change events")
	}
}

func TestRemoveItemRecomputesTotal(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	resp, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "X-ray", Type: billing.ItemExamination, Quantity: "2", Price: "80",
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	resp, err = f.svc.RemoveItem(context.Background(), sess.SessionID, resp.Items[0].ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(resp.Items) != 0 || resp.Total != "0.00" {
		t.Fatalf("items = %d, total = %s, want empty and 0.00", len(resp.Items), resp.Total)
	}

	// Removing a stale id is a no-op
	if _, err := f.svc.RemoveItem(context.Background(), sess.SessionID, uuid.NewString()); err != nil {
		t.Fatalf("stale remove: %v", err)
	}
}

func TestConfirmPersistsBill(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if _, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "Consultation", Type: billing.ItemConsultation, Quantity: "1", Price: "150",
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	result, err := f.svc.Confirm(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Payload.Bill.TotalAmount != 150.00 {
		t.Fatalf("payload total = %v, want 150.00", result.Payload.Bill.TotalAmount)
	}

	billID, err := uuid.Parse(result.BillID)
	if err != nil {
		t.Fatalf("bill id: %v", err)
	}
	stored, err := f.bills.FindByIDWithItems(context.Background(), billID)
	if err != nil {
		t.Fatalf("stored bill: %v", err)
	}
	if stored.Status != model.BillStatusUnpaid {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if stored.TotalAmount.StringFixed(2) != "150.00" {
		t.Fatalf("stored total = %s", stored.TotalAmount.StringFixed(2))
	}
	if len(stored.Items) != 1 {
		t.Fatalf("stored items = %d, want 1", len(stored.Items))
	}

	if !f.pub.has(EventBillConfirmed) {
		t.Fatal("expected bill.confirmed event")
	}

	// Session is gone after confirm
	if _, err := f.svc.GetSession(context.Background(), sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get after confirm = %v, want ErrSessionNotFound", err)
	}
}

func TestConfirmPersistsExactDecimals(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if _, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "Drug B", Type: billing.ItemDrug, Quantity: "3", Price: "19.99",
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	result, err := f.svc.Confirm(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	billID, err := uuid.Parse(result.BillID)
	if err != nil {
		t.Fatalf("bill id: %v", err)
	}
	stored, err := f.bills.FindByIDWithItems(context.Background(), billID)
	if err != nil {
		t.Fatalf("stored bill: %v", err)
	}
	if stored.TotalAmount.StringFixed(2) != "59.97" {
		t.Fatalf("stored total = %s, want 59.97", stored.TotalAmount.StringFixed(2))
	}
	if got := stored.Items[0].UnitPrice.StringFixed(2); got != "19.99" {
		t.Fatalf("stored unit price = %s, want 19.99", got)
	}
	if got := stored.Items[0].Subtotal.StringFixed(2); got != "59.97" {
		t.Fatalf("stored subtotal = %s, want 59.97", got)
	}
}

func TestConfirmReleasesSessionOnPersistFailure(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if _, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "Consultation", Type: billing.ItemConsultation, Quantity: "1", Price: "150",
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	f.bills.createErr = fmt.Errorf("connection refused")

	if _, err := f.svc.Confirm(context.Background(), sess.SessionID); err == nil {
		t.Fatal("expected persistence error")
	}
	if f.pub.has(EventBillConfirmed) {
		t.Fatal("no event may be published when persistence fails")
	}
	if len(f.bills.bills) != 0 {
		t.Fatal("no bill may be stored when persistence fails")
	}

	// The slot is freed: the session is gone and a new one can open
	if _, err := f.svc.GetSession(context.Background(), sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get after failed confirm = %v, want ErrSessionNotFound", err)
	}

	f.bills.createErr = nil
	next := f.openSession(t)
	if _, err := f.svc.GetSession(context.Background(), next.SessionID); err != nil {
		t.Fatalf("new session after failure: %v", err)
	}
}

func TestConfirmEmptyBillTranslatedError(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	_, err := f.svc.Confirm(context.Background(), sess.SessionID)
	if !errors.Is(err, billing.ErrEmptyBill) {
		t.Fatalf("confirm = %v, want ErrEmptyBill", err)
	}
	if !strings.Contains(err.Error(), "Please add at least one item") {
		t.Fatalf("error %q lacks translated message", err.Error())
	}

	// Session stays editable after the validation failure
	if _, err := f.svc.GetSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("get after failed confirm: %v", err)
	}
}

func TestConfirmIncompleteItemTranslatedError(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if _, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{Name: "No type"}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	_, err := f.svc.Confirm(context.Background(), sess.SessionID)
	if !errors.Is(err, billing.ErrIncompleteItem) {
		t.Fatalf("confirm = %v, want ErrIncompleteItem", err)
	}
	if !strings.Contains(err.Error(), "incomplete") {
		t.Fatalf("error %q lacks translated message", err.Error())
	}
}

func TestCancelReleasesSession(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if err := f.svc.Cancel(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !f.pub.has(EventSessionCancelled) {
		t.Fatal("expected session cancelled event")
	}
	if f.pub.has(EventBillConfirmed) {
		t.Fatal("cancel must not confirm")
	}
	if _, err := f.svc.GetSession(context.Background(), sess.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("get after cancel = %v, want ErrSessionNotFound", err)
	}
	if len(f.bills.bills) != 0 {
		t.Fatal("cancel must not persist anything")
	}
}

func TestSecondOpenSupersedesFirst(t *testing.T) {
	f := setupBilling(t)
	first := f.openSession(t)
	second := f.openSession(t)

	if _, err := f.svc.GetSession(context.Background(), first.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("first session = %v, want ErrSessionNotFound", err)
	}
	if _, err := f.svc.GetSession(context.Background(), second.SessionID); err != nil {
		t.Fatalf("second session: %v", err)
	}
}

func TestPayBill(t *testing.T) {
	f := setupBilling(t)
	sess := f.openSession(t)

	if _, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
		Name: "Consultation", Type: billing.ItemConsultation, Quantity: "1", Price: "150",
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	result, err := f.svc.Confirm(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	paid, err := f.svc.PayBill(context.Background(), result.BillID, PayBillRequest{
		PaymentMethod:         "cash",
		ProviderTransactionID: "TX-1",
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != model.BillStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}
	if paid.PaymentMethod == nil || *paid.PaymentMethod != "cash" {
		t.Fatalf("payment method = %v", paid.PaymentMethod)
	}
	if !f.pub.has(EventBillPaid) {
		t.Fatal("expected bill.paid event")
	}

	if _, err := f.svc.PayBill(context.Background(), result.BillID, PayBillRequest{PaymentMethod: "card"}); err == nil {
		t.Fatal("expected error paying an already paid bill")
	}
}

func TestListBillsFilterByStatus(t *testing.T) {
	f := setupBilling(t)

	for i := 0; i < 2; i++ {
		sess := f.openSession(t)
		if _, err := f.svc.AddItem(context.Background(), sess.SessionID, AddItemRequest{
			Name: "Consultation", Type: billing.ItemConsultation, Quantity: "1", Price: "150",
		}); err != nil {
			t.Fatalf("add item: %v", err)
		}
		if _, err := f.svc.Confirm(context.Background(), sess.SessionID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	bills, total, err := f.svc.ListBills(context.Background(), BillFilter{Status: model.BillStatusUnpaid})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(bills) != 2 {
		t.Fatalf("total = %d, len = %d, want 2", total, len(bills))
	}

	bills, total, err = f.svc.ListBills(context.Background(), BillFilter{Status: model.BillStatusPaid})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(bills) != 0 {
		t.Fatalf("paid total = %d, want 0", total)
	}
}
