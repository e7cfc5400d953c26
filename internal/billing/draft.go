package billing

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemType enum constants for billable line categories
const (
	ItemConsultation = "consultation"
	ItemDrug         = "drug"
	ItemTreatment    = "treatment"
	ItemExamination  = "examination"
	ItemOther        = "other"
)

// ValidItemType reports whether t is one of the known line categories.
func ValidItemType(t string) bool {
	switch t {
	case ItemConsultation, ItemDrug, ItemTreatment, ItemExamination, ItemOther:
		return true
	}
	return false
}

// Draft lifecycle states
const (
	StateIdle = iota
	StateSubmitting
	StateClosed
)

var (
	ErrEmptyBill      = errors.New("bill has no items")
	ErrIncompleteItem = errors.New("bill has an incomplete item")
	ErrClosed         = errors.New("editor session is closed")
	ErrSubmitting     = errors.New("submission already in progress")
)

// LineItem is one billable row within a draft. Subtotal is never stored;
// it is recomputed from Quantity and Price on every read.
type LineItem struct {
	ID       uuid.UUID
	Name     string
	Type     string
	Quantity int
	Price    decimal.Decimal
}

// Subtotal returns quantity * unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Options configures a new Draft. All fields are optional.
type Options struct {
	PatientName string
	PatientID   string
	RecordID    string
	DoctorName  string

	// Invoked at most once per draft, mutually exclusive.
	OnConfirm func(*Payload)
	OnCancel  func()

	// Observers for state changes, used instead of wiring mutation into
	// a rendering layer. Either may be nil.
	OnItemChanged  func(LineItem)
	OnTotalChanged func(decimal.Decimal)

	// SubmitDelay is the wait inside Confirm between validation success and
	// payload construction. Zero means no wait.
	SubmitDelay time.Duration
}

// Draft holds the in-progress bill being edited: the ordered line items,
// the generated invoice number, and the confirm/cancel state machine.
// All mutation is serialized behind the mutex; the last write in dispatch
// order wins.
type Draft struct {
	mu sync.Mutex

	invoiceNo string
	createdAt time.Time
	status    string

	patientName string
	patientID   string
	recordID    string
	doctorName  string

	items []*LineItem
	state int

	opts Options
}

// NewDraft creates a draft with a freshly generated invoice number and an
// empty item list. It has no side effects beyond its own state.
func NewDraft(opts Options) *Draft {
	now := time.Now()
	return &Draft{
		invoiceNo:   "INV-" + now.Format("20060102-150405"),
		createdAt:   now,
		status:      "UNPAID",
		patientName: opts.PatientName,
		patientID:   opts.PatientID,
		recordID:    opts.RecordID,
		doctorName:  opts.DoctorName,
		state:       StateIdle,
		opts:        opts,
	}
}

func (d *Draft) InvoiceNumber() string { return d.invoiceNo }
func (d *Draft) CreatedAt() time.Time  { return d.createdAt }
func (d *Draft) PatientName() string   { return d.patientName }
func (d *Draft) PatientID() string     { return d.patientID }
func (d *Draft) RecordID() string      { return d.recordID }
func (d *Draft) DoctorName() string    { return d.doctorName }

// SetObservers replaces the change observers after construction. The host
// needs this when the observer closures must capture the session handle the
// draft is wrapped in, which does not exist yet at construction time.
func (d *Draft) SetObservers(onItem func(LineItem), onTotal func(decimal.Decimal)) {
	d.mu.Lock()
	d.opts.OnItemChanged = onItem
	d.opts.OnTotalChanged = onTotal
	d.mu.Unlock()
}

// State returns the current lifecycle state.
func (d *Draft) State() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Items returns a snapshot of the current line items in insertion order.
func (d *Draft) Items() []LineItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LineItem, 0, len(d.items))
	for _, li := range d.items {
		out = append(out, *li)
	}
	return out
}

// AddItem appends a new line item. Zero-value fields take their defaults:
// quantity 1, price 0, empty name and type. Returns the stored item with
// its assigned id.
func (d *Draft) AddItem(partial LineItem) (LineItem, error) {
	d.mu.Lock()
	switch d.state {
	case StateClosed:
		d.mu.Unlock()
		return LineItem{}, ErrClosed
	case StateSubmitting:
		d.mu.Unlock()
		return LineItem{}, ErrSubmitting
	}

	li := &LineItem{
		ID:       uuid.New(),
		Name:     partial.Name,
		Type:     partial.Type,
		Quantity: partial.Quantity,
		Price:    partial.Price,
	}
	if li.Quantity == 0 {
		li.Quantity = 1
	}
	d.items = append(d.items, li)
	snapshot, total := *li, d.totalLocked()
	onItem, onTotal := d.opts.OnItemChanged, d.opts.OnTotalChanged
	d.mu.Unlock()

	if onItem != nil {
		onItem(snapshot)
	}
	if onTotal != nil {
		onTotal(total)
	}
	return snapshot, nil
}

// UpdateItem sets one field of the item identified by id from a raw string
// value. Quantity and price are coerced to numbers, substituting 0 when the
// value does not parse; it never returns an error for bad input. Unknown
// ids are tolerated as no-ops so stale callbacks from removed rows are safe.
// A draft that is submitting or closed ignores updates.
func (d *Draft) UpdateItem(id uuid.UUID, field, raw string) {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return
	}

	li := d.findLocked(id)
	if li == nil {
		d.mu.Unlock()
		return
	}

	switch field {
	case "name":
		li.Name = raw
	case "type":
		li.Type = raw
	case "quantity":
		qty, err := strconv.Atoi(raw)
		if err != nil {
			qty = 0
		}
		li.Quantity = qty
	case "price":
		price, err := decimal.NewFromString(raw)
		if err != nil {
			price = decimal.Zero
		}
		li.Price = price
	default:
		d.mu.Unlock()
		return
	}

	snapshot, total := *li, d.totalLocked()
	onItem, onTotal := d.opts.OnItemChanged, d.opts.OnTotalChanged
	d.mu.Unlock()

	if onItem != nil {
		onItem(snapshot)
	}
	if onTotal != nil {
		onTotal(total)
	}
}

// RemoveItem drops the item identified by id from the collection. Unknown
// ids are a no-op. The removal and the total recompute happen under one
// lock hold, so no observer sees the item gone but the total stale.
func (d *Draft) RemoveItem(id uuid.UUID) {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return
	}

	for i, li := range d.items {
		if li.ID == id {
			d.items = append(d.items[:i], d.items[i+1:]...)
			total := d.totalLocked()
			onTotal := d.opts.OnTotalChanged
			d.mu.Unlock()
			if onTotal != nil {
				onTotal(total)
			}
			return
		}
	}
	d.mu.Unlock()
}

// Total returns the unrounded sum of quantity*price over all current items.
// Display and payload rounding to 2 decimal places is applied by callers.
func (d *Draft) Total() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalLocked()
}

// Validate gates submission: the draft must hold at least one item, and
// every item must have a name, a known type, positive quantity and positive
// price. It reports the first violated category, not per-field detail.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validateLocked()
}

// Confirm runs the one-shot submission: validate, wait out the submit
// delay, build the normalized payload, invoke OnConfirm and close the
// draft. On validation failure the draft stays editable and no payload is
// produced. A closed or already-submitting draft returns an error.
func (d *Draft) Confirm() (*Payload, error) {
	d.mu.Lock()
	switch d.state {
	case StateClosed:
		d.mu.Unlock()
		return nil, ErrClosed
	case StateSubmitting:
		d.mu.Unlock()
		return nil, ErrSubmitting
	}

	if err := d.validateLocked(); err != nil {
		d.mu.Unlock()
		return nil, err
	}

	d.state = StateSubmitting
	delay := d.opts.SubmitDelay
	d.mu.Unlock()

	// No cancellation once the submission wait has begun.
	if delay > 0 {
		time.Sleep(delay)
	}

	d.mu.Lock()
	payload := d.buildPayloadLocked()
	d.state = StateClosed
	d.mu.Unlock()

	if d.opts.OnConfirm != nil {
		d.opts.OnConfirm(payload)
	}
	return payload, nil
}

// Cancel abandons the draft: OnCancel is invoked if supplied and the draft
// closes without validation or payload construction. Cancelling a closed or
// submitting draft is a no-op: once the submission wait has begun only the
// in-flight Confirm may fire a terminal callback.
func (d *Draft) Cancel() {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return
	}
	d.state = StateClosed
	d.mu.Unlock()

	if d.opts.OnCancel != nil {
		d.opts.OnCancel()
	}
}

// Close is the terminal transition. Idempotent: closing a closed draft
// does nothing. Unlike Cancel it fires no callback.
func (d *Draft) Close() {
	d.mu.Lock()
	d.state = StateClosed
	d.mu.Unlock()
}

// --- internal, caller holds d.mu ---

func (d *Draft) findLocked(id uuid.UUID) *LineItem {
	for _, li := range d.items {
		if li.ID == id {
			return li
		}
	}
	return nil
}

func (d *Draft) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, li := range d.items {
		total = total.Add(li.Subtotal())
	}
	return total
}

func (d *Draft) validateLocked() error {
	if len(d.items) == 0 {
		return ErrEmptyBill
	}
	for _, li := range d.items {
		if li.Name == "" || !ValidItemType(li.Type) || li.Quantity <= 0 || li.Price.LessThanOrEqual(decimal.Zero) {
			return ErrIncompleteItem
		}
	}
	return nil
}

