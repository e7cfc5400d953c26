package billing

import "time"

// Payload is the normalized, submission-ready structure produced exactly
// once by Confirm and handed to the OnConfirm callback. Amounts are plain
// numbers rounded to 2 decimal places.
type Payload struct {
	Bill    BillPayload   `json:"bill"`
	Items   []ItemPayload `json:"items"`
	Summary Summary       `json:"summary"`
}

type BillPayload struct {
	InvoiceNumber         string  `json:"invoice_number"`
	BillDate              string  `json:"bill_date"`
	TotalAmount           float64 `json:"total_amount"`
	Status                string  `json:"status"`
	PatientID             string  `json:"patient_id"`
	MedicalRecordID       string  `json:"medical_record_id"`
	PaymentMethod         *string `json:"payment_method"`
	ProviderTransactionID *string `json:"provider_transaction_id"`
}

type ItemPayload struct {
	ItemName  string  `json:"item_name"`
	ItemType  string  `json:"item_type"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type Summary struct {
	PatientName   string  `json:"patient_name"`
	RecordID      string  `json:"record_id"`
	TotalItems    int     `json:"total_items"`
	TotalAmount   float64 `json:"total_amount"`
	InvoiceNumber string  `json:"invoice_number"`
	BillDate      string  `json:"bill_date"`
}

// displayDateLayout is the human-facing bill date format used in summaries.
const displayDateLayout = "2006-01-02 15:04"

func (d *Draft) buildPayloadLocked() *Payload {
	items := make([]ItemPayload, 0, len(d.items))
	for _, li := range d.items {
		items = append(items, ItemPayload{
			ItemName:  li.Name,
			ItemType:  li.Type,
			Quantity:  li.Quantity,
			UnitPrice: li.Price.Round(2).InexactFloat64(),
			Subtotal:  li.Subtotal().Round(2).InexactFloat64(),
		})
	}

	total := d.totalLocked().Round(2).InexactFloat64()

	return &Payload{
		Bill: BillPayload{
			InvoiceNumber:         d.invoiceNo,
			BillDate:              d.createdAt.Format(time.RFC3339),
			TotalAmount:           total,
			Status:                d.status,
			PatientID:             d.patientID,
			MedicalRecordID:       d.recordID,
			PaymentMethod:         nil,
			ProviderTransactionID: nil,
		},
		Items: items,
		Summary: Summary{
			PatientName:   d.patientName,
			RecordID:      d.recordID,
			TotalItems:    len(d.items),
			TotalAmount:   total,
			InvoiceNumber: d.invoiceNo,
			BillDate:      d.createdAt.Format(displayDateLayout),
		},
	}
}
