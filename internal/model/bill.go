package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillStatus enum constants
const (
	BillStatusUnpaid = "UNPAID"
	BillStatusPaid   = "PAID"
)

// Bill is a finalized, submitted bill. Drafts are never persisted; a row
// only appears here once an editor session confirms.
type Bill struct {
	ID                    uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNo             string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	PatientID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"patient_id"`
	Patient               *Patient        `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	MedicalRecordID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"medical_record_id"`
	MedicalRecord         *MedicalRecord  `gorm:"foreignKey:MedicalRecordID" json:"medical_record,omitempty"`
	DoctorName            string          `gorm:"type:varchar(255)" json:"doctor_name"`
	BillDate              time.Time       `gorm:"not null" json:"bill_date"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status                string          `gorm:"type:varchar(20);not null;default:'UNPAID';index" json:"status"`
	PaymentMethod         *string         `gorm:"type:varchar(50)" json:"payment_method"`
	ProviderTransactionID *string         `gorm:"type:varchar(100)" json:"provider_transaction_id"`
	PaidAt                *time.Time      `json:"paid_at"`
	Items                 []BillItem      `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillItem is one billable line on a finalized bill. Subtotal is stored
// denormalized at confirmation time so the persisted bill is immutable.
type BillItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BillID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"bill_id"`
	ItemName  string          `gorm:"type:varchar(255);not null" json:"item_name"`
	ItemType  string          `gorm:"type:varchar(20);not null" json:"item_type"` // consultation, drug, treatment, examination, other
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
