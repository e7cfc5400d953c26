package repository

import (
	"context"

	"clinicbill/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillListFilter narrows the bill listing.
type BillListFilter struct {
	Status    string // UNPAID, PAID or empty for all
	PatientID string // exact match or empty for all
	Page      int
	Limit     int
}

type BillRepository interface {
	Create(ctx context.Context, bill *model.Bill) error
	CreateItems(ctx context.Context, items []model.BillItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Bill, error)
	List(ctx context.Context, filter BillListFilter) ([]model.Bill, int64, error)
	UpdatePayment(ctx context.Context, bill *model.Bill) error
}

type billRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) BillRepository {
	return &billRepository{db: db}
}

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	return GetDB(ctx, r.db).Create(bill).Error
}

func (r *billRepository) CreateItems(ctx context.Context, items []model.BillItem) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&items).Error
}

func (r *billRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var bill model.Bill
	if err := GetDB(ctx, r.db).First(&bill, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *billRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	var bill model.Bill
	if err := GetDB(ctx, r.db).Preload("Items").Preload("Patient").First(&bill, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *billRepository) List(ctx context.Context, filter BillListFilter) ([]model.Bill, int64, error) {
	var bills []model.Bill
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.PatientID != "" {
			q = q.Where("patient_id = ?", filter.PatientID)
		}
		return q
	}

	if err := apply(db.Model(&model.Bill{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db.Preload("Items")).Order("bill_date desc").Offset(offset).Limit(filter.Limit).Find(&bills).Error; err != nil {
		return nil, 0, err
	}

	return bills, total, nil
}

func (r *billRepository) UpdatePayment(ctx context.Context, bill *model.Bill) error {
	return GetDB(ctx, r.db).Save(bill).Error
}
