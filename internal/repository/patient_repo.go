package repository

import (
	"context"

	"clinicbill/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	List(ctx context.Context, page, limit int) ([]model.Patient, int64, error)
	FindRecordByID(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
	ListRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]model.MedicalRecord, error)
	CreateRecord(ctx context.Context, record *model.MedicalRecord) error
}

type patientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	return GetDB(ctx, r.db).Create(patient).Error
}

func (r *patientRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	if err := GetDB(ctx, r.db).First(&patient, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, page, limit int) ([]model.Patient, int64, error) {
	var patients []model.Patient
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Patient{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&patients).Error; err != nil {
		return nil, 0, err
	}

	return patients, total, nil
}

func (r *patientRepository) FindRecordByID(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	var record model.MedicalRecord
	if err := GetDB(ctx, r.db).Preload("Patient").First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *patientRepository) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]model.MedicalRecord, error) {
	var records []model.MedicalRecord
	if err := GetDB(ctx, r.db).Where("patient_id = ?", patientID).Order("visit_date desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *patientRepository) CreateRecord(ctx context.Context, record *model.MedicalRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}
