package service

import (
	"context"
	"fmt"
	"time"

	"clinicbill/internal/model"
	"clinicbill/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreatePatientRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	Phone       string `json:"phone"`
	Gender      string `json:"gender" binding:"omitempty,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Address     string `json:"address"`
}

type CreateRecordRequest struct {
	DoctorName string `json:"doctor_name" binding:"required"`
	Symptoms   string `json:"symptoms"`
	Diagnosis  string `json:"diagnosis"`
	Treatment  string `json:"treatment"`
	VisitDate  string `json:"visit_date"` // RFC3339, defaults to now
}

type PatientResponse struct {
	ID          string  `json:"id"`
	FullName    string  `json:"full_name"`
	Phone       string  `json:"phone"`
	Gender      string  `json:"gender"`
	DateOfBirth *string `json:"date_of_birth"`
	Address     string  `json:"address"`
	CreatedAt   string  `json:"created_at"`
}

type MedicalRecordResponse struct {
	ID         string `json:"id"`
	PatientID  string `json:"patient_id"`
	DoctorName string `json:"doctor_name"`
	Symptoms   string `json:"symptoms"`
	Diagnosis  string `json:"diagnosis"`
	Treatment  string `json:"treatment"`
	VisitDate  string `json:"visit_date"`
}

// --- Interface ---

type PatientService interface {
	CreatePatient(ctx context.Context, req CreatePatientRequest) (PatientResponse, error)
	GetPatient(ctx context.Context, id string) (PatientResponse, error)
	ListPatients(ctx context.Context, page, limit int) ([]PatientResponse, int64, error)
	CreateRecord(ctx context.Context, patientID string, req CreateRecordRequest) (MedicalRecordResponse, error)
	ListRecords(ctx context.Context, patientID string) ([]MedicalRecordResponse, error)
}

type patientService struct {
	repo repository.PatientRepository
}

func NewPatientService(repo repository.PatientRepository) PatientService {
	return &patientService{repo: repo}
}

// --- Implementation ---

func (s *patientService) CreatePatient(ctx context.Context, req CreatePatientRequest) (PatientResponse, error) {
	patient := model.Patient{
		FullName: req.FullName,
		Phone:    req.Phone,
		Gender:   req.Gender,
		Address:  req.Address,
	}

	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return PatientResponse{}, fmt.Errorf("invalid date_of_birth: %w", err)
		}
		patient.DateOfBirth = &dob
	}

	if err := s.repo.Create(ctx, &patient); err != nil {
		return PatientResponse{}, fmt.Errorf("failed to create patient: %w", err)
	}

	return toPatientResponse(patient), nil
}

func (s *patientService) GetPatient(ctx context.Context, id string) (PatientResponse, error) {
	patientID, err := uuid.Parse(id)
	if err != nil {
		return PatientResponse{}, fmt.Errorf("invalid patient id: %w", err)
	}

	patient, err := s.repo.FindByID(ctx, patientID)
	if err != nil {
		return PatientResponse{}, fmt.Errorf("patient not found: %w", err)
	}
	return toPatientResponse(*patient), nil
}

func (s *patientService) ListPatients(ctx context.Context, page, limit int) ([]PatientResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	patients, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch patients: %w", err)
	}

	result := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		result = append(result, toPatientResponse(p))
	}
	return result, total, nil
}

func (s *patientService) CreateRecord(ctx context.Context, patientID string, req CreateRecordRequest) (MedicalRecordResponse, error) {
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return MedicalRecordResponse{}, fmt.Errorf("invalid patient id: %w", err)
	}

	if _, err := s.repo.FindByID(ctx, pid); err != nil {
		return MedicalRecordResponse{}, fmt.Errorf("patient not found: %w", err)
	}

	visitDate := time.Now()
	if req.VisitDate != "" {
		visitDate, err = time.Parse(time.RFC3339, req.VisitDate)
		if err != nil {
			return MedicalRecordResponse{}, fmt.Errorf("invalid visit_date: %w", err)
		}
	}

	record := model.MedicalRecord{
		PatientID:  pid,
		DoctorName: req.DoctorName,
		Symptoms:   req.Symptoms,
		Diagnosis:  req.Diagnosis,
		Treatment:  req.Treatment,
		VisitDate:  visitDate,
	}

	if err := s.repo.CreateRecord(ctx, &record); err != nil {
		return MedicalRecordResponse{}, fmt.Errorf("failed to create medical record: %w", err)
	}

	return toRecordResponse(record), nil
}

func (s *patientService) ListRecords(ctx context.Context, patientID string) ([]MedicalRecordResponse, error) {
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return nil, fmt.Errorf("invalid patient id: %w", err)
	}

	records, err := s.repo.ListRecordsByPatient(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch medical records: %w", err)
	}

	result := make([]MedicalRecordResponse, 0, len(records))
	for _, r := range records {
		result = append(result, toRecordResponse(r))
	}
	return result, nil
}

// --- Mapping ---

func toPatientResponse(p model.Patient) PatientResponse {
	resp := PatientResponse{
		ID:        p.ID.String(),
		FullName:  p.FullName,
		Phone:     p.Phone,
		Gender:    p.Gender,
		Address:   p.Address,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if p.DateOfBirth != nil {
		s := p.DateOfBirth.Format("2006-01-02")
		resp.DateOfBirth = &s
	}
	return resp
}

func toRecordResponse(r model.MedicalRecord) MedicalRecordResponse {
	return MedicalRecordResponse{
		ID:         r.ID.String(),
		PatientID:  r.PatientID.String(),
		DoctorName: r.DoctorName,
		Symptoms:   r.Symptoms,
		Diagnosis:  r.Diagnosis,
		Treatment:  r.Treatment,
		VisitDate:  r.VisitDate.Format(time.RFC3339),
	}
}
