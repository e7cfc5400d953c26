package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is a registered patient of the clinic.
type Patient struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FullName    string         `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone       string         `gorm:"type:varchar(20)" json:"phone"`
	Gender      string         `gorm:"type:varchar(10)" json:"gender"`
	DateOfBirth *time.Time     `json:"date_of_birth"`
	Address     string         `gorm:"type:text" json:"address"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// MedicalRecord is one visit record for a patient. Bills reference the
// record they were generated from.
type MedicalRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PatientID  uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`
	Patient    *Patient  `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	DoctorName string    `gorm:"type:varchar(255)" json:"doctor_name"`
	Symptoms   string    `gorm:"type:text" json:"symptoms"`
	Diagnosis  string    `gorm:"type:text" json:"diagnosis"`
	Treatment  string    `gorm:"type:text" json:"treatment"`
	VisitDate  time.Time `gorm:"not null" json:"visit_date"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
