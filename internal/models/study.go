package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Study represents one imaging episode for one patient. The Study Instance
// UID is assigned by the imaging source and is immutable once stored.
type Study struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudyInstanceUID string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"study_instance_uid"`
	PatientID        string    `gorm:"type:varchar(64);not null;index" json:"patient_id"`
	AccessionNumber  string    `gorm:"type:varchar(64);index" json:"accession_number"`
	StudyDate        time.Time `gorm:"index" json:"study_date"`
	Description      string    `gorm:"type:varchar(255)" json:"description"`
	Modality         string    `gorm:"type:varchar(16);index" json:"modality"`
	BodyPart         string    `gorm:"type:varchar(64)" json:"body_part"`

	ReferringPhysician string `gorm:"type:varchar(255)" json:"referring_physician"`
	OrderingPhysician  string `gorm:"type:varchar(255)" json:"ordering_physician"`
	ClinicalIndication string `gorm:"type:text" json:"clinical_indication"`
	DiagnosisCode      string `gorm:"type:varchar(32)" json:"diagnosis_code"`
	IsUrgent           bool   `gorm:"default:false;index" json:"is_urgent"`

	WorkflowState    StudyWorkflowState    `gorm:"type:varchar(20);not null;default:PENDING_REVIEW;index" json:"workflow_state"`
	ValidationStatus StudyValidationStatus `gorm:"type:varchar(20);not null;default:NOT_VALIDATED" json:"validation_status"`
	QualityScore     int                   `gorm:"default:0" json:"quality_score"`

	// Aggregate counters, recomputed from child rows after each ingestion.
	NumberOfSeries    int   `gorm:"default:0" json:"number_of_series"`
	NumberOfInstances int   `gorm:"default:0" json:"number_of_instances"`
	TotalSizeBytes    int64 `gorm:"default:0" json:"total_size_bytes"`

	IsArchived bool       `gorm:"default:false" json:"is_archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// External system linkage
	OrderID       string `gorm:"type:varchar(64);index" json:"order_id,omitempty"`
	AppointmentID string `gorm:"type:varchar(64)" json:"appointment_id,omitempty"`
	EncounterID   string `gorm:"type:varchar(64)" json:"encounter_id,omitempty"`
	FHIRStudyID   string `gorm:"type:varchar(64)" json:"fhir_study_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Study) TableName() string {
	return "imaging_studies"
}

// BeforeCreate hook
func (s *Study) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// StudyFilter carries the search criteria for the study search endpoint.
type StudyFilter struct {
	PatientID     string     `json:"patient_id,omitempty"`
	Modality      string     `json:"modality,omitempty"`
	WorkflowState string     `json:"workflow_state,omitempty"`
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	UrgentOnly    bool       `json:"urgent_only,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// StudyPage is one page of study search results.
type StudyPage struct {
	Studies []Study `json:"studies"`
	Total   int64   `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
