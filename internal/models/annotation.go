package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnnotationType classifies an annotation.
type AnnotationType string

const (
	AnnotationTypeMeasurement  AnnotationType = "MEASUREMENT"
	AnnotationTypeFinding      AnnotationType = "FINDING"
	AnnotationTypeROI          AnnotationType = "REGION_OF_INTEREST"
	AnnotationTypeTeachingNote AnnotationType = "TEACHING_NOTE"
)

// Annotation is a clinical observation attached to a Study, optionally scoped
// to a Series, Instance and frame.
type Annotation struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StudyID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"study_id"`
	SeriesID    *uuid.UUID     `gorm:"type:uuid;index" json:"series_id,omitempty"`
	InstanceID  *uuid.UUID     `gorm:"type:uuid;index" json:"instance_id,omitempty"`
	FrameNumber *int           `json:"frame_number,omitempty"`
	Type        AnnotationType `gorm:"type:varchar(32);not null" json:"type"`
	Title       string         `gorm:"type:varchar(255)" json:"title"`
	Content     string         `gorm:"type:text" json:"content"`

	// Geometric payload; a shape type requires coordinates.
	ShapeType   string `gorm:"type:varchar(32)" json:"shape_type,omitempty"`
	Coordinates string `gorm:"type:text" json:"coordinates,omitempty"` // JSON-encoded point list

	// Quantitative payload; a value requires a unit.
	MeasurementValue *float64 `json:"measurement_value,omitempty"`
	MeasurementUnit  string   `gorm:"type:varchar(32)" json:"measurement_unit,omitempty"`

	ClinicalFinding string `gorm:"type:text" json:"clinical_finding,omitempty"`
	DiagnosisCode   string `gorm:"type:varchar(32)" json:"diagnosis_code,omitempty"`
	Severity        string `gorm:"type:varchar(20)" json:"severity,omitempty"`
	Confidence      string `gorm:"type:varchar(20)" json:"confidence,omitempty"`
	IsKeyImage      bool   `gorm:"default:false" json:"is_key_image"`

	// AI provenance
	IsAIGenerated  bool     `gorm:"default:false;index" json:"is_ai_generated"`
	AIModelName    string   `gorm:"type:varchar(128)" json:"ai_model_name,omitempty"`
	AIModelVersion string   `gorm:"type:varchar(32)" json:"ai_model_version,omitempty"`
	AIConfidence   *float64 `json:"ai_confidence,omitempty"`

	// Approval workflow
	RequiresApproval bool             `gorm:"default:false" json:"requires_approval"`
	Status           AnnotationStatus `gorm:"type:varchar(20);not null;default:DRAFT;index" json:"status"`
	ApprovedBy       string           `gorm:"type:varchar(128)" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	ReviewNotes      string           `gorm:"type:text" json:"review_notes,omitempty"`

	QualityScore int    `gorm:"default:0" json:"quality_score"`
	CreatedBy    string `gorm:"type:varchar(128)" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Annotation) TableName() string {
	return "imaging_annotations"
}

// BeforeCreate hook
func (a *Annotation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
