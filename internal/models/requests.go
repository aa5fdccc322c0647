package models

import (
	"time"

	"github.com/google/uuid"
)

// IngestOptions controls optional steps of the ingestion pipeline.
type IngestOptions struct {
	ValidateOnUpload     bool `json:"validate_on_upload"`
	PerformImageAnalysis bool `json:"perform_image_analysis"`
}

// IngestResult is returned by the ingestion entry point.
type IngestResult struct {
	StudyID           uuid.UUID         `json:"study_id"`
	SeriesID          uuid.UUID         `json:"series_id"`
	InstanceID        uuid.UUID         `json:"instance_id"`
	StudyInstanceUID  string            `json:"study_instance_uid"`
	SeriesInstanceUID string            `json:"series_instance_uid"`
	SOPInstanceUID    string            `json:"sop_instance_uid"`
	StorageLocation   string            `json:"storage_location"`
	SizeBytes         int64             `json:"size_bytes"`
	Duplicate         bool              `json:"duplicate"`
	Validation        *ValidationResult `json:"validation,omitempty"`
}

// ValidationResult is the outcome of the validation engine for one instance.
type ValidationResult struct {
	Valid        bool                     `json:"valid"`
	Status       InstanceValidationStatus `json:"status"`
	Errors       []string                 `json:"errors"`
	QualityScore int                      `json:"quality_score"`
}

// StudyCreateRequest explicitly creates a study ahead of instance arrival.
type StudyCreateRequest struct {
	StudyInstanceUID   string    `json:"study_instance_uid"`
	PatientID          string    `json:"patient_id"`
	AccessionNumber    string    `json:"accession_number,omitempty"`
	StudyDate          time.Time `json:"study_date,omitempty"`
	Description        string    `json:"description,omitempty"`
	Modality           string    `json:"modality,omitempty"`
	BodyPart           string    `json:"body_part,omitempty"`
	ReferringPhysician string    `json:"referring_physician,omitempty"`
	OrderingPhysician  string    `json:"ordering_physician,omitempty"`
	ClinicalIndication string    `json:"clinical_indication,omitempty"`
	DiagnosisCode      string    `json:"diagnosis_code,omitempty"`
	IsUrgent           bool      `json:"is_urgent"`
	OrderID            string    `json:"order_id,omitempty"`
	AppointmentID      string    `json:"appointment_id,omitempty"`
	EncounterID        string    `json:"encounter_id,omitempty"`
}

// WorkflowUpdateRequest requests a study workflow transition.
type WorkflowUpdateRequest struct {
	WorkflowState StudyWorkflowState `json:"workflow_state"`
}

// ValidationStatusUpdateRequest requests a study validation-axis transition.
type ValidationStatusUpdateRequest struct {
	ValidationStatus StudyValidationStatus `json:"validation_status"`
}

// SeriesStatusUpdateRequest requests a series status transition.
type SeriesStatusUpdateRequest struct {
	Status SeriesStatus `json:"status"`
}

// InstanceStatusUpdateRequest requests an instance processing transition.
type InstanceStatusUpdateRequest struct {
	ProcessingStatus InstanceProcessingStatus `json:"processing_status"`
}

// AnnotationCreateRequest creates an annotation scoped to a study.
type AnnotationCreateRequest struct {
	SeriesInstanceUID string         `json:"series_instance_uid,omitempty"`
	SOPInstanceUID    string         `json:"sop_instance_uid,omitempty"`
	FrameNumber       *int           `json:"frame_number,omitempty"`
	Type              AnnotationType `json:"type"`
	Title             string         `json:"title"`
	Content           string         `json:"content,omitempty"`
	ShapeType         string         `json:"shape_type,omitempty"`
	Coordinates       string         `json:"coordinates,omitempty"`
	MeasurementValue  *float64       `json:"measurement_value,omitempty"`
	MeasurementUnit   string         `json:"measurement_unit,omitempty"`
	ClinicalFinding   string         `json:"clinical_finding,omitempty"`
	DiagnosisCode     string         `json:"diagnosis_code,omitempty"`
	Severity          string         `json:"severity,omitempty"`
	Confidence        string         `json:"confidence,omitempty"`
	IsKeyImage        bool           `json:"is_key_image"`
	IsAIGenerated     bool           `json:"is_ai_generated"`
	AIModelName       string         `json:"ai_model_name,omitempty"`
	AIModelVersion    string         `json:"ai_model_version,omitempty"`
	AIConfidence      *float64       `json:"ai_confidence,omitempty"`
	RequiresApproval  bool           `json:"requires_approval"`
	CreatedBy         string         `json:"created_by"`
}

// AnnotationReviewRequest approves or rejects a pending annotation.
type AnnotationReviewRequest struct {
	Reviewer    string `json:"reviewer"`
	ReviewNotes string `json:"review_notes,omitempty"`
}

// DashboardStats is computed live from repository state on every call.
type DashboardStats struct {
	TotalStudies                int64 `json:"total_studies"`
	TotalInstances              int64 `json:"total_instances"`
	PendingValidation           int64 `json:"pending_validation"`
	UrgentStudies               int64 `json:"urgent_studies"`
	AnnotationsAwaitingApproval int64 `json:"annotations_awaiting_approval"`
}
