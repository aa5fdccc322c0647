package services

import (
	"github.com/otcheredev/ris-imaging-service/internal/models"
)

// Scoring constants. Each failed rule appends one error and costs 10 points;
// each present bonus field adds 5. The final score is clamped to [0,100].
const (
	baseQualityScore = 100
	errorPenalty     = 10
	bonusFieldPoints = 5
	warningThreshold = 1
	errorThreshold   = 3
)

// ValidationEngine runs the additive structural checks over an instance and
// its parent study.
type ValidationEngine struct{}

// NewValidationEngine creates a validation engine
func NewValidationEngine() *ValidationEngine {
	return &ValidationEngine{}
}

// Validate evaluates required-field rules against the instance in its study
// context. Zero errors is VALID, one or two WARNING, three or more ERROR.
func (e *ValidationEngine) Validate(study *models.Study, instance *models.Instance) models.ValidationResult {
	var errs []string

	if instance.SOPInstanceUID == "" {
		errs = append(errs, "missing SOP Instance UID")
	}
	if instance.SOPClassUID == "" {
		errs = append(errs, "missing SOP Class UID")
	}
	if instance.TransferSyntaxUID == "" {
		errs = append(errs, "missing transfer syntax")
	}
	if instance.Rows <= 0 || instance.Columns <= 0 {
		errs = append(errs, "missing pixel geometry")
	}
	if study.StudyInstanceUID == "" {
		errs = append(errs, "missing Study Instance UID")
	}
	if study.PatientID == "" {
		errs = append(errs, "missing patient identifier")
	}
	if study.Modality == "" {
		errs = append(errs, "missing modality")
	}

	score := baseQualityScore - errorPenalty*len(errs)
	if study.DiagnosisCode != "" {
		score += bonusFieldPoints
	}
	if study.ClinicalIndication != "" {
		score += bonusFieldPoints
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	status := models.InstanceValidationValid
	switch {
	case len(errs) >= errorThreshold:
		status = models.InstanceValidationError
	case len(errs) >= warningThreshold:
		status = models.InstanceValidationWarning
	}

	if errs == nil {
		errs = []string{}
	}

	return models.ValidationResult{
		Valid:        len(errs) == 0,
		Status:       status,
		Errors:       errs,
		QualityScore: score,
	}
}
