package services

import (
	"testing"

	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func completeStudy() *models.Study {
	return &models.Study{
		StudyInstanceUID: testStudyUID,
		PatientID:        "PAT-100",
		Modality:         "CT",
	}
}

func completeInstance() *models.Instance {
	return &models.Instance{
		SOPInstanceUID:    testSOPUID,
		SOPClassUID:       "1.2.840.10008.5.1.4.1.1.2",
		TransferSyntaxUID: "1.2.840.10008.1.2.1",
		Rows:              512,
		Columns:           512,
	}
}

func TestValidateCompleteInstance(t *testing.T) {
	engine := NewValidationEngine()

	result := engine.Validate(completeStudy(), completeInstance())
	assert.True(t, result.Valid)
	assert.Equal(t, models.InstanceValidationValid, result.Status)
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Errors)
	assert.Equal(t, 100, result.QualityScore)
}

func TestValidateThreeMissingFields(t *testing.T) {
	engine := NewValidationEngine()

	study := completeStudy()
	study.PatientID = ""
	study.Modality = ""
	instance := completeInstance()
	instance.SOPClassUID = ""

	result := engine.Validate(study, instance)
	assert.False(t, result.Valid)
	assert.Equal(t, models.InstanceValidationError, result.Status)
	assert.Len(t, result.Errors, 3)
	assert.Equal(t, 70, result.QualityScore)
}

func TestValidateWarningBand(t *testing.T) {
	engine := NewValidationEngine()

	instance := completeInstance()
	instance.TransferSyntaxUID = ""

	result := engine.Validate(completeStudy(), instance)
	assert.False(t, result.Valid)
	assert.Equal(t, models.InstanceValidationWarning, result.Status)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 90, result.QualityScore)
}

func TestValidateBonusFields(t *testing.T) {
	engine := NewValidationEngine()

	study := completeStudy()
	study.DiagnosisCode = "I21.0"
	instance := completeInstance()
	instance.Rows = 0

	// One error and one bonus field: 100 - 10 + 5.
	result := engine.Validate(study, instance)
	assert.Equal(t, models.InstanceValidationWarning, result.Status)
	assert.Equal(t, 95, result.QualityScore)
}

func TestValidateScoreClampedAtHundred(t *testing.T) {
	engine := NewValidationEngine()

	study := completeStudy()
	study.DiagnosisCode = "I21.0"
	study.ClinicalIndication = "chest pain"

	result := engine.Validate(study, completeInstance())
	assert.True(t, result.Valid)
	assert.Equal(t, 100, result.QualityScore)
}

func TestValidateAllRulesFail(t *testing.T) {
	engine := NewValidationEngine()

	// Every rule fails on empty inputs.
	result := engine.Validate(&models.Study{}, &models.Instance{})
	assert.Equal(t, models.InstanceValidationError, result.Status)
	assert.Len(t, result.Errors, 7)
	assert.Equal(t, 30, result.QualityScore)
}
