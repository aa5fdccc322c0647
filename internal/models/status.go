package models

// InstanceProcessingStatus tracks the technical processing of an instance.
type InstanceProcessingStatus string

const (
	InstanceReceived  InstanceProcessingStatus = "RECEIVED"
	InstanceParsing   InstanceProcessingStatus = "PARSING"
	InstanceStored    InstanceProcessingStatus = "STORED"
	InstanceValidated InstanceProcessingStatus = "VALIDATED"
	InstanceFailed    InstanceProcessingStatus = "FAILED"
)

// InstanceValidationStatus is the validation engine verdict for an instance.
type InstanceValidationStatus string

const (
	InstanceValidationPending InstanceValidationStatus = "PENDING"
	InstanceValidationValid   InstanceValidationStatus = "VALID"
	InstanceValidationWarning InstanceValidationStatus = "WARNING"
	InstanceValidationError   InstanceValidationStatus = "ERROR"
)

// SeriesStatus tracks aggregate completeness of a series.
type SeriesStatus string

const (
	SeriesPending   SeriesStatus = "PENDING"
	SeriesCompleted SeriesStatus = "COMPLETED"
	SeriesFailed    SeriesStatus = "FAILED"
)

// StudyWorkflowState is the review/sign-off stage of a study, independent of
// technical processing.
type StudyWorkflowState string

const (
	StudyPendingReview StudyWorkflowState = "PENDING_REVIEW"
	StudyInReview      StudyWorkflowState = "IN_REVIEW"
	StudyFinalized     StudyWorkflowState = "FINALIZED"
	StudyArchived      StudyWorkflowState = "ARCHIVED"
)

// StudyValidationStatus is tracked separately from the workflow axis.
type StudyValidationStatus string

const (
	StudyNotValidated StudyValidationStatus = "NOT_VALIDATED"
	StudyValid        StudyValidationStatus = "VALID"
	StudyInvalid      StudyValidationStatus = "INVALID"
)

// AnnotationStatus is the approval workflow state of an annotation.
type AnnotationStatus string

const (
	AnnotationDraft           AnnotationStatus = "DRAFT"
	AnnotationPendingApproval AnnotationStatus = "PENDING_APPROVAL"
	AnnotationApproved        AnnotationStatus = "APPROVED"
	AnnotationRejected        AnnotationStatus = "REJECTED"
)

// Transition tables. A requested transition not present in the table is
// rejected by the caller, never silently coerced.

var instanceTransitions = map[InstanceProcessingStatus][]InstanceProcessingStatus{
	InstanceReceived:  {InstanceParsing},
	InstanceParsing:   {InstanceStored, InstanceFailed},
	InstanceStored:    {InstanceValidated, InstanceFailed},
	InstanceValidated: {},
	InstanceFailed:    {InstanceReceived},
}

var seriesTransitions = map[SeriesStatus][]SeriesStatus{
	SeriesPending:   {SeriesCompleted, SeriesFailed},
	SeriesCompleted: {},
	SeriesFailed:    {SeriesPending},
}

var studyWorkflowTransitions = map[StudyWorkflowState][]StudyWorkflowState{
	StudyPendingReview: {StudyInReview, StudyArchived},
	StudyInReview:      {StudyFinalized, StudyArchived},
	StudyFinalized:     {StudyArchived},
	StudyArchived:      {},
}

var studyValidationTransitions = map[StudyValidationStatus][]StudyValidationStatus{
	StudyNotValidated: {StudyValid, StudyInvalid},
	StudyValid:        {StudyInvalid},
	StudyInvalid:      {StudyValid},
}

var annotationTransitions = map[AnnotationStatus][]AnnotationStatus{
	AnnotationDraft:           {AnnotationPendingApproval},
	AnnotationPendingApproval: {AnnotationApproved, AnnotationRejected},
	AnnotationApproved:        {},
	AnnotationRejected:        {AnnotationDraft},
}

// CanTransition reports whether the instance processing status may move from
// current to next.
func (s InstanceProcessingStatus) CanTransition(next InstanceProcessingStatus) bool {
	for _, t := range instanceTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CanTransition reports whether the series status may move to next.
func (s SeriesStatus) CanTransition(next SeriesStatus) bool {
	for _, t := range seriesTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CanTransition reports whether the study workflow state may move to next.
func (s StudyWorkflowState) CanTransition(next StudyWorkflowState) bool {
	for _, t := range studyWorkflowTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CanTransition reports whether the study validation status may move to next.
func (s StudyValidationStatus) CanTransition(next StudyValidationStatus) bool {
	for _, t := range studyValidationTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CanTransition reports whether the annotation status may move to next.
func (s AnnotationStatus) CanTransition(next AnnotationStatus) bool {
	for _, t := range annotationTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
