package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/events"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/otcheredev/ris-imaging-service/internal/repository"
	"github.com/rs/zerolog/log"
)

// AnnotationService handles the annotation lifecycle: boundary-checked
// creation, the approval workflow and study-scoped listing.
type AnnotationService struct {
	annotations AnnotationStore
	studies     StudyStore
	series      SeriesStore
	instances   InstanceStore
	publisher   events.Publisher
}

// NewAnnotationService creates a new annotation service
func NewAnnotationService(
	annotations AnnotationStore,
	studies StudyStore,
	series SeriesStore,
	instances InstanceStore,
	publisher events.Publisher,
) *AnnotationService {
	return &AnnotationService{
		annotations: annotations,
		studies:     studies,
		series:      series,
		instances:   instances,
		publisher:   publisher,
	}
}

// Create validates payload consistency at the boundary and persists the
// annotation. With requiresApproval set the annotation enters the approval
// workflow; otherwise it stands approved on creation.
func (s *AnnotationService) Create(ctx context.Context, studyUID string, req *models.AnnotationCreateRequest) (*models.Annotation, error) {
	if req.Type == "" || req.Title == "" {
		return nil, fmt.Errorf("%w: type and title are required", ErrIncompleteAnnotation)
	}
	if req.ShapeType != "" && req.Coordinates == "" {
		return nil, fmt.Errorf("%w: shape %s has no coordinates", ErrIncompleteAnnotation, req.ShapeType)
	}
	if req.Coordinates != "" && req.ShapeType == "" {
		return nil, fmt.Errorf("%w: coordinates given without a shape type", ErrIncompleteAnnotation)
	}
	if req.MeasurementValue != nil && req.MeasurementUnit == "" {
		return nil, fmt.Errorf("%w: measurement value has no unit", ErrIncompleteAnnotation)
	}
	if req.IsAIGenerated && req.AIConfidence == nil {
		return nil, fmt.Errorf("%w: AI annotation has no confidence score", ErrIncompleteAnnotation)
	}

	study, err := s.studies.FindByUID(ctx, studyUID)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: study %s", ErrNotFound, studyUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up study: %w", err)
	}

	annotation := &models.Annotation{
		StudyID:          study.ID,
		FrameNumber:      req.FrameNumber,
		Type:             req.Type,
		Title:            req.Title,
		Content:          req.Content,
		ShapeType:        req.ShapeType,
		Coordinates:      req.Coordinates,
		MeasurementValue: req.MeasurementValue,
		MeasurementUnit:  req.MeasurementUnit,
		ClinicalFinding:  req.ClinicalFinding,
		DiagnosisCode:    req.DiagnosisCode,
		Severity:         req.Severity,
		Confidence:       req.Confidence,
		IsKeyImage:       req.IsKeyImage,
		IsAIGenerated:    req.IsAIGenerated,
		AIModelName:      req.AIModelName,
		AIModelVersion:   req.AIModelVersion,
		AIConfidence:     req.AIConfidence,
		RequiresApproval: req.RequiresApproval,
		CreatedBy:        req.CreatedBy,
		QualityScore:     annotationQualityScore(req),
	}

	if req.SeriesInstanceUID != "" {
		series, err := s.series.FindByUID(ctx, req.SeriesInstanceUID)
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: series %s", ErrNotFound, req.SeriesInstanceUID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up series: %w", err)
		}
		annotation.SeriesID = &series.ID
	}
	if req.SOPInstanceUID != "" {
		instance, err := s.instances.FindByUID(ctx, req.SOPInstanceUID)
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: instance %s", ErrNotFound, req.SOPInstanceUID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up instance: %w", err)
		}
		annotation.InstanceID = &instance.ID
	}

	if req.RequiresApproval {
		annotation.Status = models.AnnotationPendingApproval
	} else {
		annotation.Status = models.AnnotationApproved
	}

	if err := s.annotations.Create(ctx, annotation); err != nil {
		return nil, fmt.Errorf("failed to create annotation: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:             events.TypeAnnotationCreated,
		StudyInstanceUID: study.StudyInstanceUID,
		AnnotationID:     annotation.ID.String(),
	})
	return annotation, nil
}

// ListByStudy returns a study's annotations, newest first. A non-nil
// aiMinConfidence narrows the list to AI annotations at or above it.
func (s *AnnotationService) ListByStudy(ctx context.Context, studyUID string, aiMinConfidence *float64) ([]models.Annotation, error) {
	study, err := s.studies.FindByUID(ctx, studyUID)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: study %s", ErrNotFound, studyUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up study: %w", err)
	}
	return s.annotations.FindByStudyID(ctx, study.ID, aiMinConfidence)
}

// Submit moves a draft annotation into the approval queue.
func (s *AnnotationService) Submit(ctx context.Context, id uuid.UUID) (*models.Annotation, error) {
	return s.transition(ctx, id, models.AnnotationPendingApproval, func(a *models.Annotation) {})
}

// Approve finalizes a pending annotation, stamping the approver and time.
// Approving an annotation that is not pending is rejected.
func (s *AnnotationService) Approve(ctx context.Context, id uuid.UUID, req *models.AnnotationReviewRequest) (*models.Annotation, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, models.AnnotationApproved, func(a *models.Annotation) {
		a.ApprovedBy = req.Reviewer
		a.ApprovedAt = &now
		a.ReviewNotes = req.ReviewNotes
	})
}

// Reject sends a pending annotation back with reviewer notes.
func (s *AnnotationService) Reject(ctx context.Context, id uuid.UUID, req *models.AnnotationReviewRequest) (*models.Annotation, error) {
	return s.transition(ctx, id, models.AnnotationRejected, func(a *models.Annotation) {
		a.ReviewNotes = req.ReviewNotes
	})
}

func (s *AnnotationService) transition(ctx context.Context, id uuid.UUID, next models.AnnotationStatus, apply func(*models.Annotation)) (*models.Annotation, error) {
	annotation, err := s.annotations.FindByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: annotation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up annotation: %w", err)
	}

	if !annotation.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: annotation %s -> %s", ErrIllegalTransition, annotation.Status, next)
	}

	annotation.Status = next
	apply(annotation)

	if err := s.annotations.Update(ctx, annotation); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:         events.TypeAnnotationReviewed,
		AnnotationID: annotation.ID.String(),
		Detail:       string(next),
	})
	return annotation, nil
}

// annotationQualityScore rewards clinically useful payload fields.
func annotationQualityScore(req *models.AnnotationCreateRequest) int {
	score := 50
	if req.Content != "" {
		score += 10
	}
	if req.ClinicalFinding != "" {
		score += 10
	}
	if req.DiagnosisCode != "" {
		score += 10
	}
	if req.ShapeType != "" && req.Coordinates != "" {
		score += 10
	}
	if req.MeasurementValue != nil {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (s *AnnotationService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Event publish failed")
	}
}
