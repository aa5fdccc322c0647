package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/database"
	"github.com/otcheredev/ris-imaging-service/internal/models"
)

// AnnotationRepository handles annotation database operations
type AnnotationRepository struct{}

// NewAnnotationRepository creates a new annotation repository
func NewAnnotationRepository() *AnnotationRepository {
	return &AnnotationRepository{}
}

// Create creates a new annotation row
func (r *AnnotationRepository) Create(ctx context.Context, annotation *models.Annotation) error {
	if err := database.DB.WithContext(ctx).Create(annotation).Error; err != nil {
		return fmt.Errorf("failed to create annotation: %w", err)
	}
	return nil
}

// FindByID retrieves an annotation by id
func (r *AnnotationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Annotation, error) {
	var annotation models.Annotation
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&annotation).Error; err != nil {
		return nil, err
	}
	return &annotation, nil
}

// Update persists the full annotation row
func (r *AnnotationRepository) Update(ctx context.Context, annotation *models.Annotation) error {
	if err := database.DB.WithContext(ctx).Save(annotation).Error; err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	return nil
}

// FindByStudyID lists annotations for a study, newest first. A minimum AI
// confidence filters AI-generated annotations on the read side.
func (r *AnnotationRepository) FindByStudyID(ctx context.Context, studyID uuid.UUID, aiMinConfidence *float64) ([]models.Annotation, error) {
	query := database.DB.WithContext(ctx).Where("study_id = ?", studyID)
	if aiMinConfidence != nil {
		query = query.Where("is_ai_generated = ? AND ai_confidence >= ?", true, *aiMinConfidence)
	}

	var annotations []models.Annotation
	if err := query.Order("created_at DESC").Find(&annotations).Error; err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	return annotations, nil
}

// CountPendingApproval returns the approval backlog size
func (r *AnnotationRepository) CountPendingApproval(ctx context.Context) (int64, error) {
	var n int64
	if err := database.DB.WithContext(ctx).
		Model(&models.Annotation{}).
		Where("status = ?", models.AnnotationPendingApproval).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending annotations: %w", err)
	}
	return n, nil
}
