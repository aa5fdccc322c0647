package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/models"
)

// Store interfaces satisfied by the gorm repositories. Services accept these
// so tests can run against in-memory implementations.

// StudyStore persists studies.
type StudyStore interface {
	Create(ctx context.Context, study *models.Study) error
	FindByUID(ctx context.Context, studyUID string) (*models.Study, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Archive(ctx context.Context, id uuid.UUID) error
	RecountAggregates(ctx context.Context, studyID uuid.UUID) error
	Search(ctx context.Context, filter models.StudyFilter) (*models.StudyPage, error)
	CountAll(ctx context.Context) (int64, error)
	CountUrgent(ctx context.Context) (int64, error)
}

// SeriesStore persists series.
type SeriesStore interface {
	Create(ctx context.Context, series *models.Series) error
	FindByUID(ctx context.Context, seriesUID string) (*models.Series, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Series, error)
	FindByStudyID(ctx context.Context, studyID uuid.UUID) ([]models.Series, error)
	FindNeedingProcessing(ctx context.Context, limit int) ([]models.Series, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.SeriesStatus) error
	RecountAggregates(ctx context.Context, seriesID uuid.UUID) error
}

// InstanceStore persists instances.
type InstanceStore interface {
	Create(ctx context.Context, instance *models.Instance) error
	FindByUID(ctx context.Context, sopInstanceUID string) (*models.Instance, error)
	FindBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]models.Instance, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateValidation(ctx context.Context, id uuid.UUID, result models.ValidationResult) error
	UpdateAnalysisResult(ctx context.Context, id uuid.UUID, summary string) error
	IncrementAccess(ctx context.Context, id uuid.UUID) error
	UpdateCacheResidency(ctx context.Context, id uuid.UUID, cached bool, location string) error
	FindDuplicateClusters(ctx context.Context) ([]models.DuplicateCluster, error)
	CountAll(ctx context.Context) (int64, error)
	CountPendingValidation(ctx context.Context) (int64, error)
}

// AnnotationStore persists annotations.
type AnnotationStore interface {
	Create(ctx context.Context, annotation *models.Annotation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Annotation, error)
	Update(ctx context.Context, annotation *models.Annotation) error
	FindByStudyID(ctx context.Context, studyID uuid.UUID, aiMinConfidence *float64) ([]models.Annotation, error)
	CountPendingApproval(ctx context.Context) (int64, error)
}
