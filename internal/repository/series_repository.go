package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/database"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"gorm.io/gorm"
)

// SeriesRepository handles imaging series database operations
type SeriesRepository struct{}

// NewSeriesRepository creates a new series repository
func NewSeriesRepository() *SeriesRepository {
	return &SeriesRepository{}
}

// Create creates a new series row
func (r *SeriesRepository) Create(ctx context.Context, series *models.Series) error {
	if err := database.DB.WithContext(ctx).Create(series).Error; err != nil {
		return fmt.Errorf("failed to create series: %w", err)
	}
	return nil
}

// FindByUID retrieves a series by its Series Instance UID
func (r *SeriesRepository) FindByUID(ctx context.Context, seriesUID string) (*models.Series, error) {
	var series models.Series
	if err := database.DB.WithContext(ctx).
		Where("series_instance_uid = ?", seriesUID).
		First(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// FindByID retrieves a series by surrogate id
func (r *SeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Series, error) {
	var series models.Series
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// FindByStudyID lists series for a study, ordered by series number
func (r *SeriesRepository) FindByStudyID(ctx context.Context, studyID uuid.UUID) ([]models.Series, error) {
	var series []models.Series
	if err := database.DB.WithContext(ctx).
		Where("study_id = ?", studyID).
		Order("series_number ASC").
		Find(&series).Error; err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return series, nil
}

// FindNeedingProcessing lists series still PENDING or FAILED
func (r *SeriesRepository) FindNeedingProcessing(ctx context.Context, limit int) ([]models.Series, error) {
	var series []models.Series
	query := database.DB.WithContext(ctx).
		Where("status IN ?", []models.SeriesStatus{models.SeriesPending, models.SeriesFailed}).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&series).Error; err != nil {
		return nil, fmt.Errorf("failed to list series needing processing: %w", err)
	}
	return series, nil
}

// UpdateStatus persists a series status value
func (r *SeriesRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SeriesStatus) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.Series{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update series status: %w", err)
	}
	return nil
}

// RecountAggregates recomputes a series' instance/byte counters from its
// child rows inside one transaction.
func (r *SeriesRepository) RecountAggregates(ctx context.Context, seriesID uuid.UUID) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type sums struct {
			Instances int64
			Bytes     int64
		}
		var s sums
		if err := tx.Model(&models.Instance{}).
			Select("COUNT(*) AS instances, COALESCE(SUM(size_bytes), 0) AS bytes").
			Where("series_id = ?", seriesID).
			Scan(&s).Error; err != nil {
			return fmt.Errorf("failed to sum series instances: %w", err)
		}

		if err := tx.Model(&models.Series{}).
			Where("id = ?", seriesID).
			Updates(map[string]interface{}{
				"number_of_instances": s.Instances,
				"total_size_bytes":    s.Bytes,
			}).Error; err != nil {
			return fmt.Errorf("failed to update series counters: %w", err)
		}
		return nil
	})
}
