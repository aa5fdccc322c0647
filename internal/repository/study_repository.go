package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/database"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"gorm.io/gorm"
)

// StudyRepository handles imaging study database operations
type StudyRepository struct{}

// NewStudyRepository creates a new study repository
func NewStudyRepository() *StudyRepository {
	return &StudyRepository{}
}

// Create creates a new study row
func (r *StudyRepository) Create(ctx context.Context, study *models.Study) error {
	if err := database.DB.WithContext(ctx).Create(study).Error; err != nil {
		return fmt.Errorf("failed to create study: %w", err)
	}
	return nil
}

// FindByUID retrieves a study by its Study Instance UID. Returns
// gorm.ErrRecordNotFound when absent.
func (r *StudyRepository) FindByUID(ctx context.Context, studyUID string) (*models.Study, error) {
	var study models.Study
	if err := database.DB.WithContext(ctx).
		Where("study_instance_uid = ?", studyUID).
		First(&study).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// FindByID retrieves a study by surrogate id
func (r *StudyRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	var study models.Study
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&study).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// UpdateStatus persists workflow/validation status fields
func (r *StudyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.Study{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update study status: %w", err)
	}
	return nil
}

// Archive marks a study archived and records the timestamp
func (r *StudyRepository) Archive(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	if err := database.DB.WithContext(ctx).
		Model(&models.Study{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"workflow_state": models.StudyArchived,
			"is_archived":    true,
			"archived_at":    now,
		}).Error; err != nil {
		return fmt.Errorf("failed to archive study: %w", err)
	}
	return nil
}

// RecountAggregates recomputes a study's series/instance/byte counters from
// its live children inside one transaction. Call with the study's key lock
// held so concurrent ingestions don't interleave recomputes.
func (r *StudyRepository) RecountAggregates(ctx context.Context, studyID uuid.UUID) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seriesCount int64
		if err := tx.Model(&models.Series{}).
			Where("study_id = ?", studyID).
			Count(&seriesCount).Error; err != nil {
			return fmt.Errorf("failed to count series: %w", err)
		}

		type sums struct {
			Instances int64
			Bytes     int64
		}
		var s sums
		if err := tx.Model(&models.Instance{}).
			Select("COUNT(*) AS instances, COALESCE(SUM(size_bytes), 0) AS bytes").
			Joins("JOIN imaging_series ON imaging_series.id = imaging_instances.series_id").
			Where("imaging_series.study_id = ?", studyID).
			Scan(&s).Error; err != nil {
			return fmt.Errorf("failed to sum instances: %w", err)
		}

		if err := tx.Model(&models.Study{}).
			Where("id = ?", studyID).
			Updates(map[string]interface{}{
				"number_of_series":    seriesCount,
				"number_of_instances": s.Instances,
				"total_size_bytes":    s.Bytes,
			}).Error; err != nil {
			return fmt.Errorf("failed to update study counters: %w", err)
		}
		return nil
	})
}

// Search returns a page of studies matching the filter, newest first.
func (r *StudyRepository) Search(ctx context.Context, filter models.StudyFilter) (*models.StudyPage, error) {
	query := database.DB.WithContext(ctx).Model(&models.Study{})

	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.Modality != "" {
		query = query.Where("modality = ?", filter.Modality)
	}
	if filter.WorkflowState != "" {
		query = query.Where("workflow_state = ?", filter.WorkflowState)
	}
	if filter.DateFrom != nil {
		query = query.Where("study_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("study_date <= ?", *filter.DateTo)
	}
	if filter.UrgentOnly {
		query = query.Where("is_urgent = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count studies: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var studies []models.Study
	if err := query.
		Order("study_date DESC, created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&studies).Error; err != nil {
		return nil, fmt.Errorf("failed to search studies: %w", err)
	}

	return &models.StudyPage{
		Studies: studies,
		Total:   total,
		Limit:   limit,
		Offset:  filter.Offset,
	}, nil
}

// CountAll returns the total number of studies
func (r *StudyRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := database.DB.WithContext(ctx).Model(&models.Study{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count studies: %w", err)
	}
	return n, nil
}

// CountUrgent returns the number of urgent, unarchived studies
func (r *StudyRepository) CountUrgent(ctx context.Context) (int64, error) {
	var n int64
	if err := database.DB.WithContext(ctx).
		Model(&models.Study{}).
		Where("is_urgent = ? AND is_archived = ?", true, false).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count urgent studies: %w", err)
	}
	return n, nil
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
