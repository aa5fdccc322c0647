package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/database"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"gorm.io/gorm"
)

// InstanceRepository handles imaging instance database operations
type InstanceRepository struct{}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{}
}

// Create creates a new instance row
func (r *InstanceRepository) Create(ctx context.Context, instance *models.Instance) error {
	if err := database.DB.WithContext(ctx).Create(instance).Error; err != nil {
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

// FindByUID retrieves an instance by its SOP Instance UID
func (r *InstanceRepository) FindByUID(ctx context.Context, sopInstanceUID string) (*models.Instance, error) {
	var instance models.Instance
	if err := database.DB.WithContext(ctx).
		Where("sop_instance_uid = ?", sopInstanceUID).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindBySeriesID lists instances of a series ordered by instance number
func (r *InstanceRepository) FindBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]models.Instance, error) {
	var instances []models.Instance
	if err := database.DB.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("instance_number ASC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return instances, nil
}

// UpdateStatus persists processing-status fields
func (r *InstanceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update instance status: %w", err)
	}
	return nil
}

// UpdateValidation persists the validation engine outcome
func (r *InstanceRepository) UpdateValidation(ctx context.Context, id uuid.UUID, result models.ValidationResult) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"validation_status": result.Status,
			"validation_errors": strings.Join(result.Errors, "; "),
			"quality_score":     result.QualityScore,
		}).Error; err != nil {
		return fmt.Errorf("failed to update instance validation: %w", err)
	}
	return nil
}

// UpdateAnalysisResult writes the async analysis outcome. Only analysis
// fields are touched, so a late result can land concurrently with other
// updates to the same row.
func (r *InstanceRepository) UpdateAnalysisResult(ctx context.Context, id uuid.UUID, summary string) error {
	now := time.Now().UTC()
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"analysis_completed": true,
			"analysis_summary":   summary,
			"analyzed_at":        now,
		}).Error; err != nil {
		return fmt.Errorf("failed to update analysis result: %w", err)
	}
	return nil
}

// IncrementAccess atomically bumps the access counter and stamps the access
// time as the retrieval side effect.
func (r *InstanceRepository) IncrementAccess(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("failed to increment access count: %w", err)
	}
	return nil
}

// UpdateCacheResidency records whether the blob currently sits in cache
func (r *InstanceRepository) UpdateCacheResidency(ctx context.Context, id uuid.UUID, cached bool, location string) error {
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_cached":      cached,
			"cache_location": location,
		}).Error; err != nil {
		return fmt.Errorf("failed to update cache residency: %w", err)
	}
	return nil
}

// FindDuplicateClusters groups instances by content hash and returns the
// groups with more than one member. Resolution is an administrative action;
// nothing is deleted here.
func (r *InstanceRepository) FindDuplicateClusters(ctx context.Context) ([]models.DuplicateCluster, error) {
	type row struct {
		ContentHash string
		Count       int
	}
	var rows []row
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Select("content_hash, COUNT(*) AS count").
		Where("content_hash <> ''").
		Group("content_hash").
		Having("COUNT(*) > 1").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group duplicates: %w", err)
	}

	clusters := make([]models.DuplicateCluster, 0, len(rows))
	for _, rw := range rows {
		var uids []string
		if err := database.DB.WithContext(ctx).
			Model(&models.Instance{}).
			Where("content_hash = ?", rw.ContentHash).
			Order("created_at ASC").
			Pluck("sop_instance_uid", &uids).Error; err != nil {
			return nil, fmt.Errorf("failed to list duplicate members: %w", err)
		}
		clusters = append(clusters, models.DuplicateCluster{
			ContentHash:     rw.ContentHash,
			Count:           rw.Count,
			SOPInstanceUIDs: uids,
		})
	}
	return clusters, nil
}

// CountAll returns the total number of instances
func (r *InstanceRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := database.DB.WithContext(ctx).Model(&models.Instance{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}
	return n, nil
}

// CountPendingValidation returns instances not yet validated
func (r *InstanceRepository) CountPendingValidation(ctx context.Context) (int64, error) {
	var n int64
	if err := database.DB.WithContext(ctx).
		Model(&models.Instance{}).
		Where("validation_status = ?", models.InstanceValidationPending).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending validation: %w", err)
	}
	return n, nil
}
