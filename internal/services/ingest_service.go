package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/otcheredev/ris-imaging-service/internal/cache"
	"github.com/otcheredev/ris-imaging-service/internal/dicomio"
	"github.com/otcheredev/ris-imaging-service/internal/events"
	"github.com/otcheredev/ris-imaging-service/internal/keylock"
	"github.com/otcheredev/ris-imaging-service/internal/metrics"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/otcheredev/ris-imaging-service/internal/repository"
	"github.com/otcheredev/ris-imaging-service/internal/storage"
	"github.com/rs/zerolog/log"
)

// IngestService coordinates metadata extraction, blob storage, hierarchy
// upserts, validation, analysis hand-off, counter propagation and event
// publication for one uploaded instance.
type IngestService struct {
	studies   StudyStore
	series    SeriesStore
	instances InstanceStore
	store     storage.ContentStore
	extractor dicomio.MetadataExtractor
	validator *ValidationEngine
	analyzer  ImageAnalyzer
	publisher events.Publisher
	blobCache cache.Cache
	cacheTTL  time.Duration
	locks     *keylock.KeyLock
}

// NewIngestService creates a new ingestion orchestrator
func NewIngestService(
	studies StudyStore,
	series SeriesStore,
	instances InstanceStore,
	store storage.ContentStore,
	extractor dicomio.MetadataExtractor,
	validator *ValidationEngine,
	analyzer ImageAnalyzer,
	publisher events.Publisher,
	blobCache cache.Cache,
	cacheTTL time.Duration,
) *IngestService {
	return &IngestService{
		studies:   studies,
		series:    series,
		instances: instances,
		store:     store,
		extractor: extractor,
		validator: validator,
		analyzer:  analyzer,
		publisher: publisher,
		blobCache: blobCache,
		cacheTTL:  cacheTTL,
		locks:     keylock.New(),
	}
}

// Ingest runs the full pipeline for one uploaded file. Extraction and storage
// failures abort with nothing half-built; a known SOP Instance UID resolves
// to a duplicate result referencing the existing row.
func (s *IngestService) Ingest(ctx context.Context, data []byte, opts models.IngestOptions) (*models.IngestResult, error) {
	if !dicomio.HasDICOMPreamble(data) {
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeInvalidFormat).Inc()
		return nil, fmt.Errorf("%w: missing DICM preamble", ErrInvalidFormat)
	}

	md, err := s.extractor.Extract(ctx, data)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeExtractionFailed).Inc()
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, err)
	}

	// Fast duplicate path: a known SOP Instance UID never re-enters the
	// pipeline, and counters stay untouched.
	if existing, err := s.instances.FindByUID(ctx, md.SOPInstanceUID); err == nil {
		return s.duplicateResult(ctx, existing)
	} else if !repository.IsNotFound(err) {
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	// Resolve or create the parent rows under the study's key lock. The lock
	// is released before the blob write so storage I/O never blocks sibling
	// ingestions into the same study.
	lockKey := "study:" + md.StudyInstanceUID
	s.locks.Lock(lockKey)
	study, series, err := s.resolveHierarchy(ctx, md)
	s.locks.Unlock(lockKey)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	path := blobPath(md)
	if err := s.store.Store(ctx, path, data); err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeStorageFailure).Inc()
		return nil, fmt.Errorf("%w: %s", ErrStorageFailure, err)
	}

	sum := sha256.Sum256(data)

	instance := &models.Instance{
		SOPInstanceUID:            md.SOPInstanceUID,
		SOPClassUID:               md.SOPClassUID,
		SeriesID:                  series.ID,
		InstanceNumber:            md.InstanceNumber,
		ContentDate:               md.ContentDate,
		Rows:                      md.Rows,
		Columns:                   md.Columns,
		BitsAllocated:             md.BitsAllocated,
		BitsStored:                md.BitsStored,
		SamplesPerPixel:           md.SamplesPerPixel,
		NumberOfFrames:            md.NumberOfFrames,
		PhotometricInterpretation: md.PhotometricInterpretation,
		TransferSyntaxUID:         md.TransferSyntaxUID,
		StorageLocation:           path,
		SizeBytes:                 int64(len(data)),
		ContentHash:               hex.EncodeToString(sum[:]),
		ProcessingStatus:          models.InstanceStored,
		ValidationStatus:          models.InstanceValidationPending,
	}

	// Re-acquire briefly to attach the instance row and recompute parent
	// counters. The duplicate check repeats under the lock: a racing upload
	// of the same UID may have won while the blob was being written.
	s.locks.Lock(lockKey)
	existing, err := s.instances.FindByUID(ctx, md.SOPInstanceUID)
	if err == nil {
		s.locks.Unlock(lockKey)
		return s.duplicateResult(ctx, existing)
	}
	if !repository.IsNotFound(err) {
		s.locks.Unlock(lockKey)
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to re-check for duplicate: %w", err)
	}

	if err := s.instances.Create(ctx, instance); err != nil {
		s.locks.Unlock(lockKey)
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}
	if err := s.series.RecountAggregates(ctx, series.ID); err != nil {
		s.locks.Unlock(lockKey)
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	if err := s.studies.RecountAggregates(ctx, study.ID); err != nil {
		s.locks.Unlock(lockKey)
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	s.locks.Unlock(lockKey)

	result := &models.IngestResult{
		StudyID:           study.ID,
		SeriesID:          series.ID,
		InstanceID:        instance.ID,
		StudyInstanceUID:  study.StudyInstanceUID,
		SeriesInstanceUID: series.SeriesInstanceUID,
		SOPInstanceUID:    instance.SOPInstanceUID,
		StorageLocation:   path,
		SizeBytes:         instance.SizeBytes,
	}

	if opts.ValidateOnUpload {
		vr := s.validator.Validate(study, instance)
		if err := s.instances.UpdateValidation(ctx, instance.ID, vr); err != nil {
			log.Error().Err(err).Str("sop_instance_uid", instance.SOPInstanceUID).
				Msg("Failed to persist validation result")
		}
		next := models.InstanceValidated
		if vr.Status == models.InstanceValidationError {
			next = models.InstanceFailed
			metrics.ValidationFailuresTotal.Inc()
		}
		if err := s.instances.UpdateStatus(ctx, instance.ID, map[string]interface{}{
			"processing_status": next,
		}); err != nil {
			log.Error().Err(err).Str("sop_instance_uid", instance.SOPInstanceUID).
				Msg("Failed to persist processing status")
		}
		result.Validation = &vr
	}

	if opts.PerformImageAnalysis {
		s.scheduleAnalysis(*instance)
	}

	s.publish(ctx, events.Event{
		Type:              events.TypeInstanceUploaded,
		StudyInstanceUID:  study.StudyInstanceUID,
		SeriesInstanceUID: series.SeriesInstanceUID,
		SOPInstanceUID:    instance.SOPInstanceUID,
	})

	metrics.IngestsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.IngestedBytesTotal.Add(float64(len(data)))

	return result, nil
}

// resolveHierarchy looks up or creates the study and series for one metadata
// record. Identity fields of an existing study are never overwritten; the
// first writer wins.
func (s *IngestService) resolveHierarchy(ctx context.Context, md *dicomio.ImageMetadata) (*models.Study, *models.Series, error) {
	study, err := s.studies.FindByUID(ctx, md.StudyInstanceUID)
	if repository.IsNotFound(err) {
		study = &models.Study{
			StudyInstanceUID:   md.StudyInstanceUID,
			PatientID:          md.PatientID,
			AccessionNumber:    md.AccessionNumber,
			StudyDate:          md.StudyDate,
			Description:        md.StudyDescription,
			Modality:           md.Modality,
			BodyPart:           md.BodyPart,
			ReferringPhysician: md.ReferringPhysician,
			WorkflowState:      models.StudyPendingReview,
			ValidationStatus:   models.StudyNotValidated,
		}
		if err := s.studies.Create(ctx, study); err != nil {
			return nil, nil, fmt.Errorf("failed to create study: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to look up study: %w", err)
	}

	series, err := s.series.FindByUID(ctx, md.SeriesInstanceUID)
	if repository.IsNotFound(err) {
		series = &models.Series{
			SeriesInstanceUID: md.SeriesInstanceUID,
			StudyID:           study.ID,
			SeriesNumber:      md.SeriesNumber,
			Modality:          md.Modality,
			BodyPart:          md.BodyPart,
			Description:       md.SeriesDescription,
			ProtocolName:      md.ProtocolName,
			SliceThicknessMM:  md.SliceThicknessMM,
			RepetitionTimeMS:  md.RepetitionTimeMS,
			EchoTimeMS:        md.EchoTimeMS,
			FieldStrengthT:    md.FieldStrengthT,
			Status:            models.SeriesPending,
		}
		if err := s.series.Create(ctx, series); err != nil {
			return nil, nil, fmt.Errorf("failed to create series: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to look up series: %w", err)
	}

	return study, series, nil
}

// duplicateResult builds the idempotent outcome for a re-ingested UID.
func (s *IngestService) duplicateResult(ctx context.Context, existing *models.Instance) (*models.IngestResult, error) {
	series, err := s.series.FindByID(ctx, existing.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve duplicate series: %w", err)
	}
	study, err := s.studies.FindByID(ctx, series.StudyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve duplicate study: %w", err)
	}

	metrics.IngestsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
	metrics.DuplicatesTotal.Inc()

	return &models.IngestResult{
		StudyID:           study.ID,
		SeriesID:          series.ID,
		InstanceID:        existing.ID,
		StudyInstanceUID:  study.StudyInstanceUID,
		SeriesInstanceUID: series.SeriesInstanceUID,
		SOPInstanceUID:    existing.SOPInstanceUID,
		StorageLocation:   existing.StorageLocation,
		SizeBytes:         existing.SizeBytes,
		Duplicate:         true,
	}, nil
}

// scheduleAnalysis hands the instance to the analyzer without awaiting it.
func (s *IngestService) scheduleAnalysis(instance models.Instance) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		summary, err := s.analyzer.Analyze(ctx, &instance)
		if err != nil {
			log.Warn().Err(err).Str("sop_instance_uid", instance.SOPInstanceUID).
				Msg("Image analysis failed")
			return
		}
		if err := s.instances.UpdateAnalysisResult(ctx, instance.ID, summary); err != nil {
			log.Error().Err(err).Str("sop_instance_uid", instance.SOPInstanceUID).
				Msg("Failed to persist analysis result")
		}
	}()
}

// Retrieve returns the stored bytes for a SOP Instance UID and bumps access
// telemetry. Cache-aside over the content store.
func (s *IngestService) Retrieve(ctx context.Context, sopInstanceUID string) ([]byte, string, error) {
	instance, err := s.instances.FindByUID(ctx, sopInstanceUID)
	if repository.IsNotFound(err) {
		return nil, "", fmt.Errorf("%w: instance %s", ErrNotFound, sopInstanceUID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up instance: %w", err)
	}

	key := cache.InstanceKey(sopInstanceUID)
	data, err := s.blobCache.Get(ctx, key)
	if err == nil {
		metrics.RetrievalsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.RetrievalsTotal.WithLabelValues("miss").Inc()
		data, err = s.store.Retrieve(ctx, instance.StorageLocation)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", ErrStorageFailure, err)
		}
		if err := s.blobCache.Set(ctx, key, data, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("sop_instance_uid", sopInstanceUID).Msg("Failed to cache blob")
		} else if err := s.instances.UpdateCacheResidency(ctx, instance.ID, true, key); err != nil {
			log.Warn().Err(err).Str("sop_instance_uid", sopInstanceUID).Msg("Failed to record cache residency")
		}
	}

	if err := s.instances.IncrementAccess(ctx, instance.ID); err != nil {
		log.Error().Err(err).Str("sop_instance_uid", sopInstanceUID).
			Msg("Failed to increment access count")
	}

	return data, "application/dicom", nil
}

// UpdateInstanceStatus applies a processing-status transition, rejecting any
// move not in the transition table.
func (s *IngestService) UpdateInstanceStatus(ctx context.Context, sopInstanceUID string, next models.InstanceProcessingStatus) (*models.Instance, error) {
	instance, err := s.instances.FindByUID(ctx, sopInstanceUID)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: instance %s", ErrNotFound, sopInstanceUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up instance: %w", err)
	}

	if !instance.ProcessingStatus.CanTransition(next) {
		return nil, fmt.Errorf("%w: instance %s -> %s", ErrIllegalTransition, instance.ProcessingStatus, next)
	}

	if err := s.instances.UpdateStatus(ctx, instance.ID, map[string]interface{}{
		"processing_status": next,
	}); err != nil {
		return nil, err
	}
	instance.ProcessingStatus = next
	return instance, nil
}

// publish delivers an event best-effort. Failures are logged and swallowed;
// a completed ingestion is never rolled back over a publish error.
func (s *IngestService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Event publish failed")
	}
}

// blobPath derives the content-store path from the UID hierarchy.
func blobPath(md *dicomio.ImageMetadata) string {
	return fmt.Sprintf("%s/%s/%s.dcm", md.StudyInstanceUID, md.SeriesInstanceUID, md.SOPInstanceUID)
}
