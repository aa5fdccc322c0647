package services

import (
	"context"
	"fmt"

	"github.com/otcheredev/ris-imaging-service/internal/events"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/otcheredev/ris-imaging-service/internal/repository"
	"github.com/rs/zerolog/log"
)

// StudyService handles study-level operations: explicit creation, search,
// workflow and validation transitions, archival, series completion, the
// duplicate report and dashboard statistics.
type StudyService struct {
	studies     StudyStore
	series      SeriesStore
	instances   InstanceStore
	annotations AnnotationStore
	publisher   events.Publisher
}

// NewStudyService creates a new study service
func NewStudyService(
	studies StudyStore,
	series SeriesStore,
	instances InstanceStore,
	annotations AnnotationStore,
	publisher events.Publisher,
) *StudyService {
	return &StudyService{
		studies:     studies,
		series:      series,
		instances:   instances,
		annotations: annotations,
		publisher:   publisher,
	}
}

// CreateStudy creates a study ahead of instance arrival. An already-known
// Study Instance UID returns the existing row untouched.
func (s *StudyService) CreateStudy(ctx context.Context, req *models.StudyCreateRequest) (*models.Study, error) {
	if req.StudyInstanceUID == "" || req.PatientID == "" {
		return nil, fmt.Errorf("%w: study UID and patient id are required", ErrInvalidFormat)
	}

	if existing, err := s.studies.FindByUID(ctx, req.StudyInstanceUID); err == nil {
		return existing, nil
	} else if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up study: %w", err)
	}

	study := &models.Study{
		StudyInstanceUID:   req.StudyInstanceUID,
		PatientID:          req.PatientID,
		AccessionNumber:    req.AccessionNumber,
		StudyDate:          req.StudyDate,
		Description:        req.Description,
		Modality:           req.Modality,
		BodyPart:           req.BodyPart,
		ReferringPhysician: req.ReferringPhysician,
		OrderingPhysician:  req.OrderingPhysician,
		ClinicalIndication: req.ClinicalIndication,
		DiagnosisCode:      req.DiagnosisCode,
		IsUrgent:           req.IsUrgent,
		OrderID:            req.OrderID,
		AppointmentID:      req.AppointmentID,
		EncounterID:        req.EncounterID,
		WorkflowState:      models.StudyPendingReview,
		ValidationStatus:   models.StudyNotValidated,
	}
	if err := s.studies.Create(ctx, study); err != nil {
		return nil, fmt.Errorf("failed to create study: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:             events.TypeStudyCreated,
		StudyInstanceUID: study.StudyInstanceUID,
	})
	return study, nil
}

// GetStudy retrieves a study by Study Instance UID
func (s *StudyService) GetStudy(ctx context.Context, studyUID string) (*models.Study, error) {
	study, err := s.studies.FindByUID(ctx, studyUID)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: study %s", ErrNotFound, studyUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up study: %w", err)
	}
	return study, nil
}

// Search returns a page of studies matching the filter
func (s *StudyService) Search(ctx context.Context, filter models.StudyFilter) (*models.StudyPage, error) {
	page, err := s.studies.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search studies: %w", err)
	}
	return page, nil
}

// UpdateWorkflow applies a workflow transition. Moves not in the transition
// table are rejected and the study is left unchanged.
func (s *StudyService) UpdateWorkflow(ctx context.Context, studyUID string, next models.StudyWorkflowState) (*models.Study, error) {
	study, err := s.GetStudy(ctx, studyUID)
	if err != nil {
		return nil, err
	}

	if !study.WorkflowState.CanTransition(next) {
		return nil, fmt.Errorf("%w: study workflow %s -> %s", ErrIllegalTransition, study.WorkflowState, next)
	}

	updates := map[string]interface{}{"workflow_state": next}
	if err := s.studies.UpdateStatus(ctx, study.ID, updates); err != nil {
		return nil, err
	}
	study.WorkflowState = next

	s.publish(ctx, events.Event{
		Type:             events.TypeStudyStatusChanged,
		StudyInstanceUID: study.StudyInstanceUID,
		Detail:           string(next),
	})
	return study, nil
}

// UpdateValidationStatus applies a study validation-axis transition.
func (s *StudyService) UpdateValidationStatus(ctx context.Context, studyUID string, next models.StudyValidationStatus) (*models.Study, error) {
	study, err := s.GetStudy(ctx, studyUID)
	if err != nil {
		return nil, err
	}

	if !study.ValidationStatus.CanTransition(next) {
		return nil, fmt.Errorf("%w: study validation %s -> %s", ErrIllegalTransition, study.ValidationStatus, next)
	}

	if err := s.studies.UpdateStatus(ctx, study.ID, map[string]interface{}{
		"validation_status": next,
	}); err != nil {
		return nil, err
	}
	study.ValidationStatus = next
	return study, nil
}

// ArchiveStudy moves a study to the terminal ARCHIVED state. Studies are
// never physically deleted.
func (s *StudyService) ArchiveStudy(ctx context.Context, studyUID string) (*models.Study, error) {
	study, err := s.GetStudy(ctx, studyUID)
	if err != nil {
		return nil, err
	}

	if !study.WorkflowState.CanTransition(models.StudyArchived) {
		return nil, fmt.Errorf("%w: study workflow %s -> %s", ErrIllegalTransition, study.WorkflowState, models.StudyArchived)
	}

	if err := s.studies.Archive(ctx, study.ID); err != nil {
		return nil, err
	}
	study.WorkflowState = models.StudyArchived
	study.IsArchived = true

	s.publish(ctx, events.Event{
		Type:             events.TypeStudyArchived,
		StudyInstanceUID: study.StudyInstanceUID,
	})
	return study, nil
}

// ListSeries returns a study's series ordered by series number.
func (s *StudyService) ListSeries(ctx context.Context, studyUID string) ([]models.Series, error) {
	study, err := s.GetStudy(ctx, studyUID)
	if err != nil {
		return nil, err
	}
	return s.series.FindByStudyID(ctx, study.ID)
}

// ListInstances returns a series' instances ordered by instance number.
func (s *StudyService) ListInstances(ctx context.Context, seriesUID string) ([]models.Instance, error) {
	series, err := s.series.FindByUID(ctx, seriesUID)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: series %s", ErrNotFound, seriesUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up series: %w", err)
	}
	return s.instances.FindBySeriesID(ctx, series.ID)
}

// ReconcileSeries sweeps PENDING and FAILED series and completes those that
// have reached their expected instance count. Returns how many were moved.
func (s *StudyService) ReconcileSeries(ctx context.Context, limit int) (int, error) {
	candidates, err := s.series.FindNeedingProcessing(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list series needing processing: %w", err)
	}

	completed := 0
	for _, series := range candidates {
		if series.ExpectedInstances <= 0 || series.NumberOfInstances < series.ExpectedInstances {
			continue
		}
		if !series.Status.CanTransition(models.SeriesCompleted) {
			continue
		}
		if err := s.series.UpdateStatus(ctx, series.ID, models.SeriesCompleted); err != nil {
			log.Error().Err(err).Str("series_uid", series.SeriesInstanceUID).
				Msg("Failed to complete series")
			continue
		}
		completed++
	}
	return completed, nil
}

// UpdateSeriesStatus applies a series-status transition.
func (s *StudyService) UpdateSeriesStatus(ctx context.Context, seriesUID string, next models.SeriesStatus) (*models.Series, error) {
	series, err := s.series.FindByUID(ctx, seriesUID)
	if repository.IsNotFound(err) {
		return nil, fmt.Errorf("%w: series %s", ErrNotFound, seriesUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up series: %w", err)
	}

	if !series.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: series %s -> %s", ErrIllegalTransition, series.Status, next)
	}

	if err := s.series.UpdateStatus(ctx, series.ID, next); err != nil {
		return nil, err
	}
	series.Status = next
	return series, nil
}

// DuplicateReport lists clusters of instances sharing one content hash.
func (s *StudyService) DuplicateReport(ctx context.Context) ([]models.DuplicateCluster, error) {
	clusters, err := s.instances.FindDuplicateClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build duplicate report: %w", err)
	}
	return clusters, nil
}

// DashboardStats computes the dashboard counts live from repository state.
func (s *StudyService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	totalStudies, err := s.studies.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	totalInstances, err := s.instances.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	pendingValidation, err := s.instances.CountPendingValidation(ctx)
	if err != nil {
		return nil, err
	}
	urgent, err := s.studies.CountUrgent(ctx)
	if err != nil {
		return nil, err
	}
	backlog, err := s.annotations.CountPendingApproval(ctx)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		TotalStudies:                totalStudies,
		TotalInstances:              totalInstances,
		PendingValidation:           pendingValidation,
		UrgentStudies:               urgent,
		AnnotationsAwaitingApproval: backlog,
	}, nil
}

func (s *StudyService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Event publish failed")
	}
}
