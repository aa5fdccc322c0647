package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/dicomio"
	"github.com/otcheredev/ris-imaging-service/internal/events"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"gorm.io/gorm"
)

// memDB is the shared in-memory backing for the store fakes. All reads hand
// out copies so concurrent tests never race on shared rows.
type memDB struct {
	mu          sync.Mutex
	studies     map[uuid.UUID]*models.Study
	series      map[uuid.UUID]*models.Series
	instances   map[uuid.UUID]*models.Instance
	annotations map[uuid.UUID]*models.Annotation
}

func newMemDB() *memDB {
	return &memDB{
		studies:     make(map[uuid.UUID]*models.Study),
		series:      make(map[uuid.UUID]*models.Series),
		instances:   make(map[uuid.UUID]*models.Instance),
		annotations: make(map[uuid.UUID]*models.Annotation),
	}
}

type fakeStudies struct{ db *memDB }
type fakeSeries struct{ db *memDB }
type fakeInstances struct{ db *memDB }
type fakeAnnotations struct{ db *memDB }

func (f *fakeStudies) Create(ctx context.Context, study *models.Study) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if study.ID == uuid.Nil {
		study.ID = uuid.New()
	}
	for _, s := range f.db.studies {
		if s.StudyInstanceUID == study.StudyInstanceUID {
			return fmt.Errorf("duplicate study UID %s", study.StudyInstanceUID)
		}
	}
	cp := *study
	f.db.studies[study.ID] = &cp
	return nil
}

func (f *fakeStudies) FindByUID(ctx context.Context, studyUID string) (*models.Study, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.studies {
		if s.StudyInstanceUID == studyUID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStudies) FindByID(ctx context.Context, id uuid.UUID) (*models.Study, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.studies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudies) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.studies[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["workflow_state"]; ok {
		s.WorkflowState = v.(models.StudyWorkflowState)
	}
	if v, ok := updates["validation_status"]; ok {
		s.ValidationStatus = v.(models.StudyValidationStatus)
	}
	return nil
}

func (f *fakeStudies) Archive(ctx context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.studies[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.WorkflowState = models.StudyArchived
	s.IsArchived = true
	return nil
}

func (f *fakeStudies) RecountAggregates(ctx context.Context, studyID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.studies[studyID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	var seriesCount, instanceCount int
	var bytes int64
	for _, se := range f.db.series {
		if se.StudyID != studyID {
			continue
		}
		seriesCount++
		for _, in := range f.db.instances {
			if in.SeriesID == se.ID {
				instanceCount++
				bytes += in.SizeBytes
			}
		}
	}
	s.NumberOfSeries = seriesCount
	s.NumberOfInstances = instanceCount
	s.TotalSizeBytes = bytes
	return nil
}

func (f *fakeStudies) Search(ctx context.Context, filter models.StudyFilter) (*models.StudyPage, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var matched []models.Study
	for _, s := range f.db.studies {
		if filter.PatientID != "" && s.PatientID != filter.PatientID {
			continue
		}
		if filter.Modality != "" && s.Modality != filter.Modality {
			continue
		}
		if filter.WorkflowState != "" && string(s.WorkflowState) != filter.WorkflowState {
			continue
		}
		if filter.UrgentOnly && !s.IsUrgent {
			continue
		}
		matched = append(matched, *s)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StudyDate.After(matched[j].StudyDate)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	total := int64(len(matched))
	if filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else {
		matched = nil
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return &models.StudyPage{Studies: matched, Total: total, Limit: limit, Offset: filter.Offset}, nil
}

func (f *fakeStudies) CountAll(ctx context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return int64(len(f.db.studies)), nil
}

func (f *fakeStudies) CountUrgent(ctx context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, s := range f.db.studies {
		if s.IsUrgent && !s.IsArchived {
			n++
		}
	}
	return n, nil
}

func (f *fakeSeries) Create(ctx context.Context, series *models.Series) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if series.ID == uuid.Nil {
		series.ID = uuid.New()
	}
	for _, s := range f.db.series {
		if s.SeriesInstanceUID == series.SeriesInstanceUID {
			return fmt.Errorf("duplicate series UID %s", series.SeriesInstanceUID)
		}
	}
	cp := *series
	f.db.series[series.ID] = &cp
	return nil
}

func (f *fakeSeries) FindByUID(ctx context.Context, seriesUID string) (*models.Series, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.series {
		if s.SeriesInstanceUID == seriesUID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSeries) FindByID(ctx context.Context, id uuid.UUID) (*models.Series, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.series[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSeries) FindByStudyID(ctx context.Context, studyID uuid.UUID) ([]models.Series, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Series
	for _, s := range f.db.series {
		if s.StudyID == studyID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeriesNumber < out[j].SeriesNumber })
	return out, nil
}

func (f *fakeSeries) FindNeedingProcessing(ctx context.Context, limit int) ([]models.Series, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Series
	for _, s := range f.db.series {
		if s.Status == models.SeriesPending || s.Status == models.SeriesFailed {
			out = append(out, *s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSeries) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SeriesStatus) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.series[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeSeries) RecountAggregates(ctx context.Context, seriesID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.series[seriesID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	var count int
	var bytes int64
	for _, in := range f.db.instances {
		if in.SeriesID == seriesID {
			count++
			bytes += in.SizeBytes
		}
	}
	s.NumberOfInstances = count
	s.TotalSizeBytes = bytes
	return nil
}

func (f *fakeInstances) Create(ctx context.Context, instance *models.Instance) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	for _, in := range f.db.instances {
		if in.SOPInstanceUID == instance.SOPInstanceUID {
			return fmt.Errorf("duplicate SOP Instance UID %s", instance.SOPInstanceUID)
		}
	}
	cp := *instance
	f.db.instances[instance.ID] = &cp
	return nil
}

func (f *fakeInstances) FindByUID(ctx context.Context, sopInstanceUID string) (*models.Instance, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, in := range f.db.instances {
		if in.SOPInstanceUID == sopInstanceUID {
			cp := *in
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInstances) FindBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]models.Instance, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Instance
	for _, in := range f.db.instances {
		if in.SeriesID == seriesID {
			out = append(out, *in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceNumber < out[j].InstanceNumber })
	return out, nil
}

func (f *fakeInstances) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	in, ok := f.db.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["processing_status"]; ok {
		in.ProcessingStatus = v.(models.InstanceProcessingStatus)
	}
	return nil
}

func (f *fakeInstances) UpdateValidation(ctx context.Context, id uuid.UUID, result models.ValidationResult) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	in, ok := f.db.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	in.ValidationStatus = result.Status
	in.ValidationErrors = strings.Join(result.Errors, "; ")
	in.QualityScore = result.QualityScore
	return nil
}

func (f *fakeInstances) UpdateAnalysisResult(ctx context.Context, id uuid.UUID, summary string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	in, ok := f.db.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	in.AnalysisCompleted = true
	in.AnalysisSummary = summary
	return nil
}

func (f *fakeInstances) IncrementAccess(ctx context.Context, id uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	in, ok := f.db.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	in.AccessCount++
	return nil
}

func (f *fakeInstances) UpdateCacheResidency(ctx context.Context, id uuid.UUID, cached bool, location string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	in, ok := f.db.instances[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	in.IsCached = cached
	in.CacheLocation = location
	return nil
}

func (f *fakeInstances) FindDuplicateClusters(ctx context.Context) ([]models.DuplicateCluster, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	byHash := make(map[string][]string)
	for _, in := range f.db.instances {
		if in.ContentHash != "" {
			byHash[in.ContentHash] = append(byHash[in.ContentHash], in.SOPInstanceUID)
		}
	}
	var out []models.DuplicateCluster
	for hash, uids := range byHash {
		if len(uids) > 1 {
			sort.Strings(uids)
			out = append(out, models.DuplicateCluster{ContentHash: hash, Count: len(uids), SOPInstanceUIDs: uids})
		}
	}
	return out, nil
}

func (f *fakeInstances) CountAll(ctx context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return int64(len(f.db.instances)), nil
}

func (f *fakeInstances) CountPendingValidation(ctx context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, in := range f.db.instances {
		if in.ValidationStatus == models.InstanceValidationPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeAnnotations) Create(ctx context.Context, annotation *models.Annotation) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if annotation.ID == uuid.Nil {
		annotation.ID = uuid.New()
	}
	cp := *annotation
	f.db.annotations[annotation.ID] = &cp
	return nil
}

func (f *fakeAnnotations) FindByID(ctx context.Context, id uuid.UUID) (*models.Annotation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.annotations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAnnotations) Update(ctx context.Context, annotation *models.Annotation) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.annotations[annotation.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *annotation
	f.db.annotations[annotation.ID] = &cp
	return nil
}

func (f *fakeAnnotations) FindByStudyID(ctx context.Context, studyID uuid.UUID, aiMinConfidence *float64) ([]models.Annotation, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Annotation
	for _, a := range f.db.annotations {
		if a.StudyID != studyID {
			continue
		}
		if aiMinConfidence != nil {
			if !a.IsAIGenerated || a.AIConfidence == nil || *a.AIConfidence < *aiMinConfidence {
				continue
			}
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeAnnotations) CountPendingApproval(ctx context.Context) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, a := range f.db.annotations {
		if a.Status == models.AnnotationPendingApproval {
			n++
		}
	}
	return n, nil
}

// fakeContentStore is an in-memory ContentStore with an optional injected
// write failure.
type fakeContentStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	failNext bool
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{blobs: make(map[string][]byte)}
}

func (f *fakeContentStore) Store(ctx context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.blobs[path] = cp
	return nil
}

func (f *fakeContentStore) Retrieve(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[path]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return data, nil
}

func (f *fakeContentStore) Exists(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[path]
	return ok, nil
}

func (f *fakeContentStore) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, path)
	return nil
}

// extractorFunc adapts a function to the MetadataExtractor interface.
type extractorFunc func(ctx context.Context, data []byte) (*dicomio.ImageMetadata, error)

func (f extractorFunc) Extract(ctx context.Context, data []byte) (*dicomio.ImageMetadata, error) {
	return f(ctx, data)
}

// uidExtractor decodes payloads built by testPayload: a DICM preamble
// followed by "studyUID|seriesUID|sopUID".
func uidExtractor() extractorFunc {
	return func(ctx context.Context, data []byte) (*dicomio.ImageMetadata, error) {
		parts := strings.Split(string(data[132:]), "|")
		if len(parts) != 3 {
			return nil, errors.New("unreadable payload")
		}
		return &dicomio.ImageMetadata{
			StudyInstanceUID:          parts[0],
			SeriesInstanceUID:         parts[1],
			SOPInstanceUID:            parts[2],
			SOPClassUID:               "1.2.840.10008.5.1.4.1.1.2",
			TransferSyntaxUID:         "1.2.840.10008.1.2.1",
			PatientID:                 "PAT-100",
			Modality:                  "CT",
			Rows:                      512,
			Columns:                   512,
			BitsAllocated:             16,
			BitsStored:                12,
			SamplesPerPixel:           1,
			NumberOfFrames:            1,
			PhotometricInterpretation: "MONOCHROME2",
		}, nil
	}
}

func testPayload(studyUID, seriesUID, sopUID string) []byte {
	buf := make([]byte, 132)
	copy(buf[128:], "DICM")
	return append(buf, []byte(studyUID+"|"+seriesUID+"|"+sopUID)...)
}

// recordingPublisher captures published events; failAll makes every publish
// return an error.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []events.Event
	failAll bool
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
