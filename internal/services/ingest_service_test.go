package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/otcheredev/ris-imaging-service/internal/cache"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStudyUID  = "1.2.840.113619.2.55.3.604688119.971.1680000000.100"
	testSeriesUID = "1.2.840.113619.2.55.3.604688119.971.1680000000.200"
	testSOPUID    = "1.2.840.113619.2.55.3.604688119.971.1680000000.300"
)

type ingestFixture struct {
	db        *memDB
	store     *fakeContentStore
	publisher *recordingPublisher
	blobCache *cache.MemoryCache
	svc       *IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	db := newMemDB()
	store := newFakeContentStore()
	publisher := &recordingPublisher{}
	blobCache := cache.NewMemoryCache()
	t.Cleanup(func() { _ = blobCache.Close() })

	svc := NewIngestService(
		&fakeStudies{db: db},
		&fakeSeries{db: db},
		&fakeInstances{db: db},
		store,
		uidExtractor(),
		NewValidationEngine(),
		NewDescriptorAnalyzer(),
		publisher,
		blobCache,
		time.Minute,
	)
	return &ingestFixture{db: db, store: store, publisher: publisher, blobCache: blobCache, svc: svc}
}

func TestIngestCreatesHierarchy(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID, testSOPUID), models.IngestOptions{})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, testStudyUID, result.StudyInstanceUID)
	assert.Equal(t, testSeriesUID, result.SeriesInstanceUID)
	assert.Equal(t, testSOPUID, result.SOPInstanceUID)

	study, err := f.svc.studies.FindByUID(ctx, testStudyUID)
	require.NoError(t, err)
	assert.Equal(t, models.StudyPendingReview, study.WorkflowState)
	assert.Equal(t, models.StudyNotValidated, study.ValidationStatus)
	assert.Equal(t, 1, study.NumberOfSeries)
	assert.Equal(t, 1, study.NumberOfInstances)

	instance, err := f.svc.instances.FindByUID(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStored, instance.ProcessingStatus)
	assert.NotEmpty(t, instance.ContentHash)
	assert.Equal(t, testStudyUID+"/"+testSeriesUID+"/"+testSOPUID+".dcm", instance.StorageLocation)
}

func TestIngestRejectsMissingPreamble(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.svc.Ingest(context.Background(), []byte("not a dicom file"), models.IngestOptions{})
	require.ErrorIs(t, err, ErrInvalidFormat)

	count, _ := f.svc.studies.CountAll(context.Background())
	assert.Zero(t, count)
}

func TestIngestIdempotentUpsert(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	// Two instances in different series of the same study: one study row,
	// two series rows, counters reflecting both.
	_, err := f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID+".1", testSOPUID+".1"), models.IngestOptions{})
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID+".2", testSOPUID+".2"), models.IngestOptions{})
	require.NoError(t, err)

	studies, _ := f.svc.studies.CountAll(ctx)
	assert.Equal(t, int64(1), studies)

	study, err := f.svc.studies.FindByUID(ctx, testStudyUID)
	require.NoError(t, err)
	assert.Equal(t, 2, study.NumberOfSeries)
	assert.Equal(t, 2, study.NumberOfInstances)
}

func TestIngestDuplicateSOPInstanceUID(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	payload := testPayload(testStudyUID, testSeriesUID, testSOPUID)

	first, err := f.svc.Ingest(ctx, payload, models.IngestOptions{})
	require.NoError(t, err)

	second, err := f.svc.Ingest(ctx, payload, models.IngestOptions{})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.InstanceID, second.InstanceID)

	instances, _ := f.svc.instances.CountAll(ctx)
	assert.Equal(t, int64(1), instances)

	// Counters untouched by the duplicate.
	study, err := f.svc.studies.FindByUID(ctx, testStudyUID)
	require.NoError(t, err)
	assert.Equal(t, 1, study.NumberOfInstances)
}

func TestIngestConcurrentCountersExact(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	const uploads = 100
	const seriesCount = 10

	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seriesUID := fmt.Sprintf("%s.%d", testSeriesUID, i%seriesCount)
			sopUID := fmt.Sprintf("%s.%d", testSOPUID, i)
			_, err := f.svc.Ingest(ctx, testPayload(testStudyUID, seriesUID, sopUID), models.IngestOptions{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	study, err := f.svc.studies.FindByUID(ctx, testStudyUID)
	require.NoError(t, err)
	assert.Equal(t, seriesCount, study.NumberOfSeries)
	assert.Equal(t, uploads, study.NumberOfInstances)

	instances, _ := f.svc.instances.CountAll(ctx)
	assert.Equal(t, int64(uploads), instances)
}

func TestIngestStorageFailureAborts(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.store.failNext = true

	_, err := f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID, testSOPUID), models.IngestOptions{})
	require.ErrorIs(t, err, ErrStorageFailure)

	// No instance row without a stored blob.
	instances, _ := f.svc.instances.CountAll(ctx)
	assert.Zero(t, instances)

	// A retry after the transient failure succeeds against the already
	// resolved hierarchy.
	result, err := f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID, testSOPUID), models.IngestOptions{})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
}

func TestIngestPublishFailureDoesNotFail(t *testing.T) {
	f := newIngestFixture(t)
	f.publisher.failAll = true

	result, err := f.svc.Ingest(context.Background(), testPayload(testStudyUID, testSeriesUID, testSOPUID), models.IngestOptions{})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
}

func TestIngestValidateOnUpload(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID, testSOPUID), models.IngestOptions{ValidateOnUpload: true})
	require.NoError(t, err)
	require.NotNil(t, result.Validation)
	assert.True(t, result.Validation.Valid)
	assert.Equal(t, models.InstanceValidationValid, result.Validation.Status)

	instance, err := f.svc.instances.FindByUID(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceValidated, instance.ProcessingStatus)
	assert.Equal(t, result.Validation.QualityScore, instance.QualityScore)
}

func TestRetrieveRoundTrip(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	payload := testPayload(testStudyUID, testSeriesUID, testSOPUID)

	_, err := f.svc.Ingest(ctx, payload, models.IngestOptions{})
	require.NoError(t, err)

	data, contentType, err := f.svc.Retrieve(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, "application/dicom", contentType)
	assert.Equal(t, payload, data)

	instance, err := f.svc.instances.FindByUID(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), instance.AccessCount)
	assert.True(t, instance.IsCached)

	// Second retrieval comes from cache and still bumps the counter once.
	data, _, err = f.svc.Retrieve(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	instance, err = f.svc.instances.FindByUID(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), instance.AccessCount)
}

func TestRetrieveUnknownInstance(t *testing.T) {
	f := newIngestFixture(t)

	_, _, err := f.svc.Retrieve(context.Background(), "9.9.9")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateInstanceStatusTransitions(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, testPayload(testStudyUID, testSeriesUID, testSOPUID), models.IngestOptions{})
	require.NoError(t, err)

	updated, err := f.svc.UpdateInstanceStatus(ctx, testSOPUID, models.InstanceValidated)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceValidated, updated.ProcessingStatus)

	// VALIDATED is terminal.
	_, err = f.svc.UpdateInstanceStatus(ctx, testSOPUID, models.InstanceReceived)
	require.ErrorIs(t, err, ErrIllegalTransition)

	instance, err := f.svc.instances.FindByUID(ctx, testSOPUID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceValidated, instance.ProcessingStatus)
}
