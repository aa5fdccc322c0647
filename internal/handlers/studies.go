package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/otcheredev/ris-imaging-service/internal/services"
	"github.com/rs/zerolog/log"
)

type StudyHandler struct {
	studyService *services.StudyService
}

func NewStudyHandler(studyService *services.StudyService) *StudyHandler {
	return &StudyHandler{
		studyService: studyService,
	}
}

// Create explicitly creates a study ahead of instance arrival.
func (h *StudyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.StudyCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	study, err := h.studyService.CreateStudy(ctx, &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create study")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, study)
}

// Get returns one study by Study Instance UID.
func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")
	study, err := h.studyService.GetStudy(ctx, studyUID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, study)
}

// Search returns a study page matching the query filters.
func (h *StudyHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.StudyFilter{
		PatientID:     r.URL.Query().Get("patientId"),
		Modality:      r.URL.Query().Get("modality"),
		WorkflowState: r.URL.Query().Get("status"),
	}
	if v := r.URL.Query().Get("dateFrom"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := r.URL.Query().Get("dateTo"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateTo = &t
		}
	}
	filter.UrgentOnly, _ = strconv.ParseBool(r.URL.Query().Get("urgent"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.studyService.Search(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to search studies")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// UpdateWorkflow applies a workflow transition to a study.
func (h *StudyHandler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")

	var req models.WorkflowUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	study, err := h.studyService.UpdateWorkflow(ctx, studyUID, req.WorkflowState)
	if err != nil {
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Failed to update study workflow")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, study)
}

// ListSeries returns a study's series.
func (h *StudyHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")
	series, err := h.studyService.ListSeries(ctx, studyUID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, series)
}

// ListInstances returns a series' instances.
func (h *StudyHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	seriesUID := chi.URLParam(r, "seriesUID")
	instances, err := h.studyService.ListInstances(ctx, seriesUID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, instances)
}

// UpdateValidation applies a validation-status transition to a study.
func (h *StudyHandler) UpdateValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")

	var req models.ValidationStatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	study, err := h.studyService.UpdateValidationStatus(ctx, studyUID, req.ValidationStatus)
	if err != nil {
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Failed to update study validation status")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, study)
}

// UpdateSeriesStatus applies a status transition to a series.
func (h *StudyHandler) UpdateSeriesStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	seriesUID := chi.URLParam(r, "seriesUID")

	var req models.SeriesStatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	series, err := h.studyService.UpdateSeriesStatus(ctx, seriesUID, req.Status)
	if err != nil {
		log.Error().Err(err).Str("series_uid", seriesUID).Msg("Failed to update series status")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, series)
}

// Archive moves a study to the terminal ARCHIVED state.
func (h *StudyHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")
	study, err := h.studyService.ArchiveStudy(ctx, studyUID)
	if err != nil {
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Failed to archive study")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, study)
}

// Duplicates reports clusters of instances sharing one content hash.
func (h *StudyHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clusters, err := h.studyService.DuplicateReport(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build duplicate report")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clusters)
}

// Statistics returns the live dashboard counts.
func (h *StudyHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.studyService.DashboardStats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute statistics")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
