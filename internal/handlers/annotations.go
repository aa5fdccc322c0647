package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/otcheredev/ris-imaging-service/internal/services"
	"github.com/rs/zerolog/log"
)

type AnnotationHandler struct {
	annotationService *services.AnnotationService
}

func NewAnnotationHandler(annotationService *services.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{
		annotationService: annotationService,
	}
}

// Create adds an annotation to a study.
func (h *AnnotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")

	var req models.AnnotationCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	annotation, err := h.annotationService.Create(ctx, studyUID, &req)
	if err != nil {
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Failed to create annotation")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, annotation)
}

// ListByStudy returns a study's annotations, newest first. aiMinConfidence
// narrows to high-confidence AI annotations.
func (h *AnnotationHandler) ListByStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studyUID := chi.URLParam(r, "studyUID")

	var aiMinConfidence *float64
	if v := r.URL.Query().Get("aiMinConfidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "Invalid aiMinConfidence", http.StatusBadRequest)
			return
		}
		aiMinConfidence = &f
	}

	annotations, err := h.annotationService.ListByStudy(ctx, studyUID, aiMinConfidence)
	if err != nil {
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Failed to list annotations")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, annotations)
}

// Submit moves a draft annotation into the approval queue.
func (h *AnnotationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(in reviewInput) (*models.Annotation, error) {
		return h.annotationService.Submit(in.ctx, in.id)
	})
}

// Approve finalizes a pending annotation.
func (h *AnnotationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(in reviewInput) (*models.Annotation, error) {
		return h.annotationService.Approve(in.ctx, in.id, in.req)
	})
}

// Reject sends a pending annotation back with notes.
func (h *AnnotationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, func(in reviewInput) (*models.Annotation, error) {
		return h.annotationService.Reject(in.ctx, in.id, in.req)
	})
}

type reviewInput struct {
	ctx context.Context
	id  uuid.UUID
	req *models.AnnotationReviewRequest
}

func (h *AnnotationHandler) review(w http.ResponseWriter, r *http.Request, fn func(reviewInput) (*models.Annotation, error)) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid annotation id", http.StatusBadRequest)
		return
	}

	req := &models.AnnotationReviewRequest{}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	annotation, err := fn(reviewInput{ctx: r.Context(), id: id, req: req})
	if err != nil {
		log.Error().Err(err).Str("annotation_id", idStr).Msg("Annotation review action failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, annotation)
}
