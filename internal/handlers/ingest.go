package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/ris-imaging-service/internal/models"
	"github.com/otcheredev/ris-imaging-service/internal/services"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes caps one uploaded instance at 512 MiB.
const maxUploadBytes = 512 << 20

type IngestHandler struct {
	ingestService *services.IngestService
}

func NewIngestHandler(ingestService *services.IngestService) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
	}
}

// Upload handles instance ingestion. The body is the raw file; validate and
// analyze query flags drive the optional pipeline steps.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Empty request body", http.StatusBadRequest)
		return
	}
	if len(data) > maxUploadBytes {
		http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
		return
	}

	opts := models.IngestOptions{
		ValidateOnUpload:     boolParam(r, "validate"),
		PerformImageAnalysis: boolParam(r, "analyze"),
	}

	result, err := h.ingestService.Ingest(ctx, data, opts)
	if err != nil {
		log.Error().Err(err).Int("size", len(data)).Msg("Ingestion failed")
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Retrieve streams the stored bytes for a SOP Instance UID.
func (h *IngestHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sopInstanceUID := chi.URLParam(r, "sopInstanceUID")
	if sopInstanceUID == "" {
		http.Error(w, "SOP Instance UID is required", http.StatusBadRequest)
		return
	}

	data, contentType, err := h.ingestService.Retrieve(ctx, sopInstanceUID)
	if err != nil {
		log.Error().Err(err).Str("sop_instance_uid", sopInstanceUID).Msg("Failed to retrieve instance")
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// UpdateStatus applies a processing-status transition to an instance.
func (h *IngestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sopInstanceUID := chi.URLParam(r, "sopInstanceUID")
	if sopInstanceUID == "" {
		http.Error(w, "SOP Instance UID is required", http.StatusBadRequest)
		return
	}

	var req models.InstanceStatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	instance, err := h.ingestService.UpdateInstanceStatus(ctx, sopInstanceUID, req.ProcessingStatus)
	if err != nil {
		log.Error().Err(err).Str("sop_instance_uid", sopInstanceUID).Msg("Failed to update instance status")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, instance)
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
