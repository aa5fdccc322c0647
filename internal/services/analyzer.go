package services

import (
	"context"
	"fmt"

	"github.com/otcheredev/ris-imaging-service/internal/models"
)

// ImageAnalyzer produces a textual analysis summary for a stored instance.
// Analysis runs detached from the ingestion call; its result lands on the
// instance row whenever it arrives.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, instance *models.Instance) (string, error)
}

// DescriptorAnalyzer derives basic image descriptors from stored metadata.
// It stands in for an external model service in deployments without one.
type DescriptorAnalyzer struct{}

// NewDescriptorAnalyzer creates a metadata-based analyzer.
func NewDescriptorAnalyzer() *DescriptorAnalyzer {
	return &DescriptorAnalyzer{}
}

// Analyze summarizes pixel geometry and encoding of the instance.
func (a *DescriptorAnalyzer) Analyze(ctx context.Context, instance *models.Instance) (string, error) {
	if instance.Rows <= 0 || instance.Columns <= 0 {
		return "", fmt.Errorf("instance %s has no pixel geometry", instance.SOPInstanceUID)
	}

	uncompressed := int64(instance.Rows) * int64(instance.Columns) *
		int64(instance.SamplesPerPixel) * int64(instance.BitsAllocated/8) *
		int64(instance.NumberOfFrames)

	summary := fmt.Sprintf(
		"%dx%d, %d frame(s), %d-bit %s, est. uncompressed %d bytes, stored %d bytes",
		instance.Columns, instance.Rows, instance.NumberOfFrames,
		instance.BitsStored, instance.PhotometricInterpretation,
		uncompressed, instance.SizeBytes,
	)
	return summary, nil
}
