package dicomio

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// DICOMExtractor implements MetadataExtractor on top of a real DICOM parser.
// Pixel data is skipped; only headers are read.
type DICOMExtractor struct{}

// NewDICOMExtractor creates a header-only DICOM metadata extractor.
func NewDICOMExtractor() *DICOMExtractor {
	return &DICOMExtractor{}
}

// Extract parses the dataset headers of one DICOM file.
func (e *DICOMExtractor) Extract(ctx context.Context, data []byte) (*ImageMetadata, error) {
	ds, err := dicom.ParseUntilEOF(bytes.NewReader(data), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	md := &ImageMetadata{
		StudyInstanceUID:  stringValue(&ds, tag.StudyInstanceUID),
		SeriesInstanceUID: stringValue(&ds, tag.SeriesInstanceUID),
		SOPInstanceUID:    stringValue(&ds, tag.SOPInstanceUID),
		SOPClassUID:       stringValue(&ds, tag.SOPClassUID),
		TransferSyntaxUID: stringValue(&ds, tag.TransferSyntaxUID),

		PatientID:   stringValue(&ds, tag.PatientID),
		PatientName: stringValue(&ds, tag.PatientName),

		AccessionNumber:    stringValue(&ds, tag.AccessionNumber),
		StudyDescription:   stringValue(&ds, tag.StudyDescription),
		SeriesDescription:  stringValue(&ds, tag.SeriesDescription),
		Modality:           stringValue(&ds, tag.Modality),
		BodyPart:           stringValue(&ds, tag.BodyPartExamined),
		ProtocolName:       stringValue(&ds, tag.ProtocolName),
		ReferringPhysician: stringValue(&ds, tag.ReferringPhysicianName),

		SeriesNumber:   intValue(&ds, tag.SeriesNumber),
		InstanceNumber: intValue(&ds, tag.InstanceNumber),

		Rows:                      intValue(&ds, tag.Rows),
		Columns:                   intValue(&ds, tag.Columns),
		BitsAllocated:             intValue(&ds, tag.BitsAllocated),
		BitsStored:                intValue(&ds, tag.BitsStored),
		SamplesPerPixel:           intValue(&ds, tag.SamplesPerPixel),
		NumberOfFrames:            intValue(&ds, tag.NumberOfFrames),
		PhotometricInterpretation: stringValue(&ds, tag.PhotometricInterpretation),

		SliceThicknessMM: floatValue(&ds, tag.SliceThickness),
		RepetitionTimeMS: floatValue(&ds, tag.RepetitionTime),
		EchoTimeMS:       floatValue(&ds, tag.EchoTime),
		FieldStrengthT:   floatValue(&ds, tag.MagneticFieldStrength),
	}

	if md.SOPInstanceUID == "" || md.SeriesInstanceUID == "" || md.StudyInstanceUID == "" {
		return nil, fmt.Errorf("dataset is missing hierarchy identifiers")
	}

	md.StudyDate = dateValue(&ds, tag.StudyDate)
	md.ContentDate = dateValue(&ds, tag.ContentDate)
	if md.NumberOfFrames == 0 {
		md.NumberOfFrames = 1
	}

	return md, nil
}

func stringValue(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func intValue(ds *dicom.Dataset, t tag.Tag) int {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0
	}
	switch vals := el.Value.GetValue().(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0]
		}
	case []string:
		if len(vals) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(vals[0])); err == nil {
				return n
			}
		}
	}
	return 0
}

func floatValue(ds *dicom.Dataset, t tag.Tag) *float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	switch vals := el.Value.GetValue().(type) {
	case []float64:
		if len(vals) > 0 {
			return &vals[0]
		}
	case []string:
		if len(vals) > 0 {
			if f, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// dateValue parses a DA element (yyyymmdd). Zero time when absent or bad.
func dateValue(ds *dicom.Dataset, t tag.Tag) time.Time {
	raw := stringValue(ds, t)
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse("20060102", raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
