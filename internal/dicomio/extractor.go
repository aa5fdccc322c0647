package dicomio

import (
	"context"
	"time"
)

// ImageMetadata is the structured record produced by parsing one image file.
type ImageMetadata struct {
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	SOPClassUID       string
	TransferSyntaxUID string

	PatientID   string
	PatientName string

	StudyDate          time.Time
	ContentDate        time.Time
	AccessionNumber    string
	StudyDescription   string
	SeriesDescription  string
	Modality           string
	BodyPart           string
	ProtocolName       string
	ReferringPhysician string

	SeriesNumber   int
	InstanceNumber int

	Rows                      int
	Columns                   int
	BitsAllocated             int
	BitsStored                int
	SamplesPerPixel           int
	NumberOfFrames            int
	PhotometricInterpretation string

	SliceThicknessMM *float64
	RepetitionTimeMS *float64
	EchoTimeMS       *float64
	FieldStrengthT   *float64
}

// MetadataExtractor turns a raw image file into an ImageMetadata record. A
// parse failure aborts ingestion; no partial state is created.
type MetadataExtractor interface {
	Extract(ctx context.Context, data []byte) (*ImageMetadata, error)
}

// dicomPreambleOffset is where the "DICM" magic sits in a part-10 file.
const dicomPreambleOffset = 128

// HasDICOMPreamble reports whether data carries the part-10 magic bytes.
func HasDICOMPreamble(data []byte) bool {
	if len(data) < dicomPreambleOffset+4 {
		return false
	}
	return string(data[dicomPreambleOffset:dicomPreambleOffset+4]) == "DICM"
}
