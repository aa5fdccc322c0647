package events

import (
	"context"
	"time"
)

// Event types emitted by the imaging pipeline.
const (
	TypeInstanceUploaded   = "INSTANCE_UPLOADED"
	TypeStudyCreated       = "STUDY_CREATED"
	TypeStudyStatusChanged = "STUDY_STATUS_CHANGED"
	TypeStudyArchived      = "STUDY_ARCHIVED"
	TypeAnnotationCreated  = "ANNOTATION_CREATED"
	TypeAnnotationReviewed = "ANNOTATION_REVIEWED"
)

// Event is the envelope published on every state change.
type Event struct {
	Type              string    `json:"type"`
	StudyInstanceUID  string    `json:"study_instance_uid,omitempty"`
	SeriesInstanceUID string    `json:"series_instance_uid,omitempty"`
	SOPInstanceUID    string    `json:"sop_instance_uid,omitempty"`
	AnnotationID      string    `json:"annotation_id,omitempty"`
	Detail            string    `json:"detail,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher delivers events best-effort. Callers treat failures as
// log-and-continue; a failed publish never fails the operation that
// produced the event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops all events. Used when eventing is disabled.
type NoopPublisher struct{}

// Publish discards the event.
func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
