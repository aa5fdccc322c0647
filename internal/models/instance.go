package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Instance represents one stored image or frame set within a Series. Rows are
// created exactly once per SOP Instance UID; re-ingestion of a known UID is
// reported as a duplicate, never double-inserted.
type Instance struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SOPInstanceUID string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"sop_instance_uid"`
	SOPClassUID    string    `gorm:"type:varchar(64)" json:"sop_class_uid"`
	SeriesID       uuid.UUID `gorm:"type:uuid;not null;index" json:"series_id"`
	InstanceNumber int       `json:"instance_number"`
	ContentDate    time.Time `json:"content_date"`

	// Pixel geometry
	Rows                      int    `json:"rows"`
	Columns                   int    `json:"columns"`
	BitsAllocated             int    `json:"bits_allocated"`
	BitsStored                int    `json:"bits_stored"`
	SamplesPerPixel           int    `json:"samples_per_pixel"`
	NumberOfFrames            int    `gorm:"default:1" json:"number_of_frames"`
	PhotometricInterpretation string `gorm:"type:varchar(32)" json:"photometric_interpretation"`
	TransferSyntaxUID         string `gorm:"type:varchar(64)" json:"transfer_syntax_uid"`

	StorageLocation string `gorm:"type:varchar(500);not null" json:"storage_location"`
	SizeBytes       int64  `gorm:"not null" json:"size_bytes"`
	ContentHash     string `gorm:"type:varchar(64);index" json:"content_hash"`

	ProcessingStatus InstanceProcessingStatus `gorm:"type:varchar(20);not null;default:RECEIVED;index" json:"processing_status"`
	ValidationStatus InstanceValidationStatus `gorm:"type:varchar(20);not null;default:PENDING" json:"validation_status"`
	ValidationErrors string                   `gorm:"type:text" json:"validation_errors,omitempty"`
	QualityScore     int                      `gorm:"default:0" json:"quality_score"`

	IsCached      bool   `gorm:"default:false" json:"is_cached"`
	CacheLocation string `gorm:"type:varchar(500)" json:"cache_location,omitempty"`

	AccessCount    int64      `gorm:"default:0" json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	IsAnonymized bool `gorm:"default:false" json:"is_anonymized"`

	// Analysis result fields, written only by the async analysis path.
	AnalysisCompleted bool       `gorm:"default:false" json:"analysis_completed"`
	AnalysisSummary   string     `gorm:"type:text" json:"analysis_summary,omitempty"`
	AnalyzedAt        *time.Time `json:"analyzed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Instance) TableName() string {
	return "imaging_instances"
}

// BeforeCreate hook
func (i *Instance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// DuplicateCluster groups instances sharing one content hash. Clusters with
// more than one member are reported, never auto-resolved.
type DuplicateCluster struct {
	ContentHash     string   `json:"content_hash"`
	Count           int      `json:"count"`
	SOPInstanceUIDs []string `json:"sop_instance_uids"`
}
