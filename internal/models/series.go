package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Series represents one acquisition run within a Study.
type Series struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SeriesInstanceUID string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"series_instance_uid"`
	StudyID           uuid.UUID `gorm:"type:uuid;not null;index" json:"study_id"`
	SeriesNumber      int       `json:"series_number"`
	Modality          string    `gorm:"type:varchar(16)" json:"modality"`
	BodyPart          string    `gorm:"type:varchar(64)" json:"body_part"`
	Description       string    `gorm:"type:varchar(255)" json:"description"`
	ProtocolName      string    `gorm:"type:varchar(128)" json:"protocol_name"`

	// Acquisition parameters; nullable, modality dependent.
	SliceThicknessMM *float64 `json:"slice_thickness_mm,omitempty"`
	RepetitionTimeMS *float64 `json:"repetition_time_ms,omitempty"`
	EchoTimeMS       *float64 `json:"echo_time_ms,omitempty"`
	FieldStrengthT   *float64 `json:"field_strength_t,omitempty"`

	Status            SeriesStatus `gorm:"type:varchar(20);not null;default:PENDING;index" json:"status"`
	ImageQualityScore int          `gorm:"default:0" json:"image_quality_score"`

	NumberOfInstances int   `gorm:"default:0" json:"number_of_instances"`
	TotalSizeBytes    int64 `gorm:"default:0" json:"total_size_bytes"`

	IsKeySeries       bool `gorm:"default:false" json:"is_key_series"`
	IsPresentation    bool `gorm:"default:false" json:"is_presentation"`
	ExpectedInstances int  `gorm:"default:0" json:"expected_instances"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Series) TableName() string {
	return "imaging_series"
}

// BeforeCreate hook
func (s *Series) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
