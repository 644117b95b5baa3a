package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssetType classifies uploaded media.
type AssetType string

// Asset kinds, derived from the MIME type prefix.
const (
	AssetVideo    AssetType = "VIDEO"
	AssetAudio    AssetType = "AUDIO"
	AssetDocument AssetType = "DOCUMENT"
)

// AssetStatus is the processing status of an uploaded asset.
type AssetStatus string

// Asset states.
const (
	AssetUploading AssetStatus = "UPLOADING"
	AssetCompleted AssetStatus = "COMPLETED"
	AssetFailed    AssetStatus = "FAILED"
)

// MeetingAsset is an uploaded recording or document. The object itself lives
// in the private bucket under S3Key.
type MeetingAsset struct {
	ID                      string      `gorm:"type:text;primaryKey"`
	CompanyID               string      `gorm:"type:text;not null;index"`
	UploadedByID            string      `gorm:"type:text;not null"`
	FileName                string      `gorm:"type:text;not null"`
	FileType                string      `gorm:"type:text;not null"`
	FileSize                int64       `gorm:"not null"`
	S3Key                   string      `gorm:"column:s3_key;type:text;not null"`
	Type                    AssetType   `gorm:"type:text;not null"`
	Status                  AssetStatus `gorm:"type:text;not null"`
	Transcription           *string     `gorm:"type:text"`
	StructuredTranscription datatypes.JSON
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (a *MeetingAsset) BeforeCreate(_ *gorm.DB) error {
	newID(&a.ID)
	return nil
}

// MeetingNoteAsset links assets to notes (many-to-many).
type MeetingNoteAsset struct {
	MeetingNoteID string `gorm:"type:text;primaryKey"`
	AssetID       string `gorm:"type:text;primaryKey;index"`
	CreatedAt     time.Time
}

// AssetSummary caches the map-phase summary of one asset. It is reusable
// only while TemplateUsed matches the note's meeting type.
type AssetSummary struct {
	ID               string         `gorm:"type:text;primaryKey"`
	AssetID          string         `gorm:"type:text;not null;uniqueIndex"`
	SummaryJSON      datatypes.JSON `gorm:"not null"`
	ModelUsed        string         `gorm:"type:text;not null"`
	TemplateUsed     MeetingType    `gorm:"type:text;not null"`
	PromptTokens     int            `gorm:"not null;default:0"`
	CompletionTokens int            `gorm:"not null;default:0"`
	TotalTokens      int            `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (s *AssetSummary) BeforeCreate(_ *gorm.DB) error {
	newID(&s.ID)
	return nil
}

// All returns every model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Company{},
		&User{},
		&UserCompany{},
		&Invite{},
		&Label{},
		&UserGroup{},
		&UserGroupMember{},
		&RecurringMeeting{},
		&MeetingNote{},
		&MeetingNoteParticipant{},
		&MeetingNoteExternalParticipant{},
		&MeetingNoteShare{},
		&MeetingNoteLabel{},
		&MeetingAsset{},
		&MeetingNoteAsset{},
		&AssetSummary{},
		&MeetingComment{},
	}
}
