package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MeetingType selects the summarization template of a note.
type MeetingType string

// Known meeting types.
const (
	MeetingDaily                 MeetingType = "DAILY"
	MeetingDemo                  MeetingType = "DEMO"
	MeetingRequirementsGathering MeetingType = "REQUIREMENTS_GATHERING"
	MeetingKickoff               MeetingType = "KICKOFF"
)

// Valid reports whether t is a known meeting type.
func (t MeetingType) Valid() bool {
	switch t {
	case MeetingDaily, MeetingDemo, MeetingRequirementsGathering, MeetingKickoff:
		return true
	}
	return false
}

// MeetingArea is the business area a meeting belongs to.
type MeetingArea string

// Known meeting areas.
const (
	AreaSoftwareDevelopment MeetingArea = "SOFTWARE_DEVELOPMENT"
	AreaSales               MeetingArea = "SALES"
	AreaMarketing           MeetingArea = "MARKETING"
	AreaManagement          MeetingArea = "MANAGEMENT"
	AreaOther               MeetingArea = "OTHER"
)

// InteractionStatus tracks who last touched post-meeting content.
type InteractionStatus string

// Interaction states. PENDING moves to MANUALLY_REVIEWED on any human
// update, or to AI_GENERATED after summarization.
const (
	InteractionPending          InteractionStatus = "PENDING"
	InteractionManuallyReviewed InteractionStatus = "MANUALLY_REVIEWED"
	InteractionAIGenerated      InteractionStatus = "AI_GENERATED"
)

// ParticipantStatus is the attendance of an in-system participant.
type ParticipantStatus string

// Attendance values; ABSENT is the default.
const (
	ParticipantAbsent  ParticipantStatus = "ABSENT"
	ParticipantPresent ParticipantStatus = "PRESENT"
)

// MeetingNote belongs to exactly one company. Content blocks are opaque JSON
// documents stored verbatim.
type MeetingNote struct {
	ID                    string       `gorm:"type:text;primaryKey"`
	CompanyID             string       `gorm:"type:text;not null;index"`
	AuthorID              string       `gorm:"type:text;not null;index"`
	RecurringMeetingID    *string      `gorm:"type:text;index"`
	Name                  string       `gorm:"type:text;not null"`
	Type                  MeetingType  `gorm:"type:text;not null"`
	Area                  *MeetingArea `gorm:"type:text"`
	Location              *string      `gorm:"type:text"`
	StartDate             time.Time    `gorm:"not null;index"`
	EndDate               time.Time    `gorm:"not null"`
	Duration              int          `gorm:"not null;default:0"`
	AdditionalBlocks      datatypes.JSON
	AdditionalBlocksAfter datatypes.JSON
	GlobalSummaryJSON     datatypes.JSON
	InteractionStatus     InteractionStatus `gorm:"type:text;not null;default:'PENDING'"`
	IsHidden              bool              `gorm:"not null;default:false"`
	PublicSlug            *string           `gorm:"type:text;uniqueIndex"`
	PublicUntil           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (n *MeetingNote) BeforeCreate(_ *gorm.DB) error {
	newID(&n.ID)
	return nil
}

// RecurringMeeting is the parent of a generated series of notes.
type RecurringMeeting struct {
	ID        string `gorm:"type:text;primaryKey"`
	CompanyID string `gorm:"type:text;not null;index"`
	AuthorID  string `gorm:"type:text;not null"`
	Name      string `gorm:"type:text;not null"`
	RRuleData string `gorm:"column:rrule_data;type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (r *RecurringMeeting) BeforeCreate(_ *gorm.DB) error {
	newID(&r.ID)
	return nil
}

// MeetingNoteParticipant is an in-system participant of a note.
type MeetingNoteParticipant struct {
	MeetingNoteID string            `gorm:"type:text;primaryKey"`
	UserID        string            `gorm:"type:text;primaryKey;index"`
	Status        ParticipantStatus `gorm:"type:text;not null;default:'ABSENT'"`
	CreatedAt     time.Time
}

// MeetingNoteExternalParticipant is a participant known only by email.
type MeetingNoteExternalParticipant struct {
	MeetingNoteID string            `gorm:"type:text;primaryKey"`
	Email         string            `gorm:"type:text;primaryKey"`
	Status        ParticipantStatus `gorm:"type:text;not null;default:'ABSENT'"`
	CreatedAt     time.Time
}

// MeetingNoteShare grants read access to a user who is neither author nor
// participant.
type MeetingNoteShare struct {
	MeetingNoteID string `gorm:"type:text;primaryKey"`
	UserID        string `gorm:"type:text;primaryKey;index"`
	CreatedAt     time.Time
}

// MeetingNoteLabel attaches a label to a note.
type MeetingNoteLabel struct {
	MeetingNoteID string `gorm:"type:text;primaryKey"`
	LabelID       string `gorm:"type:text;primaryKey"`
	CreatedAt     time.Time
}

// CommentPage says whether a comment belongs to the pre- or post-meeting page.
type CommentPage string

// Comment pages.
const (
	CommentBefore CommentPage = "before"
	CommentAfter  CommentPage = "after"
)

// MeetingComment is a comment on a note. Threads are one level deep.
type MeetingComment struct {
	ID                  string      `gorm:"type:text;primaryKey"`
	MeetingNoteID       string      `gorm:"type:text;not null;index"`
	AuthorID            string      `gorm:"type:text;not null"`
	ParentID            *string     `gorm:"type:text;index"`
	Content             string      `gorm:"type:text;not null"`
	From                *int        `gorm:"column:from_pos"`
	To                  *int        `gorm:"column:to_pos"`
	EditorDataCommentID *string     `gorm:"type:text"`
	Type                CommentPage `gorm:"type:text;not null"`
	Resolved            bool        `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (c *MeetingComment) BeforeCreate(_ *gorm.DB) error {
	newID(&c.ID)
	return nil
}
