package meeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"gorm.io/gorm"
)

// Scope selects which notes a listing returns relative to the requester.
type Scope string

// Listing scopes. MY_NOTES is the default.
const (
	ScopeAllSpace    Scope = "ALL_SPACE_NOTES"
	ScopeAuthor      Scope = "AUTHOR"
	ScopeParticipant Scope = "PARTICIPANT"
	ScopeShared      Scope = "SHARED"
	ScopeMyNotes     Scope = "MY_NOTES"
)

// Valid reports whether sc is a known scope.
func (sc Scope) Valid() bool {
	switch sc {
	case ScopeAllSpace, ScopeAuthor, ScopeParticipant, ScopeShared, ScopeMyNotes:
		return true
	}
	return false
}

const (
	isParticipant = "EXISTS (SELECT 1 FROM meeting_note_participants mp WHERE mp.meeting_note_id = meeting_notes.id AND mp.user_id = ?)"
	isShared      = "EXISTS (SELECT 1 FROM meeting_note_shares ms WHERE ms.meeting_note_id = meeting_notes.id AND ms.user_id = ?)"
)

// Query filters a listing. Date bounds select notes overlapping the range
// when both are set.
type Query struct {
	Scope                 Scope
	Types                 []model.MeetingType
	StartDate             *time.Time
	EndDate               *time.Time
	ParticipantsOutSystem []string
	ParticipantsInSystem  []string
	Labels                []string
	Search                string
	InteractionStatuses   []model.InteractionStatus
	IsHidden              bool
	db.Page
}

// List is a page of notes with the number of the requester's notes that
// ended without being reviewed.
type List struct {
	MeetingNotes   []Note `json:"meetingNotes"`
	Total          int64  `json:"total"`
	AttentionTotal int64  `json:"attentionTotal"`
}

func scopeClause(sc Scope, userID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		switch sc {
		case ScopeAllSpace:
			return q
		case ScopeAuthor:
			return q.Where("meeting_notes.author_id = ? AND NOT "+isParticipant, userID, userID)
		case ScopeParticipant:
			return q.Where(isParticipant+" AND meeting_notes.author_id <> ?", userID, userID)
		case ScopeShared:
			return q.Where(isShared+" AND meeting_notes.author_id <> ? AND NOT "+isParticipant, userID, userID, userID)
		default:
			return q.Where("(meeting_notes.author_id = ? OR "+isParticipant+")", userID, userID)
		}
	}
}

func (f Query) filters(q *gorm.DB) *gorm.DB {
	if len(f.Types) > 0 {
		q = q.Where("meeting_notes.type IN ?", f.Types)
	}
	switch {
	case f.StartDate != nil && f.EndDate != nil:
		q = q.Where("meeting_notes.start_date <= ? AND meeting_notes.end_date >= ?", f.EndDate.UTC(), f.StartDate.UTC())
	case f.StartDate != nil:
		q = q.Where("meeting_notes.start_date >= ?", f.StartDate.UTC())
	case f.EndDate != nil:
		q = q.Where("meeting_notes.end_date <= ?", f.EndDate.UTC())
	}
	if len(f.ParticipantsOutSystem) > 0 {
		emails := make([]string, len(f.ParticipantsOutSystem))
		for i, e := range f.ParticipantsOutSystem {
			emails[i] = strings.ToLower(strings.TrimSpace(e))
		}
		q = q.Where(`EXISTS (SELECT 1 FROM meeting_note_external_participants ep
			WHERE ep.meeting_note_id = meeting_notes.id AND ep.email IN ?)`, emails)
	}
	if len(f.Labels) > 0 {
		q = q.Where(`EXISTS (SELECT 1 FROM meeting_note_labels ml
			WHERE ml.meeting_note_id = meeting_notes.id AND ml.label_id IN ?)`, f.Labels)
	}
	if len(f.ParticipantsInSystem) > 0 {
		q = q.Where(`EXISTS (SELECT 1 FROM meeting_note_participants fp
			WHERE fp.meeting_note_id = meeting_notes.id AND fp.user_id IN ?)`, f.ParticipantsInSystem)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("LOWER(meeting_notes.name) LIKE ?", db.Like(s))
	}
	if len(f.InteractionStatuses) > 0 {
		q = q.Where("meeting_notes.interaction_status IN ?", f.InteractionStatuses)
	}
	if !f.IsHidden {
		q = q.Where("meeting_notes.is_hidden = ?", false)
	}
	return q
}

// List returns the notes of the requester's company in scope, newest first.
// ALL_SPACE_NOTES is reserved for owners.
func (s *Service) List(ctx context.Context, by policy.Subject, f Query) (*List, error) {
	sc := f.Scope
	if sc == "" {
		sc = ScopeMyNotes
	}
	if !sc.Valid() {
		return nil, apperr.Validation("scope is invalid")
	}
	if sc == ScopeAllSpace && by.Role != model.RoleOwner {
		return nil, apperr.NotAllowedMeetingNote()
	}

	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.MeetingNote{}).
			Where("meeting_notes.company_id = ?", by.CompanyID).
			Scopes(scopeClause(sc, by.UserID), f.filters)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count meeting notes: %w", err)
	}
	var attention int64
	if err := s.db.WithContext(ctx).Model(&model.MeetingNote{}).
		Where("company_id = ? AND author_id = ? AND end_date <= ? AND interaction_status = ?",
			by.CompanyID, by.UserID, s.now(), model.InteractionPending).
		Count(&attention).Error; err != nil {
		return nil, fmt.Errorf("count attention notes: %w", err)
	}
	var notes []model.MeetingNote
	if err := base().
		Scopes(f.Page.Scope(10)).
		Order("meeting_notes.created_at DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list meeting notes: %w", err)
	}
	views, err := s.populate(ctx, notes)
	if err != nil {
		return nil, err
	}
	return &List{MeetingNotes: views, Total: total, AttentionTotal: attention}, nil
}
