// Package meeting implements meeting notes: CRUD and listing, recurring
// series, sharing, assets and transcriptions, comments and AI summaries.
//
// A note belongs to exactly one company and is readable by its author and
// its in-system participants. Shares grant read access only through the
// shared path, which hides pre-meeting content.
package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/account"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/cache"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/mail"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/storage"
	"github.com/d9705996/huddle/internal/summary"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	noteMailSubject = "Meeting Note"
	noteMailText    = "Meeting Note series created"
	batchSize       = 500
)

// Service implements the meeting-note operations of the requester's company.
type Service struct {
	db        *gorm.DB
	mail      mail.Sender
	store     storage.Store
	kv        *cache.Store
	engine    *summary.Engine
	clientURL string
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. clientURL is the web client origin used in
// public share links.
func NewService(gdb *gorm.DB, sender mail.Sender, store storage.Store, kv *cache.Store, engine *summary.Engine, clientURL string, log *slog.Logger) *Service {
	return &Service{
		db:        gdb,
		mail:      sender,
		store:     store,
		kv:        kv,
		engine:    engine,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecurringInput turns a created note into a series.
type RecurringInput struct {
	Name      string
	RRuleData string
}

// CreateInput is the payload of Create. ParticipantsInSystem are user IDs
// and ParticipantsOutSystem are email addresses.
type CreateInput struct {
	Name                  string
	Type                  model.MeetingType
	Area                  *model.MeetingArea
	Location              *string
	StartDate             time.Time
	EndDate               time.Time
	AdditionalBlocks      json.RawMessage
	AdditionalBlocksAfter json.RawMessage
	ParticipantsInSystem  []string
	ParticipantsOutSystem []string
	LabelIDs              []string
	Recurring             *RecurringInput
}

// ParticipantInput sets the attendance of an in-system participant.
type ParticipantInput struct {
	UserID string
	Status model.ParticipantStatus
}

// ExternalInput sets the attendance of a participant known by email.
type ExternalInput struct {
	Email  string
	Status model.ParticipantStatus
}

// UpdateInput is a partial update. Nil fields are left alone; set
// collections replace the note's current links.
type UpdateInput struct {
	Name                  *string
	Type                  *model.MeetingType
	Area                  *model.MeetingArea
	Location              *string
	StartDate             *time.Time
	EndDate               *time.Time
	AdditionalBlocks      json.RawMessage
	AdditionalBlocksAfter json.RawMessage
	IsHidden              *bool
	ParticipantsInSystem  *[]ParticipantInput
	ParticipantsOutSystem *[]ExternalInput
	Shares                *[]string
	LabelIDs              *[]string
}

func validArea(a *model.MeetingArea) bool {
	if a == nil {
		return true
	}
	switch *a {
	case model.AreaSoftwareDevelopment, model.AreaSales, model.AreaMarketing, model.AreaManagement, model.AreaOther:
		return true
	}
	return false
}

func validStatus(st model.ParticipantStatus) bool {
	return st == model.ParticipantAbsent || st == model.ParticipantPresent
}

// blocks checks that raw is a JSON array of editor blocks. Absent or null
// content is stored as NULL.
func blocks(field string, raw json.RawMessage) (datatypes.JSON, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' || !json.Valid(raw) {
		return nil, apperr.Validation(field + " must be an array of blocks")
	}
	return datatypes.JSON(raw), nil
}

func normalizeEmails(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = account.NormalizeEmail(e)
		if !strings.Contains(e, "@") {
			return nil, apperr.Validation("participantsOutSystem must be valid email addresses")
		}
		out = append(out, e)
	}
	return member.Unique(out), nil
}

func minutes(start, end time.Time) int {
	return max(int(end.Sub(start)/time.Minute), 0)
}

func (in *CreateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return apperr.Validation("name must not be empty")
	case !in.Type.Valid():
		return apperr.Validation("type is invalid")
	case !validArea(in.Area):
		return apperr.Validation("area is invalid")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return apperr.InvalidDates()
	case !in.EndDate.After(in.StartDate):
		return apperr.Validation("endDate must be after startDate")
	}
	return nil
}

// noteLinks are the link rows written for every created note.
type noteLinks struct {
	participants []string
	emails       []string
	labels       []string
}

func (l noteLinks) insert(tx *gorm.DB, noteIDs []string) error {
	var (
		ps []model.MeetingNoteParticipant
		es []model.MeetingNoteExternalParticipant
		ls []model.MeetingNoteLabel
	)
	for _, id := range noteIDs {
		for _, u := range l.participants {
			ps = append(ps, model.MeetingNoteParticipant{MeetingNoteID: id, UserID: u, Status: model.ParticipantAbsent})
		}
		for _, e := range l.emails {
			es = append(es, model.MeetingNoteExternalParticipant{MeetingNoteID: id, Email: e, Status: model.ParticipantAbsent})
		}
		for _, lb := range l.labels {
			ls = append(ls, model.MeetingNoteLabel{MeetingNoteID: id, LabelID: lb})
		}
	}
	if len(ps) > 0 {
		if err := tx.CreateInBatches(&ps, batchSize).Error; err != nil {
			return fmt.Errorf("add participants: %w", err)
		}
	}
	if len(es) > 0 {
		if err := tx.CreateInBatches(&es, batchSize).Error; err != nil {
			return fmt.Errorf("add external participants: %w", err)
		}
	}
	if len(ls) > 0 {
		if err := tx.CreateInBatches(&ls, batchSize).Error; err != nil {
			return fmt.Errorf("add labels: %w", err)
		}
	}
	return nil
}

// Create adds a note, or a whole series when Recurring carries a rule. The
// requester is always an in-system participant. External participants are
// notified by email once the notes exist.
func (s *Service) Create(ctx context.Context, by policy.Subject, in CreateInput) (*Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	before, err := blocks("additionalBlocks", in.AdditionalBlocks)
	if err != nil {
		return nil, err
	}
	after, err := blocks("additionalBlocksAfter", in.AdditionalBlocksAfter)
	if err != nil {
		return nil, err
	}
	emails, err := normalizeEmails(in.ParticipantsOutSystem)
	if err != nil {
		return nil, err
	}
	participants := member.Unique(append([]string{by.UserID}, in.ParticipantsInSystem...))
	if _, err := member.ResolveUsers(ctx, s.db, by.CompanyID, participants); err != nil {
		return nil, err
	}
	labels := member.Unique(in.LabelIDs)
	if err := s.checkLabels(ctx, by.CompanyID, labels); err != nil {
		return nil, err
	}

	base := model.MeetingNote{
		CompanyID:             by.CompanyID,
		AuthorID:              by.UserID,
		Name:                  in.Name,
		Type:                  in.Type,
		Area:                  in.Area,
		Location:              in.Location,
		StartDate:             in.StartDate.UTC(),
		EndDate:               in.EndDate.UTC(),
		Duration:              minutes(in.StartDate, in.EndDate),
		AdditionalBlocks:      before,
		AdditionalBlocksAfter: after,
		InteractionStatus:     model.InteractionPending,
	}
	links := noteLinks{participants: participants, emails: emails, labels: labels}

	var id string
	if in.Recurring != nil && strings.TrimSpace(in.Recurring.RRuleData) != "" {
		id, err = s.createSeries(ctx, base, links, *in.Recurring)
	} else {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&base).Error; err != nil {
				return fmt.Errorf("create meeting note: %w", err)
			}
			return links.insert(tx, []string{base.ID})
		})
		id = base.ID
	}
	if err != nil {
		return nil, err
	}
	s.notifyExternal(ctx, emails)
	return s.Get(ctx, by, id)
}

// notifyExternal mails the external participants. The notes already exist,
// so failures are only logged.
func (s *Service) notifyExternal(ctx context.Context, emails []string) {
	if len(emails) == 0 {
		return
	}
	err := s.mail.Send(ctx, mail.Message{To: emails, Subject: noteMailSubject, Text: noteMailText})
	if err != nil {
		s.log.ErrorContext(ctx, "notify external participants", "recipients", len(emails), "err", err)
	}
}

func (s *Service) checkLabels(ctx context.Context, companyID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Label{}).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Count(&n).Error; err != nil {
		return fmt.Errorf("check labels: %w", err)
	}
	if int(n) != len(ids) {
		return apperr.LabelNotExists()
	}
	return nil
}

// Get returns a note the requester authored or participates in.
func (s *Service) Get(ctx context.Context, by policy.Subject, id string) (*Note, error) {
	n, err := s.find(ctx, by.CompanyID, id)
	if err != nil {
		return nil, err
	}
	rel, err := s.relationship(ctx, n, by.UserID)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(rel, false).Allowed {
		return nil, apperr.NotAllowedMeetingNote()
	}
	return s.one(ctx, n)
}

// GetShared returns a note shared with the requester, without its
// pre-meeting blocks.
func (s *Service) GetShared(ctx context.Context, by policy.Subject, id string) (*Note, error) {
	n, err := s.find(ctx, by.CompanyID, id)
	if err != nil {
		return nil, err
	}
	rel, err := s.relationship(ctx, n, by.UserID)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(rel, true).Allowed {
		return nil, apperr.NotAllowedMeetingNote()
	}
	v, err := s.one(ctx, n)
	if err != nil {
		return nil, err
	}
	v.AdditionalBlocks = json.RawMessage("[]")
	return v, nil
}

// GetPublic returns the public projection of a note while its share link
// is live. No authentication is involved.
func (s *Service) GetPublic(ctx context.Context, slug string) (*PublicNote, error) {
	if slug == "" {
		return nil, apperr.PublicNoteNotFound()
	}
	var n model.MeetingNote
	err := s.db.WithContext(ctx).
		Where("public_slug = ? AND public_until >= ?", slug, s.now()).
		First(&n).Error
	if db.IsNotFound(err) {
		return nil, apperr.PublicNoteNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load public note: %w", err)
	}
	return &PublicNote{
		Name:                  n.Name,
		Type:                  n.Type,
		AdditionalBlocksAfter: rawJSON(n.AdditionalBlocksAfter),
		PublicSlug:            n.PublicSlug,
		PublicUntil:           n.PublicUntil,
		CreatedAt:             n.CreatedAt,
		UpdatedAt:             n.UpdatedAt,
	}, nil
}

// Update applies a partial update. Any update of a PENDING note marks it
// MANUALLY_REVIEWED.
func (s *Service) Update(ctx context.Context, by policy.Subject, id string, in UpdateInput) (*Note, error) {
	n, err := s.find(ctx, by.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeEdit(ctx, by, []model.MeetingNote{*n}); err != nil {
		return nil, err
	}
	c, err := s.prepare(ctx, by, in)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return c.apply(tx, n, false)
	})
	if err != nil {
		return nil, err
	}
	if n, err = s.find(ctx, by.CompanyID, id); err != nil {
		return nil, err
	}
	return s.one(ctx, n)
}

// Delete removes a note the requester authored.
func (s *Service) Delete(ctx context.Context, by policy.Subject, id string) error {
	n, err := s.find(ctx, by.CompanyID, id)
	if err != nil {
		return err
	}
	if !policy.CanDelete(by, policy.Resource{AuthorID: n.AuthorID}).Allowed {
		return apperr.CannotDeleteNoteOfOther()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteNotes(tx, []string{id})
	})
}

// deleteNotes removes notes with their links and comments.
func deleteNotes(tx *gorm.DB, ids []string) error {
	for _, m := range []any{
		&model.MeetingNoteParticipant{},
		&model.MeetingNoteExternalParticipant{},
		&model.MeetingNoteShare{},
		&model.MeetingNoteLabel{},
		&model.MeetingNoteAsset{},
		&model.MeetingComment{},
	} {
		if err := tx.Where("meeting_note_id IN ?", ids).Delete(m).Error; err != nil {
			return fmt.Errorf("delete note links: %w", err)
		}
	}
	if err := tx.Where("id IN ?", ids).Delete(&model.MeetingNote{}).Error; err != nil {
		return fmt.Errorf("delete meeting notes: %w", err)
	}
	return nil
}

func (s *Service) find(ctx context.Context, companyID, id string) (*model.MeetingNote, error) {
	var n model.MeetingNote
	err := s.db.WithContext(ctx).First(&n, "id = ? AND company_id = ?", id, companyID).Error
	if db.IsNotFound(err) {
		return nil, apperr.MeetingNoteNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load meeting note: %w", err)
	}
	return &n, nil
}

func (s *Service) relationship(ctx context.Context, n *model.MeetingNote, userID string) (policy.Relationship, error) {
	rel := policy.Relationship{Author: n.AuthorID == userID}
	var err error
	if rel.Participant, err = s.linked(ctx, &model.MeetingNoteParticipant{}, n.ID, userID); err != nil {
		return rel, err
	}
	if rel.Shared, err = s.linked(ctx, &model.MeetingNoteShare{}, n.ID, userID); err != nil {
		return rel, err
	}
	return rel, nil
}

func (s *Service) linked(ctx context.Context, m any, noteID, userID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(m).
		Where("meeting_note_id = ? AND user_id = ?", noteID, userID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check note link: %w", err)
	}
	return n > 0, nil
}

// access loads a note the requester authored, participates in or was
// shared. Assets and summaries are reachable through any of the three.
func (s *Service) access(ctx context.Context, by policy.Subject, noteID string) (*model.MeetingNote, error) {
	n, err := s.find(ctx, by.CompanyID, noteID)
	if err != nil {
		return nil, err
	}
	rel, err := s.relationship(ctx, n, by.UserID)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(rel, false).Allowed && !policy.CanRead(rel, true).Allowed {
		return nil, apperr.NotAllowedMeetingNote()
	}
	return n, nil
}

// authorRoles maps author IDs to their role in companyID. Authors who left
// the company have no entry.
func (s *Service) authorRoles(ctx context.Context, companyID string, notes []model.MeetingNote) (map[string]model.Role, error) {
	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		ids = append(ids, n.AuthorID)
	}
	var ucs []model.UserCompany
	if err := s.db.WithContext(ctx).
		Where("company_id = ? AND user_id IN ?", companyID, member.Unique(ids)).
		Find(&ucs).Error; err != nil {
		return nil, fmt.Errorf("load author roles: %w", err)
	}
	out := make(map[string]model.Role, len(ucs))
	for _, uc := range ucs {
		out[uc.UserID] = uc.Role
	}
	return out, nil
}

// authorizeEdit fails unless the requester may modify every note.
func (s *Service) authorizeEdit(ctx context.Context, by policy.Subject, notes []model.MeetingNote) error {
	roles, err := s.authorRoles(ctx, by.CompanyID, notes)
	if err != nil {
		return err
	}
	for _, n := range notes {
		d := policy.CanModify(by, policy.Resource{AuthorID: n.AuthorID, AuthorRole: roles[n.AuthorID]})
		if !d.Allowed {
			s.log.InfoContext(ctx, "note edit denied", "note_id", n.ID, "user_id", by.UserID, "reason", d.Reason)
			return apperr.CannotEditNoteOfOther()
		}
	}
	return nil
}
