package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"gorm.io/datatypes"
)

// Author is the note author with their role in the note's company.
type Author struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Avatar    *string    `json:"avatar"`
	Role      model.Role `json:"role"`
}

// Participant is an in-system participant.
type Participant struct {
	ID        string                  `json:"id"`
	Status    model.ParticipantStatus `json:"status"`
	FirstName string                  `json:"firstName"`
	LastName  string                  `json:"lastName"`
	Email     string                  `json:"email"`
	Avatar    *string                 `json:"avatar"`
}

// ExternalParticipant is a participant known only by email.
type ExternalParticipant struct {
	Email  string                  `json:"email"`
	Status model.ParticipantStatus `json:"status"`
}

// LabelRef is a label attached to a note.
type LabelRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AssetRef is an asset linked to a note.
type AssetRef struct {
	ID               string            `json:"id"`
	Type             model.AssetType   `json:"type"`
	Status           model.AssetStatus `json:"status"`
	FileName         string            `json:"fileName"`
	FileType         string            `json:"fileType"`
	FileSize         int64             `json:"fileSize"`
	HasTranscription bool              `json:"hasTranscription"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Recurring is the series a note belongs to.
type Recurring struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RRuleData string    `json:"rruleData"`
	AuthorID  string    `json:"authorId"`
	CompanyID string    `json:"companyId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Note is the API view of a meeting note. Block content is returned
// exactly as stored.
type Note struct {
	ID                    string                  `json:"id"`
	CompanyID             string                  `json:"companyId"`
	Name                  string                  `json:"name"`
	Type                  model.MeetingType       `json:"type"`
	Area                  *model.MeetingArea      `json:"area"`
	Location              *string                 `json:"location"`
	StartDate             time.Time               `json:"startDate"`
	EndDate               time.Time               `json:"endDate"`
	Duration              int                     `json:"duration"`
	AdditionalBlocks      json.RawMessage         `json:"additionalBlocks"`
	AdditionalBlocksAfter json.RawMessage         `json:"additionalBlocksAfter"`
	GlobalSummaryJSON     json.RawMessage         `json:"globalSummaryJson"`
	InteractionStatus     model.InteractionStatus `json:"interactionStatus"`
	IsHidden              bool                    `json:"isHidden"`
	PublicSlug            *string                 `json:"publicSlug"`
	PublicUntil           *time.Time              `json:"publicUntil"`
	Author                Author                  `json:"author"`
	ParticipantsInSystem  []Participant           `json:"participantsInSystem"`
	ParticipantsOutSystem []ExternalParticipant   `json:"participantsOutSystem"`
	Shares                []member.UserBrief      `json:"shares"`
	Labels                []LabelRef              `json:"labels"`
	Assets                []AssetRef              `json:"assets"`
	RecurringMeeting      *Recurring              `json:"recurringMeeting"`
	CreatedAt             time.Time               `json:"createdAt"`
	UpdatedAt             time.Time               `json:"updatedAt"`
}

// PublicNote is the unauthenticated projection of a publicly shared note.
type PublicNote struct {
	Name                  string            `json:"name"`
	Type                  model.MeetingType `json:"type"`
	AdditionalBlocksAfter json.RawMessage   `json:"additionalBlocksAfter"`
	PublicSlug            *string           `json:"publicSlug"`
	PublicUntil           *time.Time        `json:"publicUntil"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

func rawJSON(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 {
		return nil
	}
	return json.RawMessage(j)
}

type userRow struct {
	MeetingNoteID string
	UserID        string
	Status        model.ParticipantStatus
	FirstName     string
	LastName      string
	Email         string
	Avatar        *string
}

type labelRow struct {
	MeetingNoteID string
	ID            string
	Name          string
}

type assetRow struct {
	MeetingNoteID string
	model.MeetingAsset
}

func (s *Service) one(ctx context.Context, n *model.MeetingNote) (*Note, error) {
	views, err := s.populate(ctx, []model.MeetingNote{*n})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// linkedUsers loads the users of a note link table joined with their
// profile. Only participants carry a status.
func (s *Service) linkedUsers(ctx context.Context, table string, noteIDs []string) ([]userRow, error) {
	cols := table + ".meeting_note_id, " + table + ".user_id, users.first_name, users.last_name, users.email, users.avatar"
	if table == "meeting_note_participants" {
		cols += ", " + table + ".status"
	}
	join := fmt.Sprintf("JOIN users ON users.id = %s.user_id", table)
	var rows []userRow
	if err := s.db.WithContext(ctx).
		Table(table).
		Select(cols).
		Joins(join).
		Where(table+".meeting_note_id IN ?", noteIDs).
		Order(table + ".created_at").
		Order("users.email").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return rows, nil
}

// populate builds the views of notes, batching every lookup over the set.
func (s *Service) populate(ctx context.Context, notes []model.MeetingNote) ([]Note, error) {
	out := make([]Note, 0, len(notes))
	if len(notes) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(notes))
	authorIDs := make([]string, 0, len(notes))
	var seriesIDs []string
	for _, n := range notes {
		ids = append(ids, n.ID)
		authorIDs = append(authorIDs, n.AuthorID)
		if n.RecurringMeetingID != nil {
			seriesIDs = append(seriesIDs, *n.RecurringMeetingID)
		}
	}
	tx := s.db.WithContext(ctx)

	authors, err := member.LoadUsers(ctx, s.db, authorIDs)
	if err != nil {
		return nil, err
	}
	roles, err := s.authorRoles(ctx, notes[0].CompanyID, notes)
	if err != nil {
		return nil, err
	}

	participants, err := s.linkedUsers(ctx, "meeting_note_participants", ids)
	if err != nil {
		return nil, err
	}
	byNoteParticipants := make(map[string][]Participant)
	for _, r := range participants {
		byNoteParticipants[r.MeetingNoteID] = append(byNoteParticipants[r.MeetingNoteID], Participant{
			ID: r.UserID, Status: r.Status, FirstName: r.FirstName, LastName: r.LastName, Email: r.Email, Avatar: r.Avatar,
		})
	}

	shares, err := s.linkedUsers(ctx, "meeting_note_shares", ids)
	if err != nil {
		return nil, err
	}
	byNoteShares := make(map[string][]member.UserBrief)
	for _, r := range shares {
		byNoteShares[r.MeetingNoteID] = append(byNoteShares[r.MeetingNoteID], member.UserBrief{
			ID: r.UserID, FirstName: r.FirstName, LastName: r.LastName, Email: r.Email, Avatar: r.Avatar,
		})
	}

	var externals []model.MeetingNoteExternalParticipant
	if err := tx.Where("meeting_note_id IN ?", ids).Order("created_at").Order("email").Find(&externals).Error; err != nil {
		return nil, fmt.Errorf("load external participants: %w", err)
	}
	byNoteExternals := make(map[string][]ExternalParticipant)
	for _, e := range externals {
		byNoteExternals[e.MeetingNoteID] = append(byNoteExternals[e.MeetingNoteID], ExternalParticipant{Email: e.Email, Status: e.Status})
	}

	var labels []labelRow
	if err := tx.Table("meeting_note_labels").
		Select("meeting_note_labels.meeting_note_id, labels.id, labels.name").
		Joins("JOIN labels ON labels.id = meeting_note_labels.label_id").
		Where("meeting_note_labels.meeting_note_id IN ?", ids).
		Order("labels.name").
		Scan(&labels).Error; err != nil {
		return nil, fmt.Errorf("load note labels: %w", err)
	}
	byNoteLabels := make(map[string][]LabelRef)
	for _, l := range labels {
		byNoteLabels[l.MeetingNoteID] = append(byNoteLabels[l.MeetingNoteID], LabelRef{ID: l.ID, Name: l.Name})
	}

	var assets []assetRow
	if err := tx.Table("meeting_note_assets").
		Select("meeting_note_assets.meeting_note_id, meeting_assets.*").
		Joins("JOIN meeting_assets ON meeting_assets.id = meeting_note_assets.asset_id").
		Where("meeting_note_assets.meeting_note_id IN ?", ids).
		Order("meeting_assets.created_at").
		Scan(&assets).Error; err != nil {
		return nil, fmt.Errorf("load note assets: %w", err)
	}
	byNoteAssets := make(map[string][]AssetRef)
	for _, a := range assets {
		byNoteAssets[a.MeetingNoteID] = append(byNoteAssets[a.MeetingNoteID], AssetRef{
			ID:               a.ID,
			Type:             a.Type,
			Status:           a.Status,
			FileName:         a.FileName,
			FileType:         a.FileType,
			FileSize:         a.FileSize,
			HasTranscription: a.Transcription != nil && *a.Transcription != "",
			CreatedAt:        a.CreatedAt,
			UpdatedAt:        a.UpdatedAt,
		})
	}

	series := make(map[string]*Recurring)
	if len(seriesIDs) > 0 {
		var rows []model.RecurringMeeting
		if err := tx.Where("id IN ?", member.Unique(seriesIDs)).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load recurring meetings: %w", err)
		}
		for _, r := range rows {
			series[r.ID] = &Recurring{
				ID: r.ID, Name: r.Name, RRuleData: r.RRuleData, AuthorID: r.AuthorID, CompanyID: r.CompanyID, CreatedAt: r.CreatedAt,
			}
		}
	}

	for _, n := range notes {
		a := authors[n.AuthorID]
		v := Note{
			ID:                    n.ID,
			CompanyID:             n.CompanyID,
			Name:                  n.Name,
			Type:                  n.Type,
			Area:                  n.Area,
			Location:              n.Location,
			StartDate:             n.StartDate,
			EndDate:               n.EndDate,
			Duration:              n.Duration,
			AdditionalBlocks:      rawJSON(n.AdditionalBlocks),
			AdditionalBlocksAfter: rawJSON(n.AdditionalBlocksAfter),
			GlobalSummaryJSON:     rawJSON(n.GlobalSummaryJSON),
			InteractionStatus:     n.InteractionStatus,
			IsHidden:              n.IsHidden,
			PublicSlug:            n.PublicSlug,
			PublicUntil:           n.PublicUntil,
			Author: Author{
				ID: n.AuthorID, FirstName: a.FirstName, LastName: a.LastName, Email: a.Email, Avatar: a.Avatar, Role: roles[n.AuthorID],
			},
			ParticipantsInSystem:  orEmpty(byNoteParticipants[n.ID]),
			ParticipantsOutSystem: orEmpty(byNoteExternals[n.ID]),
			Shares:                orEmpty(byNoteShares[n.ID]),
			Labels:                orEmpty(byNoteLabels[n.ID]),
			Assets:                orEmpty(byNoteAssets[n.ID]),
			CreatedAt:             n.CreatedAt,
			UpdatedAt:             n.UpdatedAt,
		}
		if n.RecurringMeetingID != nil {
			v.RecurringMeeting = series[*n.RecurringMeetingID]
		}
		out = append(out, v)
	}
	return out, nil
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
