package meeting

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/relation"
	"gorm.io/gorm"
)

// changes is a validated UpdateInput ready to be applied to any number of
// notes. Nil link sets are left untouched.
type changes struct {
	fields       map[string]any
	start, end   *time.Time
	participants *statusSet
	externals    *statusSet
	shares       *[]string
	labels       *[]string
	now          time.Time
}

// statusSet is the wanted membership of a link table with attendance.
type statusSet struct {
	keys   []string
	status map[string]model.ParticipantStatus
}

func newStatusSet() *statusSet {
	return &statusSet{status: map[string]model.ParticipantStatus{}}
}

func (ss *statusSet) add(key string, st model.ParticipantStatus) error {
	if st == "" {
		st = model.ParticipantAbsent
	}
	if !validStatus(st) {
		return apperr.Validation("participant status must be ABSENT or PRESENT")
	}
	if _, ok := ss.status[key]; !ok {
		ss.keys = append(ss.keys, key)
	}
	ss.status[key] = st
	return nil
}

// prepare validates in against the requester's company. A participant list
// always keeps the requester in it.
func (s *Service) prepare(ctx context.Context, by policy.Subject, in UpdateInput) (*changes, error) {
	c := &changes{fields: map[string]any{}, start: in.StartDate, end: in.EndDate, now: s.now()}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		c.fields["name"] = name
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, apperr.Validation("type is invalid")
		}
		c.fields["type"] = *in.Type
	}
	if in.Area != nil {
		if !validArea(in.Area) {
			return nil, apperr.Validation("area is invalid")
		}
		c.fields["area"] = *in.Area
	}
	if in.Location != nil {
		c.fields["location"] = *in.Location
	}
	if in.IsHidden != nil {
		c.fields["is_hidden"] = *in.IsHidden
	}
	if in.AdditionalBlocks != nil {
		b, err := blocks("additionalBlocks", in.AdditionalBlocks)
		if err != nil {
			return nil, err
		}
		c.fields["additional_blocks"] = b
	}
	if in.AdditionalBlocksAfter != nil {
		b, err := blocks("additionalBlocksAfter", in.AdditionalBlocksAfter)
		if err != nil {
			return nil, err
		}
		c.fields["additional_blocks_after"] = b
	}

	if in.ParticipantsInSystem != nil {
		ps := newStatusSet()
		if err := ps.add(by.UserID, model.ParticipantAbsent); err != nil {
			return nil, err
		}
		for _, p := range *in.ParticipantsInSystem {
			if err := ps.add(p.UserID, p.Status); err != nil {
				return nil, err
			}
		}
		if _, err := member.ResolveUsers(ctx, s.db, by.CompanyID, ps.keys); err != nil {
			return nil, err
		}
		c.participants = ps
	}
	if in.ParticipantsOutSystem != nil {
		es := newStatusSet()
		for _, e := range *in.ParticipantsOutSystem {
			emails, err := normalizeEmails([]string{e.Email})
			if err != nil {
				return nil, err
			}
			if err := es.add(emails[0], e.Status); err != nil {
				return nil, err
			}
		}
		c.externals = es
	}
	if in.Shares != nil {
		ids := member.Unique(*in.Shares)
		if _, err := member.ResolveUsers(ctx, s.db, by.CompanyID, ids); err != nil {
			return nil, err
		}
		c.shares = &ids
	}
	if in.LabelIDs != nil {
		ids := member.Unique(*in.LabelIDs)
		if err := s.checkLabels(ctx, by.CompanyID, ids); err != nil {
			return nil, err
		}
		c.labels = &ids
	}
	return c, nil
}

// atClock keeps the calendar date of day and takes hour and minute from
// clock, both in UTC.
func atClock(day, clock time.Time) time.Time {
	day, clock = day.UTC(), clock.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
}

// apply writes c to n inside tx. With transplant set, only the time of day
// of the new dates is used so every occurrence of a series keeps its date.
func (c *changes) apply(tx *gorm.DB, n *model.MeetingNote, transplant bool) error {
	values := maps.Clone(c.fields)
	values["updated_at"] = c.now
	if c.start != nil || c.end != nil {
		start, end := n.StartDate, n.EndDate
		if c.start != nil {
			start = c.start.UTC()
			if transplant {
				start = atClock(n.StartDate, *c.start)
			}
		}
		if c.end != nil {
			end = c.end.UTC()
			if transplant {
				end = atClock(n.EndDate, *c.end)
			}
		}
		if !transplant && !end.After(start) {
			return apperr.InvalidDates()
		}
		values["start_date"] = start
		values["end_date"] = end
		values["duration"] = minutes(start, end)
	}
	if n.InteractionStatus == model.InteractionPending {
		values["interaction_status"] = model.InteractionManuallyReviewed
	}
	if err := tx.Model(&model.MeetingNote{}).Where("id = ?", n.ID).Updates(values).Error; err != nil {
		return fmt.Errorf("update meeting note: %w", err)
	}

	if c.participants != nil {
		err := syncLinks(tx, &model.MeetingNoteParticipant{}, "user_id", n.ID, c.participants.keys, func(add []string) any {
			rows := make([]model.MeetingNoteParticipant, len(add))
			for i, id := range add {
				rows[i] = model.MeetingNoteParticipant{MeetingNoteID: n.ID, UserID: id, Status: c.participants.status[id]}
			}
			return &rows
		})
		if err != nil {
			return err
		}
		if err := syncStatus(tx, &model.MeetingNoteParticipant{}, "user_id", n.ID, c.participants); err != nil {
			return err
		}
	}
	if c.externals != nil {
		err := syncLinks(tx, &model.MeetingNoteExternalParticipant{}, "email", n.ID, c.externals.keys, func(add []string) any {
			rows := make([]model.MeetingNoteExternalParticipant, len(add))
			for i, e := range add {
				rows[i] = model.MeetingNoteExternalParticipant{MeetingNoteID: n.ID, Email: e, Status: c.externals.status[e]}
			}
			return &rows
		})
		if err != nil {
			return err
		}
		if err := syncStatus(tx, &model.MeetingNoteExternalParticipant{}, "email", n.ID, c.externals); err != nil {
			return err
		}
	}
	if c.shares != nil {
		err := syncLinks(tx, &model.MeetingNoteShare{}, "user_id", n.ID, *c.shares, func(add []string) any {
			rows := make([]model.MeetingNoteShare, len(add))
			for i, id := range add {
				rows[i] = model.MeetingNoteShare{MeetingNoteID: n.ID, UserID: id}
			}
			return &rows
		})
		if err != nil {
			return err
		}
	}
	if c.labels != nil {
		err := syncLinks(tx, &model.MeetingNoteLabel{}, "label_id", n.ID, *c.labels, func(add []string) any {
			rows := make([]model.MeetingNoteLabel, len(add))
			for i, id := range add {
				rows[i] = model.MeetingNoteLabel{MeetingNoteID: n.ID, LabelID: id}
			}
			return &rows
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// syncLinks makes the column values of a note's link rows equal want,
// deleting and inserting only the difference. rows builds the models to
// insert for the added keys.
func syncLinks(tx *gorm.DB, m any, column, noteID string, want []string, rows func(add []string) any) error {
	var have []string
	if err := tx.Model(m).Where("meeting_note_id = ?", noteID).Pluck(column, &have).Error; err != nil {
		return fmt.Errorf("load %s links: %w", column, err)
	}
	add, drop := relation.Diff(have, want)
	if len(drop) > 0 {
		if err := tx.Where("meeting_note_id = ? AND "+column+" IN ?", noteID, drop).Delete(m).Error; err != nil {
			return fmt.Errorf("drop %s links: %w", column, err)
		}
	}
	if len(add) > 0 {
		if err := tx.Create(rows(add)).Error; err != nil {
			return fmt.Errorf("add %s links: %w", column, err)
		}
	}
	return nil
}

// syncStatus sets the attendance of every wanted link row.
func syncStatus(tx *gorm.DB, m any, column, noteID string, ss *statusSet) error {
	by := map[model.ParticipantStatus][]string{}
	for _, k := range ss.keys {
		by[ss.status[k]] = append(by[ss.status[k]], k)
	}
	for st, keys := range by {
		if err := tx.Model(m).
			Where("meeting_note_id = ? AND "+column+" IN ? AND status <> ?", noteID, keys, st).
			Update("status", st).Error; err != nil {
			return fmt.Errorf("update attendance: %w", err)
		}
	}
	return nil
}
