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
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

const (
	horizonYears  = 2
	seriesTimeout = 20 * time.Second
	rruleStamp    = "20060102T150405Z"
)

// Window bounds the occurrences of a series by start date, both ends
// inclusive.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Empty reports whether no bound is set.
func (w Window) Empty() bool { return w.Start == nil && w.End == nil }

func (w Window) validate() error {
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return apperr.IncorrectPeriodDates()
	}
	return nil
}

// occurrences expands an RRULE text into start times before the horizon.
// A rule without DTSTART starts at start. Texts with EXDATE or several
// rules are read as a set.
func occurrences(text string, start, horizon time.Time) ([]time.Time, error) {
	text = strings.TrimSpace(text)
	if opt, err := rrule.StrToROption(text); err == nil {
		if opt.Dtstart.IsZero() {
			opt.Dtstart = start.UTC()
		}
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, apperr.InvalidRRule()
		}
		return r.Between(time.Time{}, horizon, false), nil
	}
	if !strings.Contains(strings.ToUpper(text), "DTSTART") {
		text = "DTSTART:" + start.UTC().Format(rruleStamp) + "\n" + text
	}
	set, err := rrule.StrToRRuleSet(text)
	if err != nil {
		return nil, apperr.InvalidRRule()
	}
	return set.Between(time.Time{}, horizon, false), nil
}

// createSeries creates the parent row and one note per occurrence in one
// transaction and returns the ID of the first note.
func (s *Service) createSeries(ctx context.Context, base model.MeetingNote, links noteLinks, rec RecurringInput) (string, error) {
	starts, err := occurrences(rec.RRuleData, base.StartDate, s.now().AddDate(horizonYears, 0, 0))
	if err != nil {
		return "", err
	}
	if len(starts) == 0 {
		return "", apperr.NoOccurrences()
	}
	length := base.EndDate.Sub(base.StartDate)
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = base.Name
	}

	ctx, cancel := context.WithTimeout(ctx, seriesTimeout)
	defer cancel()

	var first string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		series := model.RecurringMeeting{
			CompanyID: base.CompanyID,
			AuthorID:  base.AuthorID,
			Name:      name,
			RRuleData: rec.RRuleData,
		}
		if err := tx.Create(&series).Error; err != nil {
			return fmt.Errorf("create recurring meeting: %w", err)
		}
		notes := make([]model.MeetingNote, len(starts))
		for i, st := range starts {
			n := base
			n.RecurringMeetingID = &series.ID
			n.StartDate = st.UTC()
			n.EndDate = st.UTC().Add(length)
			notes[i] = n
		}
		if err := tx.CreateInBatches(&notes, batchSize).Error; err != nil {
			return fmt.Errorf("create series notes: %w", err)
		}
		ids := make([]string, len(notes))
		for i := range notes {
			ids[i] = notes[i].ID
		}
		first = ids[0]
		return links.insert(tx, ids)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "create recurring meeting", "author_id", base.AuthorID, "occurrences", len(starts), "err", err)
		return "", apperr.FailedCreateRecurring()
	}
	s.log.InfoContext(ctx, "recurring meeting created", "author_id", base.AuthorID, "occurrences", len(starts))
	return first, nil
}

func (s *Service) series(ctx context.Context, companyID, id string) (*model.RecurringMeeting, error) {
	var r model.RecurringMeeting
	err := s.db.WithContext(ctx).First(&r, "id = ? AND company_id = ?", id, companyID).Error
	if db.IsNotFound(err) {
		return nil, apperr.RecurringMeetingNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load recurring meeting: %w", err)
	}
	return &r, nil
}

// seriesNotes selects the notes of a series inside w. With defaultFuture
// set, an empty window selects the notes that have not started yet.
func (s *Service) seriesNotes(ctx context.Context, seriesID string, w Window, defaultFuture bool) ([]model.MeetingNote, error) {
	q := s.db.WithContext(ctx).Where("recurring_meeting_id = ?", seriesID)
	switch {
	case !w.Empty():
		if w.Start != nil {
			q = q.Where("start_date >= ?", w.Start.UTC())
		}
		if w.End != nil {
			q = q.Where("start_date <= ?", w.End.UTC())
		}
	case defaultFuture:
		q = q.Where("start_date > ?", s.now())
	}
	var notes []model.MeetingNote
	if err := q.Order("start_date").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("load series notes: %w", err)
	}
	return notes, nil
}

// UpdateRecurring applies in to every note of the series inside w, or to
// the future notes when w is empty. New dates only move the time of day.
func (s *Service) UpdateRecurring(ctx context.Context, by policy.Subject, seriesID string, w Window, in UpdateInput) error {
	if err := w.validate(); err != nil {
		return err
	}
	r, err := s.series(ctx, by.CompanyID, seriesID)
	if err != nil {
		return err
	}
	notes, err := s.seriesNotes(ctx, r.ID, w, true)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		return apperr.NoMeetingsFound()
	}
	if err := s.authorizeEdit(ctx, by, notes); err != nil {
		return err
	}
	c, err := s.prepare(ctx, by, in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, seriesTimeout)
	defer cancel()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range notes {
			if err := c.apply(tx, &notes[i], true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "update recurring meeting", "recurring_meeting_id", r.ID, "notes", len(notes), "err", err)
		return apperr.FailedUpdateRecurring()
	}
	s.log.InfoContext(ctx, "recurring meeting updated", "recurring_meeting_id", r.ID, "notes", len(notes))
	return nil
}

// DeleteRecurring deletes the notes of a series inside w. An empty window
// deletes the whole series including its parent row. Only the series author
// may do it, and only when they authored every selected note.
func (s *Service) DeleteRecurring(ctx context.Context, by policy.Subject, seriesID string, w Window) error {
	if err := w.validate(); err != nil {
		return err
	}
	r, err := s.series(ctx, by.CompanyID, seriesID)
	if err != nil {
		return err
	}
	if r.AuthorID != by.UserID {
		return apperr.CannotDeleteRecurringOfOther()
	}
	notes, err := s.seriesNotes(ctx, r.ID, w, false)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		if !policy.CanDelete(by, policy.Resource{AuthorID: n.AuthorID}).Allowed {
			return apperr.CannotDeleteNoteOfOther()
		}
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 && !w.Empty() {
		return apperr.NoMeetingsFound()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			if err := deleteNotes(tx, ids); err != nil {
				return err
			}
		}
		if w.Empty() {
			if err := tx.Delete(&model.RecurringMeeting{}, "id = ?", r.ID).Error; err != nil {
				return fmt.Errorf("delete recurring meeting: %w", err)
			}
		}
		return nil
	})
}
