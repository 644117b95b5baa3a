package meeting_test

import (
	"context"
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seriesNotes(t *testing.T, seriesID string) []model.MeetingNote {
	t.Helper()
	var notes []model.MeetingNote
	require.NoError(t, f.gdb.Where("recurring_meeting_id = ?", seriesID).Order("start_date").Find(&notes).Error)
	return notes
}

func (f *fixture) daily(t *testing.T, count string) *meeting.Note {
	t.Helper()
	return f.note(t, f.owner, func(in *meeting.CreateInput) {
		in.ParticipantsInSystem = []string{f.alice.ID}
		in.Recurring = &meeting.RecurringInput{RRuleData: "FREQ=DAILY;COUNT=" + count}
	})
}

func TestCreate_Recurring(t *testing.T) {
	f := setup(t)
	start := hour()
	n := f.note(t, f.owner, func(in *meeting.CreateInput) {
		in.ParticipantsInSystem = []string{f.alice.ID}
		in.ParticipantsOutSystem = []string{"guest@ext.com"}
		in.Recurring = &meeting.RecurringInput{Name: "Daily sync", RRuleData: "FREQ=DAILY;COUNT=3"}
	})

	require.NotNil(t, n.RecurringMeeting)
	assert.Equal(t, "Daily sync", n.RecurringMeeting.Name)
	assert.Equal(t, "FREQ=DAILY;COUNT=3", n.RecurringMeeting.RRuleData)
	assert.Equal(t, f.owner.ID, n.RecurringMeeting.AuthorID)
	assert.True(t, start.Equal(n.StartDate), "first occurrence starts at the note start")

	notes := f.seriesNotes(t, n.RecurringMeeting.ID)
	require.Len(t, notes, 3)
	for i, sn := range notes {
		assert.True(t, start.AddDate(0, 0, i).Equal(sn.StartDate), "occurrence %d", i)
		assert.Equal(t, 30*time.Minute, sn.EndDate.Sub(sn.StartDate))
		assert.Equal(t, "Standup", sn.Name)
		assert.Equal(t, model.InteractionPending, sn.InteractionStatus)
	}

	var participants, externals int64
	require.NoError(t, f.gdb.Model(&model.MeetingNoteParticipant{}).Count(&participants).Error)
	require.NoError(t, f.gdb.Model(&model.MeetingNoteExternalParticipant{}).Count(&externals).Error)
	assert.EqualValues(t, 6, participants)
	assert.EqualValues(t, 3, externals)
	assert.Len(t, f.mail.To("guest@ext.com"), 1)
}

func TestCreate_RecurringClippedToHorizon(t *testing.T) {
	f := setup(t)
	n := f.note(t, f.owner, func(in *meeting.CreateInput) {
		in.Recurring = &meeting.RecurringInput{RRuleData: "FREQ=YEARLY;COUNT=5"}
	})
	notes := f.seriesNotes(t, n.RecurringMeeting.ID)
	assert.Len(t, notes, 2)
	for _, sn := range notes {
		assert.True(t, sn.StartDate.Before(time.Now().AddDate(2, 0, 0).Add(time.Hour)))
	}
	assert.Equal(t, n.Name, n.RecurringMeeting.Name)
}

func TestCreate_RecurringRejects(t *testing.T) {
	f := setup(t)
	late := hour().AddDate(3, 0, 0).Format("20060102T150405Z")
	tests := []struct {
		name string
		rule string
		code string
	}{
		{"unknown frequency", "FREQ=SOMETIMES", "INVALID_RRULE_OPTIONS"},
		{"garbage", "every other day", "INVALID_RRULE_OPTIONS"},
		{"starts past the horizon", "DTSTART:" + late + "\nRRULE:FREQ=DAILY;COUNT=3", "NO_OCCURRENCES_TO_CREATE_MEETINGS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := hour()
			_, err := f.svc.Create(context.Background(), f.as(f.owner), meeting.CreateInput{
				Name:      "Standup",
				Type:      model.MeetingDaily,
				StartDate: start,
				EndDate:   start.Add(time.Hour),
				Recurring: &meeting.RecurringInput{RRuleData: tt.rule},
			})
			assert.True(t, apperr.HasCode(err, tt.code), "got %v", err)
		})
	}
	var count int64
	require.NoError(t, f.gdb.Model(&model.RecurringMeeting{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_RecurringWithExdate(t *testing.T) {
	f := setup(t)
	start := hour()
	stamp := func(t time.Time) string { return t.Format("20060102T150405Z") }
	rule := "DTSTART:" + stamp(start) + "\nRRULE:FREQ=DAILY;COUNT=3\nEXDATE:" + stamp(start.AddDate(0, 0, 1))
	n := f.note(t, f.owner, func(in *meeting.CreateInput) {
		in.StartDate, in.EndDate = start, start.Add(time.Hour)
		in.Recurring = &meeting.RecurringInput{RRuleData: rule}
	})
	notes := f.seriesNotes(t, n.RecurringMeeting.ID)
	require.Len(t, notes, 2)
	assert.True(t, start.Equal(notes[0].StartDate))
	assert.True(t, start.AddDate(0, 0, 2).Equal(notes[1].StartDate))
}

func TestUpdateRecurring_FutureByDefault(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.daily(t, "3")
	seriesID := n.RecurringMeeting.ID
	past := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, f.gdb.Model(&model.MeetingNote{}).Where("id = ?", n.ID).
		Updates(map[string]any{"start_date": past, "end_date": past.Add(30 * time.Minute)}).Error)

	name := "Renamed"
	clockStart := time.Date(2001, 1, 1, 15, 45, 0, 0, time.UTC)
	clockEnd := clockStart.Add(time.Hour)
	require.NoError(t, f.svc.UpdateRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{}, meeting.UpdateInput{
		Name:      &name,
		StartDate: &clockStart,
		EndDate:   &clockEnd,
	}))

	notes := f.seriesNotes(t, seriesID)
	require.Len(t, notes, 3)
	assert.Equal(t, "Standup", notes[0].Name)
	assert.Equal(t, model.InteractionPending, notes[0].InteractionStatus)
	day := hour()
	for i, sn := range notes[1:] {
		d := day.AddDate(0, 0, i+1)
		want := time.Date(d.Year(), d.Month(), d.Day(), 15, 45, 0, 0, time.UTC)
		assert.Equal(t, "Renamed", sn.Name)
		assert.True(t, want.Equal(sn.StartDate), "got %s want %s", sn.StartDate, want)
		assert.Equal(t, 60, sn.Duration)
		assert.Equal(t, model.InteractionManuallyReviewed, sn.InteractionStatus)
	}
}

func TestUpdateRecurring_Window(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.daily(t, "3")
	seriesID := n.RecurringMeeting.ID
	second := hour().AddDate(0, 0, 1)

	hidden := true
	w := meeting.Window{Start: &second, End: &second}
	require.NoError(t, f.svc.UpdateRecurring(ctx, f.as(f.owner), seriesID, w, meeting.UpdateInput{IsHidden: &hidden}))
	notes := f.seriesNotes(t, seriesID)
	require.Len(t, notes, 3)
	assert.Equal(t, []bool{false, true, false}, []bool{notes[0].IsHidden, notes[1].IsHidden, notes[2].IsHidden})

	late := hour().AddDate(1, 0, 0)
	err := f.svc.UpdateRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{Start: &late}, meeting.UpdateInput{IsHidden: &hidden})
	assert.True(t, apperr.HasCode(err, "NO_MEETINGS_FOUND"))

	err = f.svc.UpdateRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{Start: &late, End: &second}, meeting.UpdateInput{})
	assert.True(t, apperr.HasCode(err, "INCORRECT_PERIOD_DATES"))

	err = f.svc.UpdateRecurring(ctx, f.as(f.alice), seriesID, meeting.Window{}, meeting.UpdateInput{IsHidden: &hidden})
	assert.True(t, apperr.HasCode(err, "CANNOT_CHANGE_DATA_OF_DIFFERENT_USER"))

	err = f.svc.UpdateRecurring(ctx, f.as(f.owner), "missing", meeting.Window{}, meeting.UpdateInput{})
	assert.True(t, apperr.HasCode(err, "RECURRING_MEETING_NOT_FOUND"))
}

func TestDeleteRecurring(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.daily(t, "3")
	seriesID := n.RecurringMeeting.ID

	err := f.svc.DeleteRecurring(ctx, f.as(f.alice), seriesID, meeting.Window{})
	assert.True(t, apperr.HasCode(err, "CAN_NOT_DELETE_RECURRING_OWNED_BY_OTHER"))
	err = f.svc.DeleteRecurring(ctx, f.as(f.manager), seriesID, meeting.Window{})
	assert.True(t, apperr.HasCode(err, "CAN_NOT_DELETE_RECURRING_OWNED_BY_OTHER"))

	late := hour().AddDate(1, 0, 0)
	err = f.svc.DeleteRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{Start: &late})
	assert.True(t, apperr.HasCode(err, "NO_MEETINGS_FOUND"))

	third := hour().AddDate(0, 0, 2)
	require.NoError(t, f.svc.DeleteRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{Start: &third}))
	assert.Len(t, f.seriesNotes(t, seriesID), 2)

	require.NoError(t, f.svc.DeleteRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{}))
	assert.Empty(t, f.seriesNotes(t, seriesID))
	var series, participants int64
	require.NoError(t, f.gdb.Model(&model.RecurringMeeting{}).Where("id = ?", seriesID).Count(&series).Error)
	require.NoError(t, f.gdb.Model(&model.MeetingNoteParticipant{}).Count(&participants).Error)
	assert.Zero(t, series)
	assert.Zero(t, participants)

	err = f.svc.DeleteRecurring(ctx, f.as(f.owner), seriesID, meeting.Window{})
	assert.True(t, apperr.HasCode(err, "RECURRING_MEETING_NOT_FOUND"))
}
