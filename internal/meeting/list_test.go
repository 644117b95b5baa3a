package meeting_test

import (
	"context"
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(l *meeting.List) []string {
	out := make([]string, len(l.MeetingNotes))
	for i, n := range l.MeetingNotes {
		out[i] = n.Name
	}
	return out
}

// listFixture creates, in order:
//
//	Standup      by owner, alice and guest@ext.com participate
//	Alice retro  by alice, DEMO
//	Bob planning by bob, shared with owner, labelled
//	Secret       by owner, hidden
//	Yesterday    by owner, already ended, owner not a participant
func listFixture(t *testing.T) (*fixture, *model.Label) {
	t.Helper()
	f := setup(t)
	ctx := context.Background()
	lb := f.label(t, "roadmap")

	f.note(t, f.owner, func(in *meeting.CreateInput) {
		in.ParticipantsInSystem = []string{f.alice.ID}
		in.ParticipantsOutSystem = []string{"guest@ext.com"}
	})
	f.note(t, f.alice, func(in *meeting.CreateInput) { in.Name, in.Type = "Alice retro", model.MeetingDemo })
	planning := f.note(t, f.bob, func(in *meeting.CreateInput) { in.Name = "Bob planning" })
	shares, labels := []string{f.owner.ID}, []string{lb.ID}
	_, err := f.svc.Update(ctx, f.as(f.bob), planning.ID, meeting.UpdateInput{Shares: &shares, LabelIDs: &labels})
	require.NoError(t, err)

	secret := f.note(t, f.owner, func(in *meeting.CreateInput) { in.Name = "Secret" })
	hidden := true
	_, err = f.svc.Update(ctx, f.as(f.owner), secret.ID, meeting.UpdateInput{IsHidden: &hidden})
	require.NoError(t, err)

	ended := time.Now().UTC().Add(-3 * time.Hour)
	yesterday := f.note(t, f.owner, func(in *meeting.CreateInput) {
		in.Name = "Yesterday"
		in.StartDate, in.EndDate = ended, ended.Add(time.Hour)
	})
	require.NoError(t, f.gdb.Where("meeting_note_id = ? AND user_id = ?", yesterday.ID, f.owner.ID).
		Delete(&model.MeetingNoteParticipant{}).Error)
	return f, lb
}

func TestList_Scopes(t *testing.T) {
	f, _ := listFixture(t)

	tests := []struct {
		name string
		by   *model.User
		q    meeting.Query
		want []string
	}{
		{"my notes by default", f.owner, meeting.Query{}, []string{"Standup", "Yesterday"}},
		{"my notes with hidden", f.owner, meeting.Query{Scope: meeting.ScopeMyNotes, IsHidden: true}, []string{"Standup", "Secret", "Yesterday"}},
		{"author excludes participation", f.owner, meeting.Query{Scope: meeting.ScopeAuthor}, []string{"Yesterday"}},
		{"participant excludes authored", f.alice, meeting.Query{Scope: meeting.ScopeParticipant}, []string{"Standup"}},
		{"shared", f.owner, meeting.Query{Scope: meeting.ScopeShared}, []string{"Bob planning"}},
		{"shared with nobody", f.alice, meeting.Query{Scope: meeting.ScopeShared}, []string{}},
		{"all space", f.owner, meeting.Query{Scope: meeting.ScopeAllSpace}, []string{"Standup", "Alice retro", "Bob planning", "Yesterday"}},
		{"alice's own", f.alice, meeting.Query{}, []string{"Standup", "Alice retro"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.List(context.Background(), f.as(tt.by), tt.q)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(got))
			assert.EqualValues(t, len(tt.want), got.Total)
		})
	}
}

func TestList_Rejects(t *testing.T) {
	f, _ := listFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, f.as(f.manager), meeting.Query{Scope: meeting.ScopeAllSpace})
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED_MEETING_NOTE"))
	_, err = f.svc.List(ctx, f.as(f.owner), meeting.Query{Scope: "EVERYTHING"})
	assert.True(t, apperr.HasCode(err, "VALIDATION_FAILED"))
}

func TestList_Filters(t *testing.T) {
	f, lb := listFixture(t)
	now := time.Now().UTC()
	from, to := now.Add(-4*time.Hour), now.Add(-time.Hour)
	all := func(q meeting.Query) meeting.Query {
		q.Scope = meeting.ScopeAllSpace
		return q
	}

	tests := []struct {
		name string
		q    meeting.Query
		want []string
	}{
		{"search ignores case", meeting.Query{Search: " RETRO "}, []string{"Alice retro"}},
		{"types", meeting.Query{Types: []model.MeetingType{model.MeetingDemo}}, []string{"Alice retro"}},
		{"labels", meeting.Query{Labels: []string{lb.ID}}, []string{"Bob planning"}},
		{"status", meeting.Query{InteractionStatuses: []model.InteractionStatus{model.InteractionManuallyReviewed}}, []string{"Bob planning"}},
		{"in-system participant", meeting.Query{ParticipantsInSystem: []string{f.alice.ID}}, []string{"Standup", "Alice retro"}},
		{"external participant", meeting.Query{ParticipantsOutSystem: []string{"GUEST@ext.com"}}, []string{"Standup"}},
		{"overlapping range", meeting.Query{StartDate: &from, EndDate: &to}, []string{"Yesterday"}},
		{"starting after", meeting.Query{StartDate: &now}, []string{"Standup", "Alice retro", "Bob planning"}},
		{"ending before", meeting.Query{EndDate: &now}, []string{"Yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.List(context.Background(), f.as(f.owner), all(tt.q))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(got))
		})
	}
}

func TestList_PageAndAttention(t *testing.T) {
	f, _ := listFixture(t)
	ctx := context.Background()

	got, err := f.svc.List(ctx, f.as(f.owner), meeting.Query{Scope: meeting.ScopeAllSpace, Page: db.Page{Take: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yesterday", "Bob planning"}, names(got))
	assert.EqualValues(t, 4, got.Total)
	assert.EqualValues(t, 1, got.AttentionTotal)

	got, err = f.svc.List(ctx, f.as(f.owner), meeting.Query{Scope: meeting.ScopeAllSpace, Page: db.Page{Skip: 2, Take: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice retro", "Standup"}, names(got))

	got, err = f.svc.List(ctx, f.as(f.alice), meeting.Query{})
	require.NoError(t, err)
	assert.Zero(t, got.AttentionTotal)
}
