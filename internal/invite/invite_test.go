package invite_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/db/dbtest"
	"github.com/d9705996/huddle/internal/invite"
	"github.com/d9705996/huddle/internal/mail/mailtest"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	cancelled []string
	n         int
}

func (f *fakeScheduler) ScheduleInviteExpiry(_ context.Context, inviteID string, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.scheduled[inviteID] = at
	return fmt.Sprintf("job-%d", f.n), nil
}

func (f *fakeScheduler) Cancel(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

// fakeIssuer encodes the membership in the tokens.
type fakeIssuer struct{}

func (fakeIssuer) Issue(_ context.Context, user *model.User, uc *model.UserCompany) (auth.Tokens, error) {
	return auth.Tokens{Access: user.ID, Refresh: uc.CompanyID}, nil
}

type fixture struct {
	gdb   *gorm.DB
	svc   *invite.Service
	mail  *mailtest.Recorder
	sched *fakeScheduler
	acme  *model.Company
	owner *model.User
	by    policy.Subject
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.New(t)
	f := &fixture{
		gdb:   gdb,
		mail:  &mailtest.Recorder{},
		sched: &fakeScheduler{scheduled: map[string]time.Time{}},
		acme:  dbtest.Company(t, gdb, "Acme"),
		owner: dbtest.User(t, gdb, "ann@x.com"),
	}
	dbtest.Member(t, gdb, f.owner, f.acme, model.RoleOwner)
	f.svc = invite.NewService(gdb, f.mail, f.sched, fakeIssuer{}, "https://app.test/", slog.Default())
	f.by = policy.Subject{UserID: f.owner.ID, CompanyID: f.acme.ID, Role: model.RoleOwner}
	return f
}

func (f *fixture) invite(t *testing.T, email string) model.Invite {
	t.Helper()
	var inv model.Invite
	require.NoError(t, f.gdb.First(&inv, "email = ?", email).Error)
	return inv
}

func (f *fixture) expire(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.gdb.Model(&model.Invite{}).Where("id = ?", id).
		Update("valid_until", time.Now().UTC().Add(-time.Minute)).Error)
}

func TestCreateEmailInvites(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dbtest.User(t, f.gdb, "bob@x.com")

	created, err := f.svc.CreateEmailInvites(ctx, f.by, []string{" Bob@X.com", "new@x.com", "bob@x.com"}, model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, &invite.Created{Success: true, Count: 2}, created)

	bob := f.invite(t, "bob@x.com")
	assert.Equal(t, model.RoleUser, bob.Role)
	assert.WithinDuration(t, time.Now().Add(invite.Validity), bob.ValidUntil, time.Minute)
	assert.NotEmpty(t, bob.JobID)
	assert.WithinDuration(t, bob.ValidUntil, f.sched.scheduled[bob.ID], time.Second)

	msgs := f.mail.To("bob@x.com")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Invitation to join company", msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "By clicking on the link you agree")
	assert.Contains(t, msgs[0].Text, "https://app.test/accept-email-invite?inviteId="+bob.ID+"&expiresAt=")
	assert.True(t, strings.HasSuffix(msgs[0].Text, "&exist=1"))

	msgs = f.mail.To("new@x.com")
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0].Text, "Accept invitation to join company: https://app.test/"))
	assert.NotContains(t, msgs[0].Text, "exist=1")

	_, err = f.svc.CreateEmailInvites(ctx, f.by, []string{"bob@x.com"}, model.RoleUser)
	assert.True(t, apperr.HasCode(err, "INVITE_ALREADY_SENDED"))

	_, err = f.svc.CreateEmailInvites(ctx, f.by, []string{"ann@x.com"}, model.RoleUser)
	assert.True(t, apperr.HasCode(err, "USERS_ALREADY_IN_COMPANY"))

	_, err = f.svc.CreateEmailInvites(ctx, f.by, []string{"nope"}, model.RoleUser)
	assert.True(t, apperr.HasCode(err, "VALIDATION_FAILED"))
	_, err = f.svc.CreateEmailInvites(ctx, f.by, []string{"c@x.com"}, model.Role("ADMIN"))
	assert.True(t, apperr.HasCode(err, "VALIDATION_FAILED"))
}

func TestCreateEmailInvites_MailFailure(t *testing.T) {
	f := setup(t)
	f.mail.Err = errors.New("smtp down")
	created, err := f.svc.CreateEmailInvites(context.Background(), f.by, []string{"bob@x.com", "new@x.com"}, model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, &invite.Created{Success: true, Count: 2, Unsent: 2}, created)

	inv := f.invite(t, "bob@x.com")
	assert.Equal(t, model.InvitePending, inv.Status(time.Now()))
	assert.NotEmpty(t, inv.JobID, "expiry is scheduled even when the mail fails")
}

func TestAcceptEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"new@x.com"}, model.RoleCompanyManager)
	require.NoError(t, err)
	inv := f.invite(t, "new@x.com")

	a := invite.Acceptance{InviteID: inv.ID, Email: "new@x.com", Password: "Secret123!", FirstName: "Nina", LastName: "New"}

	_, err = f.svc.AcceptEmail(ctx, invite.Acceptance{InviteID: inv.ID, Email: "other@x.com", Password: a.Password, FirstName: "Nina", LastName: "New"})
	assert.True(t, apperr.HasCode(err, "INVITE_EMAIL_NOT_MATCH"))
	_, err = f.svc.AcceptEmail(ctx, invite.Acceptance{InviteID: "missing"})
	assert.True(t, apperr.HasCode(err, "INVITE_NOT_FOUND"))

	tokens, err := f.svc.AcceptEmail(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, f.acme.ID, tokens.Refresh)

	var user model.User
	require.NoError(t, f.gdb.First(&user, "email = ?", "new@x.com").Error)
	assert.Equal(t, user.ID, tokens.Access)
	assert.True(t, user.EmailConfirmed)
	var space model.Company
	require.NoError(t, f.gdb.First(&space, "id = ?", *user.MainCompanyID).Error)
	assert.Equal(t, "Nina's Space", space.Name)

	var uc model.UserCompany
	require.NoError(t, f.gdb.First(&uc, "user_id = ? AND company_id = ?", user.ID, f.acme.ID).Error)
	assert.Equal(t, model.RoleCompanyManager, uc.Role)

	_, err = f.svc.AcceptEmail(ctx, a)
	assert.True(t, apperr.HasCode(err, "INVITE_ALREADY_ACCEPTED"))
}

func TestAcceptEmail_ExpiredWinsOverEverything(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"new@x.com"}, model.RoleUser)
	require.NoError(t, err)
	inv := f.invite(t, "new@x.com")
	f.expire(t, inv.ID)

	_, err = f.svc.AcceptEmail(ctx, invite.Acceptance{InviteID: inv.ID, Email: "wrong", Password: "x"})
	assert.True(t, apperr.HasCode(err, "INVITE_DATE_IS_EXPIRED"))
}

func TestAcceptEmail_ExistingUserNeedsPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	hash, err := auth.HashPassword("Secret123!")
	require.NoError(t, err)
	bob := dbtest.User(t, f.gdb, "bob@x.com")
	require.NoError(t, f.gdb.Model(bob).Update("password_hash", hash).Error)

	_, err = f.svc.CreateEmailInvites(ctx, f.by, []string{"bob@x.com"}, model.RoleUser)
	require.NoError(t, err)
	inv := f.invite(t, "bob@x.com")

	_, err = f.svc.AcceptEmail(ctx, invite.Acceptance{InviteID: inv.ID, Email: "bob@x.com", Password: "wrong"})
	assert.True(t, apperr.HasCode(err, "INVALID_CREDENTIALS"))

	tokens, err := f.svc.AcceptEmail(ctx, invite.Acceptance{InviteID: inv.ID, Email: "bob@x.com", Password: "Secret123!"})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, tokens.Access)
}

func TestAcceptLink(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	link, err := f.svc.CreateLinkInvite(ctx, f.by, model.RoleUser)
	require.NoError(t, err)
	require.NotNil(t, link.Link)
	assert.Contains(t, *link.Link, "https://app.test/accept-link-invite?token=")
	assert.Equal(t, model.InvitePending, link.Status)

	var inv model.Invite
	require.NoError(t, f.gdb.First(&inv, "id = ?", link.ID).Error)
	require.NotNil(t, inv.Token)

	_, err = f.svc.AcceptLink(ctx, invite.Acceptance{Token: "bogus"})
	assert.True(t, apperr.HasCode(err, "INVITE_NOT_FOUND"))

	for _, email := range []string{"one@x.com", "two@x.com"} {
		_, err := f.svc.AcceptLink(ctx, invite.Acceptance{Token: *inv.Token, Email: email, Password: "Secret123!", FirstName: "Lin", LastName: "Kay"})
		require.NoError(t, err, "link invites are reusable: %s", email)
	}
	var user model.User
	require.NoError(t, f.gdb.First(&user, "email = ?", "two@x.com").Error)
	assert.False(t, user.EmailConfirmed)

	f.expire(t, inv.ID)
	_, err = f.svc.AcceptLink(ctx, invite.Acceptance{Token: *inv.Token, Email: "three@x.com", Password: "Secret123!", FirstName: "Lin", LastName: "Kay"})
	assert.True(t, apperr.HasCode(err, "INVITE_DATE_IS_EXPIRED"))
}

func TestAcceptExisting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bob := dbtest.User(t, f.gdb, "bob@x.com")
	cat := dbtest.User(t, f.gdb, "cat@x.com")
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"bob@x.com"}, model.RoleUser)
	require.NoError(t, err)
	inv := f.invite(t, "bob@x.com")

	_, err = f.svc.AcceptExisting(ctx, policy.Subject{UserID: cat.ID}, inv.ID, "")
	assert.True(t, apperr.HasCode(err, "INVITE_EMAIL_NOT_MATCH"))

	tokens, err := f.svc.AcceptExisting(ctx, policy.Subject{UserID: bob.ID}, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, f.acme.ID, tokens.Refresh)

	link, err := f.svc.CreateLinkInvite(ctx, f.by, model.RoleUser)
	require.NoError(t, err)
	var linkInv model.Invite
	require.NoError(t, f.gdb.First(&linkInv, "id = ?", link.ID).Error)
	_, err = f.svc.AcceptExisting(ctx, policy.Subject{UserID: bob.ID}, "", *linkInv.Token)
	assert.True(t, apperr.HasCode(err, "USER_ALREADY_LINKED"))
	_, err = f.svc.AcceptExisting(ctx, policy.Subject{UserID: cat.ID}, "", *linkInv.Token)
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"a@x.com", "b@x.com", "c@x.com"}, model.RoleUser)
	require.NoError(t, err)
	_, err = f.svc.CreateLinkInvite(ctx, f.by, model.RoleCompanyManager)
	require.NoError(t, err)
	f.expire(t, f.invite(t, "b@x.com").ID)
	require.NoError(t, f.gdb.Model(&model.Invite{}).Where("email = ?", "c@x.com").
		Update("rejected_at", time.Now().UTC()).Error)

	tests := []struct {
		name  string
		q     invite.Query
		total int64
	}{
		{"all", invite.Query{}, 4},
		{"pending", invite.Query{Statuses: []model.InviteStatus{model.InvitePending}}, 2},
		{"expired or rejected", invite.Query{Statuses: []model.InviteStatus{model.InviteExpired, model.InviteRejected}}, 2},
		{"accepted", invite.Query{Statuses: []model.InviteStatus{model.InviteAccepted}}, 0},
		{"role", invite.Query{Roles: []model.Role{model.RoleCompanyManager}}, 1},
		{"search", invite.Query{Search: "A@X"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.List(ctx, f.by, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.total, got.Total)
			assert.Len(t, got.Invites, int(tt.total))
		})
	}

	got, err := f.svc.List(ctx, f.by, invite.Query{Search: "b@"})
	require.NoError(t, err)
	require.Len(t, got.Invites, 1)
	assert.Equal(t, model.InviteExpired, got.Invites[0].Status)
}

func TestRefresh(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"b@x.com"}, model.RoleUser)
	require.NoError(t, err)
	old := f.invite(t, "b@x.com")

	err = f.svc.Refresh(ctx, f.by, old.ID)
	assert.True(t, apperr.HasCode(err, "INVITE_CANNOT_REFRESH"))

	link, err := f.svc.CreateLinkInvite(ctx, f.by, model.RoleUser)
	require.NoError(t, err)
	err = f.svc.Refresh(ctx, f.by, link.ID)
	assert.True(t, apperr.HasCode(err, "INVITE_CANNOT_REFRESH_NO_EMAIL"))

	outsider := policy.Subject{UserID: "x", CompanyID: "other"}
	err = f.svc.Refresh(ctx, outsider, old.ID)
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED"))

	require.NoError(t, invite.NewExpirer(f.gdb, slog.Default()).ExpireInvite(ctx, old.ID))
	require.NoError(t, f.svc.Refresh(ctx, f.by, old.ID))

	fresh := f.invite(t, "b@x.com")
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Nil(t, fresh.RejectedAt)
	assert.True(t, fresh.ValidUntil.After(time.Now()))
	assert.Contains(t, f.sched.scheduled, fresh.ID)
	assert.Len(t, f.mail.To("b@x.com"), 2)

	var n int64
	require.NoError(t, f.gdb.Model(&model.Invite{}).Where("id = ?", old.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRemove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"b@x.com"}, model.RoleUser)
	require.NoError(t, err)
	inv := f.invite(t, "b@x.com")

	err = f.svc.Remove(ctx, policy.Subject{CompanyID: "other"}, inv.ID)
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED"))
	require.NoError(t, f.svc.Remove(ctx, f.by, inv.ID))
	assert.Equal(t, []string{inv.JobID}, f.sched.cancelled)

	err = f.svc.Remove(ctx, f.by, inv.ID)
	assert.True(t, apperr.HasCode(err, "INVITE_NOT_FOUND"))
}

func TestExpirer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateEmailInvites(ctx, f.by, []string{"a@x.com", "b@x.com", "c@x.com"}, model.RoleUser)
	require.NoError(t, err)
	exp := invite.NewExpirer(f.gdb, slog.Default())

	a := f.invite(t, "a@x.com")
	require.NoError(t, f.gdb.Model(&a).Update("accepted_at", time.Now().UTC()).Error)
	require.NoError(t, exp.ExpireInvite(ctx, a.ID))
	assert.Nil(t, f.invite(t, "a@x.com").RejectedAt, "accepted invites are not rejected")
	require.NoError(t, exp.ExpireInvite(ctx, "missing"))

	b := f.invite(t, "b@x.com")
	f.expire(t, b.ID)
	n, err := exp.ExpireOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, f.invite(t, "b@x.com").RejectedAt)
	assert.Nil(t, f.invite(t, "c@x.com").RejectedAt)
}
