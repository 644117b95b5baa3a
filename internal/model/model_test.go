package model_test

import (
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestInviteStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		invite model.Invite
		want   model.InviteStatus
	}{
		{name: "pending", invite: model.Invite{ValidUntil: future}, want: model.InvitePending},
		{name: "expired", invite: model.Invite{ValidUntil: past}, want: model.InviteExpired},
		{name: "accepted wins over expiry", invite: model.Invite{ValidUntil: past, AcceptedAt: &past}, want: model.InviteAccepted},
		{name: "rejected", invite: model.Invite{ValidUntil: future, RejectedAt: &past}, want: model.InviteRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.invite.Status(now))
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, model.RoleOwner.Valid())
	assert.True(t, model.RoleCompanyManager.Valid())
	assert.True(t, model.RoleUser.Valid())
	assert.False(t, model.Role("ADMIN").Valid())
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Ada", (&model.User{FirstName: "Ada"}).FullName())
	assert.Equal(t, "Ada Lovelace", (&model.User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
}
