package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		err  *apperr.Error
		want int
	}{
		{apperr.InvalidCredentials(), http.StatusBadRequest},
		{apperr.MeetingNoteNotFound(), http.StatusNotFound},
		{apperr.NotAllowed(), http.StatusForbidden},
		{apperr.InvalidRefreshToken(), http.StatusUnauthorized},
		{apperr.SummaryInProgress(), http.StatusConflict},
		{apperr.SummarizationFailed(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Kind.Status())
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("accept invite: %w", apperr.InviteExpired())
	assert.ErrorIs(t, wrapped, apperr.InviteExpired())
	assert.NotErrorIs(t, wrapped, apperr.InviteAlreadyAccepted())
	assert.True(t, apperr.HasCode(wrapped, "INVITE_DATE_IS_EXPIRED"))
}

func TestAs(t *testing.T) {
	e, ok := apperr.As(fmt.Errorf("x: %w", apperr.LabelNotFound()))
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)

	_, ok = apperr.As(errors.New("plain"))
	assert.False(t, ok)
}

func TestCatalogMessages(t *testing.T) {
	assert.Equal(t, "Users not found. IDs: a, b", apperr.UsersNotFound("a", "b").Message)
	assert.Equal(t, "User with email a@x.com already exists.", apperr.UserWithEmailExists("a@x.com").Message)
	assert.Contains(t, apperr.UsersAlreadyInCompany([]string{"a@x.com", "b@x.com"}).Message, "a@x.com, b@x.com")
	assert.Equal(t, "MEETING_NOTE_NOT_FOUND: Meeting note not found.", apperr.MeetingNoteNotFound().Error())
}
