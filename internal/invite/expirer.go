package invite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/d9705996/huddle/internal/model"
	"gorm.io/gorm"
)

// Expirer rejects invites whose deadline has passed. It implements
// worker.Expirer.
type Expirer struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

// NewExpirer creates an Expirer.
func NewExpirer(gdb *gorm.DB, log *slog.Logger) *Expirer {
	return &Expirer{db: gdb, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ExpireInvite rejects the invite if it is still pending. A deleted,
// accepted or already rejected invite is left alone.
func (e *Expirer) ExpireInvite(ctx context.Context, inviteID string) error {
	res := e.db.WithContext(ctx).Model(&model.Invite{}).
		Where("id = ? AND accepted_at IS NULL AND rejected_at IS NULL", inviteID).
		Update("rejected_at", e.now())
	if res.Error != nil {
		return fmt.Errorf("reject invite: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		e.log.InfoContext(ctx, "invite rejected", "invite_id", inviteID)
	}
	return nil
}

// ExpireOverdue rejects every pending invite past its deadline and returns
// how many were rejected.
func (e *Expirer) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res := e.db.WithContext(ctx).Model(&model.Invite{}).
		Where("valid_until < ? AND accepted_at IS NULL AND rejected_at IS NULL", now).
		Update("rejected_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("reject overdue invites: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
