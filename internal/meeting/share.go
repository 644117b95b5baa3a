package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/storage"
)

const publicShareTTL = 7 * 24 * time.Hour

// PublicShare is the outcome of TogglePublicSharing.
type PublicShare struct {
	IsPublic    bool       `json:"isPublic"`
	PublicURL   *string    `json:"publicUrl"`
	PublicUntil *time.Time `json:"publicUntil"`
}

// TogglePublicSharing publishes a note for seven days or withdraws it. A
// re-published note keeps its slug. Only the author may do either.
func (s *Service) TogglePublicSharing(ctx context.Context, by policy.Subject, id string, isPublic bool, locale string) (*PublicShare, error) {
	n, err := s.find(ctx, by.CompanyID, id)
	if err != nil {
		if errors.Is(err, apperr.MeetingNoteNotFound()) {
			return nil, apperr.DontHaveAccess()
		}
		return nil, err
	}
	if n.AuthorID != by.UserID {
		return nil, apperr.DontHaveAccess()
	}

	out := &PublicShare{IsPublic: isPublic}
	values := map[string]any{"public_slug": nil, "public_until": nil}
	if isPublic {
		slug := storage.RandomHex(16)
		if n.PublicSlug != nil && *n.PublicSlug != "" {
			slug = *n.PublicSlug
		}
		until := s.now().Add(publicShareTTL)
		u := fmt.Sprintf("%s/%s/public-meeting/%s/after", s.clientURL, locale, slug)
		out.PublicURL, out.PublicUntil = &u, &until
		values = map[string]any{"public_slug": slug, "public_until": until}
	}
	if err := s.db.WithContext(ctx).Model(&model.MeetingNote{}).
		Where("id = ?", n.ID).
		Updates(values).Error; err != nil {
		return nil, fmt.Errorf("toggle public sharing: %w", err)
	}
	s.log.InfoContext(ctx, "public sharing toggled", "note_id", n.ID, "public", isPublic)
	return out, nil
}
