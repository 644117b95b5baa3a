package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// MaxTake caps page sizes requested by clients.
const MaxTake = 100

// Page is an offset/limit window over an ordered result.
type Page struct {
	Skip int
	Take int
}

// Scope applies the window, using def when Take is unset.
func (p Page) Scope(def int) func(*gorm.DB) *gorm.DB {
	take := p.Take
	if take <= 0 {
		take = def
	}
	take = min(take, MaxTake)
	skip := max(p.Skip, 0)
	return func(q *gorm.DB) *gorm.DB {
		return q.Offset(skip).Limit(take)
	}
}

// Like returns a lower-cased LIKE pattern matching s anywhere. Use it
// against LOWER(column) so the match is case-insensitive on both drivers.
func Like(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// IsNotFound reports whether err is gorm's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
