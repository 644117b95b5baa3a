// Package member resolves company memberships and implements the users
// management operations available to owners and managers.
package member

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/model"
	"gorm.io/gorm"
)

// ErrNotMember is returned by Find when the user has no membership row in
// the company.
var ErrNotMember = errors.New("member: user is not a member of the company")

// Find returns the membership of userID in companyID, removed or not.
func Find(ctx context.Context, tx *gorm.DB, userID, companyID string) (*model.UserCompany, error) {
	var uc model.UserCompany
	err := tx.WithContext(ctx).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		First(&uc).Error
	if db.IsNotFound(err) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &uc, nil
}

// Active reports whether the membership is neither blocked nor removed.
func Active(uc *model.UserCompany) bool {
	return uc.BlockedAt == nil && uc.RemovedAt == nil
}

// ResolveUsers maps user IDs to their live memberships in companyID. Any ID
// without one fails the whole call with USER_NOT_FOUND naming the missing IDs.
func ResolveUsers(ctx context.Context, tx *gorm.DB, companyID string, userIDs []string) ([]model.UserCompany, error) {
	ids := Unique(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var ucs []model.UserCompany
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND user_id IN ? AND removed_at IS NULL", companyID, ids).
		Find(&ucs).Error; err != nil {
		return nil, fmt.Errorf("resolve memberships: %w", err)
	}
	if len(ucs) == len(ids) {
		return ucs, nil
	}
	found := make(map[string]bool, len(ucs))
	for _, uc := range ucs {
		found[uc.UserID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return nil, apperr.UsersNotFound(missing...)
}

// Link adds user to companyID with role. A previously removed membership is
// restored instead of duplicated.
func Link(ctx context.Context, tx *gorm.DB, user *model.User, companyID string, role model.Role) (*model.UserCompany, error) {
	uc, err := Find(ctx, tx, user.ID, companyID)
	switch {
	case errors.Is(err, ErrNotMember):
		uc = &model.UserCompany{
			UserID:    user.ID,
			CompanyID: companyID,
			Role:      role,
			Nickname:  strings.TrimSpace(user.FirstName + " " + user.LastName),
		}
		if err := tx.WithContext(ctx).Create(uc).Error; err != nil {
			return nil, fmt.Errorf("create membership: %w", err)
		}
		return uc, nil
	case err != nil:
		return nil, err
	case uc.RemovedAt == nil:
		return nil, apperr.UserAlreadyLinked()
	}
	if err := tx.WithContext(ctx).Model(uc).Updates(map[string]any{
		"role":       role,
		"removed_at": nil,
		"blocked_at": nil,
	}).Error; err != nil {
		return nil, fmt.Errorf("restore membership: %w", err)
	}
	uc.Role, uc.RemovedAt, uc.BlockedAt = role, nil, nil
	return uc, nil
}

// MemberEmails returns those of emails that already belong to a live member
// of companyID.
func MemberEmails(ctx context.Context, tx *gorm.DB, companyID string, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	var out []string
	err := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("email IN ?", emails).
		Where("EXISTS (SELECT 1 FROM user_companies uc WHERE uc.user_id = users.id AND uc.company_id = ? AND uc.removed_at IS NULL)", companyID).
		Order("email").
		Pluck("email", &out).Error
	if err != nil {
		return nil, fmt.Errorf("find member emails: %w", err)
	}
	return out, nil
}

// UserBrief is the public projection of a user embedded in other resources.
type UserBrief struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Avatar    *string `json:"avatar"`
}

// Brief projects u.
func Brief(u *model.User) UserBrief {
	return UserBrief{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Avatar: u.Avatar}
}

// LoadUsers fetches users by ID, keyed by ID.
func LoadUsers(ctx context.Context, tx *gorm.DB, ids []string) (map[string]model.User, error) {
	ids = Unique(ids)
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []model.User
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// Unique returns ids without blanks or duplicates, in first-seen order.
func Unique(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Status is the membership state used by list filters.
type Status string

// Membership states.
const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
	StatusDeleted Status = "DELETED"
)

// Filter narrows a membership listing.
type Filter struct {
	Roles    []model.Role
	Statuses []Status
	Search   string
	db.Page
}

// Scope applies f to a query over user_companies in companyID. Statuses are
// OR'ed together; every other criterion is AND'ed.
func (f Filter) Scope(companyID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("user_companies.company_id = ?", companyID)
		if len(f.Roles) > 0 {
			q = q.Where("user_companies.role IN ?", f.Roles)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			p := db.Like(s)
			q = q.Where(`EXISTS (SELECT 1 FROM users su WHERE su.id = user_companies.user_id
				AND (LOWER(su.first_name) LIKE ? OR LOWER(su.last_name) LIKE ? OR LOWER(su.email) LIKE ?))`, p, p, p)
		}
		var clauses []string
		if slices.Contains(f.Statuses, StatusActive) {
			clauses = append(clauses, "(user_companies.blocked_at IS NULL AND user_companies.removed_at IS NULL)")
		}
		if slices.Contains(f.Statuses, StatusBlocked) {
			clauses = append(clauses, "user_companies.blocked_at IS NOT NULL")
		}
		if slices.Contains(f.Statuses, StatusDeleted) {
			clauses = append(clauses, "user_companies.removed_at IS NOT NULL")
		}
		if len(clauses) > 0 {
			q = q.Where("(" + strings.Join(clauses, " OR ") + ")")
		}
		return q
	}
}

func nowUTC() time.Time { return time.Now().UTC() }
