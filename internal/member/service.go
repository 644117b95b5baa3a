package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"gorm.io/gorm"
)

// Service manages the members of the requester's company.
type Service struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: gdb, log: log, now: nowUTC}
}

// ManagedUser is the users-management projection of the member's user.
type ManagedUser struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Avatar         *string    `json:"avatar"`
	EmailConfirmed bool       `json:"emailConfirmed"`
	BlockedAt      *time.Time `json:"blockedAt"`
	DeletedAt      *time.Time `json:"deletedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// GroupRef is a user group a member belongs to.
type GroupRef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

// Member is one row of the users-management listing.
type Member struct {
	ID        string      `json:"id"`
	CompanyID string      `json:"companyId"`
	UserID    string      `json:"userId"`
	Role      model.Role  `json:"role"`
	Nickname  string      `json:"nickname"`
	BlockedAt *time.Time  `json:"blockedAt"`
	RemovedAt *time.Time  `json:"removedAt"`
	User      ManagedUser `json:"user"`
	Groups    []GroupRef  `json:"groups"`
}

// List is a page of members.
type List struct {
	UserCompanies []Member `json:"userCompanies"`
	Total         int64    `json:"total"`
}

// List returns members of the requester's company, blocked first and then
// newest first.
func (s *Service) List(ctx context.Context, by policy.Subject, f Filter) (*List, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.UserCompany{}).Scopes(f.Scope(by.CompanyID))
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	var ucs []model.UserCompany
	if err := base().
		Scopes(f.Page.Scope(10)).
		Order("user_companies.blocked_at IS NULL").
		Order("user_companies.blocked_at DESC").
		Order("user_companies.created_at DESC").
		Find(&ucs).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	userIDs := make([]string, 0, len(ucs))
	ucIDs := make([]string, 0, len(ucs))
	for _, uc := range ucs {
		userIDs = append(userIDs, uc.UserID)
		ucIDs = append(ucIDs, uc.ID)
	}
	users, err := LoadUsers(ctx, s.db, userIDs)
	if err != nil {
		return nil, err
	}
	groups, err := s.groupsOf(ctx, ucIDs)
	if err != nil {
		return nil, err
	}

	out := &List{UserCompanies: make([]Member, 0, len(ucs)), Total: total}
	for _, uc := range ucs {
		u := users[uc.UserID]
		g := groups[uc.ID]
		if g == nil {
			g = []GroupRef{}
		}
		out.UserCompanies = append(out.UserCompanies, Member{
			ID:        uc.ID,
			CompanyID: uc.CompanyID,
			UserID:    uc.UserID,
			Role:      uc.Role,
			Nickname:  uc.Nickname,
			BlockedAt: uc.BlockedAt,
			RemovedAt: uc.RemovedAt,
			User: ManagedUser{
				ID:             u.ID,
				Email:          u.Email,
				FirstName:      u.FirstName,
				LastName:       u.LastName,
				Avatar:         u.Avatar,
				EmailConfirmed: u.EmailConfirmed,
				BlockedAt:      u.BlockedAt,
				DeletedAt:      u.DeletedAt,
				CreatedAt:      u.CreatedAt,
				UpdatedAt:      u.UpdatedAt,
			},
			Groups: g,
		})
	}
	return out, nil
}

func (s *Service) groupsOf(ctx context.Context, ucIDs []string) (map[string][]GroupRef, error) {
	out := make(map[string][]GroupRef)
	if len(ucIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		UserCompanyID string
		GroupRef
	}
	err := s.db.WithContext(ctx).
		Table("user_group_members").
		Select("user_group_members.user_company_id, user_groups.id, user_groups.name, user_groups.description, user_groups.color").
		Joins("JOIN user_groups ON user_groups.id = user_group_members.user_group_id").
		Where("user_group_members.user_company_id IN ?", ucIDs).
		Order("user_groups.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load member groups: %w", err)
	}
	for _, r := range rows {
		out[r.UserCompanyID] = append(out[r.UserCompanyID], r.GroupRef)
	}
	return out, nil
}

// target returns the membership of userID in the requester's company.
func (s *Service) target(ctx context.Context, by policy.Subject, userID string) (*model.UserCompany, error) {
	var u model.User
	err := s.db.WithContext(ctx).Select("id").Where("id = ?", userID).First(&u).Error
	if db.IsNotFound(err) {
		return nil, apperr.UsersNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	uc, err := Find(ctx, s.db, u.ID, by.CompanyID)
	if errors.Is(err, ErrNotMember) {
		return nil, apperr.CannotUpdateUserOfOtherCompany()
	}
	return uc, err
}

func (s *Service) update(ctx context.Context, uc *model.UserCompany, values map[string]any) error {
	if err := s.db.WithContext(ctx).Model(uc).Updates(values).Error; err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	return nil
}

// ChangeRole sets the role of another member.
func (s *Service) ChangeRole(ctx context.Context, by policy.Subject, userID string, role model.Role) error {
	if !role.Valid() {
		return apperr.Validation("role must be one of OWNER, COMPANY_MANAGER, USER")
	}
	uc, err := s.target(ctx, by, userID)
	if err != nil {
		return err
	}
	if userID == by.UserID {
		return apperr.CannotChangeOwnRole()
	}
	if uc.Role == role {
		return apperr.UserAlreadyHasRole(string(role))
	}
	return s.update(ctx, uc, map[string]any{"role": role})
}

// Block stamps blockedAt on another member.
func (s *Service) Block(ctx context.Context, by policy.Subject, userID string) error {
	uc, err := s.target(ctx, by, userID)
	if err != nil {
		return err
	}
	if userID == by.UserID {
		return apperr.CannotBlockYourself()
	}
	if uc.BlockedAt != nil {
		return apperr.UserAlreadyBlocked()
	}
	return s.update(ctx, uc, map[string]any{"blocked_at": s.now()})
}

// Unblock clears blockedAt on another member.
func (s *Service) Unblock(ctx context.Context, by policy.Subject, userID string) error {
	uc, err := s.target(ctx, by, userID)
	if err != nil {
		return err
	}
	if userID == by.UserID {
		return apperr.CannotUnblockYourself()
	}
	if uc.BlockedAt == nil {
		return apperr.UserAlreadyUnblocked()
	}
	return s.update(ctx, uc, map[string]any{"blocked_at": nil})
}

// UpdateNickname renames another non-owner member within the company.
func (s *Service) UpdateNickname(ctx context.Context, by policy.Subject, userID, nickname string) error {
	uc, err := s.target(ctx, by, userID)
	if err != nil {
		return err
	}
	if userID == by.UserID {
		return apperr.CannotChangeOwnData()
	}
	if uc.Role == model.RoleOwner {
		return apperr.CannotChangeOwnerData()
	}
	return s.update(ctx, uc, map[string]any{"nickname": nickname})
}

// Remove stamps removedAt on a non-owner membership. Removed members lose
// access to the company but keep their authored content.
func (s *Service) Remove(ctx context.Context, by policy.Subject, userID string) error {
	uc, err := s.target(ctx, by, userID)
	if err != nil {
		return err
	}
	if uc.Role == model.RoleOwner {
		return apperr.CannotChangeOwnerData()
	}
	if err := s.update(ctx, uc, map[string]any{"removed_at": s.now()}); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "member removed", "company_id", by.CompanyID, "user_id", userID, "by", by.UserID)
	return nil
}
