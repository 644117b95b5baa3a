// Package usergroup manages company-scoped groups of members.
package usergroup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/relation"
	"gorm.io/gorm"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Service implements user group CRUD.
type Service struct {
	db *gorm.DB
}

// NewService creates a Service.
func NewService(gdb *gorm.DB) *Service {
	return &Service{db: gdb}
}

// Member is a membership shown inside a group.
type Member struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Nickname  string     `json:"nickname"`
	Role      model.Role `json:"role"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Avatar    *string    `json:"avatar"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Group is the API view of a group with its creator and members.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Color       *string  `json:"color"`
	CompanyID   string   `json:"companyId"`
	CreatedBy   *Member  `json:"createdBy"`
	Members     []Member `json:"members"`
}

// List is a page of groups.
type List struct {
	Groups []Group `json:"groups"`
	Total  int64   `json:"total"`
}

// Query filters List.
type Query struct {
	Search string
	db.Page
}

// Input carries group fields. On update nil fields are left unchanged and
// a non-nil MemberIDs replaces the member set.
type Input struct {
	Name        *string
	Description *string
	Color       *string
	MemberIDs   *[]string
}

func (in Input) validate(create bool) error {
	if in.Name != nil {
		if n := len([]rune(strings.TrimSpace(*in.Name))); n < 2 || n > 50 {
			return apperr.Validation("name must be between 2 and 50 characters")
		}
	} else if create {
		return apperr.Validation("name is required")
	}
	if in.Description != nil && len([]rune(*in.Description)) > 255 {
		return apperr.Validation("description must be at most 255 characters")
	}
	if in.Color != nil && !hexColor.MatchString(*in.Color) {
		return apperr.Validation("color must be a hex color")
	}
	return nil
}

// Create adds a group created by the requester's membership.
func (s *Service) Create(ctx context.Context, by policy.Subject, in Input) (*Group, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(*in.Name)
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := nameTaken(ctx, tx, by.CompanyID, name, ""); err != nil {
			return err
		}
		creator, err := member.Find(ctx, tx, by.UserID, by.CompanyID)
		if errors.Is(err, member.ErrNotMember) {
			return apperr.NotAllowed()
		}
		if err != nil {
			return err
		}
		var ids []string
		if in.MemberIDs != nil {
			ids = *in.MemberIDs
		}
		ucs, err := member.ResolveUsers(ctx, tx, by.CompanyID, ids)
		if err != nil {
			return err
		}
		g := &model.UserGroup{
			CompanyID:   by.CompanyID,
			CreatedByID: &creator.ID,
			Name:        name,
			Description: in.Description,
			Color:       in.Color,
		}
		if err := tx.Create(g).Error; err != nil {
			return fmt.Errorf("create user group: %w", err)
		}
		id = g.ID
		return addMembers(tx, g.ID, membershipIDs(ucs))
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// List returns the company's groups ordered by name.
func (s *Service) List(ctx context.Context, by policy.Subject, q Query) (*List, error) {
	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&model.UserGroup{}).Where("company_id = ?", by.CompanyID)
		if strings.TrimSpace(q.Search) != "" {
			tx = tx.Where("LOWER(name) LIKE ?", db.Like(q.Search))
		}
		return tx
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count user groups: %w", err)
	}
	var rows []model.UserGroup
	if err := base().Scopes(q.Page.Scope(10)).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	groups, err := s.populate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &List{Groups: groups, Total: total}, nil
}

// Get returns one group of the requester's company.
func (s *Service) Get(ctx context.Context, by policy.Subject, id string) (*Group, error) {
	if _, err := s.authorize(ctx, by, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Update edits a group. The member set is diffed against the desired one.
func (s *Service) Update(ctx context.Context, by policy.Subject, id string, in Input) (*Group, error) {
	if _, err := s.authorize(ctx, by, id); err != nil {
		return nil, err
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]any{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if err := nameTaken(ctx, tx, by.CompanyID, name, id); err != nil {
				return err
			}
			values["name"] = name
		}
		if in.Description != nil {
			values["description"] = *in.Description
		}
		if in.Color != nil {
			values["color"] = *in.Color
		}
		if len(values) > 0 {
			if err := tx.Model(&model.UserGroup{}).Where("id = ?", id).Updates(values).Error; err != nil {
				return fmt.Errorf("update user group: %w", err)
			}
		}
		if in.MemberIDs == nil {
			return nil
		}
		ucs, err := member.ResolveUsers(ctx, tx, by.CompanyID, *in.MemberIDs)
		if err != nil {
			return err
		}
		return setMembers(tx, id, membershipIDs(ucs))
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Delete removes a group and its member links.
func (s *Service) Delete(ctx context.Context, by policy.Subject, id string) error {
	if _, err := s.authorize(ctx, by, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_group_id = ?", id).Delete(&model.UserGroupMember{}).Error; err != nil {
			return fmt.Errorf("delete group members: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.UserGroup{}).Error; err != nil {
			return fmt.Errorf("delete user group: %w", err)
		}
		return nil
	})
}

func nameTaken(ctx context.Context, tx *gorm.DB, companyID, name, except string) error {
	q := tx.WithContext(ctx).Model(&model.UserGroup{}).
		Where("company_id = ? AND LOWER(name) = ?", companyID, strings.ToLower(name))
	if except != "" {
		q = q.Where("id <> ?", except)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("check user group name: %w", err)
	}
	if n > 0 {
		return apperr.UserGroupNameExists()
	}
	return nil
}

func membershipIDs(ucs []model.UserCompany) []string {
	ids := make([]string, 0, len(ucs))
	for _, uc := range ucs {
		ids = append(ids, uc.ID)
	}
	return ids
}

func addMembers(tx *gorm.DB, groupID string, ucIDs []string) error {
	if len(ucIDs) == 0 {
		return nil
	}
	rows := make([]model.UserGroupMember, 0, len(ucIDs))
	for _, id := range ucIDs {
		rows = append(rows, model.UserGroupMember{UserGroupID: groupID, UserCompanyID: id})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("add group members: %w", err)
	}
	return nil
}

// setMembers inserts missing links and deletes stale ones, leaving kept
// links (and their CreatedAt) untouched.
func setMembers(tx *gorm.DB, groupID string, want []string) error {
	var have []string
	if err := tx.Model(&model.UserGroupMember{}).
		Where("user_group_id = ?", groupID).
		Pluck("user_company_id", &have).Error; err != nil {
		return fmt.Errorf("load group members: %w", err)
	}
	add, drop := relation.Diff(have, want)
	if len(drop) > 0 {
		if err := tx.Where("user_group_id = ? AND user_company_id IN ?", groupID, drop).
			Delete(&model.UserGroupMember{}).Error; err != nil {
			return fmt.Errorf("remove group members: %w", err)
		}
	}
	return addMembers(tx, groupID, add)
}

func (s *Service) authorize(ctx context.Context, by policy.Subject, id string) (*model.UserGroup, error) {
	var g model.UserGroup
	err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, apperr.UserGroupNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load user group: %w", err)
	}
	if g.CompanyID != by.CompanyID {
		return nil, apperr.NotAllowed()
	}
	return &g, nil
}

func (s *Service) load(ctx context.Context, id string) (*Group, error) {
	var g model.UserGroup
	err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, apperr.UserGroupNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load user group: %w", err)
	}
	out, err := s.populate(ctx, []model.UserGroup{g})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

type memberRow struct {
	UserGroupID string
	model.UserCompany
	LinkedAt  time.Time
	Email     string
	FirstName string
	LastName  string
	Avatar    *string
}

func (r memberRow) view() Member {
	return Member{
		ID:        r.UserCompany.ID,
		UserID:    r.UserID,
		Nickname:  r.Nickname,
		Role:      r.Role,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Avatar:    r.Avatar,
	}
}

// populate attaches creators and members to groups, keeping their order.
func (s *Service) populate(ctx context.Context, groups []model.UserGroup) ([]Group, error) {
	out := make([]Group, 0, len(groups))
	if len(groups) == 0 {
		return out, nil
	}
	groupIDs := make([]string, 0, len(groups))
	creatorIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
		if g.CreatedByID != nil {
			creatorIDs = append(creatorIDs, *g.CreatedByID)
		}
	}

	var members []memberRow
	if err := s.db.WithContext(ctx).
		Table("user_group_members").
		Select("user_group_members.user_group_id, user_group_members.created_at AS linked_at, "+
			"user_companies.*, users.email, users.first_name, users.last_name, users.avatar").
		Joins("JOIN user_companies ON user_companies.id = user_group_members.user_company_id").
		Joins("JOIN users ON users.id = user_companies.user_id").
		Where("user_group_members.user_group_id IN ?", groupIDs).
		Order("user_group_members.created_at").
		Scan(&members).Error; err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	byGroup := make(map[string][]Member)
	for _, r := range members {
		m := r.view()
		linked := r.LinkedAt
		m.CreatedAt = &linked
		byGroup[r.UserGroupID] = append(byGroup[r.UserGroupID], m)
	}

	creators := make(map[string]Member)
	if len(creatorIDs) > 0 {
		var rows []memberRow
		if err := s.db.WithContext(ctx).
			Table("user_companies").
			Select("user_companies.*, users.email, users.first_name, users.last_name, users.avatar").
			Joins("JOIN users ON users.id = user_companies.user_id").
			Where("user_companies.id IN ?", member.Unique(creatorIDs)).
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("load group creators: %w", err)
		}
		for _, r := range rows {
			creators[r.UserCompany.ID] = r.view()
		}
	}

	for _, g := range groups {
		v := Group{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Color:       g.Color,
			CompanyID:   g.CompanyID,
			Members:     byGroup[g.ID],
		}
		if v.Members == nil {
			v.Members = []Member{}
		}
		if g.CreatedByID != nil {
			if c, ok := creators[*g.CreatedByID]; ok {
				v.CreatedBy = &c
			}
		}
		out = append(out, v)
	}
	return out, nil
}
