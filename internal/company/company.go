// Package company manages workspaces: creation, renaming, avatars and the
// member directory.
package company

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/storage"
	"gorm.io/gorm"
)

// Service implements company operations.
type Service struct {
	db      *gorm.DB
	avatars *storage.Avatars
	log     *slog.Logger
}

// NewService creates a Service.
func NewService(gdb *gorm.DB, store storage.Store, log *slog.Logger) *Service {
	return &Service{
		db:      gdb,
		avatars: storage.NewAvatars(store, storage.FolderCompanyAvatars, log),
		log:     log,
	}
}

// Company is a company with its members.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Users     []User    `json:"users,omitempty"`
}

// User is one entry of the company directory.
type User struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Avatar    *string    `json:"avatar"`
	Role      model.Role `json:"role"`
	Nickname  string     `json:"nickname"`
	CreatedAt time.Time  `json:"createdAt"`
	BlockedAt *time.Time `json:"blockedAt"`
	RemovedAt *time.Time `json:"removedAt"`
}

// Users is a page of the directory.
type Users struct {
	Users []User `json:"users"`
	Total int64  `json:"total"`
}

func view(c *model.Company) *Company {
	return &Company{ID: c.ID, Name: c.Name, Avatar: c.Avatar, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// nameTaken reports whether userID already belongs to a company called
// name, ignoring case and surrounding space. except is skipped.
func nameTaken(ctx context.Context, tx *gorm.DB, userID, name, except string) (bool, error) {
	var n int64
	q := tx.WithContext(ctx).Model(&model.Company{}).
		Where("LOWER(TRIM(name)) = ?", strings.ToLower(strings.TrimSpace(name))).
		Where("EXISTS (SELECT 1 FROM user_companies uc WHERE uc.company_id = companies.id AND uc.user_id = ?)", userID)
	if except != "" {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check company name: %w", err)
	}
	return n > 0, nil
}

func validName(name string) error {
	if n := len([]rune(strings.TrimSpace(name))); n < 1 || n > 100 {
		return apperr.Validation("name must be between 1 and 100 characters")
	}
	return nil
}

// Create adds a company owned by the requester.
func (s *Service) Create(ctx context.Context, by policy.Subject, name string) (*Company, error) {
	name = strings.TrimSpace(name)
	if err := validName(name); err != nil {
		return nil, err
	}
	var out *Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(ctx, tx, by.UserID, name, "")
		if err != nil {
			return err
		}
		if taken {
			return apperr.CompanyNameUsed()
		}
		var user model.User
		if err := tx.WithContext(ctx).First(&user, "id = ?", by.UserID).Error; err != nil {
			if db.IsNotFound(err) {
				return apperr.UsersNotFound()
			}
			return fmt.Errorf("load user: %w", err)
		}
		c := &model.Company{Name: name}
		if err := tx.WithContext(ctx).Create(c).Error; err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		uc, err := member.Link(ctx, tx, &user, c.ID, model.RoleOwner)
		if err != nil {
			return err
		}
		out = view(c)
		out.Users = []User{directoryEntry(&user, uc)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "company created", "company_id", out.ID, "owner_id", by.UserID)
	return out, nil
}

// Rename changes the name of a company the requester belongs to.
func (s *Service) Rename(ctx context.Context, by policy.Subject, companyID, name string) (*Company, error) {
	name = strings.TrimSpace(name)
	if err := validName(name); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if _, err := member.Find(ctx, s.db, by.UserID, companyID); errors.Is(err, member.ErrNotMember) {
		return nil, apperr.CannotUpdateOtherCompany()
	} else if err != nil {
		return nil, err
	}
	taken, err := nameTaken(ctx, s.db, by.UserID, name, companyID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.CompanyNameUsed()
	}
	if err := s.db.WithContext(ctx).Model(c).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("rename company: %w", err)
	}
	c.Name = name
	return view(c), nil
}

// AvatarUploadURL presigns an avatar upload for the token's company.
func (s *Service) AvatarUploadURL(ctx context.Context, by policy.Subject, companyID, fileName string) (storage.UploadURL, error) {
	if by.CompanyID != companyID {
		return storage.UploadURL{}, apperr.CannotUpdateOtherCompany()
	}
	if strings.TrimSpace(fileName) == "" {
		return storage.UploadURL{}, apperr.Validation("fileName is required")
	}
	return s.avatars.UploadURL(ctx, companyID, fileName)
}

// ConfirmAvatar makes an uploaded object the company avatar.
func (s *Service) ConfirmAvatar(ctx context.Context, by policy.Subject, companyID, uniqueFileName string) (string, error) {
	if by.CompanyID != companyID {
		return "", apperr.CannotUpdateOtherCompany()
	}
	c, err := s.load(ctx, companyID)
	if err != nil {
		return "", err
	}
	url, err := s.avatars.Confirm(ctx, companyID, uniqueFileName, c.Avatar)
	if errors.Is(err, storage.ErrObjectMissing) {
		return "", apperr.FileStorageNotFound()
	}
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(c).Update("avatar", url).Error; err != nil {
		return "", fmt.Errorf("update company avatar: %w", err)
	}
	return url, nil
}

// ListUsers returns the directory of the requester's company ordered by
// first name.
func (s *Service) ListUsers(ctx context.Context, by policy.Subject, f member.Filter) (*Users, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&model.UserCompany{}).Scopes(f.Scope(by.CompanyID))
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count company users: %w", err)
	}
	var rows []struct {
		model.UserCompany
		FirstName string
		LastName  string
		Email     string
		Avatar    *string
	}
	if err := base().
		Select("user_companies.*, users.first_name, users.last_name, users.email, users.avatar").
		Joins("JOIN users ON users.id = user_companies.user_id").
		Scopes(f.Page.Scope(db.MaxTake)).
		Order("users.first_name").
		Order("users.last_name").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list company users: %w", err)
	}
	out := &Users{Users: make([]User, 0, len(rows)), Total: total}
	for _, r := range rows {
		u := model.User{ID: r.UserID, FirstName: r.FirstName, LastName: r.LastName, Email: r.Email, Avatar: r.Avatar}
		out.Users = append(out.Users, directoryEntry(&u, &r.UserCompany))
	}
	return out, nil
}

func directoryEntry(u *model.User, uc *model.UserCompany) User {
	return User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Role:      uc.Role,
		Nickname:  uc.Nickname,
		CreatedAt: uc.CreatedAt,
		BlockedAt: uc.BlockedAt,
		RemovedAt: uc.RemovedAt,
	}
}

func (s *Service) load(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, apperr.CompanyNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	return &c, nil
}
