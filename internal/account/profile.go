package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/storage"
)

// CompanyRef is a company as seen by one of its members.
type CompanyRef struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Avatar *string    `json:"avatar"`
	Role   model.Role `json:"role"`
}

// Profile is the current user with their memberships.
type Profile struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Avatar         *string      `json:"avatar"`
	EmailConfirmed bool         `json:"emailConfirmed"`
	MainCompanyID  *string      `json:"mainCompanyId"`
	BlockedAt      *time.Time   `json:"blockedAt"`
	DeletedAt      *time.Time   `json:"deletedAt"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	CurrentCompany CompanyRef   `json:"currentCompany"`
	UserCompanies  []CompanyRef `json:"userCompanies"`
}

// Me returns the profile of the requester in the token's company.
func (s *Service) Me(ctx context.Context, by policy.Subject) (*Profile, error) {
	return s.profile(ctx, by.UserID, by.CompanyID)
}

// profile falls back to the main company when the membership in companyID
// is blocked or removed. Only live memberships are listed.
func (s *Service) profile(ctx context.Context, userID, companyID string) (*Profile, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		model.UserCompany
		CompanyName   string
		CompanyAvatar *string
	}
	if err := s.db.WithContext(ctx).
		Table("user_companies").
		Select("user_companies.*, companies.name AS company_name, companies.avatar AS company_avatar").
		Joins("JOIN companies ON companies.id = user_companies.company_id").
		Where("user_companies.user_id = ?", userID).
		Order("user_companies.created_at").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	p := &Profile{
		ID:             user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Avatar:         user.Avatar,
		EmailConfirmed: user.EmailConfirmed,
		MainCompanyID:  user.MainCompanyID,
		BlockedAt:      user.BlockedAt,
		DeletedAt:      user.DeletedAt,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
		UserCompanies:  []CompanyRef{},
	}
	var current, main *CompanyRef
	for _, r := range rows {
		ref := CompanyRef{ID: r.CompanyID, Name: r.CompanyName, Avatar: r.CompanyAvatar, Role: r.Role}
		live := r.BlockedAt == nil && r.RemovedAt == nil
		if live {
			p.UserCompanies = append(p.UserCompanies, ref)
		}
		if r.CompanyID == companyID && live {
			current = &ref
		}
		if user.MainCompanyID != nil && r.CompanyID == *user.MainCompanyID {
			main = &ref
		}
	}
	switch {
	case current != nil:
		p.CurrentCompany = *current
	case main != nil:
		p.CurrentCompany = *main
	default:
		return nil, apperr.CompanyNotFound()
	}
	return p, nil
}

// ProfileUpdate holds the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// UpdateProfile edits the requester's name and returns the new profile.
func (s *Service) UpdateProfile(ctx context.Context, by policy.Subject, u ProfileUpdate) (*Profile, error) {
	values := map[string]any{}
	if u.FirstName != nil {
		values["first_name"] = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		values["last_name"] = strings.TrimSpace(*u.LastName)
	}
	for k, v := range values {
		if n := len([]rune(v.(string))); n < 2 || n > 50 {
			return nil, apperr.Validation(k + " must be between 2 and 50 characters")
		}
	}
	if len(values) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("id = ?", by.UserID).
			Updates(values).Error; err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	return s.Me(ctx, by)
}

// AvatarUploadURL presigns an upload of a new avatar for the requester.
func (s *Service) AvatarUploadURL(ctx context.Context, by policy.Subject, fileName string) (storage.UploadURL, error) {
	if strings.TrimSpace(fileName) == "" {
		return storage.UploadURL{}, apperr.Validation("fileName is required")
	}
	return s.avatars.UploadURL(ctx, by.UserID, fileName)
}

// ConfirmAvatar makes an uploaded object the requester's avatar.
func (s *Service) ConfirmAvatar(ctx context.Context, by policy.Subject, uniqueFileName string) (string, error) {
	user, err := s.userByID(ctx, by.UserID)
	if err != nil {
		return "", err
	}
	url, err := s.avatars.Confirm(ctx, user.ID, uniqueFileName, user.Avatar)
	if errors.Is(err, storage.ErrObjectMissing) {
		return "", apperr.FileStorageNotFound()
	}
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", url).Error; err != nil {
		return "", fmt.Errorf("update avatar: %w", err)
	}
	return url, nil
}
