package invite

import (
	"context"
	"fmt"
	"strings"

	"github.com/d9705996/huddle/internal/account"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"gorm.io/gorm"
)

// Acceptance is the registration data sent with an invite. InviteID is used
// by email invites, Token by link invites.
type Acceptance struct {
	InviteID  string
	Token     string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AcceptEmail accepts an email invite. A missing user is created with a
// confirmed email and a personal company; an existing one must supply its
// password.
func (s *Service) AcceptEmail(ctx context.Context, a Acceptance) (auth.Tokens, error) {
	inv, err := s.byID(ctx, a.InviteID)
	if err != nil {
		return auth.Tokens{}, err
	}
	if err := s.checkOpen(inv); err != nil {
		return auth.Tokens{}, err
	}
	if inv.Email == nil || *inv.Email != account.NormalizeEmail(a.Email) {
		return auth.Tokens{}, apperr.InviteEmailMismatch()
	}
	return s.accept(ctx, inv, a, true)
}

// AcceptLink accepts a link invite. Link invites stay usable by other
// people until they expire.
func (s *Service) AcceptLink(ctx context.Context, a Acceptance) (auth.Tokens, error) {
	inv, err := s.byToken(ctx, a.Token)
	if err != nil {
		return auth.Tokens{}, err
	}
	if inv.ValidUntil.Before(s.now()) {
		return auth.Tokens{}, apperr.InviteExpired()
	}
	return s.accept(ctx, inv, a, false)
}

// AcceptExisting links the requester into the inviting company. Email
// invites must be addressed to the requester.
func (s *Service) AcceptExisting(ctx context.Context, by policy.Subject, inviteID, token string) (auth.Tokens, error) {
	var inv *model.Invite
	var err error
	if token != "" {
		inv, err = s.byToken(ctx, token)
	} else {
		inv, err = s.byID(ctx, inviteID)
	}
	if err != nil {
		return auth.Tokens{}, err
	}
	if inv.Email != nil {
		if err := s.checkOpen(inv); err != nil {
			return auth.Tokens{}, err
		}
	} else if inv.ValidUntil.Before(s.now()) {
		return auth.Tokens{}, apperr.InviteExpired()
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", by.UserID).Error; err != nil {
		if db.IsNotFound(err) {
			return auth.Tokens{}, apperr.UsersNotFound(by.UserID)
		}
		return auth.Tokens{}, fmt.Errorf("load user: %w", err)
	}
	if inv.Email != nil && *inv.Email != user.Email {
		return auth.Tokens{}, apperr.InviteEmailMismatch()
	}
	var uc *model.UserCompany
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		uc, err = s.link(ctx, tx, inv, &user)
		return err
	})
	if err != nil {
		return auth.Tokens{}, err
	}
	return s.tokens.Issue(ctx, &user, uc)
}

// checkOpen rejects email invites that can no longer be accepted.
func (s *Service) checkOpen(inv *model.Invite) error {
	switch inv.Status(s.now()) {
	case model.InviteExpired, model.InviteRejected:
		return apperr.InviteExpired()
	case model.InviteAccepted:
		return apperr.InviteAlreadyAccepted()
	}
	return nil
}

func (s *Service) accept(ctx context.Context, inv *model.Invite, a Acceptance, confirmed bool) (auth.Tokens, error) {
	email := account.NormalizeEmail(a.Email)
	var existing *model.User
	var u model.User
	err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error
	switch {
	case err == nil:
		existing = &u
		if !auth.CheckPassword(u.PasswordHash, a.Password) {
			return auth.Tokens{}, apperr.InvalidCredentials()
		}
	case db.IsNotFound(err):
	default:
		return auth.Tokens{}, fmt.Errorf("load user: %w", err)
	}

	var hash string
	reg := account.Registration{
		Email:     email,
		Password:  a.Password,
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
	}
	if existing == nil {
		if err := reg.Validate(); err != nil {
			return auth.Tokens{}, err
		}
		if hash, err = auth.HashPassword(a.Password); err != nil {
			return auth.Tokens{}, err
		}
	}

	var uc *model.UserCompany
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := existing
		if user == nil {
			var err error
			user, err = account.CreateUserWithSpace(ctx, tx, account.NewUser{
				Email:          email,
				PasswordHash:   hash,
				FirstName:      reg.FirstName,
				LastName:       reg.LastName,
				EmailConfirmed: confirmed,
			})
			if err != nil {
				return err
			}
			existing = user
		}
		var err error
		uc, err = s.link(ctx, tx, inv, user)
		return err
	})
	if err != nil {
		return auth.Tokens{}, err
	}
	s.log.InfoContext(ctx, "invite accepted", "invite_id", inv.ID, "user_id", existing.ID, "company_id", inv.CompanyID)
	return s.tokens.Issue(ctx, existing, uc)
}

// link adds the membership and stamps the invite as accepted.
func (s *Service) link(ctx context.Context, tx *gorm.DB, inv *model.Invite, user *model.User) (*model.UserCompany, error) {
	uc, err := member.Link(ctx, tx, user, inv.CompanyID, inv.Role)
	if err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&model.Invite{}).
		Where("id = ?", inv.ID).
		Update("accepted_at", s.now()).Error; err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}
	return uc, nil
}

func (s *Service) byID(ctx context.Context, id string) (*model.Invite, error) {
	if id == "" {
		return nil, apperr.InviteNotFound()
	}
	var inv model.Invite
	err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, apperr.InviteNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load invite: %w", err)
	}
	return &inv, nil
}

// byToken finds a link invite that was not rejected.
func (s *Service) byToken(ctx context.Context, token string) (*model.Invite, error) {
	if token == "" {
		return nil, apperr.InviteNotFound()
	}
	var inv model.Invite
	err := s.db.WithContext(ctx).First(&inv, "token = ? AND rejected_at IS NULL", token).Error
	if db.IsNotFound(err) {
		return nil, apperr.InviteNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load invite: %w", err)
	}
	return &inv, nil
}
