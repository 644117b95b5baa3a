// Package account implements registration, login, token rotation, one-time
// passcodes, passwords and the current user's profile.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/mail"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/storage"
	"gorm.io/gorm"
)

// Config restricts who may register or log in.
type Config struct {
	// Production enables the allowlist.
	Production bool
	// AllowedEmails holds lower-cased addresses; entries starting with "@"
	// allow a whole domain.
	AllowedEmails []string
}

// Service is the credential service.
type Service struct {
	db      *gorm.DB
	issuer  *auth.Issuer
	allow   *auth.Allowlist
	otp     *auth.OTPStore
	mail    mail.Sender
	avatars *storage.Avatars
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. kv backs the refresh allowlist and the OTP
// codes.
func NewService(gdb *gorm.DB, issuer *auth.Issuer, kv auth.KV, sender mail.Sender, store storage.Store, cfg Config, log *slog.Logger) *Service {
	return &Service{
		db:      gdb,
		issuer:  issuer,
		allow:   auth.NewAllowlist(kv),
		otp:     auth.NewOTPStore(kv),
		mail:    sender,
		avatars: storage.NewAvatars(store, storage.FolderUserAvatars, log),
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) emailAllowed(email string) bool {
	if !s.cfg.Production {
		return true
	}
	_, domain, _ := strings.Cut(email, "@")
	return slices.Contains(s.cfg.AllowedEmails, email) ||
		(domain != "" && slices.Contains(s.cfg.AllowedEmails, "@"+domain))
}

// NewUser describes a user to create together with a personal company.
type NewUser struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	EmailConfirmed bool
}

// CreateUserWithSpace creates "<FirstName>'s Space", the user with it as main
// company, and the OWNER membership. Run it inside a transaction.
func CreateUserWithSpace(ctx context.Context, tx *gorm.DB, nu NewUser) (*model.User, error) {
	company := &model.Company{Name: nu.FirstName + "'s Space"}
	if err := tx.WithContext(ctx).Create(company).Error; err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}
	user := &model.User{
		Email:          nu.Email,
		PasswordHash:   nu.PasswordHash,
		FirstName:      nu.FirstName,
		LastName:       nu.LastName,
		EmailConfirmed: nu.EmailConfirmed,
		MainCompanyID:  &company.ID,
	}
	if err := tx.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := member.Link(ctx, tx, user, company.ID, model.RoleOwner); err != nil {
		return nil, err
	}
	return user, nil
}

// Registration is the input of Register.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Validate checks field formats.
func (r Registration) Validate() error {
	if !strings.Contains(r.Email, "@") {
		return apperr.Validation("email must be a valid address")
	}
	if err := auth.ValidatePassword(r.Password); err != nil {
		return apperr.Validation(err.Error())
	}
	for field, v := range map[string]string{"firstName": r.FirstName, "lastName": r.LastName} {
		if n := len([]rune(strings.TrimSpace(v))); n < 2 || n > 50 {
			return apperr.Validation(field + " must be between 2 and 50 characters")
		}
	}
	return nil
}

// Register creates the user, its personal company and OWNER membership. The
// email stays unconfirmed until VerifyEmail.
func (s *Service) Register(ctx context.Context, r Registration) (*Profile, error) {
	r.Email = NormalizeEmail(r.Email)
	r.FirstName, r.LastName = strings.TrimSpace(r.FirstName), strings.TrimSpace(r.LastName)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !s.emailAllowed(r.Email) {
		return nil, apperr.RegistrationEmailNotAllowed()
	}
	if _, err := s.userByEmail(ctx, r.Email); err == nil {
		return nil, apperr.UserWithEmailExists(r.Email)
	} else if !db.IsNotFound(err) {
		return nil, err
	}
	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = CreateUserWithSpace(ctx, tx, NewUser{
			Email:        r.Email,
			PasswordHash: hash,
			FirstName:    r.FirstName,
			LastName:     r.LastName,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.profile(ctx, user.ID, *user.MainCompanyID)
}

// Login checks credentials and issues tokens bound to the user's default
// company.
func (s *Service) Login(ctx context.Context, email, password string) (auth.Tokens, error) {
	email = NormalizeEmail(email)
	if !s.emailAllowed(email) {
		return auth.Tokens{}, apperr.RegistrationEmailNotAllowed()
	}
	user, err := s.userByEmail(ctx, email)
	if db.IsNotFound(err) {
		auth.CheckDummy(password)
		return auth.Tokens{}, apperr.InvalidCredentials()
	}
	if err != nil {
		return auth.Tokens{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return auth.Tokens{}, apperr.InvalidCredentials()
	}
	uc, err := s.defaultMembership(ctx, user)
	if err != nil {
		return auth.Tokens{}, err
	}
	return s.Issue(ctx, user, uc)
}

// Issue signs a token pair for the membership and records the refresh token.
func (s *Service) Issue(ctx context.Context, user *model.User, uc *model.UserCompany) (auth.Tokens, error) {
	tokens, err := s.issuer.Issue(user.ID, user.Email, uc.CompanyID, uc.Role)
	if err != nil {
		return auth.Tokens{}, err
	}
	claims, err := s.issuer.ParseRefresh(tokens.Refresh)
	if err != nil {
		return auth.Tokens{}, fmt.Errorf("parse issued refresh token: %w", err)
	}
	if err := s.allow.Save(ctx, tokens.Refresh, user.ID, claims.ExpiresAt.Time); err != nil {
		return auth.Tokens{}, err
	}
	return tokens, nil
}

// IssueForCompany issues tokens for userID bound to companyID.
func (s *Service) IssueForCompany(ctx context.Context, userID, companyID string) (auth.Tokens, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return auth.Tokens{}, err
	}
	uc, err := member.Find(ctx, s.db, userID, companyID)
	if err != nil {
		return auth.Tokens{}, err
	}
	return s.Issue(ctx, user, uc)
}

// defaultMembership prefers the main company and falls back to the oldest
// live membership.
func (s *Service) defaultMembership(ctx context.Context, user *model.User) (*model.UserCompany, error) {
	if user.MainCompanyID != nil {
		uc, err := member.Find(ctx, s.db, user.ID, *user.MainCompanyID)
		if err == nil && member.Active(uc) {
			return uc, nil
		}
		if err != nil && !errors.Is(err, member.ErrNotMember) {
			return nil, err
		}
	}
	var uc model.UserCompany
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND blocked_at IS NULL AND removed_at IS NULL", user.ID).
		Order("created_at").
		First(&uc).Error
	if db.IsNotFound(err) {
		return nil, apperr.CompanyNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("find default membership: %w", err)
	}
	return &uc, nil
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	ok, err := s.allow.Revoke(ctx, refresh)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidCredentials()
	}
	return nil
}

// Refresh rotates a refresh token. The new pair stays bound to the token's
// company while that membership is live.
func (s *Service) Refresh(ctx context.Context, refresh string) (auth.Tokens, error) {
	claims, err := s.issuer.ParseRefresh(refresh)
	if err != nil {
		return auth.Tokens{}, apperr.InvalidRefreshToken()
	}
	// Revoke is a single DEL: of concurrent callers with one token, only one
	// sees it succeed.
	ok, err := s.allow.Revoke(ctx, refresh)
	if err != nil {
		return auth.Tokens{}, err
	}
	if !ok {
		return auth.Tokens{}, apperr.InvalidRefreshToken()
	}
	user, err := s.userByID(ctx, claims.UserID)
	if err != nil {
		return auth.Tokens{}, apperr.InvalidRefreshToken()
	}
	uc, err := member.Find(ctx, s.db, user.ID, claims.CompanyID)
	if err != nil || !member.Active(uc) {
		if uc, err = s.defaultMembership(ctx, user); err != nil {
			return auth.Tokens{}, err
		}
	}
	return s.Issue(ctx, user, uc)
}

// SendOTP mails a fresh passcode to a registered address.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.userByEmail(ctx, email); db.IsNotFound(err) {
		return apperr.UsersNotFound()
	} else if err != nil {
		return err
	}
	code, err := s.otp.Issue(ctx, email)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: "Your OTP",
		Text:    "Your OTP is " + code,
	})
}

// VerifyOTP checks a passcode without consuming it.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	ok, err := s.otp.Verify(ctx, NormalizeEmail(email), code)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.InvalidOTP()
	}
	return nil
}

// VerifyEmail confirms the address and consumes the passcode.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	if err := s.VerifyOTP(ctx, email, code); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ?", email).
		Update("email_confirmed", true).Error; err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	return s.otp.Consume(ctx, email)
}

// ResetPassword replaces the password of the address holding a valid
// passcode and notifies the owner.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email = NormalizeEmail(email)
	if err := auth.ValidatePassword(password); err != nil {
		return apperr.Validation(err.Error())
	}
	if err := s.VerifyOTP(ctx, email, code); err != nil {
		return err
	}
	user, err := s.userByEmail(ctx, email)
	if db.IsNotFound(err) {
		return apperr.UsersNotFound()
	}
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, user.ID, password); err != nil {
		return err
	}
	if err := s.otp.Consume(ctx, email); err != nil {
		return err
	}
	return s.mail.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: "Auth Notification",
		Text:    "Password has been changed successfully. If you didn't perform this action, please contact support.",
	})
}

// SetPassword sets the password of the authenticated user.
func (s *Service) SetPassword(ctx context.Context, by policy.Subject, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return apperr.Validation(err.Error())
	}
	if _, err := s.userByID(ctx, by.UserID); err != nil {
		return err
	}
	return s.setPassword(ctx, by.UserID, password)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, by policy.Subject, oldPassword, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return apperr.Validation(err.Error())
	}
	user, err := s.userByID(ctx, by.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, oldPassword) {
		return apperr.OldPasswordIncorrect()
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

func (s *Service) setPassword(ctx context.Context, userID, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ChangeCompany re-issues tokens scoped to another company of the user.
func (s *Service) ChangeCompany(ctx context.Context, by policy.Subject, companyID string) (auth.Tokens, error) {
	user, err := s.userByID(ctx, by.UserID)
	if err != nil {
		return auth.Tokens{}, err
	}
	uc, err := member.Find(ctx, s.db, user.ID, companyID)
	if errors.Is(err, member.ErrNotMember) || (err == nil && !member.Active(uc)) {
		return auth.Tokens{}, apperr.CannotChangeCompany()
	}
	if err != nil {
		return auth.Tokens{}, err
	}
	return s.Issue(ctx, user, uc)
}

// CheckActive enforces the per-request account state: the user exists, is
// neither blocked nor deleted, has a confirmed email and a live membership
// in the token's company.
func (s *Service) CheckActive(ctx context.Context, userID, companyID string) error {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		if apperr.HasCode(err, "USER_NOT_FOUND") {
			return apperr.InvalidAccessToken()
		}
		return err
	}
	switch {
	case user.BlockedAt != nil:
		return apperr.UserBlocked()
	case user.DeletedAt != nil:
		return apperr.UserDeleted()
	case !user.EmailConfirmed:
		return apperr.EmailNotConfirmed()
	}
	uc, err := member.Find(ctx, s.db, userID, companyID)
	if errors.Is(err, member.ErrNotMember) {
		return apperr.AccessDenied()
	}
	if err != nil {
		return err
	}
	if uc.BlockedAt != nil {
		return apperr.UserBlocked()
	}
	if uc.RemovedAt != nil {
		return apperr.AccessDenied()
	}
	return nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("load user by email: %w", err)
	}
	return &u, nil
}

func (s *Service) userByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if db.IsNotFound(err) {
		return nil, apperr.UsersNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}
