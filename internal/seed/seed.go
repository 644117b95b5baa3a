// Package seed creates a default owner with a personal company on first
// boot when the users table is empty.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/d9705996/huddle/internal/account"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/model"
	"gorm.io/gorm"
)

// OwnerOptions configures the seed owner.
type OwnerOptions struct {
	Email    string
	Password string // if empty, a random password is generated
}

// EnsureOwner creates a confirmed seed owner, its space and OWNER membership
// if no users exist and Email is set. A generated password is printed to
// stdout once. It is safe to call on every startup.
func EnsureOwner(ctx context.Context, db *gorm.DB, opts OwnerOptions, log *slog.Logger) error {
	if opts.Email == "" {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Info("seed owner skipped, users exist")
		return nil
	}

	password := opts.Password
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		fmt.Printf("[huddle] seed owner password: %s\n", password)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := account.CreateUserWithSpace(ctx, tx, account.NewUser{
			Email:          account.NormalizeEmail(opts.Email),
			PasswordHash:   hash,
			FirstName:      "Seed",
			LastName:       "Owner",
			EmailConfirmed: true,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("insert seed owner: %w", err)
	}

	log.Info("seed owner created", "email", opts.Email)
	return nil
}

// generatePassword returns a random password that passes
// auth.ValidatePassword.
func generatePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "Hd1!" + hex.EncodeToString(b), nil
}
