// Package auth provides JWT issuance and validation, the refresh-token
// allowlist, one-time passcodes and password hashing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/d9705996/huddle/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the set of custom claims stored inside Huddle tokens. Refresh
// tokens carry no email.
type Claims struct {
	UserID    string     `json:"uid"`
	CompanyID string     `json:"cid,omitempty"`
	Role      model.Role `json:"role,omitempty"`
	Email     string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Tokens is an access/refresh pair.
type Tokens struct {
	Access  string
	Refresh string
}

// Issuer signs and verifies access and refresh tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Issue signs a new pair bound to the given company membership.
func (i *Issuer) Issue(userID, email, companyID string, role model.Role) (Tokens, error) {
	now := i.now()
	access, err := sign(Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
			Issuer:    "huddle",
		},
	}, i.accessSecret)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}

	// A unique ID keeps refresh tokens issued in the same second distinct.
	refresh, err := sign(Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
			Issuer:    "huddle",
		},
	}, i.refreshSecret)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

// ParseAccess validates an access token.
func (i *Issuer) ParseAccess(tokenStr string) (*Claims, error) {
	return parse(tokenStr, i.accessSecret)
}

// ParseRefresh validates a refresh token.
func (i *Issuer) ParseRefresh(tokenStr string) (*Claims, error) {
	return parse(tokenStr, i.refreshSecret)
}

func sign(c Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// parse returns an error if the token is invalid, expired, or signed with a
// different key.
func parse(tokenStr string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
