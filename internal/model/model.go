// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
// Relations are plain foreign-key columns; services load related rows
// explicitly instead of relying on GORM associations.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a membership role inside a company.
type Role string

// Membership roles, from most to least privileged.
const (
	RoleOwner          Role = "OWNER"
	RoleCompanyManager Role = "COMPANY_MANAGER"
	RoleUser           Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleCompanyManager, RoleUser:
		return true
	}
	return false
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

// Company represents a tenant (workspace).
type Company struct {
	ID        string  `gorm:"type:text;primaryKey"`
	Name      string  `gorm:"type:text;not null"`
	Avatar    *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (c *Company) BeforeCreate(_ *gorm.DB) error {
	newID(&c.ID)
	return nil
}

// User is an identity. Users are never hard-deleted; BlockedAt and
// DeletedAt are lifecycle flags.
type User struct {
	ID             string  `gorm:"type:text;primaryKey"`
	Email          string  `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash   string  `gorm:"type:text;not null;default:''"`
	FirstName      string  `gorm:"type:text;not null;default:''"`
	LastName       string  `gorm:"type:text;not null;default:''"`
	Avatar         *string `gorm:"type:text"`
	EmailConfirmed bool    `gorm:"not null;default:false"`
	MainCompanyID  *string `gorm:"type:text"`
	BlockedAt      *time.Time
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	newID(&u.ID)
	return nil
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserCompany is the membership of a user in a company. It is the anchor of
// nearly every permission check.
type UserCompany struct {
	ID        string `gorm:"type:text;primaryKey"`
	UserID    string `gorm:"type:text;not null;uniqueIndex:idx_user_company"`
	CompanyID string `gorm:"type:text;not null;uniqueIndex:idx_user_company;index"`
	Role      Role   `gorm:"type:text;not null"`
	Nickname  string `gorm:"type:text;not null;default:''"`
	BlockedAt *time.Time
	RemovedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (uc *UserCompany) BeforeCreate(_ *gorm.DB) error {
	newID(&uc.ID)
	return nil
}

// Invite grants a role in a company to an email address or to whoever holds
// the link token. Expired is derived from ValidUntil, never stored.
type Invite struct {
	ID          string  `gorm:"type:text;primaryKey"`
	CompanyID   string  `gorm:"type:text;not null;index"`
	CreatedByID string  `gorm:"type:text;not null"`
	Email       *string `gorm:"type:text;index"`
	Token       *string `gorm:"type:text;uniqueIndex"`
	Role        Role    `gorm:"type:text;not null"`
	ValidUntil  time.Time
	AcceptedAt  *time.Time
	RejectedAt  *time.Time
	JobID       string `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (i *Invite) BeforeCreate(_ *gorm.DB) error {
	newID(&i.ID)
	return nil
}

// InviteStatus is the derived state of an invite.
type InviteStatus string

// Invite states. EXPIRED is computed from ValidUntil.
const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteRejected InviteStatus = "REJECTED"
	InviteExpired  InviteStatus = "EXPIRED"
)

// Status derives the invite state at the given instant.
func (i *Invite) Status(now time.Time) InviteStatus {
	switch {
	case i.AcceptedAt != nil:
		return InviteAccepted
	case i.RejectedAt != nil:
		return InviteRejected
	case i.ValidUntil.Before(now):
		return InviteExpired
	default:
		return InvitePending
	}
}

// Label is a company-scoped tag attached to meeting notes.
type Label struct {
	ID        string `gorm:"type:text;primaryKey"`
	CompanyID string `gorm:"type:text;not null;index"`
	Name      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (l *Label) BeforeCreate(_ *gorm.DB) error {
	newID(&l.ID)
	return nil
}

// UserGroup is a company-scoped group of memberships.
type UserGroup struct {
	ID          string  `gorm:"type:text;primaryKey"`
	CompanyID   string  `gorm:"type:text;not null;index"`
	CreatedByID *string `gorm:"type:text"`
	Name        string  `gorm:"type:text;not null"`
	Description *string `gorm:"type:text"`
	Color       *string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeforeCreate generates a UUID primary key if not set.
func (g *UserGroup) BeforeCreate(_ *gorm.DB) error {
	newID(&g.ID)
	return nil
}

// UserGroupMember links a membership into a group.
type UserGroupMember struct {
	UserGroupID   string `gorm:"type:text;primaryKey"`
	UserCompanyID string `gorm:"type:text;primaryKey"`
	CreatedAt     time.Time
}
