// Package policy evaluates ownership and role rules for company resources.
// It has no persistence dependencies; callers resolve roles and authors.
package policy

import "github.com/d9705996/huddle/internal/model"

// Subject is the requester, bound to the company of its access token.
type Subject struct {
	UserID    string
	CompanyID string
	Role      model.Role
}

// Resource describes the author of the resource being acted on.
type Resource struct {
	AuthorID   string
	AuthorRole model.Role
}

// Reason names the rule that produced a Decision.
type Reason string

// Decision reasons.
const (
	ReasonOwner            Reason = "owner"
	ReasonManager          Reason = "manager_over_non_owner"
	ReasonAuthor           Reason = "author"
	ReasonParticipant      Reason = "participant"
	ReasonShared           Reason = "shared"
	ReasonManagerVsOwner   Reason = "manager_cannot_modify_owner_resource"
	ReasonNotAuthor        Reason = "not_author"
	ReasonNoRelationship   Reason = "no_relationship"
	ReasonInsufficientRole Reason = "insufficient_role"
)

// Decision is the result of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Reason: r} }

// CanModify allows an OWNER, a COMPANY_MANAGER acting on a resource whose
// author is not an OWNER, or the author.
func CanModify(s Subject, r Resource) Decision {
	switch {
	case s.Role == model.RoleOwner:
		return allow(ReasonOwner)
	case s.UserID == r.AuthorID:
		return allow(ReasonAuthor)
	case s.Role == model.RoleCompanyManager && r.AuthorRole != model.RoleOwner:
		return allow(ReasonManager)
	case s.Role == model.RoleCompanyManager:
		return deny(ReasonManagerVsOwner)
	default:
		return deny(ReasonInsufficientRole)
	}
}

// CanDelete allows the author only.
func CanDelete(s Subject, r Resource) Decision {
	if s.UserID == r.AuthorID {
		return allow(ReasonAuthor)
	}
	return deny(ReasonNotAuthor)
}

// Relationship is what the requester is to a note.
type Relationship struct {
	Author      bool
	Participant bool
	Shared      bool
}

// CanRead allows the author or a participant. Shares count only when
// viaShare is set, which is the shared read path.
func CanRead(rel Relationship, viaShare bool) Decision {
	switch {
	case viaShare && rel.Shared:
		return allow(ReasonShared)
	case viaShare:
		return deny(ReasonNoRelationship)
	case rel.Author:
		return allow(ReasonAuthor)
	case rel.Participant:
		return allow(ReasonParticipant)
	default:
		return deny(ReasonNoRelationship)
	}
}

// HasRole reports whether role is one of allowed.
func HasRole(role model.Role, allowed ...model.Role) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
