// Package invite implements email and link invitations into a company.
//
// An invite is PENDING until it is accepted, rejected by its expiry job, or
// its validity window passes (EXPIRED is derived, never stored). Every
// invite gets an expiry job scheduled at ValidUntil.
package invite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/mail"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/worker"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Validity is how long a new or refreshed invite stays pending.
const Validity = 24 * time.Hour

const (
	subject          = "Invitation to join company"
	isoMillis        = "2006-01-02T15:04:05.000Z07:00"
	maxParallelMails = 8
)

// TokenIssuer signs a token pair for a membership.
type TokenIssuer interface {
	Issue(ctx context.Context, user *model.User, uc *model.UserCompany) (auth.Tokens, error)
}

// Service manages invites of the requester's company.
type Service struct {
	db        *gorm.DB
	mail      mail.Sender
	sched     worker.Scheduler
	tokens    TokenIssuer
	clientURL string
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. clientURL is the web client origin used in
// invitation links.
func NewService(gdb *gorm.DB, sender mail.Sender, sched worker.Scheduler, tokens TokenIssuer, clientURL string, log *slog.Logger) *Service {
	return &Service{
		db:        gdb,
		mail:      sender,
		sched:     sched,
		tokens:    tokens,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Invite is the API view of an invite.
type Invite struct {
	ID         string             `json:"id"`
	CompanyID  string             `json:"companyId"`
	Email      *string            `json:"email"`
	Role       model.Role         `json:"role"`
	Status     model.InviteStatus `json:"status"`
	Link       *string            `json:"link,omitempty"`
	ValidUntil time.Time          `json:"validUntil"`
	AcceptedAt *time.Time         `json:"acceptedAt"`
	RejectedAt *time.Time         `json:"rejectedAt"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Created reports how many email invites were sent.
type Created struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Unsent  int  `json:"unsent,omitempty"` // invitations whose mail failed
}

// List is a page of invites.
type List struct {
	Total   int64    `json:"total"`
	Invites []Invite `json:"invites"`
}

// Query filters List.
type Query struct {
	Roles    []model.Role
	Statuses []model.InviteStatus
	Search   string
	db.Page
}

func (s *Service) view(inv *model.Invite) Invite {
	v := Invite{
		ID:         inv.ID,
		CompanyID:  inv.CompanyID,
		Email:      inv.Email,
		Role:       inv.Role,
		Status:     inv.Status(s.now()),
		ValidUntil: inv.ValidUntil,
		AcceptedAt: inv.AcceptedAt,
		RejectedAt: inv.RejectedAt,
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
	}
	if inv.Token != nil {
		link := s.linkURL(*inv.Token, inv.ValidUntil)
		v.Link = &link
	}
	return v
}

func (s *Service) emailURL(inviteID string, validUntil time.Time, existing bool) string {
	link := s.clientURL + "/accept-email-invite?inviteId=" + url.QueryEscape(inviteID) +
		"&expiresAt=" + url.QueryEscape(validUntil.UTC().Format(isoMillis))
	if existing {
		link += "&exist=1"
	}
	return link
}

func (s *Service) linkURL(token string, validUntil time.Time) string {
	return s.clientURL + "/accept-link-invite?token=" + url.QueryEscape(token) +
		"&expiresAt=" + url.QueryEscape(validUntil.UTC().Format(isoMillis))
}

func invitationText(link string, existing bool) string {
	if existing {
		return "Accept invitation to join company. By clicking on the link you agree to this accession: " + link
	}
	return "Accept invitation to join company: " + link
}

func normalizeEmails(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.Contains(e, "@") {
			return nil, apperr.Validation("emails must be valid addresses")
		}
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, apperr.Validation("emails must not be empty")
	}
	return out, nil
}

// CreateEmailInvites invites each address into the requester's company and
// mails the acceptance links in parallel.
func (s *Service) CreateEmailInvites(ctx context.Context, by policy.Subject, emails []string, role model.Role) (*Created, error) {
	emails, err := normalizeEmails(emails)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Validation("role is invalid")
	}
	now := s.now()
	validUntil := now.Add(Validity)

	var pending int64
	if err := s.db.WithContext(ctx).Model(&model.Invite{}).
		Where("company_id = ? AND email IN ?", by.CompanyID, emails).
		Scopes(pendingAt(now)).
		Count(&pending).Error; err != nil {
		return nil, fmt.Errorf("check pending invites: %w", err)
	}
	if pending > 0 {
		return nil, apperr.InviteAlreadySent()
	}
	members, err := member.MemberEmails(ctx, s.db, by.CompanyID, emails)
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		return nil, apperr.UsersAlreadyInCompany(members)
	}

	invites := make([]model.Invite, 0, len(emails))
	for _, e := range emails {
		invites = append(invites, model.Invite{
			CompanyID:   by.CompanyID,
			CreatedByID: by.UserID,
			Email:       &e,
			Role:        role,
			ValidUntil:  validUntil,
		})
	}
	if err := s.db.WithContext(ctx).Create(&invites).Error; err != nil {
		return nil, fmt.Errorf("create invites: %w", err)
	}
	for i := range invites {
		if err := s.schedule(ctx, &invites[i]); err != nil {
			return nil, err
		}
	}

	var registered []string
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("email IN ?", emails).
		Pluck("email", &registered).Error; err != nil {
		return nil, fmt.Errorf("find registered emails: %w", err)
	}

	// The invites are committed, so a failed mail is logged rather than
	// returned. The inviter can delete and resend it.
	var unsent atomic.Int32
	var g errgroup.Group
	g.SetLimit(maxParallelMails)
	for i := range invites {
		inv := &invites[i]
		g.Go(func() error {
			if err := s.sendInvitation(ctx, inv, slices.Contains(registered, *inv.Email)); err != nil {
				unsent.Add(1)
				s.log.ErrorContext(ctx, "send invitation", "invite_id", inv.ID, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.InfoContext(ctx, "email invites created", "company_id", by.CompanyID,
		"count", len(invites), "unsent", unsent.Load())
	return &Created{Success: true, Count: len(invites), Unsent: int(unsent.Load())}, nil
}

// CreateLinkInvite creates a shareable invite identified by a random token.
func (s *Service) CreateLinkInvite(ctx context.Context, by policy.Subject, role model.Role) (*Invite, error) {
	if !role.Valid() {
		return nil, apperr.Validation("role is invalid")
	}
	token := ksuid.New().String()
	inv := &model.Invite{
		CompanyID:   by.CompanyID,
		CreatedByID: by.UserID,
		Token:       &token,
		Role:        role,
		ValidUntil:  s.now().Add(Validity),
	}
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, fmt.Errorf("create link invite: %w", err)
	}
	if err := s.schedule(ctx, inv); err != nil {
		return nil, err
	}
	v := s.view(inv)
	return &v, nil
}

// List returns the company's invites, newest first.
func (s *Service) List(ctx context.Context, by policy.Subject, q Query) (*List, error) {
	now := s.now()
	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&model.Invite{}).Where("company_id = ?", by.CompanyID)
		if len(q.Roles) > 0 {
			tx = tx.Where("role IN ?", q.Roles)
		}
		if strings.TrimSpace(q.Search) != "" {
			tx = tx.Where("LOWER(email) LIKE ?", db.Like(q.Search))
		}
		if clause, args := statusClause(q.Statuses, now); clause != "" {
			tx = tx.Where(clause, args...)
		}
		return tx
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count invites: %w", err)
	}
	var rows []model.Invite
	if err := base().Scopes(q.Page.Scope(20)).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	out := &List{Total: total, Invites: make([]Invite, 0, len(rows))}
	for i := range rows {
		out.Invites = append(out.Invites, s.view(&rows[i]))
	}
	return out, nil
}

// statusClause ORs together the conditions of the requested states.
func statusClause(statuses []model.InviteStatus, now time.Time) (string, []any) {
	var parts []string
	var args []any
	if slices.Contains(statuses, model.InviteAccepted) {
		parts = append(parts, "accepted_at IS NOT NULL")
	}
	if slices.Contains(statuses, model.InviteRejected) {
		parts = append(parts, "rejected_at IS NOT NULL")
	}
	if slices.Contains(statuses, model.InviteExpired) {
		parts = append(parts, "(valid_until < ? AND accepted_at IS NULL AND rejected_at IS NULL)")
		args = append(args, now)
	}
	if slices.Contains(statuses, model.InvitePending) {
		parts = append(parts, "(valid_until >= ? AND accepted_at IS NULL AND rejected_at IS NULL)")
		args = append(args, now)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func pendingAt(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("accepted_at IS NULL AND rejected_at IS NULL AND valid_until >= ?", now)
	}
}

// Refresh replaces a rejected or expired email invite with a new one and
// mails it again.
func (s *Service) Refresh(ctx context.Context, by policy.Subject, id string) error {
	old, err := s.authorize(ctx, by, id)
	if err != nil {
		return err
	}
	if old.Email == nil {
		return apperr.InviteCannotRefreshNoEmail()
	}
	if st := old.Status(s.now()); st != model.InviteRejected && st != model.InviteExpired {
		return apperr.InviteCannotRefresh()
	}
	members, err := member.MemberEmails(ctx, s.db, by.CompanyID, []string{*old.Email})
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return apperr.UsersAlreadyInCompany(members)
	}

	inv := &model.Invite{
		CompanyID:   old.CompanyID,
		CreatedByID: by.UserID,
		Email:       old.Email,
		Role:        old.Role,
		ValidUntil:  s.now().Add(Validity),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inv).Error; err != nil {
			return fmt.Errorf("create invite: %w", err)
		}
		if err := tx.Delete(&model.Invite{}, "id = ?", old.ID).Error; err != nil {
			return fmt.Errorf("delete invite: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cancel(ctx, old)
	if err := s.schedule(ctx, inv); err != nil {
		return err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", *inv.Email).Count(&n).Error; err != nil {
		return fmt.Errorf("find registered email: %w", err)
	}
	if err := s.sendInvitation(ctx, inv, n > 0); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "invite refreshed", "old_invite_id", old.ID, "invite_id", inv.ID)
	return nil
}

// Remove deletes an invite of the requester's company in any state and
// cancels its expiry job.
func (s *Service) Remove(ctx context.Context, by policy.Subject, id string) error {
	inv, err := s.authorize(ctx, by, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&model.Invite{}, "id = ?", inv.ID).Error; err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	s.cancel(ctx, inv)
	return nil
}

func (s *Service) authorize(ctx context.Context, by policy.Subject, id string) (*model.Invite, error) {
	var inv model.Invite
	err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, apperr.InviteNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load invite: %w", err)
	}
	if inv.CompanyID != by.CompanyID {
		return nil, apperr.NotAllowed()
	}
	return &inv, nil
}

func (s *Service) schedule(ctx context.Context, inv *model.Invite) error {
	jobID, err := s.sched.ScheduleInviteExpiry(ctx, inv.ID, inv.ValidUntil)
	if err != nil {
		return fmt.Errorf("schedule invite expiry: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(inv).Update("job_id", jobID).Error; err != nil {
		return fmt.Errorf("save invite job: %w", err)
	}
	inv.JobID = jobID
	return nil
}

// cancel drops the expiry job of a pending invite. Failures only leave a
// job that finds nothing to reject.
func (s *Service) cancel(ctx context.Context, inv *model.Invite) {
	if inv.JobID == "" || inv.Status(s.now()) != model.InvitePending {
		return
	}
	if err := s.sched.Cancel(ctx, inv.JobID); err != nil {
		s.log.WarnContext(ctx, "cancel invite expiry job", "invite_id", inv.ID, "job_id", inv.JobID, "err", err)
	}
}

func (s *Service) sendInvitation(ctx context.Context, inv *model.Invite, existing bool) error {
	link := s.emailURL(inv.ID, inv.ValidUntil, existing)
	if err := s.mail.Send(ctx, mail.Message{
		To:      []string{*inv.Email},
		Subject: subject,
		Text:    invitationText(link, existing),
	}); err != nil {
		return fmt.Errorf("send invitation to %s: %w", *inv.Email, err)
	}
	return nil
}
