package handler

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/invite"
	"github.com/d9705996/huddle/internal/model"
)

// InviteHandler handles /api/v1/invites/* routes.
type InviteHandler struct {
	invites *invite.Service
	log     *slog.Logger
}

// NewInviteHandler creates an InviteHandler.
func NewInviteHandler(invites *invite.Service, log *slog.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, log: log}
}

// acceptRequest is the registration data sent with an invite. The password
// is kept unexported and decoded via UnmarshalJSON.
type acceptRequest struct {
	InviteID  string
	Token     string
	Email     string
	FirstName string
	LastName  string
	password  string
}

func (a *acceptRequest) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]*string{
		"inviteId":  &a.InviteID,
		"token":     &a.Token,
		"email":     &a.Email,
		"firstName": &a.FirstName,
		"lastName":  &a.LastName,
		"password":  &a.password,
	})
}

func (a acceptRequest) acceptance() invite.Acceptance {
	return invite.Acceptance{
		InviteID:  a.InviteID,
		Token:     a.Token,
		Email:     a.Email,
		Password:  a.password,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}

// CreateEmail handles POST /api/v1/invites/email.
func (h *InviteHandler) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string   `json:"emails"`
		Role   model.Role `json:"role"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	created, err := h.invites.CreateEmailInvites(r.Context(), subject(r), req.Emails, req.Role)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, created)
}

// CreateLink handles POST /api/v1/invites/link.
func (h *InviteHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	inv, err := h.invites.CreateLinkInvite(r.Context(), subject(r), req.Role)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, inv)
}

func (h *InviteHandler) accept(w http.ResponseWriter, r *http.Request, fn func(a invite.Acceptance) (auth.Tokens, error)) {
	var req acceptRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	tokens, err := fn(req.acceptance())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	renderTokens(w, tokens)
}

// AcceptEmail handles POST /api/v1/invites/accept/email.
func (h *InviteHandler) AcceptEmail(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, func(a invite.Acceptance) (auth.Tokens, error) {
		return h.invites.AcceptEmail(r.Context(), a)
	})
}

// AcceptLink handles POST /api/v1/invites/accept/link.
func (h *InviteHandler) AcceptLink(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, func(a invite.Acceptance) (auth.Tokens, error) {
		return h.invites.AcceptLink(r.Context(), a)
	})
}

// AcceptExisting handles POST /api/v1/invites/accept/email-exist.
func (h *InviteHandler) AcceptExisting(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, func(a invite.Acceptance) (auth.Tokens, error) {
		return h.invites.AcceptExisting(r.Context(), subject(r), a.InviteID, a.Token)
	})
}

// List handles GET /api/v1/invites.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	p := newParams(r)
	q := invite.Query{
		Roles:    as[model.Role](p.list("roles")),
		Statuses: as[model.InviteStatus](p.list("statuses")),
		Search:   p.str("search"),
		Page:     p.page(),
	}
	if p.err != nil {
		renderError(w, h.log, r, p.err)
		return
	}
	list, err := h.invites.List(r.Context(), subject(r), q)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, list)
}

// Refresh handles POST /api/v1/invites/refresh/{id}.
func (h *InviteHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.invites.Refresh(r.Context(), subject(r), r.PathValue("id")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// Remove handles DELETE /api/v1/invites/{id}.
func (h *InviteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.invites.Remove(r.Context(), subject(r), r.PathValue("id")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}
