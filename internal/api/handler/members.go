package handler

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
)

// MemberHandler handles /api/v1/users-management/* routes.
type MemberHandler struct {
	members *member.Service
	log     *slog.Logger
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(members *member.Service, log *slog.Logger) *MemberHandler {
	return &MemberHandler{members: members, log: log}
}

// List handles GET /api/v1/users-management/users.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := memberFilter(r)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	list, err := h.members.List(r.Context(), subject(r), f)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, list)
}

// ChangeRole handles PATCH /api/v1/users-management/users/{id}/role.
func (h *MemberHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	h.done(w, r, h.members.ChangeRole(r.Context(), subject(r), r.PathValue("id"), req.Role))
}

// Block handles PATCH /api/v1/users-management/users/{id}/block.
func (h *MemberHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, h.members.Block(r.Context(), subject(r), r.PathValue("id")))
}

// Unblock handles PATCH /api/v1/users-management/users/{id}/unblock.
func (h *MemberHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, h.members.Unblock(r.Context(), subject(r), r.PathValue("id")))
}

// UpdateData handles PATCH /api/v1/users-management/users/{id}/data.
func (h *MemberHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	h.done(w, r, h.members.UpdateNickname(r.Context(), subject(r), r.PathValue("id"), req.Nickname))
}

// Remove handles DELETE /api/v1/users-management/users/{id}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, h.members.Remove(r.Context(), subject(r), r.PathValue("id")))
}

func (h *MemberHandler) done(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}
