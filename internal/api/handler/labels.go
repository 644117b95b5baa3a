package handler

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/label"
	"github.com/d9705996/huddle/internal/usergroup"
)

// LabelHandler handles /api/v1/labels/* routes.
type LabelHandler struct {
	labels *label.Service
	log    *slog.Logger
}

// NewLabelHandler creates a LabelHandler.
func NewLabelHandler(labels *label.Service, log *slog.Logger) *LabelHandler {
	return &LabelHandler{labels: labels, log: log}
}

// Create handles POST /api/v1/labels.
func (h *LabelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	l, err := h.labels.Create(r.Context(), subject(r), req.Name)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, l)
}

// List handles GET /api/v1/labels.
func (h *LabelHandler) List(w http.ResponseWriter, r *http.Request) {
	p := newParams(r)
	q := label.Query{Search: p.str("search"), Page: p.page()}
	if p.err != nil {
		renderError(w, h.log, r, p.err)
		return
	}
	list, err := h.labels.List(r.Context(), subject(r), q)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, list)
}

// Get handles GET /api/v1/labels/{id}.
func (h *LabelHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.labels.Get(r.Context(), subject(r), r.PathValue("id"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, l)
}

// Update handles PATCH /api/v1/labels/{id}.
func (h *LabelHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	l, err := h.labels.Rename(r.Context(), subject(r), r.PathValue("id"), req.Name)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, l)
}

// Delete handles DELETE /api/v1/labels/{id}.
func (h *LabelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.labels.Delete(r.Context(), subject(r), r.PathValue("id")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// UserGroupHandler handles /api/v1/user-groups/* routes.
type UserGroupHandler struct {
	groups *usergroup.Service
	log    *slog.Logger
}

// NewUserGroupHandler creates a UserGroupHandler.
func NewUserGroupHandler(groups *usergroup.Service, log *slog.Logger) *UserGroupHandler {
	return &UserGroupHandler{groups: groups, log: log}
}

type groupRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Color       *string   `json:"color"`
	MemberIDs   *[]string `json:"memberIds"`
}

func (g groupRequest) input() usergroup.Input {
	return usergroup.Input{Name: g.Name, Description: g.Description, Color: g.Color, MemberIDs: g.MemberIDs}
}

// Create handles POST /api/v1/user-groups.
func (h *UserGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	g, err := h.groups.Create(r.Context(), subject(r), req.input())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, g)
}

// List handles GET /api/v1/user-groups.
func (h *UserGroupHandler) List(w http.ResponseWriter, r *http.Request) {
	p := newParams(r)
	q := usergroup.Query{Search: p.str("search"), Page: p.page()}
	if p.err != nil {
		renderError(w, h.log, r, p.err)
		return
	}
	list, err := h.groups.List(r.Context(), subject(r), q)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, list)
}

// Get handles GET /api/v1/user-groups/{id}.
func (h *UserGroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.groups.Get(r.Context(), subject(r), r.PathValue("id"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, g)
}

// Update handles PATCH /api/v1/user-groups/{id}.
func (h *UserGroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	g, err := h.groups.Update(r.Context(), subject(r), r.PathValue("id"), req.input())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, g)
}

// Delete handles DELETE /api/v1/user-groups/{id}.
func (h *UserGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.Delete(r.Context(), subject(r), r.PathValue("id")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}
