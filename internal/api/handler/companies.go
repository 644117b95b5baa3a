package handler

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/company"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
)

// CompanyHandler handles /api/v1/companies/* routes.
type CompanyHandler struct {
	companies *company.Service
	log       *slog.Logger
}

// NewCompanyHandler creates a CompanyHandler.
func NewCompanyHandler(companies *company.Service, log *slog.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, log: log}
}

type nameRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/companies.
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	c, err := h.companies.Create(r.Context(), subject(r), req.Name)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, c)
}

// Rename handles PATCH /api/v1/companies/{id}.
func (h *CompanyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	c, err := h.companies.Rename(r.Context(), subject(r), r.PathValue("id"), req.Name)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, c)
}

// AvatarUploadURL handles POST /api/v1/companies/{id}/avatar-upload-url.
func (h *CompanyHandler) AvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	var req avatarUploadRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	u, err := h.companies.AvatarUploadURL(r.Context(), subject(r), r.PathValue("id"), req.FileName)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, u)
}

// ConfirmAvatar handles POST /api/v1/companies/{id}/avatar-confirm.
func (h *CompanyHandler) ConfirmAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarConfirmRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	url, err := h.companies.ConfirmAvatar(r.Context(), subject(r), r.PathValue("id"), req.UniqueFileName)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, avatarAttrs{Avatar: url})
}

// Users handles GET /api/v1/companies/users.
func (h *CompanyHandler) Users(w http.ResponseWriter, r *http.Request) {
	f, err := memberFilter(r)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	users, err := h.companies.ListUsers(r.Context(), subject(r), f)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, users)
}

// memberFilter reads roles, statuses, search, skip and take.
func memberFilter(r *http.Request) (member.Filter, error) {
	p := newParams(r)
	f := member.Filter{
		Roles:    as[model.Role](p.list("roles")),
		Statuses: as[member.Status](p.list("statuses")),
		Search:   p.str("search"),
		Page:     p.page(),
	}
	return f, p.err
}
