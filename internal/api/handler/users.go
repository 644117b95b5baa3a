package handler

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/account"
	"github.com/d9705996/huddle/internal/api/jsonapi"
)

// UserHandler handles /api/v1/users/me routes.
type UserHandler struct {
	accounts *account.Service
	log      *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(accounts *account.Service, log *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, log: log}
}

type avatarUploadRequest struct {
	FileName string `json:"fileName"`
}

type avatarConfirmRequest struct {
	UniqueFileName string `json:"uniqueFileName"`
}

type avatarAttrs struct {
	Avatar string `json:"avatar"`
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.Me(r.Context(), subject(r))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, p)
}

// Update handles PATCH /api/v1/users/me.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	p, err := h.accounts.UpdateProfile(r.Context(), subject(r), account.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, p)
}

// AvatarUploadURL handles POST /api/v1/users/me/avatar-upload-url.
func (h *UserHandler) AvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	var req avatarUploadRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	u, err := h.accounts.AvatarUploadURL(r.Context(), subject(r), req.FileName)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, u)
}

// ConfirmAvatar handles POST /api/v1/users/me/avatar-confirm.
func (h *UserHandler) ConfirmAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarConfirmRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	url, err := h.accounts.ConfirmAvatar(r.Context(), subject(r), req.UniqueFileName)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, avatarAttrs{Avatar: url})
}
