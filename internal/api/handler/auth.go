package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/account"
	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/auth"
)

// AuthHandler handles /api/v1/auth/* routes.
type AuthHandler struct {
	accounts *account.Service
	log      *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts *account.Service, log *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log}
}

// tokenAttrs are the JSON attributes returned in successful auth responses.
// Sensitive fields are unexported and serialised via MarshalJSON to avoid G117.
type tokenAttrs struct {
	accessToken  string
	refreshToken string
}

func (t tokenAttrs) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"accessToken":  t.accessToken,
		"refreshToken": t.refreshToken,
		"tokenType":    "Bearer",
	})
}

func renderTokens(w http.ResponseWriter, t auth.Tokens) {
	jsonapi.RenderOne(w, http.StatusOK, tokenAttrs{accessToken: t.Access, refreshToken: t.Refresh})
}

// credentials holds the fields of registration, login and password reset.
// The password is kept unexported and decoded via UnmarshalJSON.
type credentials struct {
	Email     string
	Code      string
	FirstName string
	LastName  string
	password  string
}

func (c *credentials) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]*string{
		"email":     &c.Email,
		"code":      &c.Code,
		"firstName": &c.FirstName,
		"lastName":  &c.LastName,
		"password":  &c.password,
	})
}

// refreshRequest holds the token submitted to logout and refresh-token.
type refreshRequest struct {
	token string // unexported; decoded via UnmarshalJSON to avoid G117
}

func (r *refreshRequest) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]*string{"refreshToken": &r.token})
}

func (h *AuthHandler) readRefresh(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return "", false
	}
	if req.token == "" {
		renderError(w, h.log, r, apperr.Validation("refreshToken is required"))
		return "", false
	}
	return req.token, true
}

func (h *AuthHandler) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var req credentials
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return req, false
	}
	return req, true
}

// Register handles POST /api/v1/auth/registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	p, err := h.accounts.Register(r.Context(), account.Registration{
		Email:     req.Email,
		Password:  req.password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, p)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.password == "" {
		renderError(w, h.log, r, apperr.Validation("email and password are required"))
		return
	}
	tokens, err := h.accounts.Login(r.Context(), req.Email, req.password)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	renderTokens(w, tokens)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.readRefresh(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Logout(r.Context(), token); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// Refresh handles POST /api/v1/auth/refresh-token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.readRefresh(w, r)
	if !ok {
		return
	}
	tokens, err := h.accounts.Refresh(r.Context(), token)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	renderTokens(w, tokens)
}

// SendOTP handles POST /api/v1/auth/send-otp.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	if err := h.accounts.SendOTP(r.Context(), req.Email); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// VerifyOTP handles POST /api/v1/auth/verify-otp.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	if err := h.accounts.VerifyOTP(r.Context(), req.Email, req.Code); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// VerifyEmail handles POST /api/v1/auth/verify-email.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	if err := h.accounts.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// ResetPassword handles POST /api/v1/auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Email, req.Code, req.password); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// passwordChange holds the bodies of set-password and change-password.
type passwordChange struct {
	oldPassword string
	newPassword string
}

func (p *passwordChange) UnmarshalJSON(data []byte) error {
	return decodeFields(data, map[string]*string{
		"password":    &p.newPassword,
		"newPassword": &p.newPassword,
		"oldPassword": &p.oldPassword,
	})
}

// SetPassword handles PATCH /api/v1/auth/set-password.
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChange
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	if err := h.accounts.SetPassword(r.Context(), subject(r), req.newPassword); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// ChangePassword handles PATCH /api/v1/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChange
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), subject(r), req.oldPassword, req.newPassword); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// ChangeCompany handles PATCH /api/v1/auth/change-company.
func (h *AuthHandler) ChangeCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID string `json:"companyId"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	tokens, err := h.accounts.ChangeCompany(r.Context(), subject(r), req.CompanyID)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	renderTokens(w, tokens)
}
