// Package api wires all API routes onto the provided ServeMux.
package api

import (
	"log/slog"
	"net/http"

	"github.com/d9705996/huddle/internal/api/handler"
	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/api/middleware"
	"github.com/d9705996/huddle/internal/health"
	"github.com/d9705996/huddle/internal/model"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Health     *health.Handler
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Companies  *handler.CompanyHandler
	Members    *handler.MemberHandler
	Invites    *handler.InviteHandler
	Labels     *handler.LabelHandler
	UserGroups *handler.UserGroupHandler
	Meetings   *handler.MeetingHandler

	Tokens middleware.TokenParser
	Active middleware.ActiveChecker
	Log    *slog.Logger
}

// RegisterRoutes registers all application routes on mux.
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	const v1 = "/api/v1"

	// Public health endpoints (no auth required)
	mux.HandleFunc("GET "+v1+"/health", h.Health.ServeHealth)
	mux.HandleFunc("GET "+v1+"/ready", h.Health.ServeReady)

	// Auth endpoints (no auth required)
	mux.HandleFunc("POST "+v1+"/auth/registration", h.Auth.Register)
	mux.HandleFunc("POST "+v1+"/auth/login", h.Auth.Login)
	mux.HandleFunc("POST "+v1+"/auth/logout", h.Auth.Logout)
	mux.HandleFunc("POST "+v1+"/auth/refresh-token", h.Auth.Refresh)
	mux.HandleFunc("POST "+v1+"/auth/send-otp", h.Auth.SendOTP)
	mux.HandleFunc("POST "+v1+"/auth/verify-otp", h.Auth.VerifyOTP)
	mux.HandleFunc("POST "+v1+"/auth/verify-email", h.Auth.VerifyEmail)
	mux.HandleFunc("POST "+v1+"/auth/reset-password", h.Auth.ResetPassword)
	mux.HandleFunc("POST "+v1+"/invites/accept/email", h.Invites.AcceptEmail)
	mux.HandleFunc("POST "+v1+"/invites/accept/link", h.Invites.AcceptLink)
	mux.HandleFunc("GET "+v1+"/public-meeting-notes/{slug}", h.Meetings.GetPublic)

	authed := func(next http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h.Tokens)(middleware.RequireActiveUser(h.Active, h.Log)(next))
	}
	managers := func(next http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRoles(model.RoleOwner, model.RoleCompanyManager)(next).ServeHTTP)
	}
	owners := func(next http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRoles(model.RoleOwner)(next).ServeHTTP)
	}

	// Credentials
	mux.Handle("PATCH "+v1+"/auth/set-password", authed(h.Auth.SetPassword))
	mux.Handle("PATCH "+v1+"/auth/change-password", authed(h.Auth.ChangePassword))
	mux.Handle("PATCH "+v1+"/auth/change-company", authed(h.Auth.ChangeCompany))

	// Current user
	mux.Handle("GET "+v1+"/users/me", authed(h.Users.Me))
	mux.Handle("PATCH "+v1+"/users/me", authed(h.Users.Update))
	mux.Handle("POST "+v1+"/users/me/avatar-upload-url", authed(h.Users.AvatarUploadURL))
	mux.Handle("POST "+v1+"/users/me/avatar-confirm", authed(h.Users.ConfirmAvatar))

	// Companies
	mux.Handle("POST "+v1+"/companies", authed(h.Companies.Create))
	mux.Handle("GET "+v1+"/companies/users", authed(h.Companies.Users))
	mux.Handle("PATCH "+v1+"/companies/{id}", authed(h.Companies.Rename))
	mux.Handle("POST "+v1+"/companies/{id}/avatar-upload-url", authed(h.Companies.AvatarUploadURL))
	mux.Handle("POST "+v1+"/companies/{id}/avatar-confirm", authed(h.Companies.ConfirmAvatar))

	// Users management
	mux.Handle("GET "+v1+"/users-management/users", managers(h.Members.List))
	mux.Handle("PATCH "+v1+"/users-management/users/{id}/role", managers(h.Members.ChangeRole))
	mux.Handle("PATCH "+v1+"/users-management/users/{id}/block", managers(h.Members.Block))
	mux.Handle("PATCH "+v1+"/users-management/users/{id}/unblock", managers(h.Members.Unblock))
	mux.Handle("PATCH "+v1+"/users-management/users/{id}/data", managers(h.Members.UpdateData))
	mux.Handle("DELETE "+v1+"/users-management/users/{id}", managers(h.Members.Remove))

	// Invites
	mux.Handle("POST "+v1+"/invites/email", managers(h.Invites.CreateEmail))
	mux.Handle("POST "+v1+"/invites/link", managers(h.Invites.CreateLink))
	mux.Handle("POST "+v1+"/invites/accept/email-exist", authed(h.Invites.AcceptExisting))
	mux.Handle("GET "+v1+"/invites", managers(h.Invites.List))
	mux.Handle("POST "+v1+"/invites/refresh/{id}", managers(h.Invites.Refresh))
	mux.Handle("DELETE "+v1+"/invites/{id}", managers(h.Invites.Remove))

	// Labels
	mux.Handle("POST "+v1+"/labels", authed(h.Labels.Create))
	mux.Handle("GET "+v1+"/labels", authed(h.Labels.List))
	mux.Handle("GET "+v1+"/labels/{id}", authed(h.Labels.Get))
	mux.Handle("PATCH "+v1+"/labels/{id}", authed(h.Labels.Update))
	mux.Handle("DELETE "+v1+"/labels/{id}", authed(h.Labels.Delete))

	// User groups
	mux.Handle("POST "+v1+"/user-groups", authed(h.UserGroups.Create))
	mux.Handle("GET "+v1+"/user-groups", authed(h.UserGroups.List))
	mux.Handle("GET "+v1+"/user-groups/{id}", authed(h.UserGroups.Get))
	mux.Handle("PATCH "+v1+"/user-groups/{id}", authed(h.UserGroups.Update))
	mux.Handle("DELETE "+v1+"/user-groups/{id}", authed(h.UserGroups.Delete))

	// Meeting notes
	const notes = v1 + "/meeting-notes"
	mux.Handle("POST "+notes, authed(h.Meetings.Create))
	mux.Handle("GET "+notes, authed(h.Meetings.List))
	mux.Handle("GET "+notes+"/{id}", authed(h.Meetings.Get))
	mux.Handle("PATCH "+notes+"/{id}", authed(h.Meetings.Update))
	mux.Handle("DELETE "+notes+"/{id}", owners(h.Meetings.Delete))
	// public-share and any future single-word actions share one pattern so
	// they do not collide with recurring/{id}.
	mux.Handle("PATCH "+notes+"/{id}/{action}", authed(h.Meetings.Action))
	mux.Handle("PATCH "+notes+"/recurring/{id}", authed(h.Meetings.UpdateRecurring))
	mux.Handle("DELETE "+notes+"/recurring/{id}", owners(h.Meetings.DeleteRecurring))
	mux.Handle("POST "+notes+"/{id}/generate-summary", authed(h.Meetings.GenerateSummary))
	mux.Handle("GET "+notes+"/{id}/summary/stream", authed(h.Meetings.StreamSummary))

	// Meeting assets
	mux.Handle("POST "+notes+"/{id}/assets/generate-upload-url", authed(h.Meetings.GenerateAssetUploadURL))
	mux.Handle("GET "+notes+"/{id}/assets/{assetId}/access-url", authed(h.Meetings.GetAssetAccessURL))
	mux.Handle("POST "+notes+"/assets/{assetId}/upload-transcription", authed(h.Meetings.UploadTranscription))
	mux.Handle("GET "+notes+"/assets/{assetId}/structured-transcription", authed(h.Meetings.GetStructuredTranscription))
	mux.Handle("DELETE "+notes+"/assets/{assetId}", authed(h.Meetings.DeleteAsset))

	// Comments
	mux.Handle("POST "+notes+"/{id}/comments", authed(h.Meetings.CreateComment))
	mux.Handle("GET "+notes+"/{id}/comments", authed(h.Meetings.ListComments))
	mux.Handle("POST "+notes+"/{id}/comments/{commentId}/replies", authed(h.Meetings.CreateReply))
	mux.Handle("PATCH "+notes+"/comments/{commentId}", authed(h.Meetings.UpdateComment))
	mux.Handle("DELETE "+notes+"/comments/{commentId}", authed(h.Meetings.DeleteComment))

	mux.Handle("GET "+v1+"/shared-meeting-notes/{id}", authed(h.Meetings.GetShared))

	// Catch-all 404
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonapi.RenderError(w, http.StatusNotFound, "not_found", "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
}
