// Package middleware provides the HTTP guards and instrumentation of the
// Huddle API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// TokenParser validates access tokens. *auth.Issuer implements it.
type TokenParser interface {
	ParseAccess(token string) (*auth.Claims, error)
}

// ActiveChecker verifies the account state behind a token.
// *account.Service implements it.
type ActiveChecker interface {
	CheckActive(ctx context.Context, userID, companyID string) error
}

// RequireAuth validates the Bearer JWT in the Authorization header.
// On success it injects the token's policy.Subject into the request context.
// On failure it writes a 401 error response.
func RequireAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"MISSING_TOKEN", "Unauthorized", "Authorization header is required")
				return
			}

			claims, err := tokens.ParseAccess(token)
			if err != nil || claims.CompanyID == "" {
				jsonapi.RenderAppError(w, apperr.InvalidAccessToken())
				return
			}

			ctx := WithSubject(r.Context(), policy.Subject{
				UserID:    claims.UserID,
				CompanyID: claims.CompanyID,
				Role:      claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSubject returns a copy of ctx carrying s.
func WithSubject(ctx context.Context, s policy.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFromContext extracts the requester from the request context.
func SubjectFromContext(ctx context.Context) (policy.Subject, bool) {
	s, ok := ctx.Value(subjectKey).(policy.Subject)
	return s, ok
}

// RequireActiveUser rejects requests of blocked, deleted or unconfirmed
// users and of users no longer in the token's company. Must be chained
// after RequireAuth.
func RequireActiveUser(checker ActiveChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SubjectFromContext(r.Context())
			if !ok {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"MISSING_TOKEN", "Unauthorized", "authentication required")
				return
			}
			if err := checker.CheckActive(r.Context(), s.UserID, s.CompanyID); err != nil {
				if e, ok := apperr.As(err); ok {
					jsonapi.RenderAppError(w, e)
					return
				}
				log.Error("check active user", "err", err, "user_id", s.UserID)
				jsonapi.RenderError(w, http.StatusInternalServerError,
					"internal_error", "Internal Server Error", "an unexpected error occurred")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles checks that the token's role is one of roles. Must be
// chained after RequireAuth.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SubjectFromContext(r.Context())
			if !ok {
				jsonapi.RenderError(w, http.StatusUnauthorized,
					"MISSING_TOKEN", "Unauthorized", "authentication required")
				return
			}
			if !policy.HasRole(s.Role, roles...) {
				jsonapi.RenderAppError(w, apperr.NotAllowed())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
