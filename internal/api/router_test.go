package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/d9705996/huddle/internal/account"
	"github.com/d9705996/huddle/internal/api"
	"github.com/d9705996/huddle/internal/api/handler"
	"github.com/d9705996/huddle/internal/api/middleware"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/cache/cachetest"
	"github.com/d9705996/huddle/internal/company"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/db/dbtest"
	"github.com/d9705996/huddle/internal/health"
	"github.com/d9705996/huddle/internal/invite"
	"github.com/d9705996/huddle/internal/label"
	"github.com/d9705996/huddle/internal/mail"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/storage/storagetest"
	"github.com/d9705996/huddle/internal/summary"
	"github.com/d9705996/huddle/internal/summary/summarytest"
	"github.com/d9705996/huddle/internal/usergroup"
	"github.com/d9705996/huddle/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"gorm.io/gorm"
)

type testAPI struct {
	srv    *httptest.Server
	db     *gorm.DB
	issuer *auth.Issuer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gdb := dbtest.New(t)
	kv, _ := cachetest.New(t)
	store := storagetest.New()
	sender := mail.NewLogSender(log)
	issuer := auth.NewIssuer("access-secret-at-least-32-bytes!", "refresh-secret-at-least-32-bytes", 15*time.Minute, time.Hour)

	sched := worker.NewTimerScheduler(invite.NewExpirer(gdb, log), log)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	accounts := account.NewService(gdb, issuer, kv, sender, store, account.Config{}, log)
	notes := meeting.NewService(gdb, sender, store, kv, summary.NewEngine(&summarytest.LLM{}, log), "http://client.test", log)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Handlers{
		Health:     health.New(health.Check{Name: "database", Pinger: db.NewPinger(gdb)}, health.Check{Name: "redis", Pinger: kv}),
		Auth:       handler.NewAuthHandler(accounts, log),
		Users:      handler.NewUserHandler(accounts, log),
		Companies:  handler.NewCompanyHandler(company.NewService(gdb, store, log), log),
		Members:    handler.NewMemberHandler(member.NewService(gdb, log), log),
		Invites:    handler.NewInviteHandler(invite.NewService(gdb, sender, sched, accounts, "http://client.test", log), log),
		Labels:     handler.NewLabelHandler(label.NewService(gdb), log),
		UserGroups: handler.NewUserGroupHandler(usergroup.NewService(gdb), log),
		Meetings:   handler.NewMeetingHandler(notes, log),
		Tokens:     issuer,
		Active:     accounts,
		Log:        log,
	})

	srv := httptest.NewServer(middleware.Instrument(noop.NewMeterProvider().Meter("test"), log)(mux))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, db: gdb, issuer: issuer}
}

// member creates a confirmed user in a fresh company and returns a token
// bound to that membership.
func (a *testAPI) member(t *testing.T, email string, role model.Role) (string, *model.User, *model.Company) {
	t.Helper()
	c := dbtest.Company(t, a.db, "Acme")
	u := dbtest.User(t, a.db, email)
	dbtest.Member(t, a.db, u, c, role)
	tokens, err := a.issuer.Issue(u.ID, u.Email, c.ID, role)
	require.NoError(t, err)
	return tokens.Access, u, c
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	doc := map[string]any{}
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &doc), string(raw))
	}
	return res.StatusCode, doc
}

func errorCode(t *testing.T, doc map[string]any) string {
	t.Helper()
	errs, ok := doc["errors"].([]any)
	require.True(t, ok, "expected an error document, got %v", doc)
	require.NotEmpty(t, errs)
	return errs[0].(map[string]any)["code"].(string)
}

func data(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	d, ok := doc["data"].(map[string]any)
	require.True(t, ok, "expected a data object, got %v", doc)
	return d
}

func TestHealthAndReady(t *testing.T) {
	a := newTestAPI(t)

	status, _ := a.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, doc := a.do(t, http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	checks := data(t, doc)["meta"].(map[string]any)["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "ok", checks["redis"])
}

func TestRegisterLoginAndProfile(t *testing.T) {
	a := newTestAPI(t)

	status, doc := a.do(t, http.MethodPost, "/api/v1/auth/registration", "", map[string]string{
		"email":     "Ada@Example.com",
		"password":  "Sup3r$ecret",
		"firstName": "Ada",
		"lastName":  "Lovelace",
	})
	require.Equal(t, http.StatusCreated, status, doc)
	assert.Equal(t, "ada@example.com", data(t, doc)["email"])

	status, doc = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3r$ecret",
	})
	require.Equal(t, http.StatusOK, status, doc)
	access := data(t, doc)["accessToken"].(string)
	assert.Equal(t, "Bearer", data(t, doc)["tokenType"])

	// Unconfirmed emails are refused on every authenticated route.
	status, doc = a.do(t, http.MethodGet, "/api/v1/users/me", access, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "USER_EMAIL_NOT_CONFIRMED", errorCode(t, doc))

	require.NoError(t, a.db.Model(&model.User{}).Where("email = ?", "ada@example.com").
		Update("email_confirmed", true).Error)

	status, doc = a.do(t, http.MethodGet, "/api/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, status, doc)
	me := data(t, doc)
	assert.Equal(t, "Ada", me["firstName"])
	assert.Equal(t, "Ada's Space", me["currentCompany"].(map[string]any)["name"])
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"missing", "", "MISSING_TOKEN"},
		{"garbage", "not-a-jwt", "INVALID_TOKEN"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, doc := a.do(t, http.MethodGet, "/api/v1/labels", tc.token, nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tc.code, errorCode(t, doc))
		})
	}
}

func TestRoleGuards(t *testing.T) {
	a := newTestAPI(t)
	userToken, _, _ := a.member(t, "bob@example.com", model.RoleUser)
	managerToken, _, _ := a.member(t, "carol@example.com", model.RoleCompanyManager)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"user lists members", http.MethodGet, "/api/v1/users-management/users", userToken, http.StatusForbidden},
		{"manager lists members", http.MethodGet, "/api/v1/users-management/users", managerToken, http.StatusOK},
		{"user lists invites", http.MethodGet, "/api/v1/invites", userToken, http.StatusForbidden},
		{"manager lists invites", http.MethodGet, "/api/v1/invites", managerToken, http.StatusOK},
		{"manager deletes note", http.MethodDelete, "/api/v1/meeting-notes/unknown", managerToken, http.StatusForbidden},
		{"manager deletes series", http.MethodDelete, "/api/v1/meeting-notes/recurring/unknown", managerToken, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, doc := a.do(t, tc.method, tc.path, tc.token, nil)
			assert.Equal(t, tc.want, status, doc)
			if tc.want == http.StatusForbidden {
				assert.Equal(t, "USER_NOT_ALLOWED", errorCode(t, doc))
			}
		})
	}
}

func TestMeetingNoteRoutes(t *testing.T) {
	a := newTestAPI(t)
	token, _, _ := a.member(t, "ada@example.com", model.RoleOwner)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	status, doc := a.do(t, http.MethodPost, "/api/v1/meeting-notes", token, map[string]any{
		"name":      "Daily",
		"type":      model.MeetingDaily,
		"startDate": start,
		"endDate":   start.Add(30 * time.Minute),
	})
	require.Equal(t, http.StatusCreated, status, doc)
	id := data(t, doc)["id"].(string)

	status, doc = a.do(t, http.MethodGet, "/api/v1/meeting-notes/"+id, token, nil)
	require.Equal(t, http.StatusOK, status, doc)
	assert.Equal(t, "Daily", data(t, doc)["name"])

	t.Run("public share goes through the action route", func(t *testing.T) {
		status, doc := a.do(t, http.MethodPatch, "/api/v1/meeting-notes/"+id+"/public-share", token, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_FAILED", errorCode(t, doc))
	})

	t.Run("unknown action", func(t *testing.T) {
		status, _ := a.do(t, http.MethodPatch, "/api/v1/meeting-notes/"+id+"/archive", token, map[string]any{})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("recurring wins over the action route", func(t *testing.T) {
		status, doc := a.do(t, http.MethodPatch, "/api/v1/meeting-notes/recurring/"+id, token, map[string]any{
			"startDatePeriod": "yesterday",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_STARTDATE_PERIOD", errorCode(t, doc))
	})

	status, _ = a.do(t, http.MethodDelete, "/api/v1/meeting-notes/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, doc = a.do(t, http.MethodGet, "/api/v1/meeting-notes/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MEETING_NOTE_NOT_FOUND", errorCode(t, doc))
}

func TestPublicMeetingNoteUnknownSlug(t *testing.T) {
	a := newTestAPI(t)

	status, doc := a.do(t, http.MethodGet, "/api/v1/public-meeting-notes/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, errorCode(t, doc))
}

func TestUnknownRoute(t *testing.T) {
	a := newTestAPI(t)

	status, doc := a.do(t, http.MethodGet, "/api/v1/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(t, doc))
}
