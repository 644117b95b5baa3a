// Package handler contains HTTP handlers grouped by resource.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/api/middleware"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/policy"
)

const maxBodyBytes = 1 << 20

// renderError writes err as an error document. Application errors keep
// their kind and code; anything else is logged and hidden behind a 500.
func renderError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok {
		jsonapi.RenderAppError(w, e)
		return
	}
	log.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path)
	jsonapi.RenderError(w, http.StatusInternalServerError,
		"internal_error", "Internal Server Error", "an unexpected error occurred")
}

// decode reads a JSON body of at most maxBodyBytes into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body is too large")
		}
		return apperr.Validation("request body must be valid JSON")
	}
	return nil
}

// decodeFields fills the string fields named in fields from a JSON object.
// Request types holding credentials keep them unexported and decode through
// it from UnmarshalJSON.
func decodeFields(data []byte, fields map[string]*string) error {
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for name, dst := range fields {
		if v, ok := obj[name]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// subject returns the requester. Routes using it are behind RequireAuth.
func subject(r *http.Request) policy.Subject {
	s, _ := middleware.SubjectFromContext(r.Context())
	return s
}

func noContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// params reads query parameters, keeping the first malformed one as err.
type params struct {
	q   url.Values
	err error
}

func newParams(r *http.Request) *params { return &params{q: r.URL.Query()} }

func (p *params) fail(key, msg string) {
	if p.err == nil {
		p.err = apperr.Validation(key + " " + msg)
	}
}

func (p *params) str(key string) string { return strings.TrimSpace(p.q.Get(key)) }

// list accepts both repeated keys and comma-separated values.
func (p *params) list(key string) []string {
	var out []string
	for _, v := range p.q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (p *params) int(key string) int {
	v := p.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(key, "must be a non-negative integer")
	}
	return n
}

func (p *params) bool(key string) bool {
	v := p.str(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, "must be a boolean")
	}
	return b
}

func (p *params) time(key string) *time.Time {
	v := p.str(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		p.fail(key, "must be an RFC 3339 timestamp")
		return nil
	}
	return &t
}

func (p *params) page() db.Page {
	return db.Page{Skip: p.int("skip"), Take: p.int("take")}
}

// as converts query values to a string-based enum type.
func as[T ~string](in []string) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}
