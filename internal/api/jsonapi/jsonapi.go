// Package jsonapi provides the JSON:API style envelopes of the Huddle API
// and their rendering helpers. Only encoding/json is used.
package jsonapi

import (
	"encoding/json"
	"net/http"

	"github.com/d9705996/huddle/internal/apperr"
)

const contentType = "application/vnd.api+json"

// ---- Document types -------------------------------------------------------

// Document is a single-resource document. Data holds either a
// ResourceObject or a service view.
type Document struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta,omitempty"`
}

// ListDocument is a collection document. Meta carries the total count of
// paged listings.
type ListDocument struct {
	Data []any `json:"data"`
	Meta Meta  `json:"meta,omitempty"`
}

// ResourceObject is the canonical JSON:API resource object.
type ResourceObject struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes,omitempty"`
	Meta       Meta   `json:"meta,omitempty"`
}

// Meta is a free-form map of non-standard meta-information.
type Meta map[string]any

// ---- Error types ----------------------------------------------------------

// ErrorDocument is an error response document.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// ErrorObject represents a single error. Code is the stable message code.
type ErrorObject struct {
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// ErrorSource identifies the request part an error refers to.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ---- Render helpers -------------------------------------------------------

// Render writes a document to w with the given HTTP status code.
func Render(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// RenderOne writes a single-resource document.
func RenderOne(w http.ResponseWriter, status int, data any) {
	Render(w, status, Document{Data: data})
}

// RenderList writes a collection document. A nil slice renders as [].
func RenderList[T any](w http.ResponseWriter, status int, items []T, meta Meta) {
	data := make([]any, len(items))
	for i := range items {
		data[i] = items[i]
	}
	Render(w, status, ListDocument{Data: data, Meta: meta})
}

// RenderError writes a single error.
func RenderError(w http.ResponseWriter, status int, code, title, detail string) {
	RenderErrors(w, status, []ErrorObject{
		{
			Status: http.StatusText(status),
			Code:   code,
			Title:  title,
			Detail: detail,
		},
	})
}

// RenderAppError writes e with the status of its kind.
func RenderAppError(w http.ResponseWriter, e *apperr.Error) {
	status := e.Kind.Status()
	RenderError(w, status, e.Code, http.StatusText(status), e.Message)
}

// RenderErrors writes multiple errors.
func RenderErrors(w http.ResponseWriter, status int, errs []ErrorObject) {
	Render(w, status, ErrorDocument{Errors: errs})
}
