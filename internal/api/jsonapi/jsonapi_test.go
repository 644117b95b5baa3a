package jsonapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOne(t *testing.T) {
	type attrs struct {
		Name string `json:"name"`
	}

	w := httptest.NewRecorder()
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "labels",
		ID:         "1",
		Attributes: attrs{Name: "roadmap"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.api+json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"type":"labels","id":"1","attributes":{"name":"roadmap"}}}`, w.Body.String())
}

func TestRenderList(t *testing.T) {
	w := httptest.NewRecorder()
	jsonapi.RenderList(w, http.StatusOK, []string{"a", "b"}, jsonapi.Meta{"total": 7})

	assert.JSONEq(t, `{"data":["a","b"],"meta":{"total":7}}`, w.Body.String())
}

func TestRenderList_EmptySlice(t *testing.T) {
	w := httptest.NewRecorder()
	jsonapi.RenderList[int](w, http.StatusOK, nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var doc jsonapi.ListDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.NotNil(t, doc.Data)
	assert.Len(t, doc.Data, 0)
}

func TestRenderError(t *testing.T) {
	w := httptest.NewRecorder()
	jsonapi.RenderError(w, http.StatusNotFound, "not_found", "Not Found", "the resource does not exist")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var doc jsonapi.ErrorDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "Not Found", doc.Errors[0].Status)
	assert.Equal(t, "not_found", doc.Errors[0].Code)
	assert.Equal(t, "the resource does not exist", doc.Errors[0].Detail)
}

func TestRenderAppError(t *testing.T) {
	tests := []struct {
		err    *apperr.Error
		status int
	}{
		{apperr.MeetingNoteNotFound(), http.StatusNotFound},
		{apperr.InvalidCredentials(), http.StatusBadRequest},
		{apperr.UserBlocked(), http.StatusForbidden},
		{apperr.InvalidRefreshToken(), http.StatusUnauthorized},
		{apperr.SummaryInProgress(), http.StatusConflict},
		{apperr.SummarizationFailed(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			w := httptest.NewRecorder()
			jsonapi.RenderAppError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var doc jsonapi.ErrorDocument
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
			require.Len(t, doc.Errors, 1)
			assert.Equal(t, tt.err.Code, doc.Errors[0].Code)
			assert.Equal(t, tt.err.Message, doc.Errors[0].Detail)
		})
	}
}

func TestRenderErrors_MultipleErrors(t *testing.T) {
	w := httptest.NewRecorder()
	jsonapi.RenderErrors(w, http.StatusBadRequest, []jsonapi.ErrorObject{
		{
			Code: "VALIDATION_FAILED", Title: "Bad Request", Detail: "skip must be a number",
			Source: &jsonapi.ErrorSource{Parameter: "skip"},
		},
		{
			Code: "VALIDATION_FAILED", Title: "Bad Request", Detail: "startDate must be RFC 3339",
			Source: &jsonapi.ErrorSource{Parameter: "startDate"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var doc jsonapi.ErrorDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Errors, 2)
	assert.Equal(t, "skip", doc.Errors[0].Source.Parameter)
}
