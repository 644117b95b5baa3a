package handler

import (
	"net/http"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/summary"
)

// GenerateAssetUploadURL handles POST /api/v1/meeting-notes/{id}/assets/generate-upload-url.
func (h *MeetingHandler) GenerateAssetUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
		FileSize int64  `json:"fileSize"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	u, err := h.notes.GenerateAssetUploadURL(r.Context(), subject(r), r.PathValue("id"), meeting.AssetUpload{
		FileName: req.FileName,
		FileType: req.FileType,
		FileSize: req.FileSize,
	})
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, u)
}

// GetAssetAccessURL handles GET /api/v1/meeting-notes/{id}/assets/{assetId}/access-url.
func (h *MeetingHandler) GetAssetAccessURL(w http.ResponseWriter, r *http.Request) {
	acc, err := h.notes.GetAssetAccessURL(r.Context(), subject(r), r.PathValue("id"), r.PathValue("assetId"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, acc)
}

// UploadTranscription handles POST /api/v1/meeting-notes/assets/{assetId}/upload-transcription.
func (h *MeetingHandler) UploadTranscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Segments []summary.Segment `json:"segments"`
		Text     string            `json:"text"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	in := meeting.TranscriptionInput{Segments: req.Segments, Text: req.Text}
	if err := h.notes.UploadTranscription(r.Context(), subject(r), r.PathValue("assetId"), in); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// GetStructuredTranscription handles GET /api/v1/meeting-notes/assets/{assetId}/structured-transcription.
func (h *MeetingHandler) GetStructuredTranscription(w http.ResponseWriter, r *http.Request) {
	segments, err := h.notes.GetStructuredTranscription(r.Context(), subject(r), r.PathValue("assetId"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderList(w, http.StatusOK, segments, nil)
}

// DeleteAsset handles DELETE /api/v1/meeting-notes/assets/{assetId}.
func (h *MeetingHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.DeleteAsset(r.Context(), subject(r), r.PathValue("assetId")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}
