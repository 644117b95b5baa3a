package handler

import (
	"net/http"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/model"
)

type commentRequest struct {
	Content             string            `json:"content"`
	From                *int              `json:"from"`
	To                  *int              `json:"to"`
	EditorDataCommentID *string           `json:"editorDataCommentId"`
	Type                model.CommentPage `json:"type"`
}

func (c commentRequest) input() meeting.CommentInput {
	return meeting.CommentInput{
		Content:             c.Content,
		From:                c.From,
		To:                  c.To,
		EditorDataCommentID: c.EditorDataCommentID,
		Type:                c.Type,
	}
}

// CreateComment handles POST /api/v1/meeting-notes/{id}/comments.
func (h *MeetingHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	c, err := h.notes.CreateComment(r.Context(), subject(r), r.PathValue("id"), req.input())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, c)
}

// CreateReply handles POST /api/v1/meeting-notes/{id}/comments/{commentId}/replies.
func (h *MeetingHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	c, err := h.notes.CreateReply(r.Context(), subject(r), r.PathValue("id"), r.PathValue("commentId"), req.input())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, c)
}

// ListComments handles GET /api/v1/meeting-notes/{id}/comments.
func (h *MeetingHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	page := model.CommentPage(newParams(r).str("type"))
	threads, err := h.notes.ListComments(r.Context(), subject(r), r.PathValue("id"), page)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderList(w, http.StatusOK, threads, jsonapi.Meta{"total": len(threads)})
}

// UpdateComment handles PATCH /api/v1/meeting-notes/comments/{commentId}.
func (h *MeetingHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content             *string            `json:"content"`
		From                *int               `json:"from"`
		To                  *int               `json:"to"`
		EditorDataCommentID *string            `json:"editorDataCommentId"`
		Type                *model.CommentPage `json:"type"`
		Resolved            *bool              `json:"resolved"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	c, err := h.notes.UpdateComment(r.Context(), subject(r), r.PathValue("commentId"), meeting.CommentUpdate{
		Content:             req.Content,
		From:                req.From,
		To:                  req.To,
		EditorDataCommentID: req.EditorDataCommentID,
		Type:                req.Type,
		Resolved:            req.Resolved,
	})
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, c)
}

// DeleteComment handles DELETE /api/v1/meeting-notes/comments/{commentId}.
func (h *MeetingHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.DeleteComment(r.Context(), subject(r), r.PathValue("commentId")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}
