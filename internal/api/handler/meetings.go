package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/model"
)

// MeetingHandler handles /api/v1/meeting-notes/*, shared-meeting-notes and
// public-meeting-notes routes.
type MeetingHandler struct {
	notes *meeting.Service
	log   *slog.Logger
}

// NewMeetingHandler creates a MeetingHandler.
func NewMeetingHandler(notes *meeting.Service, log *slog.Logger) *MeetingHandler {
	return &MeetingHandler{notes: notes, log: log}
}

type recurringRequest struct {
	Name      string `json:"name"`
	RRuleData string `json:"rruleData"`
}

type createNoteRequest struct {
	Name                  string             `json:"name"`
	Type                  model.MeetingType  `json:"type"`
	Area                  *model.MeetingArea `json:"area"`
	Location              *string            `json:"location"`
	StartDate             time.Time          `json:"startDate"`
	EndDate               time.Time          `json:"endDate"`
	AdditionalBlocks      json.RawMessage    `json:"additionalBlocks"`
	AdditionalBlocksAfter json.RawMessage    `json:"additionalBlocksAfter"`
	ParticipantsInSystem  []string           `json:"participantsInSystem"`
	ParticipantsOutSystem []string           `json:"participantsOutSystem"`
	LabelIDs              []string           `json:"labelIds"`
	Recurring             *recurringRequest  `json:"recurring"`
}

func (c createNoteRequest) input() meeting.CreateInput {
	in := meeting.CreateInput{
		Name:                  c.Name,
		Type:                  c.Type,
		Area:                  c.Area,
		Location:              c.Location,
		StartDate:             c.StartDate,
		EndDate:               c.EndDate,
		AdditionalBlocks:      c.AdditionalBlocks,
		AdditionalBlocksAfter: c.AdditionalBlocksAfter,
		ParticipantsInSystem:  c.ParticipantsInSystem,
		ParticipantsOutSystem: c.ParticipantsOutSystem,
		LabelIDs:              c.LabelIDs,
	}
	if c.Recurring != nil {
		in.Recurring = &meeting.RecurringInput{Name: c.Recurring.Name, RRuleData: c.Recurring.RRuleData}
	}
	return in
}

type participantRequest struct {
	UserID string                  `json:"userId"`
	Status model.ParticipantStatus `json:"status"`
}

type externalRequest struct {
	Email  string                  `json:"email"`
	Status model.ParticipantStatus `json:"status"`
}

type updateNoteRequest struct {
	Name                  *string               `json:"name"`
	Type                  *model.MeetingType    `json:"type"`
	Area                  *model.MeetingArea    `json:"area"`
	Location              *string               `json:"location"`
	StartDate             *time.Time            `json:"startDate"`
	EndDate               *time.Time            `json:"endDate"`
	AdditionalBlocks      json.RawMessage       `json:"additionalBlocks"`
	AdditionalBlocksAfter json.RawMessage       `json:"additionalBlocksAfter"`
	IsHidden              *bool                 `json:"isHidden"`
	ParticipantsInSystem  *[]participantRequest `json:"participantsInSystem"`
	ParticipantsOutSystem *[]externalRequest    `json:"participantsOutSystem"`
	Shares                *[]string             `json:"shares"`
	LabelIDs              *[]string             `json:"labelIds"`
}

func (u updateNoteRequest) input() meeting.UpdateInput {
	in := meeting.UpdateInput{
		Name:                  u.Name,
		Type:                  u.Type,
		Area:                  u.Area,
		Location:              u.Location,
		StartDate:             u.StartDate,
		EndDate:               u.EndDate,
		AdditionalBlocks:      u.AdditionalBlocks,
		AdditionalBlocksAfter: u.AdditionalBlocksAfter,
		IsHidden:              u.IsHidden,
		Shares:                u.Shares,
		LabelIDs:              u.LabelIDs,
	}
	if u.ParticipantsInSystem != nil {
		ps := make([]meeting.ParticipantInput, len(*u.ParticipantsInSystem))
		for i, p := range *u.ParticipantsInSystem {
			ps[i] = meeting.ParticipantInput{UserID: p.UserID, Status: p.Status}
		}
		in.ParticipantsInSystem = &ps
	}
	if u.ParticipantsOutSystem != nil {
		es := make([]meeting.ExternalInput, len(*u.ParticipantsOutSystem))
		for i, e := range *u.ParticipantsOutSystem {
			es[i] = meeting.ExternalInput{Email: e.Email, Status: e.Status}
		}
		in.ParticipantsOutSystem = &es
	}
	return in
}

// periodRequest bounds the occurrences a series operation touches.
type periodRequest struct {
	StartDatePeriod *string `json:"startDatePeriod"`
	EndDatePeriod   *string `json:"endDatePeriod"`
}

func (p periodRequest) window() (meeting.Window, error) {
	var w meeting.Window
	if p.StartDatePeriod != nil {
		t, err := time.Parse(time.RFC3339, *p.StartDatePeriod)
		if err != nil {
			return w, apperr.InvalidStartDatePeriod()
		}
		w.Start = &t
	}
	if p.EndDatePeriod != nil {
		t, err := time.Parse(time.RFC3339, *p.EndDatePeriod)
		if err != nil {
			return w, apperr.InvalidEndDatePeriod()
		}
		w.End = &t
	}
	return w, nil
}

// Create handles POST /api/v1/meeting-notes.
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	n, err := h.notes.Create(r.Context(), subject(r), req.input())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, n)
}

// List handles GET /api/v1/meeting-notes.
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	p := newParams(r)
	q := meeting.Query{
		Scope:                 meeting.Scope(p.str("scope")),
		Types:                 as[model.MeetingType](p.list("type")),
		StartDate:             p.time("startDate"),
		EndDate:               p.time("endDate"),
		ParticipantsOutSystem: p.list("participantsOutSystem"),
		ParticipantsInSystem:  p.list("participantsInSystem"),
		Labels:                p.list("labels"),
		Search:                p.str("search"),
		InteractionStatuses:   as[model.InteractionStatus](p.list("interactionStatus")),
		IsHidden:              p.bool("isHidden"),
		Page:                  p.page(),
	}
	if p.err != nil {
		renderError(w, h.log, r, p.err)
		return
	}
	list, err := h.notes.List(r.Context(), subject(r), q)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, list)
}

// Get handles GET /api/v1/meeting-notes/{id}.
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.Get(r.Context(), subject(r), r.PathValue("id"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, n)
}

// GetShared handles GET /api/v1/shared-meeting-notes/{id}.
func (h *MeetingHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.GetShared(r.Context(), subject(r), r.PathValue("id"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, n)
}

// GetPublic handles GET /api/v1/public-meeting-notes/{slug}.
func (h *MeetingHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.GetPublic(r.Context(), r.PathValue("slug"))
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, n)
}

// Update handles PATCH /api/v1/meeting-notes/{id}.
func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateNoteRequest
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	n, err := h.notes.Update(r.Context(), subject(r), r.PathValue("id"), req.input())
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, n)
}

// Delete handles DELETE /api/v1/meeting-notes/{id}.
func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), subject(r), r.PathValue("id")); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// UpdateRecurring handles PATCH /api/v1/meeting-notes/recurring/{id}.
func (h *MeetingHandler) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		periodRequest
		UpdateData *updateNoteRequest `json:"updateData"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	win, err := req.window()
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	var in meeting.UpdateInput
	if req.UpdateData != nil {
		in = req.UpdateData.input()
	}
	if err := h.notes.UpdateRecurring(r.Context(), subject(r), r.PathValue("id"), win, in); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// DeleteRecurring handles DELETE /api/v1/meeting-notes/recurring/{id}. The
// body is optional.
func (h *MeetingHandler) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			renderError(w, h.log, r, err)
			return
		}
	}
	win, err := req.window()
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	if err := h.notes.DeleteRecurring(r.Context(), subject(r), r.PathValue("id"), win); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	noContent(w)
}

// Action handles PATCH /api/v1/meeting-notes/{id}/{action}. It shares its
// pattern shape with recurring/{id}, which the mux resolves first.
func (h *MeetingHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("action") {
	case "public-share":
		h.TogglePublicSharing(w, r)
	default:
		jsonapi.RenderError(w, http.StatusNotFound, "not_found", "Not Found", "no route for "+r.URL.Path)
	}
}

// TogglePublicSharing handles PATCH /api/v1/meeting-notes/{id}/public-share.
func (h *MeetingHandler) TogglePublicSharing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsPublic *bool  `json:"isPublic"`
		Locale   string `json:"locale"`
	}
	if err := decode(w, r, &req); err != nil {
		renderError(w, h.log, r, err)
		return
	}
	if req.IsPublic == nil {
		renderError(w, h.log, r, apperr.Validation("isPublic is required"))
		return
	}
	share, err := h.notes.TogglePublicSharing(r.Context(), subject(r), r.PathValue("id"), *req.IsPublic, req.Locale)
	if err != nil {
		renderError(w, h.log, r, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, share)
}
