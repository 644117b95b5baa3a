package meeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
)

// CommentAuthor is the author of a comment.
type CommentAuthor struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Avatar    *string `json:"avatar"`
}

// Comment is the API view of a comment. Replies are set on top-level
// comments only.
type Comment struct {
	ID                  string            `json:"id"`
	MeetingNoteID       string            `json:"meetingNoteId"`
	ParentID            *string           `json:"parentId"`
	Content             string            `json:"content"`
	From                *int              `json:"from"`
	To                  *int              `json:"to"`
	EditorDataCommentID *string           `json:"editorDataCommentId"`
	Type                model.CommentPage `json:"type"`
	Resolved            bool              `json:"resolved"`
	Author              CommentAuthor     `json:"author"`
	Replies             []Comment         `json:"replies,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// CommentInput is the payload of a new comment or reply.
type CommentInput struct {
	Content             string
	From                *int
	To                  *int
	EditorDataCommentID *string
	Type                model.CommentPage
}

// CommentUpdate is a partial comment update.
type CommentUpdate struct {
	Content             *string
	From                *int
	To                  *int
	EditorDataCommentID *string
	Type                *model.CommentPage
	Resolved            *bool
}

func validPage(p model.CommentPage) bool {
	return p == model.CommentBefore || p == model.CommentAfter
}

func (in *CommentInput) validate() error {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return apperr.Validation("content must not be empty")
	}
	if !validPage(in.Type) {
		return apperr.Validation("type must be before or after")
	}
	return nil
}

// commentAccess loads a note whose comments the requester may read and
// write: the author and in-system participants.
func (s *Service) commentAccess(ctx context.Context, by policy.Subject, noteID string) (*model.MeetingNote, error) {
	n, err := s.find(ctx, by.CompanyID, noteID)
	if err != nil {
		return nil, err
	}
	rel, err := s.relationship(ctx, n, by.UserID)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(rel, false).Allowed {
		return nil, apperr.NotAllowedMeetingNote()
	}
	return n, nil
}

// CreateComment adds a top-level comment to a note.
func (s *Service) CreateComment(ctx context.Context, by policy.Subject, noteID string, in CommentInput) (*Comment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n, err := s.commentAccess(ctx, by, noteID)
	if err != nil {
		return nil, err
	}
	return s.insertComment(ctx, by, n.ID, nil, in)
}

// CreateReply answers a comment of the same note. Replying to a reply adds
// to its thread.
func (s *Service) CreateReply(ctx context.Context, by policy.Subject, noteID, parentID string, in CommentInput) (*Comment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var parent model.MeetingComment
	err := s.db.WithContext(ctx).First(&parent, "id = ? AND meeting_note_id = ?", parentID, noteID).Error
	if db.IsNotFound(err) {
		return nil, apperr.ParentCommentNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load parent comment: %w", err)
	}
	n, err := s.commentAccess(ctx, by, noteID)
	if err != nil {
		return nil, err
	}
	root := parent.ID
	if parent.ParentID != nil {
		root = *parent.ParentID
	}
	return s.insertComment(ctx, by, n.ID, &root, in)
}

func (s *Service) insertComment(ctx context.Context, by policy.Subject, noteID string, parentID *string, in CommentInput) (*Comment, error) {
	c := model.MeetingComment{
		MeetingNoteID:       noteID,
		AuthorID:            by.UserID,
		ParentID:            parentID,
		Content:             in.Content,
		From:                in.From,
		To:                  in.To,
		EditorDataCommentID: in.EditorDataCommentID,
		Type:                in.Type,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	views, err := s.commentViews(ctx, []model.MeetingComment{c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListComments returns the threads of a note oldest first, optionally only
// those of one page.
func (s *Service) ListComments(ctx context.Context, by policy.Subject, noteID string, page model.CommentPage) ([]Comment, error) {
	if page != "" && !validPage(page) {
		return nil, apperr.Validation("type must be before or after")
	}
	n, err := s.commentAccess(ctx, by, noteID)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("meeting_note_id = ? AND parent_id IS NULL", n.ID)
	if page != "" {
		q = q.Where("type = ?", page)
	}
	var top []model.MeetingComment
	if err := q.Order("created_at").Find(&top).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if len(top) == 0 {
		return []Comment{}, nil
	}
	ids := make([]string, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}
	var replies []model.MeetingComment
	if err := s.db.WithContext(ctx).
		Where("parent_id IN ?", ids).
		Order("created_at").
		Find(&replies).Error; err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}

	threads, err := s.commentViews(ctx, top)
	if err != nil {
		return nil, err
	}
	answers, err := s.commentViews(ctx, replies)
	if err != nil {
		return nil, err
	}
	byParent := make(map[string][]Comment)
	for _, r := range answers {
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}
	for i := range threads {
		threads[i].Replies = orEmpty(byParent[threads[i].ID])
	}
	return threads, nil
}

// comment loads a comment on a note of companyID.
func (s *Service) comment(ctx context.Context, companyID, id string) (*model.MeetingComment, *model.MeetingNote, error) {
	var c model.MeetingComment
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, nil, apperr.CommentNotFound()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load comment: %w", err)
	}
	n, err := s.find(ctx, companyID, c.MeetingNoteID)
	if err != nil {
		return nil, nil, err
	}
	return &c, n, nil
}

// UpdateComment edits the requester's own comment.
func (s *Service) UpdateComment(ctx context.Context, by policy.Subject, id string, in CommentUpdate) (*Comment, error) {
	c, _, err := s.comment(ctx, by.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != by.UserID {
		return nil, apperr.NotYourComment()
	}
	values := map[string]any{}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, apperr.Validation("content must not be empty")
		}
		values["content"] = content
	}
	if in.From != nil {
		values["from_pos"] = *in.From
	}
	if in.To != nil {
		values["to_pos"] = *in.To
	}
	if in.EditorDataCommentID != nil {
		values["editor_data_comment_id"] = *in.EditorDataCommentID
	}
	if in.Type != nil {
		if !validPage(*in.Type) {
			return nil, apperr.Validation("type must be before or after")
		}
		values["type"] = *in.Type
	}
	if in.Resolved != nil {
		values["resolved"] = *in.Resolved
	}
	if len(values) == 0 {
		return nil, apperr.NoFieldsToUpdate()
	}
	values["updated_at"] = s.now()
	if err := s.db.WithContext(ctx).Model(&model.MeetingComment{}).Where("id = ?", c.ID).Updates(values).Error; err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if err := s.db.WithContext(ctx).First(c, "id = ?", c.ID).Error; err != nil {
		return nil, fmt.Errorf("reload comment: %w", err)
	}
	views, err := s.commentViews(ctx, []model.MeetingComment{*c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DeleteComment removes a comment and its replies. The comment author and
// the note author may do it.
func (s *Service) DeleteComment(ctx context.Context, by policy.Subject, id string) error {
	c, n, err := s.comment(ctx, by.CompanyID, id)
	if err != nil {
		return err
	}
	if c.AuthorID != by.UserID && n.AuthorID != by.UserID {
		return apperr.NotYourComment()
	}
	if err := s.db.WithContext(ctx).
		Where("id = ? OR parent_id = ?", c.ID, c.ID).
		Delete(&model.MeetingComment{}).Error; err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *Service) commentViews(ctx context.Context, comments []model.MeetingComment) ([]Comment, error) {
	ids := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.AuthorID
	}
	users, err := member.LoadUsers(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Comment, len(comments))
	for i, c := range comments {
		u := users[c.AuthorID]
		out[i] = Comment{
			ID:                  c.ID,
			MeetingNoteID:       c.MeetingNoteID,
			ParentID:            c.ParentID,
			Content:             c.Content,
			From:                c.From,
			To:                  c.To,
			EditorDataCommentID: c.EditorDataCommentID,
			Type:                c.Type,
			Resolved:            c.Resolved,
			Author:              CommentAuthor{ID: c.AuthorID, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar},
			CreatedAt:           c.CreatedAt,
			UpdatedAt:           c.UpdatedAt,
		}
	}
	return out, nil
}
