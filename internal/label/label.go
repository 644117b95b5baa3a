// Package label manages the company-scoped labels attached to meeting notes.
package label

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"gorm.io/gorm"
)

const maxNameLen = 20

// Service implements label CRUD.
type Service struct {
	db *gorm.DB
}

// NewService creates a Service.
func NewService(gdb *gorm.DB) *Service {
	return &Service{db: gdb}
}

// Label is the API view of a label.
type Label struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CompanyID string    `json:"companyId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List is a page of labels.
type List struct {
	Labels []Label `json:"labels"`
	Total  int64   `json:"total"`
}

// Query filters List.
type Query struct {
	Search string
	db.Page
}

func view(l *model.Label) *Label {
	return &Label{ID: l.ID, Name: l.Name, CompanyID: l.CompanyID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
}

func validName(name string) error {
	if name == "" || len([]rune(name)) > maxNameLen {
		return apperr.Validation(fmt.Sprintf("name must be between 1 and %d characters", maxNameLen))
	}
	return nil
}

func (s *Service) nameTaken(ctx context.Context, companyID, name, except string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.Label{}).Where("company_id = ? AND name = ?", companyID, name)
	if except != "" {
		q = q.Where("id <> ?", except)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check label name: %w", err)
	}
	return n > 0, nil
}

// Create adds a label to the requester's company.
func (s *Service) Create(ctx context.Context, by policy.Subject, name string) (*Label, error) {
	name = strings.TrimSpace(name)
	if err := validName(name); err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(ctx, by.CompanyID, name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.LabelNameExists()
	}
	l := &model.Label{CompanyID: by.CompanyID, Name: name}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, fmt.Errorf("create label: %w", err)
	}
	return view(l), nil
}

// List returns the company's labels ordered by name.
func (s *Service) List(ctx context.Context, by policy.Subject, q Query) (*List, error) {
	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&model.Label{}).Where("company_id = ?", by.CompanyID)
		if strings.TrimSpace(q.Search) != "" {
			tx = tx.Where("LOWER(name) LIKE ?", db.Like(q.Search))
		}
		return tx
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count labels: %w", err)
	}
	var rows []model.Label
	if err := base().Scopes(q.Page.Scope(10)).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	out := &List{Labels: make([]Label, 0, len(rows)), Total: total}
	for i := range rows {
		out.Labels = append(out.Labels, *view(&rows[i]))
	}
	return out, nil
}

// Get returns one label of the requester's company.
func (s *Service) Get(ctx context.Context, by policy.Subject, id string) (*Label, error) {
	l, err := s.authorize(ctx, by, id)
	if err != nil {
		return nil, err
	}
	return view(l), nil
}

// Rename changes the label name.
func (s *Service) Rename(ctx context.Context, by policy.Subject, id, name string) (*Label, error) {
	l, err := s.authorize(ctx, by, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validName(name); err != nil {
		return nil, err
	}
	taken, err := s.nameTaken(ctx, by.CompanyID, name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.LabelNameExists()
	}
	if err := s.db.WithContext(ctx).Model(l).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("rename label: %w", err)
	}
	l.Name = name
	return view(l), nil
}

// Delete removes the label and detaches it from every note.
func (s *Service) Delete(ctx context.Context, by policy.Subject, id string) error {
	if _, err := s.authorize(ctx, by, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("label_id = ?", id).Delete(&model.MeetingNoteLabel{}).Error; err != nil {
			return fmt.Errorf("detach label: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Label{}).Error; err != nil {
			return fmt.Errorf("delete label: %w", err)
		}
		return nil
	})
}

func (s *Service) authorize(ctx context.Context, by policy.Subject, id string) (*model.Label, error) {
	var l model.Label
	err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if db.IsNotFound(err) {
		return nil, apperr.LabelNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load label: %w", err)
	}
	if l.CompanyID != by.CompanyID {
		return nil, apperr.NotAllowed()
	}
	return &l, nil
}
