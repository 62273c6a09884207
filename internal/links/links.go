// Package links stores cross-references from training lessons to the
// guidance material and pack sections they support.
package links

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"packready.org/internal/ids"
)

// Kind classifies what a lesson link points at.
type Kind string

const (
	KindGuidance Kind = "guidance"
	KindSection  Kind = "section"
	KindExternal Kind = "external"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindGuidance, KindSection, KindExternal:
		return true
	}
	return false
}

// Link connects a training lesson to a related resource.
type Link struct {
	ID        string    `json:"id"`
	LessonID  string    `json:"lesson_id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	SectionID string    `json:"section_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrInvalidInput = errors.New("links: invalid input")

// Store provides access to lesson links.
type Store interface {
	Add(ctx context.Context, link Link) (Link, error)
	ListByLesson(ctx context.Context, lessonID string) ([]Link, error)
}

// InMemory keeps lesson links in process memory.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[string]Link
	newID func() string
	now   func() time.Time
}

// NewInMemory returns an empty in-memory link store. newID generates
// identifiers for added links; nil falls back to ids.New.
func NewInMemory(newID func() string) *InMemory {
	if newID == nil {
		newID = ids.New
	}
	return &InMemory{
		byID:  make(map[string]Link),
		newID: newID,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Add validates and stores a link, assigning its ID and creation time.
func (s *InMemory) Add(_ context.Context, link Link) (Link, error) {
	link.LessonID = strings.TrimSpace(link.LessonID)
	link.Title = strings.TrimSpace(link.Title)
	if link.LessonID == "" || link.Title == "" || !link.Kind.Valid() {
		return Link{}, ErrInvalidInput
	}
	if link.Kind == KindSection && strings.TrimSpace(link.SectionID) == "" {
		return Link{}, ErrInvalidInput
	}
	if link.Kind != KindSection && strings.TrimSpace(link.URL) == "" {
		return Link{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	link.ID = s.newID()
	link.CreatedAt = s.now()
	s.byID[link.ID] = link
	return link, nil
}

// ListByLesson returns the lesson's links ordered by creation time, then ID.
func (s *InMemory) ListByLesson(_ context.Context, lessonID string) ([]Link, error) {
	lessonID = strings.TrimSpace(lessonID)
	if lessonID == "" {
		return nil, ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Link, 0, 4)
	for _, link := range s.byID {
		if link.LessonID == lessonID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
