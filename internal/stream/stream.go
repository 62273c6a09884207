// Package stream fans out activity events to connected clients so the
// workspace UI can refresh readiness and plan views without polling.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event kinds published by the HTTP layer after successful mutations.
const (
	KindPackCreated     = "pack.created"
	KindPackSynced      = "pack.synced"
	KindResponseSaved   = "response.saved"
	KindGateChanged     = "gate.changed"
	KindEvidenceUpdated = "evidence.updated"
	KindPlanGenerated   = "plan.generated"
)

// ActivityEvent describes a change to a pack or project workspace.
type ActivityEvent struct {
	Kind      string    `json:"kind"`
	OrgID     string    `json:"org_id"`
	PackID    string    `json:"pack_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	SectionID string    `json:"section_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs activity events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch    chan ActivityEvent
	orgID string
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber scoped to one organization and returns a
// channel which will receive its events. The channel is closed when the
// provided context ends.
func (s *Stream) Subscribe(ctx context.Context, orgID string) <-chan ActivityEvent {
	ch := make(chan ActivityEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{ch: ch, orgID: orgID}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers of the event's organization.
func (s *Stream) Publish(evt ActivityEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.orgID != evt.OrgID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
