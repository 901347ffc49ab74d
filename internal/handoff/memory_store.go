package handoff

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps handoff records in process. Used when no database is
// configured.
type MemoryStore struct {
	mu         sync.Mutex
	unanswered []UnansweredQuestion
	handoffs   []PendingHandoff
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) RecordUnanswered(_ context.Context, q UnansweredQuestion) error {
	if err := validKey(q.UserID, q.Channel); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unanswered = append(s.unanswered, q)
	return nil
}

func (s *MemoryStore) OpenHandoff(_ context.Context, h PendingHandoff) (PendingHandoff, error) {
	if err := validKey(h.UserID, h.Channel); err != nil {
		return PendingHandoff{}, err
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.handoffs {
		if existing.Status == StatusOpen && existing.UserID == h.UserID && existing.Channel == h.Channel {
			s.handoffs[i].LastMessage = h.LastMessage
			s.handoffs[i].UpdatedAt = now
			return s.handoffs[i], nil
		}
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.Status = StatusOpen
	h.CreatedAt, h.UpdatedAt = now, now
	s.handoffs = append(s.handoffs, h)
	return h, nil
}

func (s *MemoryStore) ListOpen(_ context.Context, limit int) ([]PendingHandoff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PendingHandoff
	for _, h := range s.handoffs {
		if h.Status == StatusOpen {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.handoffs {
		if h.ID == id && h.Status == StatusOpen {
			s.handoffs[i].Status = StatusClosed
			s.handoffs[i].UpdatedAt = s.now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// Unanswered returns a copy of the recorded questions.
func (s *MemoryStore) Unanswered() []UnansweredQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UnansweredQuestion(nil), s.unanswered...)
}
