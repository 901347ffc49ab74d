package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps turns in process memory. It is used by the local
// harness and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	turns map[string][]Turn
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{turns: make(map[string][]Turn), now: time.Now}
}

func (r *MemoryRepository) Load(_ context.Context, userID, channel string, limit int) (Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.turns[memoryKey(userID, channel)]
	return append(Window(nil), Window(all).Last(limit)...), nil
}

func (r *MemoryRepository) Append(_ context.Context, turn Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := memoryKey(turn.UserID, turn.Channel)
	r.turns[key] = append(r.turns[key], turn)
	return nil
}

// Count returns how many turns exist for the pair.
func (r *MemoryRepository) Count(userID, channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.turns[memoryKey(userID, channel)])
}

func memoryKey(userID, channel string) string {
	return channel + "|" + userID
}
