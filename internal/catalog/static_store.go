package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Snapshot is the on-disk shape of a seeded catalog.
type Snapshot struct {
	Doctors  []Doctor  `json:"doctors"`
	Services []Service `json:"services"`
	Branches []Branch  `json:"branches"`
	Offers   []Offer   `json:"offers"`
}

// StaticStore serves a fixed in-memory catalog. It backs the local chat
// harness and tests.
type StaticStore struct {
	mu   sync.RWMutex
	data Snapshot
}

// NewStaticStore copies snap into a new store.
func NewStaticStore(snap Snapshot) *StaticStore {
	s := &StaticStore{}
	s.Replace(snap)
	return s
}

// LoadStaticStore reads a JSON snapshot from path.
func LoadStaticStore(path string) (*StaticStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("catalog: decode snapshot: %w", err)
	}
	return NewStaticStore(snap), nil
}

// Replace swaps the served catalog.
func (s *StaticStore) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = Snapshot{
		Doctors:  append([]Doctor(nil), snap.Doctors...),
		Services: append([]Service(nil), snap.Services...),
		Branches: append([]Branch(nil), snap.Branches...),
		Offers:   append([]Offer(nil), snap.Offers...),
	}
	names := make(map[string]string, len(s.data.Branches))
	for _, b := range s.data.Branches {
		names[b.ID] = b.Name
	}
	for i, d := range s.data.Doctors {
		if d.BranchID != nil && d.BranchName == "" {
			s.data.Doctors[i].BranchName = names[*d.BranchID]
		}
	}
}

func (s *StaticStore) ActiveDoctors(context.Context) ([]Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterActive(s.data.Doctors, func(d Doctor) bool { return d.IsActive }), nil
}

func (s *StaticStore) ActiveServices(context.Context) ([]Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterActive(s.data.Services, func(v Service) bool { return v.IsActive }), nil
}

func (s *StaticStore) ActiveBranches(context.Context) ([]Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterActive(s.data.Branches, func(b Branch) bool { return b.IsActive }), nil
}

func (s *StaticStore) ActiveOffers(_ context.Context, at time.Time) ([]Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterActive(s.data.Offers, func(o Offer) bool { return o.ValidAt(at) }), nil
}

func (s *StaticStore) AllActiveOffers(context.Context) ([]Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterActive(s.data.Offers, func(o Offer) bool { return o.IsActive }), nil
}

func filterActive[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
