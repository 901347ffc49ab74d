package catalog

import (
	"context"
	"time"
)

// Store reads the active reference data. Implementations return lists in a
// stable order so "first active entry" is deterministic.
type Store interface {
	ActiveDoctors(ctx context.Context) ([]Doctor, error)
	ActiveServices(ctx context.Context) ([]Service, error)
	ActiveBranches(ctx context.Context) ([]Branch, error)
	ActiveOffers(ctx context.Context, at time.Time) ([]Offer, error)
	// AllActiveOffers ignores the date range; callers filter with ValidAt.
	AllActiveOffers(ctx context.Context) ([]Offer, error)
}
