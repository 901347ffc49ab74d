package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCacheTTL = 5 * time.Minute
	cacheKeyPrefix  = "catalog:"
)

// CachedStore is a read-through Redis cache in front of another Store.
// Cache faults never fail a read; they fall through to the inner store.
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *slog.Logger
}

// NewCachedStore wraps inner with a Redis cache. A non-positive ttl uses the
// default of five minutes.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if inner == nil {
		panic("catalog: inner store required")
	}
	if client == nil {
		panic("catalog: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		inner:  inner,
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinicbot.internal.catalog.cache"),
		logger: logger,
	}
}

func (s *CachedStore) ActiveDoctors(ctx context.Context) ([]Doctor, error) {
	return readThrough(ctx, s, "doctors", s.inner.ActiveDoctors)
}

func (s *CachedStore) ActiveServices(ctx context.Context) ([]Service, error) {
	return readThrough(ctx, s, "services", s.inner.ActiveServices)
}

func (s *CachedStore) ActiveBranches(ctx context.Context) ([]Branch, error) {
	return readThrough(ctx, s, "branches", s.inner.ActiveBranches)
}

// ActiveOffers caches every active offer regardless of dates and applies the
// date range on each read, so an offer that starts or ends mid-TTL shows up
// or disappears on time.
func (s *CachedStore) ActiveOffers(ctx context.Context, at time.Time) ([]Offer, error) {
	offers, err := s.AllActiveOffers(ctx)
	if err != nil {
		return nil, err
	}
	valid := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.ValidAt(at) {
			valid = append(valid, o)
		}
	}
	return valid, nil
}

func (s *CachedStore) AllActiveOffers(ctx context.Context) ([]Offer, error) {
	return readThrough(ctx, s, "offers", s.inner.AllActiveOffers)
}

// Invalidate drops every cached catalog list.
func (s *CachedStore) Invalidate(ctx context.Context) error {
	keys := []string{"doctors", "services", "branches", "offers"}
	for i, k := range keys {
		keys[i] = cacheKeyPrefix + k
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate cache: %w", err)
	}
	return nil
}

func readThrough[T any](ctx context.Context, s *CachedStore, name string, load func(context.Context) ([]T, error)) ([]T, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.cache."+name)
	defer span.End()

	key := cacheKeyPrefix + name
	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []T
		jsonErr := json.Unmarshal(data, &cached)
		if jsonErr == nil {
			return cached, nil
		}
		span.RecordError(jsonErr)
		s.logger.Warn("catalog cache entry undecodable", "key", key, "error", jsonErr)
	case errors.Is(err, redis.Nil):
	default:
		span.RecordError(err)
		s.logger.Warn("catalog cache read failed", "key", key, "error", err)
	}

	items, err := load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	payload, err := json.Marshal(items)
	if err != nil {
		span.RecordError(err)
		return items, nil
	}
	if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		span.RecordError(err)
		s.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return items, nil
}
