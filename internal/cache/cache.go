// Package cache is the shared time-to-live store in front of the upstream adapters.
//
// Values are kept past their ttl for a stale retention window so that a failed
// recompute can fall back to the last live value (stale-while-revalidate). Concurrent
// misses on one key share a single compute; the compute only stops when every caller
// waiting on it has gone away.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/observability"
)

var errNoCompute = errors.New("no compute function configured")

// Key identifies a cached value by upstream source, location and query parameters.
type Key struct {
	Source   string
	Location string
	Params   string
}

func (k Key) String() string {
	return k.Source + "|" + strings.ToLower(strings.TrimSpace(k.Location)) + "|" + k.Params
}

type Config struct {
	StaleRetention  time.Duration
	CleanupInterval time.Duration
}

// Result is a value read through the cache together with how it was obtained.
type Result[T any] struct {
	Value T
	// Hit is true when a fresh entry was served without computing.
	Hit bool
	// Stale is true when the entry is past its ttl and was served because the recompute failed.
	Stale bool
	// Fallback is true when the value came from the fallback function instead of compute.
	Fallback bool
	StoredAt time.Time
	// Err is the compute error that caused a stale or fallback value, if any.
	Err error
}

// Status classifies where the value came from.
func (r Result[T]) Status() locitypes.SourceStatus {
	switch {
	case r.Fallback:
		return locitypes.SourceSynthesized
	case r.Stale:
		return locitypes.SourceStale
	default:
		return locitypes.SourceLive
	}
}

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
	fallback bool
}

func (e entry) freshAt(now time.Time) bool {
	return now.Before(e.storedAt.Add(e.ttl))
}

type outcome struct {
	entry entry
	hit   bool
	stale bool
	cause error
}

type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Store is safe for concurrent use.
type Store struct {
	items          *gocache.Cache
	group          singleflight.Group
	clock          lib.Clock
	logger         *slog.Logger
	staleRetention time.Duration

	mu      sync.Mutex
	flights map[string]*flight
}

func New(cfg Config, clock lib.Clock, logger *slog.Logger) *Store {
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &Store{
		items:          gocache.New(gocache.NoExpiration, cleanup),
		clock:          clock,
		logger:         logger,
		staleRetention: cfg.StaleRetention,
		flights:        make(map[string]*flight),
	}
}

// GetOrCompute returns the fresh cached value for key or computes it.
//
// On compute failure a stale entry holding live data is served with Stale set. Otherwise
// fallback runs inside the same flight and its value is stored with Fallback set, so it is
// produced at most once per entry. A nil compute goes straight to the fallback.
func GetOrCompute[T any](
	ctx context.Context,
	s *Store,
	key Key,
	ttl time.Duration,
	compute func(context.Context) (T, error),
	fallback func() (T, error),
) (Result[T], error) {
	k := key.String()
	if e, ok := s.lookup(k); ok && e.freshAt(s.clock.Now()) {
		if v, ok := e.value.(T); ok {
			observability.RecordCacheLookup(key.Source, "hit")
			return Result[T]{Value: v, Hit: true, Fallback: e.fallback, StoredAt: e.storedAt}, nil
		}
	}

	var computeAny func(context.Context) (any, error)
	if compute != nil {
		computeAny = func(c context.Context) (any, error) {
			v, err := compute(c)
			return v, err
		}
	}
	var fallbackAny func() (any, error)
	if fallback != nil {
		fallbackAny = func() (any, error) {
			v, err := fallback()
			return v, err
		}
	}

	f := s.join(ctx, k)
	ch := s.group.DoChan(k, func() (any, error) {
		o, err := s.run(f.ctx, k, ttl, computeAny, fallbackAny)
		return o, err
	})

	select {
	case res := <-ch:
		s.leave(k, f, false)
		if res.Err != nil {
			observability.RecordCacheLookup(key.Source, "error")
			return Result[T]{}, res.Err
		}
		o := res.Val.(outcome)
		v, ok := o.entry.value.(T)
		if !ok {
			return Result[T]{}, fmt.Errorf("cache entry %s holds %T", k, o.entry.value)
		}
		observability.RecordCacheLookup(key.Source, outcomeLabel(o))
		return Result[T]{
			Value:    v,
			Hit:      o.hit,
			Stale:    o.stale,
			Fallback: o.entry.fallback,
			StoredAt: o.entry.storedAt,
			Err:      o.cause,
		}, nil
	case <-ctx.Done():
		s.leave(k, f, true)
		return Result[T]{}, ctx.Err()
	}
}

func outcomeLabel(o outcome) string {
	switch {
	case o.hit:
		return "hit"
	case o.stale:
		return "stale"
	case o.entry.fallback:
		return "fallback"
	default:
		return "miss"
	}
}

// run executes inside the single flight for k.
func (s *Store) run(
	ctx context.Context,
	k string,
	ttl time.Duration,
	compute func(context.Context) (any, error),
	fallback func() (any, error),
) (outcome, error) {
	if e, ok := s.lookup(k); ok && e.freshAt(s.clock.Now()) {
		return outcome{entry: e, hit: true}, nil
	}

	err := errNoCompute
	if compute != nil {
		var v any
		v, err = compute(ctx)
		if err == nil {
			e := entry{value: v, storedAt: s.clock.Now(), ttl: ttl}
			s.store(k, e)
			return outcome{entry: e}, nil
		}
		if ctx.Err() != nil {
			return outcome{}, fmt.Errorf("compute for %s abandoned: %w", k, err)
		}
	}

	prev, hasPrev := s.lookup(k)
	if hasPrev && !prev.fallback {
		s.logger.Warn("serving stale cache entry",
			slog.String("key", k),
			slog.Duration("age", s.clock.Now().Sub(prev.storedAt)),
			slog.Any("error", err))
		return outcome{entry: prev, stale: true, cause: err}, nil
	}
	if fallback == nil {
		if hasPrev {
			return outcome{entry: prev, stale: true, cause: err}, nil
		}
		return outcome{}, err
	}

	fv, ferr := fallback()
	if ferr != nil {
		return outcome{}, fmt.Errorf("failed to compute fallback for %s: %w", k, errors.Join(err, ferr))
	}
	e := entry{value: fv, storedAt: s.clock.Now(), ttl: ttl, fallback: true}
	s.store(k, e)
	return outcome{entry: e, cause: err}, nil
}

func (s *Store) lookup(k string) (entry, bool) {
	raw, ok := s.items.Get(k)
	if !ok {
		return entry{}, false
	}
	e, ok := raw.(entry)
	if !ok {
		return entry{}, false
	}
	if !s.clock.Now().Before(e.storedAt.Add(e.ttl + s.staleRetention)) {
		return entry{}, false
	}
	return e, true
}

func (s *Store) store(k string, e entry) {
	s.items.Set(k, e, e.ttl+s.staleRetention)
}

// join registers the caller as a waiter on the flight for k. The flight context is
// detached from the caller so one caller leaving cannot cancel the others.
func (s *Store) join(ctx context.Context, k string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[k]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[k] = f
	}
	f.waiters++
	return f
}

func (s *Store) leave(k string, f *flight, abandoned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if cur, ok := s.flights[k]; ok && cur == f {
		delete(s.flights, k)
	}
	if abandoned {
		s.group.Forget(k)
	}
	f.cancel()
}

// Delete drops the entry for key.
func (s *Store) Delete(key Key) {
	s.items.Delete(key.String())
}

// Flush drops every entry.
func (s *Store) Flush() {
	s.items.Flush()
}

// Len reports the number of entries, expired ones included until cleanup runs.
func (s *Store) Len() int {
	return s.items.ItemCount()
}
