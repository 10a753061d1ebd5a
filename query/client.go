package query

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"safespace/services"
)

// Status is the lifecycle of one cached read as seen by the view layer.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is the current status of a key. Err is set in StatusError.
type State struct {
	Status    Status
	Err       error
	UpdatedAt time.Time
}

// Options configures a Client.
type Options struct {
	// StaleTime is how long a cached result is served without refetching.
	// Zero refetches on every read.
	StaleTime time.Duration
}

// keyState guards writes for one key. generation moves on invalidation;
// issued and written order the requests made under it.
type keyState struct {
	mu         sync.Mutex
	generation uint64
	issued     uint64
	written    uint64
	state      State
}

// Client binds reads to the cache and mutations to the invalidation table.
type Client struct {
	cache     Cache
	staleTime time.Duration
	group     singleflight.Group
	keys      *xsync.MapOf[string, *keyState]
	now       func() time.Time
	logger    *zap.Logger
}

// NewClient creates a query client over cache.
func NewClient(cache Cache, opts Options, logger *zap.Logger) *Client {
	return &Client{
		cache:     cache,
		staleTime: opts.StaleTime,
		keys:      xsync.NewMapOf[string, *keyState](),
		now:       time.Now,
		logger:    logger.Named("query"),
	}
}

// WithClock replaces the clock used for freshness checks.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) key(k string) *keyState {
	ks, _ := c.keys.LoadOrCompute(k, func() *keyState {
		return &keyState{state: State{Status: StatusIdle}}
	})
	return ks
}

// State returns the current status of key.
func (c *Client) State(key Key) State {
	ks, ok := c.keys.Load(key.String())
	if !ok {
		return State{Status: StatusIdle}
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.state
}

// Fetch serves key from the cache while fresh and otherwise runs load.
// Concurrent fetches of the same key share one load. A result is cached
// only if the key was not invalidated meanwhile and no later request has
// already written.
func Fetch[T any](ctx context.Context, c *Client, key Key, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	k := key.String()
	ks := c.key(k)

	if value, ok := c.fresh(ctx, k); ok {
		var out T
		if err := sonic.Unmarshal(value, &out); err == nil {
			return out, nil
		}
		c.logger.Warn("Refetching undecodable cache entry", zap.String("key", k))
	}

	ks.mu.Lock()
	gen := ks.generation
	ks.mu.Unlock()

	// Loads started before an invalidation are not joined by later reads.
	flightKey := k + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), k, ks, gen, func(ctx context.Context) (any, error) {
			return load(ctx)
		})
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		var out T
		if err := sonic.Unmarshal(res.Val.([]byte), &out); err != nil {
			return zero, err
		}
		return out, nil
	}
}

// fresh returns the cached value if it is younger than the stale time.
func (c *Client) fresh(ctx context.Context, k string) ([]byte, bool) {
	if c.staleTime <= 0 {
		return nil, false
	}
	entry, ok, err := c.cache.Get(ctx, k)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", k), zap.Error(err))
		return nil, false
	}
	if !ok || c.now().Sub(entry.StoredAt) >= c.staleTime {
		return nil, false
	}
	return entry.Value, true
}

func (c *Client) load(
	ctx context.Context, k string, ks *keyState, gen uint64, load func(ctx context.Context) (any, error),
) ([]byte, error) {
	ks.mu.Lock()
	ks.issued++
	seq := ks.issued
	ks.state = State{Status: StatusLoading, UpdatedAt: c.now()}
	ks.mu.Unlock()

	value, err := load(ctx)
	var data []byte
	if err == nil {
		data, err = sonic.Marshal(value)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	current := gen == ks.generation && seq > ks.written
	if err != nil {
		if current && seq == ks.issued {
			ks.state = State{Status: StatusError, Err: err, UpdatedAt: c.now()}
		}
		return nil, err
	}
	if !current {
		c.logger.Debug("Discarding superseded result",
			zap.String("key", k),
			zap.Uint64("generation", gen),
			zap.Uint64("seq", seq))
		return data, nil
	}

	ks.written = seq
	ks.state = State{Status: StatusSuccess, UpdatedAt: c.now()}
	if err := c.cache.Set(ctx, k, Entry{Value: data, StoredAt: c.now()}); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", k), zap.Error(err))
	}
	return data, nil
}

// Invalidate drops every cached read of ops and moves their keys to a new
// generation so that in-flight loads cannot write back.
func (c *Client) Invalidate(ctx context.Context, ops ...Op) error {
	var errs []error
	for _, op := range ops {
		prefix := op.prefix()
		c.keys.Range(func(k string, ks *keyState) bool {
			if strings.HasPrefix(k, prefix) {
				ks.mu.Lock()
				ks.generation++
				ks.written = 0
				ks.issued = 0
				ks.state = State{Status: StatusIdle, UpdatedAt: c.now()}
				ks.mu.Unlock()
			}
			return true
		})
		if err := c.cache.DeletePrefix(ctx, prefix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Mutate runs fn and, when it succeeds, invalidates the reads listed for m.
// A partial write still changed the store, so it invalidates too.
func Mutate[T any](ctx context.Context, c *Client, m Mutation, fn func(ctx context.Context) (T, error)) (T, error) {
	out, err := fn(ctx)

	var partial *services.PartialWriteError
	if err != nil && !errors.As(err, &partial) {
		return out, err
	}

	if invErr := c.Invalidate(ctx, invalidations[m]...); invErr != nil {
		c.logger.Warn("Failed to invalidate cached reads",
			zap.String("mutation", string(m)),
			zap.Error(invErr))
	}
	return out, err
}
