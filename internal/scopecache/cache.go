package scopecache

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/danpasecinic/tether/internal/weakref"
)

var (
	ErrScopeReleased = errors.New("scope released while its dependency was being created")
	ErrDisposeFailed = errors.New("dispose failed")
)

type Factory func() (any, error)

type Disposable interface {
	Dispose() error
}

type DisposeFunc func(key string, instance any) error

type DisposeHook func(key string, err error)

type PruneHook func(pruned int, duration time.Duration, err error)

type Config struct {
	Logger    *slog.Logger
	Dispose   DisposeFunc
	OnDispose []DisposeHook
	OnPrune   []PruneHook

	// NotifyOnCollect registers a collection callback on every creator that
	// gets a scope; Collected() receives a signal when one fires.
	NotifyOnCollect bool
}

type Stats struct {
	Scopes   int
	Entries  int
	Created  uint64
	Disposed uint64
	Pruned   uint64
}

type Cache struct {
	mu     sync.Mutex
	scopes map[weakref.Ref]*scope
	nextID uint64
	group  singleflight.Group

	logger    *slog.Logger
	dispose   DisposeFunc
	onDispose []DisposeHook
	onPrune   []PruneHook

	notify    bool
	collected chan struct{}

	created  atomic.Uint64
	disposed atomic.Uint64
	pruned   atomic.Uint64
}

type scope struct {
	id       uint64
	ref      weakref.Ref
	entries  map[string]*entry
	order    []*entry
	released bool
	// pending counts callers between lookup and the end of their flight.
	pending int
}

type entry struct {
	key      string
	instance any
	disposed bool
}

func New(cfg *Config) *Cache {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dispose := cfg.Dispose
	if dispose == nil {
		dispose = func(_ string, instance any) error {
			return DisposeInstance(instance)
		}
	}

	return &Cache{
		scopes:    make(map[weakref.Ref]*scope),
		logger:    logger,
		dispose:   dispose,
		onDispose: cfg.OnDispose,
		onPrune:   cfg.OnPrune,
		notify:    cfg.NotifyOnCollect,
		collected: make(chan struct{}, 1),
	}
}

func DisposeInstance(instance any) error {
	switch d := instance.(type) {
	case Disposable:
		return d.Dispose()
	case io.Closer:
		return d.Close()
	default:
		return nil
	}
}

// ResolveOrCreate returns the instance stored for (creator, key), building it
// with factory on first use. Concurrent first requests share one factory call.
// factory runs without the cache lock held and must not resolve the same
// (creator, key) pair.
func (c *Cache) ResolveOrCreate(creator any, key string, factory Factory) (any, error) {
	ref, err := weakref.Make(creator)
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(creator)

	s, instance, found := c.lookup(ref, creator, key)
	if found {
		return instance, nil
	}

	defer c.settle(s)

	v, err, _ := c.group.Do(
		flightKey(s.id, key), func() (any, error) {
			if instance, ok := c.get(s, key); ok {
				return instance, nil
			}

			instance, err := factory()
			if err != nil {
				return nil, err
			}

			if err := c.store(s, key, instance); err != nil {
				if derr := c.disposeEntry(&entry{key: key, instance: instance}); derr != nil {
					err = multierr.Append(err, derr)
				}
				return nil, err
			}

			return instance, nil
		},
	)
	return v, err
}

// Lookup returns the stored instance without creating one.
func (c *Cache) Lookup(creator any, key string) (any, bool) {
	ref, err := weakref.Make(creator)
	if err != nil {
		return nil, false
	}
	defer runtime.KeepAlive(creator)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.scopes[ref]
	if !ok {
		return nil, false
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.instance, true
}

func (c *Cache) lookup(ref weakref.Ref, creator any, key string) (*scope, any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.scopes[ref]; ok {
		if e, ok := s.entries[key]; ok {
			return s, e.instance, true
		}
		s.pending++
		return s, nil, false
	}

	c.nextID++
	s := &scope{
		id:      c.nextID,
		ref:     ref,
		entries: make(map[string]*entry),
		pending: 1,
	}
	c.scopes[ref] = s

	if c.notify {
		if err := weakref.OnCollect(creator, c.signal); err != nil {
			c.logger.Debug("collection notification unavailable", "creator", ref, "error", err)
		}
	}

	c.logger.Debug("scope created", "creator", ref, "scope", s.id)
	return s, nil, false
}

// settle drops a scope that is left empty once no caller is still filling it,
// so a failed factory does not leave a scope behind.
func (c *Cache) settle(s *scope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s.pending--
	if s.pending > 0 || len(s.entries) > 0 || s.released {
		return
	}
	if c.scopes[s.ref] == s {
		delete(c.scopes, s.ref)
		c.logger.Debug("empty scope dropped", "creator", s.ref, "scope", s.id)
	}
}

func (c *Cache) get(s *scope, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.instance, true
	}
	return nil, false
}

func (c *Cache) store(s *scope, key string, instance any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.released {
		return fmt.Errorf("%w: %s", ErrScopeReleased, key)
	}

	e := &entry{key: key, instance: instance}
	s.entries[key] = e
	s.order = append(s.order, e)
	c.created.Add(1)
	return nil
}

func (c *Cache) DisposeScope(creator any) error {
	ref, err := weakref.Make(creator)
	if err != nil {
		return nil
	}
	defer runtime.KeepAlive(creator)

	c.mu.Lock()
	s, ok := c.scopes[ref]
	var entries []*entry
	if ok {
		delete(c.scopes, ref)
		entries = c.release(s)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	c.logger.Debug("disposing scope", "creator", ref, "scope", s.id, "entries", len(entries))
	return c.disposeEntries(entries)
}

// Prune disposes the dependencies of every creator that has been collected and
// returns how many entries it released.
func (c *Cache) Prune() (int, error) {
	start := time.Now()

	c.mu.Lock()
	var orphans [][]*entry
	for ref, s := range c.scopes {
		if ref.Alive() {
			continue
		}
		delete(c.scopes, ref)
		orphans = append(orphans, c.release(s))
	}
	c.mu.Unlock()

	var pruned int
	var errs error
	for _, entries := range orphans {
		pruned += len(entries)
		errs = multierr.Append(errs, c.disposeEntries(entries))
	}
	c.pruned.Add(uint64(pruned))

	duration := time.Since(start)
	if pruned > 0 || errs != nil {
		c.logger.Debug("pruned orphaned scopes", "scopes", len(orphans), "entries", pruned, "duration", duration)
	}
	for _, hook := range c.onPrune {
		hook(pruned, duration, errs)
	}

	return pruned, errs
}

func (c *Cache) DisposeAll() error {
	c.mu.Lock()
	scopes := make([]*scope, 0, len(c.scopes))
	for _, s := range c.scopes {
		scopes = append(scopes, s)
	}
	c.scopes = make(map[weakref.Ref]*scope)

	sort.Slice(
		scopes, func(i, j int) bool {
			return scopes[i].id > scopes[j].id
		},
	)

	batches := make([][]*entry, len(scopes))
	for i, s := range scopes {
		batches[i] = c.release(s)
	}
	c.mu.Unlock()

	var errs error
	for _, entries := range batches {
		errs = multierr.Append(errs, c.disposeEntries(entries))
	}
	return errs
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Scopes:   len(c.scopes),
		Created:  c.created.Load(),
		Disposed: c.disposed.Load(),
		Pruned:   c.pruned.Load(),
	}
	for _, s := range c.scopes {
		stats.Entries += len(s.entries)
	}
	return stats
}

// Collected signals after a creator with a scope has been collected. It only
// fires when NotifyOnCollect is set.
func (c *Cache) Collected() <-chan struct{} {
	return c.collected
}

func (c *Cache) signal() {
	select {
	case c.collected <- struct{}{}:
	default:
	}
}

// release must be called with c.mu held. It returns the entries that still
// need disposal, oldest first.
func (c *Cache) release(s *scope) []*entry {
	s.released = true

	entries := make([]*entry, 0, len(s.order))
	for _, e := range s.order {
		if e.disposed {
			continue
		}
		e.disposed = true
		entries = append(entries, e)
	}

	s.entries = nil
	s.order = nil
	return entries
}

func (c *Cache) disposeEntries(entries []*entry) error {
	var errs error
	for i := len(entries) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, c.disposeEntry(entries[i]))
	}
	return errs
}

func (c *Cache) disposeEntry(e *entry) error {
	errs := c.DisposeScope(e.instance)

	if err := c.dispose(e.key, e.instance); err != nil {
		c.logger.Warn("dependency dispose failed", "dependency", e.key, "error", err)
		errs = multierr.Append(errs, fmt.Errorf("%w: %s: %w", ErrDisposeFailed, e.key, err))
	}
	c.disposed.Add(1)

	for _, hook := range c.onDispose {
		hook(e.key, errs)
	}
	return errs
}

func flightKey(id uint64, key string) string {
	return strconv.FormatUint(id, 10) + "/" + key
}
