package artifact

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
)

// CachedStore memoizes Get on top of another Store. Runs are immutable, so
// lookups by id are cached for good; the Latest resolution is dropped on
// Put, Invalidate, or a change under a watched directory.
type CachedStore struct {
	inner  Store
	logger log.Logger

	mu         sync.Mutex
	byID       map[string]*RunArtifact
	latest     *RunArtifact
	generation uint64
	stopWatch  func()
}

// NewCachedStore wraps inner.
func NewCachedStore(inner Store) *CachedStore {
	return &CachedStore{
		inner:  inner,
		logger: log.GetLoggerWithName("artifact.cache"),
		byID:   make(map[string]*RunArtifact),
	}
}

// Put stores a in the wrapped store and drops the cached latest run.
func (c *CachedStore) Put(ctx context.Context, a *RunArtifact) error {
	if err := c.inner.Put(ctx, a); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Get returns a cached run when possible.
func (c *CachedStore) Get(ctx context.Context, id string) (*RunArtifact, error) {
	c.mu.Lock()
	if id == Latest && c.latest != nil {
		a := c.latest
		c.mu.Unlock()
		return a, nil
	}
	if a, ok := c.byID[id]; ok {
		c.mu.Unlock()
		return a, nil
	}
	gen := c.generation
	c.mu.Unlock()

	a, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[a.ID] = a
	// a newer run may have been stored while reading
	if id == Latest && gen == c.generation {
		c.latest = a
	}
	return a, nil
}

// List delegates to the wrapped store.
func (c *CachedStore) List(ctx context.Context) ([]string, error) {
	return c.inner.List(ctx)
}

// Invalidate drops the cached latest run.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = nil
	c.generation++
}

// Watch invalidates the cache whenever dir changes, until ctx is done or
// the store is closed.
func (c *CachedStore) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return errors.Wrapf(err, "watch %s", dir)
	}

	wctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.stopWatch != nil {
		c.stopWatch()
	}
	c.stopWatch = cancel
	c.mu.Unlock()

	go func() {
		defer w.Close()
		for {
			select {
			case <-wctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				c.logger.Debug("artifact root changed", log.PathKey, event.Name, "op", event.Op.String())
				c.Invalidate()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.logger.Warn("artifact watcher error", log.ErrorKey, err.Error())
				c.Invalidate()
			}
		}
	}()
	return nil
}

// Close stops the watcher and closes the wrapped store.
func (c *CachedStore) Close() error {
	c.mu.Lock()
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
	c.mu.Unlock()
	return c.inner.Close()
}
