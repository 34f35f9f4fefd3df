package downloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/user/framefusion/pkg/ports"
)

// Cache shares downloads between holders of the same URL. Concurrent
// fetches of one URL download it once; the file is released when its last
// holder releases it.
type Cache struct {
	fetcher ports.Fetcher

	mu     sync.Mutex
	byURL  map[string]*entry
	byPath map[string]*entry
}

type entry struct {
	url   string
	path  string
	refs  int
	err   error
	ready chan struct{}
}

// NewCache wraps fetcher.
func NewCache(fetcher ports.Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		byURL:   make(map[string]*entry),
		byPath:  make(map[string]*entry),
	}
}

// Fetch returns the local copy of url, downloading it unless another holder
// already has it or is fetching it.
func (c *Cache) Fetch(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	if e, ok := c.byURL[url]; ok {
		e.refs++
		c.mu.Unlock()
		return c.wait(ctx, e)
	}
	e := &entry{url: url, refs: 1, ready: make(chan struct{})}
	c.byURL[url] = e
	c.mu.Unlock()

	path, err := c.fetcher.Fetch(ctx, url)

	c.mu.Lock()
	e.path, e.err = path, err
	if err != nil {
		delete(c.byURL, url)
	} else {
		c.byPath[path] = e
	}
	close(e.ready)
	c.mu.Unlock()

	if err != nil {
		return "", err
	}
	return path, nil
}

func (c *Cache) wait(ctx context.Context, e *entry) (string, error) {
	select {
	case <-e.ready:
		if e.err != nil {
			return "", e.err
		}
		return e.path, nil
	case <-ctx.Done():
		go c.abandon(e)
		return "", ctx.Err()
	}
}

// abandon gives up a waiter's reference once the fetch it waited on ends.
func (c *Cache) abandon(e *entry) {
	<-e.ready
	if e.err == nil {
		_ = c.Release(e.path)
	}
}

// Release drops one reference to path and releases the file with the
// wrapped fetcher when none remain.
func (c *Cache) Release(path string) error {
	c.mu.Lock()
	e, ok := c.byPath[path]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("downloader: %s is not cached", path)
	}
	e.refs--
	last := e.refs <= 0
	if last {
		delete(c.byPath, path)
		delete(c.byURL, e.url)
	}
	c.mu.Unlock()

	if !last {
		return nil
	}
	return c.fetcher.Release(path)
}

// Close releases every cached file regardless of holders.
func (c *Cache) Close() error {
	c.mu.Lock()
	paths := make([]string, 0, len(c.byPath))
	for p := range c.byPath {
		paths = append(paths, p)
	}
	c.byPath = make(map[string]*entry)
	c.byURL = make(map[string]*entry)
	c.mu.Unlock()

	var result *multierror.Error
	for _, p := range paths {
		if err := c.fetcher.Release(p); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ ports.Fetcher = (*Cache)(nil)
