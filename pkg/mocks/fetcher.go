package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/framefusion/pkg/ports"
)

// Fetcher is a mock implementation of ports.Fetcher.
// By default it maps every URL to "/tmp/fetched/<n>".
type Fetcher struct {
	mu sync.Mutex

	FetchFunc   func(ctx context.Context, url string) (string, error)
	ReleaseFunc func(path string) error

	// Recorded calls for verification
	Fetched  []string
	Released []string
}

func (m *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	m.Fetched = append(m.Fetched, url)
	n := len(m.Fetched)
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return fmt.Sprintf("/tmp/fetched/%d", n), nil
}

func (m *Fetcher) Release(path string) error {
	m.mu.Lock()
	m.Released = append(m.Released, path)
	m.mu.Unlock()

	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(path)
	}
	return nil
}

var _ ports.Fetcher = (*Fetcher)(nil)
