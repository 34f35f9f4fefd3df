package ports

import "context"

// Fetcher makes remote sources available as local files.
type Fetcher interface {
	// Fetch downloads url and returns the local path of the copy.
	Fetch(ctx context.Context, url string) (string, error)

	// Release tells the fetcher the local copy is no longer needed.
	Release(path string) error
}
