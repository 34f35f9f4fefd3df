// Package downloader makes remote video sources available as local files.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/user/framefusion/pkg/adapters/logger"
	"github.com/user/framefusion/pkg/ports"
)

const (
	DefaultTimeout   = 5 * time.Minute
	DefaultUserAgent = "framefusion"
)

var (
	// ErrHTTPStatus is returned for responses outside 2xx.
	ErrHTTPStatus = errors.New("downloader: unexpected HTTP status")
	// ErrNotVideo is returned when the response content type is not video.
	ErrNotVideo = errors.New("downloader: content is not video")
)

// Options configures a Downloader.
type Options struct {
	// Timeout bounds a whole download, body included.
	Timeout time.Duration
	// TempDir receives downloaded files. Empty uses os.TempDir().
	TempDir string
	// UserAgent is sent with every request.
	UserAgent string
}

// Downloader implements ports.Fetcher over HTTP(S).
type Downloader struct {
	client *http.Client
	fs     ports.FileSystem
	opts   Options
	log    ports.Logger
	seq    atomic.Uint64
}

// New creates a Downloader writing through fs.
func New(fs ports.FileSystem, opts Options, log ports.Logger) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.NewNoop()
	}
	return &Downloader{
		client: newClient(opts.Timeout),
		fs:     fs,
		opts:   opts,
		log:    log.WithComponent("downloader"),
	}
}

func newClient(timeout time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &http.Client{Transport: base, Timeout: timeout}
}

// Fetch downloads rawURL into a new file under TempDir.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %s", ErrHTTPStatus, rawURL, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "video") {
		return "", fmt.Errorf("%w: %s has content type %q", ErrNotVideo, rawURL, ct)
	}

	dest := d.tempPath(rawURL)
	w, err := d.fs.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := io.Copy(w, resp.Body)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := d.fs.Remove(dest); rerr != nil {
			d.log.Warn("Failed to remove partial download %s: %v", dest, rerr)
		}
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}

	d.log.Debug("Downloaded %s to %s (%d bytes)", rawURL, dest, n)
	return dest, nil
}

// tempPath keeps the URL's file extension so probing by name still works.
func (d *Downloader) tempPath(rawURL string) string {
	ext := ".mp4"
	if u, err := url.Parse(rawURL); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 6 {
			ext = e
		}
	}
	name := fmt.Sprintf("framefusion-%d-%d%s", os.Getpid(), d.seq.Add(1), ext)
	return filepath.Join(d.opts.TempDir, name)
}

// Release deletes a downloaded file.
func (d *Downloader) Release(path string) error {
	if err := d.fs.Remove(path); err != nil {
		return fmt.Errorf("remove download: %w", err)
	}
	d.log.Debug("Removed download %s", path)
	return nil
}

var _ ports.Fetcher = (*Downloader)(nil)
