// Package safetydb provides a process wide snapshot of the pyup.io insecure
// package database used to resolve Safety report ids to CVE ids.
package safetydb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	o "github.com/moznion/go-optional"
)

const (
	DefaultURL = "https://raw.githubusercontent.com/pyupio/safety-db/master/data/insecure_full.json"

	// IDPrefix is prepended to Safety report ids in the database.
	IDPrefix = "pyup.io-"

	// DefaultTimeout bounds a load when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	metaKey = "$meta"
)

type Advisory struct {
	ID       string `json:"id"`
	CVE      string `json:"cve"`
	Advisory string `json:"advisory"`
}

// Snapshot maps a package name to its known advisories. It is read only once
// published by a Cache.
type Snapshot map[string][]Advisory

// Lookup finds the advisory of pkg matching a Safety report id.
func (s Snapshot) Lookup(pkg, vendorID string) o.Option[Advisory] {
	for _, advisory := range s[pkg] {
		if advisory.ID == IDPrefix+vendorID {
			return o.Some(advisory)
		}
	}
	return o.None[Advisory]()
}

// Decode reads insecure_full.json. Entries that do not look like advisory
// lists, such as the $meta block, are skipped.
func Decode(r io.Reader) (Snapshot, error) {
	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode insecure package database: %w", err)
	}

	snapshot := make(Snapshot, len(raw))
	for pkg, data := range raw {
		if pkg == metaKey {
			continue
		}
		var advisories []Advisory
		if err := json.Unmarshal(data, &advisories); err != nil {
			slog.Debug("skipping insecure package entry", "package", pkg, "err", err)
			continue
		}
		snapshot[pkg] = advisories
	}
	return snapshot, nil
}

type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// HTTPLoader fetches the database with a single GET request.
type HTTPLoader struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (l HTTPLoader) Load(ctx context.Context) (Snapshot, error) {
	url := l.URL
	if url == "" {
		url = DefaultURL
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failure in HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response from %q: %s", url, resp.Status)
	}
	return Decode(resp.Body)
}

// Cache loads the database on first use and keeps it for the lifetime of the
// process. Concurrent callers wait for the load in progress instead of
// issuing their own request. A failed load is not cached.
type Cache struct {
	loader Loader

	mu       sync.Mutex
	snapshot Snapshot
}

func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// Get returns the snapshot, loading it if needed. When the database is
// unavailable an empty snapshot is returned and the failure is logged.
func (c *Cache) Get(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		return c.snapshot
	}

	snapshot, err := c.loader.Load(ctx)
	if err != nil {
		slog.Error("could not load insecure package database", "err", err)
		return Snapshot{}
	}
	slog.Info("loaded insecure package database", "packages", len(snapshot))
	c.snapshot = snapshot
	return c.snapshot
}

// Loaded reports whether a snapshot has been published.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot != nil
}

// NewLoader builds the loader selected by source, "http" or "git".
func NewLoader(source, url, remote, repoPath string, timeout time.Duration) (Loader, error) {
	switch strings.ToLower(source) {
	case "", "http":
		return HTTPLoader{URL: url, Timeout: timeout}, nil
	case "git":
		return GitLoader{Remote: remote, Path: repoPath, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown insecure package database source %q", source)
	}
}
