// Package taxonomy owns the cached remote reference data (projects, labels,
// per-project sections) that grounds classification and resolution.
//
// The snapshot lives in one JSON file whose modification time bounds its age.
// Sections are fetched lazily per project; presence of a project key in the
// Sections map means "fetched", even when the list is empty. The cache file is
// read-then-conditionally-rewritten with no locking; two concurrent runs can
// clobber each other and the last write wins.
package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voicenote/internal/todoist"
)

// ErrReferenceFetch reports that the remote taxonomy could not be fetched.
// Grounding requires it, so callers treat this as fatal.
var ErrReferenceFetch = errors.New("taxonomy: reference fetch failed")

// Snapshot is the cached taxonomy. Sections is populated lazily; a missing
// key means "not yet fetched", not "no sections".
type Snapshot struct {
	Projects  []todoist.Project            `json:"projects"`
	Labels    []todoist.Label              `json:"labels"`
	Sections  map[string][]todoist.Section `json:"sections"`
	FetchedAt time.Time                    `json:"fetched_at"`
}

// HasSections reports whether sections for projectID have been fetched.
// Key presence is the check, not list length.
func (s *Snapshot) HasSections(projectID string) bool {
	_, ok := s.Sections[projectID]
	return ok
}

// HasLabel reports whether a label with the given name exists, compared
// case-insensitively after trimming.
func (s *Snapshot) HasLabel(name string) bool {
	name = strings.TrimSpace(name)
	for _, l := range s.Labels {
		if strings.EqualFold(strings.TrimSpace(l.Name), name) {
			return true
		}
	}
	return false
}

// Cache is the TTL-bounded file cache over the task-service client.
type Cache struct {
	client *todoist.Client
	path   string
	ttl    time.Duration
}

// New creates a Cache persisting to path with the given TTL.
func New(client *todoist.Client, path string, ttl time.Duration) *Cache {
	return &Cache{client: client, path: path, ttl: ttl}
}

// Snapshot returns the cached snapshot when the cache file is younger than
// the TTL, otherwise refetches.
//
// Expectations:
//   - A cache file younger than the TTL is returned without any remote call
//   - A missing, stale, or unparsable cache file triggers a refetch
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if st, err := os.Stat(c.path); err == nil && time.Since(st.ModTime()) < c.ttl {
		if snap, err := c.read(); err == nil {
			return snap, nil
		}
		// Corrupt cache file: fall through to a fresh fetch.
	}
	return c.Refresh(ctx)
}

// Peek reads the cache file without fetching, returning the snapshot and its
// age. Used by the cache inspection command.
func (c *Cache) Peek() (*Snapshot, time.Duration, error) {
	st, err := os.Stat(c.path)
	if err != nil {
		return nil, 0, err
	}
	snap, err := c.read()
	if err != nil {
		return nil, 0, err
	}
	return snap, time.Since(st.ModTime()), nil
}

// Refresh fetches projects and labels concurrently, builds a fresh snapshot
// with an empty sections map, persists it, and returns it. Either fetch
// failing is fatal; no partial snapshot is returned.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	var (
		wg       sync.WaitGroup
		projects []todoist.Project
		labels   []todoist.Label
		projErr  error
		labelErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		projects, projErr = c.client.Projects(ctx)
	}()
	go func() {
		defer wg.Done()
		labels, labelErr = c.client.Labels(ctx)
	}()
	wg.Wait()

	if projErr != nil {
		return nil, fmt.Errorf("%w: projects: %v", ErrReferenceFetch, projErr)
	}
	if labelErr != nil {
		return nil, fmt.Errorf("%w: labels: %v", ErrReferenceFetch, labelErr)
	}

	snap := &Snapshot{
		Projects:  projects,
		Labels:    labels,
		Sections:  make(map[string][]todoist.Section),
		FetchedAt: time.Now().UTC(),
	}
	c.persist(snap)
	return snap, nil
}

// EnsureSections makes sure the sections of projectID are present in the
// snapshot, fetching and persisting when they are not.
//
// Expectations:
//   - No remote call when the project key is already present (even if empty)
//   - Fetch errors propagate; the snapshot is left unchanged
func (c *Cache) EnsureSections(ctx context.Context, snap *Snapshot, projectID string) error {
	if snap.HasSections(projectID) {
		return nil
	}
	secs, err := c.client.Sections(ctx, projectID)
	if err != nil {
		return fmt.Errorf("taxonomy: fetch sections for %s: %w", projectID, err)
	}
	if snap.Sections == nil {
		snap.Sections = make(map[string][]todoist.Section)
	}
	snap.Sections[projectID] = secs
	c.persist(snap)
	return nil
}

// EnsureLabels creates every requested label name that does not already exist
// (case-insensitive). Individual creation failures are logged and skipped;
// partial success is acceptable.
func (c *Cache) EnsureLabels(ctx context.Context, snap *Snapshot, names []string) {
	created := false
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || snap.HasLabel(name) {
			continue
		}
		label, err := c.client.CreateLabel(ctx, name)
		if err != nil {
			slog.Warn("[taxonomy] label creation failed", "label", name, "err", err)
			continue
		}
		snap.Labels = append(snap.Labels, label)
		created = true
	}
	if created {
		c.persist(snap)
	}
}

// PrefetchSections warms the sections of the first n projects so the
// classifier's grounding context can list them. Per-project failures are
// swallowed.
func (c *Cache) PrefetchSections(ctx context.Context, snap *Snapshot, n int) {
	if n < 1 {
		n = 1
	}
	if n > 12 {
		n = 12
	}
	for i, p := range snap.Projects {
		if i >= n {
			break
		}
		if err := c.EnsureSections(ctx, snap, p.ID); err != nil {
			slog.Warn("[taxonomy] section prefetch failed", "project", p.Name, "err", err)
		}
	}
}

func (c *Cache) read() (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("taxonomy: parse cache file: %w", err)
	}
	if snap.Sections == nil {
		snap.Sections = make(map[string][]todoist.Section)
	}
	return &snap, nil
}

// persist writes the snapshot to disk. Failures are logged, not returned; a
// missing cache only costs a refetch next run.
func (c *Cache) persist(snap *Snapshot) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		slog.Warn("[taxonomy] marshal cache", "err", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		slog.Warn("[taxonomy] create cache dir", "err", err)
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		slog.Warn("[taxonomy] write cache file", "err", err)
	}
}
