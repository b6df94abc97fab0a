package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"voicenote/internal/todoist"
)

// fakeService is an httptest task service tracking per-endpoint hit counts.
type fakeService struct {
	srv          *httptest.Server
	projectHits  atomic.Int64
	labelHits    atomic.Int64
	sectionHits  atomic.Int64
	createdNames []string
	failLabels   map[string]bool // label names whose creation returns 500
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{failLabels: map[string]bool{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/projects":
			f.projectHits.Add(1)
			w.Write([]byte(`[{"id":"p1","name":"Work"},{"id":"p2","name":"Home"}]`))
		case r.URL.Path == "/labels" && r.Method == http.MethodGet:
			f.labelHits.Add(1)
			w.Write([]byte(`[{"id":"l1","name":"Voice"},{"id":"l2","name":"errands"}]`))
		case r.URL.Path == "/labels" && r.Method == http.MethodPost:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if f.failLabels[body["name"]] {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			f.createdNames = append(f.createdNames, body["name"])
			json.NewEncoder(w).Encode(todoist.Label{ID: "new-" + body["name"], Name: body["name"]})
		case r.URL.Path == "/sections":
			f.sectionHits.Add(1)
			if r.URL.Query().Get("project_id") == "p1" {
				w.Write([]byte(`[{"id":"s1","project_id":"p1","name":"Upcoming bills"}]`))
				return
			}
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newTestCache(t *testing.T, f *fakeService, ttl time.Duration) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	return New(todoist.New(f.srv.URL, "t"), path, ttl)
}

func TestSnapshot_FetchesWhenNoCacheFile(t *testing.T) {
	// A missing cache file triggers one projects fetch and one labels fetch
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)

	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Projects) != 2 || len(snap.Labels) != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if f.projectHits.Load() != 1 || f.labelHits.Load() != 1 {
		t.Errorf("expected one hit each, got projects=%d labels=%d", f.projectHits.Load(), f.labelHits.Load())
	}
	if snap.Sections == nil || len(snap.Sections) != 0 {
		t.Errorf("expected empty sections map, got %v", snap.Sections)
	}
}

func TestSnapshot_FreshCacheSkipsRemote(t *testing.T) {
	// A cache file younger than the TTL is served without remote calls
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.projectHits.Load() != 1 {
		t.Errorf("expected cached second read, got %d project fetches", f.projectHits.Load())
	}
}

func TestSnapshot_StaleCacheRefetches(t *testing.T) {
	// A cache file older than the TTL is always refetched
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(c.path, old, old); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.projectHits.Load() != 2 {
		t.Errorf("expected refetch after TTL, got %d project fetches", f.projectHits.Load())
	}
}

func TestSnapshot_FetchFailureIsFatal(t *testing.T) {
	// A failing projects fetch returns ErrReferenceFetch and no snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(todoist.New(srv.URL, "t"), filepath.Join(t.TempDir(), "taxonomy.json"), time.Hour)
	_, err := c.Snapshot(context.Background())
	if !errors.Is(err, ErrReferenceFetch) {
		t.Fatalf("expected ErrReferenceFetch, got %v", err)
	}
}

func TestEnsureSections_Idempotent(t *testing.T) {
	// Two EnsureSections calls for the same project make exactly one fetch
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)
	snap, _ := c.Snapshot(context.Background())

	if err := c.EnsureSections(context.Background(), snap, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := c.EnsureSections(context.Background(), snap, "p1"); err != nil {
		t.Fatal(err)
	}
	if f.sectionHits.Load() != 1 {
		t.Errorf("expected 1 section fetch, got %d", f.sectionHits.Load())
	}
}

func TestEnsureSections_EmptyListStillCountsAsFetched(t *testing.T) {
	// An empty section list marks the project as fetched (key presence check)
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)
	snap, _ := c.Snapshot(context.Background())

	_ = c.EnsureSections(context.Background(), snap, "p2")
	_ = c.EnsureSections(context.Background(), snap, "p2")
	if f.sectionHits.Load() != 1 {
		t.Errorf("expected 1 fetch for empty-section project, got %d", f.sectionHits.Load())
	}
	if !snap.HasSections("p2") {
		t.Error("expected p2 marked fetched")
	}
}

func TestEnsureLabels_CreatesOnlyMissing(t *testing.T) {
	// Existing labels (case-insensitive) are skipped; missing ones are created
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)
	snap, _ := c.Snapshot(context.Background())

	c.EnsureLabels(context.Background(), snap, []string{"voice", "ERRANDS", "Groceries"})
	if len(f.createdNames) != 1 || f.createdNames[0] != "Groceries" {
		t.Errorf("expected only Groceries created, got %v", f.createdNames)
	}
	if !snap.HasLabel("groceries") {
		t.Error("expected in-memory label list to grow")
	}
}

func TestEnsureLabels_PartialFailureContinues(t *testing.T) {
	// A failing creation is skipped; the remaining names are still created
	f := newFakeService(t)
	f.failLabels["Alpha"] = true
	c := newTestCache(t, f, time.Hour)
	snap, _ := c.Snapshot(context.Background())

	c.EnsureLabels(context.Background(), snap, []string{"Alpha", "Beta"})
	if len(f.createdNames) != 1 || f.createdNames[0] != "Beta" {
		t.Errorf("expected Beta created despite Alpha failure, got %v", f.createdNames)
	}
	if snap.HasLabel("Alpha") {
		t.Error("failed label must not appear in snapshot")
	}
}

func TestPrefetchSections_WarmsFirstN(t *testing.T) {
	// Prefetch fetches sections for the first n projects only
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)
	snap, _ := c.Snapshot(context.Background())

	c.PrefetchSections(context.Background(), snap, 1)
	if f.sectionHits.Load() != 1 {
		t.Errorf("expected 1 section fetch, got %d", f.sectionHits.Load())
	}
	if !snap.HasSections("p1") || snap.HasSections("p2") {
		t.Errorf("expected only p1 prefetched, got %v", snap.Sections)
	}
}

func TestSnapshot_PersistsAcrossInstances(t *testing.T) {
	// The persisted file round-trips through a second Cache instance
	f := newFakeService(t)
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	c1 := New(todoist.New(f.srv.URL, "t"), path, time.Hour)
	if _, err := c1.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}

	c2 := New(todoist.New(f.srv.URL, "t"), path, time.Hour)
	snap2, err := c2.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap2.Projects) != 2 {
		t.Errorf("expected persisted projects, got %+v", snap2.Projects)
	}
	if f.projectHits.Load() != 1 {
		t.Errorf("expected no refetch from second instance, got %d", f.projectHits.Load())
	}
}

func TestPeek_ReturnsAgeWithoutFetch(t *testing.T) {
	// Peek reads the cache file and never calls the service
	f := newFakeService(t)
	c := newTestCache(t, f, time.Hour)
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatal(err)
	}
	hits := f.projectHits.Load()

	snap, age, err := c.Peek()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Projects) != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if age < 0 || age > time.Minute {
		t.Errorf("implausible age %v", age)
	}
	if f.projectHits.Load() != hits {
		t.Error("Peek must not fetch")
	}
	if strings.TrimSpace(c.path) == "" {
		t.Error("cache path unset")
	}
}
