// Package resolve maps the classifier's free-text names onto concrete
// taxonomy identifiers: exact case-insensitive matching first, then a simple
// content-similarity guess for sections. The scoring rule is deliberately
// naive (length-weighted substring counts) and must stay exactly as
// documented — downstream behaviour depends on its tie-breaks.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"voicenote/internal/classify"
	"voicenote/internal/taxonomy"
	"voicenote/internal/todoist"
)

// SentinelLabel is attached to every task filed by this tool.
const SentinelLabel = "Voice"

// Resolution is the outcome of mapping an extraction onto the taxonomy.
// Empty ProjectID means the task goes to the service's inbox.
type Resolution struct {
	ProjectID   string
	ProjectName string
	SectionID   string
	SectionName string
	Labels      []string
}

// Resolver resolves extractions against a snapshot, extending the taxonomy
// when referenced labels do not exist yet.
type Resolver struct {
	cache              *taxonomy.Cache
	defaultProjectID   string
	defaultProjectName string
}

// New creates a Resolver. Both defaults may be empty.
func New(cache *taxonomy.Cache, defaultProjectID, defaultProjectName string) *Resolver {
	return &Resolver{
		cache:              cache,
		defaultProjectID:   defaultProjectID,
		defaultProjectName: defaultProjectName,
	}
}

// Resolve maps the extraction to taxonomy identifiers.
//
// Expectations:
//   - Project precedence: configured ID, then configured name, then the
//     classifier's suggestion; all name matches are trimmed case-insensitive
//   - Sections are only resolved when a project was; exact match first, then
//     the content-similarity guess over title/description/transcript
//   - The label set is the sentinel label plus the extraction's labels,
//     deduplicated case-insensitively; missing labels are created remotely,
//     and individual creation failures do not block resolution
func (r *Resolver) Resolve(ctx context.Context, transcript string, ex classify.Extracted, snap *taxonomy.Snapshot) Resolution {
	res := Resolution{}

	res.ProjectID, res.ProjectName = r.resolveProject(ex, snap)

	if res.ProjectID != "" {
		if err := r.cache.EnsureSections(ctx, snap, res.ProjectID); err != nil {
			// Non-fatal here: the task can still file into the project root.
			slog.Warn("[resolve] section fetch failed", "project", res.ProjectName, "err", err)
		}
		secs := snap.Sections[res.ProjectID]
		res.SectionID, res.SectionName = resolveSection(ex, transcript, secs)
	}

	res.Labels = labelSet(ex.Labels)
	r.cache.EnsureLabels(ctx, snap, res.Labels)

	return res
}

func (r *Resolver) resolveProject(ex classify.Extracted, snap *taxonomy.Snapshot) (id, name string) {
	if r.defaultProjectID != "" {
		for _, p := range snap.Projects {
			if p.ID == r.defaultProjectID {
				return p.ID, p.Name
			}
		}
		// Configured ID wins even when it is not in the snapshot.
		return r.defaultProjectID, r.defaultProjectID
	}
	for _, candidate := range []string{r.defaultProjectName, ex.ProjectName} {
		if candidate == "" {
			continue
		}
		for _, p := range snap.Projects {
			if equalFoldTrim(p.Name, candidate) {
				return p.ID, p.Name
			}
		}
	}
	return "", ""
}

func resolveSection(ex classify.Extracted, transcript string, secs []todoist.Section) (id, name string) {
	// Exact case-insensitive match on the suggested name.
	if ex.SectionName != "" {
		for _, s := range secs {
			if equalFoldTrim(s.Name, ex.SectionName) {
				return s.ID, s.Name
			}
		}
	}
	// Content-similarity guess over the non-empty candidate texts.
	candidates := make([]string, 0, 3)
	for _, c := range []string{ex.Title, ex.Description, transcript} {
		if strings.TrimSpace(c) != "" {
			candidates = append(candidates, Normalize(c))
		}
	}
	bestScore := 0
	for _, s := range secs {
		needle := Normalize(s.Name)
		if needle == "" {
			continue
		}
		score := 0
		for _, c := range candidates {
			if strings.Contains(c, needle) {
				score += len(needle)
			}
		}
		// Strictly greater: ties keep the first-seen section.
		if score > bestScore {
			bestScore = score
			id, name = s.ID, s.Name
		}
	}
	return id, name
}

// Normalize lowercases s and collapses every run of non-alphanumeric
// characters to a single space, trimming the ends.
//
// Expectations:
//   - "Upcoming Bills!" → "upcoming bills"
//   - Runs of punctuation/whitespace collapse to one space
//   - All-punctuation input normalises to ""
func Normalize(s string) string {
	var sb strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// labelSet unions the sentinel label with the extracted labels,
// deduplicating case-insensitively and preserving first-seen casing.
func labelSet(extracted []string) []string {
	out := []string{SentinelLabel}
	seen := map[string]struct{}{strings.ToLower(SentinelLabel): {}}
	for _, l := range extracted {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
