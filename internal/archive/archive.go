// Package archive writes captured transcripts to per-category markdown files
// so a note survives even if the task is later deleted remotely.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive writes transcripts under a root directory, one subdirectory per
// category.
type Archive struct {
	root string
}

// New creates an Archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{root: dir}
}

// Save writes the transcript as <root>/<category>/<yyyy-mm-dd>-<id>.md and
// returns the written path. The id is a fresh random fragment so saves within
// one day never collide.
func (a *Archive) Save(category, title, destination, transcript string, now time.Time) (string, error) {
	if category == "" {
		category = "misc"
	}
	dir := filepath.Join(a.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s-%s.md", now.Format("2006-01-02"), uuid.New().String()[:8])
	path := filepath.Join(dir, name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- captured: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- filed to: %s\n\n", destination)
	sb.WriteString(strings.TrimSpace(transcript))
	sb.WriteByte('\n')

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", path, err)
	}
	return path, nil
}
