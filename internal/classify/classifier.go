// Package classify turns a raw transcript into structured task metadata.
//
// The classifier sends the transcript to the language model together with a
// grounding context (known project, label, and section names from the cached
// taxonomy) and a strict output contract, then defensively parses the reply.
// Malformed model output never fails the pipeline: after one brace-recovery
// attempt the classifier proceeds with an empty extraction and fills the
// defaults. Local rules, when enabled, fill any gaps the model left.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"voicenote/internal/llm"
	"voicenote/internal/taxonomy"
)

// ErrClassifierUnavailable reports a failed model call. Network, auth, and
// rate-limit failures are not distinguished further.
var ErrClassifierUnavailable = errors.New("classify: model service unavailable")

// Grounding context limits; beyond these the prompt stops getting better and
// starts getting expensive.
const (
	maxContextProjects = 100
	maxContextLabels   = 200
)

const systemPromptHeader = `You extract structured task metadata from a dictated voice note.

Output ONLY a valid JSON object with exactly this schema:
  {"title": string, "description": string|null, "category": "meetings"|"ideas"|"tasks"|"personal"|"support"|"documentation"|"misc", "projectName": string|null, "sectionName": string|null, "labels": [string], "priority": 1|2|3|4|null, "due_string": string|null, "urls": [string]}

Rules:
- title: a short imperative summary of the note
- projectName/sectionName: pick from the known names below when one clearly fits, otherwise null
- labels: existing label names when they fit; invent a new one only when clearly warranted
- priority: 4 is most urgent, 1 least; null when the note gives no signal
- due_string: a natural-language due expression ("tomorrow", "every friday"), null when absent
- urls: every URL spoken or spelled out in the note
- No markdown, no prose, no code fences.`

// Classifier calls the model service and post-processes its output.
type Classifier struct {
	llm   *llm.Client
	rules []Rule
}

// New creates a Classifier. rules may be nil when the rules feature is
// disabled or the rules file is absent.
func New(client *llm.Client, rules []Rule) *Classifier {
	return &Classifier{llm: client, rules: rules}
}

// Classify extracts task metadata from the transcript.
//
// Expectations:
//   - Returns ErrClassifierUnavailable only when the model call itself fails
//   - Malformed model output is recovered (first brace-delimited object) or
//     discarded; the result always has Title and Category populated
//   - Configured rules fill fields the model left empty
func (c *Classifier) Classify(ctx context.Context, transcript string, snap *taxonomy.Snapshot) (Extracted, error) {
	system := systemPromptHeader + "\n\n" + GroundingContext(snap)
	user := "Voice note transcript:\n\n" + transcript

	raw, err := c.llm.Chat(ctx, system, user)
	if err != nil {
		return Extracted{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	ex := parseExtraction(raw)

	if ex.Title == "" {
		ex.Title = FallbackTitle(transcript)
	}
	if !ValidCategory(ex.Category) {
		ex.Category = CategoryMisc
	}

	if len(c.rules) > 0 {
		ex = ApplyRules(transcript, ex, c.rules)
	}
	return ex, nil
}

// parseExtraction parses model output strictly as JSON, retrying once with
// the first top-level brace-delimited substring. Total failure yields an
// empty Extracted; the pipeline continues with defaults.
func parseExtraction(raw string) Extracted {
	raw = llm.StripFences(raw)

	var ex Extracted
	if err := json.Unmarshal([]byte(raw), &ex); err == nil {
		return ex
	}
	if obj := llm.ExtractObject(raw); obj != "" {
		if err := json.Unmarshal([]byte(obj), &ex); err == nil {
			return ex
		}
	}
	slog.Warn("[classify] unparsable model output, continuing with defaults", "raw", clipForLog(raw))
	return Extracted{}
}

// GroundingContext renders the taxonomy for the system prompt: up to 100
// project names, up to 200 label names, and the section names of every
// project whose sections have been prefetched.
func GroundingContext(snap *taxonomy.Snapshot) string {
	var sb strings.Builder

	sb.WriteString("Known projects:\n")
	for i, p := range snap.Projects {
		if i >= maxContextProjects {
			break
		}
		sb.WriteString("- " + p.Name + "\n")
	}

	sb.WriteString("\nKnown labels:\n")
	for i, l := range snap.Labels {
		if i >= maxContextLabels {
			break
		}
		sb.WriteString("- " + l.Name + "\n")
	}

	wroteHeader := false
	for _, p := range snap.Projects {
		secs := snap.Sections[p.ID]
		if len(secs) == 0 {
			continue
		}
		if !wroteHeader {
			sb.WriteString("\nKnown sections per project:\n")
			wroteHeader = true
		}
		names := make([]string, len(secs))
		for i, s := range secs {
			names[i] = s.Name
		}
		sb.WriteString("- " + p.Name + ": " + strings.Join(names, ", ") + "\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func clipForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}
