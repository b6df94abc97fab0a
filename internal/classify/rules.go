package classify

import (
	"encoding/json"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Rule is a declarative override applied after classification. The pattern is
// a regular expression; case-insensitivity is expressed inline with (?i).
// Matching rules only fill fields the extraction left empty — except Labels,
// which are always unioned in.
type Rule struct {
	Test        string   `json:"test"`
	ProjectName string   `json:"projectName,omitempty"`
	SectionName string   `json:"sectionName,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	DueString   string   `json:"due_string,omitempty"`
}

type rulesFile struct {
	Rules []Rule `json:"rules"`
}

// LoadRules reads the rules document at path. A missing or unparsable file
// means "no rules" — the pipeline must not fail over a bad rules file.
func LoadRules(path string) []Rule {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var rf rulesFile
	if err := json.Unmarshal(data, &rf); err != nil {
		slog.Warn("[classify] unparsable rules file, ignoring", "path", path, "err", err)
		return nil
	}
	return rf.Rules
}

// AppendRule appends r to the rules document at path, creating the file when
// absent. Used by the rules editing command; the pipeline itself only reads.
func AppendRule(path string, r Rule) error {
	var rf rulesFile
	if data, err := os.ReadFile(path); err == nil {
		// Best effort: an unparsable file is treated as empty and rewritten.
		_ = json.Unmarshal(data, &rf)
	}
	rf.Rules = append(rf.Rules, r)
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyRules applies each rule, in order, against the concatenation of the
// extracted title, extracted description, and raw transcript.
//
// Expectations:
//   - Invalid (uncompilable) patterns are skipped without error
//   - Non-matching rules contribute nothing
//   - A matching rule fills only fields that are currently empty; fields set
//     by the classifier or an earlier matching rule are never overwritten
//   - Labels are the exception: matching rules' labels are unioned in,
//     deduplicated case-insensitively, preserving first-seen casing
func ApplyRules(transcript string, ex Extracted, rules []Rule) Extracted {
	haystack := ex.Title + "\n" + ex.Description + "\n" + transcript

	for _, r := range rules {
		re, err := regexp.Compile(r.Test)
		if err != nil {
			continue
		}
		if !re.MatchString(haystack) {
			continue
		}
		if ex.ProjectName == "" {
			ex.ProjectName = r.ProjectName
		}
		if ex.SectionName == "" {
			ex.SectionName = r.SectionName
		}
		if ex.Priority == 0 {
			ex.Priority = r.Priority
		}
		if ex.DueString == "" {
			ex.DueString = r.DueString
		}
		ex.Labels = unionLabels(ex.Labels, r.Labels)
	}
	return ex
}

// unionLabels merges extra into base, deduplicating case-insensitively while
// preserving the casing of the first occurrence.
func unionLabels(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, lists := range [][]string{base, extra} {
		for _, l := range lists {
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
	}
	if len(out) == 0 {
		return base
	}
	return out
}
