package classify

import "strings"

// Categories is the fixed category enum the classifier may use. Anything else
// is normalised to CategoryMisc.
var Categories = []string{
	"meetings",
	"ideas",
	"tasks",
	"personal",
	"support",
	"documentation",
	"misc",
}

// CategoryMisc is the fallback category.
const CategoryMisc = "misc"

// maxTitleLen caps the transcript-derived fallback title, in runes.
const maxTitleLen = 80

// Extracted is the structured task metadata produced by the classifier.
// Only Title and Category are guaranteed non-empty after defaulting.
type Extracted struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	ProjectName string   `json:"projectName"`
	SectionName string   `json:"sectionName"`
	Labels      []string `json:"labels"`
	Priority    int      `json:"priority"`
	DueString   string   `json:"due_string"`
	URLs        []string `json:"urls"`
}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// FallbackTitle derives a title from the transcript: its first non-empty
// line, capped at 80 runes.
func FallbackTitle(transcript string) string {
	for _, line := range strings.Split(strings.TrimSpace(transcript), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > maxTitleLen {
			return string(r[:maxTitleLen])
		}
		return line
	}
	return ""
}
