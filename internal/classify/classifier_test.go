package classify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicenote/internal/llm"
	"voicenote/internal/taxonomy"
	"voicenote/internal/todoist"
)

// modelServer returns an llm.Client backed by a server replying with content.
func modelServer(t *testing.T, content string) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
	t.Cleanup(srv.Close)
	return llm.New(srv.URL, "k", "m")
}

func testSnapshot() *taxonomy.Snapshot {
	return &taxonomy.Snapshot{
		Projects: []todoist.Project{{ID: "p1", Name: "Work"}, {ID: "p2", Name: "Home"}},
		Labels:   []todoist.Label{{ID: "l1", Name: "Voice"}},
		Sections: map[string][]todoist.Section{
			"p1": {{ID: "s1", ProjectID: "p1", Name: "Upcoming bills"}},
		},
	}
}

func TestClassify_ParsesWellFormedOutput(t *testing.T) {
	// A bare JSON reply is parsed into the extraction
	c := New(modelServer(t, `{"title":"Pay electric bill","category":"tasks","due_string":"tomorrow","labels":["finance"]}`), nil)
	ex, err := c.Classify(context.Background(), "Pay the electric bill tomorrow", testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.Title != "Pay electric bill" || ex.Category != "tasks" || ex.DueString != "tomorrow" {
		t.Errorf("unexpected extraction: %+v", ex)
	}
}

func TestClassify_MalformedOutputYieldsDefaults(t *testing.T) {
	// Unparsable model output never errors; title and category are defaulted
	c := New(modelServer(t, "I could not produce JSON, sorry."), nil)
	ex, err := c.Classify(context.Background(), "Call the dentist about the appointment\nsecond line", testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.Title != "Call the dentist about the appointment" {
		t.Errorf("expected first-line fallback title, got %q", ex.Title)
	}
	if ex.Category != CategoryMisc {
		t.Errorf("expected misc category, got %q", ex.Category)
	}
}

func TestClassify_RecoversBraceDelimitedObject(t *testing.T) {
	// Prose around the object is recovered via the first balanced braces
	c := New(modelServer(t, `Sure, here you go: {"title":"Buy milk","category":"personal"} — done!`), nil)
	ex, err := c.Classify(context.Background(), "buy milk", testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.Title != "Buy milk" || ex.Category != "personal" {
		t.Errorf("unexpected extraction: %+v", ex)
	}
}

func TestClassify_FencedOutputParses(t *testing.T) {
	// ```json fences are stripped before parsing
	c := New(modelServer(t, "```json\n{\"title\":\"Fix sink\",\"category\":\"tasks\"}\n```"), nil)
	ex, err := c.Classify(context.Background(), "fix the sink", testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.Title != "Fix sink" {
		t.Errorf("unexpected extraction: %+v", ex)
	}
}

func TestClassify_InvalidCategoryNormalised(t *testing.T) {
	// Categories outside the enum collapse to misc
	c := New(modelServer(t, `{"title":"x y z","category":"finance"}`), nil)
	ex, _ := c.Classify(context.Background(), "some note here", testSnapshot())
	if ex.Category != CategoryMisc {
		t.Errorf("expected misc, got %q", ex.Category)
	}
}

func TestClassify_ModelFailureIsUnavailable(t *testing.T) {
	// A non-success model response maps to ErrClassifierUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusPaymentRequired)
	}))
	t.Cleanup(srv.Close)

	c := New(llm.New(srv.URL, "k", "m"), nil)
	_, err := c.Classify(context.Background(), "note", testSnapshot())
	if !errors.Is(err, ErrClassifierUnavailable) {
		t.Fatalf("expected ErrClassifierUnavailable, got %v", err)
	}
}

func TestClassify_RulesFillGaps(t *testing.T) {
	// Enabled rules fill fields the model left empty
	c := New(
		modelServer(t, `{"title":"Pay electric bill","category":"tasks"}`),
		[]Rule{{Test: "(?i)bill", ProjectName: "Work", Priority: 3, Labels: []string{"finance"}}},
	)
	ex, err := c.Classify(context.Background(), "Pay the electric bill tomorrow", testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.ProjectName != "Work" || ex.Priority != 3 {
		t.Errorf("expected rule-filled fields, got %+v", ex)
	}
	if len(ex.Labels) != 1 || ex.Labels[0] != "finance" {
		t.Errorf("expected finance label, got %v", ex.Labels)
	}
}

// --- GroundingContext ---

func TestGroundingContext_ListsTaxonomy(t *testing.T) {
	// Projects, labels, and prefetched sections appear in the context
	got := GroundingContext(testSnapshot())
	for _, want := range []string{"- Work", "- Home", "- Voice", "Work: Upcoming bills"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in context:\n%s", want, got)
		}
	}
}

func TestGroundingContext_CapsProjects(t *testing.T) {
	// At most 100 project names are listed
	snap := &taxonomy.Snapshot{Sections: map[string][]todoist.Section{}}
	for i := 0; i < 150; i++ {
		snap.Projects = append(snap.Projects, todoist.Project{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Project %03d", i)})
	}
	got := GroundingContext(snap)
	if strings.Contains(got, "Project 100") {
		t.Error("expected project list capped at 100")
	}
	if !strings.Contains(got, "Project 099") {
		t.Error("expected 100th project present")
	}
}

func TestGroundingContext_OmitsUnfetchedSections(t *testing.T) {
	// Projects without prefetched sections get no section line
	snap := testSnapshot()
	got := GroundingContext(snap)
	if strings.Contains(got, "Home:") {
		t.Errorf("unexpected section line for Home:\n%s", got)
	}
}

// --- FallbackTitle ---

func TestFallbackTitle_FirstLine(t *testing.T) {
	// The first non-empty line becomes the title
	if got := FallbackTitle("\n\n  first real line \nsecond"); got != "first real line" {
		t.Errorf("got %q", got)
	}
}

func TestFallbackTitle_CapsLength(t *testing.T) {
	// Titles are capped at 80 runes
	long := strings.Repeat("ä", 120)
	got := FallbackTitle(long)
	if n := len([]rune(got)); n != 80 {
		t.Errorf("expected 80 runes, got %d", n)
	}
}
