// Package pipeline wires the capture stages end to end: clipboard handshake,
// taxonomy snapshot, classification, resolution, filing, then the local
// archive and history records.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"voicenote/internal/archive"
	"voicenote/internal/capture"
	"voicenote/internal/classify"
	"voicenote/internal/clipboard"
	"voicenote/internal/config"
	"voicenote/internal/filer"
	"voicenote/internal/history"
	"voicenote/internal/llm"
	"voicenote/internal/notify"
	"voicenote/internal/resolve"
	"voicenote/internal/taxonomy"
	"voicenote/internal/todoist"
	"voicenote/internal/ui"
)

// Result is the outcome of one successful capture run.
type Result struct {
	Transcript  string
	Title       string
	Category    string
	TaskID      string
	Destination string
	Labels      []string
}

// Pipeline holds the dependencies for one capture run. Fields are exported so
// tests can substitute fakes; New wires the real implementations.
type Pipeline struct {
	Config  config.Config
	Clip    clipboard.Clipboard
	Todoist *todoist.Client
	LLM     *llm.Client
	Trigger func(context.Context) error // recorder start; nil skips
	Clock   capture.Clock               // nil means real time
	Out     io.Writer                   // nil means stdout
}

// New builds a Pipeline on the real clipboard, LLM, and task service clients.
func New(cfg config.Config) *Pipeline {
	return &Pipeline{
		Config:  cfg,
		Clip:    clipboard.System{},
		Todoist: todoist.New(cfg.TodoistBaseURL, cfg.TodoistToken),
		LLM:     llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.Model),
		Trigger: func(ctx context.Context) error {
			return notify.TriggerRecorder(ctx, cfg.RecorderURI)
		},
	}
}

// Run executes one capture end to end.
//
// Expectations:
//   - Aborts before any remote write when capture, the taxonomy snapshot, or
//     the classifier fails; nothing is archived on abort
//   - The transcript is classified against the cached taxonomy, merged with
//     local rules when enabled, resolved, and filed exactly once
//   - Archive and history writes happen only after successful filing and
//     never fail the run
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	cfg := p.Config
	out := ui.New(p.outWriter())

	h := capture.New(p.Clip, p.Trigger, capture.Options{StopSignalDir: cfg.StopSignalDir})
	if p.Clock != nil {
		h.WithClock(p.Clock)
	}

	out.Step("recording")
	transcript, err := h.Capture(ctx)
	if err != nil {
		return Result{}, err
	}
	out.Step("captured " + ui.Clip(transcript, 60))

	cache := taxonomy.New(p.Todoist, cfg.CacheFile(), cfg.CacheTTL)
	snap, err := cache.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	cache.PrefetchSections(ctx, snap, cfg.SectionsPrefetch)

	var rules []classify.Rule
	if cfg.RulesEnabled {
		rules = classify.LoadRules(cfg.RulesFile())
	}

	out.Step("classifying")
	classifier := classify.New(p.LLM, rules)
	ex, err := classifier.Classify(ctx, transcript, snap)
	if err != nil {
		return Result{}, err
	}

	resolver := resolve.New(cache, cfg.DefaultProjectID, cfg.DefaultProjectName)
	res := resolver.Resolve(ctx, transcript, ex, snap)

	out.Step("filing")
	filed, err := filer.New(p.Todoist).File(ctx, transcript, ex, res)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Transcript:  transcript,
		Title:       taskTitle(transcript, ex),
		Category:    ex.Category,
		TaskID:      filed.TaskID,
		Destination: filed.Destination,
		Labels:      res.Labels,
	}
	p.record(result)

	out.Filed(result.Title, result.Destination, result.TaskID, result.Labels)
	return result, nil
}

// record persists the local archive and history entries. Both are best-effort;
// the task already exists remotely.
func (p *Pipeline) record(r Result) {
	cfg := p.Config

	a := archive.New(cfg.ArchiveDir())
	if _, err := a.Save(r.Category, r.Title, r.Destination, r.Transcript, time.Now()); err != nil {
		slog.Warn("[pipeline] archive write failed", "err", err)
	}

	store, err := history.Open(cfg.HistoryDir())
	if err != nil {
		slog.Warn("[pipeline] history open failed", "err", err)
		return
	}
	defer store.Close()
	if _, err := store.Append(history.Record{
		TaskID:      r.TaskID,
		Title:       r.Title,
		Destination: r.Destination,
		Labels:      r.Labels,
	}); err != nil {
		slog.Warn("[pipeline] history append failed", "err", err)
	}
}

func (p *Pipeline) outWriter() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}

func taskTitle(transcript string, ex classify.Extracted) string {
	if ex.Title != "" {
		return ex.Title
	}
	return classify.FallbackTitle(transcript)
}
