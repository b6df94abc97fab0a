// Package capture implements the clipboard handshake with the external
// dictation tool.
//
// The handshake writes a unique sentinel to the clipboard, triggers the
// recorder, waits for a stop signal (a new entry in a watched directory),
// then polls the clipboard until something that is not the sentinel shows up.
// All waiting is bounded polling through an injectable Clock so the timing
// behaviour is fully testable.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicenote/internal/clipboard"
)

// ErrCaptureTimeout reports that no transcript was observed on the clipboard
// before the capture window closed.
var ErrCaptureTimeout = errors.New("capture: no transcript observed before timeout")

// Clock abstracts time so polling loops can be driven deterministically.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Options bounds the two polling phases. Zero fields take the defaults below.
type Options struct {
	StopSignalDir    string        // directory gaining one entry when recording completes; "" or missing skips the phase
	StopPollEvery    time.Duration // default 200ms
	StopTimeout      time.Duration // default 10m
	SettleDelay      time.Duration // wait after stop detection so a slow writer can flush; default 1.5s
	CapturePollEvery time.Duration // default 80ms
	CaptureTimeout   time.Duration // default 20s
	RereadDelay      time.Duration // wait before the confirming second read; default 300ms
	MinLength        int           // shortest clipboard value accepted as a transcript; default 8
}

func (o *Options) fillDefaults() {
	if o.StopPollEvery <= 0 {
		o.StopPollEvery = 200 * time.Millisecond
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Minute
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 1500 * time.Millisecond
	}
	if o.CapturePollEvery <= 0 {
		o.CapturePollEvery = 80 * time.Millisecond
	}
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = 20 * time.Second
	}
	if o.RereadDelay <= 0 {
		o.RereadDelay = 300 * time.Millisecond
	}
	if o.MinLength <= 0 {
		o.MinLength = 8
	}
}

// Handshake coordinates one capture run.
type Handshake struct {
	clip    clipboard.Clipboard
	clock   Clock
	trigger func(context.Context) error // fire-and-forget recorder start
	opts    Options
}

// New creates a Handshake using the real clock. trigger may be nil when no
// recorder needs starting (the transcript is pasted manually).
func New(clip clipboard.Clipboard, trigger func(context.Context) error, opts Options) *Handshake {
	opts.fillDefaults()
	return &Handshake{clip: clip, clock: realClock{}, trigger: trigger, opts: opts}
}

// WithClock replaces the clock. Intended for tests.
func (h *Handshake) WithClock(c Clock) *Handshake {
	h.clock = c
	return h
}

// Capture runs the full handshake and returns the trimmed transcript.
//
// Expectations:
//   - Writes a sentinel, triggers the recorder, and restores the original
//     clipboard value before returning (restore is best-effort)
//   - A missing stop-signal directory skips the stop-detection phase
//   - A clipboard value counts only if it differs from the sentinel, differs
//     from the previous poll, and meets the minimum length
//   - When a second read after RereadDelay is at least as long, it is preferred
//   - Returns ErrCaptureTimeout when nothing is captured in the window
func (h *Handshake) Capture(ctx context.Context) (string, error) {
	sentinel := fmt.Sprintf("voicenote-%s-%d", uuid.New().String(), h.clock.Now().UnixNano())

	original, origErr := h.clip.Read()
	if err := h.clip.Write(sentinel); err != nil {
		return "", fmt.Errorf("capture: write sentinel: %w", err)
	}
	defer func() {
		if origErr != nil {
			return
		}
		if err := h.clip.Write(original); err != nil {
			slog.Warn("[capture] clipboard restore failed", "err", err)
		}
	}()

	if h.trigger != nil {
		if err := h.trigger(ctx); err != nil {
			// Fire-and-forget: the recorder may already be running.
			slog.Warn("[capture] recorder trigger failed", "err", err)
		}
	}

	if err := h.awaitStopSignal(ctx); err != nil {
		return "", err
	}

	captured, err := h.pollClipboard(ctx, sentinel)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(captured), nil
}

// awaitStopSignal polls the stop-signal directory until an entry not present
// in the starting snapshot appears, then applies the settle delay. A missing
// directory means the feature is unavailable, not an error. Timing out here is
// not fatal either; the capture phase makes the final call.
func (h *Handshake) awaitStopSignal(ctx context.Context) error {
	dir := h.opts.StopSignalDir
	if dir == "" {
		return nil
	}
	baseline, err := dirNames(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("capture: read stop-signal dir: %w", err)
	}

	deadline := h.clock.Now().Add(h.opts.StopTimeout)
	for h.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		names, err := dirNames(dir)
		if err == nil {
			for name := range names {
				if _, known := baseline[name]; !known {
					h.clock.Sleep(h.opts.SettleDelay)
					return nil
				}
			}
		}
		h.clock.Sleep(h.opts.StopPollEvery)
	}
	slog.Warn("[capture] no stop signal before timeout; polling clipboard anyway")
	return nil
}

// pollClipboard watches for a value that passes the capture checks. Once a
// candidate appears it waits briefly and reads again, preferring the second
// read when it is at least as long (the paste may land across two writes).
func (h *Handshake) pollClipboard(ctx context.Context, sentinel string) (string, error) {
	prev := sentinel
	deadline := h.clock.Now().Add(h.opts.CaptureTimeout)
	for h.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, err := h.clip.Read()
		if err == nil {
			if v != sentinel && v != prev && len(strings.TrimSpace(v)) >= h.opts.MinLength {
				h.clock.Sleep(h.opts.RereadDelay)
				if again, err := h.clip.Read(); err == nil && again != sentinel && len(again) >= len(v) {
					v = again
				}
				return v, nil
			}
			prev = v
		}
		h.clock.Sleep(h.opts.CapturePollEvery)
	}
	return "", ErrCaptureTimeout
}

func dirNames(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}
