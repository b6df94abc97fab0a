// Package notify covers the two OS integration points: launching the
// dictation recorder via its URI scheme and posting desktop notifications.
// Both shell out; both are best-effort from the caller's point of view.
package notify

import (
	"context"
	"os/exec"
	"strings"
)

// TriggerRecorder opens the recorder URI (e.g. superwhisper://record) with the
// system URI handler.
func TriggerRecorder(ctx context.Context, uri string) error {
	cmd := exec.CommandContext(ctx, "open", uri)
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return &ScriptError{Stderr: string(ee.Stderr), Err: err}
		}
		return err
	}
	return nil
}

// Notify posts a desktop notification via osascript. The script is passed on
// stdin so titles and bodies can contain arbitrary quoting.
func Notify(ctx context.Context, title, body string) error {
	script := "display notification \"" + escape(body) + "\" with title \"" + escape(title) + "\""
	cmd := exec.CommandContext(ctx, "osascript", "-")
	cmd.Stdin = strings.NewReader(script)
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return &ScriptError{Stderr: string(ee.Stderr), Err: err}
		}
		return err
	}
	return nil
}

// escape makes s safe inside a double-quoted AppleScript string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// ScriptError wraps a shell-out failure with the command's error output.
type ScriptError struct {
	Stderr string
	Err    error
}

func (e *ScriptError) Error() string {
	if strings.TrimSpace(e.Stderr) != "" {
		return strings.TrimSpace(e.Stderr)
	}
	return e.Err.Error()
}
