// Package filer turns a resolved extraction into a created task.
package filer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voicenote/internal/classify"
	"voicenote/internal/resolve"
	"voicenote/internal/todoist"
)

// ErrSubmissionFailed wraps any task-creation failure so callers can react
// uniformly regardless of the underlying transport error.
var ErrSubmissionFailed = errors.New("task submission failed")

// Filed describes a successfully created task.
type Filed struct {
	TaskID      string
	Destination string
}

// Filer submits tasks to the task service.
type Filer struct {
	client *todoist.Client
}

// New creates a Filer on top of client.
func New(client *todoist.Client) *Filer {
	return &Filer{client: client}
}

// File creates a task from the extraction and resolution.
//
// Expectations:
//   - Content is the extracted title, falling back to the transcript's first line
//   - Description is the extraction's description, falling back to the full
//     transcript; captured URLs are appended as bullets either way
//   - A non-zero priority is clamped into [1,4]; zero is omitted
//   - A section is only sent together with its project
//   - Failure returns an error wrapping ErrSubmissionFailed; no retries
func (f *Filer) File(ctx context.Context, transcript string, ex classify.Extracted, res resolve.Resolution) (Filed, error) {
	content := strings.TrimSpace(ex.Title)
	if content == "" {
		content = classify.FallbackTitle(transcript)
	}

	req := todoist.TaskRequest{
		Content:     content,
		Description: buildDescription(transcript, ex),
		ProjectID:   res.ProjectID,
		Labels:      res.Labels,
		DueString:   ex.DueString,
	}
	if res.ProjectID != "" {
		req.SectionID = res.SectionID
	}
	if ex.Priority != 0 {
		req.Priority = clampPriority(ex.Priority)
	}

	task, err := f.client.CreateTask(ctx, req)
	if err != nil {
		return Filed{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	return Filed{TaskID: task.ID, Destination: Destination(res)}, nil
}

// Destination renders the human-readable target, "Project › Section" when a
// section was resolved, the bare project name otherwise, "Inbox" with neither.
func Destination(res resolve.Resolution) string {
	if res.ProjectID == "" {
		return "Inbox"
	}
	if res.SectionName != "" {
		return res.ProjectName + " › " + res.SectionName
	}
	return res.ProjectName
}

func buildDescription(transcript string, ex classify.Extracted) string {
	desc := strings.TrimSpace(ex.Description)
	if desc == "" {
		desc = strings.TrimSpace(transcript)
	}
	if len(ex.URLs) > 0 {
		var sb strings.Builder
		sb.WriteString(desc)
		for _, u := range ex.URLs {
			if strings.TrimSpace(u) == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("- ")
			sb.WriteString(u)
		}
		desc = sb.String()
	}
	return desc
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 4 {
		return 4
	}
	return p
}
