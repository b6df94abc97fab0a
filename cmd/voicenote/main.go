package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voicenote/internal/config"
	"voicenote/internal/notify"
	"voicenote/internal/pipeline"
	"voicenote/internal/ui"
)

func main() {
	// Load env
	_ = godotenv.Load(".env")

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voicenote",
		Short: "Capture a voice note and file it as a task",
		Long: `voicenote triggers the dictation recorder, captures the transcript from
the clipboard, classifies it, and files it as a task in the right project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context())
		},
	}

	root.AddCommand(newCacheCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

// runCapture is the default command: one full capture run. A failure is
// surfaced on stderr and, best-effort, as a desktop notification so the run
// is visible even when launched from a hotkey without a terminal.
func runCapture(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	res, err := pipeline.New(cfg).Run(ctx)
	if err != nil {
		ui.New(os.Stderr).Error(err)
		_ = notify.Notify(context.Background(), "voicenote", fmt.Sprintf("Capture failed: %v", err))
		return err
	}

	_ = notify.Notify(context.Background(), "voicenote", fmt.Sprintf("Filed to %s: %s", res.Destination, ui.Clip(res.Title, 60)))
	return nil
}
