package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voicenote/internal/config"
	"voicenote/internal/taxonomy"
	"voicenote/internal/todoist"
)

func newCacheCmd() *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or refresh the local taxonomy cache",
	}

	cache.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Fetch projects and labels from the task service now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			c := newCache(cfg)
			snap, err := c.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("refreshed: %d projects, %d labels\n", len(snap.Projects), len(snap.Labels))
			return nil
		},
	})

	cache.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cached taxonomy without touching the network",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			snap, age, err := newCache(cfg).Peek()
			if err != nil {
				return fmt.Errorf("no usable cache at %s: %w", cfg.CacheFile(), err)
			}
			fmt.Printf("cache age %s (ttl %s)\n\n", age.Round(time.Second), cfg.CacheTTL)
			for _, p := range snap.Projects {
				line := "  " + p.Name
				if secs, ok := snap.Sections[p.ID]; ok {
					line += fmt.Sprintf(" (%d sections)", len(secs))
				}
				fmt.Println(line)
			}
			fmt.Printf("\nlabels:")
			for _, l := range snap.Labels {
				fmt.Printf(" %s", l.Name)
			}
			fmt.Println()
			return nil
		},
	})

	return cache
}

func newCache(cfg config.Config) *taxonomy.Cache {
	client := todoist.New(cfg.TodoistBaseURL, cfg.TodoistToken)
	return taxonomy.New(client, cfg.CacheFile(), cfg.CacheTTL)
}
