package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicenote/internal/config"
	"voicenote/internal/history"
	"voicenote/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently filed captures, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			store, err := history.Open(cfg.HistoryDir())
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.Recent(n)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("no captures recorded yet")
				return nil
			}
			for _, r := range recs {
				line := fmt.Sprintf("%s  %-40s → %s",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					ui.Clip(r.Title, 40),
					r.Destination)
				if len(r.Labels) > 0 {
					line += "  @" + strings.Join(r.Labels, " @")
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 20, "maximum number of entries to show (0 = all)")
	return cmd
}
