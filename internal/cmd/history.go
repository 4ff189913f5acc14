package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bite/internal/config"
	"bite/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded command history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			path := cfg.HistoryFile
			if path == "" {
				path = history.DefaultPath()
			}
			st, err := history.Open(path, cfg.HistoryLimit)
			if err != nil {
				return err
			}
			entries := st.Entries()
			start := 0
			if limit > 0 && len(entries) > limit {
				start = len(entries) - limit
			}
			for i, e := range entries[start:] {
				fmt.Fprintf(cmd.OutOrStdout(), "%5d  %s  %s\n",
					start+i+1, e.Time.Format("2006-01-02 15:04:05"), e.Command)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last N entries")
	return cmd
}
