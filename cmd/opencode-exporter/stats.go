package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pario-ai/opencode-exporter/pkg/collector"
	"github.com/pario-ai/opencode-exporter/pkg/exposition"
	"github.com/pario-ai/opencode-exporter/pkg/models"
	"github.com/pario-ai/opencode-exporter/pkg/source"
)

// collectOnce runs a single collection against the configured database.
func collectOnce(ctx context.Context, dbPath string) (*models.Snapshot, error) {
	snap, err := collector.New(dbPath).Collect(ctx)
	if errors.Is(err, source.ErrNotFound) {
		return nil, fmt.Errorf("no metrics collected: %w", err)
	}
	return snap, err
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show token usage and cost statistics once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			snap, err := collectOnce(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "SESSIONS\t%s\n", humanize.Comma(snap.SessionCount))
			fmt.Fprintf(w, "MESSAGES\t%s\n", humanize.Comma(snap.MessageCount))
			fmt.Fprintf(w, "COST\t$%.4f\n", snap.TotalCost)
			fmt.Fprintf(w, "COST/DAY\t$%.4f\n", snap.CostPerDay)
			fmt.Fprintf(w, "TOKENS/SESSION\t%.1f\n", snap.TokensPerSession)
			fmt.Fprintf(w, "TOKENS\tinput %s, output %s, reasoning %s, cache read %s, cache write %s\n",
				humanize.Comma(snap.TotalTokens.Input), humanize.Comma(snap.TotalTokens.Output),
				humanize.Comma(snap.TotalTokens.Reasoning), humanize.Comma(snap.TotalTokens.CacheRead),
				humanize.Comma(snap.TotalTokens.CacheWrite))
			if err := w.Flush(); err != nil {
				return err
			}

			if len(snap.ModelStats) == 0 {
				fmt.Fprintln(out, "\nNo usage data found.")
				return nil
			}

			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tPROVIDER\tMESSAGES\tINPUT\tOUTPUT\tCOST")
			for _, k := range snap.SortedModelKeys() {
				st := snap.ModelStats[k]
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t$%.4f\n",
					k.Model, k.Provider, st.MessageCount,
					humanize.Comma(st.TokensInput), humanize.Comma(st.TokensOutput), st.Cost)
			}
			return w.Flush()
		},
	}
}

func newRenderCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Print the metrics exposition once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			snap, err := collectOnce(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			return exposition.Render(cmd.OutOrStdout(), snap)
		},
	}
}
