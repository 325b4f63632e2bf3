package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eventanalyzer/internal/domain/catalog"
)

func (a *app) predictCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "predict <sequence>",
		Short: "Classify an observation sequence against every model of a tag",
		Long: `Classify a sequence given as a JSON list of observations, a file path,
or - for stdin.

Example:
  analyzerctl predict --tag t1 '[{"motion":"sitting","sound":"shop","location":"coffee"}]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var seq catalog.Sequence
			if err := readJSON(cmd.InOrStdin(), args[0], &seq); err != nil {
				return fmt.Errorf("read sequence: %w", err)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.PredictEvent(cmd.Context(), seq, tag, a.algorithm())
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}

			events := make([]string, 0, len(res.Probabilities))
			for e := range res.Probabilities {
				events = append(events, e)
			}
			sort.Slice(events, func(i, j int) bool {
				return res.Probabilities[events[i]] > res.Probabilities[events[j]]
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Most likely: %s (%.1f%%)\n\n", res.Event, res.Confidence*100)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EVENT\tPROBABILITY\tLOG-LIKELIHOOD")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%.4f\t%.2f\n", e, res.Probabilities[e], res.LogLikelihoods[e])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for e, reason := range res.Skipped {
				fmt.Fprintf(out, "skipped %s: %s\n", e, reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Tag whose models are compared (required)")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}
