package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"eventanalyzer/internal/domain/catalog"
	pgrepo "eventanalyzer/internal/repository/postgres"
	"eventanalyzer/internal/seeds"
	"eventanalyzer/internal/services/analyzer"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the default catalogs and events into the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.service(); err != nil {
				return err
			}
			if err := seeds.Apply(cmd.Context(), pgrepo.NewEventRepository(a.client.DB()), a.log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d events into %s\n", len(seeds.Events()), a.dbPath)
			return nil
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var tag string
	var all bool

	cmd := &cobra.Command{
		Use:   "init [event]",
		Short: "Create initialized models from the event defaults",
		Long: `Create an initialized model for one event, or for every event with --all.

Example:
  analyzerctl init go_home --tag t0
  analyzerctl init --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if all {
				res, err := svc.InitAll(cmd.Context(), tag, a.algorithm())
				if err != nil {
					return err
				}
				return a.printBatch(cmd.OutOrStdout(), res)
			}
			if len(args) != 1 || tag == "" {
				return fmt.Errorf("init needs an event and --tag, or --all")
			}
			id, err := svc.RebuildEvent(cmd.Context(), args[0], a.algorithm(), tag)
			if err != nil {
				return err
			}
			return a.printID(cmd.OutOrStdout(), id)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Tag to write (default init_model_<unix> with --all)")
	cmd.Flags().BoolVar(&all, "all", false, "Initialize every event")
	return cmd
}

func (a *app) trainRandomCmd() *cobra.Command {
	var source, target string
	var length, count int
	var all bool

	cmd := &cobra.Command{
		Use:   "train-random [event]",
		Short: "Train models on sequences sampled from the event tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if all {
				res, err := svc.TrainAll(cmd.Context(), source, target, a.algorithm())
				if err != nil {
					return err
				}
				return a.printBatch(cmd.OutOrStdout(), res)
			}
			if len(args) != 1 {
				return fmt.Errorf("train-random needs an event or --all")
			}
			id, err := svc.TrainEventRandomly(cmd.Context(), args[0], source, target, a.algorithm(), length, count)
			if err != nil {
				return err
			}
			return a.printID(cmd.OutOrStdout(), id)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Tag holding the models to start from (required)")
	cmd.Flags().StringVar(&target, "target", "", "Tag to write (default random_train)")
	cmd.Flags().IntVar(&length, "len", 0, "Observations per sequence (default 10)")
	cmd.Flags().IntVar(&count, "count", 0, "Sequences per event (default 30)")
	cmd.Flags().BoolVar(&all, "all", false, "Train every event")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (a *app) trainCmd() *cobra.Command {
	var source, target, obsFile string

	cmd := &cobra.Command{
		Use:   "train <event>",
		Short: "Train a model on observations read from a JSON file",
		Long: `Train a model on a 2-D JSON list of observations.

Example:
  analyzerctl train dining_in_restaurant --source t0 --obs obs.json
  cat obs.json | analyzerctl train dining_in_restaurant --source t0 --obs -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var obs catalog.ObservationSet
			if err := readJSON(cmd.InOrStdin(), obsFile, &obs); err != nil {
				return fmt.Errorf("read observations: %w", err)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			id, err := svc.TrainEvent(cmd.Context(), obs, args[0], source, target, a.algorithm())
			if err != nil {
				return err
			}
			return a.printID(cmd.OutOrStdout(), id)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Tag holding the model to start from (required)")
	cmd.Flags().StringVar(&target, "target", "", "Tag to write (default: source)")
	cmd.Flags().StringVar(&obsFile, "obs", "-", "Observation file, - for stdin")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (a *app) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with their model counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			tags, err := svc.ListTags(cmd.Context(), a.algorithm())
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), tags)
			}
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TAG\tMODELS\tTRAINED\tUPDATED")
			for _, t := range tags {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.Tag, t.Models, t.Trained, humanize.Time(t.UpdatedAt))
			}
			return tw.Flush()
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tag> <event>",
		Short: "Show one model record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			rec, err := svc.GetModel(cmd.Context(), a.algorithm(), args[0], args[1])
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %s\n", rec.ID)
			fmt.Fprintf(out, "Model:        %s/%s/%s\n", rec.Algorithm, rec.Tag, rec.Event)
			fmt.Fprintf(out, "Status:       %s\n", rec.Status)
			fmt.Fprintf(out, "Description:  %s\n", rec.Description)
			fmt.Fprintf(out, "Updated:      %s (%s)\n", rec.Timestamp.Format("2006-01-02 15:04:05"), humanize.Time(rec.Timestamp))
			fmt.Fprintf(out, "Created:      %s\n", humanize.Time(rec.CreatedAt))
			fmt.Fprintf(out, "Parameters:   %s\n", humanize.Bytes(uint64(len(rec.Params))))
			fmt.Fprintf(out, "Catalog:      %d motion, %d sound, %d location\n",
				len(rec.StatusSets.Motion), len(rec.StatusSets.Sound), len(rec.StatusSets.Location))
			if n := len(rec.RawObservations); n > 0 {
				steps := 0
				for _, seq := range rec.RawObservations {
					steps += len(seq)
				}
				fmt.Fprintf(out, "Trained on:   %s sequences, %s observations\n", humanize.Comma(int64(n)), humanize.Comma(int64(steps)))
			}
			return nil
		},
	}
}

func (a *app) printID(w io.Writer, id string) error {
	if a.asJSON {
		return printJSON(w, map[string]string{"modelObjectId": id})
	}
	_, err := fmt.Fprintln(w, id)
	return err
}

func (a *app) printBatch(w io.Writer, res *analyzer.BatchResult) error {
	if a.asJSON {
		return printJSON(w, res)
	}
	fmt.Fprintf(w, "Tag %s: %d succeeded, %d failed\n", res.Tag, len(res.Succeeded), len(res.Failed))

	failed := make([]string, 0, len(res.Failed))
	for ev := range res.Failed {
		failed = append(failed, ev)
	}
	sort.Strings(failed)
	for _, ev := range failed {
		fmt.Fprintf(w, "  %s: %s\n", ev, res.Failed[ev])
	}
	return nil
}

// readJSON decodes path ("-" for stdin, or a literal JSON document) into dst
func readJSON(stdin io.Reader, path string, dst interface{}) error {
	var data []byte
	var err error
	switch {
	case path == "-":
		data, err = io.ReadAll(stdin)
	case json.Valid([]byte(path)):
		data = []byte(path)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
