package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"eventanalyzer/internal/adapters/kafka"
	"eventanalyzer/internal/events"
	"eventanalyzer/pkg/logger"
)

func (a *app) watchCmd() *cobra.Command {
	var brokers string
	var predictions, fromStart bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print model lifecycle or prediction events from Kafka",
		Long: `Follow the events the service publishes. Model writes are read by
default; --predictions switches to classification results.

Example:
  analyzerctl watch --brokers localhost:9092
  analyzerctl watch --predictions --from-start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(a.logLevel, "development")
			if err != nil {
				return err
			}

			topic := kafka.TopicModelLifecycle
			if predictions {
				topic = kafka.TopicPredictions
			}
			consumer := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:    strings.Split(brokers, ","),
				Topic:      topic,
				FromLatest: !fromStart,
				Logger:     log,
			})
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s on %s (Ctrl+C to stop)\n", topic, brokers)
			if predictions {
				err = kafka.ConsumeJSON(ctx, consumer, func(_ context.Context, e events.PredictionEvent) error {
					printPrediction(out, e)
					return nil
				})
			} else {
				err = kafka.ConsumeJSON(ctx, consumer, func(_ context.Context, e events.ModelEvent) error {
					printModelEvent(out, e)
					return nil
				})
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	defaultBrokers := os.Getenv("KAFKA_BROKERS")
	if defaultBrokers == "" {
		defaultBrokers = "localhost:9092"
	}
	cmd.Flags().StringVar(&brokers, "brokers", defaultBrokers, "Comma-separated Kafka brokers")
	cmd.Flags().BoolVar(&predictions, "predictions", false, "Watch predictions instead of model writes")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Read the topic from the beginning")
	return cmd
}

func printModelEvent(w io.Writer, e events.ModelEvent) {
	from := ""
	if e.SourceTag != "" && e.SourceTag != e.Tag {
		from = " from " + e.SourceTag
	}
	fmt.Fprintf(w, "[%s] %-22s %s/%s/%s%s %s (%s)\n",
		e.Timestamp.Format("15:04:05"), e.Type, e.Algorithm, e.Tag, e.Event, from, e.Status, humanize.Time(e.Timestamp))
}

func printPrediction(w io.Writer, e events.PredictionEvent) {
	fmt.Fprintf(w, "[%s] %s/%s -> %s (%.1f%%)",
		e.Timestamp.Format("15:04:05"), e.Algorithm, e.Tag, e.Event, e.Confidence*100)
	if len(e.Skipped) > 0 {
		fmt.Fprintf(w, " skipped %s", strings.Join(e.Skipped, ","))
	}
	fmt.Fprintln(w)
}
