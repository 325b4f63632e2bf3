package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	sqliteclient "eventanalyzer/internal/adapters/sqlite"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/internal/ml"
	"eventanalyzer/internal/ml/gmmhmm"
	pgrepo "eventanalyzer/internal/repository/postgres"
	"eventanalyzer/internal/services/analyzer"
	"eventanalyzer/pkg/logger"
)

// app holds the persistent flags and the lazily opened registry
type app struct {
	dbPath   string
	algo     string
	logLevel string
	asJSON   bool
	seed     uint64

	client *sqliteclient.Client
	svc    *analyzer.Service
	log    *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "analyzerctl",
		Short: "Manage event models in a local SQLite registry",
		Long: `analyzerctl initializes, trains and queries event models stored in a
SQLite registry, without running the HTTP service.

Example:
  analyzerctl seed
  analyzerctl init --all --tag t0
  analyzerctl train-random --all --source t0 --target t1
  analyzerctl predict --tag t1 '[{"motion":"sitting","sound":"shop","location":"coffee"}]'`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	defaultDB := os.Getenv("REGISTRY_SQLITE_PATH")
	if defaultDB == "" {
		defaultDB = "eventanalyzer.db"
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", defaultDB, "Path to the SQLite registry")
	root.PersistentFlags().StringVar(&a.algo, "algo", string(model.GMMHMM), "Model algorithm")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Print JSON instead of text")
	root.PersistentFlags().Uint64Var(&a.seed, "seed", 0, "Random seed for sampling (0 = random)")

	root.AddCommand(
		a.seedCmd(),
		a.initCmd(),
		a.trainCmd(),
		a.trainRandomCmd(),
		a.predictCmd(),
		a.tagsCmd(),
		a.showCmd(),
		a.watchCmd(),
	)
	return root
}

// service opens the registry on first use
func (a *app) service() (*analyzer.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	log, err := logger.New(a.logLevel, "development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.log = log

	client, err := sqliteclient.NewClient(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	a.client = client

	cfg := analyzer.DefaultConfig()
	cfg.DefaultAlgorithm = model.Algorithm(a.algo)
	cfg.RandomSeed = a.seed
	a.svc = analyzer.NewService(cfg, analyzer.Deps{
		Events:  pgrepo.NewEventRepository(client.DB()),
		Models:  pgrepo.NewModelRepository(client.DB()),
		Engines: ml.NewRegistry(gmmhmm.New()),
		Log:     log,
	})
	return a.svc, nil
}

func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client, a.svc = nil, nil
	return err
}

func (a *app) algorithm() model.Algorithm {
	return model.Algorithm(a.algo)
}

// printJSON writes v indented
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
