package main

import (
	"context"
	"flag"
	"time"

	"eventanalyzer/internal/adapters/config"
	pgclient "eventanalyzer/internal/adapters/postgres"
	sqliteclient "eventanalyzer/internal/adapters/sqlite"
	"eventanalyzer/internal/domain/event"
	pgrepo "eventanalyzer/internal/repository/postgres"
	"eventanalyzer/internal/seeds"
	"eventanalyzer/pkg/logger"
)

func main() {
	backend := flag.String("backend", "", "Registry backend: postgres or sqlite (default from REGISTRY_BACKEND)")
	sqlitePath := flag.String("sqlite", "", "SQLite database path (default from REGISTRY_SQLITE_PATH)")
	dryRun := flag.Bool("dry-run", false, "Validate the default catalogs and events without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()

	if *backend == "" {
		*backend = cfg.Registry.Backend
	}
	if *sqlitePath == "" {
		*sqlitePath = cfg.Registry.SQLitePath
	}

	sets := seeds.StatusSets()
	defs := seeds.Events()
	log.Infow("Starting seeder",
		"backend", *backend,
		"dry_run", *dryRun,
		"events", len(defs),
		"locations", len(sets.Location),
	)

	if *dryRun {
		if err := sets.Validate(); err != nil {
			log.Fatalf("Default catalogs are invalid: %v", err)
		}
		for _, d := range defs {
			if err := d.Validate(sets); err != nil {
				log.Fatalf("Event %s is invalid: %v", d.Name, err)
			}
		}
		log.Info("Dry-run mode: defaults validated")
		return
	}

	repo, closeFn := openRegistry(*backend, cfg, *sqlitePath, log)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := seeds.Apply(ctx, repo, log); err != nil {
		log.Fatalf("Failed to seed registry: %v", err)
	}
	log.Info("All seeds applied successfully")
}

// openRegistry connects the event repository of the chosen backend
func openRegistry(backend string, cfg *config.Config, sqlitePath string, log *logger.Logger) (event.Repository, func()) {
	switch backend {
	case config.BackendPostgres:
		client, err := pgclient.NewClient(cfg.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := client.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Infow("Connected to PostgreSQL", "database", cfg.Postgres.Database)
		return pgrepo.NewEventRepository(client.DB()), func() { _ = client.Close() }
	case config.BackendSQLite:
		client, err := sqliteclient.NewClient(sqlitePath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		log.Infow("Opened SQLite registry", "path", sqlitePath)
		return pgrepo.NewEventRepository(client.DB()), func() { _ = client.Close() }
	}
	log.Fatalf("Seeder supports postgres and sqlite, got %q", backend)
	return nil, func() {}
}
