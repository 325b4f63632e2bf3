package seeds

import (
	"context"

	"eventanalyzer/internal/domain/event"
	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
)

// Apply writes the default catalogs and event definitions (idempotent)
func Apply(ctx context.Context, repo event.Repository, log *logger.Logger) error {
	sets := StatusSets()
	if err := sets.Validate(); err != nil {
		return errors.Wrap(err, "default catalogs")
	}

	events := Events()
	for _, d := range events {
		if err := d.Validate(sets); err != nil {
			return err
		}
	}

	if err := repo.ReplaceStatusSets(ctx, sets); err != nil {
		return errors.Wrap(err, "seed status sets")
	}
	log.Infow("Seeded status sets",
		"motion", len(sets.Motion),
		"sound", len(sets.Sound),
		"location", len(sets.Location),
	)

	for _, d := range events {
		if err := repo.UpsertEvent(ctx, d); err != nil {
			return errors.Wrapf(err, "seed event %s", d.Name)
		}
	}
	log.Infow("Seeded events", "count", len(events))

	return nil
}
