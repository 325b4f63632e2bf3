package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/pkg/errors"
)

// Compile-time check
var _ event.Repository = (*EventRepository)(nil)

// EventRepository implements event.Repository using sqlx
type EventRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewEventRepository creates a new event configuration repository
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db, now: time.Now}
}

type eventRow struct {
	Name       string    `db:"name"`
	Ordinal    int       `db:"ordinal"`
	InitParams string    `db:"init_params"`
	ProbTable  string    `db:"prob_table"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *EventRepository) rows(ctx context.Context) ([]eventRow, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT name, ordinal, init_params, prob_table, updated_at
		FROM events
		ORDER BY ordinal, name`)
	if err != nil {
		return nil, registryErr(err, "failed to load events")
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no events configured, run the seeder")
	}
	return rows, nil
}

// GetEventInfo returns init parameters per event and algorithm
func (r *EventRepository) GetEventInfo(ctx context.Context) (map[string]event.InitParams, error) {
	rows, err := r.rows(ctx)
	if err != nil {
		return nil, err
	}

	info := make(map[string]event.InitParams, len(rows))
	for _, row := range rows {
		var params event.InitParams
		if err := json.Unmarshal([]byte(row.InitParams), &params); err != nil {
			return nil, registryErr(err, "decode init params of "+row.Name)
		}
		info[row.Name] = params
	}
	return info, nil
}

// GetEventList returns event labels in catalog order
func (r *EventRepository) GetEventList(ctx context.Context) ([]string, error) {
	rows, err := r.rows(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}
	return names, nil
}

// GetEventProbMap returns the sampling table of every event
func (r *EventRepository) GetEventProbMap(ctx context.Context) (event.ProbabilityTable, error) {
	rows, err := r.rows(ctx)
	if err != nil {
		return nil, err
	}

	tables := make(event.ProbabilityTable, len(rows))
	for _, row := range rows {
		var table event.Table
		if err := json.Unmarshal([]byte(row.ProbTable), &table); err != nil {
			return nil, registryErr(err, "decode probability table of "+row.Name)
		}
		tables[row.Name] = table
	}
	return tables, nil
}

// GetSystemStatusSets returns the current catalog snapshot
func (r *EventRepository) GetSystemStatusSets(ctx context.Context) (catalog.StatusSets, error) {
	var rows []struct {
		Modality string `db:"modality"`
		Ordinal  int    `db:"ordinal"`
		Category string `db:"category"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT modality, ordinal, category
		FROM status_categories
		ORDER BY modality, ordinal`)
	if err != nil {
		return catalog.StatusSets{}, registryErr(err, "failed to load status categories")
	}
	if len(rows) == 0 {
		return catalog.StatusSets{}, errors.Wrap(errors.ErrNotFound, "status catalog is empty, run the seeder")
	}

	var sets catalog.StatusSets
	for _, row := range rows {
		switch catalog.Modality(row.Modality) {
		case catalog.Motion:
			sets.Motion = append(sets.Motion, row.Category)
		case catalog.Sound:
			sets.Sound = append(sets.Sound, row.Category)
		case catalog.Location:
			sets.Location = append(sets.Location, row.Category)
		default:
			return catalog.StatusSets{}, errors.Wrapf(errors.ErrRegistry, "unknown modality %q in catalog", row.Modality)
		}
	}
	return sets, nil
}

// ReplaceStatusSets swaps the whole catalog in one transaction
func (r *EventRepository) ReplaceStatusSets(ctx context.Context, sets catalog.StatusSets) error {
	if err := sets.Validate(); err != nil {
		return err
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_categories`); err != nil {
			return registryErr(err, "failed to clear status categories")
		}
		insert := tx.Rebind(`INSERT INTO status_categories (modality, ordinal, category) VALUES (?, ?, ?)`)
		for _, m := range catalog.Modalities {
			for i, label := range sets.Labels(m) {
				if _, err := tx.ExecContext(ctx, insert, m.String(), i, label); err != nil {
					return registryErr(err, "failed to insert status category")
				}
			}
		}
		return nil
	})
}

// UpsertEvent creates or replaces an event definition
func (r *EventRepository) UpsertEvent(ctx context.Context, d *event.Definition) error {
	if d == nil || d.Name == "" {
		return errors.NewValidationError("name", "required", nil)
	}

	params := d.InitParams
	if params == nil {
		params = event.InitParams{}
	}
	initParams, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encode init params")
	}
	table := d.Table
	if table == nil {
		table = event.Table{}
	}
	probTable, err := json.Marshal(table)
	if err != nil {
		return errors.Wrap(err, "encode probability table")
	}
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = r.now()
	}

	query := r.db.Rebind(`
		INSERT INTO events (name, ordinal, init_params, prob_table, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			ordinal = excluded.ordinal,
			init_params = excluded.init_params,
			prob_table = excluded.prob_table,
			updated_at = excluded.updated_at`)

	if _, err := r.db.ExecContext(ctx, query, d.Name, d.Position, string(initParams), string(probTable), updated.UTC()); err != nil {
		return registryErr(err, "failed to upsert event")
	}
	return nil
}
