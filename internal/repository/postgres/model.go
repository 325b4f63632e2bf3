package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/model"
	"eventanalyzer/pkg/errors"
)

// Compile-time check
var _ model.Repository = (*ModelRepository)(nil)

// ModelRepository implements model.Repository using sqlx
type ModelRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *sqlx.DB) *ModelRepository {
	return &ModelRepository{db: db, now: time.Now}
}

// modelRow is the storage shape of model.Record; structured fields are JSON text
type modelRow struct {
	ID              string         `db:"id"`
	Algorithm       string         `db:"algorithm"`
	Tag             string         `db:"tag"`
	Event           string         `db:"event"`
	Status          string         `db:"status"`
	Params          string         `db:"params"`
	StatusSets      string         `db:"status_sets"`
	Description     string         `db:"description"`
	RawObservations sql.NullString `db:"raw_observations"`
	RecordedAt      time.Time      `db:"recorded_at"`
	CreatedAt       time.Time      `db:"created_at"`
}

const modelColumns = `id, algorithm, tag, event, status, params, status_sets, description, raw_observations, recorded_at, created_at`

func toModelRow(r *model.Record) (*modelRow, error) {
	sets, err := json.Marshal(r.StatusSets)
	if err != nil {
		return nil, errors.Wrap(err, "encode status sets")
	}
	row := &modelRow{
		ID:          r.ID,
		Algorithm:   r.Algorithm.String(),
		Tag:         r.Tag,
		Event:       r.Event,
		Status:      r.Status.String(),
		Params:      string(r.Params),
		StatusSets:  string(sets),
		Description: r.Description,
		RecordedAt:  r.Timestamp.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.RawObservations != nil {
		raw, err := json.Marshal(r.RawObservations)
		if err != nil {
			return nil, errors.Wrap(err, "encode raw observations")
		}
		row.RawObservations = sql.NullString{String: string(raw), Valid: true}
	}
	return row, nil
}

func (row *modelRow) record() (*model.Record, error) {
	r := &model.Record{
		ID:          row.ID,
		Algorithm:   model.Algorithm(row.Algorithm),
		Tag:         row.Tag,
		Event:       row.Event,
		Status:      model.Status(row.Status),
		Params:      json.RawMessage(row.Params),
		Description: row.Description,
		Timestamp:   row.RecordedAt.UTC(),
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.StatusSets), &r.StatusSets); err != nil {
		return nil, registryErr(err, "decode status sets of "+row.ID)
	}
	if row.RawObservations.Valid {
		var obs catalog.ObservationSet
		if err := json.Unmarshal([]byte(row.RawObservations.String), &obs); err != nil {
			return nil, registryErr(err, "decode raw observations of "+row.ID)
		}
		r.RawObservations = obs
	}
	return r, nil
}

// SetModel inserts the record or overwrites the one stored at its key.
// An overwrite keeps the stored ID and CreatedAt.
func (r *ModelRepository) SetModel(ctx context.Context, rec *model.Record) (string, error) {
	if rec == nil {
		return "", errors.NewValidationError("record", "required", nil)
	}
	if rec.Algorithm == "" || rec.Tag == "" || rec.Event == "" {
		return "", errors.NewValidationError("key", "algorithm, tag and event are required", rec.Key())
	}
	if !rec.Status.Valid() {
		return "", errors.NewValidationError("status", "unknown status", rec.Status)
	}
	if !json.Valid(rec.Params) {
		return "", errors.NewValidationError("params", "must be a JSON document", nil)
	}

	now := r.now().UTC()
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = now
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	row, err := toModelRow(stored)
	if err != nil {
		return "", err
	}

	query := r.db.Rebind(`
		INSERT INTO models (` + modelColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (algorithm, tag, event) DO UPDATE SET
			status = excluded.status,
			params = excluded.params,
			status_sets = excluded.status_sets,
			description = excluded.description,
			raw_observations = excluded.raw_observations,
			recorded_at = excluded.recorded_at
		RETURNING id`)

	var id string
	err = r.db.QueryRowxContext(ctx, query,
		row.ID, row.Algorithm, row.Tag, row.Event, row.Status,
		row.Params, row.StatusSets, row.Description, row.RawObservations,
		row.RecordedAt, row.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", registryErr(err, "failed to save model")
	}

	return id, nil
}

// GetModel retrieves the record stored at key
func (r *ModelRepository) GetModel(ctx context.Context, key model.Key) (*model.Record, error) {
	query := r.db.Rebind(`
		SELECT ` + modelColumns + `
		FROM models
		WHERE algorithm = ? AND tag = ? AND event = ?`)

	var row modelRow
	err := r.db.GetContext(ctx, &row, query, key.Algorithm.String(), key.Tag, key.Event)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "model %s/%s/%s", key.Algorithm, key.Tag, key.Event)
	}
	if err != nil {
		return nil, registryErr(err, "failed to get model")
	}

	return row.record()
}

// GetModelByTag retrieves every record of algorithm under tag, ordered by event
func (r *ModelRepository) GetModelByTag(ctx context.Context, algorithm model.Algorithm, tag string) ([]*model.Record, error) {
	query := r.db.Rebind(`
		SELECT ` + modelColumns + `
		FROM models
		WHERE algorithm = ? AND tag = ?
		ORDER BY event`)

	var rows []modelRow
	if err := r.db.SelectContext(ctx, &rows, query, algorithm.String(), tag); err != nil {
		return nil, registryErr(err, "failed to get models by tag")
	}

	records := make([]*model.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListTags summarizes the tags holding records of algorithm, most recently written first
func (r *ModelRepository) ListTags(ctx context.Context, algorithm model.Algorithm) ([]model.TagSummary, error) {
	query := r.db.Rebind(`
		SELECT tag, status, recorded_at
		FROM models
		WHERE algorithm = ?`)

	var rows []struct {
		Tag        string    `db:"tag"`
		Status     string    `db:"status"`
		RecordedAt time.Time `db:"recorded_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, algorithm.String()); err != nil {
		return nil, registryErr(err, "failed to list tags")
	}

	byTag := make(map[string]*model.TagSummary)
	for _, row := range rows {
		s, ok := byTag[row.Tag]
		if !ok {
			s = &model.TagSummary{Algorithm: algorithm, Tag: row.Tag}
			byTag[row.Tag] = s
		}
		s.Models++
		if model.Status(row.Status) == model.StatusTrained {
			s.Trained++
		}
		if t := row.RecordedAt.UTC(); t.After(s.UpdatedAt) {
			s.UpdatedAt = t
		}
	}

	return sortSummaries(byTag), nil
}

// sortSummaries orders summaries newest first, ties by tag
func sortSummaries(byTag map[string]*model.TagSummary) []model.TagSummary {
	out := make([]model.TagSummary, 0, len(byTag))
	for _, s := range byTag {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
