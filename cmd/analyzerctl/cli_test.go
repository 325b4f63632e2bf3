package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventanalyzer/internal/events"
)

// run executes the CLI against dbPath and returns its output
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--db", dbPath, "--seed", "3"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "registry.db")
}

func TestCLI_Help_ListsAllCommands(t *testing.T) {
	out, err := run(t, testDB(t), "--help")
	require.NoError(t, err)

	for _, name := range []string{"seed", "init", "train", "train-random", "predict", "tags", "show", "watch"} {
		assert.Contains(t, out, name)
	}
}

func TestCLI_Seed(t *testing.T) {
	db := testDB(t)

	out, err := run(t, db, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 14 events")

	// seeding twice is harmless
	_, err = run(t, db, "seed")
	require.NoError(t, err)
}

func TestCLI_InitTrainPredict(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "seed")
	require.NoError(t, err)

	out, err := run(t, db, "init", "--all", "--tag", "t0")
	require.NoError(t, err)
	assert.Contains(t, out, "Tag t0: 14 succeeded, 0 failed")

	for _, ev := range []string{"work_in_office", "go_home"} {
		out, err = run(t, db, "train-random", ev, "--source", "t0", "--target", "t1", "--len", "8", "--count", "20")
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(out))
	}

	out, err = run(t, db, "tags")
	require.NoError(t, err)
	assert.Contains(t, out, "TAG")
	assert.Contains(t, out, "t0")
	assert.Contains(t, out, "t1")

	seq := `[{"motion":"sitting","sound":"study_quite_office","location":"work_office"},
		{"motion":"sitting","sound":"study_quite_office","location":"work_office"},
		{"motion":"sitting","sound":"study_quite_office","location":"work_office"}]`
	out, err = run(t, db, "--json", "predict", "--tag", "t1", seq)
	require.NoError(t, err)

	var res struct {
		Event         string             `json:"event"`
		Probabilities map[string]float64 `json:"probabilities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "work_in_office", res.Event)
	assert.Len(t, res.Probabilities, 2)

	out, err = run(t, db, "show", "t1", "work_in_office")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:       trained")
	assert.Contains(t, out, "Trained on:   20 sequences, 160 observations")
}

func TestCLI_Errors(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "seed")
	require.NoError(t, err)

	_, err = run(t, db, "init", "go_home")
	assert.Error(t, err)

	_, err = run(t, db, "init", "no_such_event", "--tag", "t0")
	assert.Error(t, err)

	_, err = run(t, db, "predict", "--tag", "missing", `[{"motion":"sitting","sound":"shop","location":"coffee"}]`)
	assert.Error(t, err)

	_, err = run(t, db, "show", "t0", "go_home")
	assert.Error(t, err)
}

func TestWatchFormatting(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)

	var buf bytes.Buffer
	printModelEvent(&buf, events.ModelEvent{
		Type: events.TypeModelRandomTrained, Algorithm: "GMMHMM", Tag: "t1", Event: "go_home",
		SourceTag: "t0", Status: "trained", Timestamp: ts,
	})
	assert.Contains(t, buf.String(), "[12:30:05] model.random_trained")
	assert.Contains(t, buf.String(), "GMMHMM/t1/go_home from t0 trained")

	buf.Reset()
	printPrediction(&buf, events.PredictionEvent{
		Algorithm: "GMMHMM", Tag: "t1", Event: "go_home", Confidence: 0.875,
		Skipped: []string{"go_work"}, Timestamp: ts,
	})
	assert.Equal(t, "[12:30:05] GMMHMM/t1 -> go_home (87.5%) skipped go_work\n", buf.String())
}
