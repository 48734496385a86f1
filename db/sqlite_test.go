package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal", "runs.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalTrainingRuns(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 6, 16, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b"} {
		require.NoError(t, j.RecordTraining(ctx, TrainingRun{
			ID:        id,
			ModelName: "random_forest",
			Accuracy:  0.75,
			Precision: 0.8,
			Recall:    0.75,
			F1:        0.73,
			Classes:   3,
			Features:  12,
			TrainRows: 40,
			TestRows:  10,
			TrainedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := j.RecentTrainingRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, 12, runs[0].Features)
	assert.InDelta(t, 0.73, runs[1].F1, 1e-9)
	assert.True(t, base.Equal(runs[1].TrainedAt))

	// run ids are unique
	assert.Error(t, j.RecordTraining(ctx, TrainingRun{ID: "run-a", TrainedAt: base}))
}

func TestJournalPredictions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []PredictionRecord{
		{Source: "2024.csv", Line: 5, Date: "13/04/2024", Opponent: "A", Label: "Vitória", Confidence: 0.9, PredictedAt: now},
		{Source: "2024.csv", Line: 6, Opponent: "C", Label: "Derrota", Confidence: 0.55, PredictedAt: now},
	}
	require.NoError(t, j.RecordPredictions(ctx, "run-a", records))
	require.NoError(t, j.RecordPredictions(ctx, "run-a", nil))

	got, err := j.PredictionsForRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].Line)
	assert.Equal(t, "Vitória", got[0].Label)
	assert.Equal(t, "", got[1].Date)

	none, err := j.PredictionsForRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, j.RecordPredictions(ctx, "", records))
}
