package forecast

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"fixturecast/db"
	"fixturecast/ml"
	"fixturecast/pipeline"
)

type fakeJournal struct {
	mu          sync.Mutex
	runs        []db.TrainingRun
	predictions map[string][]db.PredictionRecord
	err         error
}

func (f *fakeJournal) RecordTraining(_ context.Context, run db.TrainingRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeJournal) RecordPredictions(_ context.Context, runID string, records []db.PredictionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.predictions == nil {
		f.predictions = make(map[string][]db.PredictionRecord)
	}
	f.predictions[runID] = append(f.predictions[runID], records...)
	return nil
}

func match(source string, line int, values map[string]pipeline.Value) pipeline.Row {
	r := pipeline.NewRow(values)
	r.Source = source
	r.Line = line
	return r
}

func played(result, opponent string) map[string]pipeline.Value {
	return map[string]pipeline.Value{
		"Resultado": pipeline.TextValue(result),
		"Oponente":  pipeline.TextValue(opponent),
	}
}

func fixture(opponent string) map[string]pipeline.Value {
	return map[string]pipeline.Value{
		"Resultado": pipeline.MissingValue(),
		"Oponente":  pipeline.TextValue(opponent),
	}
}

func opponentHistory() *pipeline.RowSet {
	return pipeline.NewRowSet([]string{"Resultado", "Oponente"}, []pipeline.Row{
		match("history.csv", 2, played("Vitória", "A")),
		match("history.csv", 3, played("Derrota", "B")),
		match("history.csv", 4, played("Vitória", "A")),
		match("history.csv", 5, played("Derrota", "B")),
	})
}

func trainBundle(t *testing.T, set *pipeline.RowSet) *Bundle {
	t.Helper()
	bundle, err := NewTrainer(DefaultTrainingConfig(), nil, nil).Train(context.Background(), set)
	require.NoError(t, err)
	return bundle
}

func TestTrainAndPredictKnownOpponent(t *testing.T) {
	bundle := trainBundle(t, opponentHistory())

	assert.Equal(t, []string{"Oponente_A", "Oponente_B"}, bundle.Space().Names())
	assert.Equal(t, []string{"Derrota", "Vitória"}, bundle.Codec.Labels())
	assert.Equal(t, 3, bundle.TrainRows)
	assert.Equal(t, 1, bundle.TestRows)
	assert.Equal(t, 1, bundle.Metrics.Support)

	prediction, err := NewPredictor(PredictorConfig{}, nil, nil).Predict(match("fixtures.csv", 2, fixture("A")), bundle)
	require.NoError(t, err)
	assert.Equal(t, "Vitória", prediction.Label)
	assert.GreaterOrEqual(t, prediction.Probability, 0.5)
	assert.Equal(t, prediction.Probability, prediction.Probabilities["Vitória"])
	assert.InDelta(t, 1.0, prediction.Probabilities["Vitória"]+prediction.Probabilities["Derrota"], 1e-9)
	assert.InDelta(t, prediction.Probability*100, prediction.Percent(), 1e-9)
}

func TestTrainIgnoresDisplayColumns(t *testing.T) {
	dated := func(date string, round float64, result, opponent string) map[string]pipeline.Value {
		values := played(result, opponent)
		values[ColumnDate] = pipeline.TextValue(date)
		values[ColumnTime] = pipeline.TextValue("16:00")
		values[ColumnRound] = pipeline.NumberValue(round)
		return values
	}
	set := pipeline.NewRowSet([]string{"Data", "Horário", "Rodada", "Oponente", "Resultado"}, []pipeline.Row{
		match("history.csv", 2, dated("06/04/2024", 1, "Vitória", "A")),
		match("history.csv", 3, dated("13/04/2024", 2, "Derrota", "B")),
		match("history.csv", 4, dated("20/04/2024", 3, "Vitória", "A")),
		match("history.csv", 5, dated("27/04/2024", 4, "Derrota", "B")),
	})

	bundle := trainBundle(t, set)
	assert.Equal(t, []string{"Oponente_A", "Oponente_B"}, bundle.Space().Names())

	bundle, err := NewTrainer(TrainingConfig{}, nil, nil).Train(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oponente_A", "Oponente_B"}, bundle.Space().Names())

	bundle, err = NewTrainer(TrainingConfig{ExcludeColumns: []string{}}, nil, nil).Train(context.Background(), set)
	require.NoError(t, err)
	assert.Contains(t, bundle.Space().Names(), "Rodada")
}

func TestPredictUnseenOpponent(t *testing.T) {
	bundle := trainBundle(t, opponentHistory())
	row := match("fixtures.csv", 2, fixture("C"))

	alignment, err := ml.EncodeInference(row, bundle.Schema, ml.UnknownIgnore)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, alignment.Vector)

	prediction, err := NewPredictor(PredictorConfig{}, nil, nil).Predict(row, bundle)
	require.NoError(t, err)
	assert.Contains(t, bundle.Codec.Labels(), prediction.Label)
	assert.Equal(t, []string{"Oponente_C"}, prediction.Unknown)

	_, err = NewPredictor(PredictorConfig{UnknownCategory: ml.UnknownReject}, nil, nil).Predict(row, bundle)
	assert.True(t, errors.Is(err, ml.ErrUnknownCategory), "got %v", err)
}

func TestTrainIsDeterministic(t *testing.T) {
	first := trainBundle(t, opponentHistory())
	second := trainBundle(t, opponentHistory())

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.NotEqual(t, first.ID, second.ID)

	for _, opponent := range []string{"A", "B", "C"} {
		row := match("fixtures.csv", 2, fixture(opponent))
		a, err := first.Model.PredictProba(mustAlign(t, row, first))
		require.NoError(t, err)
		b, err := second.Model.PredictProba(mustAlign(t, row, second))
		require.NoError(t, err)
		assert.Equal(t, a, b, opponent)
		assert.InDelta(t, 1.0, floats.Sum(a), 1e-9)
	}
}

func mustAlign(t *testing.T, row pipeline.Row, bundle *Bundle) []float64 {
	t.Helper()
	alignment, err := ml.EncodeInference(row, bundle.Schema, ml.UnknownIgnore)
	require.NoError(t, err)
	return alignment.Vector
}

func TestTrainErrors(t *testing.T) {
	oneClass := pipeline.NewRowSet(nil, []pipeline.Row{
		match("history.csv", 2, played("Vitória", "A")),
		match("history.csv", 3, played("Vitória", "B")),
		match("history.csv", 4, played("Vitória", "C")),
	})
	tooFew := pipeline.NewRowSet(nil, []pipeline.Row{
		match("history.csv", 2, played("Vitória", "A")),
		match("history.csv", 3, fixture("B")),
	})
	noOutcome := pipeline.NewRowSet(nil, []pipeline.Row{
		match("history.csv", 2, map[string]pipeline.Value{"Oponente": pipeline.TextValue("A")}),
	})
	twoRows := pipeline.NewRowSet(nil, []pipeline.Row{
		match("history.csv", 2, played("Vitória", "A")),
		match("history.csv", 3, played("Derrota", "B")),
	})

	tests := []struct {
		name    string
		set     *pipeline.RowSet
		config  TrainingConfig
		wantErr error
	}{
		{name: "single class", set: oneClass, wantErr: ml.ErrInsufficientData},
		{name: "only fixtures besides one row", set: tooFew, wantErr: ml.ErrInsufficientData},
		{name: "outcome column absent", set: noOutcome, wantErr: pipeline.ErrSchema},
		{name: "nil set", set: nil, wantErr: pipeline.ErrSchema},
		{name: "two rows split evenly", set: twoRows, config: TrainingConfig{TestRatio: 0.5}, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			if config.TestRatio == 0 {
				config = DefaultTrainingConfig()
			}
			bundle, err := NewTrainer(config, nil, nil).Train(context.Background(), tt.set)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 1, bundle.TestRows)
				return
			}
			assert.Nil(t, bundle)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestTrainHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTrainer(DefaultTrainingConfig(), nil, nil).Train(ctx, opponentHistory())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPredictRequiresBundle(t *testing.T) {
	predictor := NewPredictor(PredictorConfig{}, nil, nil)

	_, err := predictor.Predict(match("fixtures.csv", 2, fixture("A")), nil)
	assert.True(t, errors.Is(err, ErrNotTrained))

	_, err = predictor.PredictAll(context.Background(), opponentHistory(), nil)
	assert.True(t, errors.Is(err, ErrNotTrained))
}

func TestPredictRefusesKnownOutcome(t *testing.T) {
	bundle := trainBundle(t, opponentHistory())
	_, err := NewPredictor(PredictorConfig{}, nil, nil).Predict(match("history.csv", 2, played("Vitória", "A")), bundle)
	assert.True(t, errors.Is(err, ErrOutcomeKnown))
}

func TestPredictAllAcrossFiles(t *testing.T) {
	bundle := trainBundle(t, opponentHistory())

	upcoming := map[string]pipeline.Value{
		"Data":      pipeline.TextValue("20/04/2024"),
		"Horário":   pipeline.TextValue("16:00"),
		"Rodada":    pipeline.NumberValue(3),
		"Oponente":  pipeline.TextValue("B"),
		"Resultado": pipeline.MissingValue(),
	}
	set := pipeline.NewRowSet([]string{"Data", "Horário", "Rodada", "Oponente", "Resultado"}, []pipeline.Row{
		match("2023.csv", 2, played("Vitória", "A")),
		match("2023.csv", 3, fixture("A")),
		match("2024.csv", 2, played("Derrota", "B")),
		match("2024.csv", 3, upcoming),
		match("2024.csv", 4, fixture("C")),
	})

	journal := &fakeJournal{}
	predictions, err := NewPredictor(PredictorConfig{Formation: "4-4-2"}, nil, journal).PredictAll(context.Background(), set, bundle)
	require.NoError(t, err)
	require.Len(t, predictions, 3)

	assert.Equal(t, "2023.csv", predictions[0].Source)
	assert.Equal(t, "A", predictions[0].Opponent)
	assert.Equal(t, NotAvailable, predictions[0].Date)
	assert.Equal(t, NotAvailable, predictions[0].Round)

	assert.Equal(t, "2024.csv", predictions[1].Source)
	assert.Equal(t, 3, predictions[1].Line)
	assert.Equal(t, "20/04/2024", predictions[1].Date)
	assert.Equal(t, "16:00", predictions[1].Time)
	assert.Equal(t, "3", predictions[1].Round)
	assert.Equal(t, "4-4-2", predictions[1].Formation)

	assert.Equal(t, "C", predictions[2].Opponent)

	recorded := journal.predictions[bundle.ID.String()]
	require.Len(t, recorded, 3)
	assert.Equal(t, predictions[1].Label, recorded[1].Label)
}

func TestPredictAllWithoutFixtures(t *testing.T) {
	bundle := trainBundle(t, opponentHistory())
	journal := &fakeJournal{}
	predictions, err := NewPredictor(PredictorConfig{}, nil, journal).PredictAll(context.Background(), opponentHistory(), bundle)
	require.NoError(t, err)
	assert.Empty(t, predictions)
	assert.Empty(t, journal.predictions)
}

func TestJournalFailuresAreNotFatal(t *testing.T) {
	journal := &fakeJournal{err: errors.New("disk full")}
	bundle, err := NewTrainer(DefaultTrainingConfig(), nil, journal).Train(context.Background(), opponentHistory())
	require.NoError(t, err)

	set := pipeline.NewRowSet(nil, []pipeline.Row{match("fixtures.csv", 2, fixture("A"))})
	predictions, err := NewPredictor(PredictorConfig{}, nil, journal).PredictAll(context.Background(), set, bundle)
	require.NoError(t, err)
	assert.Len(t, predictions, 1)
}

func TestTrainRecordsRun(t *testing.T) {
	journal := &fakeJournal{}
	bundle, err := NewTrainer(DefaultTrainingConfig(), nil, journal).Train(context.Background(), opponentHistory())
	require.NoError(t, err)

	require.Len(t, journal.runs, 1)
	run := journal.runs[0]
	assert.Equal(t, bundle.ID.String(), run.ID)
	assert.Equal(t, "random_forest", run.ModelName)
	assert.Equal(t, 2, run.Classes)
	assert.Equal(t, 2, run.Features)
	assert.Equal(t, bundle.Metrics.Accuracy, run.Accuracy)
}

func TestSlot(t *testing.T) {
	var slot Slot
	assert.Nil(t, slot.Current())

	first := trainBundle(t, opponentHistory())
	slot.Install(first)
	assert.Same(t, first, slot.Current())

	slot.Install(nil)
	assert.Same(t, first, slot.Current())

	second := trainBundle(t, opponentHistory())
	slot.Install(second)
	assert.Same(t, second, slot.Current())
}
