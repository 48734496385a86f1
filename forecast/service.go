package forecast

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"fixturecast/db"
	"fixturecast/ml"
	"fixturecast/pipeline"
)

var (
	ErrNotTrained   = errors.New("no trained model")
	ErrOutcomeKnown = errors.New("row already has an outcome")
)

// Display columns copied from a fixture row into its prediction.
const (
	ColumnDate     = "Data"
	ColumnTime     = "Horário"
	ColumnRound    = "Rodada"
	ColumnOpponent = "Oponente"

	NotAvailable     = "N/A"
	DefaultFormation = "3-4-3"
)

// DisplayColumns are shown with a prediction but never used as features.
func DisplayColumns() []string {
	return []string{ColumnDate, ColumnTime, ColumnRound}
}

type Prediction struct {
	Source    string
	Line      int
	Date      string
	Time      string
	Round     string
	Opponent  string
	Formation string

	Label         string
	Probability   float64
	Probabilities map[string]float64
	// Unknown lists categories of the row the model was never trained on.
	Unknown []string
}

func (p Prediction) Percent() float64 {
	return p.Probability * 100
}

type PredictorConfig struct {
	UnknownCategory ml.UnknownCategoryPolicy
	Formation       string
}

type Predictor struct {
	config  PredictorConfig
	logger  *zap.Logger
	journal Journal
}

func NewPredictor(config PredictorConfig, logger *zap.Logger, journal Journal) *Predictor {
	if config.UnknownCategory == "" {
		config.UnknownCategory = ml.UnknownIgnore
	}
	if config.Formation == "" {
		config.Formation = DefaultFormation
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{config: config, logger: logger, journal: journal}
}

// Predict classifies a single fixture row against bundle.
func (p *Predictor) Predict(row pipeline.Row, bundle *Bundle) (*Prediction, error) {
	if bundle == nil {
		return nil, ErrNotTrained
	}
	outcome := bundle.Schema.OutcomeColumn
	if !row.Get(outcome).IsMissing() {
		return nil, errors.Wrapf(ErrOutcomeKnown, "%s:%d", row.Source, row.Line)
	}

	alignment, err := ml.NewAligner(bundle.Schema, p.config.UnknownCategory).Align(row)
	if err != nil {
		return nil, errors.Wrapf(err, "%s:%d", row.Source, row.Line)
	}
	if len(alignment.Unknown) > 0 {
		p.logger.Debug("unknown categories dropped",
			zap.String("source", row.Source),
			zap.Int("line", row.Line),
			zap.Strings("columns", alignment.Unknown),
		)
	}

	proba, err := bundle.Model.PredictProba(alignment.Vector)
	if err != nil {
		return nil, errors.Wrapf(err, "%s:%d", row.Source, row.Line)
	}
	best, confidence, err := ml.ArgMax(proba)
	if err != nil {
		return nil, err
	}
	label, err := bundle.Codec.Decode(best)
	if err != nil {
		return nil, err
	}

	probabilities := make(map[string]float64, len(proba))
	for i, v := range proba {
		name, err := bundle.Codec.Decode(i)
		if err != nil {
			return nil, err
		}
		probabilities[name] = v
	}

	return &Prediction{
		Source:        row.Source,
		Line:          row.Line,
		Date:          display(row, ColumnDate),
		Time:          display(row, ColumnTime),
		Round:         display(row, ColumnRound),
		Opponent:      display(row, ColumnOpponent),
		Formation:     p.config.Formation,
		Label:         label,
		Probability:   confidence,
		Probabilities: probabilities,
		Unknown:       alignment.Unknown,
	}, nil
}

// PredictAll classifies every fixture row of set in row order. Rows with a
// known outcome are skipped.
func (p *Predictor) PredictAll(ctx context.Context, set *pipeline.RowSet, bundle *Bundle) ([]Prediction, error) {
	if bundle == nil {
		return nil, ErrNotTrained
	}
	fixtures := ml.FixtureRows(set, bundle.Schema.OutcomeColumn)

	predictions := make([]Prediction, 0, fixtures.Len())
	for _, row := range fixtures.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prediction, err := p.Predict(row, bundle)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, *prediction)
	}

	p.logger.Info("fixtures predicted",
		zap.String("run_id", bundle.ID.String()),
		zap.Int("fixtures", len(predictions)),
	)
	p.record(ctx, bundle, predictions)
	return predictions, nil
}

func (p *Predictor) record(ctx context.Context, bundle *Bundle, predictions []Prediction) {
	if p.journal == nil || len(predictions) == 0 {
		return
	}
	now := time.Now().UTC()
	records := make([]db.PredictionRecord, len(predictions))
	for i, pr := range predictions {
		records[i] = db.PredictionRecord{
			Source:      pr.Source,
			Line:        pr.Line,
			Date:        pr.Date,
			Opponent:    pr.Opponent,
			Label:       pr.Label,
			Confidence:  pr.Probability,
			PredictedAt: now,
		}
	}
	if err := p.journal.RecordPredictions(ctx, bundle.ID.String(), records); err != nil {
		p.logger.Warn("record predictions failed", zap.String("run_id", bundle.ID.String()), zap.Error(err))
	}
}

func display(row pipeline.Row, column string) string {
	v := row.Get(column)
	if v.IsMissing() {
		return NotAvailable
	}
	return v.String()
}
