package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// TrainingRun is one row of the training log.
type TrainingRun struct {
	ID        string    `json:"id"`
	ModelName string    `json:"model_name"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	Classes   int       `json:"classes"`
	Features  int       `json:"features"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	TrainedAt time.Time `json:"trained_at"`
}

type PredictionRecord struct {
	Source      string    `json:"source"`
	Line        int       `json:"line"`
	Date        string    `json:"date"`
	Opponent    string    `json:"opponent"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	PredictedAt time.Time `json:"predicted_at"`
}

// Journal is an append-only sqlite log of training runs and the predictions
// made with them. Models themselves are never stored.
type Journal struct {
	db *sql.DB
}

// Open creates the database file and its tables if needed.
func Open(path string, wal bool) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create journal dir %s", dir)
		}
	}

	dsn := path
	if wal {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	} else {
		dsn += "?_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: database}
	if err := j.createTables(); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "create journal tables")
	}
	return j, nil
}

func (j *Journal) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL UNIQUE,
        model_name VARCHAR(50),
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        classes INTEGER,
        features INTEGER,
        train_rows INTEGER,
        test_rows INTEGER,
        trained_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        source TEXT NOT NULL,
        line INTEGER NOT NULL,
        match_date TEXT,
        opponent TEXT,
        predicted_label TEXT NOT NULL,
        confidence REAL,
        predicted_at DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_run ON predictions(run_id);
    `
	_, err := j.db.Exec(query)
	return err
}

func (j *Journal) RecordTraining(ctx context.Context, run TrainingRun) error {
	_, err := j.db.ExecContext(ctx, `
        INSERT INTO training_log (
            run_id, model_name, accuracy, precision, recall, f1,
            classes, features, train_rows, test_rows, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelName, run.Accuracy, run.Precision, run.Recall, run.F1,
		run.Classes, run.Features, run.TrainRows, run.TestRows, run.TrainedAt.UTC(),
	)
	return errors.Wrapf(err, "insert training run %s", run.ID)
}

func (j *Journal) RecordPredictions(ctx context.Context, runID string, records []PredictionRecord) error {
	if runID == "" {
		return errors.New("run id required")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO predictions (
            run_id, source, line, match_date, opponent, predicted_label, confidence, predicted_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, r.Source, r.Line, r.Date, r.Opponent, r.Label, r.Confidence, r.PredictedAt.UTC()); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "insert prediction %s:%d", r.Source, r.Line)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// RecentTrainingRuns returns up to limit runs, newest first.
func (j *Journal) RecentTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	rows, err := j.db.QueryContext(ctx, `
        SELECT run_id, model_name, accuracy, precision, recall, f1,
               classes, features, train_rows, test_rows, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var r TrainingRun
		if err := rows.Scan(&r.ID, &r.ModelName, &r.Accuracy, &r.Precision, &r.Recall, &r.F1,
			&r.Classes, &r.Features, &r.TrainRows, &r.TestRows, &r.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (j *Journal) PredictionsForRun(ctx context.Context, runID string) ([]PredictionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
        SELECT source, line, match_date, opponent, predicted_label, confidence, predicted_at
        FROM predictions
        WHERE run_id = ?
        ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		var date, opponent sql.NullString
		if err := rows.Scan(&r.Source, &r.Line, &date, &opponent, &r.Label, &r.Confidence, &r.PredictedAt); err != nil {
			return nil, err
		}
		r.Date = date.String
		r.Opponent = opponent.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
