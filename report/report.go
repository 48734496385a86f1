package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"

	"fixturecast/db"
	"fixturecast/forecast"
	"fixturecast/ml"
)

type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatCSV:
		return f, nil
	default:
		return "", errors.Errorf("unknown output format %q", s)
	}
}

// Headers of the prediction table, in column order.
var Headers = []string{"Data", "Horário", "Rodada", "Oponente", "Formação", "Previsão", "Precisão (%)"}

// Metrics prints the held-out scores as percentages on one line.
func Metrics(w io.Writer, m ml.Metrics) error {
	_, err := fmt.Fprintf(w, "Acurácia: %.2f%%, Precisão: %.2f%%, Recall: %.2f%%, F1-score: %.2f%%\n",
		m.Accuracy*100, m.Precision*100, m.Recall*100, m.F1*100)
	return err
}

func ColumnSpace(w io.Writer, space ml.ColumnSpace) error {
	for i, name := range space.Names() {
		if _, err := fmt.Fprintf(w, "%4d  %s\n", i, name); err != nil {
			return err
		}
	}
	return nil
}

func Predictions(w io.Writer, predictions []forecast.Prediction, format Format) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, predictions)
	case FormatTable, "":
		return writeTable(w, predictions)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func records(predictions []forecast.Prediction) [][]string {
	out := make([][]string, len(predictions))
	for i, p := range predictions {
		out[i] = []string{
			p.Date,
			p.Time,
			p.Round,
			p.Opponent,
			p.Formation,
			p.Label,
			fmt.Sprintf("%.2f", p.Percent()),
		}
	}
	return out
}

func writeTable(w io.Writer, predictions []forecast.Prediction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Headers, "\t"))
	for _, record := range records(predictions) {
		fmt.Fprintln(tw, strings.Join(record, "\t"))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, predictions []forecast.Prediction) error {
	rows := records(predictions)
	columns := make([]series.Series, len(Headers))
	for c, header := range Headers {
		values := make([]string, len(rows))
		for r, record := range rows {
			values[r] = record[c]
		}
		columns[c] = series.New(values, series.String, header)
	}
	df := dataframe.New(columns...)
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

// History prints journaled runs, newest first, each followed by the
// predictions made with it.
func History(w io.Writer, runs []db.TrainingRun, predictions map[string][]db.PredictionRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\tacc %.2f%%\tf1 %.2f%%\t%d/%d rows\n",
			run.TrainedAt.Format("2006-01-02 15:04:05"), run.ID, run.ModelName,
			run.Accuracy*100, run.F1*100, run.TrainRows, run.TestRows)
		for _, p := range predictions[run.ID] {
			fmt.Fprintf(tw, "\t%s:%d\t%s\t%s\t%s\t%.2f%%\n",
				p.Source, p.Line, orNotAvailable(p.Date), orNotAvailable(p.Opponent), p.Label, p.Confidence*100)
		}
	}
	return tw.Flush()
}

func orNotAvailable(s string) string {
	if s == "" {
		return forecast.NotAvailable
	}
	return s
}
