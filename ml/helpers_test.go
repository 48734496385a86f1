package ml

import (
	"fixturecast/pipeline"
)

func text(s string) pipeline.Value { return pipeline.TextValue(s) }

func num(f float64) pipeline.Value { return pipeline.NumberValue(f) }

func row(line int, values map[string]pipeline.Value) pipeline.Row {
	r := pipeline.NewRow(values)
	r.Source = "history.csv"
	r.Line = line
	return r
}

// opponentHistory is four matches where opponent A was always beaten and B always won.
func opponentHistory() *pipeline.RowSet {
	return pipeline.NewRowSet([]string{"Resultado", "Oponente"}, []pipeline.Row{
		row(2, map[string]pipeline.Value{"Resultado": text("Vitória"), "Oponente": text("A")}),
		row(3, map[string]pipeline.Value{"Resultado": text("Derrota"), "Oponente": text("B")}),
		row(4, map[string]pipeline.Value{"Resultado": text("Vitória"), "Oponente": text("A")}),
		row(5, map[string]pipeline.Value{"Resultado": text("Derrota"), "Oponente": text("B")}),
	})
}

func mixedHistory() *pipeline.RowSet {
	return pipeline.NewRowSet([]string{"Oponente", "Gols", "Mando", "Resultado"}, []pipeline.Row{
		row(2, map[string]pipeline.Value{"Oponente": text("B"), "Gols": num(2), "Mando": text("Casa"), "Resultado": text("Vitória")}),
		row(3, map[string]pipeline.Value{"Oponente": text("A"), "Gols": num(0), "Mando": text("Fora"), "Resultado": text("Derrota")}),
		row(4, map[string]pipeline.Value{"Oponente": text("A"), "Mando": text("Casa"), "Resultado": text("Empate")}),
		row(5, map[string]pipeline.Value{"Oponente": text("B"), "Gols": num(4), "Resultado": text("Vitória")}),
	})
}
