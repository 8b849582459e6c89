package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

var csvHeader = []string{
	"kind", "district", "count", "target", "achieved", "progress_percent",
	"beneficiaries_male", "beneficiaries_female", "beneficiaries_total",
}

// WriteCSV 明细行在前，每种类型的合计行以 district=TOTAL 输出
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, row := range r.Rows {
		if err := cw.Write(record(row, row.District)); err != nil {
			return err
		}
	}
	for _, row := range r.Totals {
		if err := cw.Write(record(row, "TOTAL")); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func record(r Row, district string) []string {
	return []string{
		string(r.Kind),
		district,
		strconv.Itoa(r.Count),
		strconv.Itoa(r.Target),
		strconv.Itoa(r.Achieved),
		strconv.FormatFloat(r.Progress, 'f', 1, 64),
		strconv.Itoa(r.Male),
		strconv.Itoa(r.Female),
		strconv.Itoa(r.Beneficiaries),
	}
}
