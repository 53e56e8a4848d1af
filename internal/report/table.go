// Package report renders analysis results as the flat files the BI dashboard
// reads: semicolon CSVs, an XLSX workbook and a JSON run manifest.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Table is one named output table. Cells hold string, int, int64, float64 or
// time.Time values.
type Table struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// formatValue renders a cell for text outputs. Floats use the shortest %g form,
// which spells non-finite values NaN, +Inf and -Inf.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(types.PartitionLayout)
	default:
		return fmt.Sprint(x)
	}
}

// records renders the header and rows as text records.
func (t Table) records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = formatValue(v)
		}
		out = append(out, rec)
	}
	return out
}
