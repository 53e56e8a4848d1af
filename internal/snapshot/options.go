// Package snapshot loads EasyMoney monthly product snapshots from CSV, snappy-framed CSV
// and SQLite files into a types.Snapshot.
package snapshot

import (
	"strings"
	"time"

	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Options controls how snapshot columns are interpreted.
type Options struct {
	// Delimiter is the field separator of text inputs
	Delimiter rune

	// CustomerColumn names the customer id column
	CustomerColumn string

	// PartitionColumn names the partition date column
	PartitionColumn string

	// DateLayouts are tried in order when parsing partition dates
	DateLayouts []string

	// DropColumns are ignored entirely
	DropColumns []string

	// Renames maps input column names to product names
	Renames map[string]string

	// Table is the snapshot table inside SQLite inputs
	Table string
}

// DefaultOptions returns the options matching the products_df.csv export.
func DefaultOptions() Options {
	return Options{
		Delimiter:       ',',
		CustomerColumn:  "pk_cid",
		PartitionColumn: "pk_partition",
		DateLayouts:     []string{types.PartitionLayout, "2006-01-02 15:04:05"},
		DropColumns:     []string{"Unnamed: 0", ""},
		Renames:         map[string]string{"em_acount": "em_account"},
		Table:           "products",
	}
}

func (o Options) dropped(column string) bool {
	for _, d := range o.DropColumns {
		if d == column {
			return true
		}
	}
	return false
}

func (o Options) rename(column string) string {
	if r, ok := o.Renames[column]; ok {
		return r
	}
	return column
}

func (o Options) parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range o.DateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
