package snapshot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

const utf8BOM = "\ufeff"

// tableBuilder turns a header plus string records into a Snapshot,
// independent of the physical format they came from.
type tableBuilder struct {
	opts        Options
	customerIdx int
	partIdx     int
	productCols []int
	snap        *types.Snapshot
	seen        map[types.RowKey]int
	line        int
}

func newTableBuilder(opts Options, header []string) (*tableBuilder, error) {
	b := &tableBuilder{
		opts:        opts,
		customerIdx: -1,
		partIdx:     -1,
		snap:        &types.Snapshot{NullsFilled: make(map[string]int)},
		seen:        make(map[types.RowKey]int),
		line:        1,
	}

	names := make(map[string]bool)
	for i, raw := range header {
		col := strings.TrimSpace(strings.TrimPrefix(raw, utf8BOM))
		if opts.dropped(col) {
			continue
		}
		switch col {
		case opts.CustomerColumn:
			b.customerIdx = i
			continue
		case opts.PartitionColumn:
			b.partIdx = i
			continue
		}

		name := opts.rename(col)
		if names[name] {
			return nil, apperrors.NewDataAccessError(apperrors.CodeParseError,
				fmt.Sprintf("duplicate product column %q", name), nil)
		}
		names[name] = true
		b.productCols = append(b.productCols, i)
		b.snap.Products = append(b.snap.Products, name)
	}

	if b.customerIdx < 0 {
		return nil, apperrors.NewDataAccessError(apperrors.CodeMissingColumn,
			fmt.Sprintf("customer column %q not found", opts.CustomerColumn), nil)
	}
	if b.partIdx < 0 {
		return nil, apperrors.NewDataAccessError(apperrors.CodeMissingColumn,
			fmt.Sprintf("partition column %q not found", opts.PartitionColumn), nil)
	}
	return b, nil
}

// add appends one record. Null product cells become 0 and are counted.
func (b *tableBuilder) add(record []string) error {
	b.line++

	customer := strings.TrimSpace(record[b.customerIdx])
	if isNull(customer) {
		return b.fail(apperrors.CodeParseError, "empty customer id", "")
	}

	partition, ok := b.opts.parseDate(record[b.partIdx])
	if !ok {
		return b.fail(apperrors.CodeInvalidDate, "unparseable partition date", record[b.partIdx])
	}

	row := types.SnapshotRow{
		CustomerID: customer,
		Partition:  partition,
		Flags:      make([]int8, len(b.productCols)),
	}
	for j, col := range b.productCols {
		cell := strings.TrimSpace(record[col])
		if isNull(cell) {
			b.snap.NullsFilled[b.snap.Products[j]]++
			continue
		}
		flag, err := parseFlag(cell)
		if err != nil {
			return b.fail(apperrors.CodeInvalidFlag,
				fmt.Sprintf("product %s: %v", b.snap.Products[j], err), cell)
		}
		row.Flags[j] = flag
	}

	key := row.Key()
	if first, dup := b.seen[key]; dup {
		return b.fail(apperrors.CodeDuplicateRow,
			fmt.Sprintf("customer %s partition %s already seen on line %d",
				customer, partition.Format(types.PartitionLayout), first), "")
	}
	b.seen[key] = b.line
	b.snap.Rows = append(b.snap.Rows, row)
	return nil
}

func (b *tableBuilder) snapshot() *types.Snapshot {
	return b.snap
}

func (b *tableBuilder) fail(code, msg, value string) error {
	details := map[string]interface{}{"line": b.line}
	if value != "" {
		details["value"] = value
	}
	return apperrors.NewDataAccessError(code, fmt.Sprintf("line %d: %s", b.line, msg), nil).
		WithDetails(details)
}

func isNull(v string) bool {
	switch v {
	case "", "NaN", "nan", "NULL", "null":
		return true
	}
	return false
}

// parseFlag accepts integral numbers in int8 range, written as "1", "0" or "1.0".
func parseFlag(v string) (int8, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	if f < math.MinInt8 || f > math.MaxInt8 {
		return 0, fmt.Errorf("out of range")
	}
	return int8(f), nil
}
