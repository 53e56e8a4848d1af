package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// ctxCheckEvery bounds how many records are parsed between cancellation checks.
const ctxCheckEvery = 4096

// ReadCSV parses a delimiter-separated snapshot with a header row.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) (*types.Snapshot, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewDataAccessError(apperrors.CodeParseError, "snapshot has no header", nil)
		}
		return nil, wrapReadErr(err)
	}
	header = append([]string(nil), header...)

	b, err := newTableBuilder(opts, header)
	if err != nil {
		return nil, err
	}

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapReadErr(err)
		}
		if err := b.add(record); err != nil {
			return nil, err
		}
	}

	return b.snapshot(), nil
}

// ReadSnappyCSV parses a snappy framed stream wrapping a CSV snapshot.
func ReadSnappyCSV(ctx context.Context, r io.Reader, opts Options) (*types.Snapshot, error) {
	return ReadCSV(ctx, snappy.NewReader(r), opts)
}

func wrapReadErr(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return apperrors.NewDataAccessError(apperrors.CodeParseError,
			fmt.Sprintf("malformed CSV at line %d", parseErr.Line), err)
	}
	if errors.Is(err, snappy.ErrCorrupt) || errors.Is(err, snappy.ErrUnsupported) {
		return apperrors.NewDataAccessError(apperrors.CodeParseError, "corrupt snappy stream", err)
	}
	return apperrors.NewDataAccessError(apperrors.CodeReadFailed, "failed to read snapshot", err)
}
