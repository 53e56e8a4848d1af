package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// loadSQLite reads every row of opts.Table from a read-only SQLite file.
func loadSQLite(ctx context.Context, sqlitePath string, opts Options) (*types.Snapshot, error) {
	if _, err := os.Stat(sqlitePath); err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeSourceNotFound,
			fmt.Sprintf("snapshot file %s not found", sqlitePath), err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_query_only=true", sqlitePath))
	if err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeReadFailed, "failed to open SQLite snapshot", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeReadFailed,
			fmt.Sprintf("failed to open %s", sqlitePath), err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(opts.Table))
	if err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeParseError,
			fmt.Sprintf("failed to query table %s", opts.Table), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeParseError, "failed to read columns", err)
	}

	b, err := newTableBuilder(opts, columns)
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, len(columns))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.NewDataAccessError(apperrors.CodeParseError, "failed to scan row", err)
		}
		for i, v := range values {
			record[i] = sqlText(v)
		}
		if err := b.add(record); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeReadFailed, "error iterating rows", err)
	}

	return b.snapshot(), nil
}

// sqlText renders a driver value the way it would appear in the CSV export.
func sqlText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.UTC().Format(types.PartitionLayout)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
