package snapshot

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/storage"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

const sampleCSV = "\ufeffUnnamed: 0,pk_cid,pk_partition,short_term_deposit,em_acount,payroll\n" +
	"0,1375586,2018-01-28,0,1,\n" +
	"1,1050611,2018-01-28,0,1,0.0\n" +
	"2,1375586,2018-02-28,1,1,1.0\n" +
	"3,1050611,2018-02-28 00:00:00,0,0,NaN\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return p
}

func TestReadCSV_Sample(t *testing.T) {
	snap, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	wantProducts := []string{"short_term_deposit", "em_account", "payroll"}
	if len(snap.Products) != len(wantProducts) {
		t.Fatalf("expected products %v, got %v", wantProducts, snap.Products)
	}
	for i, p := range wantProducts {
		if snap.Products[i] != p {
			t.Errorf("product %d: got %q, want %q", i, snap.Products[i], p)
		}
	}

	if snap.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", snap.Len())
	}
	first := snap.Rows[0]
	if first.CustomerID != "1375586" {
		t.Errorf("unexpected customer %q", first.CustomerID)
	}
	if !first.Partition.Equal(time.Date(2018, 1, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected partition %v", first.Partition)
	}
	if snap.Rows[2].Flags[2] != 1 {
		t.Errorf("expected 1.0 to parse as 1, got %d", snap.Rows[2].Flags[2])
	}
	if !snap.Rows[3].Partition.Equal(time.Date(2018, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("datetime layout should truncate to the day, got %v", snap.Rows[3].Partition)
	}
	if snap.NullsFilled["payroll"] != 2 {
		t.Errorf("expected 2 nulls filled for payroll, got %d", snap.NullsFilled["payroll"])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
	}{
		{"empty", "", apperrors.CodeParseError},
		{"missing customer", "pk_partition,a\n2018-01-28,1\n", apperrors.CodeMissingColumn},
		{"missing partition", "pk_cid,a\n1,1\n", apperrors.CodeMissingColumn},
		{"bad date", "pk_cid,pk_partition,a\n1,28/01/2018,1\n", apperrors.CodeInvalidDate},
		{"bad flag", "pk_cid,pk_partition,a\n1,2018-01-28,yes\n", apperrors.CodeInvalidFlag},
		{"fractional flag", "pk_cid,pk_partition,a\n1,2018-01-28,0.5\n", apperrors.CodeInvalidFlag},
		{"duplicate row", "pk_cid,pk_partition,a\n1,2018-01-28,1\n1,2018-01-28,0\n", apperrors.CodeDuplicateRow},
		{"ragged row", "pk_cid,pk_partition,a\n1,2018-01-28\n", apperrors.CodeParseError},
		{"empty customer", "pk_cid,pk_partition,a\n,2018-01-28,1\n", apperrors.CodeParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(context.Background(), strings.NewReader(tt.input), DefaultOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.IsDataAccess(err) {
				t.Errorf("expected a data access error, got %v", err)
			}
			if apperrors.GetCode(err) != tt.code {
				t.Errorf("expected code %s, got %s (%v)", tt.code, apperrors.GetCode(err), err)
			}
		})
	}
}

func TestReadCSV_NonBinaryFlagPassesThrough(t *testing.T) {
	snap, err := ReadCSV(context.Background(), strings.NewReader("pk_cid,pk_partition,a\n1,2018-01-28,2\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if snap.Rows[0].Flags[0] != 2 {
		t.Errorf("expected raw flag 2 to be kept for history validation, got %d", snap.Rows[0].Flags[0])
	}
}

func TestReadCSV_SemicolonDelimiter(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = ';'
	snap, err := ReadCSV(context.Background(), strings.NewReader("pk_cid;pk_partition;a\n7;2019-05-28;1\n"), opts)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if snap.Len() != 1 || snap.Rows[0].Flags[0] != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestLoadFile_SnappyMatchesCSV(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "products_df.csv", sampleCSV)

	compressed := filepath.Join(dir, "products_df.csv.sz")
	f, err := os.Create(compressed)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	w := snappy.NewBufferedWriter(f)
	if _, err := w.Write([]byte(sampleCSV)); err != nil {
		t.Fatalf("snappy write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("snappy close failed: %v", err)
	}
	f.Close()

	ctx := context.Background()
	a, err := LoadFile(ctx, plain, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadFile csv failed: %v", err)
	}
	b, err := LoadFile(ctx, compressed, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadFile snappy failed: %v", err)
	}
	assertSnapshotsEqual(t, a, b)
}

func TestLoadFile_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "products.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE products (pk_cid TEXT, pk_partition TEXT, short_term_deposit INTEGER, em_acount REAL, payroll INTEGER)`,
		`INSERT INTO products VALUES ('1375586', '2018-01-28', 0, 1, NULL)`,
		`INSERT INTO products VALUES ('1050611', '2018-01-28', 0, 1, 0)`,
		`INSERT INTO products VALUES ('1375586', '2018-02-28', 1, 1.0, 1)`,
		`INSERT INTO products VALUES ('1050611', '2018-02-28', 0, 0, NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q failed: %v", s, err)
		}
	}
	db.Close()

	ctx := context.Background()
	fromSQLite, err := LoadFile(ctx, dbPath, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadFile sqlite failed: %v", err)
	}
	fromCSV, err := ReadCSV(ctx, strings.NewReader(sampleCSV), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	assertSnapshotsEqual(t, fromCSV, fromSQLite)
}

func TestLoadFile_UnsupportedAndMissing(t *testing.T) {
	ctx := context.Background()
	if _, err := LoadFile(ctx, "snapshot.parquet", DefaultOptions()); apperrors.GetCode(err) != apperrors.CodeUnsupportedFormat {
		t.Errorf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "nope.csv")
	if _, err := LoadFile(ctx, missing, DefaultOptions()); apperrors.GetCode(err) != apperrors.CodeSourceNotFound {
		t.Errorf("expected SOURCE_NOT_FOUND, got %v", err)
	}
	missingDB := filepath.Join(t.TempDir(), "nope.db")
	if _, err := LoadFile(ctx, missingDB, DefaultOptions()); apperrors.GetCode(err) != apperrors.CodeSourceNotFound {
		t.Errorf("expected SOURCE_NOT_FOUND for sqlite, got %v", err)
	}
}

func TestLoader_LoadFromStorage(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	src := writeFile(t, t.TempDir(), "products_df.csv", sampleCSV)

	ctx := context.Background()
	if err := store.Upload(ctx, src, "snapshots/products_df.csv"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	loader := NewLoader(store, DefaultOptions(), t.TempDir(), nil)
	snap, err := loader.Load(ctx, "snapshots/products_df.csv")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Len() != 4 {
		t.Errorf("expected 4 rows, got %d", snap.Len())
	}

	if _, err := loader.Load(ctx, "snapshots/missing.csv"); apperrors.GetCode(err) != apperrors.CodeSourceNotFound {
		t.Errorf("expected SOURCE_NOT_FOUND, got %v", err)
	}
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadCSV(ctx, strings.NewReader(sampleCSV), DefaultOptions()); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	snap, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	sum := Describe(snap)
	if sum.Rows != 4 || sum.Customers != 2 || sum.Partitions != 2 || sum.Columns != 5 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if !sum.First.Equal(time.Date(2018, 1, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first partition %v", sum.First)
	}
	em := sum.Products[1]
	if em.Name != "em_account" || em.Active != 3 || em.ActivationMean != 0.75 {
		t.Errorf("unexpected em_account summary %+v", em)
	}
	if sum.Products[2].NullsFilled != 2 {
		t.Errorf("expected payroll nulls 2, got %d", sum.Products[2].NullsFilled)
	}
}

func assertSnapshotsEqual(t *testing.T, a, b *types.Snapshot) {
	t.Helper()
	if len(a.Products) != len(b.Products) {
		t.Fatalf("product count mismatch: %v vs %v", a.Products, b.Products)
	}
	for i := range a.Products {
		if a.Products[i] != b.Products[i] {
			t.Errorf("product %d: %q vs %q", i, a.Products[i], b.Products[i])
		}
	}
	if a.Len() != b.Len() {
		t.Fatalf("row count mismatch: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Rows {
		ra, rb := a.Rows[i], b.Rows[i]
		if ra.CustomerID != rb.CustomerID || !ra.Partition.Equal(rb.Partition) {
			t.Errorf("row %d identity mismatch: %+v vs %+v", i, ra, rb)
		}
		for j := range ra.Flags {
			if ra.Flags[j] != rb.Flags[j] {
				t.Errorf("row %d flag %d: %d vs %d", i, j, ra.Flags[j], rb.Flags[j])
			}
		}
	}
	for p, n := range a.NullsFilled {
		if b.NullsFilled[p] != n {
			t.Errorf("nulls filled for %s: %d vs %d", p, n, b.NullsFilled[p])
		}
	}
}
