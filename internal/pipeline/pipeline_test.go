package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/easymoney/easymoney-bi/internal/analytics/history"
	"github.com/easymoney/easymoney-bi/internal/analytics/tenure"
	"github.com/easymoney/easymoney-bi/internal/config"
	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/logger"
	"github.com/easymoney/easymoney-bi/internal/report"
	"github.com/easymoney/easymoney-bi/internal/storage"
)

const productsCSV = "Unnamed: 0,pk_cid,pk_partition,em_acount,payroll,debit_card\n" +
	"0,1,2019-01-28,1,0,0\n" +
	"1,2,2019-01-28,1,1,0\n" +
	"2,1,2019-02-28,1,0,1\n" +
	"3,2,2019-02-28,0,1,0\n" +
	"4,3,2019-02-28,1,0,0\n" +
	"5,1,2019-03-28,1,1,1\n"

func setup(t *testing.T) (*config.Config, storage.ObjectStorage) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Analysis.Workers = 2
	cfg.Resolve()

	store, err := OpenStorage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStorage failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Storage.Path, cfg.Input.Object), []byte(productsCSV), 0644); err != nil {
		t.Fatalf("failed to seed storage: %v", err)
	}
	return cfg, store
}

func newPipeline(t *testing.T, cfg *config.Config, store storage.ObjectStorage) *Pipeline {
	t.Helper()
	p, err := New(cfg, store, logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	p.newID = func() string { return "run-test" }
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	cfg, store := setup(t)
	cfg.Output.UploadPrefix = "published"
	p := newPipeline(t, cfg, store)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Matrix.Rows() != 3 || res.Matrix.Cols() != 3 {
		t.Fatalf("expected a 3x3 presence matrix, got %dx%d", res.Matrix.Rows(), res.Matrix.Cols())
	}

	wantMonths := map[string]int{"1": 3, "2": 2, "3": 1}
	for _, r := range res.Tenure {
		if r.MonthsPresent != wantMonths[r.CustomerID] {
			t.Errorf("customer %s: months %d, want %d", r.CustomerID, r.MonthsPresent, wantMonths[r.CustomerID])
		}
		if r.Bucket != tenure.BucketLow {
			t.Errorf("customer %s: bucket %s, want low", r.CustomerID, r.Bucket)
		}
	}

	if len(res.History) != 9 {
		t.Fatalf("expected 9 history records, got %d", len(res.History))
	}
	first := res.History[0]
	if first.CustomerID != "1" || first.Product != "em_account" || first.Case != history.CaseAlwaysActive {
		t.Errorf("unexpected first history record %+v", first)
	}

	wantNuevos := []int{0, 1, -2}
	for i, g := range res.Growth {
		if g.NuevosClientes != wantNuevos[i] {
			t.Errorf("period %d: nuevos_clientes %d, want %d", i, g.NuevosClientes, wantNuevos[i])
		}
	}
	if res.Growth[1].ProductosContratados != 4 {
		t.Errorf("expected 4 contracted products in February, got %d", res.Growth[1].ProductosContratados)
	}

	if res.ContractIndex[0].Product != "em_account" {
		t.Errorf("em_account should lead the contract index, got %s", res.ContractIndex[0].Product)
	}

	// 10 tables, the workbook and the manifest
	if len(res.Files) != 12 || len(res.Uploaded) != 12 {
		t.Fatalf("expected 12 files written and uploaded, got %d and %d", len(res.Files), len(res.Uploaded))
	}
	for _, name := range []string{report.TableTenure + ".csv", report.WorkbookName, report.ManifestName} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "run-test", name)); err != nil {
			t.Errorf("missing report file %s: %v", name, err)
		}
		ok, err := store.Exists(context.Background(), "published/run-test/"+name)
		if err != nil || !ok {
			t.Errorf("report file %s not uploaded: %v", name, err)
		}
	}

	m, err := report.ReadManifest(filepath.Join(cfg.Output.Dir, "run-test", report.ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if m.Rows != 6 || m.Customers != 3 || m.Partitions != 3 || len(m.Stats.Stages) == 0 {
		t.Errorf("unexpected manifest %+v", m)
	}
	stages := make(map[string]bool)
	for _, s := range m.Stats.Stages {
		stages[s.Stage] = true
	}
	for _, want := range []string{"load", "history", "report"} {
		if !stages[want] {
			t.Errorf("manifest stats missing stage %q: %+v", want, m.Stats.Stages)
		}
	}
	if len(m.Files) != len(res.Files)-1 {
		t.Errorf("manifest lists %d files, run wrote %d besides the manifest", len(m.Files), len(res.Files)-1)
	}
}

func TestRun_SelectedProducts(t *testing.T) {
	cfg, store := setup(t)
	cfg.Analysis.Products = []string{"payroll"}
	res, err := newPipeline(t, cfg, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []int{1, 1, 1}
	for i, g := range res.Growth {
		if g.ProductosContratados != want[i] {
			t.Errorf("period %d: payroll contracted %d, want %d", i, g.ProductosContratados, want[i])
		}
	}

	cfg.Analysis.Products = []string{"mortgage"}
	if _, err := newPipeline(t, cfg, store).Run(context.Background()); apperrors.GetCode(err) != apperrors.CodeUnknownProduct {
		t.Errorf("expected UNKNOWN_PRODUCT, got %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	cfg, store := setup(t)
	cfg.Input.Object = "missing.csv"
	if _, err := newPipeline(t, cfg, store).Run(context.Background()); apperrors.GetCode(err) != apperrors.CodeSourceNotFound {
		t.Errorf("expected SOURCE_NOT_FOUND, got %v", err)
	}

	cfg, store = setup(t)
	cfg.Analysis.Buckets = []config.BucketConfig{{Name: "short", Min: 1, Max: 2}}
	if _, err := newPipeline(t, cfg, store).Run(context.Background()); apperrors.GetCode(err) != apperrors.CodeInvalidBoundaries {
		t.Errorf("expected INVALID_BOUNDARIES, got %v", err)
	}

	cfg, store = setup(t)
	cfg.Analysis.Workers = 0
	if _, err := New(cfg, store, nil); apperrors.GetCategory(err) != apperrors.ErrCategoryConfig {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestDescribeAndList(t *testing.T) {
	cfg, store := setup(t)
	if err := os.WriteFile(filepath.Join(cfg.Storage.Path, "notes.md"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to seed storage: %v", err)
	}
	p := newPipeline(t, cfg, store)

	sum, err := p.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if sum.Rows != 6 || sum.Columns != 5 || sum.Customers != 3 || sum.Partitions != 3 {
		t.Errorf("unexpected summary %+v", sum)
	}

	objects, err := p.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 1 || objects[0] != "products_df.csv" {
		t.Errorf("expected only the snapshot to be listed, got %v", objects)
	}
}

func TestMappings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Input.Delimiter = ";"
	opts := SnapshotOptions(cfg)
	if opts.Delimiter != ';' || opts.CustomerColumn != "pk_cid" || opts.Renames["em_acount"] != "em_account" {
		t.Errorf("unexpected options %+v", opts)
	}

	b := Boundaries(cfg)
	if len(b) != 4 || b[3].Bucket != tenure.BucketComplete || b[3].Max != 17 {
		t.Errorf("unexpected boundaries %+v", b)
	}
	if err := b.Validate(17); err != nil {
		t.Errorf("default boundaries should validate: %v", err)
	}
}
