package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/easymoney/easymoney-bi/internal/config"
	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/snapshot"
)

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("EASYMONEY_WORKERS", "8")
	t.Setenv("EASYMONEY_INPUT", "from_env.csv")

	cfg, err := loadConfig("", "/tmp/em", "from_flag.csv", "describe", 0, "payroll, debit_card")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.DataDir != "/tmp/em" || cfg.Input.Object != "from_flag.csv" || cfg.Mode != config.ModeDescribe {
		t.Errorf("flags did not override: %+v", cfg)
	}
	if cfg.Analysis.Workers != 8 {
		t.Errorf("expected workers from env, got %d", cfg.Analysis.Workers)
	}
	if len(cfg.Analysis.Products) != 2 || cfg.Analysis.Products[1] != "debit_card" {
		t.Errorf("unexpected products %v", cfg.Analysis.Products)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig("/nonexistent/config.yaml", "", "", "", 0, ""); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, "products_df.csv", snapshot.Summary{
		Rows:       4,
		Columns:    3,
		Customers:  2,
		Partitions: 2,
		First:      time.Date(2019, 1, 28, 0, 0, 0, 0, time.UTC),
		Last:       time.Date(2019, 2, 28, 0, 0, 0, 0, time.UTC),
		Products:   []snapshot.ProductSummary{{Name: "em_account", Active: 3, ActivationMean: 0.75}},
	})

	out := buf.String()
	for _, want := range []string{"2019-01-28 to 2019-02-28", "em_account", "0.7500"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintObjects_Empty(t *testing.T) {
	var buf bytes.Buffer
	printObjects(&buf, nil)
	if !strings.Contains(buf.String(), "No snapshots found") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"transient read", apperrors.NewDataAccessError(apperrors.CodeReadFailed, "read failed", errors.New("reset")), exitTempFail},
		{"wrapped transient read", fmt.Errorf("load: %w", apperrors.NewDataAccessError(apperrors.CodeReadFailed, "read failed", nil)), exitTempFail},
		{"missing source", apperrors.NewDataAccessError(apperrors.CodeSourceNotFound, "not found", nil), exitIOErr},
		{"bad data", apperrors.NewValidationError(apperrors.CodeMalformedHistory, "flag 2"), exitDataErr},
		{"bad config", apperrors.NewConfigError("no input", nil), exitConfig},
		{"cancelled", context.Canceled, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRun_InvalidConfigExitsConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Input.Object = ""
	err := run(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected run to fail without input")
	}
	if exitCode(err) != exitConfig {
		t.Errorf("expected config exit code, got %d for %v", exitCode(err), err)
	}
}
