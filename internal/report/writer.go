package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/logger"
)

const (
	// Delimiter is the field separator the dashboard loaders expect.
	Delimiter = ';'

	// WorkbookName is the XLSX file written next to the CSVs.
	WorkbookName = "easymoney_bi.xlsx"

	// ManifestName is the JSON run manifest.
	ManifestName = "manifest.json"

	// maxSheetName is Excel's sheet name limit.
	maxSheetName = 31
)

// Options configures a Writer.
type Options struct {
	// Dir receives one sub-directory per run
	Dir string

	// Compress writes snappy framed .csv.sz files instead of plain CSV
	Compress bool

	// XLSX also writes the workbook
	XLSX bool
}

// Writer writes a run's tables to disk.
type Writer struct {
	opts Options
	log  *logger.Logger
}

// NewWriter creates a report writer.
func NewWriter(opts Options, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{opts: opts, log: log}
}

// RunDir returns the directory a run writes into.
func (w *Writer) RunDir(runID string) string {
	return filepath.Join(w.opts.Dir, runID)
}

// FileName returns the CSV file name of a table.
func (w *Writer) FileName(table string) string {
	if w.opts.Compress {
		return table + ".csv.sz"
	}
	return table + ".csv"
}

// Write writes every table, the optional workbook and finally the manifest,
// which lists the files written. It returns the paths of all files.
func (w *Writer) Write(ctx context.Context, runID string, tables []Table, m *Manifest) ([]string, error) {
	paths, err := w.WriteTables(ctx, runID, tables, m)
	if err != nil || m == nil {
		return paths, err
	}
	p, err := w.WriteManifest(runID, m)
	if err != nil {
		return paths, err
	}
	return append(paths, p), nil
}

// WriteTables writes every table and the optional workbook, recording each
// file in m when m is not nil.
func (w *Writer) WriteTables(ctx context.Context, runID string, tables []Table, m *Manifest) ([]string, error) {
	dir := w.RunDir(runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeWriteFailed, "failed to create report directory", err)
	}

	var paths []string
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		p := filepath.Join(dir, w.FileName(t.Name))
		if err := w.writeCSV(p, t); err != nil {
			return paths, err
		}
		paths = append(paths, p)
		if m != nil {
			m.Files = append(m.Files, FileEntry{Table: t.Name, File: filepath.Base(p), Rows: t.Len()})
		}
		w.log.Debug("report table written", "table", t.Name, "rows", t.Len(), "path", p)
	}

	if w.opts.XLSX {
		p := filepath.Join(dir, WorkbookName)
		if err := WriteWorkbook(p, tables); err != nil {
			return paths, err
		}
		paths = append(paths, p)
		if m != nil {
			m.Files = append(m.Files, FileEntry{Table: "workbook", File: WorkbookName, Rows: len(tables)})
		}
	}

	w.log.Info("reports written", "dir", dir, "files", len(paths))
	return paths, nil
}

// WriteManifest stamps FinishedAt if unset and writes m into the run directory.
func (w *Writer) WriteManifest(runID string, m *Manifest) (string, error) {
	dir := w.RunDir(runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.NewDataAccessError(apperrors.CodeWriteFailed, "failed to create report directory", err)
	}
	if m.FinishedAt.IsZero() {
		m.FinishedAt = time.Now().UTC()
	}
	p := filepath.Join(dir, ManifestName)
	if err := m.WriteFile(p); err != nil {
		return "", err
	}
	return p, nil
}

func (w *Writer) writeCSV(path string, t Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewDataAccessError(apperrors.CodeWriteFailed, fmt.Sprintf("failed to create %s", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = apperrors.NewDataAccessError(apperrors.CodeWriteFailed, fmt.Sprintf("failed to close %s", path), cerr)
		}
	}()

	var out io.Writer = f
	var sz *snappy.Writer
	if w.opts.Compress {
		sz = snappy.NewBufferedWriter(f)
		out = sz
	}

	if err := WriteCSV(out, t); err != nil {
		return apperrors.NewDataAccessError(apperrors.CodeWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	if sz != nil {
		if err := sz.Close(); err != nil {
			return apperrors.NewDataAccessError(apperrors.CodeWriteFailed, fmt.Sprintf("failed to flush %s", path), err)
		}
	}
	return nil
}

// WriteCSV writes a table as semicolon separated text with a header row.
func WriteCSV(out io.Writer, t Table) error {
	cw := csv.NewWriter(out)
	cw.Comma = Delimiter
	if err := cw.WriteAll(t.records()); err != nil {
		return err
	}
	return cw.Error()
}

// WriteWorkbook writes one sheet per table into an XLSX file.
func WriteWorkbook(path string, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		sheet := sheetName(t.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return workbookErr(path, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return workbookErr(path, err)
		}

		for c, h := range t.Header {
			cell, err := excelize.CoordinatesToCellName(c+1, 1)
			if err != nil {
				return workbookErr(path, err)
			}
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return workbookErr(path, err)
			}
			col, err := excelize.ColumnNumberToName(c + 1)
			if err != nil {
				return workbookErr(path, err)
			}
			if err := f.SetColWidth(sheet, col, col, 18); err != nil {
				return workbookErr(path, err)
			}
		}

		for r, row := range t.Rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+2)
				if err != nil {
					return workbookErr(path, err)
				}
				if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
					return workbookErr(path, err)
				}
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return workbookErr(path, err)
	}
	return nil
}

// cellValue keeps numbers numeric except non-finite floats, which Excel cannot store.
func cellValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return formatValue(x)
		}
		return x
	case time.Time:
		return formatValue(x)
	default:
		return v
	}
}

func sheetName(table string) string {
	if len(table) > maxSheetName {
		return table[:maxSheetName]
	}
	return table
}

func workbookErr(path string, err error) error {
	return apperrors.NewDataAccessError(apperrors.CodeWriteFailed, fmt.Sprintf("failed to write workbook %s", path), err)
}
