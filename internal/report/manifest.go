package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/observability"
)

// Manifest describes one analysis run and the files it produced.
type Manifest struct {
	RunID      string                 `json:"run_id"`
	Input      string                 `json:"input"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Rows       int                    `json:"rows"`
	Customers  int                    `json:"customers"`
	Partitions int                    `json:"partitions"`
	Products   []string               `json:"products"`
	Selected   []string               `json:"selected_products,omitempty"`
	Files      []FileEntry            `json:"files"`
	// Stats covers every stage through report writing; upload runs after the
	// manifest is written and is only logged.
	Stats      observability.Snapshot `json:"stats"`
}

// FileEntry is one written file.
type FileEntry struct {
	Table string `json:"table"`
	File  string `json:"file"`
	Rows  int    `json:"rows"`
}

// WriteFile writes the manifest as indented JSON.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperrors.NewInternalError("failed to encode manifest", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewDataAccessError(apperrors.CodeWriteFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteFile.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeParseError, fmt.Sprintf("failed to decode %s", path), err)
	}
	return &m, nil
}
