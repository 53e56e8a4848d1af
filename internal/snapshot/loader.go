package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/logger"
	"github.com/easymoney/easymoney-bi/internal/storage"
	"github.com/easymoney/easymoney-bi/pkg/types"
)

// Format is the physical encoding of a snapshot file.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatSnappy Format = "csv+snappy"
	FormatSQLite Format = "sqlite"
)

// DetectFormat maps a file name to its Format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".sz":
		return FormatSnappy, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", apperrors.NewDataAccessError(apperrors.CodeUnsupportedFormat,
		fmt.Sprintf("unsupported snapshot format: %s", name), nil)
}

// Loader fetches snapshot objects from storage and parses them.
type Loader struct {
	storage storage.ObjectStorage
	opts    Options
	workDir string
	log     *logger.Logger
}

// NewLoader creates a loader downloading into workDir.
func NewLoader(store storage.ObjectStorage, opts Options, workDir string, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		storage: store,
		opts:    opts,
		workDir: workDir,
		log:     log,
	}
}

// Fetch downloads the object into the work dir and returns the local path.
func (l *Loader) Fetch(ctx context.Context, object string) (string, error) {
	if _, err := DetectFormat(object); err != nil {
		return "", err
	}

	local := filepath.Join(l.workDir, path.Base(object))
	if err := l.storage.Download(ctx, object, local); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", apperrors.NewDataAccessError(apperrors.CodeSourceNotFound,
				fmt.Sprintf("snapshot %s not found", object), err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apperrors.NewDataAccessError(apperrors.CodeReadFailed,
			fmt.Sprintf("failed to download snapshot %s", object), err)
	}
	return local, nil
}

// Load fetches and parses a snapshot object.
func (l *Loader) Load(ctx context.Context, object string) (*types.Snapshot, error) {
	start := time.Now()
	local, err := l.Fetch(ctx, object)
	if err != nil {
		return nil, err
	}

	snap, err := LoadFile(ctx, local, l.opts)
	if err != nil {
		return nil, err
	}

	l.log.Info("snapshot loaded",
		"object", object,
		"rows", snap.Len(),
		"products", len(snap.Products),
		"duration", time.Since(start),
	)
	for product, n := range snap.NullsFilled {
		if n > 0 {
			l.log.Warn("null product flags replaced by 0", "product", product, "count", n)
		}
	}
	return snap, nil
}

// LoadFile parses a local snapshot file, choosing the decoder by extension.
func LoadFile(ctx context.Context, localPath string, opts Options) (*types.Snapshot, error) {
	format, err := DetectFormat(localPath)
	if err != nil {
		return nil, err
	}

	if format == FormatSQLite {
		return loadSQLite(ctx, localPath, opts)
	}

	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewDataAccessError(apperrors.CodeSourceNotFound,
				fmt.Sprintf("snapshot file %s not found", localPath), err)
		}
		return nil, apperrors.NewDataAccessError(apperrors.CodeReadFailed,
			fmt.Sprintf("failed to open %s", localPath), err)
	}
	defer f.Close()

	if format == FormatSnappy {
		return ReadSnappyCSV(ctx, f, opts)
	}
	return ReadCSV(ctx, f, opts)
}
