package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchUploader publishes a set of local files under a common object prefix in parallel.
type BatchUploader struct {
	storage     ObjectStorage
	concurrency int
}

// BatchUploadResult contains the outcome of a batch upload.
type BatchUploadResult struct {
	// Objects maps local path to the uploaded object path
	Objects map[string]string
	// Errors maps local path to the upload failure
	Errors map[string]error
}

// NewBatchUploader creates a new batch uploader.
// concurrency <= 0 is treated as 1.
func NewBatchUploader(storage ObjectStorage, concurrency int) *BatchUploader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchUploader{
		storage:     storage,
		concurrency: concurrency,
	}
}

// ObjectPath returns the object path a local file is published to under prefix.
func ObjectPath(prefix, localPath string) string {
	return path.Join(prefix, filepath.Base(localPath))
}

// Upload uploads every file to prefix/<base name>. Per-file failures are
// collected in the result; the returned error is only set when the context ends.
func (b *BatchUploader) Upload(ctx context.Context, prefix string, localPaths []string) (*BatchUploadResult, error) {
	result := &BatchUploadResult{
		Objects: make(map[string]string),
		Errors:  make(map[string]error),
	}
	if len(localPaths) == 0 {
		return result, nil
	}

	paths := append([]string(nil), localPaths...)
	sort.Strings(paths)

	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return result, fmt.Errorf("semaphore acquire failed: %w", err)
		}

		wg.Add(1)
		go func(local string) {
			defer sem.Release(1)
			defer wg.Done()

			object := ObjectPath(prefix, local)
			err := b.storage.Upload(ctx, local, object)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[local] = err
				return
			}
			result.Objects[local] = object
		}(p)
	}

	wg.Wait()
	return result, nil
}
