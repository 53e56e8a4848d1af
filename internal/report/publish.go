package report

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
	"github.com/easymoney/easymoney-bi/internal/storage"
)

// Publish uploads the report files under prefix and returns the object paths
// in sorted order. Any failed file fails the whole publish.
func Publish(ctx context.Context, uploader *storage.BatchUploader, prefix string, paths []string) ([]string, error) {
	result, err := uploader.Upload(ctx, prefix, paths)
	if err != nil {
		return nil, apperrors.NewDataAccessError(apperrors.CodeWriteFailed, "report upload interrupted", err)
	}

	if len(result.Errors) > 0 {
		failed := make([]string, 0, len(result.Errors))
		for p := range result.Errors {
			failed = append(failed, p)
		}
		sort.Strings(failed)
		return nil, apperrors.NewDataAccessError(apperrors.CodeWriteFailed,
			fmt.Sprintf("failed to upload %d of %d report files", len(failed), len(paths)), result.Errors[failed[0]]).
			WithDetails(map[string]interface{}{"failed": failed})
	}

	objects := make([]string, 0, len(result.Objects))
	for _, o := range result.Objects {
		objects = append(objects, o)
	}
	sort.Strings(objects)
	return objects, nil
}
