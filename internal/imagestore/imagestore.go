// Package imagestore resolves a LabReport's ReportImage reference to
// bytes from whichever object backend is configured, when the image
// itself is stored in blob storage rather than inline. It exists for
// the debug "fetch the original scan" path (spec.md §8 supplemented
// feature) and is optional: ImageStoreBackend=="" disables it and
// every call returns apperr.NotFound.
//
// aistore itself fronts S3/GCS/Azure as storage backends for its
// targets (ais/prxs3.go is its S3-compatible gateway); this package
// plays the same "reach an external object store" role scoped down to
// one bucket, grounded on the same two cloud SDKs the teacher module
// depends on.
package imagestore

import (
	"context"
	"io"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/config"
)

// Store fetches the raw bytes of a stored image by its report_image
// reference (an object key).
type Store interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// disabled is used when no backend is configured.
type disabled struct{}

func (disabled) Fetch(context.Context, string) ([]byte, error) {
	return nil, apperr.New(apperr.NotFound, "image store is not configured")
}

// New builds the configured Store, or a disabled stub if
// cfg.ImageStoreBackend is empty or unrecognized.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.ImageStoreBackend {
	case "s3":
		return newS3Store(ctx, cfg.ImageStoreBucket)
	case "gcs":
		return newGCSStore(ctx, cfg.ImageStoreBucket)
	default:
		return disabled{}, nil
	}
}

func readAll(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r)
}
