package imagestore

import (
	"context"

	"cloud.google.com/go/storage"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

type gcsStore struct {
	bucket *storage.BucketHandle
}

func newGCSStore(ctx context.Context, bucket string) (Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "creating gcs client for image store")
	}
	return &gcsStore{bucket: client.Bucket(bucket)}, nil
}

func (g *gcsStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, err, "fetching image from gcs")
	}
	return readAll(r)
}
