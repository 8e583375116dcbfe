package imagestore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
)

type s3Store struct {
	bucket     string
	client     *s3.Client
	downloader *manager.Downloader
}

func newS3Store(ctx context.Context, bucket string) (Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "loading aws config for image store")
	}
	client := s3.NewFromConfig(cfg)
	return &s3Store{bucket: bucket, client: client, downloader: manager.NewDownloader(client)}, nil
}

func (s *s3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.NotFound, err, "fetching image from s3")
	}
	return buf.Bytes(), nil
}
