package karchive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	kconfig "github.com/kaiza-dev/kaiza/pkg/config"
)

// s3Archiver archives bundle/report bytes to S3, keyed by name under a
// fixed bucket prefix. The bundle_id / HALT report filename already
// carry their own content-addressing upstream.
type s3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Archiver(ctx context.Context, cfg *kconfig.Config) (Archiver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.ArchiveRegion))
	if err != nil {
		return nil, fmt.Errorf("karchive: load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &s3Archiver{client: client, bucket: cfg.ArchiveBucket, prefix: "kaiza/"}, nil
}

func (a *s3Archiver) Archive(ctx context.Context, name string, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.prefix + name),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("karchive: s3 put %s: %w", name, err)
	}
	return nil
}
