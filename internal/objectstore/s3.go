// Package objectstore issues presigned S3 URLs so clients upload and
// fetch event images directly, keeping large bodies off the API server.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appconfig "github.com/get-me-through/server/internal/config"
	"github.com/rs/zerolog"
)

type S3Store struct {
	bucket    string
	urlExpiry time.Duration
	presign   *s3.PresignClient
	logger    zerolog.Logger
}

func NewS3Store(ctx context.Context, cfg appconfig.StorageConfig, logger zerolog.Logger) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		bucket:    cfg.Bucket,
		urlExpiry: cfg.URLExpiry,
		presign:   s3.NewPresignClient(client),
		logger:    logger.With().Str("component", "objectstore").Logger(),
	}, nil
}

// EventImageKey is the canonical object key for an event's cover image.
func EventImageKey(eventID string) string {
	return fmt.Sprintf("events/%s/cover", eventID)
}

// UploadURL presigns a PUT for the key. The caller must send the same
// Content-Type it presigned with.
func (s *S3Store) UploadURL(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}
	s.logger.Debug().Str("key", key).Msg("presigned upload url")
	return req.URL, nil
}

// DownloadURL presigns a GET for the key.
func (s *S3Store) DownloadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}
