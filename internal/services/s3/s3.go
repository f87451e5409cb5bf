// Package s3service provides S3 operations for model artifacts and batch files
package s3service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"credit-risk-engine/internal/utils"
)

// Client is the subset of the S3 API used by the service.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Service handles S3 operations
type Service struct {
	client Client
}

// NewService creates a new S3 service from the default AWS credential chain
func NewService(ctx context.Context, region string) (*Service, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(s3.NewFromConfig(cfg)), nil
}

// NewWithClient wraps an existing S3 client
func NewWithClient(client Client) *Service {
	return &Service{client: client}
}

// GetObject downloads an object body
func (s *Service) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		utils.GetLogger().Error("Failed to download object from S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object content: %w", err)
	}

	utils.GetLogger().Info("Downloaded object from S3",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return data, nil
}

// PutObject uploads an object body
func (s *Service) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		utils.GetLogger().Error("Failed to upload object to S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upload object: %w", err)
	}

	utils.GetLogger().Info("Uploaded object to S3",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return nil
}

// MoveObject moves an object within a bucket (copy + delete)
func (s *Service) MoveObject(ctx context.Context, bucket, sourceKey, destKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(fmt.Sprintf("%s/%s", bucket, sourceKey)),
		Key:        aws.String(destKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy object: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(sourceKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	utils.GetLogger().Info("Moved object in S3",
		zap.String("bucket", bucket),
		zap.String("source", sourceKey),
		zap.String("destination", destKey),
	)

	return nil
}

// ResultKey derives the results object key for an uploaded batch file:
// uploads/2024/applicants.csv -> results/2024/applicants.json
func ResultKey(prefix, sourceKey string) string {
	trimmed := strings.TrimPrefix(sourceKey, "uploads/")
	ext := path.Ext(trimmed)
	return path.Join(prefix, strings.TrimSuffix(trimmed, ext)+".json")
}

// ProcessedKey derives the archive key for a batch file that was scored.
func ProcessedKey(sourceKey string) string {
	return path.Join("processed", strings.TrimPrefix(sourceKey, "uploads/"))
}
