// Package storage provides the S3-compatible blob service holding submission
// artifact bundles. Clients never stream bundles through the API server; they
// receive presigned upload and download URLs instead.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/pkg/logger"
)

var Module = fx.Module("storage",
	fx.Provide(NewService),
)

// Service provides S3-compatible storage operations for artifact bundles.
type Service struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	log           *slog.Logger
	bucket        string
}

// NewService creates the storage service. Without configuration the service
// stays disabled and every operation fails fast.
func NewService(cfg *config.Config, log *slog.Logger) (*Service, error) {
	log = log.With(logger.Scope("storage"))
	sc := cfg.Storage

	if !sc.IsConfigured() {
		log.Warn("storage service disabled - no configuration provided")
		return &Service{log: log, bucket: sc.BucketArtifacts}, nil
	}

	// MinIO needs a fixed endpoint and path-style addressing.
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               sc.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     sc.Region,
			}, nil
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(sc.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			sc.AccessKeyID,
			sc.SecretAccessKey,
			"",
		)),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	log.Info("storage service initialized",
		slog.String("endpoint", sc.Endpoint),
		slog.String("bucket", sc.BucketArtifacts),
	)

	return &Service{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		log:           log,
		bucket:        sc.BucketArtifacts,
	}, nil
}

// Enabled returns true if the storage service is properly configured.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Bucket returns the artifact bucket name.
func (s *Service) Bucket() string {
	return s.bucket
}

// Download retrieves an object from storage.
func (s *Service) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("storage service not enabled")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to download object", slog.String("key", key), logger.Error(err))
		return nil, fmt.Errorf("download failed: %w", err)
	}

	return result.Body, nil
}

// Delete removes an object from storage.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return fmt.Errorf("storage service not enabled")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("failed to delete object", slog.String("key", key), logger.Error(err))
		return fmt.Errorf("delete failed: %w", err)
	}

	s.log.Debug("object deleted", slog.String("key", key))
	return nil
}

// Exists checks if an object exists in storage.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if !s.Enabled() {
		return false, fmt.Errorf("storage service not enabled")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "404") || strings.Contains(errStr, "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("head object failed: %w", err)
	}

	return true, nil
}

// SignedUploadURL generates a presigned PUT URL for uploading a bundle.
func (s *Service) SignedUploadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("storage service not enabled")
	}
	if expiresIn == 0 {
		expiresIn = 15 * time.Minute
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = expiresIn
	})
	if err != nil {
		s.log.Error("failed to presign upload", slog.String("key", key), logger.Error(err))
		return "", fmt.Errorf("presign failed: %w", err)
	}

	return presignedReq.URL, nil
}

// SignedDownloadURLOptions configures a signed download URL.
type SignedDownloadURLOptions struct {
	ExpiresIn                  time.Duration
	ResponseContentDisposition string
}

// SignedDownloadURL generates a presigned GET URL for an object.
func (s *Service) SignedDownloadURL(ctx context.Context, key string, opts SignedDownloadURLOptions) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("storage service not enabled")
	}
	if opts.ExpiresIn == 0 {
		opts.ExpiresIn = time.Hour
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if opts.ResponseContentDisposition != "" {
		input.ResponseContentDisposition = aws.String(opts.ResponseContentDisposition)
	}

	presignedReq, err := s.presignClient.PresignGetObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = opts.ExpiresIn
	})
	if err != nil {
		s.log.Error("failed to presign download", slog.String("key", key), logger.Error(err))
		return "", fmt.Errorf("presign failed: %w", err)
	}

	s.log.Debug("presigned URL generated",
		slog.String("key", key),
		slog.Duration("expires", opts.ExpiresIn),
	)

	return presignedReq.URL, nil
}

// ArtifactKey builds the storage key of a bundle:
// {courseId}/{groupId}/{uuid}-{sanitized_filename}.
func ArtifactKey(courseID, groupID, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s", courseID, groupID, uuid.NewString(), SanitizeFilename(filename))
}

var (
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedUnder = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename cleans a filename for storage.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}

	sanitized := unsafeChars.ReplaceAllString(filename, "_")
	sanitized = repeatedUnder.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_")
	sanitized = strings.ToLower(sanitized)

	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	if sanitized == "" {
		return "unnamed"
	}
	return sanitized
}
