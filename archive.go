package pathsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveSink receives exported answer histories for long-term storage.
type ArchiveSink interface {
	// Archive stores one export under the given object key.
	Archive(ctx context.Context, key string, data []byte) error
}

// S3ArchiveSinkConfig configures the S3 archive sink.
type S3ArchiveSinkConfig struct {
	Bucket   string
	Region   string
	Endpoint string // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer using IAM roles, instance profiles,
	// or environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY) instead
	// of setting these directly. DO NOT commit credentials to source control.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // Key prefix for all objects
	UsePathStyle    bool   // Use path-style addressing

	// MaxRetries for S3 operations (default: 3)
	MaxRetries int
}

// S3ArchiveSink implements ArchiveSink on S3 or S3-compatible storage.
type S3ArchiveSink struct {
	client  *s3.Client
	config  S3ArchiveSinkConfig
	retryer *Retryer
}

// NewS3ArchiveSink creates an archive sink for the given bucket.
func NewS3ArchiveSink(cfg S3ArchiveSinkConfig) (*S3ArchiveSink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive sink: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("archive sink: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3ArchiveSink{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		config: cfg,
		retryer: NewRetryer(RetryConfig{
			MaxAttempts:       cfg.MaxRetries,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            0.1,
			RetryIf:           IsRetryable,
		}),
	}, nil
}

func (s *S3ArchiveSink) Archive(ctx context.Context, key string, data []byte) error {
	fullKey := s.config.Prefix + key

	result := s.retryer.Do(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.config.Bucket),
			Key:         aws.String(fullKey),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("archive sink: put object: %w", err)
		}
		return nil
	})
	return result.LastErr
}

// MemoryArchiveSink collects archives in memory. Useful in tests.
type MemoryArchiveSink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemoryArchiveSink creates an empty in-memory sink.
func NewMemoryArchiveSink() *MemoryArchiveSink {
	return &MemoryArchiveSink{objects: make(map[string][]byte)}
}

func (m *MemoryArchiveSink) Archive(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = buf
	return nil
}

// Object returns an archived payload by key.
func (m *MemoryArchiveSink) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of archived objects.
func (m *MemoryArchiveSink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
