package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kernelworks/kernelbot/internal/domain"
)

const (
	imagePrefix = "images/"
	videoPrefix = "videos/"
)

// S3ClientConfig holds configuration for MediaStore
type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// MediaStore resolves media attachments from S3-compatible object storage
// (e.g., RustFS, MinIO). Objects live under images/ and videos/ prefixes
// and are matched against the requested topic by file name. Matches are
// served as presigned download URLs so the bot never proxies media bytes.
type MediaStore struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	downloadURLExpiry time.Duration
}

// NewMediaStore creates a new MediaStore with the given configuration
func NewMediaStore(ctx context.Context, cfg S3ClientConfig) (*MediaStore, error) {
	// Create custom resolver for S3-compatible endpoints
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	// Load AWS config
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	presignClient := s3.NewPresignClient(client)

	return &MediaStore{
		client:            client,
		presignClient:     presignClient,
		bucket:            cfg.Bucket,
		downloadURLExpiry: 1 * time.Hour,
	}, nil
}

// LookupImage finds an image object matching the topic and returns a
// presigned URL for it
func (s *MediaStore) LookupImage(ctx context.Context, topic string) (domain.Media, error) {
	return s.lookup(ctx, imagePrefix, topic)
}

// LookupVideo finds a video object matching the topic and returns a
// presigned URL for it
func (s *MediaStore) LookupVideo(ctx context.Context, topic string) (domain.Media, error) {
	return s.lookup(ctx, videoPrefix, topic)
}

func (s *MediaStore) lookup(ctx context.Context, prefix, topic string) (domain.Media, error) {
	key, err := s.findObject(ctx, prefix, topic)
	if err != nil {
		return domain.Media{}, err
	}

	url, err := s.generateDownloadURL(ctx, key)
	if err != nil {
		return domain.Media{}, err
	}

	return domain.Media{
		Content:  url,
		MimeType: mimeTypeForKey(key),
		Label:    topic,
	}, nil
}

// findObject scans objects under prefix for a file name containing every
// word of the topic. The first full match wins; a partial match on any
// single word is kept as fallback.
func (s *MediaStore) findObject(ctx context.Context, prefix, topic string) (string, error) {
	words := strings.Fields(strings.ToLower(topic))

	var fallback string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.ToLower(path.Base(key))
			if matchesAll(name, words) {
				return key, nil
			}
			if fallback == "" && matchesAny(name, words) {
				fallback = key
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}
	return "", domain.ErrMediaNotFound
}

// generateDownloadURL creates a presigned URL for downloading an object
func (s *MediaStore) generateDownloadURL(ctx context.Context, key string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	presignedReq, err := s.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.downloadURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	return presignedReq.URL, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MediaStore) EnsureBucket(ctx context.Context) error {
	// Check if bucket exists
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil // Bucket exists
	}

	// Create bucket
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func matchesAll(name string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(name, w) {
			return false
		}
	}
	return true
}

func matchesAny(name string, words []string) bool {
	for _, w := range words {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

func mimeTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
