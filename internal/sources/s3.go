// ABOUTME: S3 access for s3://bucket/key and s3://bucket/prefix/ corpus locators
// ABOUTME: Uses aws-sdk-go-v2 with static credentials when configured, the default chain otherwise
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/harper/actes-verif/internal/models"
)

// ObjectStore is the subset of the S3 API the fetcher uses; *s3.Client implements it
type ObjectStore interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds the region and optional static credentials
type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client from cfg
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// ParseS3Locator splits s3://bucket/key into its bucket and key
func ParseS3Locator(locator string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(locator, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 locator: %q", locator)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", locator)
	}
	return bucket, key, nil
}

func (f *Fetcher) objectStore(ctx context.Context) (ObjectStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		client, err := NewS3Client(ctx, f.s3cfg)
		if err != nil {
			return nil, err
		}
		f.objects = client
	}
	return f.objects, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, locator string) ([]models.Document, error) {
	bucket, key, err := ParseS3Locator(locator)
	if err != nil {
		return nil, models.NewExtractionError(locator, err)
	}
	store, err := f.objectStore(ctx)
	if err != nil {
		return nil, models.NewExtractionError(locator, err)
	}

	if key != "" && !strings.HasSuffix(key, "/") {
		doc, err := f.getObject(ctx, store, bucket, key)
		if err != nil {
			return nil, err
		}
		return []models.Document{doc}, nil
	}

	var docs []models.Document
	paginator := s3.NewListObjectsV2Paginator(store, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, models.NewExtractionError(locator, fmt.Errorf("failed to list objects: %w", err))
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if strings.HasSuffix(name, "/") {
				continue
			}
			if FormatOf(name, "") == FormatUnsupported {
				f.logger.Warn("skipping unsupported object", "bucket", bucket, "key", name)
				continue
			}
			doc, err := f.getObject(ctx, store, bucket, name)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, models.NewExtractionError(locator, errors.New("no supported documents found"))
	}
	return docs, nil
}

func (f *Fetcher) getObject(ctx context.Context, store ObjectStore, bucket, key string) (models.Document, error) {
	locator := "s3://" + bucket + "/" + key
	out, err := store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return models.Document{}, models.NewExtractionError(locator, fmt.Errorf("failed to download from S3: %w", err))
	}
	defer out.Body.Close()

	data, err := readLimited(out.Body)
	if err != nil {
		return models.Document{}, models.NewExtractionError(locator, err)
	}
	return f.decode(locator, data, aws.ToString(out.ContentType))
}
