package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config describes an S3-compatible bucket (AWS, Cloudflare R2, DO Spaces)
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is prepended to object keys to build the stored cover reference
	PublicURL string
	// KeyPrefix is prepended to generated names, e.g. "covers"
	KeyPrefix string
}

// S3 uploads covers as public-read objects
type S3 struct {
	client *s3.Client
	cfg    S3Config
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 upload: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3{client: client, cfg: cfg}, nil
}

func (s *S3) key(name string) string {
	if s.cfg.KeyPrefix == "" {
		return name
	}
	return path.Join(s.cfg.KeyPrefix, name)
}

func (s *S3) publicBase() string {
	if s.cfg.PublicURL != "" {
		return strings.TrimSuffix(s.cfg.PublicURL, "/")
	}
	return strings.TrimSuffix(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket
}

func (s *S3) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	// Buffered so the SDK can sign a seekable body; size is capped by the caller
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	key := s.key(name)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	put := func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.cfg.Bucket,
			Key:         &key,
			Body:        bytes.NewReader(content),
			ACL:         types.ObjectCannedACLPublicRead,
			ContentType: &contentType,
		})
		return err
	}

	err = put()
	if err != nil {
		var apiError smithy.APIError
		if !errors.As(err, &apiError) || apiError.ErrorCode() != "NoSuchBucket" {
			return "", fmt.Errorf("failed to upload %s: %w", key, err)
		}

		_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &s.cfg.Bucket})
		if err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", s.cfg.Bucket, err)
		}
		if err := put(); err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}

	return s.publicBase() + "/" + key, nil
}

func (s *S3) Owns(ref string) bool {
	return strings.HasPrefix(ref, s.publicBase()+"/")
}

func (s *S3) Remove(ctx context.Context, ref string) error {
	if !s.Owns(ref) {
		return fmt.Errorf("%q is not stored in bucket %s", ref, s.cfg.Bucket)
	}
	key := strings.TrimPrefix(ref, s.publicBase()+"/")
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
