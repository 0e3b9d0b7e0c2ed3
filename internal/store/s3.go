package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pt-planner/pkg"
)

// S3Config locates the snapshot object.  Key defaults to patients.json and
// Region to us-east-1.
type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string
	// AccessKey and SecretKey are optional; the default AWS credential
	// chain is used when they are empty.
	AccessKey string
	SecretKey string
}

// S3Snapshotter keeps the mapping as a single JSON object in a bucket.  Any
// S3 compatible service works when Endpoint is set.
type S3Snapshotter struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Snapshotter loads the AWS configuration and builds the client.
// Setting Endpoint switches to path-style addressing.
func NewS3Snapshotter(ctx context.Context, cfg S3Config) (*S3Snapshotter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = "patients.json"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Snapshotter{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Load fetches and decodes the object.  A missing key is ErrNoSnapshot.
func (s *S3Snapshotter) Load(ctx context.Context) (map[string]*pkg.Patient, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return decodeSnapshot(b)
}

// Save overwrites the object with the whole mapping.
func (s *S3Snapshotter) Save(ctx context.Context, patients map[string]*pkg.Patient) error {
	b, err := encodeSnapshot(patients)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
