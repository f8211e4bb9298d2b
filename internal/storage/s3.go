package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"automax/internal/config"
)

const defaultS3Region = "us-east-1"

type S3 struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

func NewS3(cfg config.StorageConfig) *S3 {
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	opts := s3.Options{Region: region}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		)
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if cfg.EndpointURL != "" {
		opts.BaseEndpoint = aws.String(cfg.EndpointURL)
		opts.UsePathStyle = true
	}

	return &S3{
		client:   s3.New(opts),
		bucket:   cfg.BucketName,
		region:   region,
		endpoint: strings.TrimSuffix(cfg.EndpointURL, "/"),
	}
}

func (s *S3) Name() string { return "s3" }

// Save expects r to be seekable (multipart files are) so the payload can be
// signed. The put is conditional on the key being absent.
func (s *S3) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        r,
		IfNoneMatch: aws.String("*"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isS3PreconditionFailed(err) {
			return fmt.Errorf("[s3.Save] %w: %s", ErrExists, name)
		}
		return fmt.Errorf("[s3.Save] failed to put %s: %w", name, err)
	}
	return nil
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("[s3.Open] failed to get %s: %w", name, err)
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("[s3.Delete] failed to delete %s: %w", name, err)
	}
	return nil
}

func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("[s3.Exists] failed to head %s: %w", name, err)
}

func (s *S3) URL(name string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escapePath(name))
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escapePath(name))
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

func isS3PreconditionFailed(err error) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusPreconditionFailed
}
