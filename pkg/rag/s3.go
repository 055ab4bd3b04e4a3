package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client abstracts the S3 API operations used by [S3Source].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Source yields the text objects under a bucket prefix. Works against
// Amazon S3 or any S3-compatible store (MinIO, R2, etc.).
//
// The caller is responsible for configuring the [s3.Client] with appropriate
// credentials, region, and endpoint.
type S3Source struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Source creates an S3-backed corpus source. Prefix limits the walk to
// keys under it; pass "" for the whole bucket.
func NewS3Source(client S3Client, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Walk implements Source, paging through ListObjectsV2 and fetching each
// text object.
func (s *S3Source) Walk(ctx context.Context, fn func(File) error) error {
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("rag: list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !isTextFile(key) {
				continue
			}
			data, err := s.fetch(ctx, key)
			if err != nil {
				return err
			}
			name := strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
			if err := fn(File{Name: name, Data: data}); err != nil {
				return err
			}
		}

		if out.NextContinuationToken == nil {
			return nil
		}
		token = out.NextContinuationToken
	}
}

func (s *S3Source) fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("rag: fetch %s: %w", key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("rag: fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("rag: fetch %s: %w", key, err)
	}
	return data, nil
}

// isS3NotFound reports whether err indicates the S3 object does not exist.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// Compile-time interface checks.
var (
	_ Source = (*DirSource)(nil)
	_ Source = (*S3Source)(nil)
)
