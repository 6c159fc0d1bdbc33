// internal/results/s3.go
package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps one <prefix><model>.json object per model in a bucket. A single
// PutObject replaces the whole set, so readers never observe a partial write.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// S3Options configures NewS3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// NewS3Store builds a store from the default AWS credential chain. A custom endpoint
// (MinIO, LocalStack) switches the client to path-style addressing.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, opts.Bucket, opts.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(name string) string {
	return s.prefix + name
}

func (s *S3Store) Load(ctx context.Context, model string) (*ModelResults, error) {
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}
	key := s.key(model + ".json")
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return New(model), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	var set ModelResults
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode s3://%s/%s: %w", s.bucket, key, err)
	}
	return prepare(&set, model), nil
}

func (s *S3Store) Save(ctx context.Context, set *ModelResults) error {
	if err := ValidateModelName(set.ModelName); err != nil {
		return err
	}
	set.Updated = Timestamp()
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results for %s: %w", set.ModelName, err)
	}
	_, err = s.put(ctx, set.ModelName+".json", data, "application/json")
	return err
}

func (s *S3Store) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if strings.Contains(rel, "/") || path.Ext(rel) != ".json" {
				continue
			}
			name := strings.TrimSuffix(rel, ".json")
			if name == ReservedName || name == "" {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Store) WriteReport(ctx context.Context, name string, data []byte) (string, error) {
	contentType := "text/plain; charset=utf-8"
	switch path.Ext(name) {
	case ".md":
		contentType = "text/markdown; charset=utf-8"
	case ".html":
		contentType = "text/html; charset=utf-8"
	}
	return s.put(ctx, name, data, contentType)
}

func (s *S3Store) put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
