// Package s3 implements a storage.Bucket on Amazon S3 or an S3-compatible store.
//
// Key layout (prefix is optional, e.g. "files/"):
//
//	<prefix><token>          empty marker object; its LastModified is the creation time
//	<prefix><token>/<name>   entries
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/model"
	"github.com/and161185/cloudbox/internal/storage"
)

// maxDeleteBatch is the S3 DeleteObjects limit.
const maxDeleteBatch = 1000

// Client is the subset of *s3.Client used by Bucket.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// ClientConfig describes how to reach the object store.
type ClientConfig struct {
	Region       string
	Endpoint     string // custom endpoint for MinIO and friends
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewClient builds an *s3.Client from the default AWS chain plus overrides.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Bucket stores namespaces under a key prefix of one S3 bucket.
type Bucket struct {
	client Client
	bucket string
	prefix string
}

var _ storage.Bucket = (*Bucket)(nil)

// New returns a bucket over client. prefix separates independent roots
// (identity namespaces vs. shares) inside the same S3 bucket.
func New(client Client, bucket, prefix string) (*Bucket, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Bucket{client: client, bucket: bucket, prefix: prefix}, nil
}

func (b *Bucket) markerKey(ns string) string { return b.prefix + ns }

func (b *Bucket) entryPrefix(ns string) string { return b.prefix + ns + "/" }

// Exists checks for the namespace marker object.
func (b *Bucket) Exists(ctx context.Context, ns string) (bool, error) {
	if storage.CheckSegment(ns) != nil {
		return false, nil
	}
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.markerKey(ns)),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head %s: %w", ns, err)
	}
	return true, nil
}

// Create writes the marker unless it exists; the original creation time is kept.
func (b *Bucket) Create(ctx context.Context, ns string) error {
	err := b.CreateExclusive(ctx, ns)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return nil
	}
	return err
}

// CreateExclusive writes the marker with If-None-Match: *.
func (b *Bucket) CreateExclusive(ctx context.Context, ns string) error {
	if err := storage.CheckSegment(ns); err != nil {
		return err
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.markerKey(ns)),
		Body:        bytes.NewReader(nil),
		IfNoneMatch: aws.String("*"),
	})
	if isConditionFailed(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", ns, err)
	}
	return nil
}

// List returns entry names below the namespace prefix.
func (b *Bucket) List(ctx context.Context, ns string) ([]string, error) {
	if ok, err := b.Exists(ctx, ns); err != nil {
		return nil, err
	} else if !ok {
		return nil, errs.ErrNamespaceNotFound
	}
	keys, err := b.keys(ctx, b.entryPrefix(ns))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, b.entryPrefix(ns))
		if name != "" && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Put uploads an entry in a single PutObject, which S3 applies atomically.
func (b *Bucket) Put(ctx context.Context, ns, name string, data []byte) error {
	if err := storage.CheckSegment(name); err != nil {
		return err
	}
	if ok, err := b.Exists(ctx, ns); err != nil {
		return err
	} else if !ok {
		return errs.ErrNamespaceNotFound
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.entryPrefix(ns) + name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", ns, name, err)
	}
	return nil
}

// Get downloads an entry.
func (b *Bucket) Get(ctx context.Context, ns, name string) ([]byte, error) {
	if err := storage.CheckSegment(name); err != nil {
		return nil, err
	}
	if storage.CheckSegment(ns) != nil {
		return nil, errs.ErrNamespaceNotFound
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.entryPrefix(ns) + name),
	})
	if isNotFound(err) {
		if ok, _ := b.Exists(ctx, ns); !ok {
			return nil, errs.ErrNamespaceNotFound
		}
		return nil, errs.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", ns, name, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", ns, name, err)
	}
	return data, nil
}

// Namespaces lists marker objects directly under the prefix.
func (b *Bucket) Namespaces(ctx context.Context) ([]model.NamespaceInfo, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(b.prefix),
		Delimiter: aws.String("/"),
	})
	var out []model.NamespaceInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list namespaces: %w", err)
		}
		for _, obj := range page.Contents {
			tok := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if tok == "" || strings.Contains(tok, "/") {
				continue
			}
			out = append(out, model.NamespaceInfo{Token: tok, CreatedAt: aws.ToTime(obj.LastModified)})
		}
	}
	return out, nil
}

// Remove deletes entries first and the marker last.
func (b *Bucket) Remove(ctx context.Context, ns string) error {
	if err := storage.CheckSegment(ns); err != nil {
		return err
	}
	keys, err := b.keys(ctx, b.entryPrefix(ns))
	if err != nil {
		return err
	}
	keys = append(keys, b.markerKey(ns))
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("remove %s: %w", ns, err)
		}
	}
	return nil
}

func (b *Bucket) keys(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
