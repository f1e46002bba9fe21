// Package s3 adapts an S3 bucket into a zinc storage.Backend, binding a
// prefix under BindToCatalog rather than a new bucket per catalog.
package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/amrox/zinc/storage"
)

func init() {
	storage.Register("s3", ValidURL, func(u string) (storage.Backend, error) {
		return Open(context.Background(), u)
	})
}

// Scheme is the URL scheme this backend claims.
const Scheme = "s3"

// ValidURL reports whether u is an s3:// URL.
func ValidURL(u string) bool {
	return strings.HasPrefix(u, Scheme+"://")
}

// client is the subset of the S3 API this backend calls, so tests can
// substitute a fake.
type client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Backend stores objects as keys in a single S3 bucket, optionally scoped
// under a prefix.
type Backend struct {
	Client client
	Bucket string
	Prefix string
}

// Open parses an s3://bucket/prefix URL and constructs a Backend using the
// default AWS credential chain.
func Open(ctx context.Context, u string) (*Backend, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse storage url %s", u)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not load AWS config")
	}

	return &Backend{
		Client: s3.NewFromConfig(cfg),
		Bucket: parsed.Host,
		Prefix: strings.Trim(parsed.Path, "/"),
	}, nil
}

func (b *Backend) key(subpath string) string {
	if b.Prefix == "" {
		return subpath
	}
	return path.Join(b.Prefix, subpath)
}

// Get returns a reader for subpath, or nil if it does not exist.
func (b *Backend) Get(subpath string) (io.ReadCloser, error) {
	out, err := b.Client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &b.Bucket,
		Key:    strPtr(b.key(subpath)),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not get s3://%s/%s", b.Bucket, b.key(subpath))
	}
	return out.Body, nil
}

// GetMeta returns metadata for subpath, or nil if it does not exist.
func (b *Backend) GetMeta(subpath string) (*storage.Meta, error) {
	out, err := b.Client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: &b.Bucket,
		Key:    strPtr(b.key(subpath)),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not head s3://%s/%s", b.Bucket, b.key(subpath))
	}

	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &storage.Meta{Size: size}, nil
}

// Put uploads subpath's content, setting a Cache-Control max-age header
// when maxAge is nonzero.
func (b *Backend) Put(subpath string, r io.Reader, maxAge int) error {
	in := &s3.PutObjectInput{
		Bucket: &b.Bucket,
		Key:    strPtr(b.key(subpath)),
		Body:   r,
	}
	if maxAge > 0 {
		in.CacheControl = strPtr(fmt.Sprintf("max-age=%d", maxAge))
	}

	_, err := b.Client.PutObject(context.Background(), in)
	if err != nil {
		return errors.Wrapf(err, "could not put s3://%s/%s", b.Bucket, b.key(subpath))
	}
	return nil
}

// List returns every key under prefix, relative to this backend's Prefix
// (the Prefix itself is stripped), matching the other backends' subpaths.
func (b *Backend) List(prefix string) ([]string, error) {
	var subpaths []string
	var token *string

	for {
		out, err := b.Client.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{
			Bucket:            &b.Bucket,
			Prefix:            strPtr(b.key(prefix)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "could not list s3://%s/%s", b.Bucket, b.key(prefix))
		}

		for _, obj := range out.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			rel := *obj.Key
			if b.Prefix != "" {
				rel = strings.TrimPrefix(rel, b.Prefix+"/")
			}
			subpaths = append(subpaths, rel)
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	return subpaths, nil
}

// Delete removes subpath. Idempotent: S3 DeleteObject already is.
func (b *Backend) Delete(subpath string) error {
	_, err := b.Client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: &b.Bucket,
		Key:    strPtr(b.key(subpath)),
	})
	if err != nil {
		return errors.Wrapf(err, "could not delete s3://%s/%s", b.Bucket, b.key(subpath))
	}
	return nil
}

// BindToCatalog returns a Backend scoped to a prefix named id.
func (b *Backend) BindToCatalog(id string) storage.Backend {
	return &Backend{Client: b.Client, Bucket: b.Bucket, Prefix: b.key(id)}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return stderrors.As(err, &nsk) || stderrors.As(err, &nf)
}

func strPtr(s string) *string { return &s }
