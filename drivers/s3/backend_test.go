package s3_test

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/amrox/zinc/drivers/s3"
)

type fakeClient struct {
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	size := int64(len(b))
	return &awss3.HeadObjectOutput{ContentLength: &size}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = b
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	var contents []types.Object
	for k := range f.objects {
		key := k
		contents = append(contents, types.Object{Key: &key})
	}
	return &awss3.ListObjectsV2Output{Contents: contents}, nil
}

func TestBackendPutGetDelete(t *testing.T) {
	fc := newFakeClient()
	b := &s3.Backend{Client: fc, Bucket: "zinc-test"}

	if err := b.Put("objects/ab/cd/sha1", bytes.NewReader([]byte("hello")), 0); err != nil {
		t.Fatalf("put failed: %s", err)
	}

	r, err := b.Get("objects/ab/cd/sha1")
	if err != nil || r == nil {
		t.Fatalf("get failed: %s", err)
	}
	content, _ := io.ReadAll(r)
	if string(content) != "hello" {
		t.Errorf("got %q, want %q", content, "hello")
	}

	meta, err := b.GetMeta("objects/ab/cd/sha1")
	if err != nil || meta == nil || meta.Size != 5 {
		t.Errorf("unexpected meta: %+v, %s", meta, err)
	}

	if err := b.Delete("objects/ab/cd/sha1"); err != nil {
		t.Fatalf("delete failed: %s", err)
	}
	r, err = b.Get("objects/ab/cd/sha1")
	if err != nil || r != nil {
		t.Errorf("expected nil after delete, got %v, %s", r, err)
	}
}

func TestBackendBindToCatalog(t *testing.T) {
	fc := newFakeClient()
	b := &s3.Backend{Client: fc, Bucket: "zinc-test"}
	bound := b.BindToCatalog("mycatalog")

	if err := bound.Put("index.json", bytes.NewReader([]byte("{}")), 0); err != nil {
		t.Fatalf("put failed: %s", err)
	}
	if _, ok := fc.objects["mycatalog/index.json"]; !ok {
		t.Errorf("expected key prefixed with catalog id")
	}
}
