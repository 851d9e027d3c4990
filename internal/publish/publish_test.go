package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/module"
)

type stored struct {
	bucket, contentType string
	body                string
	meta                map[string]string
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]stored
	order   []string
	fail    string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string]stored)}
}

func (f *fakeUploader) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.fail {
		return nil, fmt.Errorf("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = stored{
		bucket:      aws.ToString(in.Bucket),
		contentType: aws.ToString(in.ContentType),
		body:        string(body),
		meta:        in.Metadata,
	}
	f.order = append(f.order, key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeUploader) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// built returns the output dir of a freshly built three-route project.
func built(t *testing.T) string {
	t.Helper()
	cfg := config.New()
	cfg.SetRoot(t.TempDir())
	host := module.NewNativeHost(cfg.SrcPath())
	for rel, def := range map[string]module.Definition{
		"index.js": {Default: map[string]any{"ok": true}},
		"users/[id].js": {
			Paths: func(context.Context) (any, error) { return []any{"1", "2"}, nil },
			Data: func(_ context.Context, args module.Args) (any, error) {
				return map[string]any{"id": args.Params["id"]}, nil
			},
		},
	} {
		file := filepath.Join(cfg.SrcPath(), filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
		require.NoError(t, os.WriteFile(file, []byte("//"), 0644))
		host.Register(rel, def)
	}
	result, err := build.New(cfg, host, build.Options{}).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.Err())
	return cfg.OutPath()
}

func TestKey(t *testing.T) {
	assert.Equal(t, "index.json", Key("", "index.json"))
	assert.Equal(t, "v1/users/1/index.json", Key("/v1/", "users/1/index.json"))
	assert.Equal(t, "a/b/index.json", Key("a/b", "index.json"))
}

func TestPlan(t *testing.T) {
	out := built(t)
	m, err := build.ReadManifest(out)
	require.NoError(t, err)

	objects := Plan(out, m, "v1")
	require.Len(t, objects, 4)
	assert.Equal(t, "v1/index.json", objects[0].Key)
	assert.Equal(t, "/", objects[0].Route)
	assert.Equal(t, "v1/users/1/index.json", objects[1].Key)
	assert.Equal(t, "v1/users/2/index.json", objects[2].Key)
	assert.Equal(t, "v1/.statikapi/manifest.json", objects[3].Key)
	assert.Empty(t, objects[3].Route)
	assert.FileExists(t, objects[1].File)
}

func TestPublish(t *testing.T) {
	out := built(t)
	up := newFakeUploader()

	var seen []string
	var mu sync.Mutex
	result, err := Publish(context.Background(), up, out, Options{
		Bucket:      "api",
		Prefix:      "v1",
		Concurrency: 2,
		OnObject: func(o Object) {
			mu.Lock()
			seen = append(seen, o.Key)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	assert.Len(t, result.Objects, 4)
	assert.Len(t, seen, 4)
	assert.Positive(t, result.Bytes)

	assert.Equal(t, []string{
		"v1/.statikapi/manifest.json",
		"v1/index.json",
		"v1/users/1/index.json",
		"v1/users/2/index.json",
	}, up.keys())
	assert.Equal(t, "v1/.statikapi/manifest.json", up.order[len(up.order)-1], "manifest goes last")

	obj := up.objects["v1/users/2/index.json"]
	assert.Equal(t, "api", obj.bucket)
	assert.Equal(t, ContentType, obj.contentType)
	assert.JSONEq(t, `{"id":"2"}`, obj.body)
	assert.Equal(t, "/users/2", obj.meta[RouteMetadata])
	assert.Len(t, obj.meta[HashMetadata], 64)
}

func TestPublish_DryRun(t *testing.T) {
	out := built(t)
	up := newFakeUploader()

	result, err := Publish(context.Background(), up, out, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Len(t, result.Objects, 4)
	assert.Empty(t, up.keys())
}

func TestPublish_MissingManifest(t *testing.T) {
	_, err := Publish(context.Background(), newFakeUploader(), t.TempDir(), Options{Bucket: "api"})
	require.Error(t, err)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "E150", e.Code)
	assert.Contains(t, e.Suggestion, "statikapi build")
}

func TestPublish_NoBucket(t *testing.T) {
	out := built(t)
	_, err := Publish(context.Background(), newFakeUploader(), out, Options{})
	require.Error(t, err)
}

func TestPublish_StaleArtifact(t *testing.T) {
	out := built(t)
	require.NoError(t, os.WriteFile(filepath.Join(out, "users", "1", "index.json"), []byte(`{"id":"x"}`), 0644))

	up := newFakeUploader()
	_, err := Publish(context.Background(), up, out, Options{Bucket: "api"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E150")
	assert.NotContains(t, up.keys(), ".statikapi/manifest.json")
}

func TestPublish_UploadFailure(t *testing.T) {
	out := built(t)
	up := newFakeUploader()
	up.fail = "users/2/index.json"

	_, err := Publish(context.Background(), up, out, Options{Bucket: "api", Concurrency: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.NotContains(t, up.keys(), ".statikapi/manifest.json")
}

func TestNewClient(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	c := NewClient(config.PublishConfig{Endpoint: "http://localhost:9000", PathStyle: true}, nil)
	assert.Equal(t, DefaultRegion, c.Options().Region)
	assert.True(t, c.Options().UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(c.Options().BaseEndpoint))

	c = NewClient(config.PublishConfig{}, map[string]string{"AWS_REGION": "eu-west-1"})
	assert.Equal(t, "eu-west-1", c.Options().Region)

	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	_, err := c.Options().Credentials.Retrieve(context.Background())
	require.Error(t, err)

	c = NewClient(config.PublishConfig{Region: "us-west-2"}, map[string]string{
		"AWS_ACCESS_KEY_ID":     "id",
		"AWS_SECRET_ACCESS_KEY": "secret",
	})
	creds, err := c.Options().Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
	assert.Equal(t, "us-west-2", c.Options().Region)
}
