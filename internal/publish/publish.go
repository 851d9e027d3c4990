package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/errors"
)

const (
	// ContentType is set on every uploaded object.
	ContentType = "application/json; charset=utf-8"

	// HashMetadata is the object metadata key carrying the artifact hash.
	HashMetadata = "statikapi-hash"

	// RouteMetadata is the object metadata key carrying the route.
	RouteMetadata = "statikapi-route"

	// DefaultConcurrency bounds parallel uploads.
	DefaultConcurrency = 8
)

// Uploader is the part of the S3 client Publish needs.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is one planned upload.
type Object struct {
	Key   string
	File  string
	Route string
	Bytes int
	Hash  string
}

// Options configures Publish.
type Options struct {
	Bucket string
	Prefix string

	// DryRun plans and verifies without uploading.
	DryRun bool

	// Concurrency defaults to DefaultConcurrency.
	Concurrency int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnObject is called after each object is uploaded (or planned, for a
	// dry run). It may be called from several goroutines.
	OnObject func(Object)
}

// Result summarizes a publish.
type Result struct {
	Objects  []Object
	Bytes    int64
	DryRun   bool
	Duration time.Duration
}

// Plan lists the uploads for the output tree at outDir: one per manifest
// entry in manifest order, then the manifest.
func Plan(outDir string, m *build.Manifest, prefix string) []Object {
	entries := m.Entries()
	objects := make([]Object, 0, len(entries)+1)
	for _, e := range entries {
		rel := build.OutPath(e.Route)
		objects = append(objects, Object{
			Key:   Key(prefix, rel),
			File:  filepath.Join(outDir, filepath.FromSlash(rel)),
			Route: e.Route,
			Bytes: e.Bytes,
			Hash:  e.Hash,
		})
	}
	objects = append(objects, Object{
		Key:  Key(prefix, build.ManifestPath),
		File: filepath.Join(outDir, filepath.FromSlash(build.ManifestPath)),
	})
	return objects
}

// Key joins prefix and rel into an object key.
func Key(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// Publish uploads the output tree at outDir. Artifacts go up concurrently;
// the manifest goes up only after all of them succeeded.
func Publish(ctx context.Context, client Uploader, outDir string, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Bucket == "" && !opts.DryRun {
		return nil, errors.New("E150").WithParam("publish.bucket").
			WithDetail("no bucket configured").
			WithSuggestion("Set publish.bucket in statikapi.json or pass --bucket")
	}

	m, err := build.ReadManifest(outDir)
	if err != nil {
		return nil, errors.New("E150").Wrap(err).
			WithSuggestion("Run `statikapi build` first")
	}

	objects := Plan(outDir, m, opts.Prefix)
	artifacts, manifest := objects[:len(objects)-1], objects[len(objects)-1]
	result := &Result{DryRun: opts.DryRun}

	var mu sync.Mutex
	record := func(o Object) {
		mu.Lock()
		result.Objects = append(result.Objects, o)
		result.Bytes += int64(o.Bytes)
		mu.Unlock()
		if opts.OnObject != nil {
			opts.OnObject(o)
		}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, o := range artifacts {
		o := o
		g.Go(func() error {
			data, err := read(o)
			if err != nil {
				return err
			}
			if !opts.DryRun {
				if err := put(gctx, client, opts.Bucket, o, data); err != nil {
					return err
				}
			}
			logger.Debug("published", "key", o.Key, "bytes", o.Bytes, "dryRun", opts.DryRun)
			record(o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	data, err := os.ReadFile(manifest.File)
	if err != nil {
		return result, errors.New("E150").WithFile(build.ManifestPath).Wrap(err)
	}
	manifest.Bytes = len(data)
	manifest.Hash = digest(data)
	if !opts.DryRun {
		if err := put(ctx, client, opts.Bucket, manifest, data); err != nil {
			return result, err
		}
	}
	record(manifest)

	result.Duration = time.Since(start)
	return result, nil
}

// read loads an artifact and checks it against its manifest hash.
func read(o Object) ([]byte, error) {
	data, err := os.ReadFile(o.File)
	if err != nil {
		return nil, errors.New("E150").WithFile(o.Key).Wrap(err)
	}
	if o.Hash != "" && digest(data) != o.Hash {
		return nil, errors.New("E150").WithFile(o.Key).
			WithDetailf("%s changed since the manifest was written", o.Route).
			WithSuggestion("Run `statikapi build` again before publishing")
	}
	return data, nil
}

func put(ctx context.Context, client Uploader, bucket string, o Object, data []byte) error {
	meta := map[string]string{HashMetadata: o.Hash}
	if o.Route != "" {
		meta[RouteMetadata] = o.Route
	}
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(o.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
		CacheControl:  aws.String("no-cache"),
		Metadata:      meta,
	})
	if err != nil {
		return errors.New("E150").WithFile(o.Key).Wrap(err)
	}
	return nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
