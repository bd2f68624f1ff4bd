// Package artifact encodes run outputs (prediction and summary CSVs, model
// checkpoints, plots, the run manifest) and stores them locally and,
// optionally, in an S3-compatible bucket.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
)

// Kind groups artifacts by destination directory.
type Kind string

const (
	KindResult Kind = "results"
	KindModel  Kind = "models"
	KindPlot   Kind = "plots"
)

// Sink stores one named artifact.
type Sink interface {
	Put(ctx context.Context, kind Kind, name string, data []byte) error
}

// LocalSink writes artifacts below one directory per Kind.
type LocalSink struct {
	dirs map[Kind]string
}

// NewLocalSink maps each Kind to a directory; directories are created on
// first write.
func NewLocalSink(resultsDir, modelsDir, plotsDir string) *LocalSink {
	return &LocalSink{dirs: map[Kind]string{
		KindResult: resultsDir,
		KindModel:  modelsDir,
		KindPlot:   plotsDir,
	}}
}

// Path returns where name of kind is written.
func (s *LocalSink) Path(kind Kind, name string) string {
	return filepath.Join(s.dirs[kind], name)
}

func (s *LocalSink) Put(_ context.Context, kind Kind, name string, data []byte) error {
	dir, ok := s.dirs[kind]
	if !ok {
		return fmt.Errorf("no directory for %s artifacts", kind)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// MinIOSink mirrors artifacts to an S3-compatible bucket under
// prefix/kind/name.
type MinIOSink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOSink connects to the configured endpoint and creates the bucket
// if it does not exist.
func NewMinIOSink(ctx context.Context, cfg config.Storage) (*MinIOSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key of an artifact.
func (s *MinIOSink) Key(kind Kind, name string) string {
	return path.Join(s.prefix, string(kind), name)
}

func (s *MinIOSink) Put(ctx context.Context, kind Kind, name string, data []byte) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		s.Key(kind, name),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType(name),
		},
	)
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// MultiSink writes to every sink, continuing past failures.
type MultiSink []Sink

func (m MultiSink) Put(ctx context.Context, kind Kind, name string, data []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Put(ctx, kind, name, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}

// NewSink returns the local sink for cfg's output directories, mirrored to
// MinIO when storage is enabled.
func NewSink(ctx context.Context, cfg config.Config) (Sink, error) {
	local := NewLocalSink(cfg.ResultsDir, cfg.ModelsDir, cfg.PlotsDir)
	if !cfg.Storage.Enabled {
		return local, nil
	}
	remote, err := NewMinIOSink(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return MultiSink{local, remote}, nil
}
