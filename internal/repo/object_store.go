package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig configures the S3-compatible model mirror.
type ObjectStoreConfig struct {
	Endpoint        string
	Bucket          string
	Object          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Secure          bool
}

type objectAPI interface {
	get(ctx context.Context, bucket, object string) ([]byte, error)
	put(ctx context.Context, bucket, object string, payload []byte) error
}

type minioObjects struct {
	client *minio.Client
}

func (m minioObjects) get(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m minioObjects) put(ctx context.Context, bucket, object string, payload []byte) error {
	_, err := m.client.PutObject(ctx, bucket, object, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// ObjectStore keeps the model as a single object in an S3-compatible bucket.
type ObjectStore struct {
	client objectAPI
	bucket string
	object string
}

// NewObjectStore connects to the configured endpoint.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("object store endpoint and bucket are required")
	}
	if cfg.Object == "" {
		cfg.Object = "isolation_forest.json"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &ObjectStore{client: minioObjects{client: client}, bucket: cfg.Bucket, object: cfg.Object}, nil
}

// Name implements ModelStore.
func (s *ObjectStore) Name() string { return "s3" }

// Load implements ModelStore.
func (s *ObjectStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.get(ctx, s.bucket, s.object)
	if err != nil {
		return nil, mapObjectErr(err)
	}
	return data, nil
}

// Save implements ModelStore.
func (s *ObjectStore) Save(ctx context.Context, payload []byte) error {
	if err := s.client.put(ctx, s.bucket, s.object, payload); err != nil {
		return fmt.Errorf("put model object: %w", err)
	}
	return nil
}

func mapObjectErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}
	return fmt.Errorf("get model object: %w", err)
}
