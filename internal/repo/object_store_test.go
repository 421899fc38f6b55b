package repo

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	minio "github.com/minio/minio-go/v7"
)

type stubObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func (s *stubObjects) get(_ context.Context, bucket, object string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[bucket+"/"+object]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return append([]byte(nil), data...), nil
}

func (s *stubObjects) put(_ context.Context, bucket, object string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+object] = append([]byte(nil), payload...)
	return nil
}

func TestObjectStoreRoundTrip(t *testing.T) {
	stub := &stubObjects{objects: map[string][]byte{}}
	store := &ObjectStore{client: stub, bucket: "models", object: "isolation_forest.json"}

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if err := store.Save(context.Background(), []byte("payload")); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestObjectStoreSurfacesTransportErrors(t *testing.T) {
	stub := &stubObjects{objects: map[string][]byte{}, getErr: errors.New("connection refused")}
	store := &ObjectStore{client: stub, bucket: "models", object: "m.json"}

	_, err := store.Load(context.Background())
	if err == nil || errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected a transport error, got %v", err)
	}
}

func TestNewObjectStoreRequiresBucket(t *testing.T) {
	if _, err := NewObjectStore(ObjectStoreConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected missing bucket to fail")
	}
}
