package repo

import (
	"context"
	"errors"
)

// ErrModelNotFound signals that a store holds no persisted model.
var ErrModelNotFound = errors.New("persisted model not found")

// ModelStore persists an encoded ensemble.
type ModelStore interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
}
