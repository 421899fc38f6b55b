package repo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/miradorstack/anomaly-engine/internal/engine"
)

// SchemaVersion identifies the on-disk envelope layout.
const SchemaVersion = 1

type envelope struct {
	Schema   int             `json:"schema"`
	Checksum string          `json:"checksum"`
	Model    json.RawMessage `json:"model"`
}

// EncodeEnsemble serialises an ensemble inside a checksummed envelope.
func EncodeEnsemble(ens *engine.Ensemble) ([]byte, error) {
	if err := ens.Validate(); err != nil {
		return nil, fmt.Errorf("encode ensemble: %w", err)
	}
	model, err := json.Marshal(ens)
	if err != nil {
		return nil, fmt.Errorf("encode ensemble: %w", err)
	}
	sum := sha256.Sum256(model)
	return json.Marshal(envelope{
		Schema:   SchemaVersion,
		Checksum: hex.EncodeToString(sum[:]),
		Model:    model,
	})
}

// DecodeEnsemble reverses EncodeEnsemble, rejecting unknown schemas, checksum
// mismatches and structurally invalid trees.
func DecodeEnsemble(payload []byte) (*engine.Ensemble, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Schema != SchemaVersion {
		return nil, fmt.Errorf("unsupported model schema %d", env.Schema)
	}
	sum := sha256.Sum256(env.Model)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, fmt.Errorf("model checksum mismatch")
	}

	var ens engine.Ensemble
	if err := json.Unmarshal(env.Model, &ens); err != nil {
		return nil, fmt.Errorf("decode ensemble: %w", err)
	}
	if err := ens.Validate(); err != nil {
		return nil, fmt.Errorf("decode ensemble: %w", err)
	}
	return &ens, nil
}
