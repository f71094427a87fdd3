// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package storage persists trained model artifacts.
//
// Artifacts are gob-encoded, gzip-compressed, and written atomically via a
// temp file and rename, so a crashed write never leaves a readable partial
// artifact. Each artifact carries metadata with a SHA-256 checksum of the
// raw model bytes, verified on load.
//
// Artifacts are keyed by model id. An id is written once and never
// overwritten in place; retraining produces a new id.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmarceau/rewardly/internal/recommend"
)

// ErrArtifactNotFound is returned when no artifact exists for a model id.
var ErrArtifactNotFound = errors.New("model artifact not found")

const artifactExt = ".gob.gz"

// ArtifactMetadata describes a stored model artifact.
type ArtifactMetadata struct {
	// ModelID is the run identifier the artifact belongs to.
	ModelID string `json:"model_id"`

	// TrainedAt is when training finished.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the artifact was written.
	SavedAt time.Time `json:"saved_at"`

	// Interactions, Users, and Items describe the training input.
	Interactions int `json:"interactions"`
	Users        int `json:"users"`
	Items        int `json:"items"`

	// Factors and Epochs are the hyperparameters used.
	Factors int `json:"factors"`
	Epochs  int `json:"epochs"`

	// Checksum is the SHA-256 of the uncompressed model bytes.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed artifact payload size.
	SizeBytes int64 `json:"size_bytes"`

	// TrainingDurationMS is how long training took.
	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// storedArtifact is the on-disk format.
type storedArtifact struct {
	Metadata       ArtifactMetadata
	CompressedData []byte
}

// Store manages model artifacts in a single directory. All operations are
// safe for concurrent use.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates an artifact store rooted at baseDir, creating the
// directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// SaveModel serializes and stores the model under the given id. The write is
// atomic: readers see either the complete artifact or none.
func (s *Store) SaveModel(modelID string, m recommend.Model, info recommend.ArtifactInfo) error {
	path, err := s.artifactPath(modelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(&m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	sa := storedArtifact{
		Metadata: ArtifactMetadata{
			ModelID:            modelID,
			TrainedAt:          info.TrainedAt,
			SavedAt:            time.Now().UTC(),
			Interactions:       info.Interactions,
			Users:              info.Users,
			Items:              info.Items,
			Factors:            info.Factors,
			Epochs:             info.Epochs,
			Checksum:           hex.EncodeToString(hash[:]),
			SizeBytes:          int64(compressed.Len()),
			TrainingDurationMS: info.TrainingDuration.Milliseconds(),
		},
		CompressedData: compressed.Bytes(),
	}

	tmp, err := os.CreateTemp(s.baseDir, "artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(sa); err != nil {
		_ = tmp.Close()      //nolint:errcheck // cleanup path
		_ = os.Remove(tmpName) //nolint:errcheck // cleanup path
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // cleanup path
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // cleanup path
		return fmt.Errorf("publish artifact: %w", err)
	}

	return nil
}

// LoadModel reads and verifies the artifact for a model id.
func (s *Store) LoadModel(modelID string) (recommend.Model, *ArtifactMetadata, error) {
	path, err := s.artifactPath(modelID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(path) //nolint:gosec // path is validated by artifactPath
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, modelID)
		}
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sa storedArtifact
	if err := gob.NewDecoder(f).Decode(&sa); err != nil {
		return nil, nil, fmt.Errorf("read artifact: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sa.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress artifact: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed artifact: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sa.Metadata.Checksum {
		return nil, nil, fmt.Errorf("artifact checksum mismatch for %s: expected %s, got %s",
			modelID, sa.Metadata.Checksum, checksum)
	}

	var m recommend.Model
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("decode model: %w", err)
	}

	return m, &sa.Metadata, nil
}

// DeleteModel removes the artifact for a model id. Deleting a missing
// artifact returns ErrArtifactNotFound.
func (s *Store) DeleteModel(modelID string) error {
	path, err := s.artifactPath(modelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, modelID)
		}
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// ListModels returns metadata for every stored artifact.
func (s *Store) ListModels() ([]ArtifactMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	var metas []ArtifactMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}
		f, err := os.Open(filepath.Join(s.baseDir, entry.Name())) //nolint:gosec // names come from ReadDir
		if err != nil {
			continue
		}
		var sa storedArtifact
		err = gob.NewDecoder(f).Decode(&sa)
		_ = f.Close() //nolint:errcheck // error on close after read is not actionable
		if err != nil {
			continue
		}
		metas = append(metas, sa.Metadata)
	}
	return metas, nil
}

// artifactPath validates the model id and maps it to a file path. Ids are
// caller-generated UUIDs; anything that could escape the base directory is
// rejected outright.
func (s *Store) artifactPath(modelID string) (string, error) {
	if modelID == "" || strings.ContainsAny(modelID, `/\`) || strings.Contains(modelID, "..") {
		return "", fmt.Errorf("invalid model id %q", modelID)
	}
	return filepath.Join(s.baseDir, modelID+artifactExt), nil
}

// Register concrete model types so gob can round-trip the Model interface.
//
//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(&recommend.FactorModel{})
}

var _ recommend.ArtifactStore = (*Store)(nil)
