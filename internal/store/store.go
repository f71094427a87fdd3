// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package store persists recommendation sets in BadgerDB.
//
// Each training run publishes two records under its model id: the full
// recommendation set and the pre-filtered email-only view. Both are written
// in one transaction, so a reader addressing a model id sees either nothing
// or both views complete.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/dmarceau/rewardly/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	setKeyPrefix      = "recset:"
	setEmailKeyPrefix = "recset_email:"
)

// ErrSetNotFound is returned when no recommendation set exists for a model id.
var ErrSetNotFound = errors.New("recommendation set not found")

// RecommendationStore implements durable storage of recommendation sets.
type RecommendationStore struct {
	db *badger.DB
}

// NewRecommendationStore wraps an open BadgerDB handle.
func NewRecommendationStore(db *badger.DB) *RecommendationStore {
	return &RecommendationStore{db: db}
}

// Open opens (or creates) a BadgerDB instance at path. An empty path opens
// an in-memory database, used by tests and ephemeral deployments.
func Open(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// SaveSet stores the full set and its email-only view atomically. Saving the
// same model id twice replaces both views.
func (s *RecommendationStore) SaveSet(ctx context.Context, set *models.RecommendationSet) error {
	if set == nil || set.ModelID == "" {
		return errors.New("recommendation set requires a model id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal recommendation set: %w", err)
	}

	emailView := &models.RecommendationSet{
		ModelID:     set.ModelID,
		GeneratedAt: set.GeneratedAt,
		Entries:     make(map[string]models.RecommendationEntry),
	}
	for id, entry := range set.Entries {
		if entry.HasEmail() {
			emailView.Entries[id] = entry
		}
	}
	filtered, err := json.Marshal(emailView)
	if err != nil {
		return fmt.Errorf("marshal email view: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(setKeyPrefix+set.ModelID), full); err != nil {
			return fmt.Errorf("set recommendation set: %w", err)
		}
		if err := txn.Set([]byte(setEmailKeyPrefix+set.ModelID), filtered); err != nil {
			return fmt.Errorf("set email view: %w", err)
		}
		return nil
	})
}

// GetSet retrieves the full recommendation set for a model id.
func (s *RecommendationStore) GetSet(ctx context.Context, modelID string) (*models.RecommendationSet, error) {
	return s.getByKey(ctx, setKeyPrefix+modelID, modelID)
}

// GetEmailSet retrieves the email-only view for a model id.
func (s *RecommendationStore) GetEmailSet(ctx context.Context, modelID string) (*models.RecommendationSet, error) {
	return s.getByKey(ctx, setEmailKeyPrefix+modelID, modelID)
}

func (s *RecommendationStore) getByKey(ctx context.Context, key, modelID string) (*models.RecommendationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var set models.RecommendationSet
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSetNotFound, modelID)
		}
		if err != nil {
			return fmt.Errorf("get recommendation set: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &set)
		})
	})
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// DeleteSet removes both views for a model id. Deleting a missing set is
// not an error.
func (s *RecommendationStore) DeleteSet(ctx context.Context, modelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(setKeyPrefix + modelID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete recommendation set: %w", err)
		}
		if err := txn.Delete([]byte(setEmailKeyPrefix + modelID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete email view: %w", err)
		}
		return nil
	})
}

// ListModelIDs returns the model ids of all stored sets.
func (s *RecommendationStore) ListModelIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(setKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list recommendation sets: %w", err)
	}
	return ids, nil
}
