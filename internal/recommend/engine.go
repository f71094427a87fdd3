// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmarceau/rewardly/internal/models"
	"github.com/dmarceau/rewardly/internal/reward"
)

// Config holds the engine's training and selection parameters.
type Config struct {
	// Factors, Epochs, LearningRate, Regularization feed FitOptions.
	Factors        int
	Epochs         int
	LearningRate   float64
	Regularization float64

	// MaxUsers bounds how many users receive recommendations per run
	// (0 = all users).
	MaxUsers int

	// DefaultRewards is the reward count used when a run does not
	// request one.
	DefaultRewards int

	// ExcludeSeen drops already-interacted items before selection.
	ExcludeSeen bool
}

// DefaultConfig matches the reference behavior.
func DefaultConfig() Config {
	return Config{
		Factors:        30,
		Epochs:         10,
		LearningRate:   0.05,
		Regularization: 0.01,
		MaxUsers:       10,
		DefaultRewards: 3,
		ExcludeSeen:    false,
	}
}

// SetStore persists recommendation sets. Writes must be atomic: a reader
// addressing the model id must see either nothing or the complete set.
type SetStore interface {
	SaveSet(ctx context.Context, set *models.RecommendationSet) error
}

// ArtifactInfo describes a trained model artifact.
type ArtifactInfo struct {
	TrainedAt        time.Time
	TrainingDuration time.Duration
	Interactions     int
	Users            int
	Items            int
	Factors          int
	Epochs           int
}

// ArtifactStore persists trained model parameters keyed by model id.
type ArtifactStore interface {
	SaveModel(modelID string, m Model, info ArtifactInfo) error
	DeleteModel(modelID string) error
}

// Engine runs the full pipeline for one dataset snapshot. It holds no
// per-run state: every run owns its vocabulary, matrices, model, and
// code issuer, so concurrent runs cannot share or corrupt anything.
type Engine struct {
	cfg       Config
	trainer   Trainer
	artifacts ArtifactStore
	sets      SetStore
	logger    zerolog.Logger
}

// NewEngine wires the engine's collaborators.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, trainer Trainer, artifacts ArtifactStore, sets SetStore, logger zerolog.Logger) *Engine {
	if cfg.DefaultRewards <= 0 {
		cfg.DefaultRewards = DefaultConfig().DefaultRewards
	}
	return &Engine{
		cfg:       cfg,
		trainer:   trainer,
		artifacts: artifacts,
		sets:      sets,
		logger:    logger.With().Str("component", "engine").Logger(),
	}
}

// RunParams describes one training run.
type RunParams struct {
	// Snapshot is the immutable dataset to train on.
	Snapshot *models.DatasetSnapshot

	// NumRewards is the requested reward count per user; <= 0 uses the
	// engine default.
	NumRewards int

	// ModelID pre-allocates the run identifier (used by async submission
	// so callers learn the id before training starts). Empty generates a
	// fresh one.
	ModelID string
}

// Run executes one training run end to end and persists the result. On any
// error nothing is left behind: the model artifact and the recommendation
// set publish all-or-nothing.
func (e *Engine) Run(ctx context.Context, p RunParams) (*models.RecommendationSet, error) {
	if p.Snapshot == nil {
		return nil, fmt.Errorf("%w: no dataset snapshot", ErrNoInteractions)
	}
	modelID := p.ModelID
	if modelID == "" {
		modelID = uuid.NewString()
	}
	numRewards := p.NumRewards
	if numRewards <= 0 {
		numRewards = e.cfg.DefaultRewards
	}

	logger := e.logger.With().Str("model_id", modelID).Logger()
	start := time.Now()

	vocab := BuildVocabulary(p.Snapshot)
	enc, err := Encode(p.Snapshot, vocab)
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	if len(enc.Cells) == 0 {
		return nil, fmt.Errorf("%w: %d interactions supplied, none encodable", ErrNoInteractions, len(p.Snapshot.Interactions))
	}
	if enc.OrphanCount > 0 {
		logger.Warn().Int("orphans", enc.OrphanCount).Msg("skipped interactions referencing unknown customers")
	}

	logger.Info().
		Int("users", enc.NumUsers).
		Int("items", enc.NumItems).
		Int("cells", len(enc.Cells)).
		Msg("training model")

	model, err := e.trainer.Fit(ctx, enc, FitOptions{
		Factors:        e.cfg.Factors,
		Epochs:         e.cfg.Epochs,
		LearningRate:   e.cfg.LearningRate,
		Regularization: e.cfg.Regularization,
	})
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	ranked := RankAll(model, enc, RankOptions{
		TopN:        numRewards,
		MaxUsers:    e.cfg.MaxUsers,
		ExcludeSeen: e.cfg.ExcludeSeen,
	})

	set, err := e.assembleRewards(p.Snapshot, vocab, ranked, modelID)
	if err != nil {
		return nil, err
	}

	if err := e.persist(ctx, modelID, model, enc, set, time.Since(start)); err != nil {
		return nil, err
	}

	logger.Info().
		Int("entries", len(set.Entries)).
		Dur("duration", time.Since(start)).
		Msg("training run complete")

	return set, nil
}

// assembleRewards converts ranked items into discount offers with unique
// redemption codes. Ranked items missing from the product catalog are
// skipped (an entry may end up shorter than requested), matching the
// reference behavior.
func (e *Engine) assembleRewards(snap *models.DatasetSnapshot, vocab *Vocabulary, ranked []RankedUser, modelID string) (*models.RecommendationSet, error) {
	customers := indexCustomers(snap)
	products := indexProducts(snap)
	history := indexInteractions(snap)
	issuer := reward.NewCodeIssuer()

	set := &models.RecommendationSet{
		ModelID:     modelID,
		GeneratedAt: time.Now().UTC(),
		Entries:     make(map[string]models.RecommendationEntry, len(ranked)),
	}

	for _, ru := range ranked {
		customerID := vocab.UserID(ru.User)
		customer := customers[customerID]

		rewards := make([]models.Reward, 0, len(ru.Items))
		for _, itemIdx := range ru.Items {
			productID := vocab.ItemID(itemIdx)
			product, ok := products[productID]
			if !ok {
				e.logger.Debug().Str("product_id", productID).Msg("skipping recommended item with no catalog record")
				continue
			}

			code, err := issuer.Issue()
			if err != nil {
				return nil, fmt.Errorf("issue reward code: %w", err)
			}
			rewards = append(rewards, models.Reward{
				DiscountPercentage: reward.DiscountFor(customer, product, history[pairKey(customerID, productID)]),
				ProductID:          productID,
				RewardCode:         code,
			})
		}

		set.Entries[customerID] = models.RecommendationEntry{
			CustomerID: customerID,
			Email:      snap.Email(customerID),
			Rewards:    rewards,
		}
	}

	return set, nil
}

// persist publishes the model artifact and the recommendation set. The
// set write is the publish point; if it fails the already-written model
// artifact is rolled back so no partial run is ever addressable.
func (e *Engine) persist(ctx context.Context, modelID string, model Model, enc *EncodedMatrices, set *models.RecommendationSet, took time.Duration) error {
	if e.artifacts != nil {
		info := ArtifactInfo{
			TrainedAt:        set.GeneratedAt,
			TrainingDuration: took,
			Interactions:     len(enc.Cells),
			Users:            enc.NumUsers,
			Items:            enc.NumItems,
			Factors:          e.cfg.Factors,
			Epochs:           e.cfg.Epochs,
		}
		if err := e.artifacts.SaveModel(modelID, model, info); err != nil {
			return fmt.Errorf("save model artifact: %w", err)
		}
	}

	if e.sets != nil {
		if err := e.sets.SaveSet(ctx, set); err != nil {
			if e.artifacts != nil {
				if delErr := e.artifacts.DeleteModel(modelID); delErr != nil {
					e.logger.Error().Err(delErr).Str("model_id", modelID).Msg("rollback of model artifact failed")
				}
			}
			return fmt.Errorf("save recommendation set: %w", err)
		}
	}

	return nil
}

func indexCustomers(snap *models.DatasetSnapshot) map[string]models.Customer {
	m := make(map[string]models.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		if _, ok := m[c.CustomerID]; !ok {
			m[c.CustomerID] = c
		}
	}
	return m
}

func indexProducts(snap *models.DatasetSnapshot) map[string]models.Product {
	m := make(map[string]models.Product, len(snap.Products))
	for _, p := range snap.Products {
		if _, ok := m[p.ProductID]; !ok {
			m[p.ProductID] = p
		}
	}
	return m
}

// indexInteractions keeps the first interaction per (customer, product)
// pair, which is the one the discount rules consult.
func indexInteractions(snap *models.DatasetSnapshot) map[string]*models.Interaction {
	m := make(map[string]*models.Interaction, len(snap.Interactions))
	for i := range snap.Interactions {
		in := &snap.Interactions[i]
		key := pairKey(in.CustomerID, in.ProductID)
		if _, ok := m[key]; !ok {
			m[key] = in
		}
	}
	return m
}

func pairKey(customerID, productID string) string {
	return customerID + "\x00" + productID
}
