// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import (
	"context"
	"fmt"
	"math"
)

// Model scores items for users. Scores are unnormalized; only the
// within-user order is meaningful and scores must never be compared
// across users.
type Model interface {
	// Score returns the predicted score for every known item for the
	// user at the given index, computed in one pass.
	Score(userIdx int) []float64

	// NumItems returns the size of the item universe the model was
	// trained on.
	NumItems() int
}

// Trainer fits a Model to encoded matrices. The concrete optimization
// algorithm is an implementation detail behind this seam; swapping it must
// not affect the rest of the pipeline.
type Trainer interface {
	Fit(ctx context.Context, enc *EncodedMatrices, opts FitOptions) (Model, error)
}

// FitOptions are the training hyperparameters. Epochs is a fixed effort
// budget: training always runs the configured count, with no early
// stopping or validation-based tuning (a design constant for
// predictability, not accuracy optimality).
type FitOptions struct {
	// Factors is the latent dimension. Typical range: 10-100.
	Factors int

	// Epochs is the fixed number of optimization passes.
	Epochs int

	// LearningRate is the SGD step size.
	LearningRate float64

	// Regularization is the L2 penalty on embeddings and biases.
	Regularization float64
}

// DefaultFitOptions returns the reference hyperparameters.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Factors:        30,
		Epochs:         10,
		LearningRate:   0.05,
		Regularization: 0.01,
	}
}

func (o FitOptions) withDefaults() FitOptions {
	d := DefaultFitOptions()
	if o.Factors <= 0 {
		o.Factors = d.Factors
	}
	if o.Epochs <= 0 {
		o.Epochs = d.Epochs
	}
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	if o.Regularization <= 0 {
		o.Regularization = d.Regularization
	}
	return o
}

// FactorTrainer fits a feature-augmented latent factor model: each user
// and item is represented as the sum of the embeddings of its feature
// tokens (identity, bias, categorical attributes), and the predicted
// weight of a cell is the dot product of the two representations plus the
// summed feature biases. Parameters are fit with SGD over the observed
// cells for a fixed epoch count.
//
// Initialization is deterministic, so a fixed snapshot and options always
// produce the same parameters.
type FactorTrainer struct{}

// NewFactorTrainer returns the default trainer.
func NewFactorTrainer() *FactorTrainer {
	return &FactorTrainer{}
}

// FactorModel is the trained artifact: per-entity representations and
// biases plus the underlying feature embedding tables. Immutable once
// trained; retraining produces a new FactorModel under a new model id.
// All fields are exported for gob serialization.
type FactorModel struct {
	Factors int

	// UserRepr and ItemRepr are the summed per-entity representations
	// (NumUsers x Factors, NumItems x Factors).
	UserRepr [][]float64
	ItemRepr [][]float64

	// UserBias and ItemBias are the summed per-entity biases.
	UserBias []float64
	ItemBias []float64

	// Feature-level parameters, kept so the artifact fully describes the
	// trained state.
	UserFeatureEmb  [][]float64
	ItemFeatureEmb  [][]float64
	UserFeatureBias []float64
	ItemFeatureBias []float64
}

// Score computes user·item + biases for every item at once.
func (m *FactorModel) Score(userIdx int) []float64 {
	scores := make([]float64, len(m.ItemRepr))
	if userIdx < 0 || userIdx >= len(m.UserRepr) {
		return scores
	}
	u := m.UserRepr[userIdx]
	ub := m.UserBias[userIdx]
	for i, item := range m.ItemRepr {
		var dot float64
		for f := range u {
			dot += u[f] * item[f]
		}
		scores[i] = dot + ub + m.ItemBias[i]
	}
	return scores
}

// NumItems returns the item universe size.
func (m *FactorModel) NumItems() int { return len(m.ItemRepr) }

// Fit trains the model. It fails fast with ErrNoInteractions when the
// interaction matrix has zero rows and with ErrNumericInstability when
// parameters stop being finite, so callers can distinguish "no data" from
// numeric failure.
func (t *FactorTrainer) Fit(ctx context.Context, enc *EncodedMatrices, opts FitOptions) (Model, error) {
	if enc == nil || len(enc.Cells) == 0 {
		return nil, fmt.Errorf("%w: interaction matrix has zero rows", ErrNoInteractions)
	}
	if enc.NumUsers == 0 || enc.NumItems == 0 {
		return nil, fmt.Errorf("%w: %d users, %d items", ErrNoInteractions, enc.NumUsers, enc.NumItems)
	}
	opts = opts.withDefaults()

	k := opts.Factors
	userEmb := initEmbeddings(enc.NumUserFeatures, k)
	itemEmb := initEmbeddings(enc.NumItemFeatures, k)
	userBias := make([]float64, enc.NumUserFeatures)
	itemBias := make([]float64, enc.NumItemFeatures)

	lr := opts.LearningRate
	reg := opts.Regularization

	uRepr := make([]float64, k)
	iRepr := make([]float64, k)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, cell := range enc.Cells {
			uRow := enc.UserFeatures[cell.User]
			iRow := enc.ItemFeatures[cell.Item]

			sumRow(uRepr, userEmb, uRow)
			sumRow(iRepr, itemEmb, iRow)

			pred := dot(uRepr, iRepr) + sumBias(userBias, uRow) + sumBias(itemBias, iRow)
			residual := cell.Weight - pred

			// Both sides update against the pre-update representations.
			for _, f := range uRow {
				emb := userEmb[f]
				for d := 0; d < k; d++ {
					emb[d] += lr * (residual*iRepr[d] - reg*emb[d])
				}
				userBias[f] += lr * (residual - reg*userBias[f])
			}
			for _, f := range iRow {
				emb := itemEmb[f]
				for d := 0; d < k; d++ {
					emb[d] += lr * (residual*uRepr[d] - reg*emb[d])
				}
				itemBias[f] += lr * (residual - reg*itemBias[f])
			}
		}

		if !finiteParams(userEmb, userBias) || !finiteParams(itemEmb, itemBias) {
			return nil, fmt.Errorf("%w: after epoch %d", ErrNumericInstability, epoch+1)
		}
	}

	return finalizeModel(enc, k, userEmb, itemEmb, userBias, itemBias), nil
}

// finalizeModel folds the feature embeddings into per-entity
// representations so scoring is a plain dot product.
func finalizeModel(enc *EncodedMatrices, k int, userEmb, itemEmb [][]float64, userBias, itemBias []float64) *FactorModel {
	m := &FactorModel{
		Factors:         k,
		UserRepr:        make([][]float64, enc.NumUsers),
		ItemRepr:        make([][]float64, enc.NumItems),
		UserBias:        make([]float64, enc.NumUsers),
		ItemBias:        make([]float64, enc.NumItems),
		UserFeatureEmb:  userEmb,
		ItemFeatureEmb:  itemEmb,
		UserFeatureBias: userBias,
		ItemFeatureBias: itemBias,
	}
	for u := 0; u < enc.NumUsers; u++ {
		repr := make([]float64, k)
		sumRow(repr, userEmb, enc.UserFeatures[u])
		m.UserRepr[u] = repr
		m.UserBias[u] = sumBias(userBias, enc.UserFeatures[u])
	}
	for i := 0; i < enc.NumItems; i++ {
		repr := make([]float64, k)
		sumRow(repr, itemEmb, enc.ItemFeatures[i])
		m.ItemRepr[i] = repr
		m.ItemBias[i] = sumBias(itemBias, enc.ItemFeatures[i])
	}
	return m
}

// initEmbeddings seeds small deterministic values spread around zero.
func initEmbeddings(n, k int) [][]float64 {
	emb := make([][]float64, n)
	for f := 0; f < n; f++ {
		emb[f] = make([]float64, k)
		for d := 0; d < k; d++ {
			emb[f][d] = 0.01 * (float64((f*k+d)%1000)/1000.0 - 0.5)
		}
	}
	return emb
}

// sumRow writes the sum of the embedding rows into dst.
func sumRow(dst []float64, emb [][]float64, row []int) {
	for d := range dst {
		dst[d] = 0
	}
	for _, f := range row {
		src := emb[f]
		for d := range dst {
			dst[d] += src[d]
		}
	}
}

func sumBias(bias []float64, row []int) float64 {
	var s float64
	for _, f := range row {
		s += bias[f]
	}
	return s
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func finiteParams(emb [][]float64, bias []float64) bool {
	for _, b := range bias {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return false
		}
	}
	for _, row := range emb {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

var _ Trainer = (*FactorTrainer)(nil)
var _ Model = (*FactorModel)(nil)
