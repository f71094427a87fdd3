// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import (
	"fmt"

	"github.com/dmarceau/rewardly/internal/models"
)

// InteractionCell is one nonzero cell of the sparse interaction matrix.
type InteractionCell struct {
	// User and Item are dense vocabulary indices.
	User int
	Item int

	// Weight is the aggregated interaction strength for the pair.
	Weight float64
}

// EncodedMatrices holds the three sparse matrices of one training run:
// the weighted user-item interaction matrix and the user/item feature
// rows. Derived from a snapshot, owned exclusively by the run, never
// mutated after Encode returns.
type EncodedMatrices struct {
	// Cells is the sparse interaction matrix in first-seen pair order.
	// Duplicate (user, item) pairs aggregate by adding weights into the
	// same cell.
	Cells []InteractionCell

	// UserFeatures has one row per user index: feature indices including
	// the identity feature and the always-set bias feature.
	UserFeatures [][]int

	// ItemFeatures has one row per item index.
	ItemFeatures [][]int

	NumUsers        int
	NumItems        int
	NumUserFeatures int
	NumItemFeatures int

	// OrphanCount counts interactions skipped because their customer id
	// was absent from the vocabulary. Orphans degrade, never fail, a run.
	OrphanCount int
}

// Encode builds the sparse matrices from the snapshot using the run's
// vocabulary. The combined weight for a row is rating + purchase count;
// rows are not deduplicated before summing, so repeated pairs accumulate.
//
// An item outside the vocabulary is an ErrVocabularyGap: the union rule in
// BuildVocabulary guarantees it cannot happen for input that went through
// the same snapshot.
func Encode(snap *models.DatasetSnapshot, vocab *Vocabulary) (*EncodedMatrices, error) {
	enc := &EncodedMatrices{
		NumUsers:        vocab.NumUsers(),
		NumItems:        vocab.NumItems(),
		NumUserFeatures: vocab.NumUserFeatures(),
		NumItemFeatures: vocab.NumItemFeatures(),
	}

	cellPos := make(map[int64]int)
	for _, in := range snap.Interactions {
		u, ok := vocab.UserIndex(in.CustomerID)
		if !ok {
			enc.OrphanCount++
			continue
		}
		i, ok := vocab.ItemIndex(in.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: product %q", ErrVocabularyGap, in.ProductID)
		}

		key := int64(u)*int64(enc.NumItems) + int64(i)
		if pos, seen := cellPos[key]; seen {
			enc.Cells[pos].Weight += in.Weight()
			continue
		}
		cellPos[key] = len(enc.Cells)
		enc.Cells = append(enc.Cells, InteractionCell{User: u, Item: i, Weight: in.Weight()})
	}

	enc.UserFeatures = buildUserFeatureRows(snap, vocab)
	enc.ItemFeatures = buildItemFeatureRows(snap, vocab)

	return enc, nil
}

// buildUserFeatureRows attaches every categorical token plus the implicit
// bias feature to each user. Users without a Customer record keep a valid
// bias-only row; they are never dropped.
func buildUserFeatureRows(snap *models.DatasetSnapshot, vocab *Vocabulary) [][]int {
	rows := make([][]int, vocab.NumUsers())
	for _, c := range snap.Customers {
		if row, ok := vocab.UserFeatureRow(c); ok {
			idx, _ := vocab.UserIndex(c.CustomerID)
			if rows[idx] == nil {
				rows[idx] = row
			}
		}
	}
	for idx := range rows {
		if rows[idx] == nil {
			rows[idx] = vocab.BiasOnlyUserRow(idx)
		}
	}
	return rows
}

// buildItemFeatureRows mirrors buildUserFeatureRows for products.
// Interaction-only items (absent from the catalog) get bias-only rows.
func buildItemFeatureRows(snap *models.DatasetSnapshot, vocab *Vocabulary) [][]int {
	rows := make([][]int, vocab.NumItems())
	for _, p := range snap.Products {
		if row, ok := vocab.ItemFeatureRow(p); ok {
			idx, _ := vocab.ItemIndex(p.ProductID)
			if rows[idx] == nil {
				rows[idx] = row
			}
		}
	}
	for idx := range rows {
		if rows[idx] == nil {
			rows[idx] = vocab.BiasOnlyItemRow(idx)
		}
	}
	return rows
}

// SeenItems returns, per user index, the set of item indices with at least
// one interaction. Used by ranking when seen-item exclusion is enabled.
func (enc *EncodedMatrices) SeenItems() []map[int]struct{} {
	seen := make([]map[int]struct{}, enc.NumUsers)
	for _, c := range enc.Cells {
		if seen[c.User] == nil {
			seen[c.User] = make(map[int]struct{})
		}
		seen[c.User][c.Item] = struct{}{}
	}
	return seen
}
