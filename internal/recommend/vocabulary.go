// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import (
	"strconv"

	"github.com/dmarceau/rewardly/internal/models"
)

// Feature tokens shared across entities. The bias token is attached to
// every feature row; the unknown token stands in for any missing
// categorical value, so an entirely absent column degenerates to a single
// shared token instead of erroring.
const (
	biasToken    = "__bias__"
	unknownToken = "unknown"
)

// Vocabulary is the closed feature space of one training run: every
// customer id, every product id appearing in the catalog or the
// interaction set (union), and every distinct categorical token, each
// mapped to a dense index. Indices are stable for the run's lifetime and
// never reused across runs; each run builds its own vocabulary.
//
// Feature index layout mirrors the trained embedding tables: per-entity
// identity features occupy [0, NumUsers) (resp. [0, NumItems)), shared
// categorical tokens follow.
type Vocabulary struct {
	userIndex map[string]int
	userIDs   []string

	itemIndex map[string]int
	itemIDs   []string

	userTokenIndex map[string]int
	userTokens     []string

	itemTokenIndex map[string]int
	itemTokens     []string
}

// BuildVocabulary indexes the snapshot's identifiers and categorical
// tokens. Item ids are the union of interaction references and the product
// catalog (interaction order first, matching the reference behavior), so
// the encoder never meets an unknown item.
func BuildVocabulary(snap *models.DatasetSnapshot) *Vocabulary {
	v := &Vocabulary{
		userIndex:      make(map[string]int, len(snap.Customers)),
		itemIndex:      make(map[string]int, len(snap.Products)),
		userTokenIndex: make(map[string]int),
		itemTokenIndex: make(map[string]int),
	}

	for _, c := range snap.Customers {
		v.addUser(c.CustomerID)
	}
	for _, in := range snap.Interactions {
		v.addItem(in.ProductID)
	}
	for _, p := range snap.Products {
		v.addItem(p.ProductID)
	}

	// Bias first so it always exists, even for a snapshot with no
	// categorical data at all.
	v.addUserToken(biasToken)
	v.addItemToken(biasToken)

	for _, c := range snap.Customers {
		v.addUserToken(categoricalToken(c.Gender))
		v.addUserToken(categoricalToken(c.AgeGroup))
	}
	for _, p := range snap.Products {
		v.addItemToken(categoricalToken(p.Category))
		v.addItemToken(priceToken(p.Price))
	}

	return v
}

func (v *Vocabulary) addUser(id string) {
	if id == "" {
		return
	}
	if _, ok := v.userIndex[id]; !ok {
		v.userIndex[id] = len(v.userIDs)
		v.userIDs = append(v.userIDs, id)
	}
}

func (v *Vocabulary) addItem(id string) {
	if id == "" {
		return
	}
	if _, ok := v.itemIndex[id]; !ok {
		v.itemIndex[id] = len(v.itemIDs)
		v.itemIDs = append(v.itemIDs, id)
	}
}

func (v *Vocabulary) addUserToken(tok string) {
	if _, ok := v.userTokenIndex[tok]; !ok {
		v.userTokenIndex[tok] = len(v.userTokens)
		v.userTokens = append(v.userTokens, tok)
	}
}

func (v *Vocabulary) addItemToken(tok string) {
	if _, ok := v.itemTokenIndex[tok]; !ok {
		v.itemTokenIndex[tok] = len(v.itemTokens)
		v.itemTokens = append(v.itemTokens, tok)
	}
}

// NumUsers returns the number of indexed customers.
func (v *Vocabulary) NumUsers() int { return len(v.userIDs) }

// NumItems returns the number of indexed products (union of catalog and
// interaction references).
func (v *Vocabulary) NumItems() int { return len(v.itemIDs) }

// NumUserFeatures returns the user feature dimension: one identity feature
// per customer plus the shared categorical tokens.
func (v *Vocabulary) NumUserFeatures() int { return len(v.userIDs) + len(v.userTokens) }

// NumItemFeatures returns the item feature dimension.
func (v *Vocabulary) NumItemFeatures() int { return len(v.itemIDs) + len(v.itemTokens) }

// UserIndex returns the dense index for a customer id.
func (v *Vocabulary) UserIndex(id string) (int, bool) {
	idx, ok := v.userIndex[id]
	return idx, ok
}

// ItemIndex returns the dense index for a product id.
func (v *Vocabulary) ItemIndex(id string) (int, bool) {
	idx, ok := v.itemIndex[id]
	return idx, ok
}

// UserID returns the customer id at the given index.
func (v *Vocabulary) UserID(idx int) string { return v.userIDs[idx] }

// ItemID returns the product id at the given index.
func (v *Vocabulary) ItemID(idx int) string { return v.itemIDs[idx] }

// UserFeatureRow returns the feature indices for a customer: identity,
// bias, and one index per categorical token. Duplicate tokens (e.g. both
// columns missing) collapse to one index; a customer with no attributes on
// record still yields a valid identity+bias row.
func (v *Vocabulary) UserFeatureRow(c models.Customer) ([]int, bool) {
	idx, ok := v.userIndex[c.CustomerID]
	if !ok {
		return nil, false
	}
	row := []int{idx, v.userTokenFeature(biasToken)}
	row = appendTokenFeature(row, v.userTokenFeature(categoricalToken(c.Gender)))
	row = appendTokenFeature(row, v.userTokenFeature(categoricalToken(c.AgeGroup)))
	return row, true
}

// ItemFeatureRow returns the feature indices for a product.
func (v *Vocabulary) ItemFeatureRow(p models.Product) ([]int, bool) {
	idx, ok := v.itemIndex[p.ProductID]
	if !ok {
		return nil, false
	}
	row := []int{idx, v.itemTokenFeature(biasToken)}
	row = appendTokenFeature(row, v.itemTokenFeature(categoricalToken(p.Category)))
	row = appendTokenFeature(row, v.itemTokenFeature(priceToken(p.Price)))
	return row, true
}

// BiasOnlyUserRow returns the fallback row for an indexed customer with no
// record in the Customer collection.
func (v *Vocabulary) BiasOnlyUserRow(idx int) []int {
	return []int{idx, v.userTokenFeature(biasToken)}
}

// BiasOnlyItemRow returns the fallback row for an indexed product with no
// record in the Product catalog (interaction-only items).
func (v *Vocabulary) BiasOnlyItemRow(idx int) []int {
	return []int{idx, v.itemTokenFeature(biasToken)}
}

// userTokenFeature maps a shared user token to its feature index, offset
// past the identity block.
func (v *Vocabulary) userTokenFeature(tok string) int {
	return len(v.userIDs) + v.userTokenIndex[tok]
}

func (v *Vocabulary) itemTokenFeature(tok string) int {
	return len(v.itemIDs) + v.itemTokenIndex[tok]
}

// appendTokenFeature appends idx unless the row already contains it.
func appendTokenFeature(row []int, idx int) []int {
	for _, f := range row {
		if f == idx {
			return row
		}
	}
	return append(row, idx)
}

// categoricalToken normalizes a categorical value, substituting the
// unknown token for missing values.
func categoricalToken(value string) string {
	if value == "" {
		return unknownToken
	}
	return value
}

// priceToken stringifies a price into a feature token, matching the
// reference treatment of price as a categorical value.
func priceToken(price float64) string {
	return "price:" + strconv.FormatFloat(price, 'g', -1, 64)
}
