// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package models defines the canonical record types shared across the
// application: the cleaned input records supplied by the ingestion boundary
// and the reward artifacts produced by a training run.
//
// All types here are plain data. Serialization happens at the store and API
// layers; validation happens at the ingestion boundary. The core pipeline
// never inspects raw tabular structures.
package models

import (
	"fmt"
	"sort"
	"time"
)

// NoEmailSentinel marks a recommendation entry whose customer has no known
// email address. The email-only view filters on this exact value.
const NoEmailSentinel = "No Email Provided"

// Rating bounds for interactions. Out-of-range ratings are clamped, not
// rejected.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// Customer is a canonical customer record. Immutable for a training run.
type Customer struct {
	// CustomerID is the unique customer key.
	CustomerID string `json:"customer_id" validate:"required"`

	// Gender is a free-form categorical value (e.g., "Female", "Male").
	Gender string `json:"gender"`

	// AgeGroup is a free-form categorical value (e.g., "Young Adult", "Senior").
	AgeGroup string `json:"age_group"`
}

// Product is a canonical product record. Immutable for a training run.
type Product struct {
	// ProductID is the unique product key.
	ProductID string `json:"product_id" validate:"required"`

	// Category is a free-form categorical value (e.g., "Fashion", "Beauty").
	Category string `json:"category"`

	// Price is the non-negative product price.
	Price float64 `json:"price" validate:"gte=0"`
}

// Interaction is a single customer-product interaction. Multiple
// interactions may exist for the same (customer, product) pair.
type Interaction struct {
	// CustomerID references a Customer. Orphan references are tolerated
	// downstream (skipped, never fatal).
	CustomerID string `json:"customer_id" validate:"required"`

	// ProductID references a Product. Products that appear only in
	// interactions still enter the item vocabulary (union rule).
	ProductID string `json:"product_id" validate:"required"`

	// Rating is the explicit rating, clamped to [MinRating, MaxRating]
	// when consumed.
	Rating float64 `json:"rating"`

	// PurchaseCount is the number of purchases for this pair.
	PurchaseCount int `json:"purchase_count" validate:"gte=0"`

	// Email is the optional contact address attached to this interaction.
	Email string `json:"email,omitempty"`
}

// ClampRating clamps a rating into [MinRating, MaxRating].
func ClampRating(r float64) float64 {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// Weight is the combined implicit/explicit interaction strength used as the
// training signal: clamped rating plus purchase count. Purchase frequency
// and satisfaction both increase implied preference strength.
func (i Interaction) Weight() float64 {
	return ClampRating(i.Rating) + float64(i.PurchaseCount)
}

// Reward is a single discount offer: a bounded percentage, a product, and a
// redemption code. Codes are unique within a run but not across runs.
type Reward struct {
	// DiscountPercentage is an integer percentage in [0, 50].
	DiscountPercentage int `json:"discount_percentage"`

	// ProductID is the discounted product.
	ProductID string `json:"product_id"`

	// RewardCode is the 5-character alphanumeric redemption code.
	RewardCode string `json:"reward_code"`
}

// String renders the reward in its customer-facing form, e.g.
// "50% off P1 <A3X9Q>". Email dispatch sends these strings verbatim.
func (r Reward) String() string {
	return fmt.Sprintf("%d%% off %s <%s>", r.DiscountPercentage, r.ProductID, r.RewardCode)
}

// RecommendationEntry is the per-customer reward bundle.
type RecommendationEntry struct {
	// CustomerID is the customer this entry belongs to.
	CustomerID string `json:"customer_id"`

	// Email is the customer's contact address, or NoEmailSentinel.
	Email string `json:"email"`

	// Rewards is the ordered reward list. Length is at most the requested
	// count and may be shorter when eligible items run out.
	Rewards []Reward `json:"rewards"`
}

// HasEmail reports whether the entry carries a real address rather than the
// sentinel.
func (e RecommendationEntry) HasEmail() bool {
	return e.Email != "" && e.Email != NoEmailSentinel
}

// RewardStrings returns the customer-facing reward strings in order.
func (e RecommendationEntry) RewardStrings() []string {
	out := make([]string, 0, len(e.Rewards))
	for _, r := range e.Rewards {
		out = append(out, r.String())
	}
	return out
}

// RecommendationSet is the complete output of one training run, keyed by
// customer id and tagged with the owning model id. Sets are immutable once
// published; a retrain produces a new set under a new model id.
type RecommendationSet struct {
	// ModelID is the opaque unique identifier of the training run.
	ModelID string `json:"model_id"`

	// GeneratedAt is when the run completed.
	GeneratedAt time.Time `json:"generated_at"`

	// Entries maps customer id to that customer's reward bundle.
	Entries map[string]RecommendationEntry `json:"entries"`
}

// EmailEntries returns the subset of entries with a real email address,
// ordered by customer id for stable output.
func (s *RecommendationSet) EmailEntries() []RecommendationEntry {
	out := make([]RecommendationEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.HasEmail() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}
