// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package reward computes discount percentages from the business rule table
// and issues redemption codes. Both concerns are deterministic with respect
// to their declared inputs; randomness lives only in code generation.
package reward

import "github.com/dmarceau/rewardly/internal/models"

// MaxDiscountPercent caps the cumulative discount.
const MaxDiscountPercent = 50

// baseDiscountPercent is granted to every reward before rule bonuses.
const baseDiscountPercent = 5

// Age group and category values the rule table keys on. These match the
// canonical values produced by the ingestion boundary.
const (
	AgeGroupYoungAdult = "Young Adult"
	AgeGroupSenior     = "Senior"
	GenderFemale       = "Female"
)

// genderCategoryBonus lists the product categories that earn the
// gender-specific bonus.
var genderCategoryBonus = map[string]struct{}{
	"Fashion": {},
	"Beauty":  {},
}

// DiscountInput carries everything the rule table consults for one
// (customer, product) pair. History fields apply only when HasInteraction
// is set; a pair without history is valid and simply earns no
// interaction bonuses.
type DiscountInput struct {
	Gender   string
	AgeGroup string

	Category string
	Price    float64

	HasInteraction bool
	Rating         float64
	PurchaseCount  int
}

// DiscountPercent applies the rule table cumulatively and clamps the result
// to [0, MaxDiscountPercent]:
//
//	base                                     +5
//	age group Young Adult                    +10
//	age group Senior                         +15
//	Female and category Fashion/Beauty       +5
//	price > 100                              +10
//	history present and rating >= 4          +5
//	history present and purchases > 2        +10
//
// Same inputs always yield the same discount.
func DiscountPercent(in DiscountInput) int {
	d := baseDiscountPercent

	switch in.AgeGroup {
	case AgeGroupYoungAdult:
		d += 10
	case AgeGroupSenior:
		d += 15
	}

	if in.Gender == GenderFemale {
		if _, ok := genderCategoryBonus[in.Category]; ok {
			d += 5
		}
	}

	if in.Price > 100 {
		d += 10
	}

	if in.HasInteraction {
		if in.Rating >= 4 {
			d += 5
		}
		if in.PurchaseCount > 2 {
			d += 10
		}
	}

	if d > MaxDiscountPercent {
		d = MaxDiscountPercent
	}
	return d
}

// DiscountFor builds the rule input from canonical records. interaction may
// be nil when the customer has no history with the product.
func DiscountFor(c models.Customer, p models.Product, interaction *models.Interaction) int {
	in := DiscountInput{
		Gender:   c.Gender,
		AgeGroup: c.AgeGroup,
		Category: p.Category,
		Price:    p.Price,
	}
	if interaction != nil {
		in.HasInteraction = true
		in.Rating = interaction.Rating
		in.PurchaseCount = interaction.PurchaseCount
	}
	return DiscountPercent(in)
}
