// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import "errors"

// Pipeline errors. Callers match with errors.Is; wrapped variants carry
// stage detail.
var (
	// ErrNoInteractions indicates the dataset produced zero usable
	// interaction rows. Training must never proceed past this.
	ErrNoInteractions = errors.New("no usable interactions in dataset")

	// ErrVocabularyGap indicates an identifier referenced during encoding
	// was missing from the run's vocabulary. The union rule makes this
	// impossible for well-formed input; it signals an internal bug.
	ErrVocabularyGap = errors.New("identifier missing from vocabulary")

	// ErrNumericInstability indicates training produced NaN or infinite
	// parameters. Distinct from ErrNoInteractions so callers can tell
	// "no data" from numeric failure.
	ErrNumericInstability = errors.New("training produced non-finite parameters")
)
