// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

/*
Package recommend implements the recommendation-and-reward pipeline.

One training run flows top to bottom:

	DatasetSnapshot
	  -> Vocabulary   (closed, indexed feature space for this run)
	  -> Encode       (weighted sparse interaction matrix + feature rows)
	  -> Trainer.Fit  (latent-factor model, fixed epoch count)
	  -> RankAll      (deterministic per-user top-N)
	  -> discounts + reward codes
	  -> RecommendationSet (persisted atomically under a fresh model id)

Every artifact a run produces (vocabulary, matrices, model, set) is owned
exclusively by that run's model id and is never mutated after creation.
Retraining allocates a new id and a new artifact set.

# Pluggable trainer

The concrete optimization algorithm hides behind the Trainer and Model
interfaces: Fit consumes the encoded matrices and returns a Model whose
Score method yields scores for every known item at once. Scores are
unnormalized and only meaningful in within-user order.

# Error taxonomy

  - ErrNoInteractions: no usable rows after encoding; the run aborts
    before the model is touched.
  - ErrVocabularyGap: an encoded identifier fell outside the vocabulary;
    impossible under the union rule and treated as an invariant violation.
  - ErrNumericInstability: training produced non-finite parameters,
    distinguishing numeric failure from "no data".

All fatal errors abort before any artifact is persisted.
*/
package recommend
