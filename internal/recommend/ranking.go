// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import "sort"

// RankOptions controls per-user item selection.
type RankOptions struct {
	// TopN is the number of items to keep per user. TopN <= 0 keeps all
	// items; fewer than TopN known items yields all of them, no padding.
	TopN int

	// MaxUsers bounds how many users are ranked, in vocabulary insertion
	// order. 0 disables the cap. The reference behavior processes the
	// first 10 users; this is an explicit knob, not a hidden constant.
	MaxUsers int

	// ExcludeSeen drops items the user already interacted with before
	// truncation.
	ExcludeSeen bool
}

// RankedUser is one user's ordered selection.
type RankedUser struct {
	// User is the dense user index.
	User int

	// Items holds item indices sorted by descending score, ties broken
	// by ascending item index.
	Items []int
}

// RankAll ranks every (capped) user's items by predicted score.
//
// Ordering is deterministic for a fixed model: candidates start in
// ascending item-index order and the sort is stable, so exactly equal
// scores preserve ascending index order. Re-ranking the same model with
// the same options yields identical lists.
func RankAll(m Model, enc *EncodedMatrices, opts RankOptions) []RankedUser {
	numUsers := enc.NumUsers
	if opts.MaxUsers > 0 && numUsers > opts.MaxUsers {
		numUsers = opts.MaxUsers
	}

	var seen []map[int]struct{}
	if opts.ExcludeSeen {
		seen = enc.SeenItems()
	}

	out := make([]RankedUser, 0, numUsers)
	for u := 0; u < numUsers; u++ {
		scores := m.Score(u)

		candidates := make([]int, 0, len(scores))
		for i := range scores {
			if opts.ExcludeSeen && seen[u] != nil {
				if _, was := seen[u][i]; was {
					continue
				}
			}
			candidates = append(candidates, i)
		}

		sort.SliceStable(candidates, func(a, b int) bool {
			return scores[candidates[a]] > scores[candidates[b]]
		})

		if opts.TopN > 0 && len(candidates) > opts.TopN {
			candidates = candidates[:opts.TopN]
		}

		out = append(out, RankedUser{User: u, Items: candidates})
	}
	return out
}
