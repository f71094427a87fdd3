// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package recommend

import (
	"reflect"
	"testing"
)

// stubModel returns fixed scores per user.
type stubModel struct {
	scores [][]float64
}

func (m *stubModel) Score(userIdx int) []float64 {
	out := make([]float64, len(m.scores[userIdx]))
	copy(out, m.scores[userIdx])
	return out
}

func (m *stubModel) NumItems() int { return len(m.scores[0]) }

func TestRankAllOrdering(t *testing.T) {
	m := &stubModel{scores: [][]float64{{0.1, 0.9, 0.5}}}
	enc := &EncodedMatrices{NumUsers: 1, NumItems: 3}

	ranked := RankAll(m, enc, RankOptions{TopN: 3})
	want := []int{1, 2, 0}
	if !reflect.DeepEqual(ranked[0].Items, want) {
		t.Errorf("Items = %v, want %v", ranked[0].Items, want)
	}
}

func TestRankAllTieBreakAscendingIndex(t *testing.T) {
	m := &stubModel{scores: [][]float64{{0.5, 0.5, 0.9, 0.5}}}
	enc := &EncodedMatrices{NumUsers: 1, NumItems: 4}

	ranked := RankAll(m, enc, RankOptions{TopN: 4})
	want := []int{2, 0, 1, 3}
	if !reflect.DeepEqual(ranked[0].Items, want) {
		t.Errorf("Items = %v, want %v (equal scores keep ascending index order)", ranked[0].Items, want)
	}
}

func TestRankAllTruncation(t *testing.T) {
	m := &stubModel{scores: [][]float64{{0.1, 0.9, 0.5, 0.3}}}
	enc := &EncodedMatrices{NumUsers: 1, NumItems: 4}

	tests := []struct {
		name string
		topN int
		want []int
	}{
		{"top 2", 2, []int{1, 2}},
		{"more requested than items", 10, []int{1, 2, 3, 0}},
		{"zero keeps all", 0, []int{1, 2, 3, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := RankAll(m, enc, RankOptions{TopN: tt.topN})
			if !reflect.DeepEqual(ranked[0].Items, tt.want) {
				t.Errorf("Items = %v, want %v", ranked[0].Items, tt.want)
			}
		})
	}
}

func TestRankAllMaxUsers(t *testing.T) {
	m := &stubModel{scores: [][]float64{{1}, {2}, {3}}}
	enc := &EncodedMatrices{NumUsers: 3, NumItems: 1}

	if got := len(RankAll(m, enc, RankOptions{TopN: 1, MaxUsers: 2})); got != 2 {
		t.Errorf("ranked %d users with cap 2, want 2", got)
	}
	if got := len(RankAll(m, enc, RankOptions{TopN: 1})); got != 3 {
		t.Errorf("ranked %d users with no cap, want 3", got)
	}
}

func TestRankAllExcludeSeen(t *testing.T) {
	m := &stubModel{scores: [][]float64{{0.9, 0.5, 0.1}}}
	enc := &EncodedMatrices{
		NumUsers: 1,
		NumItems: 3,
		Cells:    []InteractionCell{{User: 0, Item: 0, Weight: 5}},
	}

	ranked := RankAll(m, enc, RankOptions{TopN: 3, ExcludeSeen: true})
	want := []int{1, 2}
	if !reflect.DeepEqual(ranked[0].Items, want) {
		t.Errorf("Items = %v, want %v with seen item excluded", ranked[0].Items, want)
	}
}

func TestRankAllIdempotent(t *testing.T) {
	m := &stubModel{scores: [][]float64{{0.3, 0.3, 0.7, 0.1, 0.3}}}
	enc := &EncodedMatrices{NumUsers: 1, NumItems: 5}
	opts := RankOptions{TopN: 4}

	first := RankAll(m, enc, opts)
	for i := 0; i < 20; i++ {
		if got := RankAll(m, enc, opts); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, want %v", i, got, first)
		}
	}
}
