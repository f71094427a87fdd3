// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package models

import (
	"sync/atomic"
	"time"
)

// DatasetSnapshot is an immutable view of the three canonical collections.
// Each upload produces a fresh snapshot that fully replaces the previous
// one; training runs receive the snapshot by reference and never mutate it.
type DatasetSnapshot struct {
	Customers    []Customer    `json:"customers"`
	Products     []Product     `json:"products"`
	Interactions []Interaction `json:"interactions"`

	// UploadedAt is when this snapshot was created.
	UploadedAt time.Time `json:"uploaded_at"`
}

// Email returns the email attached to the customer's first interaction, or
// NoEmailSentinel when the customer has no interactions or the first one
// carries no address.
func (s *DatasetSnapshot) Email(customerID string) string {
	for _, in := range s.Interactions {
		if in.CustomerID == customerID {
			if in.Email != "" {
				return in.Email
			}
			return NoEmailSentinel
		}
	}
	return NoEmailSentinel
}

// SnapshotHolder holds the current dataset snapshot behind an atomic
// pointer. Replacing the snapshot is wholesale: concurrent readers keep
// the snapshot they already loaded, writers never mutate shared state.
type SnapshotHolder struct {
	current atomic.Pointer[DatasetSnapshot]
}

// NewSnapshotHolder returns an empty holder.
func NewSnapshotHolder() *SnapshotHolder {
	return &SnapshotHolder{}
}

// Replace swaps in a new snapshot, discarding any previous one.
func (h *SnapshotHolder) Replace(snap *DatasetSnapshot) {
	h.current.Store(snap)
}

// Current returns the active snapshot, or nil when nothing has been
// uploaded yet.
func (h *SnapshotHolder) Current() *DatasetSnapshot {
	return h.current.Load()
}
