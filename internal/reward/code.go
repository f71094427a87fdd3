// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package reward

import (
	"crypto/rand"
	"fmt"
	"io"
)

// codeAlphabet is the 36-symbol code alphabet: uppercase letters and digits.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the fixed reward code length.
const CodeLength = 5

// maxIssueAttempts bounds collision regeneration. With a 36^5 code space
// this is unreachable at realistic batch sizes.
const maxIssueAttempts = 100

// rejectionBound is the largest multiple of len(codeAlphabet) below 256.
// Bytes at or above it are rejected so every symbol is drawn uniformly.
const rejectionBound = 252

// GenerateCode returns one 5-character code drawn uniformly from A-Z0-9
// using the given entropy source.
func GenerateCode(r io.Reader) (string, error) {
	code := make([]byte, CodeLength)
	buf := make([]byte, 1)
	for i := 0; i < CodeLength; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		if buf[0] >= rejectionBound {
			continue
		}
		code[i] = codeAlphabet[int(buf[0])%len(codeAlphabet)]
		i++
	}
	return string(code), nil
}

// CodeIssuer issues reward codes that are unique within one training run.
// Codes are unpredictable (crypto/rand) and collisions are resolved by
// regeneration against the issuer's seen set. Uniqueness across runs is
// explicitly not guaranteed; each run owns a fresh issuer.
type CodeIssuer struct {
	source io.Reader
	seen   map[string]struct{}
}

// NewCodeIssuer returns an issuer backed by crypto/rand.
func NewCodeIssuer() *CodeIssuer {
	return NewCodeIssuerWithSource(rand.Reader)
}

// NewCodeIssuerWithSource returns an issuer reading entropy from source.
// Used by tests to drive deterministic sequences.
func NewCodeIssuerWithSource(source io.Reader) *CodeIssuer {
	return &CodeIssuer{
		source: source,
		seen:   make(map[string]struct{}),
	}
}

// Issue returns a code not previously issued by this issuer.
func (ci *CodeIssuer) Issue() (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := GenerateCode(ci.source)
		if err != nil {
			return "", err
		}
		if _, dup := ci.seen[code]; dup {
			continue
		}
		ci.seen[code] = struct{}{}
		return code, nil
	}
	return "", fmt.Errorf("could not issue a unique code after %d attempts", maxIssueAttempts)
}

// Issued returns how many codes this issuer has handed out.
func (ci *CodeIssuer) Issued() int {
	return len(ci.seen)
}
