// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package reward

import (
	"bytes"
	"regexp"
	"testing"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5}$`)

func TestGenerateCodeFormat(t *testing.T) {
	issuer := NewCodeIssuer()
	for i := 0; i < 500; i++ {
		code, err := issuer.Issue()
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("Issue() = %q, want match for %s", code, codePattern)
		}
	}
}

func TestIssuerUniquenessWithinRun(t *testing.T) {
	issuer := NewCodeIssuer()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := issuer.Issue()
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code %q issued within one run", code)
		}
		seen[code] = struct{}{}
	}
	if issuer.Issued() != 1000 {
		t.Errorf("Issued() = %d, want 1000", issuer.Issued())
	}
}

func TestIssuerRegeneratesOnCollision(t *testing.T) {
	// Two identical byte sequences followed by a distinct one: the second
	// Issue() must skip the colliding candidate and return the third.
	src := bytes.NewReader([]byte{
		0, 1, 2, 3, 4, // candidate 1
		0, 1, 2, 3, 4, // collides with candidate 1
		5, 6, 7, 8, 9, // candidate 2
	})
	issuer := NewCodeIssuerWithSource(src)

	first, err := issuer.Issue()
	if err != nil {
		t.Fatalf("first Issue() error: %v", err)
	}
	second, err := issuer.Issue()
	if err != nil {
		t.Fatalf("second Issue() error: %v", err)
	}
	if first == second {
		t.Errorf("issuer returned duplicate code %q", first)
	}
	if first != "ABCDE" {
		t.Errorf("first code = %q, want ABCDE", first)
	}
	if second != "FGHIJ" {
		t.Errorf("second code = %q, want FGHIJ", second)
	}
}

func TestGenerateCodeRejectionSampling(t *testing.T) {
	// Bytes >= 252 must be rejected, not folded into the alphabet.
	src := bytes.NewReader([]byte{255, 254, 253, 252, 0, 1, 2, 3, 4})
	code, err := GenerateCode(src)
	if err != nil {
		t.Fatalf("GenerateCode() error: %v", err)
	}
	if code != "ABCDE" {
		t.Errorf("GenerateCode() = %q, want ABCDE", code)
	}
}

func TestGenerateCodeExhaustedSource(t *testing.T) {
	src := bytes.NewReader([]byte{0, 1})
	if _, err := GenerateCode(src); err == nil {
		t.Error("GenerateCode() with exhausted source should error")
	}
}
