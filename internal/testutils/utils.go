package testutils

import (
	"math/rand/v2"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

// RequireEqualListings compares two program listings and fails the test with
// a unified diff when they differ. Similar to testify's require.Equal, but
// provides a more useful diff output for long programs.
func RequireEqualListings(t *testing.T, expected, actual string) {
	t.Helper()
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		FromDate: "",
		ToFile:   "Actual",
		ToDate:   "",
		Context:  1,
	})
	if diff != "" {
		t.Fatalf("Listing mismatch:\n%s", diff)
	}
}

// NewRand returns a deterministic random generator for reproducible tests
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomRegisters64 fills a register file with pseudorandom words
func RandomRegisters64(r *rand.Rand) [8]uint64 {
	var regs [8]uint64
	for i := range regs {
		regs[i] = r.Uint64()
	}
	return regs
}

// RandomRegisters32 fills a register file with pseudorandom words
func RandomRegisters32(r *rand.Rand) [8]uint32 {
	var regs [8]uint32
	for i := range regs {
		regs[i] = r.Uint32()
	}
	return regs
}
