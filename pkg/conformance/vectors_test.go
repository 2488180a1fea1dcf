package conformance

import (
	"bytes"
	_ "embed"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/cnr/internal/randommath"
)

//go:embed testdata/tests-slow-4.txt
var slowVectors string

var slowHeights = []uint64{0, 1, 1806260, 1806261, 1806262, 1806263, 1806264, 1806265, 2000000, ^uint64(0)}

func TestCheck(t *testing.T) {
	report, err := Check(strings.NewReader(slowVectors))
	require.NoError(t, err)
	assert.Equal(t, 2*len(slowHeights), report.Checked)
	assert.True(t, report.OK(), "%v", report.Mismatches)
}

func TestCheck_Mismatch(t *testing.T) {
	// flip the last nibble of the first 64-bit hash
	lines := strings.Split(slowVectors, "\n")
	h := []byte(lines[2])
	if h[len(h)-1] == '0' {
		h[len(h)-1] = '1'
	} else {
		h[len(h)-1] = '0'
	}
	lines[2] = string(h)

	report, err := Check(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.False(t, report.OK())
	m := report.Mismatches[0]
	assert.Equal(t, uint64(0), m.Height)
	assert.Equal(t, 64, m.Width)
	assert.Equal(t, lines[2], m.Want.String())
	assert.Contains(t, m.String(), "height 0 (64-bit)")
}

func TestCheck_Invalid(t *testing.T) {
	valid := "0\n" + strings.Repeat("00", 32) + "\n" + strings.Repeat("11", 32) + "\n"
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "blank_lines", input: "\n\n\n"},
		{name: "truncated", input: valid + "1\n"},
		{name: "bad_height", input: strings.Replace(valid, "0\n", "-1\n", 1)},
		{name: "bad_hex", input: strings.Replace(valid, "00", "zz", 1)},
		{name: "short_hash", input: "0\nabcd\n" + strings.Repeat("11", 32) + "\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Check(strings.NewReader(tc.input))
			assert.ErrorIs(t, err, ErrInvalidVectorFile)
		})
	}
}

func TestParseVectors_IgnoresBlankLines(t *testing.T) {
	vectors, err := ParseVectors(strings.NewReader("\n" + strings.ReplaceAll(slowVectors, "\n", "\n\n")))
	require.NoError(t, err)
	require.Len(t, vectors, len(slowHeights))
	for i, v := range vectors {
		assert.Equal(t, slowHeights[i], v.Height)
	}
}

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(slowHeights, &buf))
	assert.Equal(t, slowVectors, buf.String())
}

func TestSeedRegisters(t *testing.T) {
	r64 := SeedRegisters[uint64](1806260)
	r32 := SeedRegisters[uint32](1806260)
	for i := range r64 {
		assert.Equal(t, uint32(r64[i]), r32[i])
	}
	assert.NotEqual(t, r64, SeedRegisters[uint64](1806261))
}

func TestHash_DependsOnProgram(t *testing.T) {
	p := randommath.Generate(1806260)
	q := randommath.Generate(1806261)
	assert.NotEqual(t, Hash[uint32](p, 1806260), Hash[uint32](q, 1806260))
	assert.Equal(t, Compute(1806260).Hash32, Hash[uint32](p, 1806260))
}
