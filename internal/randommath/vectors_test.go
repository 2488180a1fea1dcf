package randommath

import (
	"embed"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/cnr/internal/testutils"
)

//go:embed testdata
var testdata embed.FS

type RegisterCase[W Word] struct {
	Initial [8]W `json:"initial"`
	Final   [8]W `json:"final"`
}

type TestCase struct {
	Name        string               `json:"name"`
	Height      uint64               `json:"height"`
	Program     string               `json:"program"`
	Size        int                  `json:"size"`
	Listing     string               `json:"listing"`
	Regs32      RegisterCase[uint32] `json:"regs32"`
	Regs64      RegisterCase[uint64] `json:"regs64"`
	Fingerprint string               `json:"fingerprint"`
}

func loadVectors(t *testing.T) []TestCase {
	t.Helper()
	f, err := testdata.Open("testdata/vectors.json")
	require.NoError(t, err)
	defer f.Close()

	var cases []TestCase
	require.NoError(t, json.NewDecoder(f).Decode(&cases))
	require.NotEmpty(t, cases)
	return cases
}

func Test_Vectors(t *testing.T) {
	for _, tc := range loadVectors(t) {
		t.Run(tc.Name, func(t *testing.T) {
			p := Generate(tc.Height)

			testutils.RequireEqualListings(t, tc.Listing, p.String())
			assert.Equal(t, tc.Size, p.Len())
			assert.Equal(t, tc.Program, hex.EncodeToString(p.Bytes()))
			assert.Equal(t, tc.Fingerprint, p.Fingerprint().String())

			regs32 := tc.Regs32.Initial
			Execute(p, &regs32)
			assert.Equal(t, tc.Regs32.Final, regs32)

			regs64 := tc.Regs64.Initial
			Execute(p, &regs64)
			assert.Equal(t, tc.Regs64.Final, regs64)

			compiled32 := tc.Regs32.Initial
			Compile[uint32](p).Execute(&compiled32)
			assert.Equal(t, tc.Regs32.Final, compiled32)

			compiled64 := tc.Regs64.Initial
			Compile[uint64](p).Execute(&compiled64)
			assert.Equal(t, tc.Regs64.Final, compiled64)

			// constant registers are never written
			assert.Equal(t, tc.Regs32.Initial[4:], regs32[4:])
			assert.Equal(t, tc.Regs64.Initial[4:], regs64[4:])
		})
	}
}

func Test_VectorsDecode(t *testing.T) {
	for _, tc := range loadVectors(t) {
		t.Run(tc.Name, func(t *testing.T) {
			raw, err := hex.DecodeString(tc.Program)
			require.NoError(t, err)

			p, err := UnmarshalProgram(raw)
			require.NoError(t, err)
			assert.True(t, p.Equal(Generate(tc.Height)))

			regs := tc.Regs32.Initial
			Execute(p, &regs)
			assert.Equal(t, tc.Regs32.Final, regs)
		})
	}
}
