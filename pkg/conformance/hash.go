package conformance

import (
	"encoding/binary"

	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/internal/crypto"
	"github.com/eigerco/cnr/internal/randommath"
)

// Iterations is the number of interpreter calls per vector, one per
// CryptoNight main loop chunk in the reference test program
const Iterations = 16

// SeedRegisters derives the initial register file for a height: the eight
// little-endian words of BLAKE2b-512(LE64 height), truncated to W
func SeedRegisters[W randommath.Word](height uint64) [constants.RegisterCount]W {
	var in [8]byte
	binary.LittleEndian.PutUint64(in[:], height)
	seed := crypto.HashData512(in[:])

	var r [constants.RegisterCount]W
	for i := range r {
		r[i] = W(binary.LittleEndian.Uint64(seed[8*i:]))
	}
	return r
}

// Hash runs p Iterations times over the seeded register file and hashes the
// program encoding followed by the final registers. Before iteration j the
// constant registers r4-r7 are reset to their seed value plus j, as the hash
// loop reloads them from fresh state every call.
func Hash[W randommath.Word](p *randommath.Program, height uint64) crypto.Hash {
	initial := SeedRegisters[W](height)
	r := initial
	for j := range Iterations {
		for k := constants.VariableRegisterCount; k < constants.RegisterCount; k++ {
			r[k] = initial[k] + W(j)
		}
		randommath.Execute(p, &r)
	}

	data := p.Bytes()
	wordBytes := randommath.WordBits[W]() / 8
	for _, x := range r {
		if wordBytes == 4 {
			data = binary.LittleEndian.AppendUint32(data, uint32(x))
		} else {
			data = binary.LittleEndian.AppendUint64(data, uint64(x))
		}
	}
	return crypto.HashData(data)
}

// Vector is the expected outcome for one height at both register widths
type Vector struct {
	Height uint64
	Hash32 crypto.Hash
	Hash64 crypto.Hash
}

// Compute generates the program for height and derives its vector
func Compute(height uint64) Vector {
	p := randommath.Generate(height)
	return Vector{
		Height: height,
		Hash32: Hash[uint32](p, height),
		Hash64: Hash[uint64](p, height),
	}
}
