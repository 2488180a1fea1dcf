package randommath

import (
	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/pkg/log"
)

// Generate builds the program for a height using the reference byte source
func Generate(height uint64) *Program {
	return GenerateWithSource(height, Blake256Source{})
}

// GenerateWithSource generates as many random math operations as fit the
// latency and ALU restrictions. Decoding, the SUB/XOR collision fix, the ALU
// search and the placement or retry happen in exactly this order per byte;
// any other order yields a different program.
//
// Generation stops once every variable register reaches TotalLatency or
// after MaxRetries failed placements in total.
func GenerateWithSource(height uint64, source ByteSource) *Program {
	p := &Program{}
	stream := newByteStream(height, source)
	var s scheduler
	retries := 0

	for !s.saturated() && retries < constants.MaxRetries {
		op := DecodeCompact(stream.next())
		opcode := op.Opcode()
		dst, src := op.Dst, op.Src

		// dst is always below 4 so dst+4 is a valid constant register
		if (opcode == Sub || opcode == Xor) && dst == src {
			src = dst + constants.VariableRegisterCount
		}

		if !s.place(opcode, dst, src) {
			retries++
			continue
		}

		instr := Instruction{Opcode: opcode, Dst: dst, Src: src}
		// ADD is two bytes long, the second one is the signed constant C
		if opcode == Add {
			instr.C = int8(stream.next())
		}
		p.code[p.size] = instr
		p.size++
	}

	p.code[p.size] = Instruction{Opcode: Ret}
	p.size++

	log.Generator.Debug().
		Uint64("height", height).
		Int("size", p.size).
		Int("retries", retries).
		Msg("generated random math program")
	return p
}
