package randommath

import (
	"fmt"

	"github.com/eigerco/cnr/internal/constants"
)

type Opcode uint8

const (
	Mul Opcode = iota // a*b
	Add               // a+b + C, -128 <= C <= 127
	Sub               // a-b
	Ror               // rotate right "a" by "b mod width" bits
	Rol               // rotate left "a" by "b mod width" bits
	Xor               // a^b
	Ret               // finish execution

	InstructionCount = Ret // Opcodes the generator can emit as operative instructions
)

// opLatency cycles until the result of each operative opcode is ready
var opLatency = [InstructionCount]int{
	Mul: constants.MulLatency,
	Add: constants.OpLatency,
	Sub: constants.OpLatency,
	Ror: constants.OpLatency,
	Rol: constants.OpLatency,
	Xor: constants.OpLatency,
}

// opALUs number of ALUs able to run each operative opcode
var opALUs = [InstructionCount]int{
	Mul: constants.ALUCountMul,
	Add: constants.ALUCount,
	Sub: constants.ALUCount,
	Ror: constants.ALUCount,
	Rol: constants.ALUCount,
	Xor: constants.ALUCount,
}

func (o Opcode) String() string {
	switch o {
	case Mul:
		return "mul"
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Ror:
		return "ror"
	case Rol:
		return "rol"
	case Xor:
		return "xor"
	case Ret:
		return "ret"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// Latency cycles until the result of the opcode is ready, zero for Ret
func (o Opcode) Latency() int {
	if o >= InstructionCount {
		return 0
	}
	return opLatency[o]
}

// ALUs number of simulated ALUs able to execute the opcode, zero for Ret
func (o Opcode) ALUs() int {
	if o >= InstructionCount {
		return 0
	}
	return opALUs[o]
}
