package randommath

import "github.com/eigerco/cnr/internal/constants"

// scheduler simulates a dual ALU pipeline over TotalLatency cycles. Only
// the highest numbered ALUs up to Opcode.ALUs may run an opcode.
type scheduler struct {
	latency [constants.RegisterCount]int // cycle at which each register is ready
	aluBusy [constants.TotalLatency][constants.ALUCount]bool
}

// saturated reports whether every variable register reached the cycle budget
func (s *scheduler) saturated() bool {
	for r := 0; r < constants.VariableRegisterCount; r++ {
		if s.latency[r] < constants.TotalLatency {
			return false
		}
	}
	return true
}

// place reserves an ALU for op once both operands are ready. The search
// advances one cycle past the cycle where a free ALU was found and that is
// the cycle that gets reserved; the result is ready op.Latency cycles later.
// It returns false, leaving the state untouched, when the result would not be
// ready within the budget.
func (s *scheduler) place(op Opcode, dst, src Reg) bool {
	cycle := max(s.latency[dst], s.latency[src])
	alu := -1
	for cycle < constants.TotalLatency && alu < 0 {
		for i := op.ALUs() - 1; i >= 0; i-- {
			if !s.aluBusy[cycle][i] {
				alu = i
				break
			}
		}
		cycle++
	}
	cycle += op.Latency()
	if cycle > constants.TotalLatency {
		return false
	}
	s.aluBusy[cycle-op.Latency()][alu] = true
	s.latency[dst] = cycle
	return true
}
