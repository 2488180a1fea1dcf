package constants

// Constants shared by the random math generator, the interpreter and the tests

const (
	// Scheduling model
	MulLatency   = 3               // Cycles before a MUL result is available
	OpLatency    = 1               // Cycles before any other result is available
	TotalLatency = 18 * MulLatency // Cycle budget of a program, equivalent to 18 multiplications
	ALUCountMul  = 1               // ALUs able to multiply; modern CPUs typically have only one
	ALUCount     = 2               // ALUs used in total; the rest are left for the main loop code

	// Generator limits
	MaxRetries      = 64                        // Failed placements per program, never reset on success
	MaxInstructions = TotalLatency*ALUCount + 1 // Operative instructions a program can hold
	ProgramCapacity = MaxInstructions + 1       // Operative instructions plus the final RET
	SeedSize        = 32                        // Size of the pseudorandom byte buffer

	// Register file
	RegisterCount         = 8 // Total registers
	VariableRegisterCount = 4 // r0-r3 carry hash state and are the only destinations
)
