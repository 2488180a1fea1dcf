package randommath

import "errors"

// Errors returned when decoding or building a program from untrusted input.
// Generated programs never fail.
var (
	ErrMalformedProgram   = errors.New("malformed program")
	ErrProgramTooLong     = errors.New("program too long")
	ErrMissingRet         = errors.New("program does not end with ret")
	ErrMisplacedRet       = errors.New("ret before the end of the program")
	ErrInvalidOpcode      = errors.New("invalid opcode")
	ErrInvalidRegister    = errors.New("invalid register")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrSelfConflict       = errors.New("sub/xor with the same source and destination")
)
