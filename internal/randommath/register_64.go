//go:build randommath64

package randommath

// Register is the register type of this build, see constants.RegisterBits
type Register = uint64
