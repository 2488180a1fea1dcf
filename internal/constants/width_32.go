//go:build !randommath64

package constants

// RegisterBits is the width of the random math registers for this build
const RegisterBits = 32
