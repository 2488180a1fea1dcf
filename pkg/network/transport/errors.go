package transport

import "errors"

var (
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrStreamClosed       = errors.New("stream closed")
	ErrListenerFailed     = errors.New("failed to create QUIC listener")
	ErrDialFailed         = errors.New("failed to dial peer")
	ErrConnFailed         = errors.New("failed to establish connection")
	ErrMessageTooLarge    = errors.New("message exceeds size limit")
	ErrBadSignature       = errors.New("program signature does not verify")
	ErrProgramMismatch    = errors.New("served program differs from local generation")
)
