package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteMessage writes content prefixed by its size as a little-endian uint32
func WriteMessage(w io.Writer, content []byte) error {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(content)))
	if _, err := w.Write(size[:]); err != nil {
		return fmt.Errorf("failed to write message size: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("failed to write message content: %w", err)
	}
	return nil
}

// ReadMessage reads a message written by WriteMessage, rejecting any size
// above maxSize before allocating
func ReadMessage(r io.Reader, maxSize uint32) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, fmt.Errorf("failed to read message size: %w", err)
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, maxSize)
	}
	content := make([]byte, n)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}
	return content, nil
}
