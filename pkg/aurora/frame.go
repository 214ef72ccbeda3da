package aurora

import (
	"errors"
	"fmt"
)

const (
	// FrameSize is the length of every request and response on the wire.
	FrameSize = 10
	// PayloadSize is the part of a frame covered by the checksum.
	PayloadSize = 8
)

var (
	ErrInvalidLength    = errors.New("aurora: invalid frame length")
	ErrChecksumMismatch = errors.New("aurora: checksum mismatch")
)

// Checksum is the additive checksum used by the protocol: the plain sum of
// all byte values, truncated to 16 bits.
func Checksum(data []byte) uint16 {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return uint16(sum & 0xFFFF)
}

// EncodeRequest builds a request frame. Bytes 4..7 are reserved and left zero.
func EncodeRequest(address, command, param0, param1 byte) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = address
	frame[1] = command
	frame[2] = param0
	frame[3] = param1
	putChecksum(frame)
	return frame
}

// ValidateResponse checks length and checksum of a response frame and returns
// its 8 payload bytes.
func ValidateResponse(frame []byte) ([]byte, error) {
	if len(frame) != FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(frame), FrameSize)
	}
	want := Checksum(frame[:PayloadSize])
	got := uint16(frame[8]) | uint16(frame[9])<<8
	if got != want {
		return nil, fmt.Errorf("%w: frame carries 0x%04x, computed 0x%04x", ErrChecksumMismatch, got, want)
	}
	payload := make([]byte, PayloadSize)
	copy(payload, frame[:PayloadSize])
	return payload, nil
}

func putChecksum(frame []byte) {
	sum := Checksum(frame[:PayloadSize])
	frame[8] = byte(sum & 0xFF)
	frame[9] = byte(sum >> 8)
}
