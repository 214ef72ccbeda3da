package aurora

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameFromPayload(payload []byte) []byte {
	frame := make([]byte, FrameSize)
	copy(frame, payload)
	putChecksum(frame)
	return frame
}

func TestEncodeRequestLayout(t *testing.T) {

	assert := assert.New(t)

	frame := EncodeRequest(2, byte(CommandDSP), byte(DspGridVoltage), 0)

	assert.Len(frame, FrameSize)
	assert.Equal([]byte{2, 59, 1, 0, 0, 0, 0, 0}, frame[:PayloadSize], "header and reserved bytes")
	// 2 + 59 + 1 = 62
	assert.Equal(byte(62), frame[8], "checksum low byte")
	assert.Equal(byte(0), frame[9], "checksum high byte")
}

func TestChecksumCarriesIntoHighByte(t *testing.T) {

	assert := assert.New(t)

	data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	assert.Equal(uint16(8*255), Checksum(data))

	frame := frameFromPayload(data)
	assert.Equal(byte(0xF8), frame[8])
	assert.Equal(byte(0x07), frame[9])
}

func TestValidateResponseRoundTrip(t *testing.T) {

	require := require.New(t)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		payload := make([]byte, PayloadSize)
		for j := range payload {
			payload[j] = byte(rng.Intn(256))
		}
		got, err := ValidateResponse(frameFromPayload(payload))
		require.NoError(err)
		require.Equal(payload, got)
	}
}

func TestValidateResponseDetectsSingleByteCorruption(t *testing.T) {

	require := require.New(t)

	payload := []byte{0x02, 0x3B, 0x00, 0x06, 0x12, 0x34, 0xE8, 0x03}
	for i := 0; i < PayloadSize; i++ {
		for _, delta := range []byte{1, 0x10, 0x80, 0xFF} {
			frame := frameFromPayload(payload)
			frame[i] += delta
			_, err := ValidateResponse(frame)
			require.ErrorIs(err, ErrChecksumMismatch, "byte %d delta %d", i, delta)
		}
	}
}

func TestValidateResponseLength(t *testing.T) {

	assert := assert.New(t)

	for _, n := range []int{0, 9, 11} {
		_, err := ValidateResponse(make([]byte, n))
		assert.ErrorIs(err, ErrInvalidLength, "length %d", n)
		assert.False(errors.Is(err, ErrChecksumMismatch), "length %d must not reach checksum", n)
	}
}

func TestValidateResponseDoesNotAliasInput(t *testing.T) {

	assert := assert.New(t)

	frame := frameFromPayload([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	payload, err := ValidateResponse(frame)
	assert.NoError(err)

	payload[0] = 99
	assert.Equal(byte(1), frame[0])
}
