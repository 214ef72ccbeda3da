package aurora

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNoResponse   = errors.New("aurora: no response")
	ErrInvalidFrame = errors.New("aurora: invalid frame")
)

// energyOffset is where the cumulated energy counter starts in a response.
const energyOffset = 4

// ProtocolError wraps a transport or codec failure of a single command.
// Kind is ErrNoResponse or ErrInvalidFrame; both Kind and Err match errors.Is.
type ProtocolError struct {
	Op   string
	Kind error
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Exchanger sends one request frame and returns one response frame.
type Exchanger interface {
	Exchange(ctx context.Context, req []byte) ([]byte, error)
}

type Client struct {
	conn       Exchanger
	address    byte
	instrument []Instrument
}

func NewClient(conn Exchanger, address byte, instrument ...Instrument) *Client {
	return &Client{
		conn:       conn,
		address:    address,
		instrument: instrument,
	}
}

func (c *Client) ReadDSP(ctx context.Context, p DspParameter) (float64, error) {
	payload, err := c.request(ctx, "read dsp "+p.String(), CommandDSP, byte(p))
	if err != nil {
		return 0, err
	}
	return DecodeDSP(payload, p), nil
}

// ReadEnergy returns the raw counter in watt-hours.
func (c *Client) ReadEnergy(ctx context.Context, period EnergyPeriod) (int32, error) {
	payload, err := c.request(ctx, "read energy "+period.String(), CommandCumulatedEnergy, byte(period))
	if err != nil {
		return 0, err
	}
	return DecodeEnergy(payload), nil
}

func (c *Client) request(ctx context.Context, op string, cmd Command, param byte) ([]byte, error) {
	defer RecordTimer(op, c.instrument)()

	resp, err := c.conn.Exchange(ctx, EncodeRequest(c.address, byte(cmd), param, 0))
	if err != nil {
		return nil, &ProtocolError{Op: op, Kind: ErrNoResponse, Err: err}
	}
	payload, err := ValidateResponse(resp)
	if err != nil {
		return nil, &ProtocolError{Op: op, Kind: ErrInvalidFrame, Err: err}
	}
	return payload, nil
}

// DecodeDSP reads payload bytes 6..7 as an unsigned little-endian value and
// applies the parameter scale.
func DecodeDSP(payload []byte, p DspParameter) float64 {
	raw := binary.LittleEndian.Uint16(payload[6:8])
	return float64(raw) * p.Scale()
}

// DecodeEnergy rebuilds the 32-bit counter from the payload using the byte
// order the inverters are known to answer with: offset+1, offset+0, offset+3,
// offset+0. offset+2 is never read.
func DecodeEnergy(payload []byte) int32 {
	b := payload[energyOffset : energyOffset+4]
	ordered := []byte{b[1], b[0], b[3], b[0]}
	return int32(binary.LittleEndian.Uint32(ordered))
}
