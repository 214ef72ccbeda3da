package aurora

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAddress = 2
	DefaultPort    = 8899
	DefaultTimeout = 400 * time.Millisecond
)

// InverterReader owns one inverter connection. It is not safe for concurrent
// use; a single poller is expected to drive it.
type InverterReader interface {
	Open(ctx context.Context) error
	Close() error
	Connected() bool
	ReadDSP(ctx context.Context, p DspParameter) (float64, error)
	ReadEnergy(ctx context.Context, period EnergyPeriod) (int32, error)
}

type TCPInverterReader struct {
	host       string
	port       uint
	address    byte
	timeout    time.Duration
	logger     *zap.Logger
	instrument []Instrument

	conn   *Conn
	client *Client
}

func (r *TCPInverterReader) Open(ctx context.Context) error {
	if r.conn.Connected() {
		return nil
	}
	conn, err := Dial(ctx, r.host, r.port, r.timeout)
	if err != nil {
		return err
	}
	r.conn = conn
	r.client = NewClient(conn, r.address, r.instrument...)
	r.logger.Debug("inverter connected", zap.String("addr", conn.Addr()))
	return nil
}

func (r *TCPInverterReader) Close() error {
	err := r.conn.Close()
	r.conn = nil
	r.client = nil
	return err
}

func (r *TCPInverterReader) Connected() bool {
	return r.conn.Connected()
}

func (r *TCPInverterReader) ReadDSP(ctx context.Context, p DspParameter) (float64, error) {
	if !r.Connected() {
		return 0, &ProtocolError{Op: "read dsp " + p.String(), Kind: ErrNoResponse, Err: ErrNotConnected}
	}
	v, err := r.client.ReadDSP(ctx, p)
	if err != nil {
		r.dropOnFailure(err)
	}
	return v, err
}

func (r *TCPInverterReader) ReadEnergy(ctx context.Context, period EnergyPeriod) (int32, error) {
	if !r.Connected() {
		return 0, &ProtocolError{Op: "read energy " + period.String(), Kind: ErrNoResponse, Err: ErrNotConnected}
	}
	v, err := r.client.ReadEnergy(ctx, period)
	if err != nil {
		r.dropOnFailure(err)
	}
	return v, err
}

// a corrupt frame leaves the stream position unknown, so the connection is
// dropped as well as after I/O failures
func (r *TCPInverterReader) dropOnFailure(err error) {
	r.logger.Debug("dropping inverter connection", zap.Error(err))
	_ = r.Close()
}

func CreateInverterReader(host string, port uint, address uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *Instrument) (InverterReader, error) {
	if host == "" {
		return nil, errors.New("aurora: host is required")
	}
	if port == 0 || port > 65535 {
		return nil, fmt.Errorf("aurora: port %d out of range", port)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("aurora: timeout must be > 0, got %s", timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("target", "inverter"), zap.Uint8("inverter", address))

	// instrumentation
	var inst []Instrument
	if logInst := debugLoggerInstrumentation(logger); logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &TCPInverterReader{
		host:       host,
		port:       port,
		address:    address,
		timeout:    timeout,
		logger:     logger,
		instrument: inst,
	}, nil
}
