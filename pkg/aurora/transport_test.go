package aurora

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInverter answers every 10-byte request with respond(req).
// A nil answer makes it hang up without replying.
type fakeInverter struct {
	ln      net.Listener
	respond func(req []byte) []byte
}

func startFakeInverter(t *testing.T, respond func(req []byte) []byte) *fakeInverter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeInverter{ln: ln, respond: respond}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeInverter) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			req := make([]byte, FrameSize)
			for {
				if _, err := io.ReadFull(conn, req); err != nil {
					return
				}
				resp := f.respond(req)
				if resp == nil {
					return
				}
				if _, err := conn.Write(resp); err != nil {
					return
				}
			}
		}(conn)
	}
}

func (f *fakeInverter) hostPort(t *testing.T) (string, uint) {
	host, portStr, err := net.SplitHostPort(f.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)
	return host, uint(port)
}

// dspAnswer replies with the raw little-endian value for each DSP code.
func dspAnswer(values map[DspParameter]uint16) func(req []byte) []byte {
	return func(req []byte) []byte {
		v := values[DspParameter(req[2])]
		return frameFromPayload([]byte{req[0], req[1], 0, 0, 0, 0, byte(v), byte(v >> 8)})
	}
}

func TestExchangeOverTCP(t *testing.T) {

	assert := assert.New(t)

	inv := startFakeInverter(t, dspAnswer(map[DspParameter]uint16{
		DspGridVoltage:   2316,
		DspInputCurrent1: 412,
	}))
	host, port := inv.hostPort(t)

	conn, err := Dial(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	client := NewClient(conn, 2)
	v, err := client.ReadDSP(context.Background(), DspGridVoltage)
	assert.NoError(err)
	assert.InDelta(231.6, v, 1e-9)

	// connection is reused for the next request
	v, err = client.ReadDSP(context.Background(), DspInputCurrent1)
	assert.NoError(err)
	assert.InDelta(4.12, v, 1e-9)
	assert.True(conn.Connected())
}

func TestExchangeShortRead(t *testing.T) {

	assert := assert.New(t)

	inv := startFakeInverter(t, func(req []byte) []byte { return nil })
	host, port := inv.hostPort(t)

	conn, err := Dial(context.Background(), host, port, time.Second)
	require.NoError(t, err)

	_, err = conn.Exchange(context.Background(), EncodeRequest(2, 59, 1, 0))
	assert.ErrorIs(err, ErrShortRead)
	var ioErr *IoError
	assert.ErrorAs(err, &ioErr)
	assert.False(conn.Connected(), "failed exchange closes the connection")

	_, err = conn.Exchange(context.Background(), EncodeRequest(2, 59, 1, 0))
	assert.ErrorIs(err, ErrNotConnected)
}

func TestExchangeTimeout(t *testing.T) {

	assert := assert.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		// accept and stay silent
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.ParseUint(portStr, 10, 16)

	conn, err := Dial(context.Background(), host, uint(port), 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = conn.Exchange(context.Background(), EncodeRequest(2, 59, 1, 0))
	assert.ErrorIs(err, ErrTimeout)
	assert.Less(time.Since(start), time.Second)
	assert.False(conn.Connected())
}

func TestExchangeCancelled(t *testing.T) {

	assert := assert.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.ParseUint(portStr, 10, 16)

	conn, err := Dial(context.Background(), host, uint(port), 5*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = conn.Exchange(ctx, EncodeRequest(2, 59, 1, 0))
	assert.ErrorIs(err, context.Canceled)
	assert.Less(time.Since(start), time.Second)
}

func TestDialRefused(t *testing.T) {

	assert := assert.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.ParseUint(portStr, 10, 16)

	conn, err := Dial(context.Background(), host, uint(port), 200*time.Millisecond)
	assert.Nil(conn)
	var connErr *ConnectError
	assert.ErrorAs(err, &connErr)
	assert.Equal(addr, connErr.Addr)
}

func TestCloseIsIdempotent(t *testing.T) {

	assert := assert.New(t)

	var never *Conn
	assert.NoError(never.Close())
	assert.False(never.Connected())

	inv := startFakeInverter(t, func(req []byte) []byte { return nil })
	host, port := inv.hostPort(t)
	conn, err := Dial(context.Background(), host, port, time.Second)
	require.NoError(t, err)

	assert.NoError(conn.Close())
	assert.NoError(conn.Close())
	assert.False(conn.Connected())
}

func TestInverterReaderReconnects(t *testing.T) {

	assert := assert.New(t)

	var answered atomic.Bool
	inv := startFakeInverter(t, func(req []byte) []byte {
		if answered.CompareAndSwap(false, true) {
			resp := frameFromPayload(make([]byte, PayloadSize))
			resp[9] ^= 0x01
			return resp
		}
		return dspAnswer(map[DspParameter]uint16{DspPowerOutput: 1500})(req)
	})
	host, port := inv.hostPort(t)

	reader, err := CreateInverterReader(host, port, 2, time.Second, zap.Must(zap.NewDevelopment()), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, reader.Open(ctx))
	_, err = reader.ReadDSP(ctx, DspPowerOutput)
	assert.ErrorIs(err, ErrInvalidFrame)
	assert.False(reader.Connected(), "corrupt frame drops the connection")

	_, err = reader.ReadDSP(ctx, DspPowerOutput)
	assert.ErrorIs(err, ErrNotConnected)

	require.NoError(t, reader.Open(ctx))
	v, err := reader.ReadDSP(ctx, DspPowerOutput)
	assert.NoError(err)
	assert.InDelta(1500, v, 1e-9)
	assert.NoError(reader.Close())
	assert.NoError(reader.Close())
}

func TestCreateInverterReaderValidation(t *testing.T) {

	assert := assert.New(t)

	_, err := CreateInverterReader("", DefaultPort, DefaultAddress, DefaultTimeout, nil, nil)
	assert.Error(err)
	_, err = CreateInverterReader("inverter.local", 0, DefaultAddress, DefaultTimeout, nil, nil)
	assert.Error(err)
	_, err = CreateInverterReader("inverter.local", 70000, DefaultAddress, DefaultTimeout, nil, nil)
	assert.Error(err)
	_, err = CreateInverterReader("inverter.local", DefaultPort, DefaultAddress, 0, nil, nil)
	assert.Error(err)

	reader, err := CreateInverterReader("inverter.local", DefaultPort, DefaultAddress, DefaultTimeout, nil, nil)
	assert.NoError(err)
	assert.False(reader.Connected())
	assert.NoError(reader.Close())
}
