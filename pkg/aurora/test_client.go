package aurora

import (
	"context"
	"sync"
)

func CreateTestInverterReader() *TestInverterReader {
	return &TestInverterReader{
		Dsp: map[DspParameter]float64{
			DspPowerOutput:    2450,
			DspInputVoltage1:  312.4,
			DspInputCurrent1:  4.12,
			DspInputVoltage2:  298.7,
			DspInputCurrent2:  4.01,
			DspTemperature1:   41.3,
			DspTemperature2:   38.9,
			DspGridVoltage:    231.6,
			DspPeakPowerToday: 3120,
		},
		Energy: map[EnergyPeriod]int32{
			EnergyToday: 12840,
			EnergyWeek:  81230,
			EnergyMonth: 310455,
			EnergyYear:  2988120,
			EnergyTotal: 24511874,
		},
	}
}

// TestInverterReader serves canned values. FailAtCall makes the n-th read
// (1-based, counted across DSP and energy reads since the last Open) fail.
type TestInverterReader struct {
	Dsp        map[DspParameter]float64
	Energy     map[EnergyPeriod]int32
	OpenErr    error
	FailAtCall int
	FailErr    error

	mu        sync.Mutex
	connected bool
	calls     int
	opens     int
	closes    int
}

func (r *TestInverterReader) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	if r.OpenErr != nil {
		return r.OpenErr
	}
	if !r.connected {
		r.calls = 0
	}
	r.connected = true
	return nil
}

func (r *TestInverterReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	r.connected = false
	return nil
}

func (r *TestInverterReader) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *TestInverterReader) ReadDSP(ctx context.Context, p DspParameter) (float64, error) {
	if err := r.step(ctx, "read dsp "+p.String()); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Dsp[p], nil
}

func (r *TestInverterReader) ReadEnergy(ctx context.Context, period EnergyPeriod) (int32, error) {
	if err := r.step(ctx, "read energy "+period.String()); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Energy[period], nil
}

func (r *TestInverterReader) SetFailAtCall(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailAtCall = n
}

func (r *TestInverterReader) SetOpenErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OpenErr = err
}

func (r *TestInverterReader) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

func (r *TestInverterReader) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *TestInverterReader) step(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &ProtocolError{Op: op, Kind: ErrNoResponse, Err: err}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return &ProtocolError{Op: op, Kind: ErrNoResponse, Err: ErrNotConnected}
	}
	r.calls++
	if r.FailAtCall > 0 && r.calls == r.FailAtCall {
		err := r.FailErr
		if err == nil {
			err = &IoError{Op: "read", Err: ErrTimeout}
		}
		r.connected = false
		return &ProtocolError{Op: op, Kind: ErrNoResponse, Err: err}
	}
	return nil
}
