package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/pkg/aurora"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collectSink struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (s *collectSink) Accept(r domain.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

func (s *collectSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type reports struct {
	mu   sync.Mutex
	list []CycleReport
}

func (r *reports) add(report CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, report)
}

func (r *reports) snapshot() []CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleReport(nil), r.list...)
}

func sequentialIds() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("cycle-%d", n)
	}
}

func newScheduler(t *testing.T, reader aurora.InverterReader, sink *collectSink, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(Config{Interval: 10 * time.Millisecond}, reader, sink, zap.Must(zap.NewDevelopment()), opts...)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {

	assert := assert.New(t)

	reader := aurora.CreateTestInverterReader()
	sink := &collectSink{}

	_, err := New(Config{Interval: 0}, reader, sink, nil)
	assert.Error(err)
	_, err = New(Config{Interval: -time.Second}, reader, sink, nil)
	assert.Error(err)
	_, err = New(Config{Interval: time.Second}, nil, sink, nil)
	assert.Error(err)
	_, err = New(Config{Interval: time.Second}, reader, nil, nil)
	assert.Error(err)

	s, err := New(Config{Interval: time.Second}, reader, sink, nil)
	assert.NoError(err)
	assert.Equal(StateIdle, s.State())
}

func TestPollOnceEmitsReading(t *testing.T) {

	assert := assert.New(t)

	ts := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	reader := aurora.CreateTestInverterReader()
	sink := &collectSink{}
	s := newScheduler(t, reader, sink, WithClock(func() time.Time { return ts }), WithIdGenerator(sequentialIds()))

	r, err := s.PollOnce(context.Background())
	assert.NoError(err)
	assert.Equal("cycle-1", r.CycleId)
	assert.Equal(ts, r.Timestamp)
	assert.Equal(2450.0, r.PowerOutput)
	assert.NotNil(r.EfficiencyPercent)

	assert.Equal(1, sink.Len())
	assert.Equal(r, sink.readings[0])
	assert.False(reader.Connected(), "connection is closed after the cycle by default")
	assert.Equal(StateIdle, s.State())
}

func TestPollOnceKeepsConnection(t *testing.T) {

	assert := assert.New(t)

	reader := aurora.CreateTestInverterReader()
	sink := &collectSink{}
	s, err := New(Config{Interval: time.Second, KeepConnection: true}, reader, sink, zap.NewNop())
	require.NoError(t, err)

	_, err = s.PollOnce(context.Background())
	assert.NoError(err)
	_, err = s.PollOnce(context.Background())
	assert.NoError(err)

	assert.True(reader.Connected())
	assert.Equal(1, reader.Opens())
	assert.Equal(2, sink.Len())
}

func TestConnectFailureEmitsNothing(t *testing.T) {

	assert := assert.New(t)

	connErr := &aurora.ConnectError{Addr: "10.0.0.9:8899", Err: errors.New("connection refused")}
	reader := aurora.CreateTestInverterReader()
	reader.SetOpenErr(connErr)
	sink := &collectSink{}
	s := newScheduler(t, reader, sink)

	_, err := s.PollOnce(context.Background())
	var got *aurora.ConnectError
	assert.ErrorAs(err, &got)
	assert.Equal(0, sink.Len())
	assert.Equal(StateIdle, s.State())

	// next tick recovers once the inverter is reachable
	reader.SetOpenErr(nil)
	_, err = s.PollOnce(context.Background())
	assert.NoError(err)
	assert.Equal(1, sink.Len())
}

func TestFailedReadEmitsNoPartialReading(t *testing.T) {

	assert := assert.New(t)

	reader := aurora.CreateTestInverterReader()
	reader.SetFailAtCall(4)
	sink := &collectSink{}
	s := newScheduler(t, reader, sink, WithIdGenerator(sequentialIds()))

	_, err := s.PollOnce(context.Background())
	assert.ErrorIs(err, aurora.ErrNoResponse)
	assert.ErrorIs(err, aurora.ErrTimeout)
	assert.Equal(0, sink.Len())
	assert.False(reader.Connected(), "failed cycle closes the connection")
	assert.GreaterOrEqual(reader.Closes(), 1)

	reader.SetFailAtCall(0)
	r, err := s.PollOnce(context.Background())
	assert.NoError(err)
	assert.Equal("cycle-2", r.CycleId)
	assert.Equal(2, reader.Opens(), "reconnects after a failed cycle")
	assert.Equal(1, sink.Len())
}

func TestFailureAtEveryPositionEmitsNothing(t *testing.T) {

	assert := assert.New(t)

	total := len(aurora.AllDspParameters) + len(aurora.AllEnergyPeriods)
	for n := 1; n <= total; n++ {
		reader := aurora.CreateTestInverterReader()
		reader.SetFailAtCall(n)
		sink := &collectSink{}
		s := newScheduler(t, reader, sink)

		_, err := s.PollOnce(context.Background())
		assert.Error(err, "failure at read %d", n)
		assert.Equal(0, sink.Len(), "failure at read %d", n)
	}
}

func TestEfficiencyAbsentWithoutCurrent(t *testing.T) {

	assert := assert.New(t)

	reader := aurora.CreateTestInverterReader()
	reader.Dsp[aurora.DspInputCurrent1] = 0
	reader.Dsp[aurora.DspInputCurrent2] = 0
	sink := &collectSink{}
	s := newScheduler(t, reader, sink)

	r, err := s.PollOnce(context.Background())
	assert.NoError(err)
	assert.Nil(r.EfficiencyPercent)
	assert.Equal(1, sink.Len())
}

func TestRunSurvivesFailuresAndStopsOnCancel(t *testing.T) {

	assert := assert.New(t)

	reader := aurora.CreateTestInverterReader()
	reader.SetOpenErr(errors.New("no route to host"))
	sink := &collectSink{}
	rep := &reports{}
	s := newScheduler(t, reader, sink, WithObserver(rep.add))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(func() bool { return len(rep.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(0, sink.Len())
	for _, r := range rep.snapshot() {
		assert.Error(r.Err)
		assert.Nil(r.Reading)
	}

	// inverter comes back
	reader.SetOpenErr(nil)
	assert.Eventually(func() bool { return sink.Len() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(reader.Connected())
	assert.Equal(StateIdle, s.State())
}

func TestRunDoesNotStartWhenCancelled(t *testing.T) {

	assert := assert.New(t)

	reader := aurora.CreateTestInverterReader()
	sink := &collectSink{}
	s := newScheduler(t, reader, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(s.Run(ctx))
	assert.Equal(0, reader.Opens())
	assert.Equal(0, sink.Len())
}

func TestStateString(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("idle", StateIdle.String())
	assert.Equal("connecting", StateConnecting.String())
	assert.Equal("polling", StatePolling.String())
}
