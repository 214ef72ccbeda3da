package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/core/port"
	"github.com/berfenger/aurora2mqtt/internal/core/service"
	"github.com/berfenger/aurora2mqtt/pkg/aurora"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePolling:
		return "polling"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	Interval time.Duration
	// KeepConnection reuses a healthy connection across cycles instead of
	// reconnecting every tick.
	KeepConnection bool
}

// CycleReport describes the outcome of one polling cycle. Reading is set only
// when the cycle succeeded.
type CycleReport struct {
	CycleId  string
	Started  time.Time
	Duration time.Duration
	Reading  *domain.Reading
	Err      error
}

type Option func(s *Scheduler)

func WithObserver(observer func(CycleReport)) Option {
	return func(s *Scheduler) {
		s.observer = observer
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithIdGenerator(newId func() string) Option {
	return func(s *Scheduler) {
		s.newId = newId
	}
}

// Scheduler polls one inverter on a fixed interval. It owns its reader: the
// reader must not be used by anything else while Run is active.
type Scheduler struct {
	config   Config
	reader   aurora.InverterReader
	sink     port.Sink
	logger   *zap.Logger
	observer func(CycleReport)
	now      func() time.Time
	newId    func() string

	state atomic.Int32
}

func New(config Config, reader aurora.InverterReader, sink port.Sink, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("poller: interval must be > 0, got %s", config.Interval)
	}
	if reader == nil {
		return nil, errors.New("poller: reader is required")
	}
	if sink == nil {
		return nil, errors.New("poller: sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		config: config,
		reader: reader,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		newId:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Run polls until ctx is cancelled. A failed cycle is logged and reported;
// the next attempt happens on the next tick. The connection is closed on exit.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	defer func() {
		_ = s.reader.Close()
		s.setState(StateIdle)
	}()

	s.logger.Info("poller started", zap.Duration("interval", s.config.Interval))
	for {
		if ctx.Err() != nil {
			s.logger.Info("poller stopped")
			return nil
		}

		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	cycleId := s.newId()
	started := s.now()

	reading, err := s.poll(ctx, cycleId)
	report := CycleReport{
		CycleId:  cycleId,
		Started:  started,
		Duration: s.now().Sub(started),
		Err:      err,
	}
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("polling cycle failed", zap.String("cycle", cycleId), zap.Error(err))
		}
	} else {
		report.Reading = &reading
		s.logger.Debug("polling cycle done", zap.String("cycle", cycleId), zap.Duration("took", report.Duration))
	}
	if s.observer != nil {
		s.observer(report)
	}
}

// PollOnce runs a single cycle: connect if needed, read the full telemetry
// set, and hand the Reading to the sink. On any failure the connection is
// closed and nothing reaches the sink.
func (s *Scheduler) PollOnce(ctx context.Context) (domain.Reading, error) {
	return s.poll(ctx, s.newId())
}

func (s *Scheduler) poll(ctx context.Context, cycleId string) (domain.Reading, error) {
	defer s.setState(StateIdle)

	if !s.reader.Connected() {
		s.setState(StateConnecting)
		if err := s.reader.Open(ctx); err != nil {
			return domain.Reading{}, fmt.Errorf("connect: %w", err)
		}
	}

	s.setState(StatePolling)
	dsp := make(map[aurora.DspParameter]float64, len(aurora.AllDspParameters))
	for _, p := range aurora.AllDspParameters {
		v, err := s.reader.ReadDSP(ctx, p)
		if err != nil {
			return domain.Reading{}, s.abandon(err)
		}
		dsp[p] = v
	}
	energy := make(map[aurora.EnergyPeriod]int32, len(aurora.AllEnergyPeriods))
	for _, period := range aurora.AllEnergyPeriods {
		v, err := s.reader.ReadEnergy(ctx, period)
		if err != nil {
			return domain.Reading{}, s.abandon(err)
		}
		energy[period] = v
	}

	reading := service.BuildReading(cycleId, s.now(), dsp, energy)

	if !s.config.KeepConnection {
		_ = s.reader.Close()
	}

	s.sink.Accept(reading)
	return reading, nil
}

func (s *Scheduler) abandon(err error) error {
	_ = s.reader.Close()
	return err
}
