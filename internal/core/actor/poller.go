package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/core/events"
	"github.com/berfenger/aurora2mqtt/internal/core/poller"
	"github.com/berfenger/aurora2mqtt/internal/core/port"
	. "github.com/berfenger/aurora2mqtt/internal/util/actorutil"
	"github.com/berfenger/aurora2mqtt/pkg/aurora"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	POLLER_STATUS_OK    = "ok"
	POLLER_STATUS_ERROR = "error"

	pollerStatusInterval = 1 * time.Second
	pollerStopTimeout    = 2 * time.Second
)

type ReaderProvider func() (aurora.InverterReader, error)

// PollerActor runs the polling loop on its own goroutine and tracks cycle
// outcomes. Readings go straight to the sink; the actor only sees reports.
type PollerActor struct {
	config         *config.Config
	behavior       actor.Behavior
	readerProvider ReaderProvider
	sink           port.Sink
	eventStream    *eventstream.EventStream

	poller     *poller.Scheduler
	cancel     context.CancelFunc
	done       chan struct{}
	timer      *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	cycles        uint64
	failedCycles  uint64
	lastErr       error
	lastReadingAt time.Time
	lastStatus    string

	logger *zap.Logger
}

type cycleReported struct {
	report poller.CycleReport
}

type pollerStatusTick struct {
}

func NewPollerActor(config *config.Config, readerProvider ReaderProvider, sink port.Sink, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:         config,
		readerProvider: readerProvider,
		sink:           sink,
		eventStream:    eventStream,
		behavior:       actor.NewBehavior(),
		logger:         ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@default started")
		if err := state.start(ctx); err != nil {
			panic(err)
		}
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	case cycleReported:
		state.cycles++
		if msg.report.Err != nil {
			state.failedCycles++
			state.lastErr = msg.report.Err
		} else {
			state.lastErr = nil
			state.lastReadingAt = msg.report.Reading.Timestamp
		}
		state.publishStatus()
	case pollerStatusTick:
		state.publishStatus()
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default ActorHealthRequest")
		status := state.status()
		if state.lastErr != nil {
			status = fmt.Sprintf("%s: %s", status, state.lastErr)
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: state.running(),
			State:   status,
		})
	case domain.GetPollerStatusRequest:
		resp := domain.GetPollerStatusResponse{
			State:         state.status(),
			Cycles:        state.cycles,
			FailedCycles:  state.failedCycles,
			LastReadingAt: state.lastReadingAt,
		}
		if state.lastErr != nil {
			resp.LastCycleError = state.lastErr.Error()
		}
		ForRequest(msg).Respond(ctx, resp)
	default:
		state.logger.Debug("poller@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) start(ctx actor.Context) error {
	reader, err := state.readerProvider()
	if err != nil {
		return err
	}

	send := SendToSelfFunc(ctx)
	s, err := poller.New(poller.Config{
		Interval:       state.config.Monitor.PollInterval(),
		KeepConnection: state.config.Monitor.KeepConnection,
	}, reader, state.sink, state.logger, poller.WithObserver(func(report poller.CycleReport) {
		send(cycleReported{report: report})
	}))
	if err != nil {
		return err
	}
	state.poller = s

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	state.cancel = cancel
	state.done = done
	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()

	state.timer = scheduler.NewTimerScheduler(ctx)
	state.cancelTick = state.timer.SendRepeatedly(pollerStatusInterval, pollerStatusInterval, ctx.Self(), pollerStatusTick{})
	return nil
}

func (state *PollerActor) stop() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
		select {
		case <-state.done:
		case <-time.After(pollerStopTimeout):
			state.logger.Warn("poller@stop loop did not exit in time")
		}
	}
}

func (state *PollerActor) running() bool {
	if state.done == nil {
		return false
	}
	select {
	case <-state.done:
		return false
	default:
		return true
	}
}

// status is the scheduler state while a cycle is in flight, otherwise the
// outcome of the last cycle.
func (state *PollerActor) status() string {
	if state.poller == nil {
		return poller.StateIdle.String()
	}
	if current := state.poller.State(); current != poller.StateIdle {
		return current.String()
	}
	switch {
	case state.cycles == 0:
		return poller.StateIdle.String()
	case state.lastErr != nil:
		return POLLER_STATUS_ERROR
	default:
		return POLLER_STATUS_OK
	}
}

func (state *PollerActor) publishStatus() {
	status := state.status()
	if status == state.lastStatus || state.eventStream == nil {
		return
	}
	state.lastStatus = status
	state.eventStream.Publish(events.PollerStateUpdateEvent(status))
}
