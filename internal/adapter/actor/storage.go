package actor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/adapter/persistence"
	"github.com/berfenger/aurora2mqtt/internal/config"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/core/port"
	"github.com/berfenger/aurora2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const storageTimeout = 5 * time.Second

// StorageActor persists every Reading published on the event stream and
// serves history queries. Database work runs off the actor goroutine.
type StorageActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription

	db        *sql.DB
	repo      port.ReadingRepository
	retention *persistence.Retention
	cancel    context.CancelFunc

	stored  uint64
	failed  uint64
	lastErr error

	logger *zap.Logger
}

func NewStorageActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *StorageActor {
	act := &StorageActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_STORAGE, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *StorageActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *StorageActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("storage@starting started", zap.String("path", state.config.Storage.DBPath))

		runCtx, cancel := context.WithCancel(context.Background())
		state.cancel = cancel

		openCtx, openCancel := context.WithTimeout(runCtx, storageTimeout)
		db, err := persistence.Open(openCtx, state.config.Storage.DBPath)
		openCancel()
		if err != nil {
			// let the supervisor retry
			panic(err)
		}
		state.db = db
		state.repo = persistence.NewReadingRepo(db)

		state.retention = persistence.NewRetention(state.repo, state.config.Storage.RetentionDays,
			state.config.Storage.RetentionCron, state.logger)
		if err := state.retention.Start(runCtx); err != nil {
			panic(err)
		}

		send := actorutil.SendToSelfFunc(ctx)
		state.subscription = state.eventStream.Subscribe(func(evt any) {
			if ev, ok := evt.(domain.ReadingEvent); ok {
				send(ev)
			}
		})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("storage@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *StorageActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("storage@default ActorHealthRequest")
		resp := domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_STORAGE,
			Healthy: true,
			State:   fmt.Sprintf("stored=%d failed=%d", state.stored, state.failed),
		}
		if state.lastErr != nil {
			resp.State = fmt.Sprintf("%s last_error=%s", resp.State, state.lastErr)
		}
		ctx.Respond(resp)
	case domain.ReadingEvent:
		state.logger.Debug("storage@default ReadingEvent", zap.String("cycle", msg.Reading.CycleId))
		repo := state.repo
		reading := msg.Reading
		actorutil.NewBackgroundTask(ctx, func() (*domain.StoreReadingResponse, error) {
			storeCtx, cancel := context.WithTimeout(context.Background(), storageTimeout)
			defer cancel()
			err := repo.Store(storeCtx, reading)
			return &domain.StoreReadingResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				CycleId:            reading.CycleId,
			}, nil
		}).WithTimeout(storageTimeout).Recover(func(err error) domain.StoreReadingResponse {
			return domain.StoreReadingResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				CycleId:            reading.CycleId,
			}
		}).PipeTo(ctx.Self())
	case domain.StoreReadingResponse:
		if msg.HasResponseError() {
			state.failed++
			state.lastErr = msg.GetResponseError()
			state.logger.Error("storage@default could not store reading", zap.String("cycle", msg.CycleId), zap.Error(msg.GetResponseError()))
		} else {
			state.stored++
			state.lastErr = nil
		}
	case domain.GetHistoryRequest:
		state.logger.Debug("storage@default GetHistoryRequest", zap.Time("since", msg.Since))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		if replyTo == nil {
			return
		}
		repo := state.repo
		since := msg.Since
		actorutil.NewBackgroundTask(ctx, func() (*domain.GetHistoryResponse, error) {
			queryCtx, cancel := context.WithTimeout(context.Background(), storageTimeout)
			defer cancel()
			readings, err := repo.ListSince(queryCtx, since)
			if err != nil {
				return nil, err
			}
			return &domain.GetHistoryResponse{Readings: readings}, nil
		}).WithTimeout(storageTimeout).Recover(func(err error) domain.GetHistoryResponse {
			return domain.GetHistoryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		}).PipeTo(replyTo)
	case domain.PruneReadingsRequest:
		state.logger.Debug("storage@default PruneReadingsRequest", zap.Time("before", msg.Before))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		repo := state.repo
		before := msg.Before
		task := actorutil.NewBackgroundTask(ctx, func() (*domain.PruneReadingsResponse, error) {
			pruneCtx, cancel := context.WithTimeout(context.Background(), storageTimeout)
			defer cancel()
			deleted, err := repo.DeleteBefore(pruneCtx, before)
			if err != nil {
				return nil, err
			}
			return &domain.PruneReadingsResponse{Deleted: deleted}, nil
		}).WithTimeout(storageTimeout)
		if replyTo != nil {
			task.Recover(func(err error) domain.PruneReadingsResponse {
				return domain.PruneReadingsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				}
			}).PipeTo(replyTo)
		} else {
			logger := state.logger
			go task.OnError(func(err error) {
				logger.Warn("storage@default prune failed", zap.Error(err))
			}).OnSuccess(func(resp domain.PruneReadingsResponse) {
				logger.Info("storage@default pruned readings", zap.Int64("deleted", resp.Deleted))
			}).Run()
		}
	default:
		state.logger.Debug("storage@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StorageActor) stop() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	if state.retention != nil {
		state.retention.Stop()
		state.retention = nil
	}
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
	if state.db != nil {
		if err := state.db.Close(); err != nil {
			state.logger.Warn("storage: close database", zap.Error(err))
		}
		state.db = nil
	}
}
