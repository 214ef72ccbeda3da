package port

import (
	"context"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
)

// Sink receives every Reading the poller emits. Accept must not block the
// poller for long; failures are the sink's own concern.
type Sink interface {
	Accept(reading domain.Reading)
}

type SinkFunc func(reading domain.Reading)

func (f SinkFunc) Accept(reading domain.Reading) {
	f(reading)
}

type ReadingRepository interface {
	Store(ctx context.Context, reading domain.Reading) error
	ListSince(ctx context.Context, since time.Time) ([]domain.Reading, error)
	Latest(ctx context.Context) (*domain.Reading, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
