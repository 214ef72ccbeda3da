package sink

import (
	"sync"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/internal/core/port"
)

// LastReading keeps the most recent Reading for concurrent readers.
type LastReading struct {
	mu      sync.RWMutex
	reading domain.Reading
	ok      bool
}

func NewLastReading() *LastReading {
	return &LastReading{}
}

func (l *LastReading) Accept(reading domain.Reading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reading = reading
	l.ok = true
}

// Get returns the last Reading and false when none was captured yet.
func (l *LastReading) Get() (domain.Reading, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reading, l.ok
}

// Fanout hands every Reading to each sink in order.
type Fanout []port.Sink

func (f Fanout) Accept(reading domain.Reading) {
	for _, s := range f {
		s.Accept(reading)
	}
}

// EventStreamSink publishes a domain.ReadingEvent per Reading.
type EventStreamSink struct {
	stream *eventstream.EventStream
}

func NewEventStreamSink(stream *eventstream.EventStream) *EventStreamSink {
	return &EventStreamSink{stream: stream}
}

func (e *EventStreamSink) Accept(reading domain.Reading) {
	e.stream.Publish(domain.ReadingEvent{Reading: reading})
}
