package progress

import "context"

// Sink consumes progress events. Implementations must honor ctx deadlines
// and may be invoked from the hub's dispatch goroutine only.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// crawl driver stays agnostic about how events are buffered or persisted.
type Emitter interface {
	Emit(evt Event)
}
