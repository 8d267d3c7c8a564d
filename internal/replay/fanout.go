package replay

import "context"

// FanoutSink writes every record to each of its member sinks in turn,
// collecting the first error but still attempting the remaining sinks.
// This lets a table stream replay events to Kafka for live consumers
// and to ClickHouse for durable storage without the engine knowing
// about either.
type FanoutSink struct {
	sinks []Sink
}

// NewFanoutSink combines sinks into one.
func NewFanoutSink(sinks ...Sink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (f *FanoutSink) Write(ctx context.Context, rec Record) error {
	var first error
	for _, sink := range f.sinks {
		if err := sink.Write(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *FanoutSink) Close() error {
	var first error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
