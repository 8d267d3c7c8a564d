package replay

import "context"

// Sink is the durable-storage side of the replay pipeline. Implementations
// must not block the caller for long; Recorder already runs them off the
// table's hot path, but a sink is still expected to apply its own
// internal batching/timeouts.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// MemorySink accumulates records in process memory. It is the default
// sink for tests and for a table that has no durable replay storage
// configured.
type MemorySink struct {
	records []Record
}

// NewMemorySink constructs an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, rec Record) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Records returns every record written so far, in arrival order.
func (s *MemorySink) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
