package replay

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"pokerbotserver/internal/engine"
)

// DefaultQueueDepth bounds how many pending records a Recorder will
// buffer before dropping the oldest; §5/§9: promise-chained persistence
// becomes fire-and-forget background work gated by a bounded queue so
// the hand-complete path never blocks on slow I/O.
const DefaultQueueDepth = 1024

// Recorder subscribes to an Engine's events and turns them into Records
// for a Sink. The conversion runs in the listener, on the table's actor
// goroutine; the Sink writes run off it, on the Recorder's own
// goroutine. It is the only writer of its Sink.
type Recorder struct {
	gameID   string
	sink     Sink
	queue    chan Record
	done     chan struct{}
	dropped  int64
	lastTurn map[string]time.Time
}

// NewRecorder starts a background worker draining into sink. Call
// Attach to wire it to an Engine, and Close when the table is torn down.
func NewRecorder(gameID string, sink Sink, queueDepth int) *Recorder {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	r := &Recorder{
		gameID:   gameID,
		sink:     sink,
		queue:    make(chan Record, queueDepth),
		done:     make(chan struct{}),
		lastTurn: make(map[string]time.Time),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	ctx := context.Background()
	for rec := range r.queue {
		if err := r.sink.Write(ctx, rec); err != nil {
			log.Printf("replay: sink write failed for game %s seq %d: %v", r.gameID, rec.SequenceID, err)
		}
	}
}

// Attach registers a Listener on e that converts every Event into a
// Record and enqueues it. The returned token can be passed to
// e.OffEvent to detach.
func (r *Recorder) Attach(e *engine.Engine) int {
	return e.OnEvent(func(ev engine.Event) {
		r.enqueue(r.toRecord(ev))
	})
}

func (r *Recorder) toRecord(ev engine.Event) Record {
	rec := Record{
		SequenceID: ev.SequenceID,
		GameID:     r.gameID,
		Type:       ev.Type.String(),
		Timestamp:  ev.Timestamp.UnixMilli(),
		HandNumber: ev.HandNumber,
		Phase:      ev.Phase.String(),
		PlayerID:   ev.PlayerID,
	}
	if ev.Action != nil {
		rec.Action = &ActionRecord{PlayerID: ev.Action.PlayerID, Kind: ev.Action.Kind.String(), Amount: ev.Action.Amount}
	}
	rec.GameStateBefore = ToStateSnapshot(ev.Before)
	rec.GameStateAfter = ToStateSnapshot(ev.After)
	return rec
}

// enqueue is fire-and-forget: a full queue drops the oldest record
// rather than applying backpressure to the table worker.
func (r *Recorder) enqueue(rec Record) {
	select {
	case r.queue <- rec:
	default:
		select {
		case <-r.queue:
			atomic.AddInt64(&r.dropped, 1)
		default:
		}
		select {
		case r.queue <- rec:
		default:
			atomic.AddInt64(&r.dropped, 1)
		}
	}
}

// Dropped reports how many records were discarded because the queue
// was full and the sink could not keep up.
func (r *Recorder) Dropped() int64 {
	return atomic.LoadInt64(&r.dropped)
}

// Close stops accepting new records, drains the queue, and closes the
// underlying sink.
func (r *Recorder) Close() error {
	close(r.queue)
	<-r.done
	return r.sink.Close()
}
