package controller

import (
	"fmt"
	"log"
	"sync"
	"time"

	"pokerbotserver/internal/engine"
	"pokerbotserver/internal/metrics"
	"pokerbotserver/internal/replay"
	"pokerbotserver/pkg/poker"
)

// tableActor serializes every mutating operation on one table behind a
// single goroutine consuming a queue of closures, the single-writer
// actor §5 requires (the teacher's Table.gameLoop select-loop,
// generalized from one fixed message type to arbitrary commands since
// the engine already knows how to apply each one).
type tableActor struct {
	id  string
	cfg engine.TableConfig

	engine *engine.Engine
	cmd    chan func()
	stop   chan struct{}
	wg     sync.WaitGroup

	mu             sync.Mutex
	deferredUnseat map[string]bool
	gcTimer        *time.Timer
	handTimer      *time.Timer
	handStartedAt  time.Time
	recorder       *replay.Recorder

	onExpire     func()    // invoked when the empty-table GC window elapses
	onHandPlayed func(int) // invoked with the post-hand seat count on EventHandComplete
}

func newTableActor(cfg engine.TableConfig, shuffler poker.Shuffler, sink replay.Sink) *tableActor {
	t := &tableActor{
		id:             cfg.TableID,
		cfg:            cfg,
		engine:         engine.NewEngine(cfg, shuffler),
		cmd:            make(chan func(), 64),
		stop:           make(chan struct{}),
		deferredUnseat: make(map[string]bool),
	}
	t.engine.OnEvent(t.onEngineEvent)
	if sink != nil {
		t.recorder = replay.NewRecorder(cfg.TableID, sink, replay.DefaultQueueDepth)
		t.recorder.Attach(t.engine)
	}
	t.wg.Add(1)
	go t.run()
	return t
}

func (t *tableActor) run() {
	defer t.wg.Done()
	for {
		select {
		case fn := <-t.cmd:
			fn()
		case <-t.stop:
			return
		}
	}
}

// do runs fn on the actor goroutine and blocks for its result, giving
// callers synchronous semantics over an asynchronous queue.
func (t *tableActor) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case t.cmd <- func() { result <- fn() }:
	case <-t.stop:
		return fmt.Errorf("controller: table %s is shutting down", t.id)
	}
	return <-result
}

func (t *tableActor) shutdown() {
	t.mu.Lock()
	if t.gcTimer != nil {
		t.gcTimer.Stop()
	}
	if t.handTimer != nil {
		t.handTimer.Stop()
	}
	t.mu.Unlock()
	close(t.stop)
	t.wg.Wait()
	if t.recorder != nil {
		_ = t.recorder.Close()
	}
}

func (t *tableActor) cancelGC() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gcTimer != nil {
		t.gcTimer.Stop()
		t.gcTimer = nil
	}
}

func (t *tableActor) seat(botName string, chipStack int64) (string, bool, error) {
	seatID := botName
	var reconnect bool
	err := t.do(func() error {
		for _, s := range t.engine.Snapshot().Seats {
			if s.ID == seatID {
				reconnect = true
				return nil
			}
		}
		return t.engine.AddPlayer(seatID, botName, chipStack)
	})
	if err != nil {
		return "", false, err
	}
	t.cancelGC()
	t.maybeScheduleHandStart()
	return seatID, reconnect, nil
}

func (t *tableActor) processAction(action engine.Action) error {
	return t.do(func() error {
		return t.engine.ProcessAction(action)
	})
}

func (t *tableActor) forcePlayerAction(playerID string) error {
	return t.do(func() error {
		return t.engine.ForcePlayerAction(playerID)
	})
}

func (t *tableActor) gameState(viewerID string) *engine.GameState {
	return t.engine.GetBotGameState(viewerID)
}

func (t *tableActor) possibleActions(playerID string) []engine.ActionKind {
	return t.engine.GetPossibleActions(playerID)
}

// subscribe registers fn wrapped with its own panic recovery so that
// one misbehaving subscriber cannot take down fan-out to the others
// (§4.6, §7) — a second layer above the engine's own per-listener
// recovery, scoped to this controller's view of subscribers.
func (t *tableActor) subscribe(fn engine.Listener) int {
	return t.engine.OnEvent(func(ev engine.Event) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("controller: table %s subscriber panicked: %v", t.id, r)
			}
		}()
		fn(ev)
	})
}

func (t *tableActor) unsubscribe(token int) {
	t.engine.OffEvent(token)
}

func (t *tableActor) deferUnseat(playerID string) {
	t.mu.Lock()
	t.deferredUnseat[playerID] = true
	t.mu.Unlock()
}

// onEngineEvent is the table's own bookkeeping listener: it records
// hand-lifecycle and timeout metrics, then on EventHandComplete applies
// any deferred unseats, checks for an empty table (scheduling GC), and
// otherwise schedules the next hand's auto-start after handStartDelay.
func (t *tableActor) onEngineEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventHandStarted:
		t.handStartedAt = ev.Timestamp
		metrics.RecordHandStarted(t.id)
		return
	case engine.EventPlayerTimeout:
		metrics.RecordTurnTimeout(t.id)
		return
	case engine.EventHandComplete:
		if !t.handStartedAt.IsZero() {
			metrics.RecordHandCompleted(t.id, ev.Timestamp.Sub(t.handStartedAt).Seconds())
		} else {
			metrics.RecordHandCompleted(t.id, 0)
		}
	default:
		return
	}

	t.mu.Lock()
	pending := t.deferredUnseat
	t.deferredUnseat = make(map[string]bool)
	t.mu.Unlock()

	// onEngineEvent runs inside the engine's emit with the engine's lock
	// held, so it must not call back into the engine. The post-hand work
	// is queued as a new actor command instead, sent from its own
	// goroutine: waiting on t.do here would block on the command that is
	// still running.
	go func() { _ = t.do(func() error { t.afterHand(pending); return nil }) }()
}

// afterHand runs on the actor goroutine, in its own command, once a hand
// has completed.
func (t *tableActor) afterHand(pending map[string]bool) {
	for seatID := range pending {
		_ = t.engine.RemovePlayer(seatID)
	}

	state := t.engine.Snapshot()
	if t.onHandPlayed != nil {
		t.onHandPlayed(len(state.Seats))
	}
	if len(state.Seats) == 0 {
		t.scheduleGC()
		return
	}
	t.maybeScheduleHandStartFromActor()
}

func (t *tableActor) scheduleGC() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gcTimer != nil {
		t.gcTimer.Stop()
	}
	t.gcTimer = time.AfterFunc(emptyTableGC, func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
}

// maybeScheduleHandStart is the entry point for callers running on some
// other goroutine (Seat, after its own do() call has already returned).
func (t *tableActor) maybeScheduleHandStart() {
	t.scheduleHandStart(false)
}

// maybeScheduleHandStartFromActor is afterHand's counterpart: it is
// already running on the actor goroutine, so an immediate start must
// call the engine directly rather than deadlock queuing through do().
func (t *tableActor) maybeScheduleHandStartFromActor() {
	t.scheduleHandStart(true)
}

func (t *tableActor) scheduleHandStart(onActorGoroutine bool) {
	if t.engine.IsGameRunning() {
		return
	}
	t.mu.Lock()
	if t.handTimer != nil {
		t.handTimer.Stop()
	}
	t.mu.Unlock()

	// time.AfterFunc always runs its callback on its own goroutine, so
	// the delayed path is never on the actor goroutine regardless of
	// who scheduled it.
	startViaQueue := func() { _ = t.do(func() error { return t.engine.StartHand() }) }

	if t.cfg.HandStartDelay <= 0 {
		if onActorGoroutine {
			_ = t.engine.StartHand()
		} else {
			startViaQueue()
		}
		return
	}
	t.mu.Lock()
	t.handTimer = time.AfterFunc(t.cfg.HandStartDelay, startViaQueue)
	t.mu.Unlock()
}
