// Package controller implements the table registry (§4.6): creates and
// removes tables, indexes seats to tables, auto-starts the next hand
// after handStartDelay, applies deferred unseats at a hand boundary,
// garbage-collects empty tables, and fans engine events out to
// subscribers while isolating one callback's panic from the rest.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pokerbotserver/internal/directory"
	"pokerbotserver/internal/engine"
	"pokerbotserver/internal/metrics"
	"pokerbotserver/internal/replay"
	"pokerbotserver/internal/session"
	"pokerbotserver/pkg/rng"
)

// ErrGameNotFound is returned when an operation names an unknown table.
var ErrGameNotFound = fmt.Errorf("controller: game not found")

// ErrBotNotInGame is returned when a seatID doesn't resolve to a seat at
// the named table.
var ErrBotNotInGame = fmt.Errorf("controller: bot is not in a game")

const emptyTableGC = 5 * time.Second
const inactiveConnCleanup = 30 * time.Minute

// Controller is the single registry for all live tables in the process.
// There is exactly one Controller per server; it holds no per-table
// mutable state itself beyond the registry map, matching §9's "no
// process-wide singletons except the table registry."
type Controller struct {
	mu       sync.Mutex
	tables   map[string]*tableActor
	dir      directory.Store
	sink     replay.Sink
	createSF singleflight.Group
}

// New constructs an empty registry.
func New() *Controller {
	return &Controller{tables: make(map[string]*tableActor)}
}

// SetDirectory wires an optional write-only directory store. The
// registry never reads it back; every call is fire-and-forget so a
// slow or unavailable directory backend can never stall gameplay.
func (c *Controller) SetDirectory(dir directory.Store) {
	c.mu.Lock()
	c.dir = dir
	c.mu.Unlock()
}

// SetReplaySink attaches a replay sink that every table created from
// this point on gets its own Recorder wired to. Tables created before
// this call are unaffected.
func (c *Controller) SetReplaySink(sink replay.Sink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

// recordTableCreated is only called from newRegisteredTable, whose
// callers already hold c.mu, so it reads c.dir without locking again.
func (c *Controller) recordTableCreated(cfg engine.TableConfig) {
	dir := c.dir
	if dir == nil {
		return
	}
	go func() {
		rec := directory.TableRecord{
			TableID:    cfg.TableID,
			MaxPlayers: cfg.MaxPlayers,
			SmallBlind: cfg.SmallBlindAmount,
			BigBlind:   cfg.BigBlindAmount,
			CreatedAt:  time.Now(),
		}
		if err := dir.CreateTable(context.Background(), rec); err != nil {
			log.Printf("controller: directory.CreateTable(%s) failed: %v", cfg.TableID, err)
		}
	}()
}

func (c *Controller) recordTableClosed(tableID string) {
	c.mu.Lock()
	dir := c.dir
	c.mu.Unlock()
	if dir == nil {
		return
	}
	go func() {
		if err := dir.CloseTable(context.Background(), tableID); err != nil {
			log.Printf("controller: directory.CloseTable(%s) failed: %v", tableID, err)
		}
	}()
}

func (c *Controller) recordHandPlayed(tableID string, seatsTaken int) {
	c.mu.Lock()
	dir := c.dir
	c.mu.Unlock()
	if dir == nil {
		return
	}
	go func() {
		if err := dir.RecordHandPlayed(context.Background(), tableID, seatsTaken); err != nil {
			log.Printf("controller: directory.RecordHandPlayed(%s) failed: %v", tableID, err)
		}
	}()
}

// CreateGame creates a table if one by this id doesn't already exist,
// cancelling any pending GC for it (a join racing a GC window).
// Concurrent CreateGame calls for the same table id collapse into a
// single construction via createSF, so a thundering herd of first-seat
// joins never builds the table more than once.
func (c *Controller) CreateGame(cfg engine.TableConfig) error {
	if t, ok := c.existingTable(cfg.TableID); ok {
		t.cancelGC()
		return nil
	}

	_, err, _ := c.createSF.Do(cfg.TableID, func() (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if t, ok := c.tables[cfg.TableID]; ok {
			t.cancelGC()
			return nil, nil
		}

		t, err := c.newRegisteredTable(cfg)
		if err != nil {
			return nil, err
		}
		c.tables[cfg.TableID] = t
		metrics.ActiveTables.Set(float64(len(c.tables)))
		return nil, nil
	})
	return err
}

func (c *Controller) existingTable(tableID string) (*tableActor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableID]
	return t, ok
}

// newRegisteredTable builds a tableActor wired to remove itself from
// this registry once its empty-table GC window elapses. Callers must
// hold c.mu.
func (c *Controller) newRegisteredTable(cfg engine.TableConfig) (*tableActor, error) {
	shuffler, err := rng.NewSystem()
	if err != nil {
		return nil, fmt.Errorf("controller: init rng: %w", err)
	}
	t := newTableActor(cfg, shuffler, c.sink)
	t.onExpire = func() { c.RemoveGame(cfg.TableID) }
	t.onHandPlayed = func(seatsTaken int) { c.recordHandPlayed(cfg.TableID, seatsTaken) }
	c.recordTableCreated(cfg)
	return t, nil
}

// RemoveGame tears a table down, cancelling its pending GC and
// hand-auto-start timers.
func (c *Controller) RemoveGame(gameID string) {
	c.mu.Lock()
	t, ok := c.tables[gameID]
	if ok {
		delete(c.tables, gameID)
	}
	metrics.ActiveTables.Set(float64(len(c.tables)))
	c.mu.Unlock()
	if ok {
		t.shutdown()
		c.recordTableClosed(gameID)
	}
}

func (c *Controller) lookup(gameID string) (*tableActor, error) {
	c.mu.Lock()
	t, ok := c.tables[gameID]
	c.mu.Unlock()
	if !ok {
		return nil, ErrGameNotFound
	}
	return t, nil
}

// Seat implements session.TableAccess: seats a bot, auto-creating the
// table with default config on first join of an unknown id (a
// dev-friendly convenience the teacher's handleWebSocket also takes).
func (c *Controller) Seat(gameID, botName string, chipStack int64) (string, bool, error) {
	c.mu.Lock()
	t, ok := c.tables[gameID]
	if !ok {
		var err error
		t, err = c.newRegisteredTable(engine.DefaultTableConfig(gameID))
		if err != nil {
			c.mu.Unlock()
			return "", false, err
		}
		c.tables[gameID] = t
		metrics.ActiveTables.Set(float64(len(c.tables)))
	}
	c.mu.Unlock()

	return t.seat(botName, chipStack)
}

func (c *Controller) ProcessAction(gameID string, action engine.Action) error {
	t, err := c.lookup(gameID)
	if err != nil {
		return err
	}
	return t.processAction(action)
}

func (c *Controller) ForcePlayerAction(gameID, playerID string) error {
	t, err := c.lookup(gameID)
	if err != nil {
		return err
	}
	return t.forcePlayerAction(playerID)
}

func (c *Controller) GameState(gameID, viewerID string) (*engine.GameState, error) {
	t, err := c.lookup(gameID)
	if err != nil {
		return nil, err
	}
	return t.gameState(viewerID), nil
}

func (c *Controller) PossibleActions(gameID, playerID string) ([]engine.ActionKind, error) {
	t, err := c.lookup(gameID)
	if err != nil {
		return nil, err
	}
	return t.possibleActions(playerID), nil
}

func (c *Controller) Subscribe(gameID string, fn engine.Listener) (int, error) {
	t, err := c.lookup(gameID)
	if err != nil {
		return 0, err
	}
	return t.subscribe(fn), nil
}

func (c *Controller) Unsubscribe(gameID string, token int) error {
	t, err := c.lookup(gameID)
	if err != nil {
		return err
	}
	t.unsubscribe(token)
	return nil
}

func (c *Controller) Unseat(gameID, playerID string) error {
	t, err := c.lookup(gameID)
	if err != nil {
		return err
	}
	t.deferUnseat(playerID)
	return nil
}

func (c *Controller) TurnTimeLimit(gameID string) (time.Duration, error) {
	t, err := c.lookup(gameID)
	if err != nil {
		return 0, err
	}
	return t.cfg.TurnTimeLimit, nil
}

func (c *Controller) ListGames() []session.GameSummary {
	c.mu.Lock()
	tables := make(map[string]*tableActor, len(c.tables))
	for id, t := range c.tables {
		tables[id] = t
	}
	c.mu.Unlock()

	out := make([]session.GameSummary, 0, len(tables))
	for id, t := range tables {
		state := t.engine.Snapshot()
		out = append(out, session.GameSummary{
			GameID:      id,
			SeatsTaken:  len(state.Seats),
			MaxPlayers:  t.cfg.MaxPlayers,
			HandRunning: t.engine.IsGameRunning(),
		})
	}
	return out
}

var _ session.TableAccess = (*Controller)(nil)
