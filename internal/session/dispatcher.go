package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pokerbotserver/internal/auth"
	"pokerbotserver/internal/engine"
	"pokerbotserver/internal/metrics"
	"pokerbotserver/internal/transport"
)

// ConnState is a connection's place in the §4.5 lifecycle.
type ConnState int

const (
	Unidentified ConnState = iota
	Identified
	Disconnected
)

// TableAccess is everything a Dispatcher needs from the registry that
// owns tables, kept narrow so session never imports controller (which
// imports session to deliver events back).
type TableAccess interface {
	Seat(gameID, botName string, chipStack int64) (seatID string, reconnect bool, err error)
	ProcessAction(gameID string, action engine.Action) error
	ForcePlayerAction(gameID, playerID string) error
	GameState(gameID, viewerID string) (*engine.GameState, error)
	PossibleActions(gameID, playerID string) ([]engine.ActionKind, error)
	Subscribe(gameID string, fn engine.Listener) (int, error)
	Unsubscribe(gameID string, token int) error
	Unseat(gameID, playerID string) error
	TurnTimeLimit(gameID string) (time.Duration, error)
	ListGames() []GameSummary
}

// Dispatcher owns one remote connection's lifecycle: message decoding,
// seat binding, turn timers, and per-viewer state fan-out.
type Dispatcher struct {
	conn          transport.Conn
	tables        TableAccess
	botAuth       auth.BotAuth
	mu            sync.Mutex
	state         ConnState
	gameID        string
	seatID        string
	subTok        int
	timer         *TurnTimer
	turnStartedAt time.Time
}

// NewDispatcher binds a freshly-accepted connection to a table registry.
// botAuth may be nil, in which case identify never checks credentials
// (suitable for local development and the FakeConn-driven tests).
func NewDispatcher(conn transport.Conn, tables TableAccess, botAuth auth.BotAuth) *Dispatcher {
	return &Dispatcher{conn: conn, tables: tables, botAuth: botAuth, state: Unidentified}
}

// Run reads messages until the connection closes. It never returns an
// error: transport failures end the loop silently, matching the
// teacher's read-loop shutdown pattern.
func (d *Dispatcher) Run() {
	defer d.teardown()
	for {
		raw, err := d.conn.ReadMessage()
		if err != nil {
			return
		}
		d.handleRaw(raw)
	}
}

func (d *Dispatcher) teardown() {
	d.mu.Lock()
	wasIdentified := d.state == Identified
	d.state = Disconnected
	d.timer.Stop()
	gameID, tok := d.gameID, d.subTok
	d.mu.Unlock()
	if gameID != "" {
		_ = d.tables.Unsubscribe(gameID, tok)
	}
	if wasIdentified {
		metrics.ConnectedBots.Dec()
	}
}

func (d *Dispatcher) handleRaw(raw json.RawMessage) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.send(MsgActionError, ErrorPayload{Message: "malformed message"})
		return
	}

	switch env.Type {
	case MsgIdentify:
		var p IdentifyPayload
		_ = json.Unmarshal(env.Payload, &p)
		d.handleIdentify(p)
	case MsgReconnect:
		var p ReconnectPayload
		_ = json.Unmarshal(env.Payload, &p)
		d.handleIdentify(IdentifyPayload{BotName: p.BotName, GameID: p.GameID, APIKey: p.APIKey})
	case MsgAction:
		var p ActionPayload
		_ = json.Unmarshal(env.Payload, &p)
		d.handleAction(p)
	case MsgRequestPossibleActions:
		d.handlePossibleActions()
	case MsgRequestGameState:
		d.handleGameState()
	case MsgLeaveGame, MsgUnseat:
		d.handleUnseat()
	case MsgListGames:
		d.send(MsgListGamesResult, ListGamesResultPayload{Games: d.tables.ListGames()})
	case MsgPing:
		d.send(MsgPong, struct{}{})
	default:
		d.send(MsgActionError, ErrorPayload{Message: "unknown message type: " + env.Type})
	}
}

func (d *Dispatcher) handleIdentify(p IdentifyPayload) {
	if d.botAuth != nil {
		ok, err := d.botAuth.Validate(context.Background(), p.BotName, p.APIKey)
		if err != nil || !ok {
			d.send(MsgIdentificationError, ErrorPayload{Message: "invalid credentials"})
			return
		}
	}

	seatID, _, err := d.tables.Seat(p.GameID, p.BotName, p.ChipStack)
	if err != nil {
		d.send(MsgIdentificationError, ErrorPayload{Message: err.Error()})
		return
	}

	d.mu.Lock()
	wasIdentified := d.state == Identified
	d.state = Identified
	d.gameID = p.GameID
	d.seatID = seatID
	d.mu.Unlock()
	if !wasIdentified {
		metrics.ConnectedBots.Inc()
	}

	tok, err := d.tables.Subscribe(p.GameID, d.onEngineEvent)
	if err == nil {
		d.mu.Lock()
		d.subTok = tok
		d.mu.Unlock()
	}

	state, _ := d.tables.GameState(p.GameID, seatID)
	d.send(MsgIdentificationSuccess, IdentificationSuccessPayload{SeatID: seatID, State: state})
	d.maybeStartTimer(state)
}

func (d *Dispatcher) handleAction(p ActionPayload) {
	gameID, seatID, ok := d.identity()
	if !ok {
		d.send(MsgActionError, ErrorPayload{Message: "bot is not in a game"})
		return
	}

	d.mu.Lock()
	d.timer.Stop()
	d.timer = nil
	turnStartedAt := d.turnStartedAt
	d.turnStartedAt = time.Time{}
	d.mu.Unlock()

	kind := parseActionKind(p.Action.Kind)
	action := engine.Action{
		PlayerID:  seatID,
		Kind:      kind,
		Amount:    p.Action.Amount,
		Timestamp: time.Now(),
	}
	if err := d.tables.ProcessAction(gameID, action); err != nil {
		d.send(MsgActionError, ErrorPayload{Message: err.Error()})
		return
	}
	if !turnStartedAt.IsZero() {
		metrics.RecordActionLatency(gameID, kind.String(), time.Since(turnStartedAt).Seconds())
	}
	d.send(MsgActionSuccess, struct{}{})
}

func (d *Dispatcher) handlePossibleActions() {
	gameID, seatID, ok := d.identity()
	if !ok {
		d.send(MsgActionError, ErrorPayload{Message: "bot is not in a game"})
		return
	}
	kinds, err := d.tables.PossibleActions(gameID, seatID)
	if err != nil {
		d.send(MsgActionError, ErrorPayload{Message: err.Error()})
		return
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	d.send(MsgPossibleActions, PossibleActionsPayload{Actions: names})
}

func (d *Dispatcher) handleGameState() {
	gameID, seatID, ok := d.identity()
	if !ok {
		d.send(MsgActionError, ErrorPayload{Message: "bot is not in a game"})
		return
	}
	state, err := d.tables.GameState(gameID, seatID)
	if err != nil {
		d.send(MsgActionError, ErrorPayload{Message: err.Error()})
		return
	}
	d.send(MsgGameState, state)
}

func (d *Dispatcher) handleUnseat() {
	gameID, seatID, ok := d.identity()
	if !ok {
		d.send(MsgUnseatError, ErrorPayload{Message: "bot is not in a game"})
		return
	}
	if err := d.tables.Unseat(gameID, seatID); err != nil {
		d.send(MsgUnseatError, ErrorPayload{Message: err.Error()})
		return
	}
	d.send(MsgUnseatConfirmed, struct{}{})
	d.send(MsgLeftGame, struct{}{})
}

func (d *Dispatcher) identity() (gameID, seatID string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Identified {
		return "", "", false
	}
	return d.gameID, d.seatID, true
}

// onEngineEvent is the single handler subscribed per §4.5: it fans a
// gameEvent envelope to the client, re-sends a fresh projected state
// for the listed event types, and arms a turn timer when this seat is
// now to act. It must never panic back into the engine's dispatch loop;
// the engine already recovers listener panics, but we keep this
// defensive per the dispatcher's own exception-isolation contract.
func (d *Dispatcher) onEngineEvent(ev engine.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session: dispatcher event handler panic: %v", r)
		}
	}()

	d.mu.Lock()
	disconnected := d.state == Disconnected
	gameID, seatID := d.gameID, d.seatID
	d.mu.Unlock()
	if disconnected || gameID == "" {
		return
	}

	d.send(MsgGameEvent, GameEventPayload{Event: ev.Type.String()})

	if !reprojectsState(ev.Type) {
		return
	}
	// Listeners run inside the engine's emit and must not call back into
	// the engine, so the state is projected from the event's own snapshot.
	state := engine.Project(ev.After, engine.Viewer{Role: engine.ViewerPlayer, SeatID: seatID})
	d.send(MsgGameState, state)
	d.maybeStartTimer(state)
}

func reprojectsState(t engine.EventType) bool {
	switch t {
	case engine.EventHandStarted, engine.EventActionTaken, engine.EventFlopDealt,
		engine.EventTurnDealt, engine.EventRiverDealt, engine.EventShowdownComplete,
		engine.EventHandComplete:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) maybeStartTimer(state *engine.GameState) {
	if state == nil || len(state.Seats) == 0 {
		return
	}
	d.mu.Lock()
	seatID, gameID := d.seatID, d.gameID
	d.mu.Unlock()
	if state.CurrentPlayerIndex < 0 || state.CurrentPlayerIndex >= len(state.Seats) {
		return
	}
	if state.Seats[state.CurrentPlayerIndex].ID != seatID {
		return
	}

	limit, err := d.tables.TurnTimeLimit(gameID)
	if err != nil {
		return
	}
	if limit <= 0 {
		// A non-positive turn limit still has to force the table to
		// progress rather than stall on this seat forever. The forced action
		// runs on its own goroutine because this may be reached from an
		// engine listener, which must not call back into the engine.
		go d.onTimeout(gameID, seatID)
		return
	}

	d.mu.Lock()
	d.timer.Stop()
	d.turnStartedAt = time.Now()
	d.timer = StartTurnTimer(limit,
		func(remaining time.Duration) {
			d.send(MsgTurnWarning, TurnWarningPayload{TimeRemainingMS: remaining.Milliseconds()})
		},
		func() { d.onTimeout(gameID, seatID) },
	)
	d.mu.Unlock()

	d.send(MsgTurnStart, struct{}{})
}

func (d *Dispatcher) onTimeout(gameID, seatID string) {
	d.send(MsgTurnTimeout, struct{}{})
	if err := d.tables.ForcePlayerAction(gameID, seatID); err != nil {
		d.send(MsgForceActionError, ErrorPayload{Message: err.Error()})
	}
}

func (d *Dispatcher) send(msgType string, payload interface{}) {
	if err := d.conn.Send(outbound(msgType, payload)); err != nil {
		log.Printf("session: send to %s failed: %v", d.conn.RemoteID(), err)
	}
}

func parseActionKind(s string) engine.ActionKind {
	switch s {
	case "fold":
		return engine.Fold
	case "check":
		return engine.Check
	case "call":
		return engine.Call
	case "bet":
		return engine.Bet
	case "raise":
		return engine.Raise
	case "all_in":
		return engine.AllIn
	default:
		return engine.ActionKind(-1)
	}
}
