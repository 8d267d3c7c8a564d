package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pokerbotserver/pkg/poker"
)

// ErrTableFull is returned by AddPlayer when the table is at MaxPlayers.
var ErrTableFull = errors.New("engine: table is full")

// ErrPlayerAlreadySeated is returned by AddPlayer for a duplicate id.
var ErrPlayerAlreadySeated = errors.New("engine: player already seated")

// ErrNotEnoughPlayers is returned by StartHand when fewer than two
// seats have a positive chip stack.
var ErrNotEnoughPlayers = errors.New("engine: not enough players with chips to start a hand")

// ErrAlreadyRunning is returned by StartHand when a hand is in progress.
var ErrAlreadyRunning = errors.New("engine: hand already in progress")

// Engine is the per-table hand state machine described in §4.4. It owns
// GameState, the PotManager, and the ActionValidator, and is the single
// writer of table state; callers are expected to serialize access to
// one Engine behind a single actor goroutine (§5).
type Engine struct {
	mu        sync.RWMutex
	state     *GameState
	config    TableConfig
	pot       *PotManager
	validator *ActionValidator
	evaluator *poker.HandEvaluator
	rng       poker.Shuffler
	listeners []Listener
	running   bool
	sequence  int64
}

// NewEngine constructs an idle engine for one table. rng drives deck
// shuffling (pkg/rng.System in production, a seeded source in tests).
func NewEngine(config TableConfig, rng poker.Shuffler) *Engine {
	return &Engine{
		state: &GameState{
			TableID:             config.TableID,
			MinimumRaise:        config.BigBlindAmount,
			LastRaiseAmount:     config.BigBlindAmount,
			SmallBlindAmount:    config.SmallBlindAmount,
			BigBlindAmount:      config.BigBlindAmount,
			Phase:               Idle,
			LastAggressorIndex:  -1,
			RoundAggressorIndex: -1,
			ShowdownRevealed:    map[string]bool{},
		},
		config:    config,
		pot:       NewPotManager(),
		validator: NewActionValidator(),
		evaluator: poker.NewHandEvaluator(),
		rng:       rng,
	}
}

// OnEvent registers a listener; it returns a token usable with OffEvent.
func (e *Engine) OnEvent(l Listener) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
	return len(e.listeners) - 1
}

// OffEvent unregisters the listener previously returned by OnEvent.
func (e *Engine) OffEvent(token int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token < 0 || token >= len(e.listeners) {
		return
	}
	e.listeners[token] = nil
}

func (e *Engine) emit(typ EventType, playerID string, action *Action, before *GameState, payload map[string]interface{}) {
	e.sequence++
	ev := Event{
		SequenceID: e.sequence,
		Type:       typ,
		TableID:    e.state.TableID,
		HandNumber: e.state.HandNumber,
		Phase:      e.state.Phase,
		PlayerID:   playerID,
		Action:     action,
		Before:     before,
		After:      e.snapshotLocked(),
		Timestamp:  time.Now(),
		Payload:    payload,
	}
	for _, l := range e.listeners {
		if l == nil {
			continue
		}
		e.dispatchSafely(l, ev)
	}
}

// dispatchSafely recovers a panicking listener so it cannot stall other
// subscribers or unwind into engine-mutating code (§7: one exception
// does not stall others).
func (e *Engine) dispatchSafely(l Listener, ev Event) {
	defer func() {
		_ = recover()
	}()
	l(ev)
}

// IsGameRunning reports whether a hand is in progress.
func (e *Engine) IsGameRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// AddPlayer seats a new player with the given starting stack.
func (e *Engine) AddPlayer(id, name string, chipStack int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if findSeat(e.state, id) != nil {
		return ErrPlayerAlreadySeated
	}
	if len(e.state.Seats) >= e.config.MaxPlayers {
		return ErrTableFull
	}
	e.state.Seats = append(e.state.Seats, &Seat{
		ID: id, Name: name, ChipStack: chipStack, IsActive: true, IsConnected: true,
	})
	e.emit(EventPlayerJoined, id, nil, nil, nil)
	return nil
}

// RemovePlayer removes a seat immediately. Deferred unseat timing (wait
// for the current hand to end) is the controller's responsibility.
func (e *Engine) RemovePlayer(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := findSeatIndex(e.state, id)
	if idx < 0 {
		return ErrPlayerNotFoundEngine
	}
	e.state.Seats = append(e.state.Seats[:idx], e.state.Seats[idx+1:]...)
	e.reindexAfterRemoval(idx)
	e.emit(EventPlayerLeft, id, nil, nil, nil)
	return nil
}

// reindexAfterRemoval keeps DealerIndex/blind indices/CurrentPlayerIndex
// valid after a splice out of the ring. It is only safe to call between
// hands; the controller must not remove a seated player mid-hand.
func (e *Engine) reindexAfterRemoval(removed int) {
	n := len(e.state.Seats)
	fix := func(idx int) int {
		switch {
		case n == 0:
			return 0
		case idx > removed:
			return idx - 1
		case idx == removed:
			return idx % n
		default:
			return idx
		}
	}
	e.state.DealerIndex = fix(e.state.DealerIndex)
	e.state.SmallBlindIndex = fix(e.state.SmallBlindIndex)
	e.state.BigBlindIndex = fix(e.state.BigBlindIndex)
	e.state.CurrentPlayerIndex = fix(e.state.CurrentPlayerIndex)
}

// StartHand begins a new hand: §4.4 preconditions, dealer rotation,
// blind posting, hole cards, and first-actor selection.
func (e *Engine) StartHand() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if e.countWithChips() < 2 {
		return ErrNotEnoughPlayers
	}

	e.running = true
	e.state.HandNumber++
	e.state.CommunityCards = nil
	e.state.LastAggressorIndex = -1
	e.state.RoundAggressorIndex = -1
	e.state.RoundAllowsRaise = true
	e.state.ShowdownRevealed = map[string]bool{}
	e.pot.Reset()

	for _, s := range e.state.Seats {
		s.HoleCards = nil
		s.CurrentBet = 0
		s.TotalBetThisHand = 0
		s.HasActed = false
		s.IsFolded = s.ChipStack <= 0 // busted seats sit out of this hand
		s.IsAllIn = false
	}

	n := len(e.state.Seats)
	if e.state.HandNumber > 1 {
		e.state.DealerIndex = (e.state.DealerIndex + 1) % n
	} else if e.state.DealerIndex >= n {
		e.state.DealerIndex = 0
	}

	if e.numInHand() == 2 {
		e.state.SmallBlindIndex = e.state.DealerIndex
		e.state.BigBlindIndex = (e.state.DealerIndex + 1) % n
	} else {
		e.state.SmallBlindIndex = (e.state.DealerIndex + 1) % n
		e.state.BigBlindIndex = (e.state.DealerIndex + 2) % n
	}

	e.state.Phase = PreFlop
	e.emit(EventHandStarted, "", nil, nil, nil)

	e.dealHoleCards()
	e.emit(EventHoleCardsDealt, "", nil, nil, nil)

	e.postBlinds()
	e.state.MinimumRaise = e.state.BigBlindAmount
	e.state.LastRaiseAmount = e.state.BigBlindAmount

	e.runRoundCascade(true)
	return nil
}

func (e *Engine) countWithChips() int {
	n := 0
	for _, s := range e.state.Seats {
		if s.IsActive && s.ChipStack > 0 {
			n++
		}
	}
	return n
}

// numInHand counts seats dealt into the current hand (not pre-excluded
// for having zero chips at deal time).
func (e *Engine) numInHand() int {
	n := 0
	for _, s := range e.state.Seats {
		if s.IsActive && !s.IsFolded {
			n++
		}
	}
	return n
}

func (e *Engine) dealHoleCards() {
	deck := poker.NewDeck()
	deck.Shuffle(e.rng)
	e.state.deck = deck
	for _, s := range e.state.Seats {
		if s.IsFolded {
			continue
		}
		s.HoleCards = deck.Draw(2)
	}
}

func (e *Engine) postBlinds() {
	sb := e.state.Seats[e.state.SmallBlindIndex]
	e.postBlind(sb, e.state.SmallBlindAmount)
	bb := e.state.Seats[e.state.BigBlindIndex]
	e.postBlind(bb, e.state.BigBlindAmount)
	e.emit(EventBlindsPosted, "", nil, nil, map[string]interface{}{
		"smallBlindSeat": sb.ID,
		"bigBlindSeat":   bb.ID,
	})
}

func (e *Engine) postBlind(s *Seat, amount int64) {
	posted := amount
	if posted > s.ChipStack {
		posted = s.ChipStack
	}
	s.ChipStack -= posted
	s.CurrentBet = posted
	s.TotalBetThisHand = posted
	if s.ChipStack == 0 {
		s.IsAllIn = true
	}
	e.pot.AddBet(s.ID, posted)
}

// ProcessAction validates and applies a player action, per §4.3's
// effect rules, then advances the turn/phase state machine.
func (e *Engine) ProcessAction(action Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return newStateErr(ErrGameNotRunning)
	}
	if err := e.validator.Validate(e.state, action); err != nil {
		return err
	}

	before := e.snapshotLocked()
	seat := findSeat(e.state, action.PlayerID)
	effect := e.validator.Effect(e.state, seat, action)

	switch action.Kind {
	case Fold:
		seat.IsFolded = true
	default:
		seat.ChipStack -= effect.ChipDelta
		seat.CurrentBet = effect.NewCurrentBet
		seat.TotalBetThisHand += effect.ChipDelta
		if effect.ChipDelta > 0 {
			e.pot.AddBet(seat.ID, effect.ChipDelta)
		}
		if effect.BecomesAllIn {
			seat.IsAllIn = true
		}
	}
	seat.HasActed = true

	if effect.IsAggression {
		actorIdx := findSeatIndex(e.state, action.PlayerID)
		e.state.LastAggressorIndex = actorIdx
		e.state.RoundAggressorIndex = actorIdx
		if effect.ReopensAction {
			e.state.MinimumRaise = effect.NewMinimumRaise
			e.state.LastRaiseAmount = effect.NewMinimumRaise
			for _, other := range e.state.Seats {
				if other.ID != seat.ID && other.CanAct() {
					other.HasActed = false
				}
			}
		} else if seat.IsAllIn {
			// An incomplete all-in raise caps the betting round: seats that
			// have already acted may not Raise again until a new street
			// starts, while seats yet to act still may (§8 property 7).
			e.state.RoundAllowsRaise = false
		}
	}

	e.pot.CreateSidePots(e.state.Seats)
	e.emit(EventActionTaken, action.PlayerID, &action, before, nil)

	e.runRoundCascade(false)
	return nil
}

// ForcePlayerAction applies the §4.3 force-action rule (Check if
// possible, otherwise Fold) on timeout.
func (e *Engine) ForcePlayerAction(playerID string) error {
	e.mu.RLock()
	running := e.running
	seat := findSeat(e.state, playerID)
	var bet, seatBet int64
	if seat != nil {
		bet = currentBet(e.state.Seats)
		seatBet = seat.CurrentBet
	}
	e.mu.RUnlock()

	if !running {
		return newStateErr(ErrGameNotRunning)
	}
	if seat == nil {
		return ErrPlayerNotFoundEngine
	}

	kind := Fold
	if bet-seatBet <= 0 {
		kind = Check
	}
	action := Action{PlayerID: playerID, Kind: kind, Timestamp: time.Now()}

	e.mu.Lock()
	e.emit(EventPlayerTimeout, playerID, &action, nil, nil)
	e.mu.Unlock()

	return e.ProcessAction(action)
}

// GetPossibleActions returns the legal action kinds for playerID right now.
func (e *Engine) GetPossibleActions(playerID string) []ActionKind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validator.PossibleActions(e.state, playerID)
}

// GetGameState returns the full, unredacted state (§4.4 "full and
// public projections"). Callers that forward this to a client must run
// it through Project first.
func (e *Engine) GetGameState() *GameState {
	return e.Snapshot()
}

// GetBotGameState returns the state as playerID should see it: its own
// hole cards visible, everyone else's redacted per §4.7.
func (e *Engine) GetBotGameState(playerID string) *GameState {
	snap := e.Snapshot()
	return Project(snap, Viewer{Role: ViewerPlayer, SeatID: playerID})
}

// runRoundCascade is the round/phase/showdown cascade run both right
// after blinds are posted (fresh=true) and after any action that might
// complete a betting round (fresh=false). It must be called with e.mu
// held. fresh means CurrentPlayerIndex has no acting player yet and a
// first actor must be selected for the current phase; otherwise the
// seat at CurrentPlayerIndex just acted and the next actor, if any,
// follows it clockwise.
func (e *Engine) runRoundCascade(fresh bool) {
	for {
		if e.numInHand() <= 1 {
			e.runShowdown()
			e.concludeHand()
			return
		}

		if fresh {
			next := e.selectFirstActor(e.state.Phase != PreFlop)
			if next >= 0 {
				e.state.CurrentPlayerIndex = next
				return
			}
			// Nobody can voluntarily act this street (e.g. all-in blinds); fall
			// through to the round-complete handling below.
		} else if !e.bettingRoundComplete() {
			next := e.advanceClockwise(e.state.CurrentPlayerIndex)
			if next >= 0 {
				e.state.CurrentPlayerIndex = next
				return
			}
		}

		if e.countCanAct() <= 1 {
			e.dealRemainingStreets()
			e.runShowdown()
			e.concludeHand()
			return
		}
		if e.state.Phase == River {
			e.runShowdown()
			e.concludeHand()
			return
		}
		e.advancePhase()
		fresh = true
	}
}

func (e *Engine) countCanAct() int {
	n := 0
	for _, s := range e.state.Seats {
		if s.CanAct() {
			n++
		}
	}
	return n
}

func (e *Engine) bettingRoundComplete() bool {
	bet := currentBet(e.state.Seats)
	for _, s := range e.state.Seats {
		if !s.IsActive || s.IsFolded {
			continue
		}
		if s.CanAct() && (!s.HasActed || s.CurrentBet != bet) {
			return false
		}
	}
	return true
}

func (e *Engine) advanceClockwise(from int) int {
	n := len(e.state.Seats)
	if n == 0 {
		return -1
	}
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if e.state.Seats[idx].CanAct() {
			return idx
		}
	}
	return -1
}

// selectFirstActor picks the first seat to act on a street, per §4.4.
func (e *Engine) selectFirstActor(postflop bool) int {
	headsUp := e.numInHand() == 2
	if !postflop {
		if headsUp {
			if e.state.Seats[e.state.DealerIndex].CanAct() {
				return e.state.DealerIndex
			}
			return e.advanceClockwise(e.state.DealerIndex)
		}
		return e.advanceClockwise(e.state.BigBlindIndex)
	}
	if headsUp {
		if e.state.Seats[e.state.DealerIndex].CanAct() {
			return e.state.DealerIndex
		}
		return e.advanceClockwise(e.state.DealerIndex)
	}
	return e.advanceClockwise(e.state.DealerIndex)
}

func (e *Engine) advancePhase() {
	for _, s := range e.state.Seats {
		s.CurrentBet = 0
		s.HasActed = false
	}
	e.state.MinimumRaise = e.state.BigBlindAmount
	e.state.LastRaiseAmount = e.state.BigBlindAmount
	e.state.RoundAggressorIndex = -1
	e.state.RoundAllowsRaise = true

	switch e.state.Phase {
	case PreFlop:
		e.state.Phase = Flop
		e.state.CommunityCards = append(e.state.CommunityCards, e.state.deck.Draw(3)...)
		e.emit(EventFlopDealt, "", nil, nil, nil)
	case Flop:
		e.state.Phase = Turn
		e.state.CommunityCards = append(e.state.CommunityCards, e.state.deck.Draw(1)...)
		e.emit(EventTurnDealt, "", nil, nil, nil)
	case Turn:
		e.state.Phase = River
		e.state.CommunityCards = append(e.state.CommunityCards, e.state.deck.Draw(1)...)
		e.emit(EventRiverDealt, "", nil, nil, nil)
	}
}

// dealRemainingStreets auto-advances through every street not yet dealt
// when at most one seat can still voluntarily act.
func (e *Engine) dealRemainingStreets() {
	for e.state.Phase != River && e.state.Phase != Showdown {
		e.advancePhase()
	}
}

// runShowdown evaluates every contesting hand, rebuilds the final pot
// layout, and distributes chips. runRoundCascade calls it once per hand,
// and it always precedes concludeHand (§4.4: hand_complete
// follows showdown_complete even when the hand ended by folding).
func (e *Engine) runShowdown() {
	e.state.Phase = Showdown
	e.pot.CreateSidePots(e.state.Seats)

	contenders := make([]*Seat, 0)
	for _, s := range e.state.Seats {
		if s.IsActive && !s.IsFolded {
			contenders = append(contenders, s)
		}
	}

	strength := make(map[string]int64, len(contenders))
	if len(contenders) > 1 {
		for _, s := range contenders {
			hand, err := e.evaluator.Evaluate(s.HoleCards, e.state.CommunityCards)
			if err != nil {
				continue
			}
			strength[s.ID] = hand.Key()
			e.state.ShowdownRevealed[s.ID] = true
		}
	} else if len(contenders) == 1 {
		e.state.ShowdownRevealed[contenders[0].ID] = true
	}

	payouts := e.pot.Distribute(e.state.Seats, e.state.DealerIndex, strength)
	for _, s := range e.state.Seats {
		if amt, ok := payouts[s.ID]; ok {
			s.ChipStack += amt
		}
	}

	e.emit(EventShowdownComplete, "", nil, nil, map[string]interface{}{
		"payouts":     payouts,
		"revealOrder": e.showdownOrder(contenders),
	})
}

// showdownOrder returns contenders in the order their cards are shown:
// the river's last aggressor first (if any), then clockwise; absent
// river aggression, the first non-folded seat clockwise from the
// dealer leads.
func (e *Engine) showdownOrder(contenders []*Seat) []string {
	n := len(e.state.Seats)
	if n == 0 || len(contenders) == 0 {
		return nil
	}
	start := e.state.DealerIndex
	if e.state.Phase == Showdown && e.state.RoundAggressorIndex >= 0 {
		// RoundAggressorIndex is reset at every new street, so here it is
		// the river's aggressor, or -1 when the river saw no bet or raise.
		start = e.state.RoundAggressorIndex
	} else {
		if next := e.advanceClockwiseAny(e.state.DealerIndex); next >= 0 {
			start = next
		}
	}
	inContenders := make(map[string]bool, len(contenders))
	for _, c := range contenders {
		inContenders[c.ID] = true
	}
	order := make([]string, 0, len(contenders))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		id := e.state.Seats[idx].ID
		if inContenders[id] {
			order = append(order, id)
		}
	}
	return order
}

// advanceClockwiseAny is like advanceClockwise but considers any
// non-folded seat rather than only ones that CanAct, for use after
// betting has closed.
func (e *Engine) advanceClockwiseAny(from int) int {
	n := len(e.state.Seats)
	if n == 0 {
		return -1
	}
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if !e.state.Seats[idx].IsFolded {
			return idx
		}
	}
	return -1
}

func (e *Engine) concludeHand() {
	e.state.Phase = HandComplete
	e.running = false
	e.emit(EventHandComplete, "", nil, nil, nil)
}

// Snapshot returns a deep copy of the current state, safe for a caller
// to retain or redact without racing the engine's writer goroutine.
func (e *Engine) Snapshot() *GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() *GameState {
	cp := *e.state
	cp.Seats = make([]*Seat, len(e.state.Seats))
	for i, s := range e.state.Seats {
		seatCopy := *s
		seatCopy.HoleCards = append([]poker.Card(nil), s.HoleCards...)
		cp.Seats[i] = &seatCopy
	}
	cp.CommunityCards = append([]poker.Card(nil), e.state.CommunityCards...)
	cp.Pots = make([]Pot, len(e.pot.Pots()))
	for i, p := range e.pot.Pots() {
		eligible := make(map[string]bool, len(p.Eligible))
		for k, v := range p.Eligible {
			eligible[k] = v
		}
		cp.Pots[i] = Pot{Amount: p.Amount, Eligible: eligible, IsSidePot: p.IsSidePot}
	}
	cp.ShowdownRevealed = make(map[string]bool, len(e.state.ShowdownRevealed))
	for k, v := range e.state.ShowdownRevealed {
		cp.ShowdownRevealed[k] = v
	}
	cp.deck = nil
	cp.rng = nil
	return &cp
}

func (e *Engine) String() string {
	return fmt.Sprintf("Engine(table=%s, hand=%d, phase=%s)", e.state.TableID, e.state.HandNumber, e.state.Phase)
}
