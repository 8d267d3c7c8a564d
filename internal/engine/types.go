// Package engine implements the hard-core hand state machine, action
// validator, and pot manager for a single no-limit Texas Hold'em table.
package engine

import (
	"time"

	"pokerbotserver/pkg/poker"
)

// Phase is a stage in the hand lifecycle.
type Phase int

const (
	Idle Phase = iota
	PreFlop
	Flop
	Turn
	River
	Showdown
	HandComplete
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PreFlop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case Showdown:
		return "showdown"
	case HandComplete:
		return "hand_complete"
	default:
		return "unknown"
	}
}

// ActionKind identifies the shape of a player action.
type ActionKind int

const (
	Fold ActionKind = iota
	Check
	Call
	Bet
	Raise
	AllIn
)

func (k ActionKind) String() string {
	switch k {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Bet:
		return "bet"
	case Raise:
		return "raise"
	case AllIn:
		return "all_in"
	default:
		return "unknown"
	}
}

// Action is a tagged player action. Amount is the bet size for Bet, the
// target total for Raise, and is ignored for Fold/Check/Call/AllIn.
type Action struct {
	PlayerID  string
	Kind      ActionKind
	Amount    int64
	Timestamp time.Time
}

// Seat is a player seated at the table. It persists across hands; hole
// cards and per-hand betting fields are cleared at the start of each hand.
type Seat struct {
	ID               string
	Name             string
	ChipStack        int64
	Position         string
	HoleCards        []poker.Card
	CurrentBet       int64
	TotalBetThisHand int64
	HasActed         bool
	IsActive         bool // seated
	IsFolded         bool
	IsAllIn          bool
	IsConnected      bool
}

// CanAct reports whether the seat is able to take a voluntary action this round.
func (s *Seat) CanAct() bool {
	return s.IsActive && !s.IsFolded && !s.IsAllIn && s.ChipStack > 0
}

// Pot is one layer of the pot (main pot is index 0), carrying the set of
// seats eligible to win it.
type Pot struct {
	Amount    int64
	Eligible  map[string]bool
	IsSidePot bool
}

// GameState is the full, mutable state of one table. The Engine is its
// sole writer; everything else reads through Snapshot/Project.
type GameState struct {
	TableID            string
	Seats              []*Seat // ring order, seat index is table position
	DealerIndex        int
	SmallBlindIndex    int
	BigBlindIndex      int
	SmallBlindAmount   int64
	BigBlindAmount     int64
	MinimumRaise       int64
	LastRaiseAmount    int64
	Phase              Phase
	CommunityCards     []poker.Card
	HandNumber         int
	CurrentPlayerIndex int
	LastAggressorIndex int // global, -1 if none yet
	RoundAggressorIndex int // per current betting round, -1 if none
	// RoundAllowsRaise is false once an incomplete all-in raise has
	// occurred this betting round: seats that have already acted may no
	// longer Raise until the next street; seats yet to act still may
	// (§4.3, §8 property 7).
	RoundAllowsRaise   bool
	Pots               []Pot
	ShowdownRevealed   map[string]bool
	deck               *poker.Deck
	rng                poker.Shuffler
}

// TableConfig configures a table at creation time (§6 "Game configuration").
type TableConfig struct {
	TableID          string
	MaxPlayers       int // 2..10
	SmallBlindAmount int64
	BigBlindAmount   int64
	TurnTimeLimit    time.Duration // fractional seconds allowed
	HandStartDelay   time.Duration // default 2s, 0 allowed
	IsTournament     bool          // informational only
}

// DefaultTableConfig mirrors the teacher's default-application pattern in
// game.NewTable: a config with zero-value blind amounts still produces a
// runnable table.
func DefaultTableConfig(tableID string) TableConfig {
	return TableConfig{
		TableID:          tableID,
		MaxPlayers:       9,
		SmallBlindAmount: 5,
		BigBlindAmount:   10,
		TurnTimeLimit:    30 * time.Second,
		HandStartDelay:   2 * time.Second,
	}
}
