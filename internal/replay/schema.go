// Package replay implements the structured event recorder described in
// §6: an ordered log of hand lifecycle events, redacted per the replay
// viewer rules, fanned out to a pluggable Sink.
package replay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pokerbotserver/internal/engine"
)

// PlayerDecisionContext captures the situational data attached to an
// action_taken record, used by offline analysis to reconstruct why a
// bot made a given decision.
type PlayerDecisionContext struct {
	PossibleActions    []string      `json:"possibleActions"`
	TimeToDecide       time.Duration `json:"timeToDecide"`
	Position           string        `json:"position"`
	ChipStack          int64         `json:"chipStack"`
	PotOdds            float64       `json:"potOdds"`
	EffectiveStackSize int64         `json:"effectiveStackSize"`
}

// Record is one row of the replay event schema (§6).
type Record struct {
	SequenceID        int64                  `json:"sequenceId"`
	GameID            string                 `json:"gameId"`
	Type              string                 `json:"type"`
	Timestamp         int64                  `json:"timestamp"` // unix millis
	HandNumber        int                    `json:"handNumber"`
	Phase             string                 `json:"phase"`
	PlayerID          string                 `json:"playerId,omitempty"`
	Action            *ActionRecord          `json:"action,omitempty"`
	GameStateBefore   *StateSnapshot         `json:"gameStateBefore,omitempty"`
	GameStateAfter    *StateSnapshot         `json:"gameStateAfter,omitempty"`
	DecisionContext   *PlayerDecisionContext `json:"playerDecisionContext,omitempty"`
	EventDurationMS   int64                  `json:"eventDuration,omitempty"`
}

// ActionRecord is the wire shape of an engine.Action.
type ActionRecord struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"kind"`
	Amount   int64  `json:"amount,omitempty"`
}

// StateSnapshot is a JSON-friendly, already-redacted projection of
// engine.GameState, suitable for external replay consumers.
type StateSnapshot struct {
	TableID            string   `json:"tableId"`
	HandNumber         int      `json:"handNumber"`
	Phase              string   `json:"phase"`
	CommunityCards     []string `json:"communityCards"`
	Pots               []int64  `json:"pots"`
	CurrentPlayerIndex int      `json:"currentPlayerToAct"`
	Seats              []SeatSnapshot `json:"seats"`
}

// SeatSnapshot is the per-seat portion of a StateSnapshot.
type SeatSnapshot struct {
	ID               string   `json:"id"`
	ChipStack        int64    `json:"chipStack"`
	CurrentBet       int64    `json:"currentBet"`
	TotalBetThisHand int64    `json:"totalBetThisHand"`
	HoleCards        []string `json:"holeCards,omitempty"`
	IsFolded         bool     `json:"isFolded"`
	IsAllIn          bool     `json:"isAllIn"`
}

// NewSequenceID generates a record id independent of the monotonic
// sequence number, for storage backends that want a stable primary key.
func NewSequenceID() string {
	return uuid.NewString()
}

// ToStateSnapshot redacts state per the replay viewer rule (same
// visibility as any non-owning showdown viewer) and flattens it to the
// wire shape.
func ToStateSnapshot(state *engine.GameState) *StateSnapshot {
	if state == nil {
		return nil
	}
	projected := engine.Project(state, engine.Viewer{Role: engine.ViewerReplay})
	snap := &StateSnapshot{
		TableID:            projected.TableID,
		HandNumber:         projected.HandNumber,
		Phase:              projected.Phase.String(),
		CurrentPlayerIndex: projected.CurrentPlayerIndex,
	}
	for _, c := range projected.CommunityCards {
		snap.CommunityCards = append(snap.CommunityCards, c.String())
	}
	for _, p := range projected.Pots {
		snap.Pots = append(snap.Pots, p.Amount)
	}
	for _, s := range projected.Seats {
		seat := SeatSnapshot{
			ID:               s.ID,
			ChipStack:        s.ChipStack,
			CurrentBet:       s.CurrentBet,
			TotalBetThisHand: s.TotalBetThisHand,
			IsFolded:         s.IsFolded,
			IsAllIn:          s.IsAllIn,
		}
		for _, c := range s.HoleCards {
			seat.HoleCards = append(seat.HoleCards, c.String())
		}
		snap.Seats = append(snap.Seats, seat)
	}
	return snap
}

// Marshal is a small convenience wrapper kept so sinks share one
// encoding path (and one place to swap codecs later).
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
