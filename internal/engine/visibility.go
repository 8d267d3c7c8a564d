package engine

import "pokerbotserver/pkg/poker"

// Viewer identifies who a projected GameState is being shown to. Role
// distinguishes a seated player from a spectator/replay consumer;
// SeatID is ignored for non-player roles.
type Viewer struct {
	Role   ViewerRole
	SeatID string
}

type ViewerRole int

const (
	ViewerPlayer ViewerRole = iota
	ViewerSpectator
	ViewerReplay
)

// PublicView returns state with every hole card hidden, for viewers
// with no seat of their own (the lobby, table listings).
func PublicView(state *GameState) *GameState {
	cp := cloneState(state)
	for _, s := range cp.Seats {
		s.HoleCards = nil
	}
	return cp
}

// CompleteView returns state with every hole card revealed; used for
// server-internal tooling and tests, never sent to a client directly.
func CompleteView(state *GameState) *GameState {
	cp := cloneState(state)
	return cp
}

// Project redacts state for a single viewer per §4.7: a seat's own hole
// cards are always visible to itself; any seat's cards are visible once
// the hand reaches Showdown/HandComplete, unless that seat folded.
// Spectators and replay viewers follow the same showdown-visibility
// rule as any non-owning viewer.
func Project(state *GameState, viewer Viewer) *GameState {
	cp := cloneState(state)
	atShowdown := cp.Phase == Showdown || cp.Phase == HandComplete

	for _, s := range cp.Seats {
		isOwner := viewer.Role == ViewerPlayer && s.ID == viewer.SeatID
		revealed := atShowdown && !s.IsFolded
		if !isOwner && !revealed {
			s.HoleCards = nil
		}
	}
	return cp
}

func cloneState(state *GameState) *GameState {
	cp := *state
	cp.Seats = make([]*Seat, len(state.Seats))
	for i, s := range state.Seats {
		seatCopy := *s
		seatCopy.HoleCards = append([]poker.Card(nil), s.HoleCards...)
		cp.Seats[i] = &seatCopy
	}
	cp.CommunityCards = append([]poker.Card(nil), state.CommunityCards...)
	cp.Pots = append([]Pot(nil), state.Pots...)
	return &cp
}
