package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeSeats(stacks ...int64) *GameState {
	seats := make([]*Seat, len(stacks))
	for i, s := range stacks {
		seats[i] = &Seat{ID: seatName(i), ChipStack: s, IsActive: true}
	}
	return &GameState{
		Seats:               seats,
		BigBlindAmount:      10,
		MinimumRaise:        10,
		CurrentPlayerIndex:  0,
		LastAggressorIndex:  -1,
		RoundAggressorIndex: -1,
		RoundAllowsRaise:    true,
	}
}

func seatName(i int) string {
	return []string{"p0", "p1", "p2", "p3"}[i]
}

func TestValidateOrderingPlayerNotFound(t *testing.T) {
	state := threeSeats(1000, 1000)
	v := NewActionValidator()
	err := v.Validate(state, Action{PlayerID: "ghost", Kind: Check})
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, ErrPlayerNotFound, actionErr.Kind)
}

func TestValidateOrderingNotYourTurn(t *testing.T) {
	state := threeSeats(1000, 1000)
	v := NewActionValidator()
	err := v.Validate(state, Action{PlayerID: "p1", Kind: Check})
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, ErrNotYourTurn, actionErr.Kind)
}

func TestValidateOrderingPlayerCannotAct(t *testing.T) {
	state := threeSeats(1000, 1000)
	state.Seats[0].IsFolded = true
	v := NewActionValidator()
	err := v.Validate(state, Action{PlayerID: "p0", Kind: Check})
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, ErrPlayerCannotAct, actionErr.Kind)
}

// TestIncompleteAllInDoesNotReopen mirrors scenario S4: three seats of
// 1000; UTG raises to 30, button calls 30, BB shoves for 40 total (an
// incomplete raise of 10, below the 20 minimum). The button's HasActed
// must remain true and Raise must not be in its possible actions.
func TestIncompleteAllInDoesNotReopen(t *testing.T) {
	state := threeSeats(1000, 1000, 1000)
	// p0=UTG, p1=button, p2=BB (pre-seeded with a 10-chip blind already posted).
	state.Seats[2].CurrentBet = 10
	state.Seats[2].TotalBetThisHand = 10
	state.Seats[2].ChipStack = 30 // leaves exactly 40 total if it shoves
	v := NewActionValidator()

	apply := func(playerID string, kind ActionKind, amount int64) {
		state.CurrentPlayerIndex = findSeatIndex(state, playerID)
		action := Action{PlayerID: playerID, Kind: kind, Amount: amount}
		require.NoError(t, v.Validate(state, action))
		seat := findSeat(state, playerID)
		effect := v.Effect(state, seat, action)
		seat.ChipStack -= effect.ChipDelta
		seat.CurrentBet = effect.NewCurrentBet
		seat.TotalBetThisHand += effect.ChipDelta
		seat.IsAllIn = effect.BecomesAllIn
		seat.HasActed = true
		if effect.IsAggression {
			if effect.ReopensAction {
				state.MinimumRaise = effect.NewMinimumRaise
				for _, other := range state.Seats {
					if other.ID != playerID && other.CanAct() {
						other.HasActed = false
					}
				}
			} else if seat.IsAllIn {
				state.RoundAllowsRaise = false
			}
		}
	}

	apply("p0", Raise, 30) // UTG raises to 30 (raise size 20, full raise; min was 10)
	apply("p1", Call, 0)   // button calls 30
	apply("p2", AllIn, 0)  // BB shoves to 40 total: raise size 10, below minimumRaise 20

	assert.True(t, state.Seats[1].HasActed, "button's HasActed must survive an incomplete all-in raise")

	state.CurrentPlayerIndex = findSeatIndex(state, "p1")
	possible := v.PossibleActions(state, "p1")
	assert.Contains(t, possible, Call)
	assert.Contains(t, possible, Fold)
	assert.NotContains(t, possible, Raise)
}

// TestMinRaiseAccounting mirrors scenario S5: 4 seats of 1000; UTG
// raises to 30; button re-raises to 70 (raise size 40). The next
// player's min-raise amount must be 110 (70 + 40).
func TestMinRaiseAccounting(t *testing.T) {
	state := threeSeats(1000, 1000, 1000, 1000)
	v := NewActionValidator()

	state.CurrentPlayerIndex = 0
	raiseTo := Action{PlayerID: "p0", Kind: Raise, Amount: 30}
	// First raise needs an existing bet; seed one as if blinds posted big blind 10.
	state.Seats[0].CurrentBet = 0
	for _, s := range state.Seats {
		s.CurrentBet = 0
	}
	state.Seats[1].CurrentBet = 10 // stand-in big blind already posted
	_ = raiseTo

	action1 := Action{PlayerID: "p0", Kind: Raise, Amount: 30}
	require.NoError(t, v.Validate(state, action1))
	effect1 := v.Effect(state, state.Seats[0], action1)
	state.Seats[0].CurrentBet = effect1.NewCurrentBet
	state.Seats[0].ChipStack -= effect1.ChipDelta
	state.MinimumRaise = effect1.NewMinimumRaise

	state.CurrentPlayerIndex = 1
	action2 := Action{PlayerID: "p1", Kind: Raise, Amount: 70}
	require.NoError(t, v.Validate(state, action2))
	effect2 := v.Effect(state, state.Seats[1], action2)
	state.Seats[1].CurrentBet = effect2.NewCurrentBet
	state.Seats[1].ChipStack -= effect2.ChipDelta
	state.MinimumRaise = effect2.NewMinimumRaise

	assert.Equal(t, int64(40), state.MinimumRaise)
	nextMinRaise := currentBet(state.Seats) + state.MinimumRaise
	assert.Equal(t, int64(110), nextMinRaise)
}

func TestValidateCallNotEnoughChipsAndAllIn(t *testing.T) {
	state := threeSeats(1000, 5)
	state.Seats[0].CurrentBet = 10
	v := NewActionValidator()
	state.CurrentPlayerIndex = 1

	err := v.Validate(state, Action{PlayerID: "p1", Kind: Call})
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, ErrNotEnoughChipsToCall, actionErr.Kind)

	require.NoError(t, v.Validate(state, Action{PlayerID: "p1", Kind: AllIn}))
}
