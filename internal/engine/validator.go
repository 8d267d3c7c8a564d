package engine

// ActionValidator enforces the legality of a requested action against a
// GameState and, when legal, reports the chip-level effects the caller
// must apply (new bet levels, stack deltas, whether the aggression
// reopens action for players who already acted this round).
//
// Validation order is fixed and significant: player existence, turn
// order, ability to act, then action-kind-specific rules. Callers rely
// on this order to surface the most relevant error first.
type ActionValidator struct{}

// NewActionValidator constructs a stateless validator.
func NewActionValidator() *ActionValidator {
	return &ActionValidator{}
}

// currentBet is the highest CurrentBet among seats still in the hand.
func currentBet(seats []*Seat) int64 {
	var max int64
	for _, s := range seats {
		if s.CurrentBet > max {
			max = s.CurrentBet
		}
	}
	return max
}

// Validate checks whether action is legal given state. It never mutates
// state.
func (v *ActionValidator) Validate(state *GameState, action Action) error {
	seat := findSeat(state, action.PlayerID)
	if seat == nil {
		return newActionErr(ErrPlayerNotFound)
	}
	if state.Seats[state.CurrentPlayerIndex].ID != action.PlayerID {
		return newActionErr(ErrNotYourTurn)
	}
	if !seat.CanAct() {
		return newActionErr(ErrPlayerCannotAct)
	}

	bet := currentBet(state.Seats)
	toCall := bet - seat.CurrentBet

	switch action.Kind {
	case Fold:
		return nil

	case Check:
		if toCall > 0 {
			return newActionErr(ErrCannotCheck)
		}
		return nil

	case Call:
		if toCall <= 0 {
			return newActionErr(ErrCannotCallNoBet)
		}
		if seat.ChipStack < toCall {
			return newActionErr(ErrNotEnoughChipsToCall)
		}
		return nil

	case Bet:
		if bet > 0 {
			return newActionErr(ErrCannotBetExistingBet)
		}
		if state.RoundAggressorIndex >= 0 {
			return newActionErr(ErrCannotBetRoundInProgress)
		}
		if action.Amount < state.BigBlindAmount {
			return newActionErrAmount(ErrBetTooSmall, state.BigBlindAmount)
		}
		if seat.ChipStack < action.Amount {
			return newActionErr(ErrNotEnoughChipsToBet)
		}
		return nil

	case Raise:
		if bet == 0 {
			return newActionErr(ErrCannotRaiseNoBet)
		}
		if seat.HasActed && !state.RoundAllowsRaise {
			return newActionErr(ErrRaiseCapped)
		}
		minTotal := bet + state.MinimumRaise
		maxTotal := seat.CurrentBet + seat.ChipStack
		if action.Amount < minTotal && action.Amount < maxTotal {
			return newActionErrAmount(ErrRaiseTooSmall, minTotal)
		}
		if action.Amount > maxTotal {
			return newActionErrAmount(ErrRaiseTooLarge, maxTotal)
		}
		return nil

	case AllIn:
		if seat.ChipStack <= 0 {
			return newActionErr(ErrNoChipsForAllIn)
		}
		if seat.IsAllIn {
			return newActionErr(ErrAlreadyAllIn)
		}
		return nil

	default:
		return newActionErr(ErrInvalidActionKind)
	}
}

// PossibleActions lists the action kinds currently legal for playerID,
// in the canonical order Fold, Check, Call, Bet, Raise, AllIn — filtered
// to those that would pass Validate with some amount.
func (v *ActionValidator) PossibleActions(state *GameState, playerID string) []ActionKind {
	seat := findSeat(state, playerID)
	if seat == nil || state.Seats[state.CurrentPlayerIndex].ID != playerID || !seat.CanAct() {
		return nil
	}

	bet := currentBet(state.Seats)
	toCall := bet - seat.CurrentBet

	var actions []ActionKind
	actions = append(actions, Fold)
	if toCall <= 0 {
		actions = append(actions, Check)
	} else if seat.ChipStack >= toCall {
		actions = append(actions, Call)
	}
	if bet == 0 && state.RoundAggressorIndex < 0 && seat.ChipStack >= state.BigBlindAmount {
		actions = append(actions, Bet)
	}
	if bet > 0 && (!seat.HasActed || state.RoundAllowsRaise) {
		maxTotal := seat.CurrentBet + seat.ChipStack
		if maxTotal > bet {
			actions = append(actions, Raise)
		}
	}
	if seat.ChipStack > 0 {
		actions = append(actions, AllIn)
	}
	return actions
}

// ActionEffect describes the chip-level consequence of a validated
// action, for the engine to apply.
type ActionEffect struct {
	NewCurrentBet    int64 // seat's CurrentBet after the action
	ChipDelta        int64 // chips removed from seat.ChipStack (positive)
	BecomesAllIn     bool
	ReopensAction    bool // true if this aggression resets HasActed on other seats
	NewMinimumRaise  int64
	IsAggression     bool // Bet/Raise/qualifying All-In — becomes the new RoundAggressor
}

// Effect computes the chip-level effect of an already-validated action.
// Callers must call Validate first; Effect does not re-check legality.
func (v *ActionValidator) Effect(state *GameState, seat *Seat, action Action) ActionEffect {
	bet := currentBet(state.Seats)

	switch action.Kind {
	case Fold:
		return ActionEffect{}

	case Check:
		return ActionEffect{NewCurrentBet: seat.CurrentBet}

	case Call:
		toCall := bet - seat.CurrentBet
		allIn := toCall >= seat.ChipStack
		delta := toCall
		if allIn {
			delta = seat.ChipStack
		}
		return ActionEffect{
			NewCurrentBet: seat.CurrentBet + delta,
			ChipDelta:     delta,
			BecomesAllIn:  allIn,
		}

	case Bet:
		delta := action.Amount
		allIn := delta >= seat.ChipStack
		if allIn {
			delta = seat.ChipStack
		}
		return ActionEffect{
			NewCurrentBet:   seat.CurrentBet + delta,
			ChipDelta:       delta,
			BecomesAllIn:    allIn,
			ReopensAction:   true,
			IsAggression:    true,
			NewMinimumRaise: delta,
		}

	case Raise:
		delta := action.Amount - seat.CurrentBet
		allIn := delta >= seat.ChipStack
		if allIn {
			delta = seat.ChipStack
		}
		raiseSize := (seat.CurrentBet + delta) - bet
		reopens := raiseSize >= state.MinimumRaise
		effect := ActionEffect{
			NewCurrentBet: seat.CurrentBet + delta,
			ChipDelta:     delta,
			BecomesAllIn:  allIn,
			ReopensAction: reopens,
			IsAggression:  true,
		}
		if reopens {
			effect.NewMinimumRaise = raiseSize
		} else {
			effect.NewMinimumRaise = state.MinimumRaise
		}
		return effect

	case AllIn:
		delta := seat.ChipStack
		newTotal := seat.CurrentBet + delta
		reopens := true
		raiseSize := newTotal - bet
		if newTotal <= bet {
			reopens = false
		} else if raiseSize < state.MinimumRaise {
			reopens = false
		}
		effect := ActionEffect{
			NewCurrentBet: newTotal,
			ChipDelta:     delta,
			BecomesAllIn:  true,
			ReopensAction: reopens,
			IsAggression:  newTotal > bet,
		}
		if reopens {
			effect.NewMinimumRaise = raiseSize
		} else {
			effect.NewMinimumRaise = state.MinimumRaise
		}
		return effect

	default:
		return ActionEffect{}
	}
}

func findSeat(state *GameState, playerID string) *Seat {
	for _, s := range state.Seats {
		if s.ID == playerID {
			return s
		}
	}
	return nil
}

func findSeatIndex(state *GameState, playerID string) int {
	for i, s := range state.Seats {
		if s.ID == playerID {
			return i
		}
	}
	return -1
}
