package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialShuffler performs no swaps, leaving poker.NewDeck's built-in
// rank-then-suit order intact, so tests can reason about exactly which
// cards are dealt.
type sequentialShuffler struct{}

func (sequentialShuffler) RandomInt(n int) int { return n - 1 }

func newTestEngine(t *testing.T, maxPlayers int, sb, bb int64) *Engine {
	t.Helper()
	cfg := TableConfig{TableID: "t1", MaxPlayers: maxPlayers, SmallBlindAmount: sb, BigBlindAmount: bb}
	return NewEngine(cfg, sequentialShuffler{})
}

func sumStacks(state *GameState) int64 {
	var total int64
	for _, s := range state.Seats {
		total += s.ChipStack
	}
	return total
}

// TestHeadsUpFoldWalk mirrors scenario S1: two seats, 1000/1000, blinds
// 5/10. The dealer/SB folds on its first action; the BB wins the blinds.
func TestHeadsUpFoldWalk(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("sb", "SB", 1000))
	require.NoError(t, e.AddPlayer("bb", "BB", 1000))

	before := sumStacks(e.Snapshot())
	require.NoError(t, e.StartHand())

	state := e.Snapshot()
	require.Equal(t, "sb", state.Seats[state.CurrentPlayerIndex].ID, "heads-up: dealer/SB acts first pre-flop")

	require.NoError(t, e.ProcessAction(Action{PlayerID: "sb", Kind: Fold, Timestamp: time.Now()}))

	final := e.Snapshot()
	assert.Equal(t, HandComplete, final.Phase)
	assert.False(t, e.IsGameRunning())
	assert.Equal(t, int64(995), findSeat(final, "sb").ChipStack)
	assert.Equal(t, int64(1005), findSeat(final, "bb").ChipStack)
	assert.Equal(t, before, sumStacks(final), "chip conservation across the hand")
}

// TestShortStackBlindAutoShowdown mirrors scenario S3: heads-up, SB has
// 3 chips, BB has 7. Both go all-in posting blinds and the engine
// auto-advances straight to showdown without further action.
func TestShortStackBlindAutoShowdown(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("sb", "SB", 3))
	require.NoError(t, e.AddPlayer("bb", "BB", 7))

	before := sumStacks(e.Snapshot())
	require.NoError(t, e.StartHand())

	final := e.Snapshot()
	assert.Equal(t, HandComplete, final.Phase)
	assert.False(t, e.IsGameRunning())
	assert.True(t, findSeat(final, "sb").IsAllIn)
	assert.True(t, findSeat(final, "bb").IsAllIn)
	assert.Equal(t, before, sumStacks(final), "chip conservation even when blinds exhaust both stacks")
	assert.Len(t, final.CommunityCards, 5, "auto-advance must deal flop+turn+river")
}

func TestStartHandRequiresTwoPlayersWithChips(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("a", "A", 100))
	err := e.StartHand()
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestStartHandRejectsWhileRunning(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("a", "A", 100))
	require.NoError(t, e.AddPlayer("b", "B", 100))
	require.NoError(t, e.StartHand())
	assert.ErrorIs(t, e.StartHand(), ErrAlreadyRunning)
}

func TestProcessActionFailsWhenNotRunning(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("a", "A", 100))
	require.NoError(t, e.AddPlayer("b", "B", 100))
	err := e.ProcessAction(Action{PlayerID: "a", Kind: Check})
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, ErrGameNotRunning, stateErr.Kind)
}

func TestForcePlayerActionChecksOrFolds(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("sb", "SB", 1000))
	require.NoError(t, e.AddPlayer("bb", "BB", 1000))
	require.NoError(t, e.StartHand())

	// sb faces a live bet (the big blind) so forcing must fold it.
	require.NoError(t, e.ForcePlayerAction("sb"))
	final := e.Snapshot()
	assert.True(t, findSeat(final, "sb").IsFolded)
	assert.Equal(t, HandComplete, final.Phase)
}

func TestVisibilityHidesOtherSeatsPreShowdown(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("sb", "SB", 1000))
	require.NoError(t, e.AddPlayer("bb", "BB", 1000))
	require.NoError(t, e.StartHand())

	view := e.GetBotGameState("bb")
	assert.NotEmpty(t, findSeat(view, "bb").HoleCards, "a seat always sees its own cards")
	assert.Empty(t, findSeat(view, "sb").HoleCards, "opponent cards hidden mid-hand")
}

func TestVisibilityRevealsNonFoldedAtShowdown(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("sb", "SB", 3))
	require.NoError(t, e.AddPlayer("bb", "BB", 7))
	require.NoError(t, e.StartHand()) // auto-advances to showdown (scenario S3)

	complete := CompleteView(e.Snapshot())
	sb := findSeat(complete, "sb")
	bb := findSeat(complete, "bb")
	assert.NotEmpty(t, sb.HoleCards)
	assert.NotEmpty(t, bb.HoleCards)

	spectatorView := Project(e.Snapshot(), Viewer{Role: ViewerSpectator})
	if !findSeat(spectatorView, "sb").IsFolded {
		assert.NotEmpty(t, findSeat(spectatorView, "sb").HoleCards)
	}
}

func TestAddPlayerRejectsDuplicateAndFullTable(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("a", "A", 100))
	assert.ErrorIs(t, e.AddPlayer("a", "A", 100), ErrPlayerAlreadySeated)
	require.NoError(t, e.AddPlayer("b", "B", 100))
	assert.ErrorIs(t, e.AddPlayer("c", "C", 100), ErrTableFull)
}

func TestEventEmissionOrder(t *testing.T) {
	e := newTestEngine(t, 2, 5, 10)
	require.NoError(t, e.AddPlayer("sb", "SB", 1000))
	require.NoError(t, e.AddPlayer("bb", "BB", 1000))

	var order []EventType
	e.OnEvent(func(ev Event) { order = append(order, ev.Type) })

	require.NoError(t, e.StartHand())
	require.NoError(t, e.ProcessAction(Action{PlayerID: "sb", Kind: Fold}))

	require.GreaterOrEqual(t, len(order), 4)
	assert.Equal(t, EventHandStarted, order[0])
	assert.Equal(t, EventHoleCardsDealt, order[1])
	assert.Equal(t, EventBlindsPosted, order[2])
	assert.Contains(t, order, EventActionTaken)
	assert.Equal(t, EventHandComplete, order[len(order)-1])
}
