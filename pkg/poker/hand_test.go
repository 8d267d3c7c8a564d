package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateNotEnoughCards(t *testing.T) {
	eval := NewHandEvaluator()
	_, err := eval.Evaluate([]Card{NewCard(RankA, SuitSpades)}, nil)
	require.ErrorIs(t, err, ErrNotEnoughCards)
}

func TestEvaluateRoyalFlush(t *testing.T) {
	eval := NewHandEvaluator()
	hole := []Card{NewCard(RankA, SuitSpades), NewCard(RankK, SuitSpades)}
	community := []Card{
		NewCard(RankQ, SuitSpades), NewCard(RankJ, SuitSpades), NewCard(Rank10, SuitSpades),
		NewCard(Rank2, SuitHearts), NewCard(Rank3, SuitClubs),
	}
	hand, err := eval.Evaluate(hole, community)
	require.NoError(t, err)
	assert.Equal(t, RoyalFlush, hand.Category)
}

func TestEvaluateWheelStraightRanksLow(t *testing.T) {
	eval := NewHandEvaluator()
	wheel, err := eval.Evaluate(
		[]Card{NewCard(RankA, SuitSpades), NewCard(Rank2, SuitHearts)},
		[]Card{NewCard(Rank3, SuitClubs), NewCard(Rank4, SuitDiamonds), NewCard(Rank5, SuitSpades), NewCard(Rank9, SuitHearts), NewCard(Rank8, SuitClubs)},
	)
	require.NoError(t, err)
	assert.Equal(t, Straight, wheel.Category)
	assert.Equal(t, Rank5, wheel.Tiebreak[0])

	sixHigh, err := eval.Evaluate(
		[]Card{NewCard(Rank2, SuitSpades), NewCard(Rank3, SuitHearts)},
		[]Card{NewCard(Rank4, SuitClubs), NewCard(Rank5, SuitDiamonds), NewCard(Rank6, SuitSpades), NewCard(Rank9, SuitHearts), NewCard(Rank8, SuitClubs)},
	)
	require.NoError(t, err)
	assert.Equal(t, Straight, sixHigh.Category)

	assert.Equal(t, -1, eval.CompareHands(wheel, sixHigh), "wheel must rank below a 6-high straight")

	highCard, err := eval.Evaluate(
		[]Card{NewCard(RankK, SuitSpades), NewCard(Rank7, SuitHearts)},
		[]Card{NewCard(Rank2, SuitClubs), NewCard(Rank4, SuitDiamonds), NewCard(Rank9, SuitSpades), NewCard(RankJ, SuitHearts), NewCard(Rank3, SuitClubs)},
	)
	require.NoError(t, err)
	assert.Equal(t, HighCard, highCard.Category)
	assert.Equal(t, 1, eval.CompareHands(wheel, highCard), "wheel must beat every non-straight hand")
}

func TestEvaluateFullHouseBeatsFlush(t *testing.T) {
	eval := NewHandEvaluator()
	fullHouse, err := eval.Evaluate(
		[]Card{NewCard(RankK, SuitSpades), NewCard(RankK, SuitHearts)},
		[]Card{NewCard(RankK, SuitClubs), NewCard(Rank2, SuitDiamonds), NewCard(Rank2, SuitSpades), NewCard(Rank9, SuitHearts), NewCard(Rank4, SuitClubs)},
	)
	require.NoError(t, err)
	assert.Equal(t, FullHouse, fullHouse.Category)

	flush, err := eval.Evaluate(
		[]Card{NewCard(RankA, SuitHearts), NewCard(Rank9, SuitHearts)},
		[]Card{NewCard(Rank7, SuitHearts), NewCard(Rank4, SuitHearts), NewCard(Rank2, SuitHearts), NewCard(Rank3, SuitClubs), NewCard(Rank5, SuitDiamonds)},
	)
	require.NoError(t, err)
	assert.Equal(t, Flush, flush.Category)

	assert.Equal(t, 1, eval.CompareHands(fullHouse, flush))
}

func TestEvaluateKickerComparison(t *testing.T) {
	eval := NewHandEvaluator()
	acesKingKicker, err := eval.Evaluate(
		[]Card{NewCard(RankA, SuitSpades), NewCard(RankA, SuitHearts)},
		[]Card{NewCard(RankK, SuitClubs), NewCard(Rank2, SuitDiamonds), NewCard(Rank4, SuitSpades), NewCard(Rank9, SuitHearts), NewCard(Rank7, SuitClubs)},
	)
	require.NoError(t, err)

	acesQueenKicker, err := eval.Evaluate(
		[]Card{NewCard(RankA, SuitDiamonds), NewCard(RankA, SuitClubs)},
		[]Card{NewCard(RankQ, SuitClubs), NewCard(Rank2, SuitDiamonds), NewCard(Rank4, SuitSpades), NewCard(Rank9, SuitHearts), NewCard(Rank7, SuitClubs)},
	)
	require.NoError(t, err)

	assert.Equal(t, OnePair, acesKingKicker.Category)
	assert.Equal(t, OnePair, acesQueenKicker.Category)
	assert.Equal(t, 1, eval.CompareHands(acesKingKicker, acesQueenKicker))
}

func TestEvaluateTie(t *testing.T) {
	eval := NewHandEvaluator()
	a, err := eval.Evaluate(
		[]Card{NewCard(Rank2, SuitSpades), NewCard(Rank3, SuitHearts)},
		[]Card{NewCard(RankA, SuitClubs), NewCard(RankK, SuitDiamonds), NewCard(RankQ, SuitSpades), NewCard(RankJ, SuitHearts), NewCard(Rank10, SuitClubs)},
	)
	require.NoError(t, err)
	b, err := eval.Evaluate(
		[]Card{NewCard(Rank4, SuitSpades), NewCard(Rank5, SuitHearts)},
		[]Card{NewCard(RankA, SuitClubs), NewCard(RankK, SuitDiamonds), NewCard(RankQ, SuitSpades), NewCard(RankJ, SuitHearts), NewCard(Rank10, SuitClubs)},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, eval.CompareHands(a, b))
}

func TestDeckShuffleAndDraw(t *testing.T) {
	deck := NewDeck()
	require.Equal(t, 52, deck.Len())
	deck.Shuffle(fixedShuffler{})
	cards := deck.Draw(5)
	assert.Len(t, cards, 5)
	assert.Equal(t, 47, deck.Len())
}

func TestDeckDrawPanicsOnExhaustion(t *testing.T) {
	deck := NewDeck()
	deck.Draw(52)
	assert.Panics(t, func() { deck.Draw(1) })
}

type fixedShuffler struct{}

func (fixedShuffler) RandomInt(n int) int { return n - 1 }
