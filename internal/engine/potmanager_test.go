package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seatsWithContributions(contribs map[string]int64, folded map[string]bool) []*Seat {
	seats := make([]*Seat, 0, len(contribs))
	for id, amt := range contribs {
		seats = append(seats, &Seat{ID: id, TotalBetThisHand: amt, IsFolded: folded[id], IsActive: true})
	}
	return seats
}

// TestCreateSidePotsThreeWayAllIn mirrors scenario S2: stacks 50/200/200,
// all three shove pre-flop. Main pot is 3x50=150; the remaining 150 each
// from the two 200-stacks forms a 300 side pot between them.
func TestCreateSidePotsThreeWayAllIn(t *testing.T) {
	seats := seatsWithContributions(map[string]int64{
		"short": 50, "mid": 200, "big": 200,
	}, nil)

	pm := NewPotManager()
	pm.CreateSidePots(seats)

	pots := pm.Pots()
	assert.Len(t, pots, 2)
	assert.Equal(t, int64(150), pots[0].Amount)
	assert.Len(t, pots[0].Eligible, 3)
	assert.Equal(t, int64(300), pots[1].Amount)
	assert.Len(t, pots[1].Eligible, 2)
	assert.False(t, pots[1].Eligible["short"])

	var total int64
	for _, p := range pots {
		total += p.Amount
	}
	var contributed int64
	for _, s := range seats {
		contributed += s.TotalBetThisHand
	}
	assert.Equal(t, contributed, total, "pot consistency: sum(pots) must equal sum(contributions)")
}

func TestCreateSidePotsExcludesFoldedFromEligibility(t *testing.T) {
	seats := seatsWithContributions(
		map[string]int64{"folder": 100, "winner": 100},
		map[string]bool{"folder": true},
	)
	pm := NewPotManager()
	pm.CreateSidePots(seats)

	pots := pm.Pots()
	assert.Len(t, pots, 1)
	assert.Equal(t, int64(200), pots[0].Amount, "folded contribution stays in the pot")
	assert.True(t, pots[0].Eligible["winner"])
	assert.False(t, pots[0].Eligible["folder"], "folded seats are never eligible")
}

func TestDistributeSplitsTieAndAwardsSidePotToSoleContributor(t *testing.T) {
	seats := []*Seat{
		{ID: "dealer"}, {ID: "mid"}, {ID: "farthest"},
	}
	pm := NewPotManager()
	pm.CreateSidePots([]*Seat{
		{ID: "dealer", TotalBetThisHand: 10},
		{ID: "mid", TotalBetThisHand: 10},
		{ID: "farthest", TotalBetThisHand: 11},
	})

	strength := map[string]int64{"dealer": 5, "mid": 5, "farthest": 1}
	payouts := pm.Distribute(seats, 0, strength)

	assert.Equal(t, int64(30), payouts["dealer"]+payouts["mid"], "tied winners split the 30-chip main layer")
	assert.Equal(t, payouts["mid"], payouts["dealer"], "even split, no remainder here")
	assert.Equal(t, int64(1), payouts["farthest"], "side pot layer goes to its sole contributor")
}

func TestDistributeAwardsOddChipFarthestClockwiseFromDealer(t *testing.T) {
	seats := []*Seat{{ID: "dealer"}, {ID: "b"}, {ID: "c"}}
	pm := NewPotManager()
	pm.Reset()
	pm.pots[0].Amount = 10
	pm.pots[0].Eligible = map[string]bool{"dealer": true, "b": true, "c": true}

	strength := map[string]int64{"dealer": 9, "b": 9, "c": 9}
	payouts := pm.Distribute(seats, 0, strength)

	assert.Equal(t, int64(3), payouts["dealer"])
	assert.Equal(t, int64(3), payouts["b"])
	assert.Equal(t, int64(4), payouts["c"], "farthest clockwise from dealer (index 2) takes the remainder")
}

func TestDistributeSingleEligibleSeatNoEvaluation(t *testing.T) {
	seats := []*Seat{{ID: "only"}, {ID: "other"}}
	pm := NewPotManager()
	pm.Reset()
	pm.pots[0].Amount = 40
	pm.pots[0].Eligible = map[string]bool{"only": true}

	payouts := pm.Distribute(seats, 0, map[string]int64{})
	assert.Equal(t, int64(40), payouts["only"])
	assert.Equal(t, int64(0), payouts["other"])
}
