package engine

import "sort"

// PotManager tracks per-hand contributions and exposes the canonical pot
// layout, including side pots, at any point during a hand. It is owned by
// exactly one Engine and is not safe for concurrent use.
type PotManager struct {
	pots []Pot
}

// NewPotManager constructs an empty pot manager, already Reset and ready
// for use (Engine.startHand also calls Reset before every hand).
func NewPotManager() *PotManager {
	pm := &PotManager{}
	pm.Reset()
	return pm
}

// Reset clears contributions and creates a single empty main pot.
func (pm *PotManager) Reset() {
	pm.pots = []Pot{{Amount: 0, Eligible: map[string]bool{}}}
}

// AddBet increments the current main pot by amount and marks playerID
// eligible for it. Side-pot layering is recomputed lazily by
// CreateSidePots from each seat's running TotalBetThisHand, which the
// engine updates as the authoritative source of truth.
func (pm *PotManager) AddBet(playerID string, amount int64) {
	if len(pm.pots) == 0 {
		pm.Reset()
	}
	pm.pots[0].Amount += amount
	pm.pots[0].Eligible[playerID] = true
}

// Pots returns the current pot layout, main pot at index 0.
func (pm *PotManager) Pots() []Pot {
	return pm.pots
}

// Total returns the sum of every pot's amount.
func (pm *PotManager) Total() int64 {
	var total int64
	for _, p := range pm.pots {
		total += p.Amount
	}
	return total
}

// CreateSidePots rebuilds the pot list from each seat's TotalBetThisHand.
// Distinct positive contribution levels are processed ascending; the pot
// at layer L_i (predecessor L_{i-1}, 0 for the first) equals
// (L_i - L_{i-1}) * |{seats with contribution >= L_i}|, with eligibility
// restricted to non-folded seats that reached that level. Folded
// contributions stay in the pot amount but never make a folded seat
// eligible. Index 0 is always the main pot.
func (pm *PotManager) CreateSidePots(seats []*Seat) {
	levelSet := make(map[int64]bool)
	for _, s := range seats {
		if s.TotalBetThisHand > 0 {
			levelSet[s.TotalBetThisHand] = true
		}
	}
	if len(levelSet) == 0 {
		pm.Reset()
		return
	}

	levels := make([]int64, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]Pot, 0, len(levels))
	var prev int64
	for i, level := range levels {
		count := int64(0)
		eligible := map[string]bool{}
		for _, s := range seats {
			if s.TotalBetThisHand >= level {
				count++
				if !s.IsFolded {
					eligible[s.ID] = true
				}
			}
		}
		pots = append(pots, Pot{
			Amount:    (level - prev) * count,
			Eligible:  eligible,
			IsSidePot: i > 0,
		})
		prev = level
	}
	pm.pots = pots
}

// Distribute splits each pot (ascending index order) among the
// strictly-best-ranked eligible seats, using strength as the comparison
// key (higher wins). A seat absent from strength is treated as not
// having shown a hand and is skipped unless no eligible seat has an
// entry, in which case the pot is split evenly across all eligible
// seats. Odd chips go to the tied winner farthest clockwise from the
// dealer. seats must be in table ring order; dealerIndex indexes into
// seats.
func (pm *PotManager) Distribute(seats []*Seat, dealerIndex int, strength map[string]int64) map[string]int64 {
	seatIndex := make(map[string]int, len(seats))
	for i, s := range seats {
		seatIndex[s.ID] = i
	}
	n := len(seats)
	payouts := make(map[string]int64)

	for _, pot := range pm.pots {
		if pot.Amount == 0 || len(pot.Eligible) == 0 {
			continue
		}

		var winners []string
		var bestKey int64
		haveKey := false
		for id := range pot.Eligible {
			k, ok := strength[id]
			if !ok {
				continue
			}
			switch {
			case !haveKey || k > bestKey:
				bestKey, winners, haveKey = k, []string{id}, true
			case k == bestKey:
				winners = append(winners, id)
			}
		}
		if len(winners) == 0 {
			for id := range pot.Eligible {
				winners = append(winners, id)
			}
		}
		sort.Slice(winners, func(i, j int) bool { return seatIndex[winners[i]] < seatIndex[winners[j]] })

		share := pot.Amount / int64(len(winners))
		remainder := pot.Amount % int64(len(winners))
		for _, id := range winners {
			payouts[id] += share
		}
		if remainder > 0 {
			worst := winners[0]
			worstDist := clockwiseDistance(seatIndex[worst], dealerIndex, n)
			for _, id := range winners[1:] {
				d := clockwiseDistance(seatIndex[id], dealerIndex, n)
				if d > worstDist {
					worst, worstDist = id, d
				}
			}
			payouts[worst] += remainder
		}
	}
	return payouts
}

// clockwiseDistance is how many seats clockwise of dealerIdx seatIdx sits.
func clockwiseDistance(seatIdx, dealerIdx, n int) int {
	return ((seatIdx-dealerIdx)%n + n) % n
}
