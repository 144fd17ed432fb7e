package consensus

import (
	"poc-router/logging"
)

// DefaultSlots is the size of the first sampling batch.
const DefaultSlots = 64

// Decision is the outcome of a consensus evaluation.
type Decision int

const (
	Indeterminate Decision = iota
	Yes
	No
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "indeterminate"
	}
}

// VoteFetch retrieves one validator's vote. Called at most once per address
// within a single Reach evaluation.
type VoteFetch func(address string) (bool, error)

// Sampler runs weighted-slot consensus over a vote-fetch capability.
type Sampler struct {
	nSlots int
}

func NewSampler(nSlots int) *Sampler {
	if nSlots <= 0 {
		nSlots = DefaultSlots
	}
	return &Sampler{nSlots: nSlots}
}

// Reach samples validator slots from the weight table and tallies their
// votes. Phase one samples a fixed batch; a strict majority of the batch
// decides. If inconclusive, phase two draws one slot at a time, re-checking
// after every vote whether yes or no holds a strict majority of the votes
// cast so far. The walk is bounded by the total weight; hitting the bound
// without a majority yields Indeterminate.
func (s *Sampler) Reach(appHash, hostAddress string, weights []WeightEntry, fetch VoteFetch) (Decision, error) {
	entries, totalWeight := PrepareEntries(weights)
	if totalWeight == 0 {
		return Indeterminate, nil
	}

	votes := make(map[string]bool)
	slots := Slots(appHash, hostAddress, entries, totalWeight, 0, s.nSlots)

	var votedYes, votedNo int
	for _, addr := range slots {
		vote, err := s.voteFor(addr, votes, fetch)
		if err != nil {
			return Indeterminate, err
		}
		if vote {
			votedYes++
		} else {
			votedNo++
		}
	}
	if votedYes*2 > s.nSlots {
		return Yes, nil
	}
	if votedNo*2 > s.nSlots {
		return No, nil
	}

	logging.Debug("Batch sampling inconclusive, falling back to incremental slots",
		logging.Consensus, "yes", votedYes, "no", votedNo, "slots", s.nSlots)

	// Each additional slot shifts the majority denominator to the votes
	// cast so far, so the walk stops as soon as either side is decisive.
	for slotIdx := int64(s.nSlots); slotIdx < totalWeight; slotIdx++ {
		addr := Slot(appHash, hostAddress, entries, totalWeight, int(slotIdx))
		vote, err := s.voteFor(addr, votes, fetch)
		if err != nil {
			return Indeterminate, err
		}
		if vote {
			votedYes++
		} else {
			votedNo++
		}

		cast := slotIdx + 1
		if int64(votedYes)*2 > cast {
			return Yes, nil
		}
		if int64(votedNo)*2 > cast {
			return No, nil
		}
	}

	return Indeterminate, nil
}

func (s *Sampler) voteFor(addr string, cache map[string]bool, fetch VoteFetch) (bool, error) {
	if vote, ok := cache[addr]; ok {
		return vote, nil
	}
	vote, err := fetch(addr)
	if err != nil {
		return false, err
	}
	cache[addr] = vote
	return vote, nil
}
