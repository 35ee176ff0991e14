package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"gymteam/internal/model"
)

// ErrInsufficientPool reports an eligible pool with fewer than
// model.RosterSize distinct creatures.
var ErrInsufficientPool = errors.New("insufficient creature pool")

// maxResampleAttempts bounds random replacement draws before falling back
// to a scan of the pool in order.
const maxResampleAttempts = 32

// DistinctPool drops repeated ids, keeping first occurrences in order.
func DistinctPool(pool []model.CreatureID) []model.CreatureID {
	out := make([]model.CreatureID, 0, len(pool))
	seen := make(map[model.CreatureID]struct{}, len(pool))
	for _, id := range pool {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CheckPool returns ErrInsufficientPool when pool cannot supply a full roster.
func CheckPool(pool []model.CreatureID) error {
	if n := len(DistinctPool(pool)); n < model.RosterSize {
		return fmt.Errorf("%w: have %d distinct creatures, need %d", ErrInsufficientPool, n, model.RosterSize)
	}
	return nil
}

// CreateIndividual draws model.RosterSize distinct creatures uniformly
// without replacement.
func CreateIndividual(rng *rand.Rand, pool []model.CreatureID) (model.Roster, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	candidates := DistinctPool(pool)
	if len(candidates) < model.RosterSize {
		return nil, fmt.Errorf("%w: have %d distinct creatures, need %d", ErrInsufficientPool, len(candidates), model.RosterSize)
	}
	for i := 0; i < model.RosterSize; i++ {
		j := i + rng.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return model.Roster(candidates[:model.RosterSize]).Clone(), nil
}

// Crossover keeps a's first cut entries in place, cut drawn from
// [1, RosterSize-1], then appends b's entries in b's order, skipping any
// already taken. A child left short by heavily overlapping parents is padded
// from pool.
func Crossover(rng *rand.Rand, a, b model.Roster, pool []model.CreatureID) model.Roster {
	cut := 1 + rng.Intn(model.RosterSize-1)
	if cut > len(a) {
		cut = len(a)
	}

	child := make(model.Roster, 0, model.RosterSize)
	child = append(child, a[:cut]...)
	for _, id := range b {
		if len(child) == model.RosterSize {
			break
		}
		if child.Contains(id) {
			continue
		}
		child = append(child, id)
	}

	for len(child) < model.RosterSize {
		id, ok := pickNonMember(rng, child, pool)
		if !ok {
			break
		}
		child = append(child, id)
	}
	return child
}

// Mutate returns a copy of individual in which, with probability rate, one
// uniformly chosen slot holds a pool creature absent from the individual.
// When the pool has no such creature the copy is returned unchanged.
func Mutate(rng *rand.Rand, individual model.Roster, pool []model.CreatureID, rate float64) model.Roster {
	child := individual.Clone()
	if len(child) == 0 || rng.Float64() >= rate {
		return child
	}
	slot := rng.Intn(len(child))
	if id, ok := pickNonMember(rng, child, pool); ok {
		child[slot] = id
	}
	return child
}

func pickNonMember(rng *rand.Rand, roster model.Roster, pool []model.CreatureID) (model.CreatureID, bool) {
	if len(pool) == 0 {
		return "", false
	}
	for attempt := 0; attempt < maxResampleAttempts; attempt++ {
		id := pool[rng.Intn(len(pool))]
		if !roster.Contains(id) {
			return id, true
		}
	}
	for _, id := range pool {
		if !roster.Contains(id) {
			return id, true
		}
	}
	return "", false
}
