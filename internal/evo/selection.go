package evo

import (
	"fmt"
	"math/rand"

	"gymteam/internal/model"
)

// Selector chooses parents from a ranked population for breeding.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredRoster) (model.Roster, error)
}

// UniformSelector picks uniformly from the whole ranked population,
// ignoring scores. It is the default.
type UniformSelector struct{}

func (UniformSelector) Name() string {
	return "uniform"
}

func (UniformSelector) PickParent(rng *rand.Rand, ranked []ScoredRoster) (model.Roster, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("ranked population is empty")
	}
	return ranked[rng.Intn(len(ranked))].Roster, nil
}

// EliteSelector picks uniformly from the top Count ranked rosters.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredRoster) (model.Roster, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if s.Count <= 0 || s.Count > len(ranked) {
		return nil, fmt.Errorf("invalid elite count: %d", s.Count)
	}
	return ranked[rng.Intn(s.Count)].Roster, nil
}

// TournamentSelector samples Size rosters with replacement and keeps the
// highest scoring one.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredRoster) (model.Roster, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("ranked population is empty")
	}

	size := s.Size
	if size <= 0 {
		size = 3
	}
	if size > len(ranked) {
		size = len(ranked)
	}

	best := ranked[rng.Intn(len(ranked))]
	for i := 1; i < size; i++ {
		candidate := ranked[rng.Intn(len(ranked))]
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best.Roster, nil
}

// SelectorFromName resolves a selection strategy by name. eliteCount feeds
// the elite strategy.
func SelectorFromName(name string, eliteCount int) (Selector, error) {
	switch name {
	case "", "uniform":
		return UniformSelector{}, nil
	case "elite":
		if eliteCount <= 0 {
			eliteCount = 1
		}
		return EliteSelector{Count: eliteCount}, nil
	case "tournament":
		return TournamentSelector{Size: 3}, nil
	default:
		return nil, fmt.Errorf("unsupported selection: %s", name)
	}
}
