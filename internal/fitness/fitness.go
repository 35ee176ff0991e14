// Package fitness scores rosters against opponent lineups using one-way
// type effectiveness: the roster's attacking types against the opponent's
// defending types.
package fitness

import (
	"slices"

	"gymteam/internal/catalog"
	"gymteam/internal/model"
)

const (
	SuperEffective = 2
	Resisted       = -1
	NoEffect       = -2

	// Sentinel seeds the best-matchup accumulator. It sits below the worst
	// reachable pairwise score (two types at NoEffect each, -4), so it only
	// survives when no roster member is known to the catalog.
	Sentinel = -10
)

// TypeDelta scores one attacking type against one defending type. The
// double, half and no damage lists are checked in that order.
func TypeDelta(rel model.DamageRelations, defending model.TypeID) int {
	if _, ok := rel.DoubleDamageTo[defending]; ok {
		return SuperEffective
	}
	if _, ok := rel.HalfDamageTo[defending]; ok {
		return Resisted
	}
	if _, ok := rel.NoDamageTo[defending]; ok {
		return NoEffect
	}
	return 0
}

// Matchup sums TypeDelta over every attacking type of attacker and every
// defending type of defender. It reports false when either creature is
// unknown. Attacking types without relations contribute zero.
func Matchup(attacker, defender model.CreatureID, c catalog.Catalog) (int, bool) {
	attackTypes, ok := c.CreatureTypes(attacker)
	if !ok {
		return 0, false
	}
	defendTypes, ok := c.CreatureTypes(defender)
	if !ok {
		return 0, false
	}
	return typesMatchup(attackTypes, defendTypes, c), true
}

func typesMatchup(attackTypes, defendTypes []model.TypeID, c catalog.Catalog) int {
	score := 0
	for _, at := range attackTypes {
		rel, ok := c.DamageRelations(at)
		if !ok {
			continue
		}
		for _, dt := range defendTypes {
			score += TypeDelta(rel, dt)
		}
	}
	return score
}

// BestMatchup returns the best pairwise score any roster member achieves
// against opponent. Unknown opponents report false and score nothing.
func BestMatchup(roster model.Roster, opponent model.CreatureID, c catalog.Catalog) (int, bool) {
	defendTypes, ok := c.CreatureTypes(opponent)
	if !ok {
		return 0, false
	}
	best := Sentinel
	for _, member := range roster {
		attackTypes, ok := c.CreatureTypes(member)
		if !ok {
			continue
		}
		if s := typesMatchup(attackTypes, defendTypes, c); s > best {
			best = s
		}
	}
	return best, true
}

// Score totals BestMatchup over every occurrence in every lineup of the
// group. It is a pure function of its inputs.
func Score(roster model.Roster, opponents model.OpponentGroup, c catalog.Catalog) int {
	total := 0
	for _, lineup := range opponents {
		total += lineupScore(roster, lineup, c)
	}
	return total
}

func lineupScore(roster model.Roster, lineup []model.CreatureID, c catalog.Catalog) int {
	total := 0
	for _, opponent := range lineup {
		if best, ok := BestMatchup(roster, opponent, c); ok {
			total += best
		}
	}
	return total
}

// LeaderScore is one opponent's share of a roster's total score.
type LeaderScore struct {
	Leader string `json:"leader"`
	Score  int    `json:"score"`
	// Unknown lists lineup entries the catalog could not resolve.
	Unknown []model.CreatureID `json:"unknown,omitempty"`
}

// Evaluator binds a catalog and an opponent group so rosters can be scored
// with a single argument.
type Evaluator struct {
	Catalog   catalog.Catalog
	Opponents model.OpponentGroup
}

func (e Evaluator) Score(roster model.Roster) int {
	return Score(roster, e.Opponents, e.Catalog)
}

// Breakdown returns per-leader contributions ordered by leader name.
func (e Evaluator) Breakdown(roster model.Roster) []LeaderScore {
	leaders := make([]string, 0, len(e.Opponents))
	for name := range e.Opponents {
		leaders = append(leaders, name)
	}
	slices.Sort(leaders)

	out := make([]LeaderScore, 0, len(leaders))
	for _, name := range leaders {
		item := LeaderScore{Leader: name}
		for _, opponent := range e.Opponents[name] {
			best, ok := BestMatchup(roster, opponent, e.Catalog)
			if !ok {
				item.Unknown = append(item.Unknown, opponent)
				continue
			}
			item.Score += best
		}
		out = append(out, item)
	}
	return out
}
