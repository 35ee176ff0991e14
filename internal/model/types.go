package model

import (
	"log/slog"
	"math"
	"slices"
)

// RosterSize is the number of creatures fielded by one roster.
const RosterSize = 6

// NoScore marks a best-ever score that has not been observed yet.
const NoScore = math.MinInt

type CreatureID string

type TypeID string

// DamageRelations lists, for one attacking type, the defending types it hits
// for double damage, half damage and no damage.
type DamageRelations struct {
	DoubleDamageTo map[TypeID]struct{}
	HalfDamageTo   map[TypeID]struct{}
	NoDamageTo     map[TypeID]struct{}
}

func NewDamageRelations(double, half, none []TypeID) DamageRelations {
	return DamageRelations{
		DoubleDamageTo: typeSet(double),
		HalfDamageTo:   typeSet(half),
		NoDamageTo:     typeSet(none),
	}
}

func typeSet(types []TypeID) map[TypeID]struct{} {
	set := make(map[TypeID]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

type Creature struct {
	ID         CreatureID `json:"id"`
	Types      []TypeID   `json:"types"`
	Generation int        `json:"generation"`
	Sprite     string     `json:"sprite,omitempty"`
}

// Roster is one candidate team. Operators in internal/evo keep it at
// RosterSize distinct entries.
type Roster []CreatureID

func (r Roster) Clone() Roster {
	return slices.Clone(r)
}

func (r Roster) Equal(other Roster) bool {
	return slices.Equal(r, other)
}

func (r Roster) Contains(id CreatureID) bool {
	return slices.Contains(r, id)
}

// Distinct reports whether no creature appears twice.
func (r Roster) Distinct() bool {
	seen := make(map[CreatureID]struct{}, len(r))
	for _, id := range r {
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func (r Roster) Strings() []string {
	out := make([]string, len(r))
	for i, id := range r {
		out[i] = string(id)
	}
	return out
}

// OpponentGroup maps an opponent label to its lineup. Lineups may repeat a
// creature; every occurrence is scored.
type OpponentGroup map[string][]CreatureID

type Population []Roster

func (p Population) Clone() Population {
	out := make(Population, len(p))
	for i, r := range p {
		out[i] = r.Clone()
	}
	return out
}

type GenerationRecord struct {
	Generation int     `json:"generation" csv:"generation"`
	BestEver   int     `json:"best_ever" csv:"best_ever"`
	Average    float64 `json:"average" csv:"average"`
	StdDev     float64 `json:"std_dev" csv:"std_dev"`
}

func (g GenerationRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", g.Generation),
		slog.Int("best_ever", g.BestEver),
		slog.Float64("average", g.Average),
		slog.Float64("std_dev", g.StdDev),
	)
}

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	Region         string  `json:"region"`
	PopulationSize int     `json:"population_size"`
	MutationRate   float64 `json:"mutation_rate"`
	EliteCount     int     `json:"elite_count"`
	Seed           int64   `json:"seed"`
	Generations    int     `json:"generations"`
	BestScore      int     `json:"best_score"`
	BestRoster     Roster  `json:"best_roster"`
	PoolSize       int     `json:"pool_size"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

type PopulationSnapshot struct {
	VersionedRecord
	RunID      string     `json:"run_id"`
	Generation int        `json:"generation"`
	Population Population `json:"population"`
}
