package catalog

import (
	"slices"

	"gymteam/internal/model"
)

// Catalog is the read-only creature and type lookup the search engine
// consumes. Implementations must be safe for concurrent reads.
type Catalog interface {
	CreatureTypes(id model.CreatureID) ([]model.TypeID, bool)
	DamageRelations(t model.TypeID) (model.DamageRelations, bool)
	GenerationOf(id model.CreatureID) (int, bool)
	AllCreatureIDs() []model.CreatureID
}

// Memory is an immutable Catalog held in maps. It is never modified after
// NewMemory returns, so concurrent scoring needs no locking.
type Memory struct {
	creatures map[model.CreatureID]model.Creature
	relations map[model.TypeID]model.DamageRelations
	ids       []model.CreatureID
}

func NewMemory(creatures []model.Creature, relations map[model.TypeID]model.DamageRelations) *Memory {
	m := &Memory{
		creatures: make(map[model.CreatureID]model.Creature, len(creatures)),
		relations: make(map[model.TypeID]model.DamageRelations, len(relations)),
	}
	for _, c := range creatures {
		c.Types = slices.Clone(c.Types)
		m.creatures[c.ID] = c
	}
	for t, rel := range relations {
		m.relations[t] = rel
	}
	m.ids = make([]model.CreatureID, 0, len(m.creatures))
	for id := range m.creatures {
		m.ids = append(m.ids, id)
	}
	slices.Sort(m.ids)
	return m
}

func (m *Memory) CreatureTypes(id model.CreatureID) ([]model.TypeID, bool) {
	c, ok := m.creatures[id]
	if !ok {
		return nil, false
	}
	return c.Types, true
}

func (m *Memory) DamageRelations(t model.TypeID) (model.DamageRelations, bool) {
	rel, ok := m.relations[t]
	return rel, ok
}

// GenerationOf reports the generation a creature was introduced in. A zero
// generation in the source data is treated as unknown.
func (m *Memory) GenerationOf(id model.CreatureID) (int, bool) {
	c, ok := m.creatures[id]
	if !ok || c.Generation <= 0 {
		return 0, false
	}
	return c.Generation, true
}

// AllCreatureIDs returns every creature id in ascending order.
func (m *Memory) AllCreatureIDs() []model.CreatureID {
	return slices.Clone(m.ids)
}

func (m *Memory) Creature(id model.CreatureID) (model.Creature, bool) {
	c, ok := m.creatures[id]
	return c, ok
}

func (m *Memory) TypeIDs() []model.TypeID {
	out := make([]model.TypeID, 0, len(m.relations))
	for t := range m.relations {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (m *Memory) Len() int {
	return len(m.creatures)
}

// EligiblePool returns the distinct creatures whose generation is known and
// at most cutoff, sorted so that seeded runs are reproducible.
func EligiblePool(c Catalog, cutoff int) []model.CreatureID {
	ids := c.AllCreatureIDs()
	pool := make([]model.CreatureID, 0, len(ids))
	seen := make(map[model.CreatureID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		gen, ok := c.GenerationOf(id)
		if !ok || gen > cutoff {
			continue
		}
		pool = append(pool, id)
	}
	slices.Sort(pool)
	return pool
}
