package evo

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gymteam/internal/catalog"
	"gymteam/internal/fitness"
	"gymteam/internal/model"
)

var fixtureTypes = []model.TypeID{"fire", "water", "grass", "rock", "electric", "ground"}

func fixtureCatalog(n int) (*catalog.Memory, []model.CreatureID) {
	creatures := make([]model.Creature, 0, n)
	for i := 0; i < n; i++ {
		types := []model.TypeID{fixtureTypes[i%len(fixtureTypes)]}
		if i%3 == 0 {
			types = append(types, fixtureTypes[(i+2)%len(fixtureTypes)])
		}
		creatures = append(creatures, model.Creature{
			ID:         model.CreatureID(fmt.Sprintf("c%02d", i)),
			Types:      types,
			Generation: 1 + i%3,
		})
	}
	relations := map[model.TypeID]model.DamageRelations{
		"fire":     model.NewDamageRelations([]model.TypeID{"grass"}, []model.TypeID{"water", "rock", "fire"}, nil),
		"water":    model.NewDamageRelations([]model.TypeID{"fire", "rock", "ground"}, []model.TypeID{"grass", "water"}, nil),
		"grass":    model.NewDamageRelations([]model.TypeID{"water", "rock", "ground"}, []model.TypeID{"fire", "grass"}, nil),
		"rock":     model.NewDamageRelations([]model.TypeID{"fire"}, []model.TypeID{"ground"}, nil),
		"electric": model.NewDamageRelations([]model.TypeID{"water"}, []model.TypeID{"grass", "electric"}, []model.TypeID{"ground"}),
		"ground":   model.NewDamageRelations([]model.TypeID{"fire", "electric", "rock"}, []model.TypeID{"grass"}, nil),
	}
	m := catalog.NewMemory(creatures, relations)
	return m, catalog.EligiblePool(m, 3)
}

func fixtureOpponents() model.OpponentGroup {
	return model.OpponentGroup{
		"brock":  {"c03", "c09"},
		"misty":  {"c01", "c07", "c07"},
		"blaine": {"c00", "c06", "c12", "c18"},
	}
}

func seedPopulation(t *testing.T, rng *rand.Rand, pool []model.CreatureID, size int) model.Population {
	t.Helper()
	pop := make(model.Population, 0, size)
	for i := 0; i < size; i++ {
		r, err := CreateIndividual(rng, pool)
		if err != nil {
			t.Fatalf("create individual: %v", err)
		}
		pop = append(pop, r)
	}
	return pop
}

func TestEvolveOneGenerationKeepsPopulationShape(t *testing.T) {
	c, pool := fixtureCatalog(24)
	rng := rand.New(rand.NewSource(31))
	pop := seedPopulation(t, rng, pool, 40)

	gen, err := EvolveOneGeneration(context.Background(), rng, pop, fixtureOpponents(), c, Config{EliteCount: 2, MutationRate: 0.3, Workers: 4}, pool)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(gen.Next) != len(pop) {
		t.Fatalf("expected population size %d, got %d", len(pop), len(gen.Next))
	}
	for _, r := range gen.Next {
		assertValidRoster(t, r, pool)
	}
	if len(gen.Ranked) != len(pop) {
		t.Fatalf("expected every roster ranked, got %d", len(gen.Ranked))
	}
}

func TestEvolveOneGenerationReportsBestOfInput(t *testing.T) {
	c, pool := fixtureCatalog(24)
	rng := rand.New(rand.NewSource(32))
	pop := seedPopulation(t, rng, pool, 30)
	opponents := fixtureOpponents()

	best := fitness.Sentinel * 100
	total := 0
	for _, r := range pop {
		s := fitness.Score(r, opponents, c)
		total += s
		if s > best {
			best = s
		}
	}

	gen, err := EvolveOneGeneration(context.Background(), rng, pop, opponents, c, Config{EliteCount: 1, MutationRate: 0.1}, pool)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if gen.BestScore != best {
		t.Fatalf("expected best %d, got %d", best, gen.BestScore)
	}
	if got := fitness.Score(gen.BestRoster, opponents, c); got != best {
		t.Fatalf("best roster scores %d, reported %d", got, best)
	}
	wantAvg := float64(total) / float64(len(pop))
	if diff := gen.Average - wantAvg; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected average %v, got %v", wantAvg, gen.Average)
	}
	for i := 1; i < len(gen.Ranked); i++ {
		if gen.Ranked[i-1].Score < gen.Ranked[i].Score {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
}

func TestEvolveOneGenerationCarriesElitesUnchanged(t *testing.T) {
	c, pool := fixtureCatalog(24)
	opponents := fixtureOpponents()
	for _, k := range []int{0, 1, 3, 10} {
		rng := rand.New(rand.NewSource(33))
		pop := seedPopulation(t, rng, pool, 20)

		gen, err := EvolveOneGeneration(context.Background(), rng, pop, opponents, c, Config{EliteCount: k, MutationRate: 0.5, Workers: 3}, pool)
		if err != nil {
			t.Fatalf("evolve: %v", err)
		}
		for i := 0; i < k; i++ {
			if diff := cmp.Diff(gen.Ranked[i].Roster, gen.Next[i]); diff != "" {
				t.Fatalf("k=%d: elite %d changed (-want +got):\n%s", k, i, diff)
			}
		}
	}
}

func TestEvolveOneGenerationIsDeterministicUnderSeed(t *testing.T) {
	c, pool := fixtureCatalog(30)
	opponents := fixtureOpponents()
	pop := seedPopulation(t, rand.New(rand.NewSource(34)), pool, 50)

	run := func(workers int) Generation {
		rng := rand.New(rand.NewSource(99))
		gen, err := EvolveOneGeneration(context.Background(), rng, pop.Clone(), opponents, c, Config{EliteCount: 2, MutationRate: 0.2, Workers: workers}, pool)
		if err != nil {
			t.Fatalf("evolve: %v", err)
		}
		return gen
	}

	first := run(1)
	second := run(1)
	parallel := run(8)
	if diff := cmp.Diff(first.Next, second.Next); diff != "" {
		t.Fatalf("same seed produced different populations (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Next, parallel.Next); diff != "" {
		t.Fatalf("worker count changed the outcome (-serial +parallel):\n%s", diff)
	}
	if first.BestScore != second.BestScore || !first.BestRoster.Equal(second.BestRoster) {
		t.Fatalf("best record differs: %d/%v vs %d/%v", first.BestScore, first.BestRoster, second.BestScore, second.BestRoster)
	}
}

func TestEvolveOneGenerationLeavesInputUntouched(t *testing.T) {
	c, pool := fixtureCatalog(24)
	rng := rand.New(rand.NewSource(35))
	pop := seedPopulation(t, rng, pool, 16)
	before := pop.Clone()

	if _, err := EvolveOneGeneration(context.Background(), rng, pop, fixtureOpponents(), c, Config{EliteCount: 2, MutationRate: 1}, pool); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if diff := cmp.Diff(before, pop); diff != "" {
		t.Fatalf("input population mutated (-before +after):\n%s", diff)
	}
}

func TestEvolveOneGenerationRejectsBadInput(t *testing.T) {
	c, pool := fixtureCatalog(12)
	rng := rand.New(rand.NewSource(36))
	ctx := context.Background()

	if _, err := EvolveOneGeneration(ctx, rng, nil, fixtureOpponents(), c, Config{}, pool); err == nil {
		t.Fatal("expected empty population error")
	}
	pop := seedPopulation(t, rng, pool, 4)
	if _, err := EvolveOneGeneration(ctx, rng, pop, fixtureOpponents(), c, Config{MutationRate: 1.5}, pool); err == nil {
		t.Fatal("expected mutation rate error")
	}
	if _, err := EvolveOneGeneration(ctx, nil, pop, fixtureOpponents(), c, Config{}, pool); err == nil {
		t.Fatal("expected missing rng error")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := EvolveOneGeneration(cancelled, rng, pop, fixtureOpponents(), c, Config{}, pool); err == nil {
		t.Fatal("expected cancelled context error")
	}
}

func TestEvolveOneGenerationWithEmptyOpponentsScoresZero(t *testing.T) {
	c, pool := fixtureCatalog(12)
	rng := rand.New(rand.NewSource(37))
	pop := seedPopulation(t, rng, pool, 8)

	gen, err := EvolveOneGeneration(context.Background(), rng, pop, model.OpponentGroup{}, c, Config{EliteCount: 2, MutationRate: 0.1}, pool)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if gen.BestScore != 0 || gen.Average != 0 || gen.StdDev != 0 {
		t.Fatalf("expected zero scores, got best=%d avg=%v std=%v", gen.BestScore, gen.Average, gen.StdDev)
	}
	// ties keep input order
	if diff := cmp.Diff(pop[0], gen.Next[0]); diff != "" {
		t.Fatalf("expected first input roster to lead a fully tied ranking:\n%s", diff)
	}
}
