package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	workpool "github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"gymteam/internal/catalog"
	"gymteam/internal/fitness"
	"gymteam/internal/model"
)

type ScoredRoster struct {
	Roster model.Roster
	Score  int
}

type Config struct {
	EliteCount   int
	MutationRate float64
	Workers      int
	// Selector defaults to UniformSelector.
	Selector Selector
}

// Generation is the outcome of one evolution step: the scored input
// population and the population bred from it.
type Generation struct {
	Ranked     []ScoredRoster
	Next       model.Population
	BestScore  int
	BestRoster model.Roster
	Average    float64
	StdDev     float64
}

// EvolveOneGeneration scores population against opponents, carries the top
// EliteCount rosters over unchanged and fills the rest with mutated
// crossover children of parents picked by cfg.Selector.
//
// Scoring runs on up to cfg.Workers goroutines. All random draws happen on
// the calling goroutine, so a fixed rng seed reproduces the result.
func EvolveOneGeneration(
	ctx context.Context,
	rng *rand.Rand,
	population model.Population,
	opponents model.OpponentGroup,
	c catalog.Catalog,
	cfg Config,
	pool []model.CreatureID,
) (Generation, error) {
	if rng == nil {
		return Generation{}, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return Generation{}, fmt.Errorf("population is empty")
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return Generation{}, fmt.Errorf("mutation rate must be in [0, 1]: %v", cfg.MutationRate)
	}
	selector := cfg.Selector
	if selector == nil {
		selector = UniformSelector{}
	}

	ranked, err := ScorePopulation(ctx, population, fitness.Evaluator{Catalog: c, Opponents: opponents}, cfg.Workers)
	if err != nil {
		return Generation{}, err
	}
	RankPopulation(ranked)

	eliteCount := cfg.EliteCount
	if eliteCount < 0 {
		eliteCount = 0
	}
	if eliteCount > len(ranked) {
		eliteCount = len(ranked)
	}

	next := make(model.Population, 0, len(population))
	for i := 0; i < eliteCount; i++ {
		next = append(next, ranked[i].Roster.Clone())
	}
	for len(next) < len(population) {
		a, err := selector.PickParent(rng, ranked)
		if err != nil {
			return Generation{}, err
		}
		b, err := selector.PickParent(rng, ranked)
		if err != nil {
			return Generation{}, err
		}
		child := Crossover(rng, a, b, pool)
		next = append(next, Mutate(rng, child, pool, cfg.MutationRate))
	}

	mean, std := scoreMoments(ranked)
	return Generation{
		Ranked:     ranked,
		Next:       next,
		BestScore:  ranked[0].Score,
		BestRoster: ranked[0].Roster.Clone(),
		Average:    mean,
		StdDev:     std,
	}, nil
}

// ScorePopulation scores every roster, preserving input order.
func ScorePopulation(ctx context.Context, population model.Population, e fitness.Evaluator, workers int) ([]ScoredRoster, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(population) {
		workers = len(population)
	}

	scored := make([]ScoredRoster, len(population))
	p := workpool.New().WithMaxGoroutines(max(workers, 1)).WithContext(ctx)
	for i := range population {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scored[i] = ScoredRoster{Roster: population[i], Score: e.Score(population[i])}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// RankPopulation sorts by descending score. Ties keep their input order.
func RankPopulation(scored []ScoredRoster) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

func scoreMoments(scored []ScoredRoster) (float64, float64) {
	if len(scored) == 0 {
		return 0, 0
	}
	values := make([]float64, len(scored))
	for i, item := range scored {
		values[i] = float64(item.Score)
	}
	if len(values) < 2 {
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}
