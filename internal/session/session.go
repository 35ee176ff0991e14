// Package session drives the roster search generation by generation. A
// Session owns its population and best-ever record; callers start it for a
// region, step it explicitly or hand it to Run, and read snapshots of its
// state at any time.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gymteam/internal/catalog"
	"gymteam/internal/evo"
	"gymteam/internal/model"
	"gymteam/internal/regions"
)

var ErrNotRunning = errors.New("session is not running")

const (
	DefaultPopulationSize = 100
	DefaultMutationRate   = 0.1
	DefaultEliteCount     = 2
)

type Status int

const (
	Idle Status = iota
	Running
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// RegionLookup resolves a region by name or alias.
type RegionLookup interface {
	Lookup(name string) (regions.Region, error)
}

type Progress struct {
	Generation     int
	BestScoreEver  int
	BestRosterEver model.Roster
	AverageScore   float64
}

// ProgressSink receives one Progress value per completed generation. It is
// called on the stepping goroutine after the session lock is released.
type ProgressSink func(Progress)

type Config struct {
	Region         string
	PopulationSize int
	MutationRate   float64
	EliteCount     int
	Workers        int
	Seed           int64
	Selector       evo.Selector
	Sink           ProgressSink
}

func DefaultConfig(region string) Config {
	return Config{
		Region:         region,
		PopulationSize: DefaultPopulationSize,
		MutationRate:   DefaultMutationRate,
		EliteCount:     DefaultEliteCount,
		Workers:        1,
	}
}

func (c Config) validate() error {
	if c.PopulationSize < 1 {
		return fmt.Errorf("population size must be >= 1: %d", c.PopulationSize)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1]: %v", c.MutationRate)
	}
	if c.EliteCount < 0 {
		return fmt.Errorf("elite count must be >= 0: %d", c.EliteCount)
	}
	return nil
}

// State is a copy of the session's observable state.
type State struct {
	Status     Status
	Region     string
	PoolSize   int
	Population model.Population
	Generation int
	BestRoster model.Roster
	BestScore  int
	History    []model.GenerationRecord
}

type Session struct {
	catalog catalog.Catalog
	regions RegionLookup

	mu sync.Mutex

	status     Status
	cfg        Config
	region     regions.Region
	opponents  model.OpponentGroup
	pool       []model.CreatureID
	rng        *rand.Rand
	population model.Population
	generation int
	bestRoster model.Roster
	bestScore  int
	history    []model.GenerationRecord
}

func New(c catalog.Catalog, r RegionLookup) *Session {
	return &Session{
		catalog:   c,
		regions:   r,
		bestScore: model.NoScore,
	}
}

// Start resolves the region, draws the initial population from the eligible
// pool and resets progress. On error the previous state is left untouched.
func (s *Session) Start(cfg Config) error {
	if s.catalog == nil || s.regions == nil {
		return errors.New("session requires a catalog and region lookup")
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	region, err := s.regions.Lookup(cfg.Region)
	if err != nil {
		return err
	}
	pool := catalog.EligiblePool(s.catalog, region.Generation)
	if err := evo.CheckPool(pool); err != nil {
		return fmt.Errorf("region %s: %w", region.Name, err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	population := make(model.Population, 0, cfg.PopulationSize)
	for i := 0; i < cfg.PopulationSize; i++ {
		individual, err := evo.CreateIndividual(rng, pool)
		if err != nil {
			return err
		}
		population = append(population, individual)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Running
	s.cfg = cfg
	s.region = region
	s.opponents = region.Opponents()
	s.pool = pool
	s.rng = rng
	s.population = population
	s.generation = 0
	s.bestRoster = nil
	s.bestScore = model.NoScore
	s.history = nil
	return nil
}

// Step evolves one generation. The session lock is held for the whole
// generation, so Stop and CurrentState observe generation boundaries only.
func (s *Session) Step(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.status != Running {
		s.mu.Unlock()
		return State{}, ErrNotRunning
	}

	gen, err := evo.EvolveOneGeneration(ctx, s.rng, s.population, s.opponents, s.catalog, evo.Config{
		EliteCount:   s.cfg.EliteCount,
		MutationRate: s.cfg.MutationRate,
		Workers:      s.cfg.Workers,
		Selector:     s.cfg.Selector,
	}, s.pool)
	if err != nil {
		s.mu.Unlock()
		return State{}, fmt.Errorf("generation %d: %w", s.generation+1, err)
	}

	if gen.BestScore > s.bestScore {
		s.bestScore = gen.BestScore
		s.bestRoster = gen.BestRoster.Clone()
	}
	s.population = gen.Next
	s.generation++
	s.history = append(s.history, model.GenerationRecord{
		Generation: s.generation,
		BestEver:   s.bestScore,
		Average:    gen.Average,
		StdDev:     gen.StdDev,
	})

	state := s.snapshotLocked()
	sink := s.cfg.Sink
	s.mu.Unlock()

	if sink != nil {
		sink(Progress{
			Generation:     state.Generation,
			BestScoreEver:  state.BestScore,
			BestRosterEver: state.BestRoster.Clone(),
			AverageScore:   gen.Average,
		})
	}
	return state, nil
}

// Stop returns the session to Idle. Best-ever and history are kept until the
// next Start.
func (s *Session) Stop() {
	s.mu.Lock()
	s.status = Idle
	s.mu.Unlock()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Run steps until Stop is called, ctx is done or maxGenerations generations
// have completed (0 means no limit), sleeping interval between generations.
// The session is Idle when Run returns.
func (s *Session) Run(ctx context.Context, maxGenerations int, interval time.Duration) (State, error) {
	err := s.loop(ctx, maxGenerations, interval)
	s.Stop()
	return s.CurrentState(), err
}

func (s *Session) loop(ctx context.Context, maxGenerations int, interval time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, err := s.Step(ctx)
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		if err != nil {
			return err
		}
		if maxGenerations > 0 && state.Generation >= maxGenerations {
			return nil
		}
		if interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *Session) snapshotLocked() State {
	return State{
		Status:     s.status,
		Region:     s.region.Name,
		PoolSize:   len(s.pool),
		Population: s.population.Clone(),
		Generation: s.generation,
		BestRoster: s.bestRoster.Clone(),
		BestScore:  s.bestScore,
		History:    append([]model.GenerationRecord(nil), s.history...),
	}
}
