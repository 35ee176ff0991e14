package gymteam

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"gymteam/internal/catalog"
	"gymteam/internal/evo"
	"gymteam/internal/fitness"
	"gymteam/internal/model"
	"gymteam/internal/regions"
	"gymteam/internal/session"
	"gymteam/internal/stats"
	"gymteam/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "gymteam.db"
	defaultCatalogPath  = "pokemon_database.json"
	defaultRunsLimit    = 20
)

type Options struct {
	StoreKind string
	// DBPath is the sqlite file; DSN the postgres connection string.
	DBPath       string
	DSN          string
	ArtifactsDir string
	ExportsDir   string
	CatalogPath  string
	// RegionsPath overrides the builtin region data.
	RegionsPath string
	// Catalog, when set, is used instead of loading CatalogPath.
	Catalog catalog.Catalog
}

type Client struct {
	store      storage.Store
	storeReady bool

	catalog         catalog.Catalog
	catalogPath     string
	catalogFromFile bool
	regions         *regions.Set

	artifactsDir string
	exportsDir   string
	now          func() time.Time
}

type RunRequest struct {
	Region string

	// Generations is the number of generations to evolve. Zero runs until
	// ctx is cancelled.
	Generations int
	Population  int

	// MutationRate zero selects session.DefaultMutationRate.
	MutationRate float64
	EliteCount   int
	Selection    string
	Workers      int
	Seed         int64

	// Interval pauses between generations.
	Interval time.Duration
	Progress session.ProgressSink
}

type RunSummary struct {
	RunID        string
	Region       string
	ArtifactsDir string
	PoolSize     int
	Generations  int
	BestScore    int
	BestRoster   model.Roster
	Breakdown    []fitness.LeaderScore
	History      []model.GenerationRecord
	// Interrupted is set when ctx ended the run before its generation limit.
	Interrupted bool
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Region       string
	Seed         int64
	Population   int
	Generations  int
	MutationRate float64
	EliteCount   int
	BestScore    int
}

type RunDetailRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	RunID        string
	CreatedAtUTC string
	Region       string
	CatalogPath  string
	Population   int
	Generations  int
	MutationRate float64
	EliteCount   int
	Selection    string
	Workers      int
	Seed         int64
	PoolSize     int
	BestScore    int
	BestRoster   model.Roster
	Breakdown    []fitness.LeaderScore
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ExplainRequest struct {
	Region string
	Roster []string
}

type ExplainResult struct {
	Region    string
	Score     int
	Breakdown []fitness.LeaderScore
	// UnknownMembers lists roster entries missing from the catalog.
	UnknownMembers []model.CreatureID
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	target := opts.DBPath
	if storeKind == "postgres" {
		target = opts.DSN
	} else if target == "" {
		target = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	catalogPath := opts.CatalogPath
	if catalogPath == "" {
		catalogPath = defaultCatalogPath
	}

	var (
		set *regions.Set
		err error
	)
	if opts.RegionsPath != "" {
		set, err = regions.Load(opts.RegionsPath)
	} else {
		set, err = regions.Builtin()
	}
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(storeKind, target)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		catalog:      opts.Catalog,
		catalogPath:  catalogPath,
		regions:      set,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
		now:          time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Regions() []regions.Region {
	return c.regions.All()
}

// Run evolves rosters for one region and records the outcome in the store
// and the artifacts directory. A run cut short by ctx is still recorded if at
// least one generation completed.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Generations < 0 {
		return RunSummary{}, errors.New("generations must be >= 0")
	}
	if req.Population <= 0 {
		req.Population = session.DefaultPopulationSize
	}
	if req.MutationRate < 0 || req.MutationRate > 1 {
		return RunSummary{}, fmt.Errorf("mutation rate must be in (0, 1]: %v", req.MutationRate)
	}
	if req.MutationRate == 0 {
		req.MutationRate = session.DefaultMutationRate
	}
	if req.EliteCount == 0 {
		req.EliteCount = session.DefaultEliteCount
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Selection == "" {
		req.Selection = "uniform"
	}
	selector, err := evo.SelectorFromName(req.Selection, req.EliteCount)
	if err != nil {
		return RunSummary{}, err
	}

	cat, err := c.ensureCatalog()
	if err != nil {
		return RunSummary{}, err
	}
	region, err := c.regions.Lookup(req.Region)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	s := session.New(cat, c.regions)
	if err := s.Start(session.Config{
		Region:         region.Key,
		PopulationSize: req.Population,
		MutationRate:   req.MutationRate,
		EliteCount:     req.EliteCount,
		Workers:        req.Workers,
		Seed:           req.Seed,
		Selector:       selector,
		Sink:           req.Progress,
	}); err != nil {
		return RunSummary{}, err
	}

	now := c.now().UTC()
	runID := uuid.NewString()

	state, runErr := s.Run(ctx, req.Generations, req.Interval)
	interrupted := false
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
			return RunSummary{}, runErr
		}
		if state.Generation == 0 {
			return RunSummary{}, fmt.Errorf("run interrupted before the first generation: %w", runErr)
		}
		interrupted = req.Generations > 0 && state.Generation < req.Generations
	}

	evaluator := fitness.Evaluator{Catalog: cat, Opponents: region.Opponents()}
	summary := RunSummary{
		RunID:       runID,
		Region:      region.Name,
		PoolSize:    state.PoolSize,
		Generations: state.Generation,
		BestScore:   state.BestScore,
		BestRoster:  state.BestRoster,
		Breakdown:   evaluator.Breakdown(state.BestRoster),
		History:     state.History,
		Interrupted: interrupted,
	}

	// ctx may already be cancelled; the results are still written.
	persistCtx := context.WithoutCancel(ctx)
	if err := c.persistRun(persistCtx, req, summary, state, now); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			Region:         region.Name,
			CatalogPath:    c.catalogSource(),
			PopulationSize: req.Population,
			Generations:    state.Generation,
			MutationRate:   req.MutationRate,
			EliteCount:     req.EliteCount,
			Selection:      selector.Name(),
			Workers:        req.Workers,
			Seed:           req.Seed,
			PoolSize:       state.PoolSize,
		},
		History: state.History,
		Best: stats.BestRoster{
			Score:     state.BestScore,
			Roster:    state.BestRoster,
			Breakdown: summary.Breakdown,
		},
		Population: finalPopulation(runID, state),
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          runID,
		Region:         region.Name,
		PopulationSize: req.Population,
		Generations:    state.Generation,
		MutationRate:   req.MutationRate,
		EliteCount:     req.EliteCount,
		Seed:           req.Seed,
		Workers:        req.Workers,
		BestScore:      state.BestScore,
		CreatedAtUTC:   now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	summary.ArtifactsDir = filepath.Clean(runDir)
	return summary, nil
}

func (c *Client) persistRun(ctx context.Context, req RunRequest, summary RunSummary, state session.State, now time.Time) error {
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              summary.RunID,
		Region:          summary.Region,
		PopulationSize:  req.Population,
		MutationRate:    req.MutationRate,
		EliteCount:      req.EliteCount,
		Seed:            req.Seed,
		Generations:     state.Generation,
		BestScore:       state.BestScore,
		BestRoster:      state.BestRoster,
		PoolSize:        state.PoolSize,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
	}); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveHistory(ctx, summary.RunID, state.History); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	if err := c.store.SavePopulation(ctx, finalPopulation(summary.RunID, state)); err != nil {
		return fmt.Errorf("save population: %w", err)
	}
	return nil
}

func finalPopulation(runID string, state session.State) model.PopulationSnapshot {
	return model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Generation:      state.Generation,
		Population:      state.Population,
	}
}

// Runs lists recorded runs, newest first.
// Runs lists recorded runs, newest first: the artifact index plus runs the
// store holds that this artifacts directory never saw.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, len(entries)+len(records))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.RunID] = struct{}{}
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Region:       e.Region,
			Seed:         e.Seed,
			Population:   e.PopulationSize,
			Generations:  e.Generations,
			MutationRate: e.MutationRate,
			EliteCount:   e.EliteCount,
			BestScore:    e.BestScore,
		})
	}
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		out = append(out, RunItem{
			RunID:        r.ID,
			CreatedAtUTC: r.CreatedAtUTC,
			Region:       r.Region,
			Seed:         r.Seed,
			Population:   r.PopulationSize,
			Generations:  r.Generations,
			MutationRate: r.MutationRate,
			EliteCount:   r.EliteCount,
			BestScore:    r.BestScore,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtUTC > out[j].CreatedAtUTC
	})

	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// RunDetail describes one run from the store record and its artifacts,
// whichever are available.
func (c *Client) RunDetail(ctx context.Context, req RunDetailRequest) (RunDetail, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "run detail")
	if err != nil {
		return RunDetail{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunDetail{}, err
	}

	detail := RunDetail{RunID: runID}
	found := false

	record, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if ok {
		found = true
		detail.Region = record.Region
		detail.CreatedAtUTC = record.CreatedAtUTC
		detail.Population = record.PopulationSize
		detail.Generations = record.Generations
		detail.MutationRate = record.MutationRate
		detail.EliteCount = record.EliteCount
		detail.Seed = record.Seed
		detail.PoolSize = record.PoolSize
		detail.BestScore = record.BestScore
		detail.BestRoster = record.BestRoster
	}

	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if ok {
		detail.Selection = cfg.Selection
		detail.Workers = cfg.Workers
		detail.CatalogPath = cfg.CatalogPath
		if !found {
			detail.Region = cfg.Region
			detail.Population = cfg.PopulationSize
			detail.Generations = cfg.Generations
			detail.MutationRate = cfg.MutationRate
			detail.EliteCount = cfg.EliteCount
			detail.Seed = cfg.Seed
			detail.PoolSize = cfg.PoolSize
		}
		found = true
	}

	best, ok, err := stats.ReadBestRoster(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if ok {
		detail.Breakdown = best.Breakdown
		if detail.BestRoster == nil {
			detail.BestScore = best.Score
			detail.BestRoster = best.Roster
		}
		found = true
	}

	if !found {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}
	return detail, nil
}

// History returns a run's per-generation records from the store, falling
// back to the artifacts directory for runs recorded by another process.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "history")
	if err != nil {
		return nil, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]model.GenerationRecord(nil), history...), nil
}

// FinalPopulation returns the population a run ended with, from the store or
// else from the run's population artifact.
func (c *Client) FinalPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, error) {
	if runID == "" {
		return model.PopulationSnapshot{}, errors.New("run id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return model.PopulationSnapshot{}, err
	}
	snapshot, ok, err := c.store.GetPopulation(ctx, runID)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		snapshot, ok, err = stats.ReadPopulation(c.artifactsDir, runID)
		if err != nil {
			return model.PopulationSnapshot{}, err
		}
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("population not found for run id: %s", runID)
	}
	return snapshot, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Explain scores a hand-picked roster against a region's leaders.
func (c *Client) Explain(_ context.Context, req ExplainRequest) (ExplainResult, error) {
	if len(req.Roster) == 0 {
		return ExplainResult{}, errors.New("roster is required")
	}
	cat, err := c.ensureCatalog()
	if err != nil {
		return ExplainResult{}, err
	}
	region, err := c.regions.Lookup(req.Region)
	if err != nil {
		return ExplainResult{}, err
	}

	roster := make(model.Roster, 0, len(req.Roster))
	var unknown []model.CreatureID
	for _, name := range req.Roster {
		id := model.CreatureID(name)
		roster = append(roster, id)
		if _, ok := cat.CreatureTypes(id); !ok {
			unknown = append(unknown, id)
		}
	}

	evaluator := fitness.Evaluator{Catalog: cat, Opponents: region.Opponents()}
	return ExplainResult{
		Region:         region.Name,
		Score:          evaluator.Score(roster),
		Breakdown:      evaluator.Breakdown(roster),
		UnknownMembers: unknown,
	}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, action string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", action)
	}
	return runID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.storeReady {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.storeReady = true
	return nil
}

func (c *Client) ensureCatalog() (catalog.Catalog, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	m, err := catalog.LoadSnapshot(c.catalogPath)
	if err != nil {
		return nil, err
	}
	c.catalog = m
	c.catalogFromFile = true
	return c.catalog, nil
}

func (c *Client) catalogSource() string {
	if !c.catalogFromFile {
		return ""
	}
	return c.catalogPath
}
