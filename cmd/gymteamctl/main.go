package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"gymteam/internal/catalog"
	"gymteam/internal/session"
	"gymteam/internal/storage"
	gymapi "gymteam/pkg/gymteam"
)

const (
	artifactsDir       = "runs"
	exportsDir         = "exports"
	defaultDBPath      = "gymteam.db"
	defaultCatalog     = "pokemon_database.json"
	defaultGenerations = 50
	defaultSeed        = 1
	latestGeneration   = 9
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "regions":
		return runRegions(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "population":
		return runPopulation(ctx, args[1:])
	case "explain":
		return runExplain(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "catalog":
		return runCatalog(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind   *string
	dbPath *string
	dsn    *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:   fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite|postgres"),
		dbPath: fs.String("db-path", defaultDBPath, "sqlite database path"),
		dsn:    fs.String("dsn", os.Getenv("GYMTEAM_POSTGRES_DSN"), "postgres connection string"),
	}
}

func newClient(sf storeFlags, catalogPath, regionsPath string) (*gymapi.Client, error) {
	opts := gymapi.Options{
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
		CatalogPath:  catalogPath,
		RegionsPath:  regionsPath,
	}
	if sf.kind != nil {
		opts.StoreKind = *sf.kind
		opts.DBPath = *sf.dbPath
		opts.DSN = *sf.dsn
	}
	return gymapi.New(opts)
}

func runRegions(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("regions", flag.ContinueOnError)
	regionsPath := fs.String("regions", "", "region data YAML path (defaults to builtin data)")
	jsonOut := fs.Bool("json", false, "emit regions as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(storeFlags{}, "", *regionsPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	all := client.Regions()
	if *jsonOut {
		return writeJSON(all)
	}
	for _, r := range all {
		leaders := make([]string, 0, len(r.Leaders))
		for _, l := range r.Leaders {
			leaders = append(leaders, l.Name)
		}
		fmt.Fprintf(stdout, "region=%q key=%s generation=%d leaders=%s\n", r.Name, r.Key, r.Generation, strings.Join(leaders, ","))
	}
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config YAML path")
	region := fs.String("region", "", "region name, key or generation alias (e.g. \"Kanto (Gen 1)\", kanto, gen1)")
	generations := fs.Int("gens", defaultGenerations, "generation count (0 runs until interrupted)")
	population := fs.Int("pop", session.DefaultPopulationSize, "population size")
	mutationRate := fs.Float64("mutation-rate", session.DefaultMutationRate, "per-roster mutation probability in (0,1]")
	eliteCount := fs.Int("elite", session.DefaultEliteCount, "elite rosters carried over unchanged")
	selection := fs.String("selection", "uniform", "parent selection strategy: uniform|elite|tournament")
	workers := fs.Int("workers", 4, "worker count")
	seed := fs.Int64("seed", defaultSeed, "rng seed")
	interval := fs.Duration("interval", 0, "pause between generations")
	catalogPath := fs.String("catalog", defaultCatalog, "catalog snapshot path (.json or .json.zst)")
	regionsPath := fs.String("regions", "", "region data YAML path (defaults to builtin data)")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if *configPath == "" {
		// Without a config file every flag, defaulted or not, applies.
		fs.VisitAll(func(f *flag.Flag) {
			set[f.Name] = true
		})
	}
	if err := overrideFromFlags(&req, set, map[string]any{
		"region":        *region,
		"gens":          *generations,
		"pop":           *population,
		"mutation-rate": *mutationRate,
		"elite":         *eliteCount,
		"selection":     *selection,
		"workers":       *workers,
		"seed":          *seed,
		"interval":      *interval,
	}); err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logLevel)
	if err != nil {
		return err
	}
	req.Progress = func(p session.Progress) {
		logger.Info("generation complete",
			"generation", p.Generation,
			"best_ever", p.BestScoreEver,
			"average", p.AverageScore,
			"best_roster", strings.Join(p.BestRosterEver.Strings(), ","),
		)
	}

	client, err := newClient(sf, *catalogPath, *regionsPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	logger.Info("starting run", "region", req.Region, "generations", req.Generations, "population", req.Population, "seed", req.Seed)
	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if n := len(summary.History); n > 0 {
		logger.Info("run finished",
			"run_id", summary.RunID,
			"elapsed", time.Since(started).Round(time.Millisecond),
			"interrupted", summary.Interrupted,
			"last", summary.History[n-1],
		)
	}

	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "run_id=%s region=%q pool=%d generations=%d evaluations=%s best_score=%d interrupted=%t\n",
		summary.RunID,
		summary.Region,
		summary.PoolSize,
		summary.Generations,
		humanize.Comma(int64(summary.Generations)*int64(populationOrDefault(req.Population))),
		summary.BestScore,
		summary.Interrupted,
	)
	fmt.Fprintf(stdout, "best_roster=%s\n", strings.Join(summary.BestRoster.Strings(), ","))
	for _, item := range summary.Breakdown {
		fmt.Fprintf(stdout, "  leader=%q score=%d\n", item.Leader, item.Score)
	}
	fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

func populationOrDefault(n int) int {
	if n <= 0 {
		return session.DefaultPopulationSize
	}
	return n
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(sf, "", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, gymapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, item := range items {
		created := item.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Fprintf(stdout, "run_id=%s created=%q region=%q seed=%d pop=%d gens=%d best_score=%d\n",
			item.RunID,
			created,
			item.Region,
			item.Seed,
			item.Population,
			item.Generations,
			item.BestScore,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit run detail as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(sf, "", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.RunDetail(ctx, gymapi.RunDetailRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(detail)
	}
	fmt.Fprintf(stdout, "run_id=%s region=%q pool=%d pop=%d gens=%d mutation_rate=%g elite=%d selection=%s workers=%d seed=%d\n",
		detail.RunID,
		detail.Region,
		detail.PoolSize,
		detail.Population,
		detail.Generations,
		detail.MutationRate,
		detail.EliteCount,
		detail.Selection,
		detail.Workers,
		detail.Seed,
	)
	fmt.Fprintf(stdout, "best_score=%d best_roster=%s\n", detail.BestScore, strings.Join(detail.BestRoster.Strings(), ","))
	for _, item := range detail.Breakdown {
		fmt.Fprintf(stdout, "  leader=%q score=%d\n", item.Leader, item.Score)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to show (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(sf, "", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, gymapi.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for _, rec := range history {
		fmt.Fprintf(stdout, "generation=%d best_ever=%d average=%.4f std_dev=%.4f\n", rec.Generation, rec.BestEver, rec.Average, rec.StdDev)
	}
	return nil
}

func runPopulation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	jsonOut := fs.Bool("json", false, "emit population as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("population requires --run-id")
	}

	client, err := newClient(sf, "", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.FinalPopulation(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(snapshot)
	}
	fmt.Fprintf(stdout, "run_id=%s generation=%d size=%d\n", snapshot.RunID, snapshot.Generation, len(snapshot.Population))
	for i, r := range snapshot.Population {
		fmt.Fprintf(stdout, "  %d %s\n", i, strings.Join(r.Strings(), ","))
	}
	return nil
}

func runExplain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	region := fs.String("region", "", "region name, key or generation alias")
	roster := fs.String("roster", "", "comma-separated creature names")
	catalogPath := fs.String("catalog", defaultCatalog, "catalog snapshot path (.json or .json.zst)")
	regionsPath := fs.String("regions", "", "region data YAML path (defaults to builtin data)")
	jsonOut := fs.Bool("json", false, "emit breakdown as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *region == "" || *roster == "" {
		return errors.New("explain requires --region and --roster")
	}

	members := make([]string, 0, 6)
	for _, name := range strings.Split(*roster, ",") {
		if name = strings.TrimSpace(name); name != "" {
			members = append(members, strings.ToLower(name))
		}
	}

	client, err := newClient(storeFlags{}, *catalogPath, *regionsPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Explain(ctx, gymapi.ExplainRequest{Region: *region, Roster: members})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(result)
	}
	fmt.Fprintf(stdout, "region=%q score=%d\n", result.Region, result.Score)
	for _, item := range result.Breakdown {
		fmt.Fprintf(stdout, "  leader=%q score=%d\n", item.Leader, item.Score)
	}
	if len(result.UnknownMembers) > 0 {
		unknown := make([]string, len(result.UnknownMembers))
		for i, id := range result.UnknownMembers {
			unknown[i] = string(id)
		}
		fmt.Fprintf(stdout, "unknown_members=%s\n", strings.Join(unknown, ","))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := newClient(storeFlags{}, "", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, gymapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runCatalog(_ context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("catalog requires a subcommand: validate|compress")
	}
	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("catalog validate", flag.ContinueOnError)
		path := fs.String("path", defaultCatalog, "catalog snapshot path (.json or .json.zst)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		m, err := catalog.LoadSnapshot(*path)
		if err != nil {
			return err
		}
		pool := catalog.EligiblePool(m, latestGeneration)
		fmt.Fprintf(stdout, "catalog valid path=%s creatures=%d types=%d with_generation=%d\n", *path, m.Len(), len(m.TypeIDs()), len(pool))
		return nil
	case "compress":
		fs := flag.NewFlagSet("catalog compress", flag.ContinueOnError)
		in := fs.String("in", defaultCatalog, "plain JSON catalog snapshot")
		out := fs.String("out", "", "compressed output path (defaults to <in>.zst)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *out == "" {
			*out = *in + ".zst"
		}
		if filepath.Ext(*out) != ".zst" {
			return errors.New("compressed output must end in .zst")
		}
		m, err := catalog.LoadSnapshot(*in)
		if err != nil {
			return err
		}
		if err := catalog.WriteSnapshot(*out, m); err != nil {
			return err
		}
		before, err := os.Stat(*in)
		if err != nil {
			return err
		}
		after, err := os.Stat(*out)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "compressed %s (%s) to %s (%s)\n",
			*in, humanize.Bytes(uint64(before.Size())),
			*out, humanize.Bytes(uint64(after.Size())),
		)
		return nil
	default:
		return fmt.Errorf("unsupported catalog subcommand: %s", args[0])
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gymteamctl <regions|run|runs|show|history|population|explain|export|catalog> [flags]", msg)
}
