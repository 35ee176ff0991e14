package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"gymteam/internal/fitness"
	"gymteam/internal/model"
)

const (
	runIndexFile   = "run_index.json"
	configFile     = "config.json"
	historyFile    = "history.csv"
	bestRosterFile = "best_roster.json"
	populationFile = "population.json"
)

type RunConfig struct {
	RunID          string  `json:"run_id"`
	Region         string  `json:"region"`
	CatalogPath    string  `json:"catalog_path,omitempty"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	MutationRate   float64 `json:"mutation_rate"`
	EliteCount     int     `json:"elite_count"`
	Selection      string  `json:"selection"`
	Workers        int     `json:"workers"`
	Seed           int64   `json:"seed"`
	PoolSize       int     `json:"pool_size"`
}

type BestRoster struct {
	Score     int                   `json:"score"`
	Roster    model.Roster          `json:"roster"`
	Breakdown []fitness.LeaderScore `json:"breakdown,omitempty"`
}

type RunArtifacts struct {
	Config  RunConfig                `json:"config"`
	History []model.GenerationRecord `json:"history"`
	Best    BestRoster               `json:"best"`

	// Population is the population the run ended with.
	Population model.PopulationSnapshot `json:"population"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Region         string  `json:"region"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	MutationRate   float64 `json:"mutation_rate"`
	EliteCount     int     `json:"elite_count"`
	Seed           int64   `json:"seed"`
	Workers        int     `json:"workers"`
	BestScore      int     `json:"best_score"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes config.json, history.csv, best_roster.json and
// population.json under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteHistoryCSV(filepath.Join(runDir, historyFile), artifacts.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, bestRosterFile), artifacts.Best); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, populationFile), artifacts.Population); err != nil {
		return "", err
	}
	return runDir, nil
}

func WriteHistoryCSV(path string, history []model.GenerationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if history == nil {
		history = []model.GenerationRecord{}
	}
	if err := gocsv.Marshal(history, f); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return f.Sync()
}

func ReadHistoryCSV(path string) ([]model.GenerationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var history []model.GenerationRecord
	if err := gocsv.UnmarshalFile(f, &history); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return history, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadBestRoster(baseDir, runID string) (BestRoster, bool, error) {
	var best BestRoster
	ok, err := readJSON(filepath.Join(baseDir, runID, bestRosterFile), &best)
	return best, ok, err
}

func ReadPopulation(baseDir, runID string) (model.PopulationSnapshot, bool, error) {
	var snapshot model.PopulationSnapshot
	ok, err := readJSON(filepath.Join(baseDir, runID, populationFile), &snapshot)
	return snapshot, ok, err
}

func ReadHistory(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	history, err := ReadHistoryCSV(filepath.Join(baseDir, runID, historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return history, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win ties.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's artifact files into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, historyFile, bestRosterFile, populationFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
