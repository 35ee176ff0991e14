package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gymteam/internal/model"
)

func sampleRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Region:          "Kanto (Gen 1)",
		PopulationSize:  100,
		MutationRate:    0.1,
		EliteCount:      2,
		Seed:            7,
		Generations:     25,
		BestScore:       14,
		BestRoster:      model.Roster{"geodude", "psyduck", "oddish", "machop", "pidgey", "abra"},
		PoolSize:        151,
		CreatedAtUTC:    createdAt,
	}
}

// exerciseStore runs the behaviour every backend shares against an
// initialised store.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing run: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetHistory(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing history: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetPopulation(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing population: ok=%v err=%v", ok, err)
	}

	later := sampleRun("run-b", "2026-01-02T00:00:00Z")
	earlier := sampleRun("run-a", "2026-01-01T00:00:00Z")
	for _, run := range []model.RunRecord{later, earlier} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	loaded, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(earlier, loaded); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}

	earlier.BestScore = 16
	if err := store.SaveRun(ctx, earlier); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("expected runs oldest first, got %+v", runs)
	}
	if runs[0].BestScore != 16 {
		t.Fatalf("expected overwritten best score, got %d", runs[0].BestScore)
	}

	history := []model.GenerationRecord{
		{Generation: 1, BestEver: 8, Average: 1.5, StdDev: 2.25},
		{Generation: 2, BestEver: 10, Average: 3, StdDev: 1.75},
	}
	if err := store.SaveHistory(ctx, "run-a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	gotHistory, ok, err := store.GetHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(history, gotHistory); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Generation:      2,
		Population: model.Population{
			{"a", "b", "c", "d", "e", "f"},
			{"f", "e", "d", "c", "b", "a"},
		},
	}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	gotSnapshot, ok, err := store.GetPopulation(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(snapshot, gotSnapshot); diff != "" {
		t.Fatalf("population mismatch (-want +got):\n%s", diff)
	}

	if err := store.SaveRun(ctx, model.RunRecord{VersionedRecord: CurrentVersion()}); err == nil {
		t.Fatal("expected missing run id error")
	}
}
