package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gymteam/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := writeConfig(t, `
region: Johto (Gen 2)
generations: 0
population: 40
mutation_rate: 0.25
elite_count: 3
selection: tournament
workers: 2
seed: 99
interval: 150ms
`)
	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Region != "Johto (Gen 2)" || req.Population != 40 || req.MutationRate != 0.25 || req.EliteCount != 3 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.Generations != 0 {
		t.Fatalf("expected explicit zero generations to be kept, got %d", req.Generations)
	}
	if req.Selection != "tournament" || req.Workers != 2 || req.Seed != 99 || req.Interval != 150*time.Millisecond {
		t.Fatalf("unexpected run controls: %+v", req)
	}
}

func TestLoadRunRequestFromConfigDefaults(t *testing.T) {
	req, err := loadRunRequestFromConfig(writeConfig(t, "region: kanto\n"))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Generations != defaultGenerations || req.Seed != defaultSeed {
		t.Fatalf("expected default generations and seed, got %d and %d", req.Generations, req.Seed)
	}
	if req.MutationRate != session.DefaultMutationRate {
		t.Fatalf("expected default mutation rate, got %v", req.MutationRate)
	}
}

func TestLoadRunRequestFromConfigRejectsBadInput(t *testing.T) {
	if _, err := loadRunRequestFromConfig(writeConfig(t, "region: kanto\nspecies: 4\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := loadRunRequestFromConfig(writeConfig(t, "region: kanto\ninterval: soon\n")); err == nil {
		t.Fatal("expected interval parse error")
	}
	if _, err := loadOrDefaultRunRequest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}

func TestOverrideFromFlagsAppliesOnlySetFlags(t *testing.T) {
	req, err := loadRunRequestFromConfig(writeConfig(t, "region: kanto\npopulation: 40\nseed: 5\n"))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	values := map[string]any{
		"region":   "hoenn",
		"pop":      10,
		"seed":     int64(8),
		"interval": 20 * time.Millisecond,
	}
	if err := overrideFromFlags(&req, map[string]bool{"pop": true, "interval": true}, values); err != nil {
		t.Fatalf("override: %v", err)
	}
	if req.Region != "kanto" || req.Population != 10 || req.Seed != 5 || req.Interval != 20*time.Millisecond {
		t.Fatalf("unexpected overrides: %+v", req)
	}
}

func TestOverrideFromFlagsValidates(t *testing.T) {
	req, _ := loadOrDefaultRunRequest("")
	if err := overrideFromFlags(&req, nil, nil); err == nil {
		t.Fatal("expected missing region error")
	}
	req.Region = "kanto"
	if err := overrideFromFlags(&req, map[string]bool{"gens": true}, map[string]any{"gens": -1}); err == nil {
		t.Fatal("expected negative generations error")
	}
	req.Generations = 1
	if err := overrideFromFlags(&req, map[string]bool{"mutation-rate": true}, map[string]any{"mutation-rate": 1.5}); err == nil {
		t.Fatal("expected mutation rate error")
	}
	if err := overrideFromFlags(&req, map[string]bool{"mutation-rate": true}, map[string]any{"mutation-rate": 0.0}); err == nil {
		t.Fatal("expected zero mutation rate to be rejected")
	}

	zero, err := loadRunRequestFromConfig(writeConfig(t, "region: kanto\nmutation_rate: 0\n"))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if zero.MutationRate != 0 {
		t.Fatalf("expected explicit zero rate from config, got %v", zero.MutationRate)
	}
	if err := overrideFromFlags(&zero, nil, nil); err == nil {
		t.Fatal("expected zero mutation rate from config to be rejected")
	}
}
