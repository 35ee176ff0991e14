package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gymteam/internal/session"
	gymapi "gymteam/pkg/gymteam"
)

// runConfig is the on-disk form of a run request. Flags given on the command
// line override values read from it.
type runConfig struct {
	Region       string   `yaml:"region"`
	Generations  *int     `yaml:"generations"`
	Population   int      `yaml:"population"`
	MutationRate *float64 `yaml:"mutation_rate"`
	EliteCount   int      `yaml:"elite_count"`
	Selection    string   `yaml:"selection"`
	Workers      int      `yaml:"workers"`
	Seed         *int64   `yaml:"seed"`
	Interval     string   `yaml:"interval"`
}

func loadRunRequestFromConfig(path string) (gymapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gymapi.RunRequest{}, err
	}

	var cfg runConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return gymapi.RunRequest{}, err
	}

	req := gymapi.RunRequest{
		Region:       cfg.Region,
		Population:   cfg.Population,
		MutationRate: session.DefaultMutationRate,
		EliteCount:   cfg.EliteCount,
		Selection:    cfg.Selection,
		Workers:      cfg.Workers,
		Generations:  defaultGenerations,
		Seed:         defaultSeed,
	}
	if cfg.Generations != nil {
		req.Generations = *cfg.Generations
	}
	if cfg.MutationRate != nil {
		req.MutationRate = *cfg.MutationRate
	}
	if cfg.Seed != nil {
		req.Seed = *cfg.Seed
	}
	if cfg.Interval != "" {
		interval, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return gymapi.RunRequest{}, fmt.Errorf("interval: %w", err)
		}
		req.Interval = interval
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (gymapi.RunRequest, error) {
	if configPath == "" {
		return gymapi.RunRequest{
			Generations:  defaultGenerations,
			MutationRate: session.DefaultMutationRate,
			Seed:         defaultSeed,
		}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return gymapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func overrideFromFlags(req *gymapi.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "region":
			req.Region = v.(string)
		case "gens":
			req.Generations = v.(int)
		case "pop":
			req.Population = v.(int)
		case "mutation-rate":
			req.MutationRate = v.(float64)
		case "elite":
			req.EliteCount = v.(int)
		case "selection":
			req.Selection = v.(string)
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "interval":
			req.Interval = v.(time.Duration)
		}
	}
	if req.Region == "" {
		return errors.New("run requires --region or a config file region")
	}
	if req.Generations < 0 {
		return errors.New("gens must be >= 0")
	}
	// A zero rate would be replaced by the default further down.
	if req.MutationRate <= 0 || req.MutationRate > 1 {
		return errors.New("mutation-rate must be within (0,1]")
	}
	return nil
}
