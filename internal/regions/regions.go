// Package regions holds the gym leader reference data each optimisation run
// is scored against.
package regions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"gymteam/internal/model"
)

var ErrUnknownRegion = errors.New("unknown region")

//go:embed regions.yaml
var builtinData []byte

type Leader struct {
	Name   string             `yaml:"name"`
	Lineup []model.CreatureID `yaml:"lineup"`
}

// Region is a named set of gym leaders. Generation is the newest species
// generation eligible for rosters in this region.
type Region struct {
	Name       string   `yaml:"name"`
	Key        string   `yaml:"key"`
	Generation int      `yaml:"generation"`
	Leaders    []Leader `yaml:"leaders"`
}

// Opponents returns the leader lineups keyed by leader name.
func (r Region) Opponents() model.OpponentGroup {
	group := make(model.OpponentGroup, len(r.Leaders))
	for _, leader := range r.Leaders {
		group[leader.Name] = append([]model.CreatureID(nil), leader.Lineup...)
	}
	return group
}

// Set is an ordered, immutable collection of regions.
type Set struct {
	regions []Region
	byKey   map[string]int
}

type document struct {
	Regions []Region `yaml:"regions"`
}

var (
	builtinOnce sync.Once
	builtinSet  *Set
	builtinErr  error
)

// Builtin returns the region data compiled into the binary.
func Builtin() (*Set, error) {
	builtinOnce.Do(func() {
		builtinSet, builtinErr = Parse(builtinData)
	})
	return builtinSet, builtinErr
}

// Load reads region data from a YAML file in the builtin layout.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse regions file %s: %w", path, err)
	}
	return set, nil
}

func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, errors.New("no regions defined")
	}

	set := &Set{
		regions: make([]Region, 0, len(doc.Regions)),
		byKey:   make(map[string]int, len(doc.Regions)),
	}
	for i, region := range doc.Regions {
		if region.Name == "" {
			return nil, fmt.Errorf("region %d: name is required", i)
		}
		if region.Key == "" {
			region.Key = Normalize(region.Name)
		}
		if region.Generation < 1 {
			return nil, fmt.Errorf("region %s: generation must be >= 1", region.Name)
		}
		if _, exists := set.byKey[region.Key]; exists {
			return nil, fmt.Errorf("region %s: duplicate key %q", region.Name, region.Key)
		}
		seen := make(map[string]struct{}, len(region.Leaders))
		for _, leader := range region.Leaders {
			if leader.Name == "" {
				return nil, fmt.Errorf("region %s: leader name is required", region.Name)
			}
			if _, dup := seen[leader.Name]; dup {
				return nil, fmt.Errorf("region %s: duplicate leader %q", region.Name, leader.Name)
			}
			seen[leader.Name] = struct{}{}
		}
		set.byKey[region.Key] = len(set.regions)
		set.regions = append(set.regions, region)
	}
	return set, nil
}

// All returns the regions in file order.
func (s *Set) All() []Region {
	return append([]Region(nil), s.regions...)
}

func (s *Set) Names() []string {
	names := make([]string, len(s.regions))
	for i, region := range s.regions {
		names[i] = region.Name
	}
	return names
}

// Lookup resolves a display name ("Kanto (Gen 1)"), a key ("kanto") or a
// generation alias ("gen1", "generation-1").
func (s *Set) Lookup(name string) (Region, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return Region{}, fmt.Errorf("%w: empty name", ErrUnknownRegion)
	}
	for _, candidate := range aliasCandidates(normalized) {
		if idx, ok := s.byKey[candidate]; ok {
			return s.regions[idx], nil
		}
	}
	if gen, ok := generationAlias(strings.TrimPrefix(normalized, "region-")); ok {
		for _, region := range s.regions {
			if region.Generation == gen {
				return region, nil
			}
		}
	}
	return Region{}, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
}
