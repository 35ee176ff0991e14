package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"gymteam/internal/model"
)

// The snapshot keeps the layout of the species database cache file:
// creatures under "pokemons" and per-type damage relations under "types",
// each relation being a list of {"name": ...} references.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["pokemons", "types"],
  "properties": {
    "pokemons": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["types"],
        "properties": {
          "types": {
            "type": "array",
            "minItems": 1,
            "maxItems": 2,
            "items": {"type": "string", "minLength": 1}
          },
          "sprite": {"type": ["string", "null"]},
          "generation_id": {"type": "integer", "minimum": 1}
        }
      }
    },
    "types": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "double_damage_to": {"$ref": "#/definitions/refs"},
          "half_damage_to": {"$ref": "#/definitions/refs"},
          "no_damage_to": {"$ref": "#/definitions/refs"}
        }
      }
    }
  },
  "definitions": {
    "refs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {"name": {"type": "string"}}
      }
    }
  }
}`

var compiledSnapshotSchema = jsonschema.MustCompileString("snapshot.schema.json", snapshotSchema)

type snapshotFile struct {
	Pokemons map[string]snapshotCreature  `json:"pokemons"`
	Types    map[string]snapshotRelations `json:"types"`
}

type snapshotCreature struct {
	Types        []string `json:"types"`
	Sprite       *string  `json:"sprite,omitempty"`
	GenerationID int      `json:"generation_id,omitempty"`
}

type snapshotRelations struct {
	DoubleDamageTo []namedRef `json:"double_damage_to"`
	HalfDamageTo   []namedRef `json:"half_damage_to"`
	NoDamageTo     []namedRef `json:"no_damage_to"`
}

type namedRef struct {
	Name string `json:"name"`
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// LoadSnapshot reads a catalog snapshot from path, decompressing it when the
// name ends in .zst.
func LoadSnapshot(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if isCompressed(path) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	m, err := DecodeSnapshot(r)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return m, nil
}

// ValidateSnapshot checks raw snapshot JSON against the snapshot schema.
func ValidateSnapshot(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := compiledSnapshotSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	return nil
}

func DecodeSnapshot(r io.Reader) (*Memory, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ValidateSnapshot(data); err != nil {
		return nil, err
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	creatures := make([]model.Creature, 0, len(file.Pokemons))
	for name, p := range file.Pokemons {
		c := model.Creature{
			ID:         model.CreatureID(name),
			Types:      make([]model.TypeID, len(p.Types)),
			Generation: p.GenerationID,
		}
		for i, t := range p.Types {
			c.Types[i] = model.TypeID(t)
		}
		if p.Sprite != nil {
			c.Sprite = *p.Sprite
		}
		creatures = append(creatures, c)
	}

	relations := make(map[model.TypeID]model.DamageRelations, len(file.Types))
	for name, rel := range file.Types {
		relations[model.TypeID(name)] = model.NewDamageRelations(
			refNames(rel.DoubleDamageTo),
			refNames(rel.HalfDamageTo),
			refNames(rel.NoDamageTo),
		)
	}
	return NewMemory(creatures, relations), nil
}

func refNames(refs []namedRef) []model.TypeID {
	out := make([]model.TypeID, len(refs))
	for i, ref := range refs {
		out[i] = model.TypeID(ref.Name)
	}
	return out
}

func EncodeSnapshot(w io.Writer, m *Memory) error {
	file := snapshotFile{
		Pokemons: make(map[string]snapshotCreature, m.Len()),
		Types:    make(map[string]snapshotRelations, len(m.relations)),
	}
	for _, id := range m.ids {
		c := m.creatures[id]
		entry := snapshotCreature{
			Types:        make([]string, len(c.Types)),
			GenerationID: c.Generation,
		}
		for i, t := range c.Types {
			entry.Types[i] = string(t)
		}
		if c.Sprite != "" {
			sprite := c.Sprite
			entry.Sprite = &sprite
		}
		file.Pokemons[string(id)] = entry
	}
	for t, rel := range m.relations {
		file.Types[string(t)] = snapshotRelations{
			DoubleDamageTo: setRefs(rel.DoubleDamageTo),
			HalfDamageTo:   setRefs(rel.HalfDamageTo),
			NoDamageTo:     setRefs(rel.NoDamageTo),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}

func setRefs(set map[model.TypeID]struct{}) []namedRef {
	names := make([]string, 0, len(set))
	for t := range set {
		names = append(names, string(t))
	}
	slices.Sort(names)
	out := make([]namedRef, len(names))
	for i, name := range names {
		out[i] = namedRef{Name: name}
	}
	return out
}

// WriteSnapshot stores m at path, zstd-compressed when the name ends in .zst.
func WriteSnapshot(path string, m *Memory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if !isCompressed(path) {
		bw := bufio.NewWriter(f)
		if err := EncodeSnapshot(bw, m); err != nil {
			return err
		}
		return bw.Flush()
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := EncodeSnapshot(enc, m); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}
