package regions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Kanto (Gen 1)":          "kanto-gen-1",
		"  kanto ":               "kanto",
		"Alola (Gen 7 - Trials)": "alola-gen-7-trials",
		"gen_3":                  "gen-3",
		"Region Johto":           "region-johto",
		"":                       "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("normalize(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestBuiltinRegions(t *testing.T) {
	set, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	all := set.All()
	if len(all) != 9 {
		t.Fatalf("expected 9 regions, got %d", len(all))
	}
	for i, region := range all {
		if region.Generation != i+1 {
			t.Fatalf("region %s: expected generation %d, got %d", region.Name, i+1, region.Generation)
		}
		if len(region.Leaders) == 0 {
			t.Fatalf("region %s has no leaders", region.Name)
		}
	}

	kanto, err := set.Lookup("Kanto (Gen 1)")
	if err != nil {
		t.Fatalf("lookup kanto: %v", err)
	}
	if kanto.Leaders[0].Name != "Brock" || kanto.Leaders[len(kanto.Leaders)-1].Name != "Giovanni" {
		t.Fatalf("unexpected leader order: %+v", kanto.Leaders)
	}
	koga := kanto.Opponents()["Koga"]
	if len(koga) != 4 || koga[0] != "koffing" || koga[2] != "koffing" {
		t.Fatalf("expected repeated koffing in Koga's lineup, got %v", koga)
	}
}

func TestLookupAliases(t *testing.T) {
	set, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	cases := map[string]string{
		"Kanto (Gen 1)":          "kanto",
		"kanto":                  "kanto",
		"KANTO":                  "kanto",
		"gen1":                   "kanto",
		"gen-2":                  "johto",
		"generation 9":           "paldea",
		"Alola (Gen 7 - Trials)": "alola",
		"alola":                  "alola",
		"region_galar":           "galar",
		"Kanto Gen 1":            "kanto",
		"region gen 4":           "sinnoh",
	}
	for in, want := range cases {
		region, err := set.Lookup(in)
		if err != nil {
			t.Fatalf("lookup %q: %v", in, err)
		}
		if region.Key != want {
			t.Fatalf("lookup %q = %s want %s", in, region.Key, want)
		}
	}

	for _, bad := range []string{"", "orre", "gen10", "gen0", "Atlantis (Gen 1)", "orre-gen-3"} {
		if _, err := set.Lookup(bad); !errors.Is(err, ErrUnknownRegion) {
			t.Fatalf("lookup %q: expected ErrUnknownRegion, got %v", bad, err)
		}
	}
}

func TestOpponentsReturnsCopies(t *testing.T) {
	set, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	region, err := set.Lookup("johto")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	group := region.Opponents()
	group["Falkner"][0] = "changed"

	again, _ := set.Lookup("johto")
	if again.Opponents()["Falkner"][0] != "pidgey" {
		t.Fatal("opponent group aliased region data")
	}
}

func TestParseRejectsInvalidData(t *testing.T) {
	cases := map[string]string{
		"empty":          "regions: []\n",
		"missing name":   "regions:\n  - {key: x, generation: 1}\n",
		"bad generation": "regions:\n  - {name: X, generation: 0}\n",
		"duplicate key":  "regions:\n  - {name: A, key: a, generation: 1}\n  - {name: B, key: a, generation: 2}\n",
		"duplicate leader": "regions:\n  - name: A\n    generation: 1\n    leaders:\n" +
			"      - {name: L, lineup: [x]}\n      - {name: L, lineup: [y]}\n",
		"malformed": "regions: [",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestLoadDerivesMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	data := "regions:\n  - name: Orange Islands\n    generation: 1\n    leaders:\n      - {name: Cissy, lineup: [seadra]}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	set, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	region, err := set.Lookup("orange islands")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if region.Key != "orange-islands" || len(region.Leaders) != 1 {
		t.Fatalf("unexpected region: %+v", region)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}
