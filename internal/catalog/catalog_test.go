package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"testrig/pkg/domain"
)

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cat.Len() != 5 {
		t.Fatalf("expected 5 circuits, got %d", cat.Len())
	}
	if cat.Version() != "1.2.0" {
		t.Fatalf("unexpected version %s", cat.Version())
	}
	ring, ok := cat.Circuit(1)
	if !ok || !ring.Ring || ring.RCD == nil {
		t.Fatalf("expected circuit 1 to be an RCD protected ring, got %+v", ring)
	}
	if _, ok := ring.RequiredTest("c1-ring-r1"); !ok {
		t.Fatalf("expected ring r1 test on circuit 1")
	}
	if cat.Installation().EarthingArrangement != "TN-C-S" {
		t.Fatalf("unexpected installation %+v", cat.Installation())
	}

	var sawIR250 bool
	for _, c := range cat.Circuits() {
		for _, rt := range c.RequiredTests {
			if rt.Dial == domain.DialIR250 {
				sawIR250 = true
			}
		}
	}
	if !sawIR250 {
		t.Fatalf("expected at least one 250V insulation test")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, DefaultYAML(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.TotalRequiredTests() == 0 {
		t.Fatalf("expected required tests")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

const minimal = `
version: %s
installation: {ze: 0.2}
circuits:
  - id: 1
    description: Spur
    maxZs: 1.5
    testPoints: [{id: cu}]
    requiredTests:
%s
`

func render(version, tests string) []byte {
	return []byte(fmt.Sprintf(minimal, version, tests))
}

func TestParseRejections(t *testing.T) {
	ok := "      - {id: t1, testPointId: cu, dial: continuity, subTest: r1r2, gn3Step: 2}"
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"unknown dial", render("1.0.0", "      - {id: t1, testPointId: cu, dial: megger, gn3Step: 2}"), "schema validation"},
		{"zero step", render("1.0.0", "      - {id: t1, testPointId: cu, dial: loop, gn3Step: 0}"), "schema validation"},
		{"bad semver", render("one", ok), "invalid catalog version"},
		{"unsupported major", render("2.0.0", ok), "outside supported range"},
		{"unknown test point", render("1.0.0", "      - {id: t1, testPointId: socket, dial: loop, gn3Step: 5}"), "unknown test point"},
		{"duplicate test", render("1.0.0", ok+"\n"+ok), "duplicate required test"},
		{"rcd without device", render("1.0.0", "      - {id: t1, testPointId: cu, dial: rcd_30ma, subTest: x1, gn3Step: 7}"), "requires an RCD"},
		{"unknown field", []byte("version: 1.0.0\nbogus: true\n"), "decode catalog"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestParseMinimal(t *testing.T) {
	cat, err := Parse(render("1.4.2", "      - {id: t1, testPointId: cu, dial: continuity, subTest: r1r2, gn3Step: 2}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, ok := cat.Circuit(1)
	if !ok || len(c.RequiredTests) != 1 || c.RequiredTests[0].SubTest != domain.SubTestR1R2 {
		t.Fatalf("unexpected circuit %+v", c)
	}
}

func TestCheckVersion(t *testing.T) {
	for _, v := range []string{"1.0.0", "1.9.3"} {
		if err := CheckVersion(v); err != nil {
			t.Fatalf("%s: %v", v, err)
		}
	}
	for _, v := range []string{"0.9.0", "2.0.0", ""} {
		if err := CheckVersion(v); err == nil {
			t.Fatalf("%s: expected error", v)
		}
	}
}
