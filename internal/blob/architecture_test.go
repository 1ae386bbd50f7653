package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestInfraBackendsStayBehindFactories loads every package in the module and
// checks that concrete storage backends are only imported by their factory.
func TestInfraBackendsStayBehindFactories(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "testrig/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	rules := []struct {
		infra   string
		allowed []string
	}{
		{infra: "testrig/internal/infra/blob", allowed: []string{"testrig/internal/blob"}},
		{infra: "testrig/internal/infra/persistence", allowed: []string{"testrig/internal/core"}},
	}

	var violations []string
	for _, pkg := range pkgs {
		for _, rule := range rules {
			if under(pkg.PkgPath, rule.infra) || allowed(pkg.PkgPath, rule.allowed) {
				continue
			}
			for importPath := range pkg.Imports {
				if under(importPath, rule.infra) {
					violations = append(violations, pkg.PkgPath+": "+importPath)
				}
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("backend imported outside its factory: %s", v)
	}
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func allowed(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if under(path, p) {
			return true
		}
	}
	return false
}
