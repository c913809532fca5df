//go:build integration
// +build integration

package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestReviewDomainStaysPure asserts the domain and graph packages depend on
// nothing but the standard library and the platform error types. Persistence,
// protocol, and driver concerns belong to the layers above them.
func TestReviewDomainStaysPure(t *testing.T) {
	config := &packages.Config{
		Mode:  packages.NeedName | packages.NeedImports | packages.NeedDeps,
		Tests: false,
		Dir:   integrationRepoRoot(t),
	}
	pkgs, err := packages.Load(config,
		"./internal/services/review/domain",
		"./internal/services/review/graph",
	)
	if err != nil {
		t.Fatalf("load domain packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatal("domain package load errors")
	}
	if len(pkgs) == 0 {
		t.Fatal("domain packages not found")
	}

	var violations []string
	for _, pkg := range pkgs {
		seen := map[string]bool{}
		collectForbiddenImports(pkg, seen, &violations)
	}
	if len(violations) > 0 {
		t.Fatalf("domain packages must stay free of storage and transport deps:\n- %s",
			strings.Join(violations, "\n- "))
	}
}

func collectForbiddenImports(pkg *packages.Package, seen map[string]bool, violations *[]string) {
	if pkg == nil || seen[pkg.PkgPath] {
		return
	}
	seen[pkg.PkgPath] = true
	for path, imported := range pkg.Imports {
		if isForbiddenDomainImport(path) {
			*violations = append(*violations, pkg.PkgPath+" imports "+path)
		}
		collectForbiddenImports(imported, seen, violations)
	}
}

func isForbiddenDomainImport(path string) bool {
	forbidden := []string{
		"github.com/louisbranch/crosscheck/internal/services/review/storage",
		"github.com/louisbranch/crosscheck/internal/services/mcp",
		"github.com/modelcontextprotocol/go-sdk",
		"modernc.org/sqlite",
		"database/sql",
	}
	for _, prefix := range forbidden {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func TestDomainPurityForbiddenSet(t *testing.T) {
	if !isForbiddenDomainImport("database/sql") {
		t.Fatal("expected database/sql to be forbidden")
	}
	if !isForbiddenDomainImport("github.com/modelcontextprotocol/go-sdk/mcp") {
		t.Fatal("expected the MCP SDK to be forbidden")
	}
	if isForbiddenDomainImport("strings") {
		t.Fatal("expected stdlib strings to be allowed")
	}
	if isForbiddenDomainImport("github.com/louisbranch/crosscheck/internal/platform/errors") {
		t.Fatal("expected platform errors to be allowed")
	}
}

func integrationRepoRoot(t *testing.T) string {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			t.Fatal("go.mod not found")
		}
		wd = parent
	}
}
