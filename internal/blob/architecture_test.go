package blob

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"

	"chronicle/testutil"
)

// TestOnlyBlobPackageImportsInfra ensures that only this facade package
// wraps the infra-backed blob implementations. Everything else must depend
// on the blob.Store interface instead of importing infra packages directly.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	infraPrefix := "chronicle/internal/infra/blob"
	allowedPrefixes := []string{"chronicle/internal/blob"}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "chronicle/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if allowed(pkg.PkgPath, allowedPrefixes) || isInfraImport(pkg.PkgPath, infraPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if isInfraImport(importPath, infraPrefix) {
				pos := filepath.Join(pkg.PkgPath, "...")
				seen[pos+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of infra blob package: %s", v)
		}
		t.Fatalf("found %d forbidden imports of infra blob packages", len(violations))
	}
}

// TestBlobLayerDoesNotDependOnDomain keeps the blob layer byte-oriented: the
// facade and every driver it wraps move opaque payloads and must never pull
// in the domain model, even indirectly.
func TestBlobLayerDoesNotDependOnDomain(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.DomainImportForbidden,
		"blob stores handle opaque bytes only")
}

func allowed(pkgPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/") {
			return true
		}
	}
	return false
}

func isInfraImport(importPath, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}
