package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tryterra/static-analysis/internal/cache"
	"github.com/tryterra/static-analysis/internal/config"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/scope"
)

// newTestAnalyzer builds an analyzer over a temp workspace populated with
// the given relative-path -> source mappings.
func newTestAnalyzer(t *testing.T, files map[string]string) *Analyzer {
	t.Helper()
	return newTestAnalyzerWith(t, files, nil)
}

// newTestAnalyzerWith is newTestAnalyzer with a config hook applied before
// validation.
func newTestAnalyzerWith(t *testing.T, files map[string]string, tune func(*config.Config)) *Analyzer {
	t.Helper()
	root := t.TempDir()
	for rel, src := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(src), 0o644))
	}

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Cache.WatchMode = false
	if tune != nil {
		tune(cfg)
	}
	require.NoError(t, cfg.Validate())

	adapter := program.NewAdapter(cfg.Performance.MaxFileSize)
	svc := cache.NewService(adapter, cfg)
	ctrl := scope.NewController(root, cfg.Scope.Include, cfg.Scope.Exclude)
	return New(cfg, svc, ctrl)
}

func parseTestFile(t *testing.T, a *Analyzer, rel string) *program.ParsedFile {
	t.Helper()
	file, err := a.Load(rel)
	require.NoError(t, err)
	return file
}
