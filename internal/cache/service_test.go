package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tryterra/static-analysis/internal/config"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

func newTestService(t *testing.T, invalidation string) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Project.Root = root
	if invalidation != "" {
		cfg.Cache.Invalidation = invalidation
	}
	adapter := program.NewAdapter(cfg.Performance.MaxFileSize)
	return NewService(adapter, cfg), root
}

func writeSource(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestService_MissThenHit(t *testing.T) {
	s, root := newTestService(t, "")
	path := writeSource(t, root, "a.ts", "const a = 1;\n")

	first, err := s.ParsedFile(path)
	require.NoError(t, err)
	second, err := s.ParsedFile(path)
	require.NoError(t, err)
	assert.Same(t, first, second, "second load is served from cache")

	stats := s.Snapshot()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.ParsedFiles)
}

func TestService_TimestampInvalidation(t *testing.T) {
	s, root := newTestService(t, config.InvalidateTimestamp)
	path := writeSource(t, root, "a.ts", "const a = 1;\n")

	first, err := s.ParsedFile(path)
	require.NoError(t, err)

	// Backdate the cached entry so the rewrite looks newer.
	first.ModTime = first.ModTime.Add(-time.Hour)
	writeSource(t, root, "a.ts", "const a = 2;\n")

	second, err := s.ParsedFile(path)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Contains(t, string(second.Content), "= 2")
}

func TestService_ContentHashInvalidation(t *testing.T) {
	s, root := newTestService(t, config.InvalidateContentHash)
	path := writeSource(t, root, "a.ts", "const a = 1;\n")

	first, err := s.ParsedFile(path)
	require.NoError(t, err)

	// Same content rewritten: hash unchanged, entry stays.
	writeSource(t, root, "a.ts", "const a = 1;\n")
	second, err := s.ParsedFile(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	writeSource(t, root, "a.ts", "const a = 9;\n")
	third, err := s.ParsedFile(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestService_ManualInvalidation(t *testing.T) {
	s, root := newTestService(t, config.InvalidateManual)
	path := writeSource(t, root, "a.ts", "const a = 1;\n")

	first, err := s.ParsedFile(path)
	require.NoError(t, err)

	// Manual mode serves stale content until told otherwise.
	writeSource(t, root, "a.ts", "const a = 2;\n")
	second, err := s.ParsedFile(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	s.Invalidate(path)
	third, err := s.ParsedFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(third.Content), "= 2")
}

func TestService_SymbolTier(t *testing.T) {
	s, root := newTestService(t, "")
	path := writeSource(t, root, "a.ts", "const a = 1;\n")

	_, ok := s.Symbols(path)
	assert.False(t, ok)

	records := []types.SymbolRecord{{Name: "a", Kind: types.KindVariable}}
	s.PutSymbols(path, records)

	got, ok := s.Symbols(path)
	require.True(t, ok)
	assert.Equal(t, records, got)

	s.Invalidate(path)
	_, ok = s.Symbols(path)
	assert.False(t, ok, "invalidation drops both tiers")
}

func TestService_WorkingSet(t *testing.T) {
	s, root := newTestService(t, "")
	a := writeSource(t, root, "a.ts", "const a = 1;\n")
	b := writeSource(t, root, "b.ts", "const b = 2;\n")

	_, err := s.ParsedFile(a)
	require.NoError(t, err)
	_, err = s.ParsedFile(b)
	require.NoError(t, err)

	set := s.WorkingSet()
	require.Len(t, set, 2)
	assert.Equal(t, b, set[0], "most recently used first")
}

func TestService_MissingFile(t *testing.T) {
	s, root := newTestService(t, "")
	_, err := s.ParsedFile(filepath.Join(root, "absent.ts"))
	require.Error(t, err)
}

func newSmallService(t *testing.T, entries int) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Cache.ParsedFileEntries = entries
	adapter := program.NewAdapter(cfg.Performance.MaxFileSize)
	return NewService(adapter, cfg), root
}

func TestService_PinKeepsEvictedTreesAlive(t *testing.T) {
	s, root := newSmallService(t, 1)
	a := writeSource(t, root, "a.ts", "class A extends B {}\n")
	b := writeSource(t, root, "b.ts", "class B {}\n")

	done := s.Acquire()
	first, err := s.ParsedFile(a)
	require.NoError(t, err)
	_, err = s.ParsedFile(b) // evicts a.ts from the tier
	require.NoError(t, err)

	require.NotNil(t, first.Root(), "evicted tree must stay alive while the request is pinned")

	done()
	assert.Nil(t, first.Root(), "last unpin releases retired trees")
	done() // repeated unpin is a no-op
}

func TestService_OverlappingPinsDrainOnLastUnpin(t *testing.T) {
	s, root := newSmallService(t, 1)
	a := writeSource(t, root, "a.ts", "const a = 1;\n")
	b := writeSource(t, root, "b.ts", "const b = 2;\n")

	first := s.Acquire()
	second := s.Acquire()

	fa, err := s.ParsedFile(a)
	require.NoError(t, err)
	_, err = s.ParsedFile(b)
	require.NoError(t, err)

	first()
	require.NotNil(t, fa.Root(), "retired trees survive until every pin is gone")
	second()
	assert.Nil(t, fa.Root())
}

func TestService_EvictionReleasesImmediatelyWhenUnpinned(t *testing.T) {
	s, root := newSmallService(t, 1)
	a := writeSource(t, root, "a.ts", "const a = 1;\n")
	b := writeSource(t, root, "b.ts", "const b = 2;\n")

	fa, err := s.ParsedFile(a)
	require.NoError(t, err)
	_, err = s.ParsedFile(b)
	require.NoError(t, err)

	assert.Nil(t, fa.Root(), "with no pins, eviction releases the tree at once")
}

func TestService_TrackerSeesEachInsert(t *testing.T) {
	s, root := newTestService(t, "")
	var tracked []string
	s.SetTracker(func(path string) { tracked = append(tracked, path) })

	path := writeSource(t, root, "a.ts", "const a = 1;\n")
	_, err := s.ParsedFile(path)
	require.NoError(t, err)
	_, err = s.ParsedFile(path) // cache hit, no new insert
	require.NoError(t, err)

	assert.Equal(t, []string{path}, tracked)
}
