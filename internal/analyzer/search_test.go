package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tryterra/static-analysis/internal/types"
)

func TestSearchSymbols_RankingTiers(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"names.ts": `export function fetch(): void {}
export function fetchData(): void {}
export function prefetchAll(): void {}
export function unrelated(): void {}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "fetch", SearchOptions{Type: SearchText})
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalMatches)

	assert.Equal(t, "fetch", result.Matches[0].Symbol.Name)
	assert.Equal(t, 1.0, result.Matches[0].Score)
	assert.Equal(t, "fetchData", result.Matches[1].Symbol.Name)
	assert.Equal(t, "prefetchAll", result.Matches[2].Symbol.Name)
	assert.Greater(t, result.Matches[1].Score, result.Matches[2].Score)
}

func TestSearchSymbols_CaseInsensitive(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"case.ts": `export class UserService {}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "userservice", SearchOptions{Type: SearchText})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalMatches)
	assert.Equal(t, 1.0, result.Matches[0].Score)
}

func TestSearchSymbols_SemanticOutranksFuzzy(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"sem.ts": `export function running(): void {}
export function runing(): void {}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "runnings", SearchOptions{Type: SearchSemantic})
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.TotalMatches, 1)
	for _, m := range result.Matches {
		assert.Less(t, m.Score, 1.0, "fuzzy and stemmed hits never reach the exact tier")
	}
}

func TestSearchSymbols_TextModeHasNoFuzzyTier(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"strict.ts": `export function running(): void {}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "runnig", SearchOptions{Type: SearchText})
	require.NoError(t, err)
	assert.Zero(t, result.TotalMatches)
}

func TestSearchSymbols_KindFilter(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"kinds.ts": `export class Widget {}
export function widget(): void {}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "widget", SearchOptions{
		Type:        SearchText,
		SymbolKinds: []types.SymbolKind{types.KindClass},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalMatches)
	assert.Equal(t, types.KindClass, result.Matches[0].Symbol.Kind)
}

func TestSearchSymbols_MaxResults(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"cap.ts": `export function capOne(): void {}
export function capTwo(): void {}
export function capThree(): void {}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "cap", SearchOptions{Type: SearchText, MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalMatches)
	assert.Len(t, result.Matches, 2)
}

func TestSearchSymbols_ASTPattern(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"ast.ts": `export async function idle(): Promise<void> {
  return;
}
export async function busy(): Promise<void> {
  await Promise.resolve();
}
`,
	})

	result, err := a.SearchSymbols(context.Background(), "async-no-await", SearchOptions{Type: SearchASTPattern})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalMatches)
	assert.Equal(t, "idle", result.Matches[0].Symbol.Name)
}
