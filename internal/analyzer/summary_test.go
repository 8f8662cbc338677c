package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeCodebase_Overview(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"index.ts": `import { helper } from "./util/helper";
export function main(): void { helper(); }
`,
		"util/helper.ts": `export function helper(): void {}
`,
		"legacy.js": `function legacy() {}
`,
	})

	summary, err := a.SummarizeCodebase(context.Background(), SummaryOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Overview.TotalFiles)
	assert.Equal(t, 2, summary.Overview.FilesByLanguage["typescript"])
	assert.Equal(t, 1, summary.Overview.FilesByLanguage["javascript"])
	assert.Positive(t, summary.Overview.TotalLines)
	assert.Positive(t, summary.Overview.TotalSymbols)
	assert.False(t, summary.Overview.Truncated)
	assert.Nil(t, summary.Metrics)
	assert.Nil(t, summary.Architecture)
}

func TestSummarizeCodebase_Metrics(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"m.ts": `function easy(): number { return 1; }
function harder(a: number): number {
  if (a > 0) { return a; }
  return -a;
}
`,
	})

	summary, err := a.SummarizeCodebase(context.Background(), SummaryOptions{IncludeMetrics: true})
	require.NoError(t, err)
	require.NotNil(t, summary.Metrics)
	assert.Equal(t, 2, summary.Metrics.TotalFunctions)
	require.NotNil(t, summary.Metrics.MaxComplexity)
	assert.Equal(t, "harder", summary.Metrics.MaxComplexity.Name)
	assert.InDelta(t, 1.5, summary.Metrics.AverageComplexity, 0.01)
}

func TestSummarizeCodebase_Architecture(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"index.ts": `import { db } from "./store/db";
export const app = db;
`,
		"store/db.ts": `import express from "express";
export const db = express();
`,
	})

	summary, err := a.SummarizeCodebase(context.Background(), SummaryOptions{IncludeArchitecture: true})
	require.NoError(t, err)
	require.NotNil(t, summary.Architecture)
	assert.Contains(t, summary.Architecture.ExternalModules, "express")
	assert.Contains(t, summary.Architecture.EntryPointGuess, "index.ts")
	assert.NotEmpty(t, summary.Architecture.MostImported)
}
