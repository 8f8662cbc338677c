package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeDependencies_InternalEdges(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"a.ts": `import { b } from "./b";
export const a = b + 1;
`,
		"b.ts": `export const b = 1;
`,
	})

	graph, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{})
	require.NoError(t, err)

	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "a.ts", graph.Edges[0].From)
	assert.Equal(t, "b.ts", graph.Edges[0].To)

	byID := make(map[string]int)
	for _, n := range graph.Nodes {
		if n.ID == "b.ts" {
			byID["b.in"] = n.InDegree
		}
		if n.ID == "a.ts" {
			byID["a.out"] = n.OutDegree
		}
		assert.False(t, n.External)
	}
	assert.Equal(t, 1, byID["b.in"])
	assert.Equal(t, 1, byID["a.out"])
}

func TestAnalyzeDependencies_ExternalFiltered(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"app.ts": `import express from "express";
import { local } from "./local";
export const app = express();
`,
		"local.ts": `export const local = 1;
`,
	})

	graph, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{})
	require.NoError(t, err)
	for _, e := range graph.Edges {
		assert.NotEqual(t, "express", e.To, "bare specifiers are dropped without includeNodeModules")
	}

	withExternal, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{IncludeNodeModules: true})
	require.NoError(t, err)

	foundExternal := false
	for _, n := range withExternal.Nodes {
		if n.ID == "express" {
			foundExternal = true
			assert.True(t, n.External)
		}
	}
	assert.True(t, foundExternal)
}

func TestAnalyzeDependencies_FocalFile(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"hub.ts": `import { a } from "./a";
export const hub = a;
`,
		"a.ts": `export const a = 1;
`,
		"stray.ts": `export const stray = 2;
`,
	})

	graph, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{
		FilePath:  "hub.ts",
		Direction: DirectionImports,
	})
	require.NoError(t, err)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "hub.ts", graph.Edges[0].From)
}

func TestAnalyzeDependencies_TypeOnlyEdge(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"shapes.ts": `export interface Shape { area(): number; }
`,
		"use.ts": `import type { Shape } from "./shapes";
export function measure(s: Shape): number { return s.area(); }
`,
	})

	graph, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{})
	require.NoError(t, err)
	require.Len(t, graph.Edges, 1)
	assert.True(t, graph.Edges[0].IsTypeOnly)
}

func TestCycles(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"x.ts": `import { y } from "./y";
export const x = 1;
`,
		"y.ts": `import { x } from "./x";
export const y = 2;
`,
		"z.ts": `export const z = 3;
`,
	})

	graph, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{})
	require.NoError(t, err)

	cycles := graph.Cycles()
	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0], 2)
}

func TestAnalyzeDependencies_GroupByDirectory(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"api/handler.ts": `import { save } from "../store/db";
export const handler = save;
`,
		"store/db.ts": `export function save(): void {}
`,
	})

	graph, err := a.AnalyzeDependencies(context.Background(), DependencyOptions{GroupByDirectory: true})
	require.NoError(t, err)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "api", graph.Edges[0].From)
	assert.Equal(t, "store", graph.Edges[0].To)
}
