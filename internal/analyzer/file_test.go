package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/types"
)

func TestAnalyzeFile_ClassWithPrivateMember(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"c.ts": `class C {
  private v = 0;
  m() { return this.v; }
}
`,
	})

	result, err := a.AnalyzeFile(context.Background(), "c.ts", FileAnalysisOptions{Type: AnalyzeAll, Detailed: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.TotalSymbols)
	assert.GreaterOrEqual(t, result.Summary.Complexity, 2)
	assert.Equal(t, "typescript", result.Summary.Language)
	require.Len(t, result.Symbols, 2)
	assert.Equal(t, "C", result.Symbols[0].Name)
	assert.Equal(t, "m", result.Symbols[1].Name)
}

func TestAnalyzeFile_MissingFile(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{})

	_, err := a.AnalyzeFile(context.Background(), "nope.ts", FileAnalysisOptions{})
	require.Error(t, err)
	assert.Equal(t, scaerr.ErrorTypeFileNotFound, scaerr.TypeOf(err))
}

func TestAnalyzeFile_OutsideScope(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{"in.ts": "const a = 1;\n"})

	_, err := a.AnalyzeFile(context.Background(), "../outside/file.ts", FileAnalysisOptions{})
	require.Error(t, err)
	assert.Equal(t, scaerr.ErrorTypeScope, scaerr.TypeOf(err))
}

func TestAnalyzeFile_DependenciesOnly(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"deps.ts": `import { x } from "./x";
import type { T } from "./t";
export const y = 1;
`,
	})

	result, err := a.AnalyzeFile(context.Background(), "deps.ts", FileAnalysisOptions{Type: AnalyzeDependencies, Detailed: true})
	require.NoError(t, err)
	require.Len(t, result.Imports, 2)
	assert.Equal(t, "./x", result.Imports[0].ModuleSpecifier)
	assert.True(t, result.Imports[1].IsTypeOnly)
	require.Len(t, result.Exports, 1)
	assert.Equal(t, "y", result.Exports[0].Name)
	assert.Empty(t, result.Symbols)
}

func TestAnalyzeFile_ComplexityOnly(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"cx.ts": `function pick(a: number): number {
  if (a > 0) { return 1; }
  return 0;
}
`,
	})

	result, err := a.AnalyzeFile(context.Background(), "cx.ts", FileAnalysisOptions{Type: AnalyzeComplexity, Detailed: true})
	require.NoError(t, err)
	require.Len(t, result.Functions, 1)
	assert.Equal(t, "pick", result.Functions[0].Name)
	assert.Equal(t, 2, result.Functions[0].Complexity)
}

func TestAnalyzeFile_PartialParseKeepsDiagnostics(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"broken.ts": `function good(): number {
  return 1;
}
function bad( {
`,
	})

	result, err := a.AnalyzeFile(context.Background(), "broken.ts", FileAnalysisOptions{Type: AnalyzeSymbols, Detailed: true})
	require.NoError(t, err, "partial parse still yields results")
	assert.NotEmpty(t, result.Diagnostics)

	found := false
	for _, s := range result.Symbols {
		if s.Name == "good" {
			found = true
		}
	}
	assert.True(t, found, "valid declarations survive a partial parse")
}

func TestSymbolInfo(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"info.ts": `/** Greets someone. */
export function greet(name: string): string {
  return "hi " + name;
}
`,
	})

	record, err := a.SymbolInfo(context.Background(), "info.ts", 1, 17, true, 1)
	require.NoError(t, err)
	assert.Equal(t, "greet", record.Name)
	assert.Equal(t, types.KindFunction, record.Kind)
	assert.Contains(t, record.Documentation, "Greets someone")
}

func TestSymbolInfo_Inheritance(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"shapes.ts": `interface Drawable {
  draw(): void;
}
class Shape {
  area(): number { return 0; }
}
class Circle extends Shape implements Drawable {
  draw(): void {}
  area(): number { return 3; }
}
`,
	})

	record, err := a.SymbolInfo(context.Background(), "shapes.ts", 6, 6, true, 1)
	require.NoError(t, err)
	assert.Equal(t, "Circle", record.Name)
	require.NotNil(t, record.Relationships)
	require.Len(t, record.Relationships.Extends, 1)
	assert.Equal(t, "Shape", record.Relationships.Extends[0].Name)
	require.Len(t, record.Relationships.Implements, 1)
	assert.Equal(t, "Drawable", record.Relationships.Implements[0].Name)
}

func TestSymbolInfo_NothingAtPosition(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{"blank.ts": "\n\n"})

	_, err := a.SymbolInfo(context.Background(), "blank.ts", 1, 0, false, 1)
	require.Error(t, err)
	assert.Equal(t, scaerr.ErrorTypeSymbolNotFound, scaerr.TypeOf(err))
}
