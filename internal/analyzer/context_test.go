package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContext_Function(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"fn.ts": `import { helper } from "./lib";

/** Doubles the input. */
export function double(n: number): number {
  return n * 2;
}
`,
	})

	result, err := a.ExtractContext(context.Background(), "fn.ts", 4, 4, ContextOptions{
		Type:           ContextFunction,
		IncludeImports: true,
	})
	require.NoError(t, err)
	assert.Contains(t, result.MainContext, "function double")
	assert.Contains(t, result.MainContext, "Doubles the input")
	require.Len(t, result.Imports, 1)
	assert.Contains(t, result.Imports[0], "./lib")
	assert.False(t, result.Truncated)
	assert.Positive(t, result.TokenCount)
}

func TestExtractContext_ClassFromMethodPosition(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"cls.ts": `export class Box {
  private value = 0;
  get(): number {
    return this.value;
  }
}
`,
	})

	result, err := a.ExtractContext(context.Background(), "cls.ts", 3, 6, ContextOptions{Type: ContextClass})
	require.NoError(t, err)
	assert.Contains(t, result.MainContext, "class Box")
}

func TestExtractContext_TruncatesToBudget(t *testing.T) {
	var b strings.Builder
	b.WriteString("export function big(): void {\n")
	for i := 0; i < 200; i++ {
		b.WriteString("  console.log(\"some reasonably long line of filler output\");\n")
	}
	b.WriteString("}\n")

	a := newTestAnalyzer(t, map[string]string{"big.ts": b.String()})

	result, err := a.ExtractContext(context.Background(), "big.ts", 0, 16, ContextOptions{
		Type:      ContextFunction,
		MaxTokens: 50,
	})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.True(t, strings.HasSuffix(result.MainContext, "... [truncated]"))
	assert.LessOrEqual(t, result.TokenCount, 55, "token estimate stays near the budget")
}

func TestExtractContext_Module(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"mod.ts": `import { a } from "./a";

export const version = "1.0";

export function run(): void {}
`,
	})

	result, err := a.ExtractContext(context.Background(), "mod.ts", 0, 0, ContextOptions{Type: ContextModule})
	require.NoError(t, err)
	assert.Contains(t, result.MainContext, "run")
	assert.Contains(t, result.MainContext, "version")
}
