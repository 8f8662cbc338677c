package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplexities_StraightLine(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"plain.ts": `function plain(a: number): number {
  const b = a + 1;
  return b;
}
`,
	})
	file := parseTestFile(t, a, "plain.ts")

	fns := Complexities(file)
	require.Len(t, fns, 1)
	assert.Equal(t, "plain", fns[0].Name)
	assert.Equal(t, 1, fns[0].Complexity)
}

func TestComplexities_BranchesAndLogicalOperators(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"branchy.ts": `function branchy(a: number, b: number): number {
  if (a > 0 && b > 0) {
    return a + b;
  }
  for (let i = 0; i < a; i++) {
    b += i;
  }
  return b;
}
`,
	})
	file := parseTestFile(t, a, "branchy.ts")

	fns := Complexities(file)
	require.Len(t, fns, 1)
	// base 1 + if + && + for
	assert.Equal(t, 4, fns[0].Complexity)
}

func TestComplexities_NestedFunctionCountedSeparately(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"nested.ts": `function outer(flag: boolean): () => number {
  const inner = () => {
    if (flag) {
      return 1;
    }
    return 0;
  };
  return inner;
}
`,
	})
	file := parseTestFile(t, a, "nested.ts")

	fns := Complexities(file)
	require.Len(t, fns, 2)
	byName := make(map[string]int)
	for _, fn := range fns {
		byName[fn.Name] = fn.Complexity
	}
	assert.Equal(t, 1, byName["outer"], "inner branches must not leak into outer")
	assert.Equal(t, 2, byName["<anonymous>"])
}

func TestFileComplexity_CountsTypeDeclarations(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"c.ts": `class C {
  private v = 0;
  m() { return this.v; }
}
`,
	})
	file := parseTestFile(t, a, "c.ts")

	// one class declaration plus one straight-line method
	assert.Equal(t, 2, FileComplexity(file))
}
