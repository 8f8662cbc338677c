package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/types"
)

func TestFindReferences_FileScope(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"refs.ts": `function greet(name: string): string {
  return "hi " + name;
}
const a = greet("x");
const b = greet("y");
`,
	})

	result, err := a.FindReferences(context.Background(), "refs.ts", 0, 9, ReferenceOptions{
		Scope:              ScopeFile,
		IncludeDeclaration: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "greet", result.Symbol.Name)
	assert.Equal(t, 3, result.TotalReferences)

	calls := 0
	declarations := 0
	for _, ref := range result.References {
		if ref.Kind == types.RefCall {
			calls++
		}
		if ref.IsDeclaration {
			declarations++
		}
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, declarations)
}

func TestFindReferences_ExcludesDeclarationByDefault(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"refs.ts": `function greet(name: string): string {
  return "hi " + name;
}
const a = greet("x");
`,
	})

	result, err := a.FindReferences(context.Background(), "refs.ts", 0, 9, ReferenceOptions{
		Scope: ScopeFile,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalReferences)
	for _, ref := range result.References {
		assert.False(t, ref.IsDeclaration)
	}
}

func TestFindReferences_ProjectScope(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"lib.ts": `export function shared(): number {
  return 42;
}
`,
		"user.ts": `import { shared } from "./lib";
const v = shared();
`,
	})

	result, err := a.FindReferences(context.Background(), "lib.ts", 0, 17, ReferenceOptions{
		Scope: ScopeProject,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.FilesScanned, 2)
	assert.GreaterOrEqual(t, result.TotalReferences, 2, "import and call site in user.ts")

	foundUser := false
	for _, ref := range result.References {
		if strings.HasSuffix(ref.Location.File, "user.ts") {
			foundUser = true
		}
	}
	assert.True(t, foundUser, "references should include the importing file")
}

func TestFindReferences_NoSymbolAtPosition(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"empty.ts": "\n\n\n",
	})

	_, err := a.FindReferences(context.Background(), "empty.ts", 1, 0, ReferenceOptions{Scope: ScopeFile})
	require.Error(t, err)
	assert.Equal(t, scaerr.ErrorTypeSymbolNotFound, scaerr.TypeOf(err))
}

func TestFindReferences_MaxResults(t *testing.T) {
	a := newTestAnalyzer(t, map[string]string{
		"many.ts": `function f(): void {}
f(); f(); f(); f(); f();
`,
	})

	result, err := a.FindReferences(context.Background(), "many.ts", 0, 9, ReferenceOptions{
		Scope:      ScopeFile,
		MaxResults: 2,
	})
	require.NoError(t, err)
	assert.Len(t, result.References, 2)
	assert.Equal(t, 5, result.TotalReferences)
}
