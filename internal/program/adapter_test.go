package program

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
)

func TestDetectLanguage(t *testing.T) {
	cases := map[string]Language{
		"a.ts":  LangTypeScript,
		"a.tsx": LangTSX,
		"a.js":  LangJavaScript,
		"a.mjs": LangJavaScript,
		"a.go":  LangGo,
		"a.py":  LangPython,
		"a.rs":  LangRust,
	}
	for path, want := range cases {
		lang, ok := DetectLanguage(path)
		require.True(t, ok, path)
		assert.Equal(t, want, lang, path)
	}

	_, ok := DetectLanguage("readme.md")
	assert.False(t, ok)
}

func TestAdapter_ParseTypeScript(t *testing.T) {
	a := NewAdapter(1 << 20)
	src := []byte("export function greet(name: string): string {\n  return name;\n}\n")

	file, err := a.Parse("greet.ts", src, time.Now())
	require.NoError(t, err)
	defer file.Release()

	assert.Equal(t, LangTypeScript, file.Language)
	assert.Equal(t, 4, len(file.Lines))
	assert.False(t, file.Root().HasError())
	assert.Empty(t, file.Diagnostics)
}

func TestAdapter_ParseCollectsDiagnostics(t *testing.T) {
	a := NewAdapter(1 << 20)
	src := []byte("function broken( {\nconst x = 1;\n")

	file, err := a.Parse("broken.ts", src, time.Now())
	require.NoError(t, err, "syntax errors produce diagnostics, not failures")
	defer file.Release()
	assert.NotEmpty(t, file.Diagnostics)
}

func TestAdapter_LoadFile(t *testing.T) {
	a := NewAdapter(1 << 20)
	dir := t.TempDir()
	path := filepath.Join(dir, "x.ts")
	require.NoError(t, os.WriteFile(path, []byte("const x = 1;\n"), 0o644))

	file, err := a.LoadFile(path)
	require.NoError(t, err)
	defer file.Release()
	assert.Equal(t, path, file.Path)
	assert.NotZero(t, file.Hash)
}

func TestAdapter_LoadFileMissing(t *testing.T) {
	a := NewAdapter(1 << 20)
	_, err := a.LoadFile(filepath.Join(t.TempDir(), "absent.ts"))
	require.Error(t, err)
	assert.Equal(t, scaerr.ErrorTypeFileNotFound, scaerr.TypeOf(err))
}

func TestAdapter_FileTooLarge(t *testing.T) {
	a := NewAdapter(8)
	dir := t.TempDir()
	path := filepath.Join(dir, "big.ts")
	require.NoError(t, os.WriteFile(path, []byte("const tooLong = 12345;\n"), 0o644))

	_, err := a.LoadFile(path)
	assert.Error(t, err)
}

func TestAdapter_UnsupportedExtension(t *testing.T) {
	a := NewAdapter(1 << 20)
	_, err := a.Parse("notes.txt", []byte("hello"), time.Now())
	assert.Error(t, err)
}

func TestResolveAtPosition(t *testing.T) {
	a := NewAdapter(1 << 20)
	file, err := a.Parse("p.ts", []byte("const value = 42;\n"), time.Now())
	require.NoError(t, err)
	defer file.Release()

	node := a.ResolveAtPosition(file, 0, 6)
	require.NotNil(t, node)
	assert.Equal(t, "value", Text(node, file.Content))
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("same"))
	b := ContentHash([]byte("same"))
	c := ContentHash([]byte("different"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestJSDocTags(t *testing.T) {
	doc := "Adds numbers.\n@param a left operand\n@returns the sum"
	out := JSDocTags(doc)
	assert.Contains(t, out, "Adds numbers")
}
