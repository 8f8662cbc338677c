package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tryterra/static-analysis/internal/config"
)

func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	root := t.TempDir()
	for rel, src := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(src), 0o644))
	}

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Cache.Dir = filepath.Join(root, ".sca-cache")
	cfg.Cache.WatchMode = false
	require.NoError(t, cfg.Validate())

	server, err := NewServer(cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func callRequest(t *testing.T, args any) *mcp.CallToolRequest {
	t.Helper()
	encoded, err := json.Marshal(args)
	require.NoError(t, err)
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: encoded}}
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, out any) {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), out))
}

func TestHandleAnalyzeFile(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"c.ts": `class C {
  private v = 0;
  m() { return this.v; }
}
`,
	})

	result, err := s.handleAnalyzeFile(context.Background(), callRequest(t, map[string]any{
		"filePath":     "c.ts",
		"outputFormat": "detailed",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var analysis struct {
		Summary struct {
			TotalSymbols int `json:"totalSymbols"`
			Complexity   int `json:"complexity"`
		} `json:"summary"`
	}
	decodeResult(t, result, &analysis)
	assert.Equal(t, 2, analysis.Summary.TotalSymbols)
	assert.GreaterOrEqual(t, analysis.Summary.Complexity, 2)
}

func TestHandleAnalyzeFile_MissingRequiredParam(t *testing.T) {
	s := newTestServer(t, nil)

	result, err := s.handleAnalyzeFile(context.Background(), callRequest(t, map[string]any{}))
	require.NoError(t, err, "tool failures travel in the result, not the transport")
	assert.True(t, result.IsError)

	var body struct {
		Success   bool   `json:"success"`
		ErrorType string `json:"errorType"`
	}
	decodeResult(t, result, &body)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.ErrorType)
}

func TestHandleAnalyzeFile_OutsideScope(t *testing.T) {
	s := newTestServer(t, nil)

	result, err := s.handleAnalyzeFile(context.Background(), callRequest(t, map[string]any{
		"filePath": "../outside/file.ts",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var body struct {
		ErrorType string `json:"errorType"`
	}
	decodeResult(t, result, &body)
	assert.Equal(t, "scope", body.ErrorType)
}

func TestHandleSearchSymbols(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"svc.ts": `export class UserService {}
export function getUser(): void {}
`,
	})

	result, err := s.handleSearchSymbols(context.Background(), callRequest(t, map[string]any{
		"query": "user",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body struct {
		TotalMatches int `json:"totalMatches"`
		Matches      []struct {
			Symbol struct {
				Name string `json:"name"`
			} `json:"symbol"`
			Score float64 `json:"score"`
		} `json:"matches"`
		SearchTimeMs int64 `json:"searchTimeMs"`
	}
	decodeResult(t, result, &body)
	assert.Equal(t, 2, body.TotalMatches)
}

func TestHandleSearchSymbols_EmptyQuery(t *testing.T) {
	s := newTestServer(t, nil)

	result, err := s.handleSearchSymbols(context.Background(), callRequest(t, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleFindReferences(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"r.ts": `function f(): void {}
f();
f();
`,
	})

	result, err := s.handleFindReferences(context.Background(), callRequest(t, map[string]any{
		"filePath": "r.ts",
		"position": map[string]int{"line": 0, "character": 9},
		"scope":    "file",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body struct {
		TotalReferences int `json:"totalReferences"`
	}
	decodeResult(t, result, &body)
	assert.Equal(t, 2, body.TotalReferences)
}

func TestHandleFindPatterns_InvalidType(t *testing.T) {
	s := newTestServer(t, map[string]string{"a.ts": "const a = 1;\n"})

	result, err := s.handleFindPatterns(context.Background(), callRequest(t, map[string]any{
		"pattern":     "anything",
		"patternType": "telepathic",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var body struct {
		ErrorType string `json:"errorType"`
	}
	decodeResult(t, result, &body)
	assert.Equal(t, "invalid_pattern", body.ErrorType)
}

func TestHandleDetectCodeSmells(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"smelly.ts": `function tangled(a: number): number {
  if (a > 1) { return 1; }
  if (a > 2) { return 2; }
  return 0;
}
`,
	})

	result, err := s.handleDetectCodeSmells(context.Background(), callRequest(t, map[string]any{
		"filePath":  "smelly.ts",
		"threshold": map[string]int{"complexity": 1},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body struct {
		Smells []struct {
			Category string `json:"category"`
			Severity string `json:"severity"`
		} `json:"smells"`
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}
	decodeResult(t, result, &body)
	assert.NotEmpty(t, body.Smells)
	assert.Equal(t, len(body.Smells), body.Summary.Total)
}

func TestHandleSummarizeCodebase_UsesDiskCache(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"a.ts": "export const a = 1;\n",
	})

	args := map[string]any{"includeMetrics": true}
	first, err := s.handleSummarizeCodebase(context.Background(), callRequest(t, args))
	require.NoError(t, err)
	require.False(t, first.IsError)

	second, err := s.handleSummarizeCodebase(context.Background(), callRequest(t, args))
	require.NoError(t, err)
	require.False(t, second.IsError)

	var a, b map[string]any
	decodeResult(t, first, &a)
	decodeResult(t, second, &b)
	assert.Equal(t, a, b, "cached summary is byte-equivalent to the fresh one")
}

func TestHandleCacheStats(t *testing.T) {
	s := newTestServer(t, map[string]string{"a.ts": "const a = 1;\n"})

	_, err := s.handleAnalyzeFile(context.Background(), callRequest(t, map[string]any{"filePath": "a.ts"}))
	require.NoError(t, err)

	result, err := s.handleCacheStats(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var stats struct {
		ParsedFiles int    `json:"parsedFiles"`
		Misses      uint64 `json:"misses"`
	}
	decodeResult(t, result, &stats)
	assert.Equal(t, 1, stats.ParsedFiles)
	assert.GreaterOrEqual(t, stats.Misses, uint64(1))
}

func TestHandleExtractContext(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"fn.ts": `export function pick(n: number): number {
  return n;
}
`,
	})

	result, err := s.handleExtractContext(context.Background(), callRequest(t, map[string]any{
		"filePath": "fn.ts",
		"position": map[string]int{"line": 1, "character": 4},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body struct {
		MainContext string `json:"mainContext"`
	}
	decodeResult(t, result, &body)
	assert.Contains(t, body.MainContext, "pick")
}
