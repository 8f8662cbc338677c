package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tryterra/static-analysis/internal/analyzer"
	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/scope"
	"github.com/tryterra/static-analysis/internal/types"
)

// Position is the wire form of a 0-based cursor position.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type analyzeFileParams struct {
	FilePath       string `json:"filePath"`
	AnalysisType   string `json:"analysisType"`
	Depth          int    `json:"depth"`
	IncludePrivate bool   `json:"includePrivate"`
	OutputFormat   string `json:"outputFormat"`
}

func (s *Server) handleAnalyzeFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params analyzeFileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("analyze_file", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.FilePath == "" {
		return errorResponse("analyze_file", fmt.Errorf("filePath is required"))
	}

	result, err := runWithBudget(ctx, s, "", "analyze_file", func(ctx context.Context) (*analyzer.FileAnalysis, error) {
		return s.analyzer.AnalyzeFile(ctx, params.FilePath, analyzer.FileAnalysisOptions{
			Type:           analyzer.AnalysisType(params.AnalysisType),
			Depth:          params.Depth,
			IncludePrivate: params.IncludePrivate,
			Detailed:       params.OutputFormat == "detailed" || params.OutputFormat == "full",
		})
	})
	if err != nil {
		return errorResponse("analyze_file", err)
	}
	return jsonResponse(result)
}

type searchSymbolsParams struct {
	Query       string   `json:"query"`
	SearchType  string   `json:"searchType"`
	Scope       string   `json:"scope"`
	SymbolTypes []string `json:"symbolTypes"`
	MaxResults  int      `json:"maxResults"`
}

func (s *Server) handleSearchSymbols(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params searchSymbolsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("search_symbols", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Query == "" {
		return errorResponse("search_symbols", fmt.Errorf("query is required"))
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 50
	}
	searchType := analyzer.SearchType(params.SearchType)
	if searchType == "" {
		searchType = analyzer.SearchText
	}
	kinds := make([]types.SymbolKind, 0, len(params.SymbolTypes))
	for _, t := range params.SymbolTypes {
		kinds = append(kinds, types.SymbolKind(t))
	}

	started := time.Now()
	result, err := runWithBudget(ctx, s, "symbol-search", "search_symbols", func(ctx context.Context) (*analyzer.SearchResult, error) {
		return s.analyzer.SearchSymbols(ctx, params.Query, analyzer.SearchOptions{
			Type:        searchType,
			SymbolKinds: kinds,
			Include:     globList(params.Scope),
			MaxResults:  params.MaxResults,
		})
	})
	if err != nil {
		return errorResponse("search_symbols", err)
	}
	return jsonResponse(map[string]any{
		"matches":      result.Matches,
		"totalMatches": result.TotalMatches,
		"filesScanned": result.FilesScanned,
		"searchTimeMs": time.Since(started).Milliseconds(),
	})
}

type symbolInfoParams struct {
	FilePath             string   `json:"filePath"`
	Position             Position `json:"position"`
	IncludeRelationships bool     `json:"includeRelationships"`
	Depth                int      `json:"depth"`
}

func (s *Server) handleGetSymbolInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params symbolInfoParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("get_symbol_info", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.FilePath == "" {
		return errorResponse("get_symbol_info", fmt.Errorf("filePath is required"))
	}

	record, err := runWithBudget(ctx, s, "", "get_symbol_info", func(ctx context.Context) (*types.SymbolRecord, error) {
		return s.analyzer.SymbolInfo(ctx, params.FilePath, params.Position.Line, params.Position.Character,
			params.IncludeRelationships, params.Depth)
	})
	if err != nil {
		return errorResponse("get_symbol_info", err)
	}
	return jsonResponse(record)
}

type findReferencesParams struct {
	FilePath           string   `json:"filePath"`
	Position           Position `json:"position"`
	IncludeDeclaration bool     `json:"includeDeclaration"`
	Scope              string   `json:"scope"`
	MaxResults         int      `json:"maxResults"`
}

func (s *Server) handleFindReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params findReferencesParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("find_references", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.FilePath == "" {
		return errorResponse("find_references", fmt.Errorf("filePath is required"))
	}
	refScope := analyzer.ReferenceScope(params.Scope)
	if refScope == "" {
		refScope = analyzer.ScopeFile
	}
	class := ""
	if refScope == analyzer.ScopeProject {
		class = "impact-analysis"
	}

	result, err := runWithBudget(ctx, s, class, "find_references", func(ctx context.Context) (*analyzer.ReferenceResult, error) {
		return s.analyzer.FindReferences(ctx, params.FilePath, params.Position.Line, params.Position.Character,
			analyzer.ReferenceOptions{
				IncludeDeclaration: params.IncludeDeclaration,
				Scope:              refScope,
				MaxResults:         params.MaxResults,
			})
	})
	if err != nil {
		return errorResponse("find_references", err)
	}
	return jsonResponse(result)
}

type analyzeDependenciesParams struct {
	FilePath           string `json:"filePath"`
	Direction          string `json:"direction"`
	IncludeNodeModules bool   `json:"includeNodeModules"`
	GroupBy            string `json:"groupBy"`
}

func (s *Server) handleAnalyzeDependencies(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params analyzeDependenciesParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("analyze_dependencies", fmt.Errorf("invalid parameters: %w", err))
	}

	cacheParams := map[string]any{
		"filePath":           params.FilePath,
		"direction":          params.Direction,
		"includeNodeModules": params.IncludeNodeModules,
		"groupBy":            params.GroupBy,
	}
	var cached analyzer.DependencyGraph
	if s.diskGet("analyze_dependencies", cacheParams, &cached) {
		return jsonResponse(&cached)
	}

	graph, err := runWithBudget(ctx, s, "project-analysis", "analyze_dependencies", func(ctx context.Context) (*analyzer.DependencyGraph, error) {
		return s.analyzer.AnalyzeDependencies(ctx, analyzer.DependencyOptions{
			FilePath:           params.FilePath,
			Direction:          analyzer.DependencyDirection(params.Direction),
			IncludeNodeModules: params.IncludeNodeModules,
			GroupByDirectory:   params.GroupBy == "directory",
		})
	})
	if err != nil {
		return errorResponse("analyze_dependencies", err)
	}
	s.diskPut("analyze_dependencies", cacheParams, graph)
	return jsonResponse(graph)
}

type findPatternsParams struct {
	Pattern        string `json:"pattern"`
	PatternType    string `json:"patternType"`
	Scope          string `json:"scope"`
	MaxResults     int    `json:"maxResults"`
	IncludeContext bool   `json:"includeContext"`
}

func (s *Server) handleFindPatterns(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params findPatternsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("find_patterns", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Pattern == "" {
		return errorResponse("find_patterns", fmt.Errorf("pattern is required"))
	}
	switch params.PatternType {
	case "regex", "ast", "semantic":
	default:
		return errorResponse("find_patterns", scaerr.NewInvalidPattern("find_patterns", params.Pattern,
			fmt.Errorf("patternType must be regex, ast or semantic")))
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 100
	}

	started := time.Now()
	result, err := runWithBudget(ctx, s, "project-analysis", "find_patterns", func(ctx context.Context) (*analyzer.PatternResult, error) {
		return s.analyzer.FindPatterns(ctx, params.Pattern, analyzer.PatternType(params.PatternType), analyzer.PatternOptions{
			Include:        globList(params.Scope),
			MaxResults:     params.MaxResults,
			IncludeContext: params.IncludeContext,
		})
	})
	if err != nil {
		return errorResponse("find_patterns", err)
	}
	return jsonResponse(map[string]any{
		"matches":      result.Matches,
		"totalMatches": result.TotalMatches,
		"truncated":    result.Truncated,
		"searchTimeMs": time.Since(started).Milliseconds(),
	})
}

type smellThresholdParams struct {
	Complexity   int `json:"complexity"`
	FileSize     int `json:"fileSize"`
	FunctionSize int `json:"functionSize"`
}

type detectSmellsParams struct {
	FilePath   string               `json:"filePath"`
	Categories []string             `json:"categories"`
	Threshold  smellThresholdParams `json:"threshold"`
}

func (s *Server) handleDetectCodeSmells(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params detectSmellsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("detect_code_smells", fmt.Errorf("invalid parameters: %w", err))
	}
	categories := make([]types.SmellCategory, 0, len(params.Categories))
	for _, c := range params.Categories {
		categories = append(categories, types.SmellCategory(c))
	}
	thresholds := analyzer.SmellThresholds{
		Complexity:   params.Threshold.Complexity,
		FileSize:     params.Threshold.FileSize,
		FunctionSize: params.Threshold.FunctionSize,
	}

	class := ""
	if params.FilePath == "" {
		class = "project-analysis"
	}
	smells, err := runWithBudget(ctx, s, class, "detect_code_smells", func(ctx context.Context) ([]types.CodeSmellFinding, error) {
		return s.analyzer.DetectSmells(ctx, params.FilePath, categories, thresholds)
	})
	if err != nil {
		return errorResponse("detect_code_smells", err)
	}

	byCategory := make(map[string]int)
	bySeverity := make(map[string]int)
	for _, finding := range smells {
		byCategory[string(finding.Category)]++
		bySeverity[string(finding.Severity)]++
	}
	return jsonResponse(map[string]any{
		"smells": smells,
		"summary": map[string]any{
			"total":      len(smells),
			"byCategory": byCategory,
			"bySeverity": bySeverity,
		},
	})
}

type extractContextParams struct {
	FilePath         string    `json:"filePath"`
	Position         *Position `json:"position"`
	ContextType      string    `json:"contextType"`
	MaxTokens        int       `json:"maxTokens"`
	IncludeImports   bool      `json:"includeImports"`
	IncludeTypes     bool      `json:"includeTypes"`
	FollowReferences bool      `json:"followReferences"`
}

func (s *Server) handleExtractContext(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params extractContextParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("extract_context", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.FilePath == "" {
		return errorResponse("extract_context", fmt.Errorf("filePath is required"))
	}
	contextType := analyzer.ContextType(params.ContextType)
	if contextType == "" {
		contextType = analyzer.ContextFunction
	}
	if contextType != analyzer.ContextModule && params.Position == nil {
		return errorResponse("extract_context", fmt.Errorf("position is required for %s context", contextType))
	}
	var line, character int
	if params.Position != nil {
		line, character = params.Position.Line, params.Position.Character
	}

	result, err := runWithBudget(ctx, s, "", "extract_context", func(ctx context.Context) (*analyzer.ContextResult, error) {
		return s.analyzer.ExtractContext(ctx, params.FilePath, line, character, analyzer.ContextOptions{
			Type:             contextType,
			MaxTokens:        params.MaxTokens,
			IncludeImports:   params.IncludeImports,
			IncludeTypes:     params.IncludeTypes,
			FollowReferences: params.FollowReferences,
		})
	})
	if err != nil {
		return errorResponse("extract_context", err)
	}
	return jsonResponse(result)
}

type summarizeParams struct {
	RootPath            string `json:"rootPath"`
	IncludeMetrics      bool   `json:"includeMetrics"`
	IncludeArchitecture bool   `json:"includeArchitecture"`
	MaxDepth            int    `json:"maxDepth"`
}

func (s *Server) handleSummarizeCodebase(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params summarizeParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResponse("summarize_codebase", fmt.Errorf("invalid parameters: %w", err))
	}

	cacheParams := map[string]any{
		"rootPath":            params.RootPath,
		"includeMetrics":      params.IncludeMetrics,
		"includeArchitecture": params.IncludeArchitecture,
		"maxDepth":            params.MaxDepth,
	}
	var cached analyzer.CodebaseSummary
	if s.diskGet("summarize_codebase", cacheParams, &cached) {
		return jsonResponse(&cached)
	}

	summary, err := runWithBudget(ctx, s, "project-analysis", "summarize_codebase", func(ctx context.Context) (*analyzer.CodebaseSummary, error) {
		return s.analyzer.SummarizeCodebase(ctx, analyzer.SummaryOptions{
			RootPath:            params.RootPath,
			IncludeMetrics:      params.IncludeMetrics,
			IncludeArchitecture: params.IncludeArchitecture,
			MaxDepth:            params.MaxDepth,
		})
	})
	if err != nil {
		return errorResponse("summarize_codebase", err)
	}
	s.diskPut("summarize_codebase", cacheParams, summary)
	return jsonResponse(summary)
}

func (s *Server) handleCacheStats(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResponse(s.cache.Snapshot())
}

// runWithBudget wraps an operation in its class's timeout race. The class
// defaults to the single-file budget.
func runWithBudget[T any](ctx context.Context, s *Server, class, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	return scope.WithTimeout(ctx, operation, s.cfg.TimeoutFor(class), fn)
}

func globList(pattern string) []string {
	if pattern == "" {
		return nil
	}
	return []string{pattern}
}

func (s *Server) diskGet(tool string, params map[string]any, out any) bool {
	if s.disk == nil {
		return false
	}
	return s.disk.Get(s.disk.Key(tool, params), out)
}

func (s *Server) diskPut(tool string, params map[string]any, payload any) {
	if s.disk == nil {
		return
	}
	s.disk.Put(tool, s.disk.Key(tool, params), payload)
}
