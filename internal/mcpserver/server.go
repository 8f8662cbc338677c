package mcpserver

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tryterra/static-analysis/internal/analyzer"
	"github.com/tryterra/static-analysis/internal/cache"
	"github.com/tryterra/static-analysis/internal/config"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/scope"
	"github.com/tryterra/static-analysis/internal/version"
)

// Server wires the analyzer behind the MCP tool surface.
type Server struct {
	cfg      *config.Config
	analyzer *analyzer.Analyzer
	cache    *cache.Service
	disk     *cache.DiskCache
	watcher  *cache.Watcher
	server   *mcp.Server
	diag     *DiagnosticLogger

	watcherCancel context.CancelFunc
}

// NewServer builds the full pipeline from configuration: adapter, cache
// tiers, scope controller, analyzer, and the registered tool surface.
// stdio selects file-based diagnostics for protocol cleanliness.
func NewServer(cfg *config.Config, stdio bool) (*Server, error) {
	diag := NewDiagnosticLogger(stdio)

	adapter := program.NewAdapter(cfg.Performance.MaxFileSize)
	cacheService := cache.NewService(adapter, cfg)
	controller := scope.NewController(cfg.Project.Root, cfg.Scope.Include, cfg.Scope.Exclude)

	disk, err := cache.NewDiskCache(cfg.Cache.Dir, cfg.CacheTTL())
	if err != nil {
		diag.Errorf("persistent cache unavailable: %v", err)
		disk = nil
	}

	s := &Server{
		cfg:      cfg,
		analyzer: analyzer.New(cfg, cacheService, controller),
		cache:    cacheService,
		disk:     disk,
		diag:     diag,
	}

	if cfg.Cache.WatchMode {
		watcher, werr := cache.NewWatcher(cacheService, time.Duration(cfg.Cache.WatchDebounceMs)*time.Millisecond)
		if werr != nil {
			diag.Errorf("file watcher unavailable: %v", werr)
		} else {
			s.watcher = watcher
			cacheService.SetTracker(watcher.Track)
			ctx, cancel := context.WithCancel(context.Background())
			s.watcherCancel = cancel
			go watcher.Run(ctx)
		}
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "static-analysis",
		Version: version.Version,
	}, nil)
	s.registerTools()

	diag.Printf("server initialized, root=%s cache=%s", cfg.Project.Root, cfg.Cache.Dir)
	return s, nil
}

// Analyzer exposes the analysis pipeline to the CLI commands, which call it
// directly instead of going over stdio.
func (s *Server) Analyzer() *analyzer.Analyzer {
	return s.analyzer
}

// Start serves MCP over stdio until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.diag.Printf("starting stdio transport (log: %s)", s.diag.LogPath())
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the watcher, caches and log file.
func (s *Server) Close() error {
	if s.watcherCancel != nil {
		s.watcherCancel()
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.cache.Clear()
	return s.diag.Close()
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "analyze_file",
		Description: "Analyze a source file: symbols, dependencies and complexity. Use analysisType to pick a single pass and outputFormat=detailed for full symbol listings.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filePath":       {Type: "string", Description: "File to analyze, absolute or relative to the workspace root"},
				"analysisType":   {Type: "string", Enum: []any{"symbols", "dependencies", "complexity", "all"}, Description: "Which passes to run (default all)"},
				"depth":          {Type: "integer", Description: "Relationship depth for symbol analysis, 1-3"},
				"includePrivate": {Type: "boolean", Description: "Include conventionally private symbols"},
				"outputFormat":   {Type: "string", Enum: []any{"summary", "detailed", "full"}, Description: "summary for roll-up only, detailed/full for complete listings"},
			},
			Required: []string{"filePath"},
		},
	}, s.handleAnalyzeFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search symbols across the workspace with ranked results. text matches names lexically, semantic adds stemming and fuzzy matching, ast-pattern treats the query as a structural pattern.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":       {Type: "string", Description: "Symbol name or pattern to search for"},
				"searchType":  {Type: "string", Enum: []any{"text", "semantic", "ast-pattern"}, Description: "Matching strategy (default text)"},
				"scope":       {Type: "string", Description: "Glob restricting the searched files"},
				"symbolTypes": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Restrict to these symbol kinds"},
				"maxResults":  {Type: "integer", Description: "Result cap (default 50)"},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_symbol_info",
		Description: "Resolve the symbol at a file position and return its record, optionally with inheritance relationships.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filePath":             {Type: "string", Description: "File containing the symbol"},
				"position":             positionSchema(),
				"includeRelationships": {Type: "boolean", Description: "Attach extends/implements and hierarchy"},
				"depth":                {Type: "integer", Description: "Hierarchy depth when relationships are included"},
			},
			Required: []string{"filePath", "position"},
		},
	}, s.handleGetSymbolInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_references",
		Description: "Find all occurrences of the symbol at a position, classified as read, write, call or import. Project scope scans a bounded working set.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filePath":           {Type: "string", Description: "File containing the symbol"},
				"position":           positionSchema(),
				"includeDeclaration": {Type: "boolean", Description: "Count the declaration itself"},
				"scope":              {Type: "string", Enum: []any{"file", "project"}, Description: "Search scope (default file)"},
				"maxResults":         {Type: "integer", Description: "Cap on returned references"},
			},
			Required: []string{"filePath", "position"},
		},
	}, s.handleFindReferences)

	s.server.AddTool(&mcp.Tool{
		Name:        "analyze_dependencies",
		Description: "Build the import graph as nodes and edges. With filePath, keep that file's imports, importers, or both; groupBy=directory collapses files into directories.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filePath":           {Type: "string", Description: "Focal file; omit for the whole-project graph"},
				"direction":          {Type: "string", Enum: []any{"imports", "exports", "both"}, Description: "Edge direction relative to the focal file"},
				"includeNodeModules": {Type: "boolean", Description: "Keep external module nodes"},
				"groupBy":            {Type: "string", Enum: []any{"file", "directory"}, Description: "Node granularity"},
			},
		},
	}, s.handleAnalyzeDependencies)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_patterns",
		Description: "Search for code patterns. regex matches raw text (structural false positives expected), ast matches a fixed structural catalog or a raw node kind, semantic matches heuristic predicates like god-class.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":        {Type: "string", Description: "Pattern text: a regex, an ast catalog name (async-no-await, empty-catch, call:<name>, or a node kind), or a semantic predicate (god-class, long-parameter-list, no-error-handling)"},
				"patternType":    {Type: "string", Enum: []any{"regex", "ast", "semantic"}, Description: "Matching strategy"},
				"scope":          {Type: "string", Description: "Glob restricting the searched files"},
				"maxResults":     {Type: "integer", Description: "Hard cap applied during the scan"},
				"includeContext": {Type: "boolean", Description: "Attach surrounding source lines to each match"},
			},
			Required: []string{"pattern", "patternType"},
		},
	}, s.handleFindPatterns)

	s.server.AddTool(&mcp.Tool{
		Name:        "detect_code_smells",
		Description: "Run the code-quality detectors (complexity, naming, unused-code, async-issues, coupling) over a file or the whole workspace, returning findings sorted by severity.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filePath":   {Type: "string", Description: "Single file to scan; omit to sweep the workspace"},
				"categories": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Detector categories to run (default all)"},
				"threshold": {Type: "object", Properties: map[string]*jsonschema.Schema{
					"complexity":   {Type: "integer"},
					"fileSize":     {Type: "integer"},
					"functionSize": {Type: "integer"},
				}, Description: "Detector thresholds; omitted fields use defaults"},
			},
		},
	}, s.handleDetectCodeSmells)

	s.server.AddTool(&mcp.Tool{
		Name:        "extract_context",
		Description: "Extract a token-bounded context snippet around a position: enclosing function or class, the module header, or the symbol plus its relationships and reference sites.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filePath":         {Type: "string", Description: "File to extract from"},
				"position":         positionSchema(),
				"contextType":      {Type: "string", Enum: []any{"function", "class", "module", "related"}, Description: "Extraction scope (default function)"},
				"maxTokens":        {Type: "integer", Description: "Token budget, estimated as length/4"},
				"includeImports":   {Type: "boolean", Description: "List the file's import specifiers"},
				"includeTypes":     {Type: "boolean", Description: "Append parameter and return types as a comment"},
				"followReferences": {Type: "boolean", Description: "For related context, list reference sites"},
			},
			Required: []string{"filePath"},
		},
	}, s.handleExtractContext)

	s.server.AddTool(&mcp.Tool{
		Name:        "summarize_codebase",
		Description: "Summarize the workspace: file and symbol counts by language and kind, optional complexity metrics and an architecture sketch with import cycles.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rootPath":            {Type: "string", Description: "Subdirectory to summarize; defaults to the workspace root"},
				"includeMetrics":      {Type: "boolean", Description: "Include complexity metrics"},
				"includeArchitecture": {Type: "boolean", Description: "Include the architecture sketch"},
				"maxDepth":            {Type: "integer", Description: "Directory depth for the architecture listing"},
			},
		},
	}, s.handleSummarizeCodebase)

	s.server.AddTool(&mcp.Tool{
		Name:        "cache_stats",
		Description: "Report cache hit/miss/invalidation counters, tier sizes and heap usage.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleCacheStats)
}

func positionSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"line":      {Type: "integer", Description: "0-based line"},
			"character": {Type: "integer", Description: "0-based character"},
		},
		Required:    []string{"line", "character"},
		Description: "0-based cursor position",
	}
}
