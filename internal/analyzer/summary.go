package analyzer

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// SummaryOptions controls summarize_codebase.
type SummaryOptions struct {
	RootPath            string // sub-directory under the workspace root
	IncludeMetrics      bool
	IncludeArchitecture bool
	MaxDepth            int // directory depth for the architecture listing
}

// CodebaseOverview is the always-present part of a summary.
type CodebaseOverview struct {
	TotalFiles      int            `json:"totalFiles"`
	TotalLines      int            `json:"totalLines"`
	TotalSymbols    int            `json:"totalSymbols"`
	FilesByLanguage map[string]int `json:"filesByLanguage"`
	SymbolsByKind   map[string]int `json:"symbolsByKind"`
	Truncated       bool           `json:"truncated,omitempty"`
}

// CodebaseMetrics aggregates complexity over the scanned set.
type CodebaseMetrics struct {
	AverageComplexity float64             `json:"averageComplexity"`
	MaxComplexity     *FunctionComplexity `json:"maxComplexity,omitempty"`
	FunctionsOverTen  int                 `json:"functionsOverTen"`
	TotalFunctions    int                 `json:"totalFunctions"`
}

// ArchitectureView sketches structure: directory fan-out, heavily imported
// modules, external dependencies, and import cycles.
type ArchitectureView struct {
	Directories     map[string]int `json:"directories"`
	MostImported    []string       `json:"mostImported,omitempty"`
	ExternalModules []string       `json:"externalModules,omitempty"`
	ImportCycles    [][]string     `json:"importCycles,omitempty"`
	EntryPointGuess string         `json:"entryPointGuess,omitempty"`
}

// CodebaseSummary is the summarize_codebase result.
type CodebaseSummary struct {
	Overview     CodebaseOverview  `json:"overview"`
	Metrics      *CodebaseMetrics  `json:"metrics,omitempty"`
	Architecture *ArchitectureView `json:"architecture,omitempty"`
}

// SummarizeCodebase fans a bounded scan out over the workspace and
// aggregates per-file results. The file cap makes large codebases a
// sampled approximation, reported through the truncated flag.
func (a *Analyzer) SummarizeCodebase(ctx context.Context, opts SummaryOptions) (*CodebaseSummary, error) {
	done := a.cache.Acquire()
	defer done()

	files, err := a.sourceFiles(opts.RootPath, nil, nil)
	if err != nil {
		return nil, err
	}

	summary := &CodebaseSummary{
		Overview: CodebaseOverview{
			FilesByLanguage: make(map[string]int),
			SymbolsByKind:   make(map[string]int),
			Truncated:       len(files) >= a.cfg.Performance.MaxProjectFiles,
		},
	}

	type fileFacts struct {
		language  string
		lines     int
		symbols   []types.SymbolRecord
		functions []FunctionComplexity
	}
	results := forEachSource(ctx, a, files, func(_ context.Context, file *program.ParsedFile) (fileFacts, error) {
		symbols, ok := a.cache.Symbols(file.Path)
		if !ok {
			symbols = ExtractFile(file, true)
			a.cache.PutSymbols(file.Path, symbols)
		}
		return fileFacts{
			language:  string(file.Language),
			lines:     len(file.Lines),
			symbols:   symbols,
			functions: Complexities(file),
		}, nil
	})

	var (
		allFunctions  []FunctionComplexity
		totalBranches int
	)
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		facts := result.Value
		summary.Overview.TotalFiles++
		summary.Overview.TotalLines += facts.lines
		summary.Overview.FilesByLanguage[facts.language]++
		summary.Overview.TotalSymbols += len(facts.symbols)
		for _, symbol := range facts.symbols {
			summary.Overview.SymbolsByKind[string(symbol.Kind)]++
		}
		allFunctions = append(allFunctions, facts.functions...)
		for _, fn := range facts.functions {
			totalBranches += fn.Complexity
		}
	}

	if opts.IncludeMetrics {
		summary.Metrics = buildMetrics(allFunctions, totalBranches)
	}
	if opts.IncludeArchitecture {
		arch, err := a.buildArchitecture(ctx, opts)
		if err == nil {
			summary.Architecture = arch
		}
	}
	return summary, nil
}

func buildMetrics(functions []FunctionComplexity, totalComplexity int) *CodebaseMetrics {
	metrics := &CodebaseMetrics{TotalFunctions: len(functions)}
	if len(functions) == 0 {
		return metrics
	}
	metrics.AverageComplexity = float64(totalComplexity) / float64(len(functions))
	maxIdx := 0
	for i, fn := range functions {
		if fn.Complexity > functions[maxIdx].Complexity {
			maxIdx = i
		}
		if fn.Complexity > 10 {
			metrics.FunctionsOverTen++
		}
	}
	maxFn := functions[maxIdx]
	metrics.MaxComplexity = &maxFn
	return metrics
}

func (a *Analyzer) buildArchitecture(ctx context.Context, opts SummaryOptions) (*ArchitectureView, error) {
	graph, err := a.AnalyzeDependencies(ctx, DependencyOptions{
		Direction:          DirectionBoth,
		IncludeNodeModules: true,
	})
	if err != nil {
		return nil, err
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}
	view := &ArchitectureView{Directories: make(map[string]int)}
	type ranked struct {
		id string
		in int
	}
	var imported []ranked
	for _, node := range graph.Nodes {
		if node.External {
			view.ExternalModules = append(view.ExternalModules, node.ID)
			continue
		}
		view.Directories[dirAtDepth(node.ID, maxDepth)]++
		if node.InDegree > 0 {
			imported = append(imported, ranked{node.ID, node.InDegree})
		}
		if base := filepath.Base(node.ID); base == "index.ts" || base == "main.ts" || base == "index.js" {
			view.EntryPointGuess = node.ID
		}
	}
	sort.Slice(imported, func(i, j int) bool {
		if imported[i].in != imported[j].in {
			return imported[i].in > imported[j].in
		}
		return imported[i].id < imported[j].id
	})
	for i, entry := range imported {
		if i >= 10 {
			break
		}
		view.MostImported = append(view.MostImported, entry.id)
	}
	sort.Strings(view.ExternalModules)
	view.ImportCycles = graph.Cycles()
	return view, nil
}

// dirAtDepth truncates a relative path to its first depth directory
// segments, "." for files at the root.
func dirAtDepth(relPath string, depth int) string {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath)))
	if dir == "." || dir == "/" {
		return "."
	}
	parts := strings.Split(dir, "/")
	if len(parts) > depth {
		parts = parts[:depth]
	}
	return strings.Join(parts, "/")
}
