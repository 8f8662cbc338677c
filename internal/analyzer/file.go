package analyzer

import (
	"context"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// AnalysisType selects which passes analyze_file runs.
type AnalysisType string

const (
	AnalyzeSymbols      AnalysisType = "symbols"
	AnalyzeDependencies AnalysisType = "dependencies"
	AnalyzeComplexity   AnalysisType = "complexity"
	AnalyzeAll          AnalysisType = "all"
)

// FileAnalysisOptions controls a single-file analysis.
type FileAnalysisOptions struct {
	Type           AnalysisType
	Depth          int // 1..3, relationship depth for symbols
	IncludePrivate bool
	Detailed       bool // include the full symbol list, not just the summary
}

// FileSummary is the always-present roll-up of a file analysis.
type FileSummary struct {
	TotalSymbols int      `json:"totalSymbols"`
	Complexity   int      `json:"complexity"`
	Dependencies []string `json:"dependencies,omitempty"`
	Language     string   `json:"language"`
	Lines        int      `json:"lines"`
}

// FileAnalysis is the analyze_file result.
type FileAnalysis struct {
	File        string               `json:"file"`
	Summary     FileSummary          `json:"summary"`
	Symbols     []types.SymbolRecord `json:"symbols,omitempty"`
	Imports     []types.ImportInfo   `json:"imports,omitempty"`
	Exports     []types.ExportInfo   `json:"exports,omitempty"`
	Functions   []FunctionComplexity `json:"functions,omitempty"`
	Diagnostics []types.Diagnostic   `json:"diagnostics,omitempty"`
}

// AnalyzeFile runs the requested passes over one file. All passes see the
// same parsed snapshot; a file with syntax errors still analyzes, with its
// diagnostics attached.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts FileAnalysisOptions) (*FileAnalysis, error) {
	done := a.cache.Acquire()
	defer done()

	if opts.Type == "" {
		opts.Type = AnalyzeAll
	}
	file, err := a.Load(path)
	if err != nil {
		return nil, err
	}

	analysis := &FileAnalysis{
		File: file.Path,
		Summary: FileSummary{
			Language: string(file.Language),
			Lines:    len(file.Lines),
		},
		Diagnostics: file.Diagnostics,
	}

	if opts.Type == AnalyzeSymbols || opts.Type == AnalyzeAll {
		symbols := ExtractFile(file, opts.IncludePrivate)
		if opts.Depth > 1 && program.IsPrimary(file.Language) {
			a.attachRelationships(ctx, file, symbols, opts.Depth)
		}
		analysis.Summary.TotalSymbols = len(symbols)
		if opts.Detailed {
			analysis.Symbols = symbols
		}
	}
	if opts.Type == AnalyzeDependencies || opts.Type == AnalyzeAll {
		imports := Imports(file)
		for _, imp := range imports {
			analysis.Summary.Dependencies = append(analysis.Summary.Dependencies, imp.ModuleSpecifier)
		}
		if opts.Detailed {
			analysis.Imports = imports
			analysis.Exports = Exports(file)
		}
	}
	if opts.Type == AnalyzeComplexity || opts.Type == AnalyzeAll {
		analysis.Summary.Complexity = FileComplexity(file)
		if opts.Detailed {
			analysis.Functions = Complexities(file)
		}
	}
	return analysis, nil
}

// attachRelationships fills extends/implements (and ancestors beyond depth
// 2) for class and interface records in place.
func (a *Analyzer) attachRelationships(ctx context.Context, file *program.ParsedFile, symbols []types.SymbolRecord, depth int) {
	spec := file.Spec()
	for i := range symbols {
		switch symbols[i].Kind {
		case types.KindClass, types.KindInterface:
		default:
			continue
		}
		node := program.NodeAt(file.Root(), symbols[i].Location.Position.Line, symbols[i].Location.Position.Character)
		for node != nil {
			if _, ok := spec.SymbolKinds[node.Kind()]; ok {
				break
			}
			node = node.Parent()
		}
		if node == nil {
			continue
		}
		extends, implements := Heritage(file, node)
		if len(extends) == 0 && len(implements) == 0 {
			continue
		}
		rel := &types.Relationships{Extends: extends, Implements: implements}
		if depth > 2 {
			if deeper, err := a.Hierarchy(ctx, symbols[i].Name, HierarchyAncestors, depth-1); err == nil {
				rel.Extends = mergeRefs(rel.Extends, deeper.Extends)
			}
		}
		symbols[i].Relationships = rel
	}
}

func mergeRefs(base, extra []types.SymbolReference) []types.SymbolReference {
	seen := make(map[string]bool, len(base))
	for _, ref := range base {
		seen[ref.Name] = true
	}
	for _, ref := range extra {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			base = append(base, ref)
		}
	}
	return base
}

// SymbolInfo resolves the symbol at a position and optionally attaches its
// relationship sets.
func (a *Analyzer) SymbolInfo(ctx context.Context, path string, line, character int, includeRelationships bool, depth int) (*types.SymbolRecord, error) {
	done := a.cache.Acquire()
	defer done()

	file, err := a.Load(path)
	if err != nil {
		return nil, err
	}
	node := program.NodeAt(file.Root(), line, character)
	spec := file.Spec()
	for node != nil {
		if _, ok := spec.SymbolKinds[node.Kind()]; ok {
			break
		}
		node = node.Parent()
	}
	if node == nil {
		return nil, scaerr.NewSymbolNotFound("get-symbol-info", file.Path, line, character)
	}
	record := ExtractSymbol(file, node, true)
	if record == nil {
		return nil, scaerr.NewSymbolNotFound("get-symbol-info", file.Path, line, character)
	}

	if includeRelationships && program.IsPrimary(file.Language) {
		if depth <= 0 {
			depth = 1
		}
		extends, implements := Heritage(file, node)
		rel := &types.Relationships{Extends: extends, Implements: implements}
		if depth > 1 {
			if deeper, err := a.Hierarchy(ctx, record.Name, HierarchyBoth, depth); err == nil {
				rel.Extends = mergeRefs(rel.Extends, deeper.Extends)
				rel.UsedBy = deeper.UsedBy
			}
		}
		record.Relationships = rel
	}
	return record, nil
}
