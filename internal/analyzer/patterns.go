package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// PatternType selects the matching strategy.
type PatternType string

const (
	PatternRegex    PatternType = "regex"
	PatternAST      PatternType = "ast"
	PatternSemantic PatternType = "semantic"
)

// PatternMatch is one hit of a pattern search.
type PatternMatch struct {
	Location types.Location `json:"location"`
	Text     string         `json:"text"`
	Context  []string       `json:"context,omitempty"`
}

// PatternOptions scopes and bounds a pattern search.
type PatternOptions struct {
	Include        []string
	Exclude        []string
	MaxResults     int
	IncludeContext bool
}

// PatternResult aggregates a pattern search across the scoped file set.
// TotalMatches counts matches found before the result cap was applied;
// the scan stops one past the cap, so when Truncated is set it is a lower
// bound rather than an exhaustive count.
type PatternResult struct {
	Matches      []PatternMatch `json:"matches"`
	TotalMatches int            `json:"totalMatches"`
	TotalFiles   int            `json:"totalFiles"`
	Truncated    bool           `json:"truncated"`
}

// FindPatterns runs one of the three matching strategies over the scoped
// file set. The scan stops as soon as MaxResults is reached; the scope
// filter runs before any file is parsed. Unrecognized ast/semantic pattern
// names match nothing; only regex compilation failures are errors.
func (a *Analyzer) FindPatterns(ctx context.Context, pattern string, patternType PatternType, opts PatternOptions) (*PatternResult, error) {
	done := a.cache.Acquire()
	defer done()

	var matchFile func(file *program.ParsedFile, budget int) []PatternMatch
	switch patternType {
	case PatternRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, scaerr.NewInvalidPattern("find-patterns", pattern, err)
		}
		matchFile = func(file *program.ParsedFile, budget int) []PatternMatch {
			return regexMatches(file, re, budget, opts.IncludeContext)
		}
	case PatternAST:
		predicate := astPredicate(pattern)
		matchFile = func(file *program.ParsedFile, budget int) []PatternMatch {
			return nodeMatches(file, predicate, budget, opts.IncludeContext)
		}
	case PatternSemantic:
		predicate := semanticPredicate(pattern)
		matchFile = func(file *program.ParsedFile, budget int) []PatternMatch {
			return nodeMatches(file, predicate, budget, opts.IncludeContext)
		}
	default:
		return nil, scaerr.NewInvalidPattern("find-patterns", pattern,
			fmt.Errorf("unknown pattern type %q", patternType))
	}

	files, err := a.sourceFiles("", opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	result := &PatternResult{TotalFiles: len(files)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		budget := 0
		if opts.MaxResults > 0 {
			if len(result.Matches) > opts.MaxResults {
				break
			}
			// One past the cap so the trim below can tell a full page
			// from a truncated one.
			budget = opts.MaxResults - len(result.Matches) + 1
		}
		file, err := a.cache.ParsedFile(path)
		if err != nil {
			continue // bad files are omitted, never fatal
		}
		result.Matches = append(result.Matches, matchFile(file, budget)...)
	}
	result.TotalMatches = len(result.Matches)
	if opts.MaxResults > 0 && len(result.Matches) > opts.MaxResults {
		result.Matches = result.Matches[:opts.MaxResults]
		result.Truncated = true
	}
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i].Location, result.Matches[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Position.Line < b.Position.Line
	})
	return result, nil
}

// regexMatches matches over raw text; offsets are mapped back to line and
// column positions. Structural false positives are expected and kept.
func regexMatches(file *program.ParsedFile, re *regexp.Regexp, budget int, withContext bool) []PatternMatch {
	indexes := re.FindAllIndex(file.Content, -1)
	var matches []PatternMatch
	for _, pair := range indexes {
		if budget > 0 && len(matches) >= budget {
			break
		}
		start := offsetToPosition(file.Content, pair[0])
		end := offsetToPosition(file.Content, pair[1])
		matches = append(matches, PatternMatch{
			Location: types.Location{File: file.Path, Position: start, EndPosition: &end},
			Text:     string(file.Content[pair[0]:pair[1]]),
			Context:  contextLines(file, start.Line, withContext),
		})
	}
	return matches
}

func offsetToPosition(content []byte, offset int) types.Position {
	line, lineStart := 0, 0
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return types.Position{Line: line, Character: offset - lineStart}
}

func contextLines(file *program.ParsedFile, line int, enabled bool) []string {
	if !enabled {
		return nil
	}
	var out []string
	for n := line - 1; n <= line+1; n++ {
		if n >= 0 && n < len(file.Lines) {
			out = append(out, file.Line(n))
		}
	}
	return out
}

// nodePredicate reports whether a node matches; nil predicates match
// nothing.
type nodePredicate func(file *program.ParsedFile, node *tree_sitter.Node) bool

func nodeMatches(file *program.ParsedFile, predicate nodePredicate, budget int, withContext bool) []PatternMatch {
	if predicate == nil {
		return nil
	}
	var matches []PatternMatch
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if budget > 0 && len(matches) >= budget {
			return false
		}
		if predicate(file, node) {
			text := program.Text(node, file.Content)
			matches = append(matches, PatternMatch{
				Location: program.LocationOf(file.Path, node),
				Text:     elide(text, 200),
				Context:  contextLines(file, int(node.StartPosition().Row), withContext),
			})
		}
		return true
	})
	return matches
}

// astPredicate resolves the fixed structural catalog, with a raw
// syntax-kind fallback. Unknown names return a predicate too, since any
// string is a potential node kind; kinds no grammar produces simply never
// match.
func astPredicate(pattern string) nodePredicate {
	switch {
	case pattern == "async-no-await":
		return isAsyncWithoutAwait
	case pattern == "empty-catch":
		return isEmptyCatch
	case strings.HasPrefix(pattern, "call:"):
		callee := strings.TrimPrefix(pattern, "call:")
		return func(file *program.ParsedFile, node *tree_sitter.Node) bool {
			if node.Kind() != "call_expression" {
				return false
			}
			fn := node.ChildByFieldName("function")
			return fn != nil && program.Text(fn, file.Content) == callee
		}
	default:
		kind := pattern
		return func(_ *program.ParsedFile, node *tree_sitter.Node) bool {
			return node.Kind() == kind
		}
	}
}

func isAsyncWithoutAwait(file *program.ParsedFile, node *tree_sitter.Node) bool {
	if !file.Spec().FunctionKinds[node.Kind()] || !hasAsyncModifier(node) {
		return false
	}
	return !subtreeHasKind(node, "await_expression")
}

func isEmptyCatch(_ *program.ParsedFile, node *tree_sitter.Node) bool {
	if node.Kind() != "catch_clause" {
		return false
	}
	body := node.ChildByFieldName("body")
	return body != nil && body.NamedChildCount() == 0
}

func hasAsyncModifier(node *tree_sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == "async" {
			return true
		}
	}
	return false
}

func subtreeHasKind(node *tree_sitter.Node, kind string) bool {
	found := false
	walk(node, func(child *tree_sitter.Node) bool {
		if found {
			return false
		}
		if child.Kind() == kind {
			found = true
			return false
		}
		return true
	})
	return found
}

// Semantic thresholds, shared with the find_patterns catalog.
const (
	godClassMethods    = 20
	godClassProperties = 30
	longParameterList  = 5
)

// semanticPredicate resolves the heuristic catalog. Patterns needing
// whole-project reachability are out of scope and match nothing.
func semanticPredicate(pattern string) nodePredicate {
	switch pattern {
	case "god-class":
		return isGodClass
	case "long-parameter-list":
		return hasLongParameterList
	case "no-error-handling":
		return lacksErrorHandling
	default:
		return nil
	}
}

func isGodClass(file *program.ParsedFile, node *tree_sitter.Node) bool {
	if file.Spec().SymbolKinds[node.Kind()] != types.KindClass {
		return false
	}
	methods, properties := classMemberCounts(node)
	return methods > godClassMethods || properties > godClassProperties
}

func classMemberCounts(class *tree_sitter.Node) (methods, properties int) {
	body := class.ChildByFieldName("body")
	if body == nil {
		return 0, 0
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "method_definition", "method_signature":
			methods++
		case "public_field_definition", "field_definition", "property_signature":
			properties++
		}
	}
	return methods, properties
}

func hasLongParameterList(file *program.ParsedFile, node *tree_sitter.Node) bool {
	if !file.Spec().FunctionKinds[node.Kind()] {
		return false
	}
	return parameterCount(node) > longParameterList
}

func parameterCount(fn *tree_sitter.Node) int {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return 0
	}
	return int(params.NamedChildCount())
}

// lacksErrorHandling flags async functions that make calls but contain no
// try statement. A shape heuristic, not a control-flow analysis.
func lacksErrorHandling(file *program.ParsedFile, node *tree_sitter.Node) bool {
	if !file.Spec().FunctionKinds[node.Kind()] || !hasAsyncModifier(node) {
		return false
	}
	return subtreeHasKind(node, "call_expression") && !subtreeHasKind(node, "try_statement")
}
