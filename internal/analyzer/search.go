package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// SearchType selects how search_symbols interprets its query.
type SearchType string

const (
	SearchText       SearchType = "text"
	SearchSemantic   SearchType = "semantic"
	SearchASTPattern SearchType = "ast-pattern"
)

// SymbolMatch is one scored search hit.
type SymbolMatch struct {
	Symbol types.SymbolRecord `json:"symbol"`
	Score  float64            `json:"score"`
}

// SearchOptions bounds and filters a symbol search.
type SearchOptions struct {
	Type        SearchType
	SymbolKinds []types.SymbolKind
	Include     []string
	Exclude     []string
	MaxResults  int
}

// SearchResult carries the ranked matches. TotalMatches counts every hit
// before the MaxResults cut.
type SearchResult struct {
	Matches      []SymbolMatch `json:"matches"`
	TotalMatches int           `json:"totalMatches"`
	FilesScanned int           `json:"filesScanned"`
}

// Ranking tiers: exact match > prefix > substring > stem match > fuzzy.
const (
	scoreExact     = 1.0
	scorePrefix    = 0.9
	scoreSubstring = 0.75
	scoreStemmed   = 0.6
	fuzzyThreshold = 0.7
)

// SearchSymbols scans the scoped file set for symbols matching the query
// and returns them ranked by descending score, ties broken by name. Text
// search uses the lexical tiers only; semantic search adds stemming and
// fuzzy similarity; ast-pattern search treats the query as a structural
// pattern and reports the extractable symbols of matching nodes.
func (a *Analyzer) SearchSymbols(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	done := a.cache.Acquire()
	defer done()

	files, err := a.sourceFiles("", opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}
	kindFilter := make(map[types.SymbolKind]bool, len(opts.SymbolKinds))
	for _, k := range opts.SymbolKinds {
		kindFilter[k] = true
	}

	result := &SearchResult{}

	if opts.Type == SearchASTPattern {
		return a.searchByPattern(ctx, query, files, kindFilter, opts.MaxResults)
	}

	type scored struct {
		records []SymbolMatch
	}
	results := forEachSource(ctx, a, files, func(_ context.Context, file *program.ParsedFile) (scored, error) {
		symbols, ok := a.cache.Symbols(file.Path)
		if !ok {
			symbols = ExtractFile(file, true)
			a.cache.PutSymbols(file.Path, symbols)
		}
		var hits scored
		for _, symbol := range symbols {
			if len(kindFilter) > 0 && !kindFilter[symbol.Kind] {
				continue
			}
			score := scoreName(query, symbol.Name, opts.Type == SearchSemantic)
			if score > 0 {
				hits.records = append(hits.records, SymbolMatch{Symbol: symbol, Score: score})
			}
		}
		return hits, nil
	})

	for _, fileResult := range results {
		if fileResult.Err != nil {
			continue
		}
		result.FilesScanned++
		result.Matches = append(result.Matches, fileResult.Value.records...)
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		if result.Matches[i].Score != result.Matches[j].Score {
			return result.Matches[i].Score > result.Matches[j].Score
		}
		return result.Matches[i].Symbol.Name < result.Matches[j].Symbol.Name
	})
	result.TotalMatches = len(result.Matches)
	if opts.MaxResults > 0 && len(result.Matches) > opts.MaxResults {
		result.Matches = result.Matches[:opts.MaxResults]
	}
	return result, nil
}

// scoreName ranks a candidate name against the query. Semantic mode adds
// the stemmed-term and fuzzy-similarity tiers below the lexical ones.
func scoreName(query, name string, semantic bool) float64 {
	q, n := strings.ToLower(query), strings.ToLower(name)
	switch {
	case n == q:
		return scoreExact
	case strings.HasPrefix(n, q):
		return scorePrefix
	case strings.Contains(n, q):
		return scoreSubstring
	}
	if !semantic {
		return 0
	}
	if porter2.Stem(q) == porter2.Stem(n) {
		return scoreStemmed
	}
	similarity, err := edlib.StringsSimilarity(q, n, edlib.JaroWinkler)
	if err == nil && float64(similarity) >= fuzzyThreshold {
		// Scale [threshold, 1] into (0, stemmed) so fuzzy never outranks
		// a lexical or stemmed hit.
		return float64(similarity) * scoreStemmed * 0.99
	}
	return 0
}

// searchByPattern reuses the structural catalog: each node matching the
// pattern contributes its own symbol or its nearest extractable ancestor.
func (a *Analyzer) searchByPattern(ctx context.Context, pattern string, files []string, kindFilter map[types.SymbolKind]bool, maxResults int) (*SearchResult, error) {
	predicate := astPredicate(pattern)
	result := &SearchResult{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		file, err := a.cache.ParsedFile(path)
		if err != nil {
			continue
		}
		result.FilesScanned++
		for _, match := range nodeMatches(file, predicate, 0, false) {
			node := program.NodeAt(file.Root(), match.Location.Position.Line, match.Location.Position.Character)
			record := nearestSymbol(file, node)
			if record == nil {
				continue
			}
			if len(kindFilter) > 0 && !kindFilter[record.Kind] {
				continue
			}
			result.TotalMatches++
			if maxResults <= 0 || len(result.Matches) < maxResults {
				result.Matches = append(result.Matches, SymbolMatch{Symbol: *record, Score: scoreExact})
			}
		}
	}
	return result, nil
}

func nearestSymbol(file *program.ParsedFile, node *tree_sitter.Node) *types.SymbolRecord {
	spec := file.Spec()
	for ; node != nil; node = node.Parent() {
		if _, ok := spec.SymbolKinds[node.Kind()]; ok {
			return ExtractSymbol(file, node, true)
		}
	}
	return nil
}
