package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// DependencyDirection selects which edges to report for a focal file.
type DependencyDirection string

const (
	DirectionImports DependencyDirection = "imports"
	DirectionExports DependencyDirection = "exports"
	DirectionBoth    DependencyDirection = "both"
)

// DependencyOptions controls graph construction.
type DependencyOptions struct {
	FilePath           string // empty means whole-project graph
	Direction          DependencyDirection
	IncludeNodeModules bool
	GroupByDirectory   bool
}

// DependencyGraph is the import graph over the scoped file set. Node IDs
// are workspace-relative paths for internal files and raw module
// specifiers for external ones.
type DependencyGraph struct {
	Nodes []types.DependencyNode `json:"nodes"`
	Edges []types.DependencyEdge `json:"edges"`
}

// AnalyzeDependencies builds the dependency graph. With a focal file,
// direction=imports keeps its outgoing edges, direction=exports keeps the
// files importing it, both keeps both; without a focal file the whole
// bounded project graph is returned.
func (a *Analyzer) AnalyzeDependencies(ctx context.Context, opts DependencyOptions) (*DependencyGraph, error) {
	done := a.cache.Acquire()
	defer done()

	if opts.Direction == "" {
		opts.Direction = DirectionBoth
	}

	var focal string
	if opts.FilePath != "" {
		abs, err := a.scope.Resolve(opts.FilePath)
		if err != nil {
			return nil, err
		}
		focal = a.nodeID(abs)
	}

	files, err := a.sourceFiles("", nil, nil)
	if err != nil {
		return nil, err
	}

	type edgeKey struct{ from, to string }
	edges := make(map[edgeKey]types.DependencyEdge)
	internal := make(map[string]string) // node ID -> absolute path

	results := forEachSource(ctx, a, files, func(_ context.Context, file *program.ParsedFile) ([]types.ImportInfo, error) {
		return Imports(file), nil
	})
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		fromID := a.nodeID(result.Path)
		internal[fromID] = result.Path
		for _, imp := range result.Value {
			toID, external := a.resolveSpecifier(result.Path, imp.ModuleSpecifier)
			if external && !opts.IncludeNodeModules {
				continue
			}
			key := edgeKey{fromID, toID}
			if _, ok := edges[key]; !ok {
				edges[key] = types.DependencyEdge{From: fromID, To: toID, IsTypeOnly: imp.IsTypeOnly}
			} else if !imp.IsTypeOnly {
				// A value import outweighs a type-only one on the same edge.
				edge := edges[key]
				edge.IsTypeOnly = false
				edges[key] = edge
			}
		}
	}

	graph := &DependencyGraph{}
	kept := make([]types.DependencyEdge, 0, len(edges))
	for _, edge := range edges {
		if focal != "" {
			keepImport := (opts.Direction == DirectionImports || opts.Direction == DirectionBoth) && edge.From == focal
			keepExport := (opts.Direction == DirectionExports || opts.Direction == DirectionBoth) && edge.To == focal
			if !keepImport && !keepExport {
				continue
			}
		}
		kept = append(kept, edge)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].From != kept[j].From {
			return kept[i].From < kept[j].From
		}
		return kept[i].To < kept[j].To
	})
	graph.Edges = kept

	if opts.GroupByDirectory {
		graph.groupByDirectory()
		internal = groupInternal(internal)
	}
	graph.buildNodes(internal)
	return graph, nil
}

// nodeID renders an absolute workspace path as a stable relative node ID.
func (a *Analyzer) nodeID(abs string) string {
	rel, err := filepath.Rel(a.scope.Root(), abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// resolveSpecifier maps an import specifier to a node ID. Relative
// specifiers resolve against the importing file and probe the supported
// extensions and index files; bare specifiers are external modules.
func (a *Analyzer) resolveSpecifier(fromAbs, specifier string) (id string, external bool) {
	if !strings.HasPrefix(specifier, ".") && !strings.HasPrefix(specifier, "/") {
		return specifier, true
	}
	base := filepath.Join(filepath.Dir(fromAbs), filepath.FromSlash(specifier))
	if resolved := probeFile(base); resolved != "" {
		return a.nodeID(resolved), false
	}
	return a.nodeID(base), false
}

func probeFile(base string) string {
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return base
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs"} {
		if candidate := base + ext; exists(candidate) {
			return candidate
		}
	}
	for _, index := range []string{"index.ts", "index.tsx", "index.js"} {
		if candidate := filepath.Join(base, index); exists(candidate) {
			return candidate
		}
	}
	return ""
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// groupByDirectory collapses file nodes into their containing directory,
// dropping self edges that grouping creates.
func (g *DependencyGraph) groupByDirectory() {
	groupID := func(id string) string {
		if !strings.Contains(id, "/") {
			return "."
		}
		if isExternalID(id) {
			return id
		}
		return filepath.ToSlash(filepath.Dir(filepath.FromSlash(id)))
	}
	type edgeKey struct{ from, to string }
	grouped := make(map[edgeKey]types.DependencyEdge)
	for _, edge := range g.Edges {
		from, to := groupID(edge.From), groupID(edge.To)
		if from == to {
			continue
		}
		key := edgeKey{from, to}
		if existing, ok := grouped[key]; !ok || !edge.IsTypeOnly {
			existing = types.DependencyEdge{From: from, To: to, IsTypeOnly: edge.IsTypeOnly && (!ok || existing.IsTypeOnly)}
			grouped[key] = existing
		}
	}
	g.Edges = g.Edges[:0]
	for _, edge := range grouped {
		g.Edges = append(g.Edges, edge)
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})
}

// groupInternal collapses the file-level internal map to its directory
// groups so grouped nodes keep their internal labeling.
func groupInternal(internal map[string]string) map[string]string {
	grouped := make(map[string]string, len(internal))
	for id, path := range internal {
		dir := "."
		if strings.Contains(id, "/") {
			dir = filepath.ToSlash(filepath.Dir(filepath.FromSlash(id)))
		}
		grouped[dir] = filepath.Dir(path)
	}
	return grouped
}

func isExternalID(id string) bool {
	return !strings.Contains(id, "/") && !strings.Contains(id, ".") ||
		strings.HasPrefix(id, "@")
}

// buildNodes derives the node list, with in/out degrees, from the kept
// edges plus the internal files seen during the scan.
func (g *DependencyGraph) buildNodes(internal map[string]string) {
	nodes := make(map[string]*types.DependencyNode)
	ensure := func(id string) *types.DependencyNode {
		if node, ok := nodes[id]; ok {
			return node
		}
		node := &types.DependencyNode{ID: id, Label: filepath.Base(id)}
		if path, ok := internal[id]; ok {
			node.File = path
		} else if _, lang := program.DetectLanguage(id); !lang {
			// Not a source path the scan produced: a bare module specifier.
			node.External = true
		}
		nodes[id] = node
		return node
	}
	for _, edge := range g.Edges {
		ensure(edge.From).OutDegree++
		ensure(edge.To).InDegree++
	}
	g.Nodes = make([]types.DependencyNode, 0, len(nodes))
	for _, node := range nodes {
		g.Nodes = append(g.Nodes, *node)
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
}

// Cycles finds import cycles via depth-first search, returning each cycle
// as the node path that closes it. Used by the architecture summary.
func (g *DependencyGraph) Cycles() [][]string {
	adjacency := make(map[string][]string)
	for _, edge := range g.Edges {
		adjacency[edge.From] = append(adjacency[edge.From], edge.To)
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)
	var cycles [][]string
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		stack = append(stack, id)
		for _, next := range adjacency[id] {
			switch state[next] {
			case unvisited:
				visit(next)
			case inStack:
				for i, entry := range stack {
					if entry == next {
						cycle := make([]string, len(stack)-i)
						copy(cycle, stack[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	ids := make([]string, 0, len(adjacency))
	for id := range adjacency {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}
