package analyzer

import (
	"context"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// Heritage returns the extends and implements reference lists of a class
// or interface declaration. Implements is populated only for classes;
// interfaces put their whole extends list under extends.
func Heritage(file *program.ParsedFile, node *tree_sitter.Node) (extends, implements []types.SymbolReference) {
	collect := func(clause *tree_sitter.Node, out *[]types.SymbolReference) {
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			child := clause.NamedChild(i)
			if child == nil || child.Kind() == "type_arguments" {
				continue
			}
			name := baseTypeName(file, child)
			if name == "" {
				continue
			}
			*out = append(*out, types.SymbolReference{
				Name:     name,
				Kind:     types.KindType,
				Location: program.LocationOf(file.Path, child),
			})
		}
	}
	walk(node, func(child *tree_sitter.Node) bool {
		switch child.Kind() {
		case "extends_clause", "extends_type_clause":
			collect(child, &extends)
			return false
		case "implements_clause":
			collect(child, &implements)
			return false
		case "class_body", "interface_body":
			return false
		}
		return true
	})
	return extends, implements
}

// baseTypeName reduces a heritage entry (possibly generic or qualified) to
// its bare type name.
func baseTypeName(file *program.ParsedFile, node *tree_sitter.Node) string {
	switch node.Kind() {
	case "identifier", "type_identifier":
		return program.Text(node, file.Content)
	case "generic_type":
		return baseTypeName(file, node.ChildByFieldName("name"))
	case "member_expression", "nested_type_identifier":
		// Qualified names keep the last segment.
		if prop := node.ChildByFieldName("property"); prop != nil {
			return program.Text(prop, file.Content)
		}
		if name := node.ChildByFieldName("name"); name != nil {
			return program.Text(name, file.Content)
		}
	}
	if ident := program.FirstIdentifier(node, file.Spec()); ident != nil {
		return program.Text(ident, file.Content)
	}
	return ""
}

// HierarchyDirection selects which side of the type hierarchy to walk.
type HierarchyDirection string

const (
	HierarchyAncestors   HierarchyDirection = "ancestors"
	HierarchyDescendants HierarchyDirection = "descendants"
	HierarchyBoth        HierarchyDirection = "both"
)

// typeDecl is one class/interface declaration in the hierarchy index.
type typeDecl struct {
	name    string
	file    *program.ParsedFile
	node    *tree_sitter.Node
	extends []string
}

// hierarchyIndex maps type names to their declarations across a bounded
// file set. Descendant lookups need the whole index; ancestor lookups use
// it for name resolution.
type hierarchyIndex struct {
	byName map[string][]*typeDecl
	all    []*typeDecl
}

func buildHierarchyIndex(files []*program.ParsedFile) *hierarchyIndex {
	idx := &hierarchyIndex{byName: make(map[string][]*typeDecl)}
	for _, file := range files {
		if !program.IsPrimary(file.Language) {
			continue
		}
		spec := file.Spec()
		walk(file.Root(), func(node *tree_sitter.Node) bool {
			switch spec.SymbolKinds[node.Kind()] {
			case types.KindClass, types.KindInterface:
			default:
				return true
			}
			nameNode := program.NameNode(node, spec)
			if nameNode == nil {
				return true
			}
			extends, implements := Heritage(file, node)
			bases := make([]string, 0, len(extends)+len(implements))
			for _, ref := range extends {
				bases = append(bases, ref.Name)
			}
			for _, ref := range implements {
				bases = append(bases, ref.Name)
			}
			decl := &typeDecl{
				name:    program.Text(nameNode, file.Content),
				file:    file,
				node:    node,
				extends: bases,
			}
			idx.byName[decl.name] = append(idx.byName[decl.name], decl)
			idx.all = append(idx.all, decl)
			return true
		})
	}
	return idx
}

// Hierarchy walks the type hierarchy around the named type, bounded by
// maxDepth and a visited-name set so cyclic and diamond hierarchies
// terminate. Descendants come from a bounded whole-working-set scan; the
// file cap makes this a documented approximation.
func (a *Analyzer) Hierarchy(ctx context.Context, typeName string, direction HierarchyDirection, maxDepth int) (*types.Relationships, error) {
	done := a.cache.Acquire()
	defer done()

	if maxDepth <= 0 {
		maxDepth = 2
	}
	files, err := a.workingSetFiles(ctx)
	if err != nil {
		return nil, err
	}
	idx := buildHierarchyIndex(files)

	rel := &types.Relationships{}
	if direction == HierarchyAncestors || direction == HierarchyBoth {
		visited := map[string]bool{typeName: true}
		idx.ancestors(typeName, maxDepth, visited, &rel.Extends)
	}
	if direction == HierarchyDescendants || direction == HierarchyBoth {
		visited := map[string]bool{typeName: true}
		idx.descendants(typeName, maxDepth, visited, &rel.UsedBy)
	}
	return rel, nil
}

func (idx *hierarchyIndex) ancestors(name string, depth int, visited map[string]bool, out *[]types.SymbolReference) {
	if depth == 0 {
		return
	}
	for _, decl := range idx.byName[name] {
		for _, base := range decl.extends {
			if visited[base] {
				continue
			}
			visited[base] = true
			ref := types.SymbolReference{Name: base, Kind: types.KindType}
			if baseDecls := idx.byName[base]; len(baseDecls) > 0 {
				ref.Location = program.LocationOf(baseDecls[0].file.Path, baseDecls[0].node)
			}
			*out = append(*out, ref)
			idx.ancestors(base, depth-1, visited, out)
		}
	}
}

func (idx *hierarchyIndex) descendants(name string, depth int, visited map[string]bool, out *[]types.SymbolReference) {
	if depth == 0 {
		return
	}
	for _, decl := range idx.all {
		for _, base := range decl.extends {
			if base != name || visited[decl.name] {
				continue
			}
			visited[decl.name] = true
			*out = append(*out, types.SymbolReference{
				Name:     decl.name,
				Kind:     types.KindType,
				Location: program.LocationOf(decl.file.Path, decl.node),
			})
			idx.descendants(decl.name, depth-1, visited, out)
		}
	}
}

// workingSetFiles loads up to MaxProjectFiles source files, preferring the
// paths already in the parsed-file cache and topping up from a workspace
// walk.
func (a *Analyzer) workingSetFiles(ctx context.Context) ([]*program.ParsedFile, error) {
	max := a.cfg.Performance.MaxProjectFiles
	seen := make(map[string]bool)
	var files []*program.ParsedFile

	for _, path := range a.cache.WorkingSet() {
		if len(files) >= max {
			return files, nil
		}
		parsed, err := a.cache.ParsedFile(path)
		if err != nil {
			continue
		}
		seen[path] = true
		files = append(files, parsed)
	}

	paths, err := a.sourceFiles("", nil, nil)
	if err != nil {
		return files, err
	}
	for _, path := range paths {
		if len(files) >= max {
			break
		}
		if seen[path] {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		parsed, err := a.cache.ParsedFile(path)
		if err != nil {
			continue
		}
		files = append(files, parsed)
	}
	return files, nil
}
