package analyzer

import (
	"context"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// ReferenceScope selects file-local or bounded project-wide search.
type ReferenceScope string

const (
	ScopeFile    ReferenceScope = "file"
	ScopeProject ReferenceScope = "project"
)

// ReferenceResult reports the classified occurrences of one symbol.
// FilesScanned against TotalReferences tells callers when the project scan
// was truncated by the file cap.
type ReferenceResult struct {
	Symbol          types.SymbolReference `json:"symbol"`
	References      []types.Reference     `json:"references"`
	TotalReferences int                   `json:"totalReferences"`
	FilesScanned    int                   `json:"filesScanned"`
}

// ReferenceOptions controls a find-references request.
type ReferenceOptions struct {
	IncludeDeclaration bool
	Scope              ReferenceScope
	MaxResults         int
}

// FindReferences resolves the identifier at a position and enumerates its
// syntactic occurrences. Project scope preloads a bounded working set; the
// search is textual per identifier name, a documented approximation rather
// than semantic resolution.
func (a *Analyzer) FindReferences(ctx context.Context, path string, line, character int, opts ReferenceOptions) (*ReferenceResult, error) {
	done := a.cache.Acquire()
	defer done()

	file, err := a.Load(path)
	if err != nil {
		return nil, err
	}
	ident := identifierAt(file, line, character)
	if ident == nil {
		return nil, scaerr.NewSymbolNotFound("find-references", file.Path, line, character)
	}
	name := program.Text(ident, file.Content)

	result := &ReferenceResult{
		Symbol: types.SymbolReference{
			Name:     name,
			Kind:     symbolKindAround(file, ident),
			Location: program.LocationOf(file.Path, ident),
		},
	}

	targets := []*program.ParsedFile{file}
	if opts.Scope == ScopeProject {
		files, err := a.workingSetFiles(ctx)
		if err == nil && len(files) > 0 {
			targets = files
			if !containsFile(files, file.Path) {
				targets = append(targets, file)
			}
		}
	}

	for _, target := range targets {
		result.FilesScanned++
		refs := referencesIn(target, name)
		for _, ref := range refs {
			if ref.IsDeclaration && !opts.IncludeDeclaration {
				continue
			}
			result.TotalReferences++
			if opts.MaxResults <= 0 || len(result.References) < opts.MaxResults {
				result.References = append(result.References, ref)
			}
		}
	}
	return result, nil
}

// identifierAt resolves the innermost node at a position, descending to the
// first identifier child when the node is not itself one.
func identifierAt(file *program.ParsedFile, line, character int) *tree_sitter.Node {
	node := program.NodeAt(file.Root(), line, character)
	if node == nil {
		return nil
	}
	return program.FirstIdentifier(node, file.Spec())
}

// symbolKindAround derives the kind of the declaration enclosing an
// identifier, defaulting to variable for plain uses.
func symbolKindAround(file *program.ParsedFile, ident *tree_sitter.Node) types.SymbolKind {
	spec := file.Spec()
	for parent := ident.Parent(); parent != nil; parent = parent.Parent() {
		if kind, ok := spec.SymbolKinds[parent.Kind()]; ok {
			return kind
		}
	}
	return types.KindVariable
}

// referencesIn finds every identifier occurrence of name in the file and
// classifies each by its immediate syntactic parent.
func referencesIn(file *program.ParsedFile, name string) []types.Reference {
	spec := file.Spec()
	var refs []types.Reference
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if !spec.IdentifierKinds[node.Kind()] || program.Text(node, file.Content) != name {
			return true
		}
		refs = append(refs, types.Reference{
			Location:      program.LocationOf(file.Path, node),
			Kind:          classifyReference(node, spec),
			LineText:      file.Line(int(node.StartPosition().Row)),
			IsDeclaration: isDeclarationName(node, spec),
		})
		return true
	})
	return refs
}

// classifyReference applies the parent-kind rules: call when the node is
// the callee, import inside import clauses, write on the left side of an
// assignment, read otherwise.
func classifyReference(node *tree_sitter.Node, spec *program.Spec) types.ReferenceKind {
	parent := node.Parent()
	if parent == nil {
		return types.RefRead
	}
	switch parent.Kind() {
	case "call_expression", "new_expression":
		if fn := parent.ChildByFieldName("function"); fn != nil && sameNode(fn, node) {
			return types.RefCall
		}
		if ctor := parent.ChildByFieldName("constructor"); ctor != nil && sameNode(ctor, node) {
			return types.RefCall
		}
	case "member_expression":
		// obj.method() classifies the property as the call target.
		if grand := parent.Parent(); grand != nil && grand.Kind() == "call_expression" {
			if fn := grand.ChildByFieldName("function"); fn != nil && sameNode(fn, parent) {
				if prop := parent.ChildByFieldName("property"); prop != nil && sameNode(prop, node) {
					return types.RefCall
				}
			}
		}
	case "import_specifier", "import_clause", "namespace_import", "import_statement":
		return types.RefImport
	case "assignment_expression", "augmented_assignment_expression":
		if left := parent.ChildByFieldName("left"); left != nil && sameNode(left, node) {
			return types.RefWrite
		}
	}
	if parent.Kind() == "import_specifier" || parentOfKind(node, spec, "import_statement", 3) {
		return types.RefImport
	}
	return types.RefRead
}

func parentOfKind(node *tree_sitter.Node, spec *program.Spec, kind string, maxUp int) bool {
	parent := node.Parent()
	for i := 0; parent != nil && i < maxUp; i++ {
		if spec.ImportKinds[parent.Kind()] || parent.Kind() == kind {
			return true
		}
		parent = parent.Parent()
	}
	return false
}

// isDeclarationName reports whether the identifier is the declared name of
// its parent declaration node.
func isDeclarationName(node *tree_sitter.Node, spec *program.Spec) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	if _, ok := spec.SymbolKinds[parent.Kind()]; !ok {
		return false
	}
	name := program.NameNode(parent, spec)
	return name != nil && sameNode(name, node)
}

func sameNode(a, b *tree_sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func containsFile(files []*program.ParsedFile, path string) bool {
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}
