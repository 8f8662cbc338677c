package analyzer

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

const maxTypeSignature = 100

// ExtractSymbol produces the normalized symbol record for a declaration
// node, or nil when the node carries no resolvable symbol or is filtered
// as private. Privacy is the leading-underscore naming convention plus an
// explicit private modifier; extraction never mutates the AST.
func ExtractSymbol(file *program.ParsedFile, node *tree_sitter.Node, includePrivate bool) *types.SymbolRecord {
	spec := file.Spec()
	kind, ok := spec.SymbolKinds[node.Kind()]
	if !ok {
		return nil
	}
	nameNode := program.NameNode(node, spec)
	if nameNode == nil {
		return nil
	}
	name := program.Text(nameNode, file.Content)
	if name == "" {
		return nil
	}
	modifiers := modifiersOf(node, file.Content)
	if !includePrivate && isPrivate(name, modifiers) {
		return nil
	}

	record := &types.SymbolRecord{
		Name:          name,
		Kind:          kind,
		TypeSignature: typeSignature(node, file),
		Documentation: program.JSDocTags(program.DocCommentBefore(node, file.Content)),
		Modifiers:     modifiers,
		Location:      program.LocationOf(file.Path, node),
	}
	return record
}

// ExtractFile walks the whole tree and returns every extractable symbol in
// document order. Parameters are skipped (they resolve individually through
// position queries) and variables are reported only outside function bodies
// to keep file listings to the declarations that matter.
func ExtractFile(file *program.ParsedFile, includePrivate bool) []types.SymbolRecord {
	spec := file.Spec()
	var symbols []types.SymbolRecord
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		kind, ok := spec.SymbolKinds[node.Kind()]
		if !ok {
			return true
		}
		if kind == types.KindParameter {
			return true
		}
		if kind == types.KindVariable && insideFunction(node, spec) {
			return true
		}
		if record := ExtractSymbol(file, node, includePrivate); record != nil {
			symbols = append(symbols, *record)
		}
		return true
	})
	return symbols
}

// walk visits named nodes depth-first; fn returning false prunes the subtree.
func walk(node *tree_sitter.Node, fn func(*tree_sitter.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		walk(node.NamedChild(i), fn)
	}
}

func insideFunction(node *tree_sitter.Node, spec *program.Spec) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if spec.FunctionKinds[parent.Kind()] {
			return true
		}
	}
	return false
}

func isPrivate(name string, modifiers []types.Modifier) bool {
	if strings.HasPrefix(name, "_") {
		return true
	}
	for _, m := range modifiers {
		if m == types.ModPrivate {
			return true
		}
	}
	return false
}

// modifiersOf reads the declaration's modifier tokens. Keyword tokens carry
// their literal as the node kind; accessibility modifiers wrap theirs.
func modifiersOf(node *tree_sitter.Node, content []byte) []types.Modifier {
	var modifiers []types.Modifier
	add := func(m types.Modifier) {
		for _, existing := range modifiers {
			if existing == m {
				return
			}
		}
		modifiers = append(modifiers, m)
	}
	if node.Kind() == "abstract_class_declaration" {
		add(types.ModAbstract)
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "accessibility_modifier":
			switch program.Text(child, content) {
			case "public":
				add(types.ModPublic)
			case "private":
				add(types.ModPrivate)
			case "protected":
				add(types.ModProtected)
			}
		case "static":
			add(types.ModStatic)
		case "async":
			add(types.ModAsync)
		case "readonly":
			add(types.ModReadonly)
		case "abstract":
			add(types.ModAbstract)
		}
	}
	return modifiers
}

// typeSignature renders the declared type as text, elided past 100 chars.
// It is a textual projection only; no structured type object crosses the
// component boundary.
func typeSignature(node *tree_sitter.Node, file *program.ParsedFile) string {
	spec := file.Spec()
	var sig string
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		params := node.ChildByFieldName("parameters")
		sig = strings.TrimSpace(program.Text(params, file.Content) + program.Text(ret, file.Content))
	} else if typ := node.ChildByFieldName("type"); typ != nil {
		sig = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(program.Text(typ, file.Content)), ":"))
	} else if spec.FunctionKinds[node.Kind()] {
		sig = program.Text(node.ChildByFieldName("parameters"), file.Content)
	}
	return elide(sig, maxTypeSignature)
}

func elide(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
