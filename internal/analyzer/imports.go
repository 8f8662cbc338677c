package analyzer

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// Imports lists the file's import declarations in document order. Symbol
// lists preserve declaration order. For secondary languages only the module
// specifier is populated.
func Imports(file *program.ParsedFile) []types.ImportInfo {
	spec := file.Spec()
	var imports []types.ImportInfo
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if !spec.ImportKinds[node.Kind()] {
			return true
		}
		imports = append(imports, importInfo(file, node))
		return false
	})
	return imports
}

func importInfo(file *program.ParsedFile, node *tree_sitter.Node) types.ImportInfo {
	info := types.ImportInfo{
		ModuleSpecifier: moduleSpecifier(file, node),
		Location:        program.LocationOf(file.Path, node),
	}
	if !program.IsPrimary(file.Language) {
		return info
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "type":
			info.IsTypeOnly = true
		case "import_clause":
			info.Symbols = importedNames(file, child)
		}
	}
	return info
}

// importedNames flattens an import clause: default import, namespace
// import, and named specifiers, in source order.
func importedNames(file *program.ParsedFile, clause *tree_sitter.Node) []string {
	var names []string
	walk(clause, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "identifier":
			names = append(names, program.Text(node, file.Content))
			return false
		case "import_specifier":
			// Aliased imports bind the local name, not the exported one.
			target := node.ChildByFieldName("alias")
			if target == nil {
				target = node.ChildByFieldName("name")
			}
			if target != nil {
				names = append(names, program.Text(target, file.Content))
			}
			return false
		}
		return true
	})
	return names
}

// moduleSpecifier extracts the imported module path: the string literal for
// TS/JS/Go, the dotted module name for Python and Java style imports, the
// raw clause text as a last resort.
func moduleSpecifier(file *program.ParsedFile, node *tree_sitter.Node) string {
	if source := node.ChildByFieldName("source"); source != nil {
		return unquote(program.Text(source, file.Content))
	}
	if path := node.ChildByFieldName("path"); path != nil {
		return unquote(program.Text(path, file.Content))
	}
	var specifier string
	walk(node, func(child *tree_sitter.Node) bool {
		if specifier != "" {
			return false
		}
		switch child.Kind() {
		case "string", "interpreted_string_literal", "string_literal", "string_fragment", "system_lib_string":
			specifier = unquote(program.Text(child, file.Content))
			return false
		case "dotted_name", "scoped_identifier", "qualified_name", "namespace_name":
			specifier = program.Text(child, file.Content)
			return false
		}
		return true
	})
	if specifier == "" {
		specifier = strings.TrimSpace(program.Text(node, file.Content))
	}
	return specifier
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`<>")
}

// Exports lists the file's exported names. Only primary languages carry
// explicit export statements; other languages return nil.
func Exports(file *program.ParsedFile) []types.ExportInfo {
	if !program.IsPrimary(file.Language) {
		return nil
	}
	spec := file.Spec()
	var exports []types.ExportInfo
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if node.Kind() != "export_statement" {
			return true
		}
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			if kind, ok := spec.SymbolKinds[decl.Kind()]; ok {
				if nameNode := program.NameNode(decl, spec); nameNode != nil {
					exports = append(exports, types.ExportInfo{
						Name:     program.Text(nameNode, file.Content),
						Kind:     kind,
						Location: program.LocationOf(file.Path, decl),
					})
				}
			} else if decl.Kind() == "lexical_declaration" || decl.Kind() == "variable_declaration" {
				for i := uint(0); i < decl.NamedChildCount(); i++ {
					declarator := decl.NamedChild(i)
					if declarator == nil || declarator.Kind() != "variable_declarator" {
						continue
					}
					if nameNode := declarator.ChildByFieldName("name"); nameNode != nil {
						exports = append(exports, types.ExportInfo{
							Name:     program.Text(nameNode, file.Content),
							Kind:     types.KindVariable,
							Location: program.LocationOf(file.Path, declarator),
						})
					}
				}
			}
			return false
		}
		// export { a, b as c } and export default expr
		walk(node, func(child *tree_sitter.Node) bool {
			switch child.Kind() {
			case "export_specifier":
				target := child.ChildByFieldName("alias")
				if target == nil {
					target = child.ChildByFieldName("name")
				}
				if target != nil {
					exports = append(exports, types.ExportInfo{
						Name:     program.Text(target, file.Content),
						Kind:     types.KindVariable,
						Location: program.LocationOf(file.Path, child),
					})
				}
				return false
			}
			return true
		})
		return false
	})
	return exports
}
