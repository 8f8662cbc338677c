package program

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/types"
)

// Text returns the source text spanned by node.
func Text(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := int(node.StartByte()), int(node.EndByte())
	if start < 0 || end > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

// PositionOf converts a tree-sitter point to the 0-based wire position.
func PositionOf(p tree_sitter.Point) types.Position {
	return types.Position{Line: int(p.Row), Character: int(p.Column)}
}

// LocationOf builds a half-open Location for node inside file.
func LocationOf(path string, node *tree_sitter.Node) types.Location {
	end := PositionOf(node.EndPosition())
	return types.Location{
		File:        path,
		Position:    PositionOf(node.StartPosition()),
		EndPosition: &end,
	}
}

func pointBefore(a, b tree_sitter.Point) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Column < b.Column
}

// containsPoint reports whether node's half-open range covers p.
func containsPoint(node *tree_sitter.Node, p tree_sitter.Point) bool {
	return !pointBefore(p, node.StartPosition()) && pointBefore(p, node.EndPosition())
}

// NodeAt returns the innermost named node covering the 0-based line/character
// position, or nil when the position falls outside the tree.
func NodeAt(root *tree_sitter.Node, line, character int) *tree_sitter.Node {
	p := tree_sitter.Point{Row: uint(line), Column: uint(character)}
	if root == nil || !containsPoint(root, p) {
		return nil
	}
	node := root
	for {
		var next *tree_sitter.Node
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child != nil && containsPoint(child, p) {
				next = child
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

// FirstIdentifier returns node itself when it is an identifier for the
// language, otherwise its first identifier descendant in document order.
func FirstIdentifier(node *tree_sitter.Node, spec *Spec) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	if spec.IdentifierKinds[node.Kind()] {
		return node
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if found := FirstIdentifier(node.NamedChild(i), spec); found != nil {
			return found
		}
	}
	return nil
}

// NameNode locates the declared-name child of a declaration node. It prefers
// the grammar's "name" field and falls back to the declarator path used by
// C-family grammars, then to the first identifier child.
func NameNode(node *tree_sitter.Node, spec *Spec) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	if name := node.ChildByFieldName("name"); name != nil {
		if spec.IdentifierKinds[name.Kind()] {
			return name
		}
		return FirstIdentifier(name, spec)
	}
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		return FirstIdentifier(decl, spec)
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && spec.IdentifierKinds[child.Kind()] {
			return child
		}
	}
	return nil
}

// IsLogicalBinary reports whether node is a boolean-logic binary expression
// (&&, ||, ?? and Python's and/or). These count as branching constructs for
// cyclomatic complexity.
func IsLogicalBinary(node *tree_sitter.Node, content []byte) bool {
	switch node.Kind() {
	case "boolean_operator": // python
		return true
	case "binary_expression", "binary_operator":
		if op := node.ChildByFieldName("operator"); op != nil {
			switch Text(op, content) {
			case "&&", "||", "??", "and", "or":
				return true
			}
		}
	}
	return false
}

// errorNodes collects ERROR/MISSING nodes up to max, depth-first.
func errorNodes(node *tree_sitter.Node, max int, out *[]*tree_sitter.Node) {
	if node == nil || len(*out) >= max {
		return
	}
	if node.IsError() || node.IsMissing() {
		*out = append(*out, node)
		return
	}
	if !node.HasError() {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		errorNodes(node.Child(i), max, out)
		if len(*out) >= max {
			return
		}
	}
}

// DocCommentBefore gathers the contiguous run of comment siblings directly
// above node and returns their text joined by newlines, comment markers
// stripped. Returns "" when no documentation precedes the node.
func DocCommentBefore(node *tree_sitter.Node, content []byte) string {
	// export_statement and decorated definitions wrap the declaration; the
	// doc comment sits above the wrapper.
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		kind := parent.Kind()
		if kind == "export_statement" || kind == "decorated_definition" {
			node = parent
			continue
		}
		break
	}

	var comments []string
	for prev := node.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if !strings.Contains(prev.Kind(), "comment") {
			break
		}
		// A blank line between the comment and the declaration breaks the
		// attachment.
		if node.StartPosition().Row-prev.EndPosition().Row > 2 {
			break
		}
		comments = append([]string{Text(prev, content)}, comments...)
		node = prev
	}
	if len(comments) == 0 {
		return ""
	}
	return strings.Join(comments, "\n")
}

// JSDocTags extracts @tag entries from a doc comment as "@tag text" lines,
// newline-joined. Text with no tags returns "".
func JSDocTags(comment string) string {
	var tags []string
	var current *strings.Builder
	for _, raw := range strings.Split(comment, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimPrefix(line, "/**")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if strings.HasPrefix(line, "@") {
			if current != nil {
				tags = append(tags, strings.TrimSpace(current.String()))
			}
			current = &strings.Builder{}
			name, rest, _ := strings.Cut(line[1:], " ")
			current.WriteString("@" + name + " " + strings.TrimSpace(rest))
		} else if current != nil && line != "" {
			current.WriteString(" " + line)
		}
	}
	if current != nil {
		tags = append(tags, strings.TrimSpace(current.String()))
	}
	if len(tags) == 0 {
		return ""
	}
	return strings.Join(tags, "\n")
}
