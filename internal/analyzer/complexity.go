package analyzer

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// FunctionComplexity is the cyclomatic complexity of one function or
// method: 1 plus the count of branching constructs in its own body,
// excluding nested function bodies.
type FunctionComplexity struct {
	Name       string         `json:"name"`
	Complexity int            `json:"complexity"`
	Lines      int            `json:"lines"`
	Location   types.Location `json:"location"`
}

// Complexities computes per-function cyclomatic complexity for every
// function-like node in the file, in document order. Anonymous functions
// report under the name "<anonymous>".
func Complexities(file *program.ParsedFile) []FunctionComplexity {
	spec := file.Spec()
	var out []FunctionComplexity
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if !spec.FunctionKinds[node.Kind()] {
			return true
		}
		name := "<anonymous>"
		if nameNode := program.NameNode(node, spec); nameNode != nil {
			name = program.Text(nameNode, file.Content)
		}
		out = append(out, FunctionComplexity{
			Name:       name,
			Complexity: complexityOf(node, file),
			Lines:      int(node.EndPosition().Row-node.StartPosition().Row) + 1,
			Location:   program.LocationOf(file.Path, node),
		})
		return true
	})
	return out
}

// complexityOf counts branching constructs under node without descending
// into nested functions, so each function owns its own branches.
func complexityOf(fn *tree_sitter.Node, file *program.ParsedFile) int {
	spec := file.Spec()
	complexity := 1
	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child == nil {
				continue
			}
			if spec.FunctionKinds[child.Kind()] {
				continue
			}
			if spec.BranchKinds[child.Kind()] || program.IsLogicalBinary(child, file.Content) {
				complexity++
			}
			visit(child)
		}
	}
	visit(fn)
	return complexity
}

// FileComplexity aggregates a whole file: every class-like declaration and
// every function contributes its base count of 1, functions add their
// branches on top.
func FileComplexity(file *program.ParsedFile) int {
	spec := file.Spec()
	total := 0
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		switch spec.SymbolKinds[node.Kind()] {
		case types.KindClass, types.KindInterface, types.KindEnum:
			total++
		}
		return true
	})
	for _, fn := range Complexities(file) {
		total += fn.Complexity
	}
	return total
}
