package analyzer

import (
	"context"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// ContextType selects the extraction scope around the focal position.
type ContextType string

const (
	ContextFunction ContextType = "function"
	ContextClass    ContextType = "class"
	ContextModule   ContextType = "module"
	ContextRelated  ContextType = "related"
)

// ContextOptions controls context assembly.
type ContextOptions struct {
	Type             ContextType
	MaxTokens        int
	IncludeImports   bool
	IncludeTypes     bool
	FollowReferences bool
}

// ContextResult is a token-bounded textual context. TokenCount is the
// length/4 estimate, an approximation rather than an exact tokenizer.
type ContextResult struct {
	MainContext string   `json:"mainContext"`
	Imports     []string `json:"imports,omitempty"`
	TokenCount  int      `json:"tokenCount"`
	Truncated   bool     `json:"truncated"`
}

const (
	defaultMaxTokens = 2000
	truncationMarker = "... [truncated]"
	maxRelatedRefs   = 10
)

// ExtractContext assembles context text around a position, truncating
// deterministically when the token estimate exceeds the budget.
func (a *Analyzer) ExtractContext(ctx context.Context, path string, line, character int, opts ContextOptions) (*ContextResult, error) {
	done := a.cache.Acquire()
	defer done()

	file, err := a.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	var text string
	switch opts.Type {
	case ContextModule:
		text = moduleContext(file)
	case ContextRelated:
		text, err = a.relatedContext(ctx, file, line, character, opts)
	default:
		text, err = declarationContext(file, line, character, opts)
	}
	if err != nil {
		return nil, err
	}

	result := &ContextResult{MainContext: text}
	if opts.IncludeImports {
		for _, imp := range Imports(file) {
			result.Imports = append(result.Imports, imp.ModuleSpecifier)
		}
	}
	result.MainContext, result.Truncated = truncateToBudget(result.MainContext, opts.MaxTokens)
	result.TokenCount = estimateTokens(result.MainContext)
	return result, nil
}

// estimateTokens approximates tokens as character length over four.
func estimateTokens(text string) int {
	return len(text) / 4
}

// truncateToBudget shortens text proportionally when its token estimate
// exceeds the budget and appends an explicit marker.
func truncateToBudget(text string, maxTokens int) (string, bool) {
	estimate := estimateTokens(text)
	if estimate <= maxTokens {
		return text, false
	}
	newLen := len(text) * maxTokens / estimate
	if newLen < 0 {
		newLen = 0
	}
	return text[:newLen] + truncationMarker, true
}

// declarationContext ascends from the focal node to the nearest enclosing
// function or class declaration and renders it with its documentation.
func declarationContext(file *program.ParsedFile, line, character int, opts ContextOptions) (string, error) {
	focal := program.NodeAt(file.Root(), line, character)
	if focal == nil {
		return "", scaerr.NewSymbolNotFound("extract-context", file.Path, line, character)
	}
	decl := enclosingDeclaration(file, focal, opts.Type)
	if decl == nil {
		return "", scaerr.NewSymbolNotFound("extract-context", file.Path, line, character)
	}

	var b strings.Builder
	if doc := program.DocCommentBefore(decl, file.Content); doc != "" {
		b.WriteString(doc)
		b.WriteByte('\n')
	}
	b.WriteString(program.Text(decl, file.Content))
	if opts.IncludeTypes {
		if block := typeCommentBlock(file, decl); block != "" {
			b.WriteByte('\n')
			b.WriteString(block)
		}
	}
	return b.String(), nil
}

func enclosingDeclaration(file *program.ParsedFile, focal *tree_sitter.Node, contextType ContextType) *tree_sitter.Node {
	spec := file.Spec()
	wanted := func(node *tree_sitter.Node) bool {
		if contextType == ContextClass {
			return spec.SymbolKinds[node.Kind()] == types.KindClass
		}
		return spec.FunctionKinds[node.Kind()]
	}
	for node := focal; node != nil; node = node.Parent() {
		if wanted(node) {
			return node
		}
	}
	return nil
}

// typeCommentBlock renders parameter and return types as a trailing
// comment, the lightweight substitute for a type-checker query.
func typeCommentBlock(file *program.ParsedFile, decl *tree_sitter.Node) string {
	params := decl.ChildByFieldName("parameters")
	ret := decl.ChildByFieldName("return_type")
	if params == nil && ret == nil {
		return ""
	}
	var lines []string
	lines = append(lines, "// Types:")
	if params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			param := params.NamedChild(i)
			if param == nil {
				continue
			}
			lines = append(lines, "//   param "+strings.TrimSpace(program.Text(param, file.Content)))
		}
	}
	if ret != nil {
		retText := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(program.Text(ret, file.Content)), ":"))
		lines = append(lines, "//   returns "+retText)
	}
	return strings.Join(lines, "\n")
}

// moduleContext renders the file header: leading doc comment, imports,
// exports, and top-level declaration signatures without bodies.
func moduleContext(file *program.ParsedFile) string {
	var b strings.Builder
	if doc := fileDocComment(file); doc != "" {
		b.WriteString(doc)
		b.WriteString("\n\n")
	}
	for _, imp := range Imports(file) {
		if len(imp.Symbols) > 0 {
			fmt.Fprintf(&b, "import { %s } from %q\n", strings.Join(imp.Symbols, ", "), imp.ModuleSpecifier)
		} else {
			fmt.Fprintf(&b, "import %q\n", imp.ModuleSpecifier)
		}
	}
	if exports := Exports(file); len(exports) > 0 {
		b.WriteByte('\n')
		for _, exp := range exports {
			fmt.Fprintf(&b, "export %s %s\n", exp.Kind, exp.Name)
		}
	}
	b.WriteByte('\n')
	spec := file.Spec()
	root := file.Root()
	if root == nil {
		return b.String()
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		node := root.NamedChild(i)
		if node == nil {
			continue
		}
		if node.Kind() == "export_statement" {
			if decl := node.ChildByFieldName("declaration"); decl != nil {
				node = decl
			}
		}
		switch spec.SymbolKinds[node.Kind()] {
		case types.KindClass, types.KindInterface, types.KindFunction, types.KindType, types.KindEnum:
			b.WriteString(signatureLine(file, node))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// signatureLine is the declaration text up to its body.
func signatureLine(file *program.ParsedFile, node *tree_sitter.Node) string {
	text := program.Text(node, file.Content)
	if body := node.ChildByFieldName("body"); body != nil {
		head := int(body.StartByte() - node.StartByte())
		if head > 0 && head <= len(text) {
			text = strings.TrimSpace(text[:head])
		}
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return text
}

func fileDocComment(file *program.ParsedFile) string {
	root := file.Root()
	if root == nil || root.NamedChildCount() == 0 {
		return ""
	}
	first := root.NamedChild(0)
	if first == nil || !strings.Contains(first.Kind(), "comment") {
		return ""
	}
	return program.Text(first, file.Content)
}

// relatedContext renders the focal declaration plus its relationship names
// and, when requested, a deduplicated file:line reference list capped at
// ten entries.
func (a *Analyzer) relatedContext(ctx context.Context, file *program.ParsedFile, line, character int, opts ContextOptions) (string, error) {
	focal := program.NodeAt(file.Root(), line, character)
	if focal == nil {
		return "", scaerr.NewSymbolNotFound("extract-context", file.Path, line, character)
	}
	spec := file.Spec()
	decl := focal
	for decl != nil {
		if _, ok := spec.SymbolKinds[decl.Kind()]; ok {
			break
		}
		decl = decl.Parent()
	}
	if decl == nil {
		return "", scaerr.NewSymbolNotFound("extract-context", file.Path, line, character)
	}

	var b strings.Builder
	b.WriteString(program.Text(decl, file.Content))

	extends, implements := Heritage(file, decl)
	if len(extends) > 0 {
		b.WriteString("\n\n// extends: " + joinRefNames(extends))
	}
	if len(implements) > 0 {
		b.WriteString("\n// implements: " + joinRefNames(implements))
	}

	if opts.FollowReferences {
		nameNode := program.NameNode(decl, spec)
		if nameNode != nil {
			refs, err := a.FindReferences(ctx, file.Path, int(nameNode.StartPosition().Row), int(nameNode.StartPosition().Column),
				ReferenceOptions{Scope: ScopeProject})
			if err == nil && len(refs.References) > 0 {
				b.WriteString("\n\n// referenced at:")
				seen := make(map[string]bool)
				listed := 0
				for _, ref := range refs.References {
					loc := fmt.Sprintf("%s:%d", ref.Location.File, ref.Location.Position.Line)
					if seen[loc] {
						continue
					}
					seen[loc] = true
					if listed >= maxRelatedRefs {
						continue
					}
					b.WriteString("\n//   " + loc)
					listed++
				}
				if extra := len(seen) - listed; extra > 0 {
					fmt.Fprintf(&b, "\n//   (+%d more)", extra)
				}
			}
		}
	}
	return b.String(), nil
}

func joinRefNames(refs []types.SymbolReference) string {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name
	}
	return strings.Join(names, ", ")
}
