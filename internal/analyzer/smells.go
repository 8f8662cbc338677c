package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// SmellThresholds parameterize the detectors. Zero values fall back to the
// defaults.
type SmellThresholds struct {
	Complexity   int `json:"complexity"`
	FileSize     int `json:"fileSize"`
	FunctionSize int `json:"functionSize"`
}

// DefaultSmellThresholds mirrors the documented detector defaults.
func DefaultSmellThresholds() SmellThresholds {
	return SmellThresholds{Complexity: 10, FileSize: 300, FunctionSize: 50}
}

func (t SmellThresholds) normalized() SmellThresholds {
	defaults := DefaultSmellThresholds()
	if t.Complexity <= 0 {
		t.Complexity = defaults.Complexity
	}
	if t.FileSize <= 0 {
		t.FileSize = defaults.FileSize
	}
	if t.FunctionSize <= 0 {
		t.FunctionSize = defaults.FunctionSize
	}
	return t
}

// Coupling thresholds are fixed, not configurable.
const (
	importsMedium    = 15
	importsHigh      = 25
	ctorParamsMedium = 5
	ctorParamsHigh   = 8
)

// DetectSmells runs every requested detector over one parsed file and
// returns findings sorted by severity, high first. An empty category list
// runs all detectors. Duplication is a recognized category with no
// cross-file implementation; it yields no findings.
func DetectSmells(file *program.ParsedFile, categories []types.SmellCategory, thresholds SmellThresholds) []types.CodeSmellFinding {
	thresholds = thresholds.normalized()
	enabled := categorySet(categories)

	var findings []types.CodeSmellFinding
	if enabled[types.SmellComplexity] {
		findings = append(findings, detectComplexity(file, thresholds)...)
	}
	if enabled[types.SmellNaming] {
		findings = append(findings, detectNaming(file)...)
	}
	if enabled[types.SmellUnusedCode] {
		findings = append(findings, detectUnused(file)...)
	}
	if enabled[types.SmellAsyncIssues] && program.IsPrimary(file.Language) {
		findings = append(findings, detectAsyncIssues(file)...)
	}
	if enabled[types.SmellCoupling] {
		findings = append(findings, detectCoupling(file)...)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	return findings
}

// DetectSmells runs the detectors over one file, or sweeps the bounded
// workspace set when filePath is empty. Files that fail to parse are
// omitted from the sweep; findings are re-sorted after aggregation.
func (a *Analyzer) DetectSmells(ctx context.Context, filePath string, categories []types.SmellCategory, thresholds SmellThresholds) ([]types.CodeSmellFinding, error) {
	done := a.cache.Acquire()
	defer done()

	if filePath != "" {
		file, err := a.Load(filePath)
		if err != nil {
			return nil, err
		}
		return DetectSmells(file, categories, thresholds), nil
	}

	files, err := a.sourceFiles("", nil, nil)
	if err != nil {
		return nil, err
	}
	results := forEachSource(ctx, a, files, func(_ context.Context, file *program.ParsedFile) ([]types.CodeSmellFinding, error) {
		return DetectSmells(file, categories, thresholds), nil
	})
	var findings []types.CodeSmellFinding
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		findings = append(findings, result.Value...)
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	return findings, nil
}

func categorySet(categories []types.SmellCategory) map[types.SmellCategory]bool {
	if len(categories) == 0 {
		return map[types.SmellCategory]bool{
			types.SmellComplexity:  true,
			types.SmellDuplication: true,
			types.SmellCoupling:    true,
			types.SmellNaming:      true,
			types.SmellUnusedCode:  true,
			types.SmellAsyncIssues: true,
		}
	}
	enabled := make(map[types.SmellCategory]bool, len(categories))
	for _, c := range categories {
		enabled[c] = true
	}
	return enabled
}

// severityAbove applies the doubling rule: above threshold is medium, at
// or above twice the threshold is high, at or below produces nothing.
func severityAbove(value, threshold int) (types.Severity, bool) {
	switch {
	case value >= 2*threshold:
		return types.SeverityHigh, true
	case value > threshold:
		return types.SeverityMedium, true
	default:
		return "", false
	}
}

func detectComplexity(file *program.ParsedFile, thresholds SmellThresholds) []types.CodeSmellFinding {
	var findings []types.CodeSmellFinding
	for _, fn := range Complexities(file) {
		if severity, ok := severityAbove(fn.Complexity, thresholds.Complexity); ok {
			findings = append(findings, types.CodeSmellFinding{
				Category:   types.SmellComplexity,
				Severity:   severity,
				Location:   fn.Location,
				Message:    fmt.Sprintf("%s has cyclomatic complexity %d (threshold %d)", fn.Name, fn.Complexity, thresholds.Complexity),
				Suggestion: "Split branching logic into smaller functions",
			})
		}
		if severity, ok := severityAbove(fn.Lines, thresholds.FunctionSize); ok {
			findings = append(findings, types.CodeSmellFinding{
				Category:   types.SmellComplexity,
				Severity:   severity,
				Location:   fn.Location,
				Message:    fmt.Sprintf("%s spans %d lines (threshold %d)", fn.Name, fn.Lines, thresholds.FunctionSize),
				Suggestion: "Extract cohesive blocks into helpers",
			})
		}
	}
	if severity, ok := severityAbove(len(file.Lines), thresholds.FileSize); ok {
		findings = append(findings, types.CodeSmellFinding{
			Category:   types.SmellComplexity,
			Severity:   severity,
			Location:   types.Location{File: file.Path, Position: types.Position{}},
			Message:    fmt.Sprintf("file spans %d lines (threshold %d)", len(file.Lines), thresholds.FileSize),
			Suggestion: "Split the file along responsibility boundaries",
		})
	}
	return findings
}

// nameDenylist holds non-descriptive names flagged regardless of length.
var nameDenylist = map[string]bool{
	"temp": true, "tmp": true, "data": true, "obj": true, "arr": true,
	"val": true, "var": true, "foo": true, "bar": true, "test": true,
}

// verbPrefixes is the fixed allowlist for function and method names.
var verbPrefixes = []string{
	"get", "set", "is", "has", "can", "should", "will", "do", "make",
	"create", "build", "init", "handle", "process", "compute", "find",
	"fetch", "load", "save", "read", "write", "update", "delete", "remove",
	"add", "render", "parse", "format", "validate", "check", "apply",
	"run", "start", "stop", "reset", "clear", "emit", "to", "ensure",
	"resolve", "register", "extract", "analyze", "detect", "collect",
	"constructor", "main",
}

func detectNaming(file *program.ParsedFile) []types.CodeSmellFinding {
	spec := file.Spec()
	var findings []types.CodeSmellFinding
	flag := func(node *tree_sitter.Node, severity types.Severity, message, suggestion string) {
		findings = append(findings, types.CodeSmellFinding{
			Category:   types.SmellNaming,
			Severity:   severity,
			Location:   program.LocationOf(file.Path, node),
			Message:    message,
			Suggestion: suggestion,
		})
	}
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		kind, ok := spec.SymbolKinds[node.Kind()]
		if !ok {
			return true
		}
		nameNode := program.NameNode(node, spec)
		if nameNode == nil {
			return true
		}
		name := program.Text(nameNode, file.Content)
		switch kind {
		case types.KindVariable:
			if len(name) == 1 && !isLoopCounter(node) {
				flag(nameNode, types.SeverityLow,
					fmt.Sprintf("single-character name %q outside a loop counter", name),
					"Use a descriptive name")
			}
			if nameDenylist[strings.ToLower(name)] {
				flag(nameNode, types.SeverityMedium,
					fmt.Sprintf("non-descriptive name %q", name),
					"Name the variable after what it holds")
			}
		case types.KindFunction, types.KindMethod:
			if !hasVerbPrefix(name) {
				flag(nameNode, types.SeverityLow,
					fmt.Sprintf("function name %q does not start with a verb", name),
					"Start function names with an action verb")
			}
		case types.KindClass, types.KindInterface, types.KindEnum, types.KindType:
			if name != "" && name[0] >= 'a' && name[0] <= 'z' {
				flag(nameNode, types.SeverityMedium,
					fmt.Sprintf("type name %q should start with an uppercase letter", name),
					"Capitalize type names")
			}
		}
		return true
	})
	return findings
}

// isLoopCounter exempts declarators sitting directly inside a for-loop
// header from the single-character rule.
func isLoopCounter(declarator *tree_sitter.Node) bool {
	for parent := declarator.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Kind() {
		case "for_statement", "for_in_statement", "for_of_statement":
			// Inside the header, not the body: the body is a statement_block.
			return true
		case "statement_block", "block", "function_declaration", "arrow_function",
			"function_expression", "method_definition":
			return false
		}
	}
	return false
}

func hasVerbPrefix(name string) bool {
	lower := strings.ToLower(strings.TrimPrefix(name, "_"))
	for _, prefix := range verbPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// detectUnused flags variables and private methods whose identifier never
// appears beyond its own declaration, counted within the declaring file.
func detectUnused(file *program.ParsedFile) []types.CodeSmellFinding {
	spec := file.Spec()
	var findings []types.CodeSmellFinding
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		kind, ok := spec.SymbolKinds[node.Kind()]
		if !ok {
			return true
		}
		private := false
		nameNode := program.NameNode(node, spec)
		if nameNode == nil {
			return true
		}
		name := program.Text(nameNode, file.Content)
		switch kind {
		case types.KindVariable:
		case types.KindMethod:
			private = isPrivate(name, modifiersOf(node, file.Content))
			if !private {
				return true
			}
		default:
			return true
		}
		uses := 0
		for _, ref := range referencesIn(file, name) {
			if !ref.IsDeclaration {
				uses++
			}
		}
		if uses == 0 {
			what := "variable"
			if private {
				what = "private method"
			}
			findings = append(findings, types.CodeSmellFinding{
				Category:   types.SmellUnusedCode,
				Severity:   types.SeverityMedium,
				Location:   program.LocationOf(file.Path, nameNode),
				Message:    fmt.Sprintf("%s %q is never used", what, name),
				Suggestion: "Remove the declaration or use it",
			})
		}
		return true
	})
	return findings
}

// detectAsyncIssues flags async functions without awaits and calls to
// locally-declared async functions that are neither awaited nor returned.
// Promise-likeness is inferred from same-file async declarations, a
// lightweight stand-in for type information.
func detectAsyncIssues(file *program.ParsedFile) []types.CodeSmellFinding {
	spec := file.Spec()
	var findings []types.CodeSmellFinding

	asyncNames := make(map[string]bool)
	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if spec.FunctionKinds[node.Kind()] && hasAsyncModifier(node) {
			if nameNode := program.NameNode(node, spec); nameNode != nil {
				asyncNames[program.Text(nameNode, file.Content)] = true
			}
			// const f = async () => {} binds through the declarator.
			if parent := node.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
				if nameNode := parent.ChildByFieldName("name"); nameNode != nil {
					asyncNames[program.Text(nameNode, file.Content)] = true
				}
			}
		}
		return true
	})

	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if isAsyncWithoutAwait(file, node) {
			name := "<anonymous>"
			if nameNode := program.NameNode(node, spec); nameNode != nil {
				name = program.Text(nameNode, file.Content)
			}
			findings = append(findings, types.CodeSmellFinding{
				Category:   types.SmellAsyncIssues,
				Severity:   types.SeverityMedium,
				Location:   program.LocationOf(file.Path, node),
				Message:    fmt.Sprintf("async function %s contains no await", name),
				Suggestion: "Drop the async modifier or await the asynchronous work",
			})
		}
		if node.Kind() == "call_expression" && isUnhandledPromiseCall(file, node, asyncNames) {
			findings = append(findings, types.CodeSmellFinding{
				Category:   types.SmellAsyncIssues,
				Severity:   types.SeverityHigh,
				Location:   program.LocationOf(file.Path, node),
				Message:    fmt.Sprintf("result of %s is a promise but is never awaited", elide(calleeText(file, node), 60)),
				Suggestion: "Await the call or return it to the caller",
			})
		}
		return true
	})
	return findings
}

func calleeText(file *program.ParsedFile, call *tree_sitter.Node) string {
	return program.Text(call.ChildByFieldName("function"), file.Content)
}

func isUnhandledPromiseCall(file *program.ParsedFile, call *tree_sitter.Node, asyncNames map[string]bool) bool {
	if !asyncNames[calleeText(file, call)] {
		return false
	}
	parent := call.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "await_expression", "return_statement":
		return false
	case "arrow_function":
		// Expression-bodied arrows return the call value.
		if body := parent.ChildByFieldName("body"); body != nil && sameNode(body, call) {
			return false
		}
	case "member_expression":
		// fn().then(...) counts as handled.
		return false
	}
	return true
}

func detectCoupling(file *program.ParsedFile) []types.CodeSmellFinding {
	var findings []types.CodeSmellFinding

	importCount := len(Imports(file))
	if importCount > importsMedium {
		severity := types.SeverityMedium
		if importCount > importsHigh {
			severity = types.SeverityHigh
		}
		findings = append(findings, types.CodeSmellFinding{
			Category:   types.SmellCoupling,
			Severity:   severity,
			Location:   types.Location{File: file.Path, Position: types.Position{}},
			Message:    fmt.Sprintf("file has %d import declarations", importCount),
			Suggestion: "Split responsibilities or introduce a facade",
		})
	}

	walk(file.Root(), func(node *tree_sitter.Node) bool {
		if node.Kind() != "method_definition" {
			return true
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil || program.Text(nameNode, file.Content) != "constructor" {
			return true
		}
		params := parameterCount(node)
		if params > ctorParamsMedium {
			severity := types.SeverityMedium
			if params > ctorParamsHigh {
				severity = types.SeverityHigh
			}
			findings = append(findings, types.CodeSmellFinding{
				Category:   types.SmellCoupling,
				Severity:   severity,
				Location:   program.LocationOf(file.Path, node),
				Message:    fmt.Sprintf("constructor takes %d parameters", params),
				Suggestion: "Group related parameters into an options object",
			})
		}
		return false
	})
	return findings
}
