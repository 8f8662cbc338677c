package program

import (
	"path/filepath"
	"strings"
	"sync"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/tryterra/static-analysis/internal/types"
)

// Language identifies a supported grammar.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangCSharp     Language = "csharp"
	LangCpp        Language = "cpp"
	LangPHP        Language = "php"
	LangZig        Language = "zig"
)

var extToLanguage = map[string]Language{
	".ts":    LangTypeScript,
	".mts":   LangTypeScript,
	".cts":   LangTypeScript,
	".tsx":   LangTSX,
	".js":    LangJavaScript,
	".mjs":   LangJavaScript,
	".cjs":   LangJavaScript,
	".jsx":   LangJavaScript,
	".go":    LangGo,
	".py":    LangPython,
	".java":  LangJava,
	".rs":    LangRust,
	".cs":    LangCSharp,
	".cpp":   LangCpp,
	".cc":    LangCpp,
	".cxx":   LangCpp,
	".c":     LangCpp,
	".h":     LangCpp,
	".hpp":   LangCpp,
	".php":   LangPHP,
	".phtml": LangPHP,
	".zig":   LangZig,
}

// DetectLanguage maps a file path to its grammar language.
func DetectLanguage(path string) (Language, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// SupportedExtensions lists every extension the adapter can parse.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extToLanguage))
	for ext := range extToLanguage {
		exts = append(exts, ext)
	}
	return exts
}

// Grammars are loaded once per process; tree-sitter language objects are
// immutable and shared across parsers.
var (
	grammarOnce sync.Once
	grammars    map[Language]*tree_sitter.Language
)

func grammarFor(lang Language) *tree_sitter.Language {
	grammarOnce.Do(func() {
		grammars = map[Language]*tree_sitter.Language{
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			LangTSX:        tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
			LangJavaScript: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangJava:       tree_sitter.NewLanguage(tree_sitter_java.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
			LangCSharp:     tree_sitter.NewLanguage(tree_sitter_csharp.Language()),
			LangCpp:        tree_sitter.NewLanguage(tree_sitter_cpp.Language()),
			LangPHP:        tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()),
			LangZig:        tree_sitter.NewLanguage(tree_sitter_zig.Language()),
		}
	})
	return grammars[lang]
}

// Spec describes how a grammar's node kinds map onto the normalized symbol
// model. Node kind names come from the upstream grammars.
type Spec struct {
	SymbolKinds     map[string]types.SymbolKind
	FunctionKinds   map[string]bool // complexity roots
	BranchKinds     map[string]bool // branching constructs, excluding logical binaries
	IdentifierKinds map[string]bool
	ImportKinds     map[string]bool
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

var tsSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"class_declaration":              types.KindClass,
		"abstract_class_declaration":     types.KindClass,
		"interface_declaration":          types.KindInterface,
		"enum_declaration":               types.KindEnum,
		"function_declaration":           types.KindFunction,
		"generator_function_declaration": types.KindFunction,
		"function_expression":            types.KindFunction,
		"arrow_function":                 types.KindFunction,
		"method_definition":              types.KindMethod,
		"method_signature":               types.KindMethod,
		"public_field_definition":        types.KindProperty,
		"property_signature":             types.KindProperty,
		"variable_declarator":            types.KindVariable,
		"required_parameter":             types.KindParameter,
		"optional_parameter":             types.KindParameter,
		"type_alias_declaration":         types.KindType,
		"internal_module":                types.KindNamespace,
		"module":                         types.KindModule,
	},
	FunctionKinds: set("function_declaration", "generator_function_declaration",
		"function_expression", "arrow_function", "method_definition"),
	BranchKinds: set("if_statement", "ternary_expression", "for_statement",
		"for_in_statement", "while_statement", "do_statement", "catch_clause",
		"switch_case"),
	IdentifierKinds: set("identifier", "property_identifier", "type_identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern",
		"private_property_identifier"),
	ImportKinds: set("import_statement"),
}

var jsSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"class_declaration":              types.KindClass,
		"function_declaration":           types.KindFunction,
		"generator_function_declaration": types.KindFunction,
		"function_expression":            types.KindFunction,
		"arrow_function":                 types.KindFunction,
		"method_definition":              types.KindMethod,
		"field_definition":               types.KindProperty,
		"variable_declarator":            types.KindVariable,
	},
	FunctionKinds: set("function_declaration", "generator_function_declaration",
		"function_expression", "arrow_function", "method_definition"),
	BranchKinds: set("if_statement", "ternary_expression", "for_statement",
		"for_in_statement", "while_statement", "do_statement", "catch_clause",
		"switch_case"),
	IdentifierKinds: set("identifier", "property_identifier",
		"shorthand_property_identifier", "shorthand_property_identifier_pattern",
		"private_property_identifier"),
	ImportKinds: set("import_statement"),
}

var goSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"function_declaration": types.KindFunction,
		"method_declaration":   types.KindMethod,
		"type_spec":            types.KindType,
		"const_spec":           types.KindVariable,
		"var_spec":             types.KindVariable,
	},
	FunctionKinds: set("function_declaration", "method_declaration", "func_literal"),
	BranchKinds: set("if_statement", "for_statement", "expression_case",
		"type_case", "communication_case"),
	IdentifierKinds: set("identifier", "field_identifier", "type_identifier",
		"package_identifier"),
	ImportKinds: set("import_spec"),
}

var pySpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"function_definition": types.KindFunction,
		"class_definition":    types.KindClass,
	},
	FunctionKinds: set("function_definition"),
	BranchKinds: set("if_statement", "elif_clause", "conditional_expression",
		"for_statement", "while_statement", "except_clause", "case_clause"),
	IdentifierKinds: set("identifier"),
	ImportKinds:     set("import_statement", "import_from_statement"),
}

var javaSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"class_declaration":       types.KindClass,
		"record_declaration":      types.KindClass,
		"interface_declaration":   types.KindInterface,
		"enum_declaration":        types.KindEnum,
		"method_declaration":      types.KindMethod,
		"constructor_declaration": types.KindMethod,
		"field_declaration":       types.KindProperty,
	},
	FunctionKinds: set("method_declaration", "constructor_declaration"),
	BranchKinds: set("if_statement", "for_statement", "enhanced_for_statement",
		"while_statement", "do_statement", "catch_clause", "switch_label",
		"ternary_expression"),
	IdentifierKinds: set("identifier", "type_identifier"),
	ImportKinds:     set("import_declaration"),
}

var rustSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"function_item": types.KindFunction,
		"struct_item":   types.KindClass,
		"enum_item":     types.KindEnum,
		"trait_item":    types.KindInterface,
		"type_item":     types.KindType,
		"mod_item":      types.KindModule,
	},
	FunctionKinds: set("function_item", "closure_expression"),
	BranchKinds: set("if_expression", "match_arm", "for_expression",
		"while_expression", "loop_expression"),
	IdentifierKinds: set("identifier", "type_identifier", "field_identifier"),
	ImportKinds:     set("use_declaration"),
}

var csharpSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"class_declaration":       types.KindClass,
		"struct_declaration":      types.KindClass,
		"record_declaration":      types.KindClass,
		"interface_declaration":   types.KindInterface,
		"enum_declaration":        types.KindEnum,
		"method_declaration":      types.KindMethod,
		"constructor_declaration": types.KindMethod,
		"property_declaration":    types.KindProperty,
		"field_declaration":       types.KindProperty,
		"delegate_declaration":    types.KindType,
		"namespace_declaration":   types.KindNamespace,
	},
	FunctionKinds: set("method_declaration", "constructor_declaration",
		"local_function_statement"),
	BranchKinds: set("if_statement", "for_statement", "foreach_statement",
		"while_statement", "do_statement", "catch_clause", "switch_section",
		"conditional_expression"),
	IdentifierKinds: set("identifier"),
	ImportKinds:     set("using_directive"),
}

var cppSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"function_definition":  types.KindFunction,
		"class_specifier":      types.KindClass,
		"struct_specifier":     types.KindClass,
		"enum_specifier":       types.KindEnum,
		"namespace_definition": types.KindNamespace,
		"type_definition":      types.KindType,
	},
	FunctionKinds: set("function_definition", "lambda_expression"),
	BranchKinds: set("if_statement", "for_statement", "while_statement",
		"do_statement", "case_statement", "conditional_expression", "catch_clause"),
	IdentifierKinds: set("identifier", "type_identifier", "field_identifier"),
	ImportKinds:     set("preproc_include", "using_declaration"),
}

var phpSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"class_declaration":     types.KindClass,
		"trait_declaration":     types.KindClass,
		"interface_declaration": types.KindInterface,
		"enum_declaration":      types.KindEnum,
		"function_definition":   types.KindFunction,
		"method_declaration":    types.KindMethod,
		"property_declaration":  types.KindProperty,
		"namespace_definition":  types.KindNamespace,
	},
	FunctionKinds: set("function_definition", "method_declaration",
		"anonymous_function_creation_expression", "arrow_function"),
	BranchKinds: set("if_statement", "else_if_clause", "for_statement",
		"foreach_statement", "while_statement", "do_statement", "catch_clause",
		"case_statement", "conditional_expression"),
	IdentifierKinds: set("name", "variable_name"),
	ImportKinds:     set("namespace_use_declaration"),
}

var zigSpec = &Spec{
	SymbolKinds: map[string]types.SymbolKind{
		"function_declaration": types.KindFunction,
	},
	FunctionKinds:   set("function_declaration"),
	BranchKinds:     set("if_statement", "while_statement", "for_statement", "switch_case"),
	IdentifierKinds: set("identifier"),
	ImportKinds:     set(),
}

var specs = map[Language]*Spec{
	LangTypeScript: tsSpec,
	LangTSX:        tsSpec,
	LangJavaScript: jsSpec,
	LangGo:         goSpec,
	LangPython:     pySpec,
	LangJava:       javaSpec,
	LangRust:       rustSpec,
	LangCSharp:     csharpSpec,
	LangCpp:        cppSpec,
	LangPHP:        phpSpec,
	LangZig:        zigSpec,
}

// SpecFor returns the node-kind tables for a language.
func SpecFor(lang Language) *Spec {
	return specs[lang]
}

// IsPrimary reports whether the language gets the full analysis feature set
// (relationships, smells, context). Secondary languages are limited to
// symbols, imports and complexity.
func IsPrimary(lang Language) bool {
	switch lang {
	case LangTypeScript, LangTSX, LangJavaScript:
		return true
	}
	return false
}
