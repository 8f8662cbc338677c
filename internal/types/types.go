package types

// SymbolKind identifies the AST node category a symbol was derived from.
// The kind is never inferred from names or usage, only from the declaring
// node's category.
type SymbolKind string

const (
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindEnum      SymbolKind = "enum"
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindProperty  SymbolKind = "property"
	KindVariable  SymbolKind = "variable"
	KindParameter SymbolKind = "parameter"
	KindType      SymbolKind = "type"
	KindNamespace SymbolKind = "namespace"
	KindModule    SymbolKind = "module"
)

// Modifier is a declaration modifier keyword.
type Modifier string

const (
	ModPublic    Modifier = "public"
	ModPrivate   Modifier = "private"
	ModProtected Modifier = "protected"
	ModStatic    Modifier = "static"
	ModAsync     Modifier = "async"
	ModReadonly  Modifier = "readonly"
	ModAbstract  Modifier = "abstract"
)

// Position is a 0-based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Location identifies a half-open [position, endPosition) range inside a
// single file. Positions never point into another file than File.
type Location struct {
	File        string    `json:"file"`
	Position    Position  `json:"position"`
	EndPosition *Position `json:"endPosition,omitempty"`
}

// SymbolReference is a weak pointer to a symbol occurrence. It carries no
// ownership: the referenced file may be evicted or reparsed at any time.
type SymbolReference struct {
	Name     string     `json:"name"`
	Location Location   `json:"location"`
	Kind     SymbolKind `json:"kind"`
}

// Relationships holds the optional relationship sets of a SymbolRecord.
type Relationships struct {
	Extends    []SymbolReference `json:"extends,omitempty"`
	Implements []SymbolReference `json:"implements,omitempty"`
	UsedBy     []SymbolReference `json:"usedBy,omitempty"`
	Uses       []SymbolReference `json:"uses,omitempty"`
}

// SymbolRecord is the normalized symbol projection returned by analysis
// tools. TypeSignature is always a truncated textual rendering, never a
// structured type object.
type SymbolRecord struct {
	Name          string         `json:"name"`
	Kind          SymbolKind     `json:"kind"`
	TypeSignature string         `json:"typeSignature,omitempty"`
	Documentation string         `json:"documentation,omitempty"`
	Modifiers     []Modifier     `json:"modifiers,omitempty"`
	Location      Location       `json:"location"`
	Relationships *Relationships `json:"relationships,omitempty"`
}

// ImportInfo describes one import declaration. Symbols preserves the
// declaration order of the import clause.
type ImportInfo struct {
	ModuleSpecifier string   `json:"moduleSpecifier"`
	Symbols         []string `json:"symbols,omitempty"`
	IsTypeOnly      bool     `json:"isTypeOnly,omitempty"`
	Location        Location `json:"location"`
}

// ExportInfo describes one exported name of a file.
type ExportInfo struct {
	Name     string     `json:"name"`
	Kind     SymbolKind `json:"kind"`
	Location Location   `json:"location"`
}

// ReferenceKind classifies how an occurrence uses a symbol.
type ReferenceKind string

const (
	RefRead   ReferenceKind = "read"
	RefWrite  ReferenceKind = "write"
	RefCall   ReferenceKind = "call"
	RefImport ReferenceKind = "import"
)

// Reference is a single classified occurrence of a symbol.
type Reference struct {
	Location      Location      `json:"location"`
	Kind          ReferenceKind `json:"kind"`
	LineText      string        `json:"lineText,omitempty"`
	IsDeclaration bool          `json:"isDeclaration,omitempty"`
}

// SmellCategory labels a code-smell detector family.
type SmellCategory string

const (
	SmellComplexity  SmellCategory = "complexity"
	SmellDuplication SmellCategory = "duplication"
	SmellCoupling    SmellCategory = "coupling"
	SmellNaming      SmellCategory = "naming"
	SmellUnusedCode  SmellCategory = "unused-code"
	SmellAsyncIssues SmellCategory = "async-issues"
)

// Severity orders findings low < medium < high.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns the sort weight of a severity (higher sorts first).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// CodeSmellFinding is a single severity-tagged quality finding.
type CodeSmellFinding struct {
	Category   SmellCategory `json:"category"`
	Severity   Severity      `json:"severity"`
	Location   Location      `json:"location"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// Diagnostic reports a parse problem inside a file that still produced a
// partial AST.
type Diagnostic struct {
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// DependencyNode is one file (or module group) in a dependency graph.
type DependencyNode struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	File      string `json:"file,omitempty"`
	External  bool   `json:"external,omitempty"`
	InDegree  int    `json:"inDegree"`
	OutDegree int    `json:"outDegree"`
}

// DependencyEdge is a directed import relationship between two nodes.
type DependencyEdge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	IsTypeOnly bool   `json:"isTypeOnly,omitempty"`
}
