// Package program wraps the tree-sitter parser behind the narrow contract
// the analysis components consume: load a file, resolve a node at a
// position, read node text and positions. Analysis code never touches
// parsing technology outside this package.
package program

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/types"
)

// ParsedFile owns one parsed source file and its tree-sitter tree. The tree
// holds parser-internal memory; Release must be called exactly once when the
// owner (the cache layer) evicts the entry.
type ParsedFile struct {
	Path        string
	Language    Language
	Content     []byte
	Lines       []string
	Tree        *tree_sitter.Tree
	ModTime     time.Time
	Hash        uint64
	Diagnostics []types.Diagnostic

	releaseOnce sync.Once
}

// Root returns the AST root. Partial trees (files with syntax errors) still
// have a usable root; consumers should treat Diagnostics as advisory.
func (f *ParsedFile) Root() *tree_sitter.Node {
	if f.Tree == nil {
		return nil
	}
	return f.Tree.RootNode()
}

// Spec returns the node-kind tables for the file's language.
func (f *ParsedFile) Spec() *Spec {
	return SpecFor(f.Language)
}

// Line returns the 0-based source line, or "" when out of range.
func (f *ParsedFile) Line(n int) string {
	if n < 0 || n >= len(f.Lines) {
		return ""
	}
	return f.Lines[n]
}

// Release frees the underlying tree-sitter tree. Safe to call more than
// once; only the first call closes the tree.
func (f *ParsedFile) Release() {
	f.releaseOnce.Do(func() {
		if f.Tree != nil {
			f.Tree.Close()
			f.Tree = nil
		}
	})
}

// Adapter is the program model adapter. It is safe for concurrent use:
// parser instances are pooled per language because a tree-sitter parser can
// only run one parse at a time.
type Adapter struct {
	mu          sync.Mutex
	pools       map[Language]*sync.Pool
	maxFileSize int64
}

// NewAdapter creates an adapter. maxFileSize of 0 disables the size check.
func NewAdapter(maxFileSize int64) *Adapter {
	return &Adapter{
		pools:       make(map[Language]*sync.Pool),
		maxFileSize: maxFileSize,
	}
}

func (a *Adapter) pool(lang Language) *sync.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pools[lang]
	if !ok {
		grammar := grammarFor(lang)
		p = &sync.Pool{
			New: func() any {
				parser := tree_sitter.NewParser()
				if err := parser.SetLanguage(grammar); err != nil {
					return nil
				}
				return parser
			},
		}
		a.pools[lang] = p
	}
	return p
}

// LoadFile reads and parses the file at path. Fails with FileNotFound when
// the path is missing or unreadable and ParseError when no tree could be
// produced. Syntactically invalid files return a partial tree with
// diagnostics rather than an error.
func (a *Adapter) LoadFile(path string) (*ParsedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, scaerr.NewFileNotFound("load", path, err)
	}
	if info.IsDir() {
		return nil, scaerr.NewFileNotFound("load", path, fmt.Errorf("is a directory"))
	}
	if a.maxFileSize > 0 && info.Size() > a.maxFileSize {
		return nil, scaerr.NewParseError("load", path,
			fmt.Errorf("file size %d exceeds limit %d", info.Size(), a.maxFileSize))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, scaerr.NewFileNotFound("load", path, err)
	}
	return a.Parse(path, content, info.ModTime())
}

// Parse parses content as the language detected from path's extension.
func (a *Adapter) Parse(path string, content []byte, modTime time.Time) (file *ParsedFile, err error) {
	lang, ok := DetectLanguage(path)
	if !ok {
		return nil, scaerr.NewParseError("parse", path,
			fmt.Errorf("unsupported file extension"))
	}

	// Tree-sitter mutates input buffers through cgo; parse a copy so callers
	// keep an immutable view of the content.
	buffer := make([]byte, len(content))
	copy(buffer, content)

	defer func() {
		if r := recover(); r != nil {
			file = nil
			err = scaerr.NewParseError("parse", path, fmt.Errorf("parser panic: %v", r))
		}
	}()

	pool := a.pool(lang)
	parser, _ := pool.Get().(*tree_sitter.Parser)
	if parser == nil {
		return nil, scaerr.NewInternal("parse", fmt.Errorf("grammar for %s unavailable", lang))
	}
	tree := parser.Parse(buffer, nil)
	pool.Put(parser)
	if tree == nil {
		return nil, scaerr.NewParseError("parse", path, fmt.Errorf("parser produced no tree"))
	}

	f := &ParsedFile{
		Path:     path,
		Language: lang,
		Content:  buffer,
		Lines:    strings.Split(string(buffer), "\n"),
		Tree:     tree,
		ModTime:  modTime,
		Hash:     xxhash.Sum64(buffer),
	}
	f.Diagnostics = collectDiagnostics(path, f.Root())
	return f, nil
}

const maxDiagnostics = 20

func collectDiagnostics(path string, root *tree_sitter.Node) []types.Diagnostic {
	if root == nil || !root.HasError() {
		return nil
	}
	var nodes []*tree_sitter.Node
	errorNodes(root, maxDiagnostics, &nodes)
	diags := make([]types.Diagnostic, 0, len(nodes))
	for _, n := range nodes {
		msg := "syntax error"
		if n.IsMissing() {
			msg = fmt.Sprintf("missing %s", n.Kind())
		}
		diags = append(diags, types.Diagnostic{
			Message:  msg,
			Location: LocationOf(path, n),
		})
	}
	return diags
}

// ResolveAtPosition returns the innermost named node at a 0-based position,
// or nil when the position is outside the file.
func (a *Adapter) ResolveAtPosition(file *ParsedFile, line, character int) *tree_sitter.Node {
	return NodeAt(file.Root(), line, character)
}

// ContentHash hashes raw file content with the same function used for
// cached-entry hashes, for content-hash invalidation checks.
func ContentHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}
