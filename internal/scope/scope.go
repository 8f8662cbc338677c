// Package scope enforces the file-system boundary: every path a tool names
// is resolved against the workspace root and checked against exclusion
// globs before any read happens.
package scope

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
)

// Controller validates paths and resolves candidate file sets for
// multi-file operations.
type Controller struct {
	root    string
	include []string
	exclude []string
}

// NewController creates a controller rooted at root. Include patterns, when
// present, restrict candidates; exclude patterns always reject.
func NewController(root string, include, exclude []string) *Controller {
	return &Controller{root: filepath.Clean(root), include: include, exclude: exclude}
}

// Root returns the workspace root.
func (c *Controller) Root() string {
	return c.root
}

// Resolve turns a request path (absolute or root-relative) into a validated
// absolute path. Paths escaping the root or matching an exclusion glob fail
// with a ScopeError before any read.
func (c *Controller) Resolve(path string) (string, error) {
	if path == "" {
		return "", scaerr.NewScopeError("resolve", path, fmt.Errorf("empty path"))
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(c.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", scaerr.NewScopeError("resolve", path,
			fmt.Errorf("outside workspace root %s", c.root))
	}
	if c.excluded(filepath.ToSlash(rel)) {
		return "", scaerr.NewScopeError("resolve", path, fmt.Errorf("matches exclusion pattern"))
	}
	return abs, nil
}

func (c *Controller) excluded(slashRel string) bool {
	for _, pattern := range c.exclude {
		if ok, err := doublestar.Match(pattern, slashRel); err == nil && ok {
			return true
		}
		// Patterns like **/node_modules/** also reject the directory itself.
		if ok, err := doublestar.Match(strings.TrimSuffix(pattern, "/**"), slashRel); err == nil && ok {
			return true
		}
	}
	return false
}

func (c *Controller) included(slashRel string) bool {
	if len(c.include) == 0 {
		return true
	}
	for _, pattern := range c.include {
		if ok, err := doublestar.Match(pattern, slashRel); err == nil && ok {
			return true
		}
	}
	return false
}

// ListOptions narrows a candidate file listing.
type ListOptions struct {
	Dir        string   // subdirectory under the root; "" means the root
	Extensions []string // file extensions to accept; empty accepts all
	Include    []string // extra include globs for this request
	Exclude    []string // extra exclude globs for this request
	Limit      int      // hard cap on returned paths; <=0 means unlimited
}

// ListFiles walks the workspace and returns absolute paths in sorted order,
// capped at Limit. Scope filtering happens before any file is parsed so
// excluded subtrees cost nothing.
func (c *Controller) ListFiles(opts ListOptions) ([]string, error) {
	start := c.root
	if opts.Dir != "" {
		resolved, err := c.Resolve(opts.Dir)
		if err != nil {
			return nil, err
		}
		start = resolved
	}

	extSet := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extSet[strings.ToLower(ext)] = true
	}

	var files []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if path != start && (c.excluded(slashRel) || matchAny(opts.Exclude, slashRel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.Limit > 0 && len(files) >= opts.Limit {
			return filepath.SkipAll
		}
		if c.excluded(slashRel) || matchAny(opts.Exclude, slashRel) {
			return nil
		}
		if !c.included(slashRel) || !matchAnyOrEmpty(opts.Include, slashRel) {
			return nil
		}
		if len(extSet) > 0 && !extSet[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, scaerr.NewInternal("list-files", err)
	}
	sort.Strings(files)
	return files, nil
}

func matchAny(patterns []string, slashRel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, slashRel); err == nil && ok {
			return true
		}
	}
	return false
}

func matchAnyOrEmpty(patterns []string, slashRel string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchAny(patterns, slashRel)
}
