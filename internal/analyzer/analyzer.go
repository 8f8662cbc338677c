// Package analyzer implements the analysis engine: symbol extraction,
// relationship resolution, reference finding, pattern matching, code-smell
// detection, context assembly and codebase summarization, all over the
// program package's parsed representation.
package analyzer

import (
	"context"

	"github.com/tryterra/static-analysis/internal/cache"
	"github.com/tryterra/static-analysis/internal/config"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/scope"
)

// Analyzer bundles the analysis components with their shared collaborators.
// Components never hold parsed files beyond one request; they re-fetch
// through the cache service on every call, and each operation pins the
// cache for its duration so evictions cannot free a tree it still holds.
type Analyzer struct {
	cfg   *config.Config
	cache *cache.Service
	scope *scope.Controller
}

// New wires an analyzer from its collaborators.
func New(cfg *config.Config, cacheService *cache.Service, scopeController *scope.Controller) *Analyzer {
	return &Analyzer{cfg: cfg, cache: cacheService, scope: scopeController}
}

// Config exposes the active configuration to tool handlers.
func (a *Analyzer) Config() *config.Config {
	return a.cfg
}

// Cache exposes the cache service for stats reporting.
func (a *Analyzer) Cache() *cache.Service {
	return a.cache
}

// Scope exposes the scope controller.
func (a *Analyzer) Scope() *scope.Controller {
	return a.scope
}

// Load scope-validates path and returns its parsed representation.
func (a *Analyzer) Load(path string) (*program.ParsedFile, error) {
	abs, err := a.scope.Resolve(path)
	if err != nil {
		return nil, err
	}
	return a.cache.ParsedFile(abs)
}

// sourceFiles resolves a bounded candidate set of analyzable files under
// dir (the workspace root when empty). The cap keeps project-wide
// operations inside their timeout budgets; results are a documented
// approximation beyond it.
func (a *Analyzer) sourceFiles(dir string, include, exclude []string) ([]string, error) {
	return a.scope.ListFiles(scope.ListOptions{
		Dir:        dir,
		Extensions: program.SupportedExtensions(),
		Include:    include,
		Exclude:    exclude,
		Limit:      a.cfg.Performance.MaxProjectFiles,
	})
}

// forEachSource fans file-level work out under the configured concurrency
// limit. Per-file failures are dropped from the aggregate.
func forEachSource[T any](ctx context.Context, a *Analyzer, files []string, fn func(ctx context.Context, file *program.ParsedFile) (T, error)) []scope.FileResult[T] {
	return scope.ForEachFile(ctx, files, int64(a.cfg.Performance.Concurrency), func(ctx context.Context, path string) (T, error) {
		parsed, err := a.cache.ParsedFile(path)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, parsed)
	})
}
