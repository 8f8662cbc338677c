package cache

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tryterra/static-analysis/internal/config"
	scaerr "github.com/tryterra/static-analysis/internal/errors"
	"github.com/tryterra/static-analysis/internal/program"
	"github.com/tryterra/static-analysis/internal/types"
)

// Stats is a point-in-time snapshot of cache behaviour, surfaced through
// the cache_stats tool.
type Stats struct {
	ParsedFiles    int    `json:"parsedFiles"`
	SymbolEntries  int    `json:"symbolEntries"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Invalidations  uint64 `json:"invalidations"`
	MemoryFlushes  uint64 `json:"memoryFlushes"`
	HeapAllocMB    int64  `json:"heapAllocMb"`
	MemoryCeiling  int64  `json:"memoryCeilingMb"`
	PersistentHits uint64 `json:"persistentHits"`
	PersistentMiss uint64 `json:"persistentMisses"`
}

// Service fronts the parse adapter with two LRU tiers: parsed files and
// per-file symbol tables. Staleness is checked on every hit according to
// the configured invalidation strategy, so a hit never serves a file that
// changed on disk (under timestamp or content-hash modes).
type Service struct {
	adapter *program.Adapter
	cfg     *config.Config

	files   *LRU[string, *program.ParsedFile]
	symbols *LRU[string, []types.SymbolRecord]

	tracker func(string)

	pinMu   sync.Mutex
	active  int
	retired []*program.ParsedFile

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
	memoryFlushes atomic.Uint64
}

// NewService builds the cache tiers. Evicted parse trees hold cgo memory
// the Go GC cannot see; they are released through retire, which defers the
// release while any pinned request may still hold the pointer.
func NewService(adapter *program.Adapter, cfg *config.Config) *Service {
	s := &Service{adapter: adapter, cfg: cfg}
	s.files = NewLRU(cfg.Cache.ParsedFileEntries, func(_ string, f *program.ParsedFile) {
		s.retire(f)
	})
	s.symbols = NewLRU[string, []types.SymbolRecord](cfg.Cache.SymbolEntries, nil)
	return s
}

// SetTracker registers a callback invoked with each path entering the
// parsed-file tier. The file watcher uses it to learn which directories to
// watch. Must be set before the service starts handling loads.
func (s *Service) SetTracker(fn func(path string)) {
	s.tracker = fn
}

// Acquire pins the parsed-file tier for one analysis request. While any
// request is pinned, evicted parse trees stay alive instead of being
// closed, so pointers obtained earlier in the request remain valid even
// when the tier is smaller than the request's working set. The returned
// func unpins; calling it more than once is a no-op. The last unpin
// releases every tree retired in the window.
func (s *Service) Acquire() func() {
	s.pinMu.Lock()
	s.active++
	s.pinMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(s.unpin)
	}
}

func (s *Service) unpin() {
	s.pinMu.Lock()
	s.active--
	var drain []*program.ParsedFile
	if s.active == 0 {
		drain = s.retired
		s.retired = nil
	}
	s.pinMu.Unlock()
	for _, f := range drain {
		f.Release()
	}
}

// retire releases an evicted parse tree, deferring the release while any
// request is pinned.
func (s *Service) retire(f *program.ParsedFile) {
	s.pinMu.Lock()
	if s.active > 0 {
		s.retired = append(s.retired, f)
		s.pinMu.Unlock()
		return
	}
	s.pinMu.Unlock()
	f.Release()
}

// ParsedFile returns the parsed representation of path, from cache when the
// cached entry is still fresh, parsing otherwise. Path must already be
// scope-validated and absolute.
func (s *Service) ParsedFile(path string) (*program.ParsedFile, error) {
	if cached, ok := s.files.Get(path); ok {
		if s.fresh(path, cached) {
			s.hits.Add(1)
			return cached, nil
		}
		s.invalidations.Add(1)
		s.Invalidate(path)
	}
	s.misses.Add(1)

	if err := s.checkMemoryPressure(); err != nil {
		return nil, err
	}

	file, err := s.adapter.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.files.Put(path, file)
	if s.tracker != nil {
		s.tracker(path)
	}
	return file, nil
}

func (s *Service) fresh(path string, cached *program.ParsedFile) bool {
	switch s.cfg.Cache.Invalidation {
	case config.InvalidateManual:
		return true
	case config.InvalidateContentHash:
		content, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		return program.ContentHash(content) == cached.Hash
	default: // timestamp
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		return !info.ModTime().After(cached.ModTime)
	}
}

// Symbols returns the cached symbol table for path, if any.
func (s *Service) Symbols(path string) ([]types.SymbolRecord, bool) {
	symbols, ok := s.symbols.Get(path)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return symbols, ok
}

// PutSymbols stores the symbol table extracted from path.
func (s *Service) PutSymbols(path string, symbols []types.SymbolRecord) {
	s.symbols.Put(path, symbols)
}

// Invalidate drops both tiers for path. Used by the manual strategy's
// explicit invalidation and by the file watcher.
func (s *Service) Invalidate(path string) {
	s.files.Remove(path)
	s.symbols.Remove(path)
}

// Clear flushes both in-memory tiers.
func (s *Service) Clear() {
	s.files.Clear()
	s.symbols.Clear()
}

// WorkingSet returns the paths currently held in the parsed-file tier,
// most recently used first.
func (s *Service) WorkingSet() []string {
	return s.files.Keys()
}

// checkMemoryPressure flushes both tiers when heap usage crosses 90% of
// the configured ceiling. The flush is the recovery path; only when the
// heap stays over the ceiling after a flush and GC does the caller's
// operation fail with a memory-limit error. Trees still pinned by
// in-flight requests are dropped from the tier but not freed until the
// last request ends.
func (s *Service) checkMemoryPressure() error {
	usedMB := heapAllocMB()
	if usedMB*10 < s.cfg.Performance.MemoryCeilingMB*9 {
		return nil
	}
	s.memoryFlushes.Add(1)
	s.Clear()
	runtime.GC()

	if usedMB = heapAllocMB(); usedMB >= s.cfg.Performance.MemoryCeilingMB {
		return scaerr.NewMemoryLimit("parse", usedMB, s.cfg.Performance.MemoryCeilingMB)
	}
	return nil
}

func heapAllocMB() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapAlloc / (1024 * 1024))
}

// Snapshot reports current cache statistics.
func (s *Service) Snapshot() Stats {
	return Stats{
		ParsedFiles:   s.files.Len(),
		SymbolEntries: s.symbols.Len(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Invalidations: s.invalidations.Load(),
		MemoryFlushes: s.memoryFlushes.Load(),
		HeapAllocMB:   heapAllocMB(),
		MemoryCeiling: s.cfg.Performance.MemoryCeilingMB,
	}
}
