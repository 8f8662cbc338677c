package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	scaerr "github.com/tryterra/static-analysis/internal/errors"
)

// DiskCache persists expensive analysis results as JSON files under
// <dir>/analysis/. Keys are derived from the tool name plus a canonical
// encoding of its parameters, so the same request always maps to the same
// file regardless of map iteration order.
type DiskCache struct {
	dir string
	ttl time.Duration
}

type diskEnvelope struct {
	Tool      string          `json:"tool"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   json.RawMessage `json:"payload"`
}

// NewDiskCache creates the cache rooted at dir. A zero or negative ttl
// disables expiry.
func NewDiskCache(dir string, ttl time.Duration) (*DiskCache, error) {
	root := filepath.Join(dir, "analysis")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, scaerr.NewInternal("disk-cache", err)
	}
	return &DiskCache{dir: root, ttl: ttl}, nil
}

// Key derives the cache key for tool with the given parameters. Parameter
// maps are encoded with sorted keys before hashing.
func (d *DiskCache) Key(tool string, params map[string]any) string {
	var b strings.Builder
	b.WriteString(tool)
	b.WriteByte('\n')
	writeCanonical(&b, params)
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

func writeCanonical(b *strings.Builder, v any) {
	switch value := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q:", k)
			writeCanonical(b, value[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, elem := range value {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, elem)
		}
		b.WriteByte(']')
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			fmt.Fprintf(b, "%v", value)
			return
		}
		b.Write(encoded)
	}
}

// Get reads the cached payload for key into out. Expired entries are
// deleted on read and reported as misses.
func (d *DiskCache) Get(key string, out any) bool {
	path := filepath.Join(d.dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var envelope diskEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		_ = os.Remove(path)
		return false
	}
	if d.ttl > 0 && time.Since(envelope.CreatedAt) > d.ttl {
		_ = os.Remove(path)
		return false
	}
	return json.Unmarshal(envelope.Payload, out) == nil
}

// Put stores payload under key. Write failures are swallowed; the disk
// cache is an accelerator, never a source of truth.
func (d *DiskCache) Put(tool, key string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(diskEnvelope{Tool: tool, CreatedAt: time.Now(), Payload: encoded})
	if err != nil {
		return
	}
	tmp := filepath.Join(d.dir, key+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, filepath.Join(d.dir, key+".json"))
}

// Purge removes every persisted entry.
func (d *DiskCache) Purge() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return scaerr.NewInternal("disk-cache-purge", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			_ = os.Remove(filepath.Join(d.dir, entry.Name()))
		}
	}
	return nil
}
