// Package catalog implements the in-memory, concurrently readable plugin
// index: the only mutable shared state in the registry. It is keyed by
// plugin name and maintains each name's variants in a prescribed sort
// order, per spec.md §4.4.
package catalog

import (
	"sort"
	"sync"

	"github.com/memflow/memflow-registry/internal/descriptor"
)

// Catalog is safe for concurrent use. Readers (Plugins, PluginVariants,
// FindByDigest) take a shared lock; writers (InsertAll, DeleteByDigest) take
// an exclusive one. The lock is held only across the in-memory mutation,
// never across file I/O — callers are responsible for doing any disk work
// before calling into Catalog.
type Catalog struct {
	mu    sync.RWMutex
	byKey map[string][]descriptor.Variant
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{byKey: make(map[string][]descriptor.Variant)}
}

// less implements the reverse ordering comparator from spec.md §4.4:
// higher pluginVersion sorts first, ties broken by newer createdAt first.
func less(a, b descriptor.Variant) bool {
	if a.Descriptor.PluginVersion != b.Descriptor.PluginVersion {
		return a.Descriptor.PluginVersion > b.Descriptor.PluginVersion
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// InsertAll inserts every descriptor in metadata as one Variant, keyed by
// descriptor.Name. Insertion is a binary search into the existing sorted
// sequence; an exact (pluginVersion, createdAt) collision within the same
// name is a hard invariant violation and panics, since it can only arise
// from two distinct uploads claiming the identical microsecond timestamp at
// the same plugin ABI version — a condition the object store's upload
// ordering is supposed to make unreachable.
func (c *Catalog) InsertAll(meta descriptor.Metadata, digest, signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range meta.Descriptors {
		v := descriptor.Variant{
			Digest:     digest,
			Signature:  signature,
			CreatedAt:  meta.CreatedAt,
			Descriptor: d,
		}
		seq := c.byKey[d.Name]
		idx := sort.Search(len(seq), func(i int) bool { return less(v, seq[i]) || equalKey(v, seq[i]) })
		if idx < len(seq) && equalKey(v, seq[idx]) {
			panic("catalog: duplicate (pluginVersion, createdAt) within plugin name " + d.Name)
		}
		seq = append(seq, descriptor.Variant{})
		copy(seq[idx+1:], seq[idx:])
		seq[idx] = v
		c.byKey[d.Name] = seq
	}
}

func equalKey(a, b descriptor.Variant) bool {
	return a.Descriptor.PluginVersion == b.Descriptor.PluginVersion && a.CreatedAt.Equal(b.CreatedAt)
}

// QueryParams filters a PluginVariants query. Zero values are wildcards
// except Limit, which defaults to 5 and is capped at 50.
type QueryParams struct {
	Version                 string
	HasVersion              bool
	MemflowPluginVersion    int32
	HasMemflowPluginVersion bool
	FileType                descriptor.FileType
	HasFileType             bool
	Architecture            descriptor.Architecture
	HasArchitecture         bool
	Skip                    int
	Limit                   int
	HasLimit                bool
}

const (
	defaultLimit = 5
	maxLimit     = 50
)

// PluginVariants returns the variants for name matching params, after
// applying Skip and taking at most min(Limit, 50) entries, in the catalog's
// stored (sorted) order.
func (c *Catalog) PluginVariants(name string, params QueryParams) []descriptor.Variant {
	c.mu.RLock()
	seq := c.byKey[name]
	snapshot := make([]descriptor.Variant, len(seq))
	copy(snapshot, seq)
	c.mu.RUnlock()

	limit := defaultLimit
	if params.HasLimit {
		limit = params.Limit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	skip := params.Skip
	if skip < 0 {
		skip = 0
	}
	if skip > len(snapshot) {
		skip = len(snapshot)
	}
	snapshot = snapshot[skip:]

	result := make([]descriptor.Variant, 0, limit)
	for _, v := range snapshot {
		if len(result) >= limit {
			break
		}
		if !matches(v, params) {
			continue
		}
		result = append(result, v)
	}
	return result
}

func matches(v descriptor.Variant, params QueryParams) bool {
	if params.HasVersion {
		if v.Descriptor.Version != params.Version {
			if len(params.Version) == 0 || len(params.Version) > len(v.Digest) ||
				v.Digest[:len(params.Version)] != params.Version {
				return false
			}
		}
	}
	if params.HasMemflowPluginVersion && v.Descriptor.PluginVersion != params.MemflowPluginVersion {
		return false
	}
	if params.HasFileType && v.Descriptor.FileType != params.FileType {
		return false
	}
	if params.HasArchitecture && v.Descriptor.Architecture != params.Architecture {
		return false
	}
	return true
}

// Plugins enumerates all variants across all names, emitting one
// {name, description} per distinct plugin name (sorted, deduplicated).
func (c *Catalog) Plugins() []descriptor.Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]descriptor.Info, 0, len(c.byKey))
	for name, seq := range c.byKey {
		if len(seq) == 0 {
			continue
		}
		infos = append(infos, descriptor.Info{Name: name, Description: seq[0].Descriptor.Description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// FindByDigest returns the first variant (in map iteration order) whose
// digest matches, or ok=false if none does. This mirrors spec.md's linear
// scan across all variants.
func (c *Catalog) FindByDigest(digest string) (descriptor.Variant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, seq := range c.byKey {
		for _, v := range seq {
			if v.Digest == digest {
				return v, true
			}
		}
	}
	return descriptor.Variant{}, false
}

// DeleteByDigest removes every variant whose digest equals the argument,
// across every name bucket, preserving each bucket's sort order.
func (c *Catalog) DeleteByDigest(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, seq := range c.byKey {
		filtered := seq[:0:0]
		for _, v := range seq {
			if v.Digest != digest {
				filtered = append(filtered, v)
			}
		}
		if len(filtered) == 0 {
			delete(c.byKey, name)
		} else {
			c.byKey[name] = filtered
		}
	}
}
