// Package join implements per-key fragment reassembly across a fixed set
// of named sources, with lazy TTL-based eviction.
//
// A Defragmenter is not thread-safe by itself; the Pipeline serializes
// all calls to Push through a single mutex. This keeps the package free
// of its own locking and lets callers choose how strict that
// serialization needs to be.
package join

import (
	"time"

	"github.com/nova-pipeline/joinbus/pkg/join/clock"
	"github.com/nova-pipeline/joinbus/pkg/payload"
)

// MergedPayload is the payload produced once every required source has
// contributed a fragment for a correlation key.
type MergedPayload = payload.Payload

type inflightEntry struct {
	createdAt time.Time
	parts     map[string]payload.Payload
}

// Defragmenter accepts fragments arriving on N named sources and emits a
// merged payload once every required source has contributed for a given
// correlation key.
type Defragmenter struct {
	sources  []string // declared order; last source wins on key conflict
	keyField string
	ttl      time.Duration // <= 0 disables eviction
	clock    clock.Clock

	entries map[interface{}]*inflightEntry
}

// New creates a Defragmenter over the given ordered source names, keyed
// by keyField, evicting entries older than ttl (ttl <= 0 disables
// eviction — legal for tests and single-source configurations).
func New(sources []string, keyField string, ttl time.Duration, clk clock.Clock) *Defragmenter {
	if clk == nil {
		clk = clock.Real{}
	}
	ordered := make([]string, len(sources))
	copy(ordered, sources)

	return &Defragmenter{
		sources:  ordered,
		keyField: keyField,
		ttl:      ttl,
		clock:    clk,
		entries:  make(map[interface{}]*inflightEntry),
	}
}

// Push records one fragment from sourceName and returns the 0 or 1 newly
// completed merged payloads for the fragment's correlation key. It first
// evicts entries whose age exceeds the configured TTL.
func (d *Defragmenter) Push(sourceName string, p payload.Payload) ([]MergedPayload, error) {
	key, err := d.extractKey(p)
	if err != nil {
		return nil, err
	}

	d.evictStale()

	entry, ok := d.entries[key]
	if !ok {
		entry = &inflightEntry{
			createdAt: d.clock.Now(),
			parts:     make(map[string]payload.Payload),
		}
		d.entries[key] = entry
	}

	entry.parts[sourceName] = p

	if !d.complete(entry) {
		return nil, nil
	}

	merged := d.merge(entry)
	delete(d.entries, key)
	return []MergedPayload{merged}, nil
}

func (d *Defragmenter) extractKey(p payload.Payload) (interface{}, error) {
	raw, ok := p[d.keyField]
	if !ok {
		return nil, ErrMissingJoinKey(d.keyField)
	}

	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	default:
		return nil, ErrUnhashableKey(d.keyField)
	}
}

func (d *Defragmenter) evictStale() {
	if d.ttl <= 0 {
		return
	}
	now := d.clock.Now()
	for key, entry := range d.entries {
		if now.Sub(entry.createdAt) > d.ttl {
			delete(d.entries, key)
		}
	}
}

func (d *Defragmenter) complete(entry *inflightEntry) bool {
	for _, source := range d.sources {
		if _, ok := entry.parts[source]; !ok {
			return false
		}
	}
	return true
}

// merge overlays parts in declared source order; later sources overwrite
// keys contributed by earlier ones.
func (d *Defragmenter) merge(entry *inflightEntry) MergedPayload {
	out := make(MergedPayload)
	for _, source := range d.sources {
		for k, v := range entry.parts[source] {
			out[k] = v
		}
	}
	return out
}
