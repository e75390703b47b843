// Package lineage resolves parent references and derives pedigree,
// breeding, and lambing structure from the flat record collection. Parent
// fields hold free text (an id or a name), so every derivation here goes
// through the tolerant resolver.
package lineage

import (
	"strings"

	"flockcore/pkg/domain"
)

// Config tunes reference resolution.
type Config struct {
	// SubstringMatch enables the loosest resolution phase: a reference
	// matches when it contains, or is contained in, a record's name.
	// Enabled by default to match historical data entry habits.
	SubstringMatch bool
}

// DefaultConfig is the resolution behavior used when none is supplied.
func DefaultConfig() Config {
	return Config{SubstringMatch: true}
}

// Index is a point-in-time snapshot of the record collection, ordered as
// loaded, with id lookup. Build one per operation; it is not updated when
// records change.
type Index struct {
	cfg     Config
	records []domain.Sheep
	byID    map[string]int
}

// NewIndex builds an index over a record snapshot.
func NewIndex(records []domain.Sheep, cfg Config) *Index {
	idx := &Index{
		cfg:     cfg,
		records: records,
		byID:    make(map[string]int, len(records)),
	}
	for i, s := range records {
		if s.ID == "" {
			continue
		}
		if _, dup := idx.byID[s.ID]; !dup {
			idx.byID[s.ID] = i
		}
	}
	return idx
}

// Records returns the snapshot in load order.
func (x *Index) Records() []domain.Sheep { return x.records }

// ByID looks a record up by exact id.
func (x *Index) ByID(id string) (domain.Sheep, bool) {
	i, ok := x.byID[id]
	if !ok {
		return domain.Sheep{}, false
	}
	return x.records[i], true
}

// ResolveExact maps a reference to a record by exact id or trimmed
// case-insensitive name only. Display code uses this; the loose Resolve is
// for dam/sire matching where historical data entry was free-form.
func (x *Index) ResolveExact(ref string) (domain.Sheep, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Sheep{}, false
	}
	if s, ok := x.ByID(ref); ok {
		return s, true
	}
	for _, s := range x.records {
		if s.Name != "" && domain.EqualFold(s.Name, ref) {
			return s, true
		}
	}
	return domain.Sheep{}, false
}

// Resolve maps a free-text parent reference to a record. Phases, strictest
// first: exact id, trimmed case-insensitive name, then (when configured)
// substring containment in either direction. First match in record order
// wins within a phase.
func (x *Index) Resolve(ref string) (domain.Sheep, bool) {
	if s, ok := x.ResolveExact(ref); ok {
		return s, true
	}
	ref = strings.TrimSpace(ref)
	if ref == "" || !x.cfg.SubstringMatch {
		return domain.Sheep{}, false
	}
	low := strings.ToLower(ref)
	for _, s := range x.records {
		if s.ID != "" && strings.Contains(low, strings.ToLower(s.ID)) {
			return s, true
		}
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			continue
		}
		if strings.Contains(name, low) || strings.Contains(low, name) {
			return s, true
		}
	}
	return domain.Sheep{}, false
}

// SameAnimal reports whether a free-text reference denotes the given
// record: either it resolves to it, or it equals the record's id or name
// directly.
func (x *Index) SameAnimal(ref string, s domain.Sheep) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	if ref == s.ID || domain.EqualFold(ref, s.Name) {
		return true
	}
	if r, ok := x.Resolve(ref); ok {
		return r.ID == s.ID
	}
	return false
}

// Progeny returns every record whose sire or dam reference resolves to the
// given animal, in record order.
func (x *Index) Progeny(s domain.Sheep) []domain.Sheep {
	var out []domain.Sheep
	for _, child := range x.records {
		if child.ID == s.ID {
			continue
		}
		if x.SameAnimal(child.Sire, s) || x.SameAnimal(child.Dam, s) {
			out = append(out, child)
		}
	}
	return out
}
