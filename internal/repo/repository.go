// Package repo owns the canonical collection of animal records: the
// per-entity documents, the denormalized master index, and the singleton
// settings/ledger documents, all persisted through the kv store.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"flockcore/internal/kv"
	"flockcore/internal/obs"
	"flockcore/pkg/domain"
)

// Logical key layout in the kv store.
const (
	sheepKeyPrefix = "sheep-"
	masterIndexKey = "sheepList"
	notesKeyPrefix = "notes_"

	gestationDaysKey       = "gestationDays"
	nursingWindowDaysKey   = "nursingWindowDays"
	pedigreeGenerationsKey = "pedigreeGenerations"
	financeEntriesKey      = "financeEntries"
	journalEntriesKey      = "reports"
	siteThemeKey           = "siteTheme"
	appearanceKey          = "appearanceSettings"
	dashboardColumnsKey    = "dashboardColumns"
	columnWidthsKeyPrefix  = "table-colwidths-"
)

// Defaults applied when a settings document is absent or unparseable.
const (
	DefaultGestationDays       = 147
	DefaultNursingWindowDays   = 90
	DefaultPedigreeGenerations = 3
)

// NotFoundError reports a record lookup miss on a user-initiated action.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("sheep %q not found", e.ID)
}

// DuplicateIDError reports an id collision on creation.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("sheep %q already exists", e.ID)
}

// Repository provides typed access to the record collection. All writes are
// serialized behind a single mutex to preserve the effectively-single-writer
// invariant of the original storage model.
type Repository struct {
	store kv.Store
	log   obs.Logger
	nowFn func() time.Time
	mu    sync.Mutex
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the structured logger.
func WithLogger(l obs.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.log = l
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(fn func() time.Time) Option {
	return func(r *Repository) {
		if fn != nil {
			r.nowFn = fn
		}
	}
}

// New constructs a repository over the supplied store.
func New(store kv.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		log:   obs.NopLogger{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store exposes the underlying kv store.
func (r *Repository) Store() kv.Store { return r.store }

// Now returns the repository clock reading.
func (r *Repository) Now() time.Time { return r.nowFn() }

// SheepKey returns the storage key for an entity id.
func SheepKey(id string) string { return sheepKeyPrefix + id }

// GetAll enumerates every per-entity record. Records that fail to decode
// are skipped, never fatal: storage is externally editable. A record
// missing its own id gets one synthesized from the storage key.
func (r *Repository) GetAll(ctx context.Context) ([]domain.Sheep, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate keys: %w", err)
	}
	var out []domain.Sheep
	for _, key := range keys {
		if !strings.HasPrefix(key, sheepKeyPrefix) {
			continue
		}
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var s domain.Sheep
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			r.log.Debug("skipping malformed record", "key", key, "err", err)
			continue
		}
		if s.ID == "" {
			s.ID = strings.TrimPrefix(key, sheepKeyPrefix)
		}
		out = append(out, s)
	}
	return out, nil
}

// Get loads one record by id. The bool is false when absent or malformed.
func (r *Repository) Get(ctx context.Context, id string) (domain.Sheep, bool, error) {
	raw, ok, err := r.store.Get(ctx, SheepKey(id))
	if err != nil {
		return domain.Sheep{}, false, err
	}
	if !ok {
		return domain.Sheep{}, false, nil
	}
	var s domain.Sheep
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		r.log.Debug("skipping malformed record", "id", id, "err", err)
		return domain.Sheep{}, false, nil
	}
	if s.ID == "" {
		s.ID = id
	}
	return s, true, nil
}

// FindByIDOrName resolves a reference against the master index: exact id
// match first, then trimmed case-insensitive name match. Returns false
// (not an error) when nothing matches.
func (r *Repository) FindByIDOrName(ctx context.Context, key string) (domain.Sheep, bool, error) {
	if strings.TrimSpace(key) == "" {
		return domain.Sheep{}, false, nil
	}
	entries, err := r.MasterIndex(ctx)
	if err != nil {
		return domain.Sheep{}, false, err
	}
	for _, s := range entries {
		if s.ID == key {
			return s, true, nil
		}
	}
	for _, s := range entries {
		if s.Name != "" && domain.EqualFold(s.Name, key) {
			return s, true, nil
		}
	}
	return domain.Sheep{}, false, nil
}

// MasterIndex returns the decoded master list. Malformed entries are
// skipped.
func (r *Repository) MasterIndex(ctx context.Context) ([]domain.Sheep, error) {
	raws, err := r.rawMaster(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Sheep, 0, len(raws))
	for _, raw := range raws {
		var s domain.Sheep
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s.ID == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Repository) rawMaster(ctx context.Context) ([]json.RawMessage, error) {
	raw, ok, err := r.store.Get(ctx, masterIndexKey)
	if err != nil {
		return nil, fmt.Errorf("load master index: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.log.Warn("master index unparseable, treating as empty", "err", err)
		return nil, nil
	}
	return entries, nil
}

func (r *Repository) writeMaster(ctx context.Context, entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode master index: %w", err)
	}
	return r.store.Set(ctx, masterIndexKey, string(data))
}

// entryID extracts the id field of a raw master entry.
func entryID(raw json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// mergeShallow overlays the fields present in overlay onto base at the
// top level: master-fields overridden by entity-fields. Used only during
// reconciliation, where master-only fields on a drifted entry should
// survive the rebuild; Save replaces entries outright.
func mergeShallow(base, overlay json.RawMessage) json.RawMessage {
	var b map[string]json.RawMessage
	if len(base) > 0 {
		_ = json.Unmarshal(base, &b)
	}
	var o map[string]json.RawMessage
	if err := json.Unmarshal(overlay, &o); err != nil {
		return base
	}
	if b == nil {
		return overlay
	}
	for k, v := range o {
		b[k] = v
	}
	out, err := json.Marshal(b)
	if err != nil {
		return overlay
	}
	return out
}

// canonical re-marshals a raw object so field order is deterministic,
// making shallow comparison a byte comparison.
func canonical(raw json.RawMessage) []byte {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	out, err := json.Marshal(m)
	if err != nil {
		return raw
	}
	return out
}

// Save writes the per-entity record, then replaces (or appends) the master
// index entry for that id. Replacement, not merge: a field cleared on the
// record is dropped from its serialized form, and merging would keep the
// stale master value alive. The record is normalized at this boundary.
func (r *Repository) Save(ctx context.Context, s domain.Sheep) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("save: missing id")
	}
	s = domain.Normalize(s)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sheep %s: %w", s.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Set(ctx, SheepKey(s.ID), string(data)); err != nil {
		return fmt.Errorf("write sheep %s: %w", s.ID, err)
	}
	return r.upsertMasterLocked(ctx, s.ID, data)
}

func (r *Repository) upsertMasterLocked(ctx context.Context, id string, record json.RawMessage) error {
	entries, err := r.rawMaster(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, raw := range entries {
		if entryID(raw) == id {
			entries[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, record)
	}
	return r.writeMaster(ctx, entries)
}

// Delete removes the per-entity record, its master index entry, and the
// legacy notes alias.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Delete(ctx, SheepKey(id)); err != nil {
		return fmt.Errorf("delete sheep %s: %w", id, err)
	}
	if err := r.store.Delete(ctx, notesKeyPrefix+id); err != nil {
		return fmt.Errorf("delete notes alias %s: %w", id, err)
	}
	entries, err := r.rawMaster(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, raw := range entries {
		if entryID(raw) != id {
			kept = append(kept, raw)
		}
	}
	return r.writeMaster(ctx, kept)
}

// SaveNotes updates the notes field in the per-entity record and keeps the
// legacy notes_<id> alias key in sync, then resynchronizes the master entry.
func (r *Repository) SaveNotes(ctx context.Context, id, notes string) error {
	s, ok, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NotFoundError{ID: id}
	}
	s.Notes = notes
	if err := r.Save(ctx, s); err != nil {
		return err
	}
	if err := r.store.Set(ctx, notesKeyPrefix+id, notes); err != nil {
		return fmt.Errorf("write notes alias %s: %w", id, err)
	}
	return nil
}

// LegacyNotes reads the notes_<id> alias key.
func (r *Repository) LegacyNotes(ctx context.Context, id string) (string, bool, error) {
	return r.store.Get(ctx, notesKeyPrefix+id)
}

// ReconcileMasterIndex compares the id-set of scanned per-entity records
// against the master index. On divergence the master is rebuilt by merging
// each scanned entity over any existing master copy; when the id-sets match
// but merged entries differ (stale fields), the differing entries are
// resynchronized. Idempotent and safe to call before any bulk read.
// Divergence is auto-healed with an informational log, never surfaced.
func (r *Repository) ReconcileMasterIndex(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.GetAll(ctx)
	if err != nil {
		return false, err
	}
	scanned := make(map[string]json.RawMessage, len(all))
	scannedIDs := make([]string, 0, len(all))
	for _, s := range all {
		if s.ID == "" {
			continue
		}
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		if _, dup := scanned[s.ID]; !dup {
			scannedIDs = append(scannedIDs, s.ID)
		}
		scanned[s.ID] = data
	}

	masterRaws, err := r.rawMaster(ctx)
	if err != nil {
		return false, err
	}
	master := make(map[string]json.RawMessage, len(masterRaws))
	masterIDs := make([]string, 0, len(masterRaws))
	for _, raw := range masterRaws {
		id := entryID(raw)
		if id == "" {
			continue
		}
		if _, dup := master[id]; !dup {
			masterIDs = append(masterIDs, id)
		}
		master[id] = raw
	}

	sort.Strings(scannedIDs)
	sort.Strings(masterIDs)

	if !equalStrings(scannedIDs, masterIDs) {
		merged := make([]json.RawMessage, 0, len(scannedIDs))
		for _, id := range scannedIDs {
			merged = append(merged, mergeShallow(master[id], scanned[id]))
		}
		if err := r.writeMaster(ctx, merged); err != nil {
			return false, err
		}
		r.log.Info("integrity: rebuilt master index from scanned records",
			"scanned", len(scannedIDs), "was", len(masterIDs))
		return true, nil
	}

	differs := false
	merged := make([]json.RawMessage, 0, len(scannedIDs))
	for _, id := range scannedIDs {
		m := master[id]
		combined := mergeShallow(m, scanned[id])
		if !bytes.Equal(canonical(combined), canonical(m)) {
			differs = true
		}
		merged = append(merged, combined)
	}
	if !differs {
		return false, nil
	}
	if err := r.writeMaster(ctx, merged); err != nil {
		return false, err
	}
	r.log.Info("integrity: synchronized master index entries", "scanned", len(scannedIDs))
	return true, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
