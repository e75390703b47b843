package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"flockcore/pkg/domain"
)

// FinanceEntries returns the persisted financial ledger, oldest first.
func (r *Repository) FinanceEntries(ctx context.Context) ([]domain.FinanceEntry, error) {
	raw, ok, err := r.store.Get(ctx, financeEntriesKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entries []domain.FinanceEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.log.Warn("finance ledger unparseable, treating as empty", "err", err)
		return nil, nil
	}
	return entries, nil
}

// AppendFinanceEntry appends one ledger entry. Amounts are rounded to
// cents. Date defaults to today when empty.
func (r *Repository) AppendFinanceEntry(ctx context.Context, entryType, date string, amount float64, desc string) (domain.FinanceEntry, error) {
	if entryType != "income" && entryType != "expense" {
		return domain.FinanceEntry{}, fmt.Errorf("unknown finance entry type %q", entryType)
	}
	if strings.TrimSpace(date) == "" {
		date = domain.ISODate(r.nowFn())
	}
	entry := domain.FinanceEntry{
		ID:     "fin-" + uuid.NewString(),
		Type:   entryType,
		Date:   date,
		Amount: math.Round(amount*100) / 100,
		Desc:   desc,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := r.FinanceEntries(ctx)
	if err != nil {
		return domain.FinanceEntry{}, err
	}
	entries = append(entries, entry)
	data, err := json.Marshal(entries)
	if err != nil {
		return domain.FinanceEntry{}, fmt.Errorf("encode finance ledger: %w", err)
	}
	if err := r.store.Set(ctx, financeEntriesKey, string(data)); err != nil {
		return domain.FinanceEntry{}, err
	}
	return entry, nil
}

// JournalEntries returns the free-text journal, oldest first.
func (r *Repository) JournalEntries(ctx context.Context) ([]domain.JournalEntry, error) {
	raw, ok, err := r.store.Get(ctx, journalEntriesKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entries []domain.JournalEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.log.Warn("journal unparseable, treating as empty", "err", err)
		return nil, nil
	}
	return entries, nil
}

// AppendJournalEntry appends one dated free-text journal entry.
func (r *Repository) AppendJournalEntry(ctx context.Context, text string) (domain.JournalEntry, error) {
	if strings.TrimSpace(text) == "" {
		return domain.JournalEntry{}, fmt.Errorf("journal entry text is empty")
	}
	entry := domain.JournalEntry{
		ID:   "jrn-" + uuid.NewString(),
		Date: domain.ISODate(r.nowFn()),
		Text: text,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := r.JournalEntries(ctx)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	entries = append(entries, entry)
	data, err := json.Marshal(entries)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("encode journal: %w", err)
	}
	if err := r.store.Set(ctx, journalEntriesKey, string(data)); err != nil {
		return domain.JournalEntry{}, err
	}
	return entry, nil
}
