// Package flock is the orchestrating service over the record repository:
// create/update/delete, breeding and lambing recording, sales, imports,
// and report/export entry points.
package flock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"flockcore/internal/classify"
	"flockcore/internal/derive"
	"flockcore/internal/exporter"
	"flockcore/internal/lineage"
	"flockcore/internal/obs"
	"flockcore/internal/repo"
	"flockcore/pkg/domain"
)

// Service coordinates flock operations over a Repository.
type Service struct {
	repo    *repo.Repository
	log     obs.Logger
	metrics obs.MetricsRecorder
	tracer  obs.Tracer
	nowFn   func() time.Time
	lineage lineage.Config
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(l obs.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics attaches a metrics recorder.
func WithMetrics(m obs.MetricsRecorder) Option { return func(s *Service) { s.metrics = m } }

// WithTracer attaches a tracer.
func WithTracer(t obs.Tracer) Option { return func(s *Service) { s.tracer = t } }

// WithNow overrides the clock.
func WithNow(fn func() time.Time) Option { return func(s *Service) { s.nowFn = fn } }

// WithLineageConfig sets the parent-resolution tolerance.
func WithLineageConfig(cfg lineage.Config) Option { return func(s *Service) { s.lineage = cfg } }

// New constructs a Service over the repository.
func New(r *repo.Repository, opts ...Option) *Service {
	s := &Service{
		repo:    r,
		log:     obs.NopLogger{},
		metrics: obs.NopMetrics{},
		tracer:  obs.NopTracer{},
		nowFn:   time.Now,
		lineage: lineage.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repo exposes the underlying repository for settings access.
func (s *Service) Repo() *repo.Repository { return s.repo }

func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := s.nowFn()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.nowFn().Sub(start))
	return err
}

func (s *Service) newID() string {
	return fmt.Sprintf("sheep-%d", s.nowFn().UnixMilli())
}

// CreateSheep registers a new animal. A missing id is generated from the
// current time; an existing id is rejected before any write. Status
// defaults to active.
func (s *Service) CreateSheep(ctx context.Context, sheep domain.Sheep) (domain.Sheep, error) {
	err := s.observe(ctx, "create_sheep", func(ctx context.Context) error {
		if sheep.ID == "" {
			sheep.ID = s.newID()
		}
		if sheep.Status == "" {
			sheep.Status = domain.StatusActive
		}
		if _, ok, err := s.repo.Get(ctx, sheep.ID); err != nil {
			return err
		} else if ok {
			return repo.DuplicateIDError{ID: sheep.ID}
		}
		if err := s.repo.Save(ctx, sheep); err != nil {
			return err
		}
		s.log.Info("sheep created", "id", sheep.ID, "name", sheep.Name)
		return nil
	})
	if err != nil {
		return domain.Sheep{}, err
	}
	return sheep, nil
}

// UpdateSheep replaces an existing record.
func (s *Service) UpdateSheep(ctx context.Context, sheep domain.Sheep) error {
	return s.observe(ctx, "update_sheep", func(ctx context.Context) error {
		_, ok, err := s.repo.Get(ctx, sheep.ID)
		if err != nil {
			return err
		}
		if !ok {
			return repo.NotFoundError{ID: sheep.ID}
		}
		return s.repo.Save(ctx, sheep)
	})
}

// GetSheep resolves an animal by id or (case-insensitive, trimmed) name
// and returns its full record.
func (s *Service) GetSheep(ctx context.Context, ref string) (domain.Sheep, bool, error) {
	if sheep, ok, err := s.repo.Get(ctx, ref); err != nil || ok {
		return sheep, ok, err
	}
	entry, ok, err := s.repo.FindByIDOrName(ctx, ref)
	if err != nil || !ok {
		return domain.Sheep{}, false, err
	}
	if sheep, found, err := s.repo.Get(ctx, entry.ID); err != nil || found {
		return sheep, found, err
	}
	return entry, true, nil
}

// DeleteSheep removes the record, its master entry, and its notes alias.
func (s *Service) DeleteSheep(ctx context.Context, id string) error {
	return s.observe(ctx, "delete_sheep", func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
}

// SaveNotes updates an animal's notes.
func (s *Service) SaveNotes(ctx context.Context, id, notes string) error {
	return s.observe(ctx, "save_notes", func(ctx context.Context) error {
		return s.repo.SaveNotes(ctx, id, notes)
	})
}

// SetStatus applies a status change with its age freeze/unfreeze side
// effect.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	return s.observe(ctx, "set_status", func(ctx context.Context) error {
		sheep, ok, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return repo.NotFoundError{ID: id}
		}
		return s.repo.Save(ctx, derive.ApplyStatus(sheep, status, s.nowFn()))
	})
}

// ensureIntegrity heals record/master drift ahead of a bulk read. The
// reconciliation is idempotent, so every bulk entry point runs it.
func (s *Service) ensureIntegrity(ctx context.Context) error {
	_, err := s.repo.ReconcileMasterIndex(ctx)
	return err
}

// ListSheep returns the animals matching a dashboard tab (empty keeps
// all), ordered by the given sort state.
func (s *Service) ListSheep(ctx context.Context, tab string, state classify.SortState) ([]domain.Sheep, error) {
	var out []domain.Sheep
	err := s.observe(ctx, "list_sheep", func(ctx context.Context) error {
		if err := s.ensureIntegrity(ctx); err != nil {
			return err
		}
		all, err := s.repo.GetAll(ctx)
		if err != nil {
			return err
		}
		now := s.nowFn()
		kept := all
		if tab != "" {
			kept = make([]domain.Sheep, 0, len(all))
			for _, sheep := range all {
				if classify.MatchesTab(sheep, tab, now) {
					kept = append(kept, sheep)
				}
			}
		}
		if state.Field != "" {
			idx := lineage.NewIndex(all, s.lineage)
			sorter := classify.Sorter{Now: now, Summarize: idx.LambingSummary}
			sort.SliceStable(kept, func(i, j int) bool {
				return sorter.Compare(kept[i], kept[j], state) < 0
			})
		}
		out = kept
		return nil
	})
	return out, err
}

// BreedingOutcome reports what a breeding recording produced.
type BreedingOutcome struct {
	Applied         int
	ExpectedDueDate string
}

// RecordBreeding marks the given animals bred on date to an optional
// sire: it appends a breeding record (skipping an identical trailing
// entry), caches the sire and bred date for later lambing defaults, and
// projects the expected due date from the gestation length. Missing
// records get a minimal stub so bulk operations never lose a member.
func (s *Service) RecordBreeding(ctx context.Context, ids []string, sire, date string) (BreedingOutcome, error) {
	var outcome BreedingOutcome
	err := s.observe(ctx, "record_breeding", func(ctx context.Context) error {
		if len(ids) == 0 {
			return fmt.Errorf("no sheep selected for breeding")
		}
		bred, ok := domain.ParseDate(date)
		if !ok {
			return fmt.Errorf("invalid bred date %q", date)
		}
		due := domain.ISODate(bred.AddDate(0, 0, s.repo.GestationDays(ctx)))

		for _, id := range ids {
			sheep, found, err := s.repo.Get(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				sheep = domain.Sheep{ID: id, Name: id}
			}
			if sire != "" {
				sheep.Sire = sire
				sheep.LastBreedingSire = sire
			}
			sheep.LastBredDate = date
			if n := len(sheep.Breedings); n == 0 ||
				sheep.Breedings[n-1].Date != date || sheep.Breedings[n-1].Sire != sire {
				sheep.Breedings = append(sheep.Breedings, domain.BreedingRecord{
					Date: date, Sire: sire, Note: "Recorded breeding",
				})
			}
			sheep.BredDate = date
			sheep.ExpectedDueDate = due
			if err := s.repo.Save(ctx, sheep); err != nil {
				return err
			}
			outcome.Applied++
		}
		outcome.ExpectedDueDate = due
		s.log.Info("breeding recorded", "count", outcome.Applied, "due", due)

		_, err := s.PersistInferredLambings(ctx)
		return err
	})
	if err != nil {
		return BreedingOutcome{}, err
	}
	return outcome, nil
}

// LambInput describes one newborn in a lambing recording.
type LambInput struct {
	Tag    string
	Sex    string
	Weight string
}

// LambingInput describes a lambing recording request.
type LambingInput struct {
	MotherID string
	Date     string
	Count    int
	Sire     string // optional; defaults to the mother's cached breeding sire
	Lambs    []LambInput
}

// RecordLambing validates and records a lambing: new child records are
// created (dam set to the mother, sire resolved from the explicit choice
// then the mother's cached breeding sire) and the event is appended to the
// mother's lambing history. All tag collisions are rejected before any
// write.
func (s *Service) RecordLambing(ctx context.Context, input LambingInput) ([]string, error) {
	var created []string
	err := s.observe(ctx, "record_lambing", func(ctx context.Context) error {
		if input.MotherID == "" {
			return fmt.Errorf("mother required for lambing")
		}
		if input.Date == "" {
			return fmt.Errorf("birth date required")
		}
		mother, ok, err := s.repo.Get(ctx, input.MotherID)
		if err != nil {
			return err
		}
		if !ok {
			return repo.NotFoundError{ID: input.MotherID}
		}

		count := input.Count
		if count <= 0 {
			count = len(input.Lambs)
		}
		if count <= 0 {
			count = 1
		}
		if len(input.Lambs) > 0 && len(input.Lambs) != count {
			return fmt.Errorf("expected %d lamb tags, got %d", count, len(input.Lambs))
		}
		for i, lamb := range input.Lambs {
			tag := strings.TrimSpace(lamb.Tag)
			if tag == "" {
				return fmt.Errorf("missing tag for lamb #%d", i+1)
			}
			if _, exists, err := s.repo.Get(ctx, tag); err != nil {
				return err
			} else if exists {
				return repo.DuplicateIDError{ID: tag}
			}
		}

		sire := input.Sire
		if sire == "" {
			sire = mother.LastBreedingSire
		}
		if sire == "" {
			sire = mother.Sire
		}

		for _, lamb := range input.Lambs {
			tag := strings.TrimSpace(lamb.Tag)
			child := domain.Sheep{
				ID:        tag,
				Name:      tag,
				Sex:       domain.NormalizeSex(lamb.Sex),
				Status:    domain.StatusActive,
				Weight:    lamb.Weight,
				BirthDate: input.Date,
				Sire:      sire,
				Dam:       input.MotherID,
				Notes:     "Born " + input.Date,
			}
			if err := s.repo.Save(ctx, child); err != nil {
				return err
			}
			created = append(created, tag)
		}

		mother.Lambings = append(mother.Lambings, domain.LambingEvent{
			Date:     input.Date,
			Count:    domain.FlexInt(count),
			Sire:     sire,
			Children: append(domain.FlexStrings(nil), created...),
		})
		if err := s.repo.Save(ctx, mother); err != nil {
			return err
		}
		s.log.Info("lambing recorded", "mother", input.MotherID, "count", count, "created", len(created))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SaleInput describes a sale recording request. Bulk mode records one
// total amount and a single ledger entry; otherwise every animal needs a
// price and gets its own entry.
type SaleInput struct {
	IDs        []string
	Bulk       bool
	BulkAmount float64
	Prices     map[string]float64
}

// RecordSale marks the animals sold (freezing their displayed age) and
// appends the matching income entries to the finance ledger. Missing
// records are skipped rather than failing the batch.
func (s *Service) RecordSale(ctx context.Context, input SaleInput) error {
	return s.observe(ctx, "record_sale", func(ctx context.Context) error {
		if len(input.IDs) == 0 {
			return fmt.Errorf("no animals selected for sale")
		}
		now := s.nowFn()

		if input.Bulk {
			if input.BulkAmount <= 0 {
				return fmt.Errorf("invalid sale amount")
			}
			var labels []string
			for _, id := range input.IDs {
				sheep, ok, err := s.repo.Get(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := s.repo.Save(ctx, derive.ApplyStatus(sheep, domain.StatusSold, now)); err != nil {
					return err
				}
				labels = append(labels, saleLabel(sheep))
			}
			desc := fmt.Sprintf("Bulk sale: %d sheep — %s", len(input.IDs), strings.Join(labels, ", "))
			_, err := s.repo.AppendFinanceEntry(ctx, "income", "", input.BulkAmount, desc)
			return err
		}

		for _, id := range input.IDs {
			amount, ok := input.Prices[id]
			if !ok || amount <= 0 {
				return fmt.Errorf("invalid price for %s", id)
			}
			sheep, found, err := s.repo.Get(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if err := s.repo.Save(ctx, derive.ApplyStatus(sheep, domain.StatusSold, now)); err != nil {
				return err
			}
			if _, err := s.repo.AppendFinanceEntry(ctx, "income", "", amount, saleLabel(sheep)); err != nil {
				return err
			}
		}
		return nil
	})
}

func saleLabel(s domain.Sheep) string {
	name := s.Name
	if name == "" {
		name = "Unnamed"
	}
	if s.Sex != "" {
		return fmt.Sprintf("%s (%s)", name, s.Sex)
	}
	return name
}

// PersistInferredLambings writes inferred lambing events onto ewes whose
// recorded history is empty. Idempotent; returns how many records changed.
func (s *Service) PersistInferredLambings(ctx context.Context) (int, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	idx := lineage.NewIndex(all, s.lineage)
	changed := 0
	for _, sheep := range all {
		updated, dirty := idx.ApplyInferred(sheep)
		if !dirty {
			continue
		}
		if err := s.repo.Save(ctx, updated); err != nil {
			return changed, err
		}
		changed++
	}
	if changed > 0 {
		s.log.Info("inferred lambings persisted", "records", changed)
	}
	return changed, nil
}

// Reconcile heals per-record vs master-index drift.
func (s *Service) Reconcile(ctx context.Context) (bool, error) {
	var repaired bool
	err := s.observe(ctx, "reconcile", func(ctx context.Context) error {
		var err error
		repaired, err = s.repo.ReconcileMasterIndex(ctx)
		return err
	})
	return repaired, err
}

// Pedigree builds an animal's ancestor chart at the configured depth.
func (s *Service) Pedigree(ctx context.Context, ref string) (lineage.Pedigree, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return lineage.Pedigree{}, err
	}
	idx := lineage.NewIndex(all, s.lineage)
	root, ok := idx.ResolveExact(ref)
	if !ok {
		return lineage.Pedigree{}, repo.NotFoundError{ID: ref}
	}
	return idx.BuildPedigree(root, s.repo.PedigreeGenerations(ctx)), nil
}

// Snapshot implements the export source contract: the full flock plus the
// gestation setting.
func (s *Service) Snapshot(ctx context.Context) (exporter.Snapshot, error) {
	if err := s.ensureIntegrity(ctx); err != nil {
		return exporter.Snapshot{}, err
	}
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return exporter.Snapshot{}, err
	}
	return exporter.Snapshot{
		Records:       all,
		GestationDays: s.repo.GestationDays(ctx),
	}, nil
}
