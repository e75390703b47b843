package flock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flockcore/internal/classify"
	"flockcore/internal/kv"
	"flockcore/internal/repo"
	"flockcore/pkg/domain"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	r := repo.New(kv.NewMemory(), repo.WithNow(func() time.Time { return testNow }))
	return New(r, WithNow(func() time.Time { return testNow }))
}

func mustCreate(t *testing.T, svc *Service, sheep domain.Sheep) domain.Sheep {
	t.Helper()
	created, err := svc.CreateSheep(context.Background(), sheep)
	if err != nil {
		t.Fatalf("create %s: %v", sheep.ID, err)
	}
	return created
}

func TestCreateSheepGeneratesIDAndDefaults(t *testing.T) {
	svc := newTestService(t)
	created := mustCreate(t, svc, domain.Sheep{Name: "Bella"})

	if !strings.HasPrefix(created.ID, "sheep-") {
		t.Fatalf("unexpected id %q", created.ID)
	}
	if created.Status != domain.StatusActive {
		t.Fatalf("expected active default, got %q", created.Status)
	}

	got, ok, err := svc.GetSheep(context.Background(), created.ID)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.Name != "Bella" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestCreateSheepRejectsDuplicateID(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "sheep-1", Name: "Bella"})

	_, err := svc.CreateSheep(context.Background(), domain.Sheep{ID: "sheep-1"})
	var dup repo.DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestGetSheepByName(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "sheep-1", Name: "Daisy"})

	got, ok, err := svc.GetSheep(context.Background(), "  daisy ")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.ID != "sheep-1" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestSetStatusFreezesAge(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "sheep-1", Name: "Bella", BirthDate: "2022-01-15"})

	if err := svc.SetStatus(context.Background(), "sheep-1", domain.StatusCulled); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _, _ := svc.GetSheep(context.Background(), "sheep-1")
	if got.Status != domain.StatusCulled || got.FrozenAge != "3 years 5 months" {
		t.Fatalf("unexpected freeze %+v", got)
	}

	if err := svc.SetStatus(context.Background(), "sheep-1", domain.StatusActive); err != nil {
		t.Fatalf("thaw: %v", err)
	}
	got, _, _ = svc.GetSheep(context.Background(), "sheep-1")
	if got.FrozenAge != "" {
		t.Fatalf("expected frozen age cleared, got %q", got.FrozenAge)
	}
}

func TestSetStatusMissing(t *testing.T) {
	svc := newTestService(t)
	err := svc.SetStatus(context.Background(), "ghost", domain.StatusSold)
	var nf repo.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRecordBreedingProjectsDueDate(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "ewe-1", Name: "Bella", Sex: domain.SexEwe})
	mustCreate(t, svc, domain.Sheep{ID: "ram-1", Name: "Rocky", Sex: domain.SexRam})

	outcome, err := svc.RecordBreeding(context.Background(), []string{"ewe-1"}, "ram-1", "2025-01-01")
	if err != nil {
		t.Fatalf("record breeding: %v", err)
	}
	if outcome.Applied != 1 || outcome.ExpectedDueDate != "2025-05-28" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	got, _, _ := svc.GetSheep(context.Background(), "ewe-1")
	if got.BredDate != "2025-01-01" || got.ExpectedDueDate != "2025-05-28" {
		t.Fatalf("fields not set: %+v", got)
	}
	if got.Sire != "ram-1" || got.LastBreedingSire != "ram-1" || got.LastBredDate != "2025-01-01" {
		t.Fatalf("sire cache not set: %+v", got)
	}
	if len(got.Breedings) != 1 || got.Breedings[0].Note != "Recorded breeding" {
		t.Fatalf("unexpected breedings %+v", got.Breedings)
	}

	// same date and sire again must not duplicate the trailing record
	if _, err := svc.RecordBreeding(context.Background(), []string{"ewe-1"}, "ram-1", "2025-01-01"); err != nil {
		t.Fatalf("repeat breeding: %v", err)
	}
	got, _, _ = svc.GetSheep(context.Background(), "ewe-1")
	if len(got.Breedings) != 1 {
		t.Fatalf("expected deduped history, got %+v", got.Breedings)
	}

	// a different date appends
	if _, err := svc.RecordBreeding(context.Background(), []string{"ewe-1"}, "ram-1", "2025-02-01"); err != nil {
		t.Fatalf("second breeding: %v", err)
	}
	got, _, _ = svc.GetSheep(context.Background(), "ewe-1")
	if len(got.Breedings) != 2 {
		t.Fatalf("expected appended history, got %+v", got.Breedings)
	}
}

func TestRecordBreedingCreatesStubForMissing(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.RecordBreeding(context.Background(), []string{"tag-77"}, "", "2025-01-01"); err != nil {
		t.Fatalf("record breeding: %v", err)
	}
	got, ok, _ := svc.GetSheep(context.Background(), "tag-77")
	if !ok || got.Name != "tag-77" {
		t.Fatalf("expected stub record, got ok=%v %+v", ok, got)
	}
	if got.Sire != "" {
		t.Fatalf("sire should stay empty without a selection, got %q", got.Sire)
	}
}

func TestRecordBreedingRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.RecordBreeding(context.Background(), nil, "", "2025-01-01"); err == nil {
		t.Fatal("expected empty-target error")
	}
	if _, err := svc.RecordBreeding(context.Background(), []string{"x"}, "", "not-a-date"); err == nil {
		t.Fatal("expected invalid-date error")
	}
}

func TestRecordLambingCreatesChildren(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "ewe-1", Name: "Bella", Sex: domain.SexEwe, LastBreedingSire: "ram-1"})

	created, err := svc.RecordLambing(context.Background(), LambingInput{
		MotherID: "ewe-1",
		Date:     "2025-03-10",
		Count:    2,
		Lambs: []LambInput{
			{Tag: "lamb-a", Sex: "Ewe", Weight: "4.1"},
			{Tag: "lamb-b", Sex: "Ram"},
		},
	})
	if err != nil {
		t.Fatalf("record lambing: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 children, got %v", created)
	}

	child, ok, _ := svc.GetSheep(context.Background(), "lamb-a")
	if !ok {
		t.Fatal("child record missing")
	}
	if child.Dam != "ewe-1" || child.Sire != "ram-1" || child.BirthDate != "2025-03-10" {
		t.Fatalf("unexpected child %+v", child)
	}
	if child.Sex != domain.SexEwe || child.Notes != "Born 2025-03-10" {
		t.Fatalf("unexpected child fields %+v", child)
	}

	mother, _, _ := svc.GetSheep(context.Background(), "ewe-1")
	if len(mother.Lambings) != 1 {
		t.Fatalf("expected lambing event, got %+v", mother.Lambings)
	}
	ev := mother.Lambings[0]
	if int(ev.Count) != 2 || ev.Sire != "ram-1" || len(ev.Children) != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRecordLambingValidation(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "ewe-1", Sex: domain.SexEwe})
	mustCreate(t, svc, domain.Sheep{ID: "taken", Name: "Taken"})

	cases := []struct {
		name  string
		input LambingInput
	}{
		{"missing mother", LambingInput{Date: "2025-03-10"}},
		{"unknown mother", LambingInput{MotherID: "ghost", Date: "2025-03-10"}},
		{"missing date", LambingInput{MotherID: "ewe-1"}},
		{"tag collision", LambingInput{MotherID: "ewe-1", Date: "2025-03-10", Lambs: []LambInput{{Tag: "taken"}}}},
		{"blank tag", LambingInput{MotherID: "ewe-1", Date: "2025-03-10", Lambs: []LambInput{{Tag: "  "}}}},
		{"count mismatch", LambingInput{MotherID: "ewe-1", Date: "2025-03-10", Count: 3, Lambs: []LambInput{{Tag: "x"}}}},
	}
	for _, tc := range cases {
		if _, err := svc.RecordLambing(context.Background(), tc.input); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	// a failed batch must not leave partial child records behind
	if _, ok, _ := svc.GetSheep(context.Background(), "x"); ok {
		t.Fatal("partial child record written")
	}
}

func TestRecordSaleBulk(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "s1", Name: "Bella", Sex: domain.SexEwe, BirthDate: "2022-01-15"})
	mustCreate(t, svc, domain.Sheep{ID: "s2", Name: "Rocky", Sex: domain.SexRam})

	err := svc.RecordSale(context.Background(), SaleInput{
		IDs: []string{"s1", "s2"}, Bulk: true, BulkAmount: 450.5,
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}

	for _, id := range []string{"s1", "s2"} {
		got, _, _ := svc.GetSheep(context.Background(), id)
		if got.Status != domain.StatusSold {
			t.Fatalf("%s not sold: %+v", id, got)
		}
	}
	got, _, _ := svc.GetSheep(context.Background(), "s1")
	if got.FrozenAge != "3 years 5 months" {
		t.Fatalf("age not frozen: %q", got.FrozenAge)
	}

	entries, err := svc.Repo().FinanceEntries(context.Background())
	if err != nil {
		t.Fatalf("finance entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one bulk entry, got %+v", entries)
	}
	e := entries[0]
	if e.Type != "income" || e.Amount != 450.5 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if !strings.HasPrefix(e.Desc, "Bulk sale: 2 sheep — ") || !strings.Contains(e.Desc, "Bella (ewe)") {
		t.Fatalf("unexpected description %q", e.Desc)
	}
}

func TestRecordSalePerAnimal(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "s1", Name: "Bella", Sex: domain.SexEwe})
	mustCreate(t, svc, domain.Sheep{ID: "s2", Name: "Rocky", Sex: domain.SexRam})

	err := svc.RecordSale(context.Background(), SaleInput{
		IDs:    []string{"s1", "s2"},
		Prices: map[string]float64{"s1": 120, "s2": 180},
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	entries, _ := svc.Repo().FinanceEntries(context.Background())
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %+v", entries)
	}
	if entries[0].Desc != "Bella (ewe)" || entries[1].Desc != "Rocky (ram)" {
		t.Fatalf("unexpected descriptions %+v", entries)
	}

	// missing price fails the batch
	err = svc.RecordSale(context.Background(), SaleInput{
		IDs: []string{"s1"}, Prices: map[string]float64{},
	})
	if err == nil {
		t.Fatal("expected missing-price error")
	}
}

func TestListSheepTabAndSort(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "e1", Name: "Old", Sex: domain.SexEwe, BirthDate: "2020-01-01"})
	mustCreate(t, svc, domain.Sheep{ID: "e2", Name: "Young", Sex: domain.SexEwe, BirthDate: "2024-01-01"})
	mustCreate(t, svc, domain.Sheep{ID: "r1", Name: "Ram", Sex: domain.SexRam, BirthDate: "2021-01-01"})
	mustCreate(t, svc, domain.Sheep{ID: "c1", Name: "Gone", Sex: domain.SexEwe, Status: domain.StatusCulled})

	ewes, err := svc.ListSheep(context.Background(), classify.TabActiveEwes, classify.SortState{Field: "age", Asc: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ewes) != 2 {
		t.Fatalf("expected 2 ewes, got %+v", ewes)
	}
	if ewes[0].ID != "e2" || ewes[1].ID != "e1" {
		t.Fatalf("unexpected order %s, %s", ewes[0].ID, ewes[1].ID)
	}

	all, err := svc.ListSheep(context.Background(), "", classify.SortState{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected full flock, got %d", len(all))
	}
}

func TestListSheepHealsMasterDrift(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "e1", Name: "Bella", Sex: domain.SexEwe})
	mustCreate(t, svc, domain.Sheep{ID: "e2", Name: "Daisy", Sex: domain.SexEwe})

	// Simulate external drift: the master index lost its entries while the
	// per-record documents survived.
	if err := svc.Repo().Store().Set(context.Background(), "sheepList", `[]`); err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	all, err := svc.ListSheep(context.Background(), "", classify.SortState{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	master, err := svc.Repo().MasterIndex(context.Background())
	if err != nil {
		t.Fatalf("master: %v", err)
	}
	if len(master) != 2 {
		t.Fatalf("bulk read left master index stale: %+v", master)
	}
}

func TestPersistInferredLambings(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "ewe-1", Name: "Bella", Sex: domain.SexEwe})
	mustCreate(t, svc, domain.Sheep{ID: "l1", Dam: "ewe-1", BirthDate: "2025-03-10"})
	mustCreate(t, svc, domain.Sheep{ID: "l2", Dam: "ewe-1", BirthDate: "2025-03-10"})

	changed, err := svc.PersistInferredLambings(context.Background())
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected one record changed, got %d", changed)
	}
	mother, _, _ := svc.GetSheep(context.Background(), "ewe-1")
	if len(mother.Lambings) != 1 || int(mother.Lambings[0].Count) != 2 {
		t.Fatalf("unexpected inferred history %+v", mother.Lambings)
	}

	changed, err = svc.PersistInferredLambings(context.Background())
	if err != nil || changed != 0 {
		t.Fatalf("expected idempotent second pass, changed=%d err=%v", changed, err)
	}
}

func TestPedigree(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "kid", Name: "Kid", Sire: "pa", Dam: "ma"})
	mustCreate(t, svc, domain.Sheep{ID: "pa", Name: "Pa"})
	mustCreate(t, svc, domain.Sheep{ID: "ma", Name: "Ma"})

	ped, err := svc.Pedigree(context.Background(), "Kid")
	if err != nil {
		t.Fatalf("pedigree: %v", err)
	}
	if ped.Root.ID != "kid" || len(ped.Generations) == 0 {
		t.Fatalf("unexpected pedigree %+v", ped)
	}
	gen := ped.Generations[0]
	if len(gen) != 2 || !gen[0].Known || gen[0].ID != "pa" || gen[1].ID != "ma" {
		t.Fatalf("unexpected first generation %+v", gen)
	}

	if _, err := svc.Pedigree(context.Background(), "ghost"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestSnapshot(t *testing.T) {
	svc := newTestService(t)
	mustCreate(t, svc, domain.Sheep{ID: "s1", Name: "Bella"})

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Records) != 1 || snap.GestationDays != repo.DefaultGestationDays {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
