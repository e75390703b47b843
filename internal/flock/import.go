package flock

import (
	"context"
	"fmt"
	"io"
	"strings"

	"flockcore/internal/csvio"
	"flockcore/pkg/domain"
)

// Import row actions.
const (
	ActionNew         = "New"
	ActionUpdate      = "Update"
	ActionCreateNewID = "Create (new id)"
)

// ImportRow is one previewed import row: the parsed source data, what
// applying it would do, and the id it would land on.
type ImportRow struct {
	Row      csvio.Row
	Action   string
	ID       string
	Existing *domain.Sheep
}

// ImportResult summarizes an applied import.
type ImportResult struct {
	Added   int
	Updated int
}

// PreviewImport parses CSV and reports, without writing, what applying it
// would do per row: New for unknown ids, and for id collisions either
// Update (overwrite on) or Create (new id) (overwrite off).
func (s *Service) PreviewImport(ctx context.Context, r io.Reader, overwrite bool) ([]ImportRow, error) {
	rows, err := csvio.Parse(r)
	if err != nil {
		return nil, err
	}
	return s.previewRows(ctx, rows, overwrite)
}

func (s *Service) previewRows(ctx context.Context, rows []csvio.Row, overwrite bool) ([]ImportRow, error) {
	master, err := s.repo.MasterIndex(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Sheep, len(master))
	for _, entry := range master {
		if entry.ID != "" {
			byID[entry.ID] = entry
		}
	}

	preview := make([]ImportRow, 0, len(rows))
	for idx, row := range rows {
		id := strings.TrimSpace(row.Sheep.ID)
		pr := ImportRow{Row: row, Action: ActionNew, ID: id}
		if pr.ID == "" {
			pr.ID = s.importID(idx)
		}
		if existing, ok := byID[id]; ok && id != "" {
			dup := existing
			pr.Existing = &dup
			if overwrite {
				pr.Action = ActionUpdate
			} else {
				pr.Action = ActionCreateNewID
				pr.ID = s.importID(idx)
			}
		}
		preview = append(preview, pr)
	}
	return preview, nil
}

func (s *Service) importID(idx int) string {
	return fmt.Sprintf("sheep-%d-%d", s.nowFn().UnixMilli(), idx)
}

// ImportCSV parses and applies an import in one step.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, overwrite bool) (ImportResult, error) {
	rows, err := csvio.Parse(r)
	if err != nil {
		return ImportResult{}, err
	}
	return s.ApplyImport(ctx, rows, overwrite)
}

// ApplyImport writes the parsed rows. Updates merge field-by-field, an
// empty cell keeping the existing value; the lambings history is replaced
// only when the cell was present. Rows colliding on id without overwrite
// become new records under a generated id.
func (s *Service) ApplyImport(ctx context.Context, rows []csvio.Row, overwrite bool) (ImportResult, error) {
	var result ImportResult
	err := s.observe(ctx, "import_csv", func(ctx context.Context) error {
		preview, err := s.previewRows(ctx, rows, overwrite)
		if err != nil {
			return err
		}
		for _, pr := range preview {
			sheep := pr.Row.Sheep
			sheep.ID = pr.ID
			if pr.Action == ActionUpdate && pr.Existing != nil {
				sheep = mergeImport(*pr.Existing, pr.Row.Sheep)
			}
			if pr.Row.HasLambings {
				sheep.Lambings = pr.Row.Lambings
			} else if pr.Action == ActionUpdate && pr.Existing != nil {
				sheep.Lambings = pr.Existing.Lambings
			}
			if err := s.repo.Save(ctx, sheep); err != nil {
				return err
			}
			if pr.Action == ActionUpdate {
				result.Updated++
			} else {
				result.Added++
			}
		}
		s.log.Info("import applied", "added", result.Added, "updated", result.Updated)
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// mergeImport overlays the imported fields onto the existing record,
// keeping the existing value wherever the import cell was empty. Fields
// outside the import layout survive untouched.
func mergeImport(existing, in domain.Sheep) domain.Sheep {
	out := existing
	pick := func(v, fallback string) string {
		if v != "" {
			return v
		}
		return fallback
	}
	out.Name = pick(in.Name, existing.Name)
	out.Breed = pick(in.Breed, existing.Breed)
	if in.Sex != "" {
		out.Sex = in.Sex
	}
	out.Status = pick(in.Status, existing.Status)
	out.Age = pick(in.Age, existing.Age)
	out.Weight = pick(in.Weight, existing.Weight)
	out.BirthDate = pick(in.BirthDate, existing.BirthDate)
	out.Sire = pick(in.Sire, existing.Sire)
	out.Dam = pick(in.Dam, existing.Dam)
	out.Pedigree = pick(in.Pedigree, existing.Pedigree)
	out.Notes = pick(in.Notes, existing.Notes)
	out.ExpectedDueDate = pick(in.ExpectedDueDate, existing.ExpectedDueDate)
	return out
}

// Template renders the import CSV layout, optionally pre-filled with the
// current flock (the export path).
func (s *Service) Template(ctx context.Context, includeData bool) (string, error) {
	var records []domain.Sheep
	if includeData {
		all, err := s.repo.GetAll(ctx)
		if err != nil {
			return "", err
		}
		records = all
	}
	return csvio.Template(records, s.nowFn())
}
