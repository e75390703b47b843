// Package csvio handles the CSV interchange formats: record import with
// the header-driven template layout, template generation, and report table
// export.
package csvio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"flockcore/internal/derive"
	"flockcore/internal/report"
	"flockcore/pkg/domain"
)

// TemplateHeaders is the import/export column layout.
var TemplateHeaders = []string{
	"id", "name", "breed", "sex", "age", "weight", "birthDate",
	"sire", "dam", "pedigree", "notes", "expectedDueDate", "lambings",
}

// Row is one parsed import row: the animal fields present in the file plus
// the decoded lambings cell. HasLambings distinguishes an empty cell (leave
// existing history alone) from a present one.
type Row struct {
	Sheep       domain.Sheep
	Lambings    []domain.LambingEvent
	HasLambings bool
}

// Parse reads header-driven CSV into import rows. The header row names the
// columns; unknown columns are ignored, order does not matter, and a UTF-8
// BOM is tolerated. Cells are trimmed.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no rows")
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []Row
	for _, rec := range records[1:] {
		cells := map[string]string{}
		blank := true
		for i, h := range headers {
			if h == "" || i >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[i])
			cells[h] = v
			if v != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, rowFromCells(cells))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows found in csv")
	}
	return rows, nil
}

func rowFromCells(cells map[string]string) Row {
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := cells[k]; ok && v != "" {
				return v
			}
		}
		return ""
	}
	row := Row{
		Sheep: domain.Sheep{
			ID:              pick("id"),
			Name:            pick("name"),
			Breed:           pick("breed"),
			Sex:             domain.NormalizeSex(pick("sex", "Sex", "SEX")),
			Status:          pick("status"),
			Age:             pick("age"),
			Weight:          pick("weight"),
			BirthDate:       pick("birthDate", "birthdate"),
			Sire:            pick("sire"),
			Dam:             pick("dam"),
			Pedigree:        pick("pedigree"),
			Notes:           pick("notes"),
			ExpectedDueDate: pick("expectedDueDate"),
		},
	}
	if cell := pick("lambings"); cell != "" {
		if events, ok := ParseLambingsCell(cell); ok {
			row.Lambings = events
			row.HasLambings = true
		}
	}
	return row
}

// ParseLambingsCell decodes the lambings column: a JSON array of events,
// or the compact "date:count;date:count" form. Items with no count keep
// count zero. The bool is false when the cell yields nothing.
func ParseLambingsCell(cell string) ([]domain.LambingEvent, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, false
	}

	var events []domain.LambingEvent
	if err := json.Unmarshal([]byte(cell), &events); err == nil {
		return events, true
	}

	events = nil
	for _, part := range strings.Split(cell, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.SplitN(part, ":", 2)
		ev := domain.LambingEvent{Date: strings.TrimSpace(pieces[0])}
		if len(pieces) == 2 {
			if n, err := strconv.Atoi(strings.TrimSpace(pieces[1])); err == nil {
				ev.Count = domain.FlexInt(n)
			}
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil, false
	}
	return events, true
}

// Template renders the import template. With records, current data fills
// the rows; otherwise a single example row shows the expected shapes.
func Template(records []domain.Sheep, now time.Time) (string, error) {
	rows := [][]string{TemplateHeaders}
	if len(records) > 0 {
		for _, s := range records {
			age := s.Age
			if age == "" && s.BirthDate != "" {
				age = derive.AgeText(s.BirthDate, now)
			}
			lambings := ""
			if len(s.Lambings) > 0 {
				data, err := json.Marshal(s.Lambings)
				if err != nil {
					return "", fmt.Errorf("encode lambings for %s: %w", s.ID, err)
				}
				lambings = string(data)
			}
			rows = append(rows, []string{
				s.ID, s.Name, s.Breed, string(s.Sex), age, s.Weight, s.BirthDate,
				s.Sire, s.Dam, s.Pedigree, s.Notes, s.ExpectedDueDate, lambings,
			})
		}
	} else {
		rows = append(rows, []string{
			"", "Bella", "Katahdin", "Ewe", "3 years", "140", "2022-05-12",
			"sire-tag", "dam-tag", "Grandparents: ...", "Healthy", "2026-02-10",
			`[{"date":"2026-02-10","count":2}]`,
		})
	}
	return encodeAllQuoted(rows), nil
}

// EncodeTable renders a report table as CSV: heading row first.
func EncodeTable(tbl report.Table) string {
	rows := make([][]string, 0, len(tbl.Rows)+1)
	rows = append(rows, tbl.Columns)
	rows = append(rows, tbl.Rows...)
	return encodeAllQuoted(rows)
}

// encodeAllQuoted writes every cell quoted, the way downstream spreadsheet
// users expect these files to look.
func encodeAllQuoted(rows [][]string) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString(`"`)
			b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			b.WriteString(`"`)
		}
	}
	return b.String()
}
