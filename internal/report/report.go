// Package report assembles the tabular reports and calendar event feeds
// derived from the record collection.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"flockcore/internal/classify"
	"flockcore/internal/derive"
	"flockcore/internal/lineage"
	"flockcore/pkg/domain"
)

// Report type identifiers.
const (
	TypeAgeAsc          = "ageAsc"
	TypeAgeDesc         = "ageDesc"
	TypeDueDates        = "dueDates"
	TypeWeightGain      = "weightGain"
	TypeBreedingHistory = "breedingHistory"
	TypeLambReport      = "lambReport"
	TypeHerdReport      = "herdReport"
	TypeRamReport       = "ramReport"
	TypeEweReport       = "eweReport"
	TypeSireOffspring   = "sireOffspring"
	TypeDamOffspring    = "damOffspring"
	TypeFamachaBCS      = "famachaBcs"
	TypeDeathReport     = "deathReport"
	TypeSoldReport      = "soldReport"
	TypeCullReport      = "cullReport"
	TypeLambingCalendar = "lambingCalendar"
)

// Table is a rendered report: column headings plus string rows. When Rows
// is empty, Empty carries the message to show instead of a table.
type Table struct {
	Type    string
	Columns []string
	Rows    [][]string
	Empty   string
}

// Options parameterize report generation.
type Options struct {
	Now           time.Time
	GestationDays int
	Index         *lineage.Index

	// Due-date range filter for the lambing calendar, inclusive ISO dates.
	// Empty bounds are open.
	RangeStart string
	RangeEnd   string
}

// Build renders one report over the record snapshot. Reports operate on
// active animals only, except the death/sold/cull reports which exist to
// surface removed animals.
func Build(reportType string, records []domain.Sheep, opts Options) (Table, error) {
	if opts.Index == nil {
		opts.Index = lineage.NewIndex(records, lineage.DefaultConfig())
	}

	switch reportType {
	case TypeDeathReport, TypeSoldReport, TypeCullReport:
		// keep the full list
	default:
		kept := make([]domain.Sheep, 0, len(records))
		for _, s := range records {
			if classify.IsActiveStatus(s.Status) {
				kept = append(kept, s)
			}
		}
		records = kept
	}

	if len(records) == 0 {
		return Table{Type: reportType, Empty: "No sheep data found."}, nil
	}

	switch reportType {
	case TypeAgeAsc, TypeAgeDesc:
		return ageReport(reportType, records, opts), nil
	case TypeDueDates:
		return dueDatesReport(records, opts), nil
	case TypeWeightGain:
		return weightGainReport(records), nil
	case TypeBreedingHistory:
		return breedingHistoryReport(records, opts), nil
	case TypeLambReport:
		return lambReport(records, opts), nil
	case TypeHerdReport, TypeRamReport, TypeEweReport:
		return listingReport(reportType, records, opts), nil
	case TypeSireOffspring, TypeDamOffspring:
		return offspringReport(reportType, records, opts), nil
	case TypeFamachaBCS:
		return famachaBCSReport(records), nil
	case TypeDeathReport, TypeSoldReport, TypeCullReport:
		return statusReport(reportType, records), nil
	case TypeLambingCalendar:
		return lambingCalendarReport(records, opts), nil
	}
	return Table{}, fmt.Errorf("unknown report type %q", reportType)
}

// KnownType reports whether t names a report Build can render.
func KnownType(t string) bool {
	switch t {
	case TypeAgeAsc, TypeAgeDesc, TypeDueDates, TypeWeightGain,
		TypeBreedingHistory, TypeLambReport, TypeHerdReport, TypeRamReport,
		TypeEweReport, TypeSireOffspring, TypeDamOffspring, TypeFamachaBCS,
		TypeDeathReport, TypeSoldReport, TypeCullReport, TypeLambingCalendar:
		return true
	}
	return false
}

// FormatDateLong renders a stored date as its long display form
// ("June 1, 2025"), empty when unparseable.
func FormatDateLong(raw string) string {
	t, ok := domain.ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format("January 2, 2006")
}

func formatTimeLong(t time.Time) string {
	return t.Format("January 2, 2006")
}

func ageReport(reportType string, records []domain.Sheep, opts Options) Table {
	type row struct {
		cells   []string
		ageDays float64
	}
	rows := make([]row, 0, len(records))
	for _, s := range records {
		ageDays := float64(1 << 50)
		if bd, ok := domain.ParseDate(s.BirthDate); ok {
			ageDays = opts.Now.Sub(bd).Hours() / 24
		}
		ageText := s.Age
		if s.BirthDate != "" {
			ageText = derive.AgeText(s.BirthDate, opts.Now)
		}
		rows = append(rows, row{
			cells:   []string{s.Name, s.Breed, FormatDateLong(s.BirthDate), ageText},
			ageDays: ageDays,
		})
	}
	asc := reportType == TypeAgeAsc
	sort.SliceStable(rows, func(i, j int) bool {
		if asc {
			return rows[i].ageDays < rows[j].ageDays
		}
		return rows[i].ageDays > rows[j].ageDays
	})
	out := Table{Type: reportType, Columns: []string{"Name", "Breed", "Birth Date", "Age"}}
	for _, r := range rows {
		out.Rows = append(out.Rows, r.cells)
	}
	return out
}

func dueDatesReport(records []domain.Sheep, opts Options) Table {
	type row struct {
		cells []string
		due   time.Time
	}
	var rows []row
	for _, s := range records {
		due, ok := derive.DueDate(s, opts.GestationDays)
		if !ok {
			continue
		}
		rows = append(rows, row{
			cells: []string{s.Name, s.Breed, formatTimeLong(due)},
			due:   due,
		})
	}
	if len(rows) == 0 {
		return Table{Type: TypeDueDates, Empty: "No due-date data available for any sheep."}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].due.Before(rows[j].due) })
	out := Table{Type: TypeDueDates, Columns: []string{"Name", "Breed", "Expected Due Date"}}
	for _, r := range rows {
		out.Rows = append(out.Rows, r.cells)
	}
	return out
}

func weightGainReport(records []domain.Sheep) Table {
	out := Table{
		Type: TypeWeightGain,
		Columns: []string{
			"Name", "Sex", "Initial Date", "Initial Weight (lbs)",
			"Latest Date", "Latest Weight (lbs)", "Days", "Gain (lbs)", "Gain per day (lbs)",
		},
	}
	for _, s := range records {
		g, ok := derive.ComputeWeightGain(s)
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, []string{
			s.Name, string(s.Sex), g.InitialDate, g.InitialWeight,
			g.LatestDate, g.LatestWeight, strconv.Itoa(g.Days), g.Gain, g.GainPerDay,
		})
	}
	if len(out.Rows) == 0 {
		return Table{Type: TypeWeightGain, Empty: "No weight history available for any sheep."}
	}
	return out
}

func breedingHistoryReport(records []domain.Sheep, opts Options) Table {
	out := Table{
		Type:    TypeBreedingHistory,
		Columns: []string{"Name", "Breed", "Bred Date", "Sire", "Expected Due"},
	}
	for _, s := range records {
		if s.BredDate == "" && s.LastBreedingSire == "" {
			continue
		}
		expected := ""
		if bd, ok := domain.ParseDate(s.BredDate); ok && opts.GestationDays > 0 {
			expected = formatTimeLong(bd.AddDate(0, 0, opts.GestationDays))
		}
		sireRef := s.LastBreedingSire
		if sireRef == "" {
			sireRef = s.Sire
		}
		out.Rows = append(out.Rows, []string{
			s.Name, s.Breed, FormatDateLong(s.BredDate), resolveLabel(opts.Index, sireRef), expected,
		})
	}
	if len(out.Rows) == 0 {
		return Table{Type: TypeBreedingHistory, Empty: "No breeding history found."}
	}
	return out
}

func lambReport(records []domain.Sheep, opts Options) Table {
	out := Table{
		Type:    TypeLambReport,
		Columns: []string{"Dam Name", "Lambing Date", "Count", "Sire", "Children"},
	}
	for _, s := range records {
		for _, ev := range s.Lambings {
			date := FormatDateLong(ev.Date)
			if date == "" {
				date = ev.Date
			}
			count := ""
			if int(ev.Count) != 0 {
				count = strconv.Itoa(int(ev.Count))
			}
			sire := ""
			if ev.Sire != "" {
				sire = resolveLabel(opts.Index, ev.Sire)
			} else {
				sire = s.Sire
			}
			out.Rows = append(out.Rows, []string{
				s.Name, date, count, sire, childNames(opts.Index, ev.Children),
			})
		}
	}
	if len(out.Rows) == 0 {
		return Table{Type: TypeLambReport, Empty: "No lambing records found."}
	}
	return out
}

// childNames maps child references to display names, dropping bare record
// ids that no longer resolve.
func childNames(idx *lineage.Index, children domain.FlexStrings) string {
	var names []string
	for _, c := range children {
		if r, ok := idx.ResolveExact(c); ok && r.Name != "" {
			names = append(names, r.Name)
			continue
		}
		if strings.HasPrefix(c, "sheep-") {
			continue
		}
		if c != "" {
			names = append(names, c)
		}
	}
	return strings.Join(names, ", ")
}

func listingReport(reportType string, records []domain.Sheep, opts Options) Table {
	var wantSex domain.Sex
	switch reportType {
	case TypeRamReport:
		wantSex = domain.SexRam
	case TypeEweReport:
		wantSex = domain.SexEwe
	}
	out := Table{
		Type:    reportType,
		Columns: []string{"Name", "Sex", "Breed", "Status", "Birth Date", "Age", "Weight"},
	}
	for _, s := range records {
		if wantSex != "" && s.Sex != wantSex {
			continue
		}
		ageText := s.Age
		if s.BirthDate != "" {
			ageText = derive.AgeText(s.BirthDate, opts.Now)
		}
		weight := ""
		if s.Weight != "" {
			weight = s.Weight + " lbs"
		}
		out.Rows = append(out.Rows, []string{
			s.Name, string(s.Sex), s.Breed, s.Status, FormatDateLong(s.BirthDate), ageText, weight,
		})
	}
	if len(out.Rows) == 0 {
		return Table{Type: reportType, Empty: "No animals match this report."}
	}
	return out
}

func offspringReport(reportType string, records []domain.Sheep, opts Options) Table {
	field := func(s domain.Sheep) string { return s.Sire }
	parentCol := "Sire"
	if reportType == TypeDamOffspring {
		field = func(s domain.Sheep) string { return s.Dam }
		parentCol = "Dam"
	}

	var order []string
	byParent := map[string][]domain.Sheep{}
	for _, s := range records {
		p := field(s)
		if p == "" {
			continue
		}
		if _, ok := byParent[p]; !ok {
			order = append(order, p)
		}
		byParent[p] = append(byParent[p], s)
	}

	out := Table{
		Type:    reportType,
		Columns: []string{parentCol, "Offspring Count", "Offspring (names)"},
	}
	for _, p := range order {
		offs := byParent[p]
		var names []string
		for _, o := range offs {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
		out.Rows = append(out.Rows, []string{
			resolveLabel(opts.Index, p), strconv.Itoa(len(offs)), strings.Join(names, ", "),
		})
	}
	if len(out.Rows) == 0 {
		return Table{Type: reportType, Empty: "No parent-offspring links found."}
	}
	return out
}

func famachaBCSReport(records []domain.Sheep) Table {
	out := Table{
		Type:    TypeFamachaBCS,
		Columns: []string{"Name", "FAMACHA", "FAMACHA Date", "BCS", "BCS Date"},
	}
	for _, s := range records {
		if s.FAMACHA == "" && s.BCS == "" && s.FAMACHADate == "" && s.BCSDate == "" {
			continue
		}
		out.Rows = append(out.Rows, []string{
			s.Name, s.FAMACHA, FormatDateLong(s.FAMACHADate), s.BCS, FormatDateLong(s.BCSDate),
		})
	}
	if len(out.Rows) == 0 {
		return Table{Type: TypeFamachaBCS, Empty: "No FAMACHA/BCS entries found."}
	}
	return out
}

// statusReportTerms maps each removed-animal report to the status
// substrings that select records for it.
var statusReportTerms = map[string][]string{
	TypeDeathReport: {"died", "dead", "deceased"},
	TypeSoldReport:  {"sold"},
	TypeCullReport:  {"culled", "to-be-culled", "to be culled"},
}

func statusReport(reportType string, records []domain.Sheep) Table {
	wanted := statusReportTerms[reportType]
	out := Table{
		Type:    reportType,
		Columns: []string{"Name", "Sex", "Breed", "Date", "Notes"},
	}
	for _, s := range records {
		st := domain.NormalizeStatus(s.Status)
		matched := false
		for _, w := range wanted {
			if strings.Contains(st, w) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		date := s.DeathDate
		if date == "" {
			date = s.SoldDate
		}
		if date == "" {
			date = s.CullDate
		}
		if date == "" {
			date = s.StatusDate
		}
		out.Rows = append(out.Rows, []string{
			s.Name, string(s.Sex), s.Breed, FormatDateLong(date), s.Notes,
		})
	}
	if len(out.Rows) == 0 {
		return Table{Type: reportType, Empty: "No records found for this report."}
	}
	return out
}

func lambingCalendarReport(records []domain.Sheep, opts Options) Table {
	type row struct {
		cells []string
		due   time.Time
	}
	var rows []row

	var lower, upper time.Time
	lowerOK, upperOK := false, false
	if t, ok := domain.ParseDate(opts.RangeStart); ok {
		lower, lowerOK = t, true
	}
	if t, ok := domain.ParseDate(opts.RangeEnd); ok {
		upper, upperOK = t, true
	}

	for _, s := range records {
		due, ok := derive.EarliestDueDate(s, opts.GestationDays)
		if !ok {
			continue
		}
		if lowerOK && due.Before(lower) {
			continue
		}
		if upperOK && due.After(upper) {
			continue
		}

		dueCell := formatTimeLong(due)
		if last := lastLambingDate(s); !last.IsZero() {
			dueCell += " (Lambed: " + formatTimeLong(last) + ")"
		}
		rows = append(rows, row{
			cells: []string{s.Label(), resolveLabel(opts.Index, s.Sire), s.BredDate, dueCell},
			due:   due,
		})
	}
	if len(rows) == 0 {
		return Table{Type: TypeLambingCalendar, Empty: "No lambing or due-date events found."}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].due.Before(rows[j].due) })
	out := Table{
		Type:    TypeLambingCalendar,
		Columns: []string{"Dam (Name/Tag)", "Sire (Name/Tag)", "Breeding Date", "Due Date"},
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, r.cells)
	}
	return out
}

func lastLambingDate(s domain.Sheep) time.Time {
	var last time.Time
	for _, ev := range s.Lambings {
		if t, ok := domain.ParseDate(ev.Date); ok && t.After(last) {
			last = t
		}
	}
	return last
}

func resolveLabel(idx *lineage.Index, ref string) string {
	if ref == "" {
		return ""
	}
	if r, ok := idx.ResolveExact(ref); ok {
		return r.Label()
	}
	return ref
}
