package flock

import (
	"context"

	"flockcore/internal/csvio"
	"flockcore/internal/ics"
	"flockcore/internal/lineage"
	"flockcore/internal/report"
)

// ReportOptions narrows report generation; zero value renders the full
// report.
type ReportOptions struct {
	RangeStart string // inclusive ISO bounds for the lambing calendar
	RangeEnd   string
}

// BuildReport renders one report over the current flock.
func (s *Service) BuildReport(ctx context.Context, reportType string, opts ReportOptions) (report.Table, error) {
	var table report.Table
	err := s.observe(ctx, "build_report", func(ctx context.Context) error {
		if err := s.ensureIntegrity(ctx); err != nil {
			return err
		}
		all, err := s.repo.GetAll(ctx)
		if err != nil {
			return err
		}
		table, err = report.Build(reportType, all, report.Options{
			Now:           s.nowFn(),
			GestationDays: s.repo.GestationDays(ctx),
			Index:         lineage.NewIndex(all, s.lineage),
			RangeStart:    opts.RangeStart,
			RangeEnd:      opts.RangeEnd,
		})
		return err
	})
	return table, err
}

// ReportCSV renders a report as CSV text.
func (s *Service) ReportCSV(ctx context.Context, reportType string, opts ReportOptions) (string, error) {
	table, err := s.BuildReport(ctx, reportType, opts)
	if err != nil {
		return "", err
	}
	return csvio.EncodeTable(table), nil
}

// CalendarICS renders the flock's breeding/due/lambing events as an
// iCalendar feed.
func (s *Service) CalendarICS(ctx context.Context, calendarName string) (string, error) {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return "", err
	}
	if calendarName == "" {
		calendarName = ics.DefaultCalendarName
	}
	events := report.CalendarEvents(all, s.repo.GestationDays(ctx))
	return ics.Encode(events, calendarName, s.nowFn()), nil
}
