// Package exporter runs report exports asynchronously and stores the
// rendered artifacts (CSV tables, calendar feeds, JSON snapshots) in a
// blob store.
package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flockcore/internal/blob"
	"flockcore/internal/csvio"
	"flockcore/internal/ics"
	"flockcore/internal/obs"
	"flockcore/internal/report"
	"flockcore/pkg/domain"
)

// Format identifies an artifact rendering.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatICS  Format = "ics"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures one stored export output.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	ReportType  string     `json:"report_type"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input is an enqueue request.
type Input struct {
	ReportType   string
	Formats      []Format
	CalendarName string // calendar title for ICS output
	RangeStart   string // inclusive ISO bounds for the lambing calendar
	RangeEnd     string
	RequestedBy  string
	Reason       string
}

// Snapshot is the flock state an export renders from.
type Snapshot struct {
	Records       []domain.Sheep
	GestationDays int
}

// Source provides the flock snapshot at export time.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context) (Snapshot, error) { return f(ctx) }

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	ReportType string         `json:"report_type"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type task struct {
	id    string
	input Input
}

// Worker executes report exports asynchronously.
type Worker struct {
	source  Source
	store   blob.Store
	audit   AuditLogger
	log     obs.Logger
	metrics obs.MetricsRecorder
	nowFn   func() time.Time

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithAudit attaches an audit logger.
func WithAudit(a AuditLogger) Option { return func(w *Worker) { w.audit = a } }

// WithLogger attaches a structured logger.
func WithLogger(l obs.Logger) Option { return func(w *Worker) { w.log = l } }

// WithMetrics attaches a metrics recorder.
func WithMetrics(m obs.MetricsRecorder) Option { return func(w *Worker) { w.metrics = m } }

// WithNow overrides the clock.
func WithNow(fn func() time.Time) Option { return func(w *Worker) { w.nowFn = fn } }

// NewWorker constructs an export worker over the given snapshot source
// and artifact store.
func NewWorker(source Source, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:  source,
		store:   store,
		log:     obs.NopLogger{},
		metrics: obs.NopMetrics{},
		nowFn:   time.Now,
		queue:   make(chan task, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for in-flight work.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("export source not configured")
	}
	if !report.KnownType(input.ReportType) {
		return Record{}, fmt.Errorf("unknown report type %q", input.ReportType)
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		switch f {
		case FormatCSV, FormatJSON, FormatICS:
		default:
			return Record{}, fmt.Errorf("unsupported export format %q", f)
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := uuid.NewString()
	now := w.nowFn().UTC()
	record := Record{
		ID:          id,
		ReportType:  input.ReportType,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, StatusQueued, nil)

	select {
	case w.queue <- task{id: id, input: input}:
	default:
		return Record{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	started := w.nowFn()
	w.updateStatus(t.id, StatusRunning, "")

	err := w.run(t)
	success := err == nil
	w.metrics.Observe(w.ctx, "report_export", success, w.nowFn().Sub(started))
	if err != nil {
		w.log.Error("export failed", "export_id", t.id, "report", t.input.ReportType, "error", err)
		w.fail(t.id, err.Error())
	}
}

func (w *Worker) run(t task) error {
	snap, err := w.source.Snapshot(w.ctx)
	if err != nil {
		return fmt.Errorf("snapshot flock: %w", err)
	}

	now := w.nowFn()
	table, err := report.Build(t.input.ReportType, snap.Records, report.Options{
		Now:           now,
		GestationDays: snap.GestationDays,
		RangeStart:    t.input.RangeStart,
		RangeEnd:      t.input.RangeEnd,
	})
	if err != nil {
		return err
	}

	record := w.snapshot(t.id)
	if record == nil {
		return fmt.Errorf("export %s missing", t.id)
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, contentType, err := w.materialize(format, t.input, table, snap, now)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("exports/%s/%s.%s", t.id, t.input.ReportType, format)
		info, err := w.store.Put(w.ctx, key, strings.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata: map[string]string{
				"report":       t.input.ReportType,
				"requested-by": t.input.RequestedBy,
			},
		})
		if err != nil {
			return fmt.Errorf("store artifact: %w", err)
		}
		artifact := Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   info.Size,
			CreatedAt:   info.LastModified,
		}
		if url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
			artifact.URL = url
		} else if !errors.Is(err, blob.ErrUnsupported) {
			return fmt.Errorf("presign artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}

	w.complete(t.id, artifacts)
	return nil
}

func (w *Worker) materialize(format Format, input Input, table report.Table, snap Snapshot, now time.Time) (payload, contentType string, err error) {
	switch format {
	case FormatCSV:
		return csvio.EncodeTable(table), "text/csv", nil
	case FormatJSON:
		b, err := json.Marshal(table)
		if err != nil {
			return "", "", fmt.Errorf("marshal json: %w", err)
		}
		return string(b), "application/json", nil
	case FormatICS:
		name := input.CalendarName
		if name == "" {
			name = ics.DefaultCalendarName
		}
		events := report.CalendarEvents(snap.Records, snap.GestationDays)
		return ics.Encode(events, name, now), "text/calendar", nil
	}
	return "", "", fmt.Errorf("unsupported export format %q", format)
}

func (w *Worker) snapshot(id string) *Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.jobs[id]
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := w.nowFn().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, status, nil)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := w.nowFn().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, StatusSucceeded, map[string]any{"artifacts": len(artifacts)})
}

func (w *Worker) fail(id, reason string) {
	now := w.nowFn().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, StatusFailed, map[string]any{"error": reason})
}

func (w *Worker) recordAudit(ctx context.Context, id string, status Status, metadata map[string]any) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	actor, reportType, reason := "", "", ""
	if record, ok := w.jobs[id]; ok {
		actor = record.RequestedBy
		reportType = record.ReportType
		reason = record.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "report_export",
		Actor:      actor,
		ReportType: reportType,
		Status:     status,
		Reason:     reason,
		Metadata:   metadata,
		OccurredAt: w.nowFn().UTC(),
	})
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
