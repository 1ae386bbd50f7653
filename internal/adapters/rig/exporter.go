package rig

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"testrig/internal/blob"
	"testrig/pkg/domain"
)

// ExportStatus describes the lifecycle stage of a certificate export.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportFormat names a rendered certificate format.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

func (f ExportFormat) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// ParseExportFormat maps a request value onto a supported format.
func ParseExportFormat(v string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(v))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", v)
	}
}

// ExportArtifact captures a stored certificate artifact.
type ExportArtifact struct {
	Key         string       `json:"key"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"contentType"`
	SizeBytes   int64        `json:"sizeBytes"`
	ETag        string       `json:"etag,omitempty"`
	URL         string       `json:"url,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"sessionId"`
	Formats     []ExportFormat   `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requestedBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	cp := r
	cp.Formats = append([]ExportFormat(nil), r.Formats...)
	cp.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// ExportInput is an enqueue request.
type ExportInput struct {
	SessionID   string
	Formats     []ExportFormat
	RequestedBy string
}

// ExportScheduler queues certificate exports and exposes their status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// SessionSource resolves the session a certificate is rendered from.
type SessionSource interface {
	Session(ctx context.Context, id string) (domain.SessionRecord, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry is one step of an export's audit trail.
type AuditEntry struct {
	ExportID   string       `json:"exportId"`
	SessionID  string       `json:"sessionId"`
	Actor      string       `json:"actor,omitempty"`
	Status     ExportStatus `json:"status"`
	Note       string       `json:"note,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// ZapAuditLogger writes audit entries to a zap logger.
type ZapAuditLogger struct {
	Logger *zap.Logger
}

// Record implements AuditLogger.
func (l ZapAuditLogger) Record(_ context.Context, e AuditEntry) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("certificate export",
		zap.String("export", e.ExportID),
		zap.String("session", e.SessionID),
		zap.String("actor", e.Actor),
		zap.String("status", string(e.Status)),
		zap.String("note", e.Note),
		zap.Time("at", e.OccurredAt))
}

// ErrExportQueueFull is returned when the worker cannot accept more exports.
var ErrExportQueueFull = errors.New("export queue full")

// Worker renders certificates asynchronously into a blob store.
type Worker struct {
	sessions SessionSource
	store    blob.Store
	audit    AuditLogger

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker. A nil audit logger disables auditing.
func NewWorker(sessions SessionSource, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		sessions: sessions,
		store:    store,
		audit:    audit,
		queue:    make(chan string, 32),
		jobs:     make(map[string]*ExportRecord),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the loop to exit.
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

// Run starts the worker and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.Stop(stopCtx)
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueExport validates the request, records it as queued and hands it to
// the worker loop.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.sessions == nil || w.store == nil {
		return ExportRecord{}, errors.New("export worker not configured")
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return ExportRecord{}, errors.New("session id required")
	}
	if _, err := w.sessions.Session(ctx, input.SessionID); err != nil {
		return ExportRecord{}, err
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []ExportFormat{FormatJSON, FormatCSV}
	}
	uniq := make([]ExportFormat, 0, len(formats))
	seen := make(map[ExportFormat]struct{}, len(formats))
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		if f != FormatJSON && f != FormatCSV {
			return ExportRecord{}, fmt.Errorf("unsupported export format %q", f)
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := time.Now().UTC()
	record := ExportRecord{
		ID:          uuid.NewString(),
		SessionID:   input.SessionID,
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return ExportRecord{}, ErrExportQueueFull
	}
	w.record(ctx, snapshot, ExportStatusQueued, "")
	return snapshot, nil
}

// GetExport returns a snapshot of an export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(id string) {
	record, ok := w.GetExport(id)
	if !ok {
		return
	}
	w.updateStatus(id, ExportStatusRunning, "")

	sess, err := w.sessions.Session(w.ctx, record.SessionID)
	if err != nil {
		w.fail(id, fmt.Sprintf("load session: %v", err))
		return
	}
	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := Render(format, sess)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		key := fmt.Sprintf("%s/%s.%s", sess.ID, id, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: format.contentType(),
			Metadata:    map[string]string{"session": sess.ID, "export": id, "trainee": sess.Trainee},
		})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		url := info.URL
		signed, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{})
		switch {
		case err == nil:
			url = signed
		case !errors.Is(err, blob.ErrUnsupported):
			w.fail(id, fmt.Sprintf("sign artifact url: %v", err))
			return
		}
		artifacts = append(artifacts, ExportArtifact{
			Key:         info.Key,
			Format:      format,
			ContentType: format.contentType(),
			SizeBytes:   info.Size,
			ETag:        info.ETag,
			URL:         url,
			CreatedAt:   info.LastModified,
		})
	}
	w.complete(id, artifacts)
}

func (w *Worker) updateStatus(id string, status ExportStatus, note string) {
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = status
		record.Error = note
		record.UpdatedAt = time.Now().UTC()
	}
	var snapshot ExportRecord
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.record(w.ctx, snapshot, status, note)
	}
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	w.finish(id, ExportStatusSucceeded, "", artifacts)
}

func (w *Worker) fail(id, reason string) {
	w.finish(id, ExportStatusFailed, reason, nil)
}

func (w *Worker) finish(id string, status ExportStatus, reason string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	var snapshot ExportRecord
	if ok {
		record.Status = status
		record.Error = reason
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.record(w.ctx, snapshot, status, reason)
	}
}

func (w *Worker) record(ctx context.Context, r ExportRecord, status ExportStatus, note string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ExportID:   r.ID,
		SessionID:  r.SessionID,
		Actor:      r.RequestedBy,
		Status:     status,
		Note:       note,
		OccurredAt: r.UpdatedAt,
	})
}

// Certificate is the JSON rendering of a session's schedule.
type Certificate struct {
	SessionID      string                            `json:"sessionId"`
	Trainee        string                            `json:"trainee"`
	CatalogVersion string                            `json:"catalogVersion"`
	StartedAt      time.Time                         `json:"startedAt"`
	Phase          domain.Phase                      `json:"phase"`
	Score          *domain.SimulatorScore            `json:"score,omitempty"`
	Schedule       domain.CertificationScheduleState `json:"schedule"`
}

// csvColumns are the schedule columns written after the circuit number and
// description.
var csvColumns = domain.ResultFields

// Render produces the certificate artifact for a session in format.
func Render(format ExportFormat, sess domain.SessionRecord) ([]byte, error) {
	switch format {
	case FormatJSON:
		cert := Certificate{
			SessionID:      sess.ID,
			Trainee:        sess.Trainee,
			CatalogVersion: sess.CatalogVersion,
			StartedAt:      sess.State.SessionStartedAt,
			Phase:          sess.State.Phase,
			Score:          sess.State.Score,
			Schedule:       sess.State.Schedule,
		}
		out, err := json.MarshalIndent(cert, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("render json certificate: %w", err)
		}
		return out, nil
	case FormatCSV:
		return renderCSV(sess.State.Schedule)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func renderCSV(schedule domain.CertificationScheduleState) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	header := []string{"circuitNumber", "description"}
	for _, f := range csvColumns {
		header = append(header, string(f))
	}
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	descriptions := make(map[domain.CircuitID]string, len(schedule.CircuitDetails))
	for _, d := range schedule.CircuitDetails {
		descriptions[d.CircuitNumber] = d.Description
	}
	for _, row := range schedule.TestResults {
		line := []string{strconv.Itoa(int(row.CircuitNumber)), descriptions[row.CircuitNumber]}
		for _, f := range csvColumns {
			v, _ := row.Get(f)
			line = append(line, v)
		}
		if err := cw.Write(line); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("render csv certificate: %w", err)
	}
	return buf.Bytes(), nil
}
