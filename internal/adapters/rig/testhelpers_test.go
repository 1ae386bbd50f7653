package rig

import (
	"context"
	"sync"
	"testing"

	"testrig/internal/catalog"
	"testrig/internal/core"
	"testrig/internal/readings"
)

func newService(t *testing.T) *core.Service {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	svc := core.NewService(cat, core.WithReadingGenerator(readings.New(cat)))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, e AuditEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *recordingAudit) statuses() []ExportStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExportStatus, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Status)
	}
	return out
}
