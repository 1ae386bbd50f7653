package domain

import (
	"context"
	"time"
)

// SessionRecord is the persisted envelope around a session aggregate.
type SessionRecord struct {
	ID             string         `json:"id"`
	Trainee        string         `json:"trainee"`
	CatalogVersion string         `json:"catalogVersion"`
	State          SimulatorState `json:"state"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (r SessionRecord) Clone() SessionRecord {
	cp := r
	cp.State = r.State.Clone()
	return cp
}

// SessionStore is a minimal abstraction over durable session backends. Save
// replaces any existing record with the same id.
type SessionStore interface {
	Save(ctx context.Context, record SessionRecord) error
	Load(ctx context.Context, id string) (SessionRecord, bool, error)
	List(ctx context.Context) ([]SessionRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}
