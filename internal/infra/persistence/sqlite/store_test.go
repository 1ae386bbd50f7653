package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"testrig/pkg/domain"
)

func record(id string, created time.Time) domain.SessionRecord {
	return domain.SessionRecord{
		ID:             id,
		Trainee:        "trainee-" + id,
		CatalogVersion: "1.0.0",
		State: domain.SimulatorState{
			Phase: domain.PhaseTesting,
			Meter: domain.RestMeter(),
			Progress: map[domain.CircuitID]domain.CircuitProgress{
				2: {CircuitID: 2, CompletedTests: []string{"c2-r1r2"}, TotalTests: 3, Status: domain.StatusPartial},
			},
			HighestStepReached: 4,
			SessionStartedAt:   created,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "rig.db")
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	store, err := NewStore(ctx, path)
	require.NoError(t, err)
	require.Equal(t, path, store.Path())
	require.NoError(t, store.Save(ctx, record("s1", now)))

	updated := record("s1", now)
	updated.State.HighestStepReached = 7
	updated.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, updated))
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, got.State.HighestStepReached)
	require.Equal(t, []string{"c2-r1r2"}, got.State.Progress[2].CompletedTests)
	require.True(t, got.UpdatedAt.Equal(now.Add(time.Minute)))
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "rig.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC()
	require.NoError(t, store.Save(ctx, record("b", now)))
	require.NoError(t, store.Save(ctx, record("a", now)))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].ID)

	removed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	require.True(t, removed)
	removed, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	require.False(t, removed)

	_, ok, err := store.Load(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}
