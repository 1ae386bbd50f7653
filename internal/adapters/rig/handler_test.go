package rig

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"testrig/internal/blob"
	"testrig/internal/catalog"
	"testrig/internal/core"
	"testrig/pkg/domain"
)

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type sessionEnvelope struct {
	Session domain.SessionRecord `json:"session"`
}

func TestHandlerSessionFlow(t *testing.T) {
	svc := newService(t)
	worker := NewWorker(svc, blob.NewMemory(), nil)
	worker.Start()
	defer func() { require.NoError(t, worker.Stop(context.Background())) }()
	h := NewHandler(svc, worker, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cat := decode[struct {
		Version  string           `json:"version"`
		Circuits []domain.Circuit `json:"circuits"`
	}](t, rec)
	require.Equal(t, "1.2.0", cat.Version)
	require.Len(t, cat.Circuits, 5)

	rec = do(t, h, http.MethodPost, "/api/v1/sessions", map[string]string{"trainee": "Robin"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[sessionEnvelope](t, rec).Session
	require.Equal(t, domain.PhaseRigSelect, created.State.Phase)
	base := "/api/v1/sessions/" + created.ID

	rec = do(t, h, http.MethodPost, base+"/actions", `{"type":"select-circuit","circuitId":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[struct {
		State domain.SimulatorState `json:"state"`
	}](t, rec).State
	require.Equal(t, domain.PhaseTesting, state.Phase)

	rec = do(t, h, http.MethodPost, base+"/probe", probeRequest{TestPointID: "socket-1", Dial: domain.DialLoop})
	require.Equal(t, http.StatusOK, rec.Code)
	probed := decode[struct {
		Reading domain.TestReading    `json:"reading"`
		State   domain.SimulatorState `json:"state"`
	}](t, rec)
	require.Equal(t, "0.57", probed.Reading.Value)
	require.Equal(t, []string{"c1-zs"}, probed.State.Progress[1].CompletedTests)

	rec = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[struct {
		Completion    int                   `json:"completion"`
		ActiveCircuit *domain.Circuit       `json:"activeCircuit"`
		Progress      []core.CircuitSummary `json:"progress"`
	}](t, rec)
	require.NotNil(t, view.ActiveCircuit)
	require.Equal(t, domain.CircuitID(1), view.ActiveCircuit.ID)
	require.Positive(t, view.Completion)
	require.Len(t, view.Progress, 5)

	rec = do(t, h, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[struct {
		Sessions []domain.SessionRecord `json:"sessions"`
	}](t, rec).Sessions, 1)

	rec = do(t, h, http.MethodPost, base+"/exports", map[string]any{"formats": []string{"csv"}, "requestedBy": "assessor"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	queued := decode[struct {
		Export ExportRecord `json:"export"`
	}](t, rec).Export
	require.Eventually(t, func() bool {
		r := do(t, h, http.MethodGet, "/api/v1/exports/"+queued.ID, nil)
		if r.Code != http.StatusOK {
			return false
		}
		return decode[struct {
			Export ExportRecord `json:"export"`
		}](t, r).Export.Status == ExportStatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, h, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerErrors(t *testing.T) {
	svc := newService(t)
	h := NewHandler(svc, nil, nil)
	created, err := svc.CreateSession(context.Background(), "Kit")
	require.NoError(t, err)
	base := "/api/v1/sessions/" + created.ID

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown route", http.MethodGet, "/api/v1/unknown", nil, http.StatusNotFound},
		{"catalog wrong method", http.MethodPost, "/api/v1/catalog", nil, http.StatusMethodNotAllowed},
		{"sessions wrong method", http.MethodPut, "/api/v1/sessions", nil, http.StatusMethodNotAllowed},
		{"missing trainee", http.MethodPost, "/api/v1/sessions", map[string]string{}, http.StatusBadRequest},
		{"bad session body", http.MethodPost, "/api/v1/sessions", "{", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", nil, http.StatusNotFound},
		{"unknown session action", http.MethodPost, "/api/v1/sessions/nope/actions", `{"type":"start-test"}`, http.StatusNotFound},
		{"unknown action", http.MethodPost, base + "/actions", `{"type":"dance"}`, http.StatusBadRequest},
		{"bad action json", http.MethodPost, base + "/actions", `not json`, http.StatusBadRequest},
		{"probe without circuit", http.MethodPost, base + "/probe", probeRequest{TestPointID: "cu", Dial: domain.DialLoop}, http.StatusConflict},
		{"probe bad dial", http.MethodPost, base + "/probe", probeRequest{TestPointID: "cu", Dial: "megger"}, http.StatusBadRequest},
		{"session wrong method", http.MethodPut, base, nil, http.StatusMethodNotAllowed},
		{"action wrong method", http.MethodGet, base + "/actions", nil, http.StatusMethodNotAllowed},
		{"unknown session endpoint", http.MethodPost, base + "/dance", nil, http.StatusNotFound},
		{"deep path", http.MethodGet, base + "/a/b", nil, http.StatusNotFound},
		{"exports unconfigured", http.MethodPost, base + "/exports", nil, http.StatusNotImplemented},
		{"export status unconfigured", http.MethodGet, "/api/v1/exports/x", nil, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/v1/sessions/nope", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerExportErrors(t *testing.T) {
	svc := newService(t)
	h := NewHandler(svc, NewWorker(svc, blob.NewMemory(), nil), nil)

	rec := do(t, h, http.MethodPost, "/api/v1/sessions/nope/exports", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	created, err := svc.CreateSession(context.Background(), "Lee")
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/api/v1/sessions/"+created.ID+"/exports", map[string]any{"formats": []string{"pdf"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/exports/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/exports/missing", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerExportQueueFull(t *testing.T) {
	svc := newService(t)
	worker := NewWorker(svc, blob.NewMemory(), nil)
	h := NewHandler(svc, worker, nil)
	created, err := svc.CreateSession(context.Background(), "Lee")
	require.NoError(t, err)

	path := "/api/v1/sessions/" + created.ID + "/exports"
	for i := 0; i < cap(worker.queue); i++ {
		rec := do(t, h, http.MethodPost, path, nil)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, path, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), ErrExportQueueFull.Error())
}

func TestHandlerWithoutGenerator(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	svc := core.NewService(cat)
	h := NewHandler(svc, nil, nil)
	created, err := svc.CreateSession(context.Background(), "Max")
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/api/v1/sessions/"+created.ID+"/probe", probeRequest{TestPointID: "cu", Dial: domain.DialLoop})
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandlerWithoutService(t *testing.T) {
	rec := do(t, &Handler{}, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
