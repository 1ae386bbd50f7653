// Package rig exposes the training rig over HTTP and renders certificate
// exports into blob storage.
package rig

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"testrig/internal/core"
	"testrig/pkg/domain"
)

// Simulator is the session service the handler drives.
type Simulator interface {
	Catalog() *domain.Catalog
	CreateSession(ctx context.Context, trainee string) (domain.SessionRecord, error)
	Session(ctx context.Context, id string) (domain.SessionRecord, error)
	List(ctx context.Context) ([]domain.SessionRecord, error)
	Delete(ctx context.Context, id string) error
	Dispatch(ctx context.Context, id string, action domain.Action) (domain.SimulatorState, error)
	Probe(ctx context.Context, id, testPointID string, dial domain.DialPosition, sub domain.SubTest) (domain.TestReading, domain.SimulatorState, error)
}

var _ Simulator = (*core.Service)(nil)

// Handler provides HTTP access to sessions, actions and exports.
type Handler struct {
	Sessions Simulator
	Exports  ExportScheduler
	Logger   *zap.Logger
}

// NewHandler constructs a rig HTTP handler.
func NewHandler(s Simulator, exports ExportScheduler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Sessions: s, Exports: exports, Logger: logger}
}

const (
	apiPrefix      = "/api/v1"
	sessionsPrefix = apiPrefix + "/sessions"
	exportsPrefix  = apiPrefix + "/exports"
)

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		writeError(w, http.StatusInternalServerError, "session service not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == apiPrefix+"/catalog":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCatalog(w)
	case path == sessionsPrefix:
		h.handleSessions(w, r)
	case strings.HasPrefix(path, sessionsPrefix+"/"):
		h.handleSession(w, r, strings.TrimPrefix(path, sessionsPrefix+"/"))
	case strings.HasPrefix(path, exportsPrefix+"/"):
		h.handleExportStatus(w, r, strings.TrimPrefix(path, exportsPrefix+"/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleCatalog(w http.ResponseWriter) {
	cat := h.Sessions.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":      cat.Version(),
		"installation": cat.Installation(),
		"circuits":     cat.Circuits(),
	})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := h.Sessions.List(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		if records == nil {
			records = []domain.SessionRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
	case http.MethodPost:
		var req struct {
			Trainee string `json:"trainee"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid session request payload")
			return
		}
		if strings.TrimSpace(req.Trainee) == "" {
			writeError(w, http.StatusBadRequest, "trainee required")
			return
		}
		rec, err := h.Sessions.CreateSession(r.Context(), strings.TrimSpace(req.Trainee))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"session": rec})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" || len(segments) > 2 {
		http.NotFound(w, r)
		return
	}
	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleSessionGet(w, r, id)
		case http.MethodDelete:
			if err := h.Sessions.Delete(r.Context(), id); err != nil {
				h.writeServiceError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	switch segments[1] {
	case "actions":
		h.handleAction(w, r, id)
	case "probe":
		h.handleProbe(w, r, id)
	case "exports":
		h.handleExportCreate(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "session endpoint not found")
	}
}

func (h *Handler) handleSessionGet(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.Sessions.Session(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	cat := h.Sessions.Catalog()
	body := map[string]any{
		"session":    rec,
		"completion": core.CompletionPercent(cat, rec.State),
		"progress":   core.ProgressSummary(cat, rec.State),
	}
	if c, ok := core.ActiveCircuit(cat, rec.State); ok {
		body["activeCircuit"] = c
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, id string) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid action payload")
		return
	}
	action, err := domain.DecodeAction(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.Sessions.Dispatch(r.Context(), id, action)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

type probeRequest struct {
	TestPointID string              `json:"testPointId"`
	Dial        domain.DialPosition `json:"dial"`
	SubTest     domain.SubTest      `json:"subTest"`
}

func (h *Handler) handleProbe(w http.ResponseWriter, r *http.Request, id string) {
	var req probeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid probe payload")
		return
	}
	if !req.Dial.Valid() {
		writeError(w, http.StatusBadRequest, "unknown dial position")
		return
	}
	reading, state, err := h.Sessions.Probe(r.Context(), id, req.TestPointID, req.Dial, req.SubTest)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reading": reading, "state": state})
}

type exportRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requestedBy"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request, id string) {
	if h.Exports == nil {
		writeError(w, http.StatusNotImplemented, "exports not configured")
		return
	}
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]ExportFormat, 0, len(req.Formats))
	for _, f := range req.Formats {
		format, err := ParseExportFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, format)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		SessionID:   id,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportStatus(w http.ResponseWriter, r *http.Request, id string) {
	if h.Exports == nil || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var notFound core.ErrSessionNotFound
	var unknown domain.UnknownActionError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unknown):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNoActiveCircuit):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrNoReadingGenerator):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, ErrExportQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
