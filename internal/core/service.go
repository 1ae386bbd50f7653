package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"testrig/internal/infra/persistence/memory"
	"testrig/pkg/domain"
)

// ErrNoActiveCircuit is returned by Probe when no circuit has been selected.
var ErrNoActiveCircuit = errors.New("no active circuit selected")

// ErrNoReadingGenerator is returned by Probe when the service was built without
// a reading generator.
var ErrNoReadingGenerator = errors.New("no reading generator configured")

// ErrSessionNotFound is returned when a session id is unknown to the service
// and its backing store.
type ErrSessionNotFound struct {
	ID string
}

func (e ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session %s not found", e.ID)
}

// ReadingGenerator produces the meter reading for a probe on a circuit.
type ReadingGenerator interface {
	Read(circuitID domain.CircuitID, testPointID string, dial domain.DialPosition, sub domain.SubTest) domain.TestReading
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the tracer wrapping each operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStore sets the durable session store. The default is in-memory.
func WithStore(store domain.SessionStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithReadingGenerator enables Probe.
func WithReadingGenerator(gen ReadingGenerator) Option {
	return func(s *Service) { s.generator = gen }
}

// Service hosts independent training sessions over one shared catalog. Actions
// on a session are serialized by that session's lock; different sessions run
// in parallel.
type Service struct {
	reducer   *Reducer
	store     domain.SessionStore
	generator ReadingGenerator
	logger    *zap.Logger
	metrics   MetricsRecorder
	tracer    Tracer
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu     sync.Mutex
	record domain.SessionRecord
	// deleted is set under mu once Delete has removed the record.
	deleted bool
}

// NewService constructs a service for the catalog.
func NewService(catalog *domain.Catalog, opts ...Option) *Service {
	s := &Service{
		reducer:  NewReducer(catalog),
		logger:   zap.NewNop(),
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}
	return s
}

// Catalog returns the shared circuit catalog.
func (s *Service) Catalog() *domain.Catalog { return s.reducer.Catalog() }

// Reducer exposes the pure state machine.
func (s *Service) Reducer() *Reducer { return s.reducer }

// Close releases the backing store.
func (s *Service) Close() error { return s.store.Close() }

func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	return ctx, func(err error) {
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
		span.End(err)
	}
}

// CreateSession starts a fresh session for a trainee and persists it.
func (s *Service) CreateSession(ctx context.Context, trainee string) (rec domain.SessionRecord, err error) {
	ctx, done := s.begin(ctx, "create-session")
	defer func() { done(err) }()

	now := s.now().UTC()
	rec = domain.SessionRecord{
		ID:             uuid.NewString(),
		Trainee:        trainee,
		CatalogVersion: s.Catalog().Version(),
		State:          s.reducer.Initial(now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = s.store.Save(ctx, rec); err != nil {
		s.logger.Error("persist session", zap.String("session", rec.ID), zap.Error(err))
		return domain.SessionRecord{}, fmt.Errorf("save session: %w", err)
	}
	s.mu.Lock()
	s.sessions[rec.ID] = &session{record: rec.Clone()}
	open := len(s.sessions)
	s.mu.Unlock()
	s.reportOpen(open)

	s.logger.Info("session created",
		zap.String("session", rec.ID),
		zap.String("trainee", trainee),
		zap.String("catalog_version", rec.CatalogVersion))
	return rec, nil
}

// lookup returns the live session, hydrating it from the store on a miss.
func (s *Service) lookup(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}
	rec, found, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return nil, ErrSessionNotFound{ID: id}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	sess = &session{record: rec}
	s.sessions[id] = sess
	return sess, nil
}

// Session returns a copy of a session record.
func (s *Service) Session(ctx context.Context, id string) (domain.SessionRecord, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return domain.SessionRecord{}, ErrSessionNotFound{ID: id}
	}
	return sess.record.Clone(), nil
}

// State returns a copy of a session's current aggregate.
func (s *Service) State(ctx context.Context, id string) (domain.SimulatorState, error) {
	rec, err := s.Session(ctx, id)
	if err != nil {
		return domain.SimulatorState{}, err
	}
	return rec.State, nil
}

// Dispatch reduces an action over a session and persists the result. The
// in-memory state only advances once the store accepted the new snapshot.
func (s *Service) Dispatch(ctx context.Context, id string, action domain.Action) (state domain.SimulatorState, err error) {
	if action == nil {
		return domain.SimulatorState{}, errors.New("action cannot be nil")
	}
	ctx, done := s.begin(ctx, string(action.Kind()))
	defer func() { done(err) }()

	sess, err := s.lookup(ctx, id)
	if err != nil {
		return domain.SimulatorState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.applyLocked(ctx, sess, action)
}

func (s *Service) applyLocked(ctx context.Context, sess *session, action domain.Action) (domain.SimulatorState, error) {
	if sess.deleted {
		return domain.SimulatorState{}, ErrSessionNotFound{ID: sess.record.ID}
	}
	if reset, ok := action.(domain.ResetSession); ok && reset.StartedAt.IsZero() {
		reset.StartedAt = s.now().UTC()
		action = reset
	}
	start := time.Now()
	before := sess.record.State.Phase
	next := sess.record
	next.State = s.reducer.Apply(sess.record.State, action)
	next.UpdatedAt = s.now().UTC()

	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error("persist session",
			zap.String("session", next.ID),
			zap.String("action", string(action.Kind())),
			zap.Error(err))
		return domain.SimulatorState{}, fmt.Errorf("save session: %w", err)
	}
	sess.record = next

	s.logger.Debug("action applied",
		zap.String("session", next.ID),
		zap.String("action", string(action.Kind())),
		zap.String("phase_before", string(before)),
		zap.String("phase_after", string(next.State.Phase)),
		zap.Duration("duration", time.Since(start)))

	if _, scored := action.(domain.CalculateScore); scored && next.State.Score != nil {
		score := *next.State.Score
		s.logger.Info("session scored",
			zap.String("session", next.ID),
			zap.Int("sequence", score.SequenceAccuracy),
			zap.Int("readings", score.ReadingCorrectness),
			zap.Int("completeness", score.ScheduleCompleteness),
			zap.Int("overall", score.Overall))
		if g, ok := s.metrics.(sessionGauges); ok {
			g.ObserveScore(score.Overall)
		}
	}
	return next.State.Clone(), nil
}

// Probe takes a reading on the active circuit through the configured
// generator and records it as a completed test.
func (s *Service) Probe(ctx context.Context, id, testPointID string, dial domain.DialPosition, sub domain.SubTest) (reading domain.TestReading, state domain.SimulatorState, err error) {
	ctx, done := s.begin(ctx, "probe")
	defer func() { done(err) }()

	if s.generator == nil {
		return domain.TestReading{}, domain.SimulatorState{}, ErrNoReadingGenerator
	}
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return domain.TestReading{}, domain.SimulatorState{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return domain.TestReading{}, domain.SimulatorState{}, ErrSessionNotFound{ID: id}
	}

	active := sess.record.State.ActiveCircuitID
	if active == nil {
		return domain.TestReading{}, domain.SimulatorState{}, ErrNoActiveCircuit
	}
	reading = s.generator.Read(*active, testPointID, dial, sub)
	state, err = s.applyLocked(ctx, sess, domain.CompleteTest{Reading: reading})
	if err != nil {
		return domain.TestReading{}, domain.SimulatorState{}, err
	}
	return reading, state, nil
}

// Completion reports the overall completion percentage of a session.
func (s *Service) Completion(ctx context.Context, id string) (int, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return 0, err
	}
	return CompletionPercent(s.Catalog(), state), nil
}

// ActiveCircuit returns the metadata of the session's selected circuit.
func (s *Service) ActiveCircuit(ctx context.Context, id string) (domain.Circuit, bool, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return domain.Circuit{}, false, err
	}
	c, ok := ActiveCircuit(s.Catalog(), state)
	return c, ok, nil
}

// Progress returns the per-circuit progress lines of a session.
func (s *Service) Progress(ctx context.Context, id string) ([]CircuitSummary, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return nil, err
	}
	return ProgressSummary(s.Catalog(), state), nil
}

// List returns every stored session ordered by creation time.
func (s *Service) List(ctx context.Context) ([]domain.SessionRecord, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes a session from the service and its store.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, done := s.begin(ctx, "delete-session")
	defer func() { done(err) }()

	s.mu.Lock()
	sess, cached := s.sessions[id]
	s.mu.Unlock()
	if cached {
		// Waits for an in-flight action to finish saving before the record
		// is removed, so that save cannot bring the session back.
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.mu.Lock()
	delete(s.sessions, id)
	open := len(s.sessions)
	s.mu.Unlock()
	if cached {
		sess.deleted = true
	}
	if !removed && !cached {
		return ErrSessionNotFound{ID: id}
	}
	s.reportOpen(open)
	s.logger.Info("session deleted", zap.String("session", id))
	return nil
}

func (s *Service) reportOpen(n int) {
	if g, ok := s.metrics.(sessionGauges); ok {
		g.SessionsOpen(n)
	}
}
