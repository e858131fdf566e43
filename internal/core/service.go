package core

import (
	"context"
	"time"
)

// Service wraps a History with metrics and audit instrumentation. Every
// operation is observed with its name, outcome and duration, and appended to
// the audit log. The wrapped history's semantics are unchanged.
type Service struct {
	history *History
	metrics MetricsRecorder
	audit   AuditLogger
	nowFn   func() time.Time
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithMetricsRecorder attaches a metrics backend to the service.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithAuditLogger attaches an audit sink to the service.
func WithAuditLogger(log AuditLogger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.audit = log
		}
	}
}

// NewService wraps the supplied history. Without options the service runs
// with no-op observability.
func NewService(history *History, opts ...ServiceOption) *Service {
	s := &Service{
		history: history,
		metrics: noopMetricsRecorder{},
		audit:   noopAuditLogger{},
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the wrapped history.
func (s *Service) History() *History { return s.history }

func (s *Service) observe(ctx context.Context, operation, detail string, started time.Time, err error) {
	duration := s.nowFn().Sub(started)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	entry := AuditEntry{
		Operation:  operation,
		Detail:     detail,
		Status:     "success",
		OccurredAt: started.UTC(),
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// Checkpoint captures and appends the container's current state.
func (s *Service) Checkpoint(ctx context.Context, description string) (Label, error) {
	started := s.nowFn()
	label, err := s.history.Checkpoint(description)
	s.observe(ctx, "checkpoint", description, started, err)
	return label, err
}

// Undo steps the history cursor one entry back.
func (s *Service) Undo(ctx context.Context) error {
	started := s.nowFn()
	err := s.history.Undo()
	s.observe(ctx, "undo", "", started, err)
	return err
}

// Redo steps the history cursor one entry forward.
func (s *Service) Redo(ctx context.Context) error {
	started := s.nowFn()
	err := s.history.Redo()
	s.observe(ctx, "redo", "", started, err)
	return err
}

// Save persists the current state under name and returns the archive ref.
func (s *Service) Save(ctx context.Context, name string) (string, error) {
	started := s.nowFn()
	ref, err := s.history.Save(ctx, name)
	s.observe(ctx, "save", name, started, err)
	return ref, err
}

// Load restores an archived snapshot by reference.
func (s *Service) Load(ctx context.Context, ref string) error {
	started := s.nowFn()
	err := s.history.Load(ctx, ref)
	s.observe(ctx, "load", ref, started, err)
	return err
}

// Log returns the history log. Reads are observed too so the audit trail
// shows who inspected the history.
func (s *Service) Log(ctx context.Context) []LogEntry {
	started := s.nowFn()
	entries := s.history.Log()
	s.observe(ctx, "log", "", started, nil)
	return entries
}
