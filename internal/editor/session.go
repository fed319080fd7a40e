// Package editor implements the DSN editing session that sits between a
// user interface and the validation, probe and storage layers.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/notify"
	"github.com/xabinapal/esdsn/internal/probe"
	"github.com/xabinapal/esdsn/internal/profile"
	"github.com/xabinapal/esdsn/internal/store"
)

var (
	// ErrNameTaken is returned when saving would overwrite another DSN.
	ErrNameTaken = errors.New("a dsn with this name already exists")
	// ErrClosed is returned by a session after Cancel.
	ErrClosed = errors.New("editing session is closed")
)

// Option configures a Session.
type Option func(*Session)

// WithValidator replaces the default validator.
func WithValidator(v *profile.Validator) Option {
	return func(s *Session) {
		s.validator = v
	}
}

// WithProber replaces the default prober.
func WithProber(p *probe.Prober) Option {
	return func(s *Session) {
		s.prober = p
	}
}

// WithLogger sets the application logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier reports RunTest outcomes through n.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// Session edits one DSN. The draft is owned by a single caller; Test and
// Cancel may be called from any goroutine.
type Session struct {
	store     store.Store
	validator *profile.Validator
	prober    *probe.Prober
	logger    *logging.Logger
	notifier  notify.Notifier

	mu sync.Mutex
	// original is the name the DSN is stored under, empty for a new DSN.
	original string
	draft    profile.Profile
	closed   bool
}

func newSession(st store.Store, opts []Option) *Session {
	s := &Session{
		store:  st,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = profile.NewValidator()
	}
	if s.prober == nil {
		s.prober = probe.New(probe.WithLogger(s.logger))
	}
	return s
}

// New starts a session for a DSN that does not exist yet.
func New(st store.Store, opts ...Option) *Session {
	s := newSession(st, opts)
	s.draft = profile.New("")
	return s
}

// Open starts a session for the stored DSN name.
func Open(ctx context.Context, st store.Store, name string, opts ...Option) (*Session, error) {
	p, err := st.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	s := newSession(st, opts)
	s.original = name
	s.draft = p
	return s, nil
}

// IsNew reports whether the DSN has never been saved.
func (s *Session) IsNew() bool {
	return s.Original() == ""
}

// Original returns the stored name of the DSN, empty for a new one.
func (s *Session) Original() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Edit applies fn to the draft. Nothing is validated until Validate, Test or
// Save.
func (s *Session) Edit(fn func(p *profile.Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(&s.draft)
	return nil
}

// Validate resolves the draft without changing it.
func (s *Session) Validate() (profile.Resolved, error) {
	s.mu.Lock()
	closed, draft := s.closed, s.draft
	s.mu.Unlock()

	if closed {
		return profile.Resolved{}, ErrClosed
	}
	return s.validator.Validate(draft)
}

// Test validates the draft and starts a background connection test,
// cancelling any test still running. Validation failures are returned
// without contacting the server.
func (s *Session) Test(ctx context.Context) (*probe.Pending, error) {
	r, err := s.Validate()
	if err != nil {
		return nil, err
	}

	trace := s.openTrace(r.Profile())
	var opts []probe.RunOption
	if trace != nil {
		opts = append(opts, probe.WithTrace(trace))
	}

	pd := s.prober.Start(ctx, r, opts...)
	if trace != nil {
		go func() {
			<-pd.Done()
			_ = trace.Close()
		}()
	}
	return pd, nil
}

// RunTest validates the draft and tests it synchronously, then sends a
// notification if one is configured.
func (s *Session) RunTest(ctx context.Context) (probe.Outcome, error) {
	r, err := s.Validate()
	if err != nil {
		return probe.Outcome{}, err
	}

	var opts []probe.RunOption
	if trace := s.openTrace(r.Profile()); trace != nil {
		defer trace.Close()
		opts = append(opts, probe.WithTrace(trace))
	}

	o := s.prober.Probe(ctx, r, opts...)

	if s.notifier != nil {
		if err := s.notifier.NotifyOutcome(r.Name(), o); err != nil {
			s.logger.Warn("failed to send notification", map[string]interface{}{"error": err.Error()})
		}
	}
	return o, nil
}

// openTrace opens the DSN trace file when the draft enables logging. A
// trace that cannot be opened is logged and skipped.
func (s *Session) openTrace(p profile.Profile) *logging.Logger {
	if !p.Logging.Enabled {
		return nil
	}
	trace, err := logging.OpenTrace(p.Logging.Directory, p.Name, p.Logging.Level)
	if err != nil {
		s.logger.Warn("failed to open trace log", map[string]interface{}{
			"dsn":   p.Name,
			"error": err.Error(),
		})
		return nil
	}
	return trace
}

// Save validates the draft and persists it. Renaming a stored DSN removes
// the entry under its old name. Saving never overwrites a different DSN.
func (s *Session) Save(ctx context.Context) (profile.Resolved, error) {
	r, err := s.Validate()
	if err != nil {
		return profile.Resolved{}, err
	}
	name := r.Name()
	original := s.Original()

	if name != original {
		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			return profile.Resolved{}, err
		}
		if exists {
			return profile.Resolved{}, fmt.Errorf("%w: %q", ErrNameTaken, name)
		}
	}

	if err := s.store.Save(ctx, r); err != nil {
		return profile.Resolved{}, err
	}

	s.mu.Lock()
	s.original = name
	s.draft = r.Profile()
	s.mu.Unlock()

	if original != "" && original != name {
		if err := s.store.Delete(ctx, original); err != nil && !errors.Is(err, store.ErrNotFound) {
			return r, fmt.Errorf("saved %q but could not remove %q: %w", name, original, err)
		}
		s.logger.Info("dsn renamed", map[string]interface{}{"from": original, "to": name})
	}

	s.logger.Info("dsn saved", r.Profile().LogFields())
	return r, nil
}

// Cancel abandons any running test and discards the draft. The session
// cannot be used afterwards.
func (s *Session) Cancel() {
	s.prober.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.logger.Debug("editing session cancelled", map[string]interface{}{"dsn": s.original})
	}
	s.closed = true
	s.draft = profile.Profile{}
}
