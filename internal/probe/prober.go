// Package probe tests whether a resolved DSN can authenticate against its
// Elasticsearch endpoint.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/profile"
)

// DefaultTimeout bounds a probe when no other timeout is configured.
const DefaultTimeout = 5 * time.Second

// Option configures a Prober.
type Option func(*Prober)

// WithClient replaces the network client.
func WithClient(c Client) Option {
	return func(p *Prober) {
		p.client = c
	}
}

// WithTimeout sets the per-probe deadline. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger probe events go to.
func WithLogger(l *logging.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// RunOption configures a single probe.
type RunOption func(*run)

type run struct {
	trace *logging.Logger
}

// WithTrace additionally sends this probe's events to l, such as the trace
// file of the DSN being tested.
func WithTrace(l *logging.Logger) RunOption {
	return func(r *run) {
		r.trace = l
	}
}

func newRun(opts []RunOption) run {
	var r run
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Prober runs connection probes. At most one probe started with Start is
// live at a time; starting a new one cancels the previous.
type Prober struct {
	client  Client
	timeout time.Duration
	logger  *logging.Logger

	mu      sync.Mutex
	current *Pending
}

// New creates a Prober using the HTTP client unless overridden.
func New(opts ...Option) *Prober {
	p := &Prober{
		client:  NewHTTPClient(),
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the per-probe deadline.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Pending is a probe running in the background.
type Pending struct {
	id      string
	outcome chan Outcome
	done    chan struct{}
	cancel  context.CancelFunc

	mu        sync.Mutex
	cancelled bool
}

// ID returns the correlation ID used in log entries.
func (pd *Pending) ID() string {
	return pd.id
}

// Outcome delivers at most one Outcome. The channel is closed without a
// value if the probe was cancelled.
func (pd *Pending) Outcome() <-chan Outcome {
	return pd.outcome
}

// Done is closed once the probe goroutine has exited and its connection is
// released.
func (pd *Pending) Done() <-chan struct{} {
	return pd.done
}

// Cancel abandons the probe. It is safe to call more than once and after the
// outcome was delivered.
func (pd *Pending) Cancel() {
	pd.mu.Lock()
	pd.cancelled = true
	pd.mu.Unlock()
	pd.cancel()
}

func (pd *Pending) deliver(o Outcome) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if !pd.cancelled {
		pd.outcome <- o
	}
	close(pd.outcome)
}

// Start cancels any outstanding probe and begins a new one against r.
func (p *Prober) Start(ctx context.Context, r profile.Resolved, opts ...RunOption) *Pending {
	ctx, cancel := context.WithCancel(ctx)
	pd := &Pending{
		id:      uuid.NewString(),
		outcome: make(chan Outcome, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	p.mu.Lock()
	if p.current != nil {
		p.logger.Debug("cancelling outstanding probe", map[string]interface{}{"probe_id": p.current.id})
		p.current.Cancel()
	}
	p.current = pd
	p.mu.Unlock()

	go func() {
		defer close(pd.done)
		defer cancel()

		o := p.probe(ctx, pd.id, r, newRun(opts))
		pd.deliver(o)

		p.mu.Lock()
		if p.current == pd {
			p.current = nil
		}
		p.mu.Unlock()
	}()

	return pd
}

// Cancel abandons the outstanding probe, if any.
func (p *Prober) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Cancel()
		p.current = nil
	}
}

// Probe runs a probe synchronously.
func (p *Prober) Probe(ctx context.Context, r profile.Resolved, opts ...RunOption) Outcome {
	return p.probe(ctx, uuid.NewString(), r, newRun(opts))
}

func (p *Prober) probe(ctx context.Context, id string, r profile.Resolved, rn run) Outcome {
	if r.IsZero() {
		return Outcome{Kind: UnknownError, Reason: "dsn has not been validated"}
	}
	prof := r.Profile()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	fields := prof.LogFields()
	fields["probe_id"] = id
	p.logger.Debug("probe started", fields)
	if rn.trace != nil {
		rn.trace.Info("connection test started", fields)
	}

	start := time.Now()
	resp, err := p.client.Do(ctx, TargetFor(prof))
	o := Classify(resp, err)

	// Whatever the transport reported, an expired deadline is a timeout.
	if err != nil && ctx.Err() == context.DeadlineExceeded && o.Kind != Timeout {
		o = Outcome{Kind: Timeout, Reason: "no answer within " + p.timeout.String()}
	} else if o.Kind == Timeout {
		o.Reason = "no answer within " + p.timeout.String()
	}
	o.Elapsed = time.Since(start)

	fields["outcome"] = o.Kind.String()
	fields["elapsed_ms"] = o.Elapsed.Milliseconds()
	if o.Reason != "" {
		fields["reason"] = o.Reason
	}
	if o.OK() {
		p.logger.Info("probe finished", fields)
	} else {
		p.logger.Warn("probe finished", fields)
	}
	if rn.trace != nil {
		if o.OK() {
			rn.trace.Info("connection test finished", fields)
		} else {
			rn.trace.Error("connection test finished", fields)
		}
	}

	return o
}
