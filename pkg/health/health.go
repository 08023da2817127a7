// Package health serves the /livez and /readyz probes of the cart facade.
//
// Checks run in the background and flip state only after a run of
// consecutive results, so a single slow ping does not flap the probe.
// Optional checks are reported but never fail a probe: the facade stays
// ready while the commerce API is down because the cart works offline.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind uint8

const (
	Liveness Kind = iota
	Readiness
)

// Probe statuses.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Option tunes a single check.
type Option func(*check)

// WithTimeout bounds a single run of the check. Default is one second.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the check unhealthy
// and how many successes recover it. Defaults are 3 and 1.
func WithThresholds(failures, successes int) Option {
	return func(c *check) {
		if failures > 0 {
			c.failAfter = failures
		}
		if successes > 0 {
			c.passAfter = successes
		}
	}
}

// Optional reports the check in the probe body without failing the probe.
func Optional() Option {
	return func(c *check) { c.optional = true }
}

type check struct {
	name      string
	kind      Kind
	fn        CheckFunc
	timeout   time.Duration
	failAfter int
	passAfter int
	optional  bool

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the single goroutine running the check.
	fails  int
	passes int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.passes = 0
		if c.fails++; c.fails >= c.failAfter {
			c.healthy.Store(false)
		}
		return
	}
	c.lastErr.Store(nil)
	c.fails = 0
	if c.passes++; c.passes >= c.passAfter {
		c.healthy.Store(true)
	}
}

func (c *check) failure() string {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return "check is unhealthy"
}

// Health holds registered checks and the manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Register adds a check. Checks start healthy and must be registered before
// Start.
func (h *Health) Register(kind Kind, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:      name,
		kind:      kind,
		fn:        fn,
		timeout:   time.Second,
		failAfter: 3,
		passAfter: 1,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every check immediately and then every interval until ctx is
// done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go func() {
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
		}()
	}
}

// Stop cancels the background checks. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch, e.g. false while draining.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Report is the evaluated state of one probe.
type Report struct {
	Status string
	// Failures maps check names to their last error, sorted by name on
	// encode.
	Failures map[string]string
}

func (h *Health) evaluate(kind Kind) Report {
	h.mu.RLock()
	checks := slices.Clone(h.checks)
	h.mu.RUnlock()

	r := Report{Status: StatusOK, Failures: map[string]string{}}
	for _, c := range checks {
		if c.kind != kind || c.healthy.Load() {
			continue
		}
		r.Failures[c.name] = c.failure()
		switch {
		case !c.optional:
			r.Status = StatusUnhealthy
		case r.Status == StatusOK:
			r.Status = StatusDegraded
		}
	}
	if kind == Readiness && !h.ready.Load() {
		r.Failures["_readiness"] = "service is not ready"
		r.Status = StatusUnhealthy
	}
	return r
}

// Live evaluates the liveness probe.
func (h *Health) Live() Report { return h.evaluate(Liveness) }

// Ready evaluates the readiness probe.
func (h *Health) Ready() Report { return h.evaluate(Readiness) }

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.Live())
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.Ready())
}

func writeReport(w http.ResponseWriter, r Report) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("status")
		e.Str(r.Status)
		if len(r.Failures) == 0 {
			return
		}
		names := make([]string, 0, len(r.Failures))
		for name := range r.Failures {
			names = append(names, name)
		}
		slices.Sort(names)
		e.FieldStart("checks")
		e.Obj(func(e *jx.Encoder) {
			for _, name := range names {
				e.FieldStart(name)
				e.Str(r.Failures[name])
			}
		})
	})

	status := http.StatusOK
	if r.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
