package health

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the process runs more than limit goroutines.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("goroutine count %d exceeds %d", n, limit)
		}
		return nil
	}
}

// Pinger reports the availability of a backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a backend ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// Heartbeat records when a background loop last completed a pass.
type Heartbeat struct {
	last atomic.Int64
	now  func() time.Time
}

// NewHeartbeat returns a Heartbeat that counts as fresh from now.
func NewHeartbeat() *Heartbeat {
	hb := &Heartbeat{now: time.Now}
	hb.Beat()
	return hb
}

// Beat marks a completed pass.
func (hb *Heartbeat) Beat() { hb.last.Store(hb.now().UnixNano()) }

// Last returns the time of the last pass.
func (hb *Heartbeat) Last() time.Time { return time.Unix(0, hb.last.Load()) }

// Check fails when no pass completed within maxAge, i.e. the loop is stuck.
func (hb *Heartbeat) Check(maxAge time.Duration) CheckFunc {
	return func(context.Context) error {
		if age := hb.now().Sub(hb.Last()); age > maxAge {
			return errors.Errorf("last pass %s ago, limit %s", age.Truncate(time.Second), maxAge)
		}
		return nil
	}
}
