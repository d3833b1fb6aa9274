package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"RssDigest/internal/ports"
)

// CronScheduler fires the job at each activation of a cron expression,
// evaluated in the configured timezone.
type CronScheduler struct {
	expr   *cronexpr.Expression
	loc    *time.Location
	logger *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler parses the cron expression up front so a bad schedule is
// a construction error, not a silent no-op.
func NewCronScheduler(spec string, loc *time.Location, log *slog.Logger) (*CronScheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{expr: expr, loc: loc, logger: log}, nil
}

// Start launches the scheduling loop; each activation runs the job
// synchronously, so overlapping runs cannot happen. The loop holds its own
// reference to the stop channel, so Stop called mid-job still halts the
// schedule before the next activation.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	if c.stopped || c.stop != nil {
		c.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		for {
			now := time.Now().In(c.loc)
			next := c.expr.Next(now)
			if next.IsZero() {
				if c.logger != nil {
					c.logger.Warn("cron expression has no future activation, stopping")
				}
				return
			}
			if c.logger != nil {
				c.logger.Debug("next run scheduled", "at", next)
			}

			timer := time.NewTimer(next.Sub(now))
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the scheduling loop. Safe to call more than once; the stop
// channel is closed exactly once.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}
	c.stopped = true
	if c.stop != nil {
		close(c.stop)
	}
	return nil
}
