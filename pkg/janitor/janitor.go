// Package janitor runs periodic retention jobs such as cache purges and
// history cleanup on a cron schedule.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/marquee-ai/marquee/pkg/logging"
)

// Job removes expired data and reports how many items it deleted.
type Job func(ctx context.Context) (int64, error)

// Janitor schedules retention jobs.
type Janitor struct {
	cron    *cron.Cron
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a Janitor. Each job run is bounded by timeout.
func New(timeout time.Duration) *Janitor {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Janitor{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		log:     logging.WithComponent("janitor"),
	}
}

// Schedule registers job under name. spec is any robfig/cron expression,
// including descriptors like "@every 1h".
func (j *Janitor) Schedule(spec, name string, job Job) error {
	_, err := j.cron.AddFunc(spec, func() { j.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// RunNow executes job once, synchronously.
func (j *Janitor) RunNow(name string, job Job) {
	j.run(name, job)
}

func (j *Janitor) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	n, err := job(ctx)
	if err != nil {
		j.log.Error().Err(err).Str("job", name).Msg("retention job failed")
		return
	}
	j.log.Debug().Str("job", name).Int64("removed", n).Dur("took", time.Since(start)).Msg("retention job done")
}

// Start begins running scheduled jobs in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the scheduler and waits for running jobs, up to ctx.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		j.log.Warn().Msg("retention jobs still running at shutdown")
	}
}
