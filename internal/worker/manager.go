package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Job is a unit of scheduled work
type Job func(ctx context.Context) error

// Manager runs long-lived services and cron-scheduled jobs under one
// context. The first service error cancels everything else.
type Manager struct {
	cron    *cron.Cron
	eg      *errgroup.Group
	ctx     context.Context
	logger  zerolog.Logger
	mutex   sync.Mutex
	entries int
}

// NewManager creates a manager bound to ctx
func NewManager(ctx context.Context, logger zerolog.Logger) *Manager {
	eg, egCtx := errgroup.WithContext(ctx)
	log := logger.With().Str("component", "worker_manager").Logger()
	cronLog := cronLogger{logger: log}

	return &Manager{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		eg:     eg,
		ctx:    egCtx,
		logger: log,
	}
}

// Context is cancelled when the manager shuts down
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Go starts a named service
func (m *Manager) Go(name string, fn Job) {
	m.eg.Go(func() error {
		m.logger.Debug().Str("service", name).Msg("Starting service")
		if err := fn(m.ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// Schedule runs job on spec, a cron expression with an optional seconds
// field. Runs never overlap; failures are logged and retried on the next tick.
func (m *Manager) Schedule(name, spec string, job Job) error {
	_, err := m.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(m.ctx); err != nil {
			m.logger.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
			return
		}
		m.logger.Info().
			Str("job", name).
			Dur("duration", time.Since(start)).
			Msg("Scheduled job completed")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	m.mutex.Lock()
	m.entries++
	m.mutex.Unlock()
	return nil
}

// Wait starts the scheduler and blocks until every service has returned and,
// when jobs are scheduled, the context is done
func (m *Manager) Wait() error {
	m.mutex.Lock()
	scheduled := m.entries > 0
	m.mutex.Unlock()

	if scheduled {
		m.cron.Start()
		m.logger.Info().Int("jobs", len(m.cron.Entries())).Msg("Scheduler started")
		m.eg.Go(func() error {
			<-m.ctx.Done()
			return nil
		})
	}

	err := m.eg.Wait()

	if scheduled {
		<-m.cron.Stop().Done()
		m.logger.Info().Msg("Scheduler stopped")
	}
	return err
}

// cronLogger adapts zerolog to the cron logger interface
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
