// Package health periodically probes the completion/embedding service.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const probeTimeout = 15 * time.Second

// Pinger checks that a remote service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the outcome of the most recent probe.
type Status struct {
	OK        bool
	CheckedAt time.Time
	Err       string
}

// Monitor runs a Pinger on a cron schedule and keeps the last outcome.
type Monitor struct {
	ctx    context.Context
	cron   *cron.Cron
	spec   string
	pinger Pinger
	log    *slog.Logger

	mu     sync.RWMutex
	status Status
}

// New returns a Monitor; nothing runs until Start.
func New(ctx context.Context, pinger Pinger, spec string, log *slog.Logger) *Monitor {
	return &Monitor{
		ctx:    ctx,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		pinger: pinger,
		log:    log,
	}
}

// Start schedules the probe and runs the first one in the background.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(m.spec, m.Check); err != nil {
		return err
	}

	m.cron.Start()
	go m.Check()

	return nil
}

// Stop waits for a running probe to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

// Check probes the service once and records the result.
func (m *Monitor) Check() {
	ctx, cancel := context.WithTimeout(m.ctx, probeTimeout)
	defer cancel()

	err := m.pinger.Ping(ctx)

	status := Status{OK: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		status.Err = err.Error()
		m.log.WarnContext(ctx, "Provider probe failed",
			"error", err,
			"spec", m.spec)
	} else {
		m.log.DebugContext(ctx, "Provider probe succeeded",
			"spec", m.spec)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// Status returns the last probe result; CheckedAt is zero before the first probe.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.status
}
