// Package runmgr owns the "a cleanup run is active" state for the web
// surface. At most one run may be in flight process-wide: the rate
// limiter and the run's log/backup artifacts are singletons for a run.
package runmgr

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"duoclean/internal/cleanup"
	"duoclean/internal/config"
	"duoclean/internal/model"
)

// ErrRunInProgress is returned when a start is requested while a run is
// still active.
var ErrRunInProgress = errors.New("a cleanup run is already in progress")

const logRingSize = 50

// Status is a point-in-time snapshot of the manager's state, safe to
// hand to a template or JSON encoder.
type Status struct {
	Running   bool      `json:"is_running"`
	DryRun    bool      `json:"dry_run"`
	StartedAt time.Time `json:"started_at"`
	Processed int       `json:"processed"`
	Deleted   int       `json:"deleted"`
	Errors    int       `json:"errors"`
	Logs      []string  `json:"logs"`
	LastError string    `json:"error,omitempty"`
}

// RunStore persists finished run records.
type RunStore interface {
	SaveRun(run model.Run) (int64, error)
}

type Manager struct {
	api   cleanup.API
	cfg   config.CleanupConfig
	store RunStore

	mu     sync.Mutex
	status Status
}

func NewManager(api cleanup.API, cfg config.CleanupConfig, store RunStore) *Manager {
	return &Manager{api: api, cfg: cfg, store: store}
}

// Start launches a background cleanup run. Web-triggered runs are never
// interactive; the only cancellation granularity is the process.
func (m *Manager) Start(dryRun bool, triggeredBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Running {
		return ErrRunInProgress
	}
	m.status = Status{
		Running:   true,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}

	go m.run(dryRun, triggeredBy)
	return nil
}

func (m *Manager) run(dryRun bool, triggeredBy string) {
	hooks := cleanup.Hooks{
		Log: func(line string) {
			m.mu.Lock()
			m.status.Logs = append(m.status.Logs, line)
			if len(m.status.Logs) > logRingSize {
				m.status.Logs = m.status.Logs[len(m.status.Logs)-logRingSize:]
			}
			m.mu.Unlock()
		},
		Progress: func(processed, deleted, errs int) {
			m.mu.Lock()
			m.status.Processed = processed
			m.status.Deleted = deleted
			m.status.Errors = errs
			m.mu.Unlock()
		},
	}

	runner := cleanup.NewRunner(m.api, m.cfg, cleanup.WithHooks(hooks))
	started := time.Now()

	report, err := runner.Run(context.Background(), cleanup.Options{
		DryRun:       dryRun,
		UsernameFile: m.cfg.UsernameFile,
	})

	run := model.Run{
		StartedAt:   started,
		DryRun:      dryRun,
		Duration:    int(time.Since(started).Seconds()),
		TriggeredBy: triggeredBy,
	}

	m.mu.Lock()
	m.status.Running = false
	if err != nil {
		m.status.LastError = err.Error()
		run.Status = "failed"
		run.Errors = 1
	} else {
		run.Status = "completed"
		run.Processed = len(report.Results)
		run.Deleted = report.Deleted()
		run.Errors = report.Errors()
		run.LogFile = report.LogFile
		run.ResultsFile = report.ResultsFile
		run.BackupFile = report.BackupFile
	}
	m.mu.Unlock()

	if _, dbErr := m.store.SaveRun(run); dbErr != nil {
		log.Printf("Failed to save run history: %v", dbErr)
	}
	if err != nil {
		log.Printf("Cleanup run failed: %v", err)
	}
}

// Current returns a copy of the live status.
func (m *Manager) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.status
	s.Logs = append([]string(nil), m.status.Logs...)
	return s
}
