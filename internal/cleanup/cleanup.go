// Package cleanup drives the end-to-end batch workflow: collect candidate
// usernames, classify each against its live Duo record, and delete the
// stray ones, with a pre-mutation backup snapshot and per-username audit
// artifacts. A run is strictly sequential; the API client's rate limiter
// gates every remote call.
package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"duoclean/internal/classify"
	"duoclean/internal/config"
	"duoclean/internal/duo"
	"duoclean/internal/model"
)

const pageSize = 100

// API is the subset of the Duo client a run needs.
type API interface {
	GetUserByUsername(ctx context.Context, username string) (*model.Account, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.Account, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Hooks lets a host observe a running batch. Both callbacks are optional.
type Hooks struct {
	Log      func(line string)
	Progress func(processed, deleted, errs int)
}

// Options select the behavior of one run.
type Options struct {
	DryRun       bool
	Interactive  bool
	Usernames    []string // explicit candidate list; nil means full export
	UsernameFile string   // read into Usernames when set and Usernames is nil
}

type Runner struct {
	api   API
	cfg   config.CleanupConfig
	hooks Hooks

	prompter Prompter
	sleep    func(time.Duration)
	now      func() time.Time
}

type RunnerOption func(*Runner)

func WithPrompter(p Prompter) RunnerOption {
	return func(r *Runner) { r.prompter = p }
}

func WithHooks(h Hooks) RunnerOption {
	return func(r *Runner) { r.hooks = h }
}

// WithClock fixes time and sleep, for tests.
func WithClock(now func() time.Time, sleep func(time.Duration)) RunnerOption {
	return func(r *Runner) {
		r.now = now
		r.sleep = sleep
	}
}

func NewRunner(api API, cfg config.CleanupConfig, opts ...RunnerOption) *Runner {
	r := &Runner{
		api:      api,
		cfg:      cfg,
		prompter: NewTerminalPrompter(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one batch. A failure while establishing the candidate set
// is fatal and returned; a failure on an individual username is recorded
// as an ERROR result and the batch continues. Authentication failures
// abort the run wherever they occur.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	started := r.now()
	stamp := started.Format("20060102_150405")

	if err := os.MkdirAll(r.cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(r.cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	report := &Report{
		StartedAt:   started,
		DryRun:      opts.DryRun,
		LogFile:     filepath.Join(r.cfg.LogDir, fmt.Sprintf("duo_cleanup_%s.log", stamp)),
		ResultsFile: filepath.Join(r.cfg.LogDir, fmt.Sprintf("duo_cleanup_results_%s.csv", stamp)),
	}

	logf, err := os.Create(report.LogFile)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	defer logf.Close()

	runLog := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		fmt.Fprintln(logf, line)
		if r.hooks.Log != nil {
			r.hooks.Log(line)
		}
	}

	runLog("Duo Student Cleanup - %s", stamp)
	runLog("Dry Run: %v", opts.DryRun)

	usernames, err := r.collect(ctx, opts, stamp, report, runLog)
	if err != nil {
		runLog("FATAL: failed to collect candidate accounts: %v", err)
		return nil, fmt.Errorf("collect candidate accounts: %w", err)
	}
	runLog("Total accounts to check: %d", len(usernames))

	if err := r.process(ctx, usernames, opts, report, runLog); err != nil {
		return nil, err
	}

	if err := report.writeCSV(report.ResultsFile); err != nil {
		return nil, fmt.Errorf("write results CSV: %w", err)
	}
	return report, nil
}

// collect establishes the candidate set. An explicit list is used
// verbatim; otherwise the full account export is paged down, snapshotted
// to the backup file, and filtered by the student pattern. Any remote
// failure here is fatal since no safe candidate set exists.
func (r *Runner) collect(ctx context.Context, opts Options, stamp string, report *Report, runLog func(string, ...any)) ([]string, error) {
	if opts.UsernameFile != "" && len(opts.Usernames) == 0 {
		usernames, err := LoadUsernameFile(opts.UsernameFile)
		if err != nil {
			return nil, fmt.Errorf("read username file: %w", err)
		}
		runLog("Loaded %d usernames from %s", len(usernames), opts.UsernameFile)
		return usernames, nil
	}
	if len(opts.Usernames) > 0 {
		return opts.Usernames, nil
	}

	runLog("Fetching all Duo users...")
	var all []model.Account
	for offset := 0; ; {
		page, err := r.api.ListUsers(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += len(page)
		runLog("  Fetched %d users...", len(all))
	}

	// Snapshot everything before any mutation happens.
	report.BackupFile = filepath.Join(r.cfg.BackupDir, fmt.Sprintf("duo_users_backup_%s.json", stamp))
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	if err := os.WriteFile(report.BackupFile, data, 0o644); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	runLog("Backed up %d users to %s", len(all), report.BackupFile)

	var usernames []string
	for _, acct := range all {
		if classify.IsStudentAccount(acct.Username) {
			usernames = append(usernames, acct.Username)
		}
	}
	runLog("Found %d student accounts", len(usernames))
	return usernames, nil
}

func (r *Runner) process(ctx context.Context, usernames []string, opts Options, report *Report, runLog func(string, ...any)) error {
	for i, username := range usernames {
		if err := ctx.Err(); err != nil {
			return err
		}

		runLog("%s: Processing %s", r.now().Format(time.DateTime), username)

		res, err := r.processOne(ctx, username, opts, runLog)
		if err != nil {
			// Only credential failures escape the per-username boundary.
			return err
		}
		report.add(res)
		r.notifyProgress(report)

		// Extra pause after each fixed-size batch to spread load beyond
		// what the per-call limiter enforces.
		if r.cfg.BatchSize > 0 && (i+1)%r.cfg.BatchSize == 0 && i+1 < len(usernames) {
			r.sleep(r.cfg.BatchPause())
		}
	}
	return nil
}

func (r *Runner) processOne(ctx context.Context, username string, opts Options, runLog func(string, ...any)) (Result, error) {
	acct, err := r.api.GetUserByUsername(ctx, username)
	if err != nil {
		var authErr *duo.AuthError
		if errors.As(err, &authErr) {
			return Result{}, err
		}
		runLog("  ERROR looking up %s: %v", username, err)
		return Result{
			Username: username,
			InDuo:    false,
			Action:   ActionError,
			Message:  fmt.Sprintf("Lookup failed: %v", err),
		}, nil
	}

	switch classify.Classify(acct) {
	case classify.NotFound:
		runLog("  Not found in Duo")
		return Result{
			Username: username,
			Action:   ActionNone,
			Message:  "Not found in Duo",
		}, nil

	case classify.DirectoryManaged:
		runLog("  Directory managed - skipping")
		return Result{
			Username: username,
			InDuo:    true,
			Managed:  ptr(true),
			Action:   ActionSkip,
			Message:  "Managed by directory sync - remove from sync scope",
		}, nil
	}

	// Deletable. Confirmation is asked even under dry-run so an operator
	// can rehearse the interactive flow; declining records the skip.
	if opts.Interactive && !r.prompter.ConfirmDelete(username) {
		runLog("  Skipped by user")
		return Result{
			Username: username,
			InDuo:    true,
			Managed:  ptr(false),
			Action:   ActionSkip,
			Message:  "User skipped deletion",
		}, nil
	}

	if opts.DryRun {
		runLog("  Would delete (dry run)")
		return Result{
			Username: username,
			InDuo:    true,
			Managed:  ptr(false),
			Action:   ActionWouldDelete,
			Message:  "Dry run - no action taken",
		}, nil
	}

	if err := r.api.DeleteUser(ctx, acct.UserID); err != nil {
		var authErr *duo.AuthError
		if errors.As(err, &authErr) {
			return Result{}, err
		}
		runLog("  ERROR during deletion")
		return Result{
			Username: username,
			InDuo:    true,
			Managed:  ptr(false),
			Action:   ActionError,
			Message:  "Deletion failed",
		}, nil
	}

	runLog("  DELETED")
	return Result{
		Username: username,
		InDuo:    true,
		Managed:  ptr(false),
		Action:   ActionDeleted,
		Message:  "Successfully deleted",
	}, nil
}

func (r *Runner) notifyProgress(report *Report) {
	if r.hooks.Progress != nil {
		r.hooks.Progress(len(report.Results), report.Deleted(), report.Errors())
	}
}

func ptr(b bool) *bool { return &b }
