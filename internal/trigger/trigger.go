// Package trigger decides when a reconciliation pass runs: on a cron or
// interval schedule, and on demand via Kick.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "coursebell/pkg/logx"
)

type Config struct {
	Schedule   string
	Timezone   string
	RunOnStart bool
}

// Job is one triggered run. reason is "schedule", "start" or the Kick reason.
type Job func(ctx context.Context, reason string)

// Runner fires Job on schedule. Scheduled runs that would overlap a still
// running one are skipped; kicks coalesce into at most one pending run.
type Runner struct {
	job Job
	log logx.Logger

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	kick    chan string
	done    chan struct{}
	running sync.Mutex
}

func New(cfg Config, job Job, log logx.Logger) (*Runner, error) {
	if _, err := ParseSchedule(cfg.Schedule); err != nil {
		return nil, err
	}
	if _, err := loadLocation(cfg.Timezone); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{job: job, log: log, cfg: cfg}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.kick = make(chan string, 1)
	r.done = make(chan struct{})

	c, err := r.buildLocked()
	if err != nil {
		r.cancel()
		return err
	}
	r.c = c
	c.Start()
	go r.kickLoop(r.ctx, r.kick, r.done)

	r.log.Info("trigger started", logx.String("schedule", r.cfg.Schedule), logx.String("tz", strings.TrimSpace(r.cfg.Timezone)))
	if r.cfg.RunOnStart {
		r.kickLocked("start")
	}
	return nil
}

func (r *Runner) buildLocked() (*cron.Cron, error) {
	spec, err := ParseSchedule(r.cfg.Schedule)
	if err != nil {
		return nil, err
	}
	loc, err := loadLocation(r.cfg.Timezone)
	if err != nil {
		return nil, err
	}
	cl := cronLogger{log: r.log}
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx := r.ctx
	if _, err := c.AddFunc(spec.Expr(), func() { r.run(ctx, "schedule") }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", r.cfg.Schedule, err)
	}
	return c, nil
}

// Apply reschedules when the schedule or time zone changed.
func (r *Runner) Apply(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.cfg
	r.cfg = cfg
	if r.c == nil || (old.Schedule == cfg.Schedule && old.Timezone == cfg.Timezone) {
		return nil
	}
	c, err := r.buildLocked()
	if err != nil {
		r.cfg = old
		return err
	}
	<-r.c.Stop().Done()
	r.c = c
	c.Start()
	r.log.Info("trigger rescheduled", logx.String("schedule", cfg.Schedule))
	return nil
}

// Kick requests a run now. It never blocks; a kick while one is pending is
// dropped. It reports whether the kick was accepted.
func (r *Runner) Kick(reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kickLocked(reason)
}

func (r *Runner) kickLocked(reason string) bool {
	if r.kick == nil {
		return false
	}
	select {
	case r.kick <- reason:
		return true
	default:
		return false
	}
}

// Next returns the next scheduled run, zero if stopped.
func (r *Runner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return time.Time{}
	}
	if es := r.c.Entries(); len(es) > 0 {
		return es[0].Next
	}
	return time.Time{}
}

func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c, cancel, done := r.c, r.cancel, r.done
	r.c, r.kick = nil, nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
	r.log.Info("trigger stopped")
}

func (r *Runner) kickLoop(ctx context.Context, kick <-chan string, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-kick:
			r.run(ctx, reason)
		}
	}
}

// run serializes scheduled and kicked runs.
func (r *Runner) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	r.running.Lock()
	defer r.running.Unlock()
	r.job(ctx, reason)
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Warn("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
