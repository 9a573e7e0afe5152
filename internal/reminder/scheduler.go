package reminder

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"coursebell/internal/eventbus"
	"coursebell/internal/task"
	logx "coursebell/pkg/logx"
)

// Command asks the delivery primitive to show a notification at FireAt.
type Command struct {
	Key    task.Key
	Lead   LeadTime
	Title  string
	Body   string
	FireAt time.Time
}

// Mark returns the ledger mark this command commits on success.
func (c Command) Mark() Mark { return Mark{Key: c.Key, Lead: c.Lead} }

// Primitive is the external "schedule local notification" operation.
// A returned error is a per-command failure.
type Primitive interface {
	Schedule(ctx context.Context, cmd Command) error
}

// PrimitiveFunc adapts a function to Primitive.
type PrimitiveFunc func(ctx context.Context, cmd Command) error

func (f PrimitiveFunc) Schedule(ctx context.Context, cmd Command) error { return f(ctx, cmd) }

// Failure is a command the primitive rejected.
type Failure struct {
	Command Command
	Err     error
}

// Report summarizes one reconciliation pass.
type Report struct {
	Considered       int
	AlreadyScheduled int
	NotYet           int
	Expired          int
	Scheduled        []Command
	Failed           []Failure
}

// SchedulerEvent is published on the bus for every dispatched command.
type SchedulerEvent struct {
	Key    string    `json:"key"`
	Lead   string    `json:"lead"`
	FireAt time.Time `json:"fire_at"`
	Error  string    `json:"error,omitempty"`
}

// Scheduler drives Evaluate over a ranked task list and hands due reminders
// to the primitive, at most once per (task, lead time) per ledger.
type Scheduler struct {
	prim        Primitive
	log         logx.Logger
	bus         eventbus.Bus
	concurrency int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option { return func(s *Scheduler) { s.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(s *Scheduler) { s.bus = bus } }

// WithConcurrency bounds in-flight Schedule calls. 1 dispatches sequentially.
func WithConcurrency(n int) Option { return func(s *Scheduler) { s.concurrency = n } }

func NewScheduler(prim Primitive, opts ...Option) *Scheduler {
	s := &Scheduler{prim: prim, concurrency: 4}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	return s
}

// Planned is one row of a dry run.
type Planned struct {
	Task             task.Task
	Decision         Decision
	AlreadyScheduled bool
}

// Plan evaluates tasks without dispatching anything or touching the ledger.
// ledger may be nil.
func (s *Scheduler) Plan(tasks []task.Task, lead LeadTime, ledger *Ledger, now time.Time) []Planned {
	out := make([]Planned, 0, len(tasks))
	for _, t := range tasks {
		p := Planned{Task: t, Decision: Evaluate(t, lead, now)}
		if ledger != nil {
			p.AlreadyScheduled = ledger.Has(Mark{Key: t.Key(), Lead: lead})
		}
		out = append(out, p)
	}
	return out
}

// Reconcile runs one pass. Tasks are evaluated in the given (ranked) order;
// due commands are dispatched concurrently and each mark is committed to the
// ledger only after its Schedule call succeeded, so a failed command is retried
// on the next pass. Failures never abort the pass. A nil ledger behaves as an
// empty, throwaway one.
func (s *Scheduler) Reconcile(ctx context.Context, tasks []task.Task, lead LeadTime, ledger *Ledger, now time.Time) Report {
	if ledger == nil {
		ledger = NewLedger(nil, s.log)
	}
	rep := Report{Considered: len(tasks)}

	var pending []Command
	inPass := map[string]struct{}{}
	for _, t := range tasks {
		m := Mark{Key: t.Key(), Lead: lead}
		if _, dup := inPass[m.ID()]; dup || ledger.Has(m) {
			rep.AlreadyScheduled++
			continue
		}
		d := Evaluate(t, lead, now)
		switch d.Verdict {
		case NotYet:
			rep.NotYet++
			continue
		case Expired:
			rep.Expired++
			continue
		}
		inPass[m.ID()] = struct{}{}
		pending = append(pending, Command{
			Key:    m.Key,
			Lead:   lead,
			Title:  Title(t),
			Body:   Body(t, now),
			FireAt: d.FireAt,
		})
	}

	errs := make([]error, len(pending))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range pending {
		i := i
		g.Go(func() error {
			errs[i] = s.dispatch(ctx, pending[i], ledger)
			return nil
		})
	}
	_ = g.Wait()

	for i, cmd := range pending {
		if errs[i] != nil {
			rep.Failed = append(rep.Failed, Failure{Command: cmd, Err: errs[i]})
			continue
		}
		rep.Scheduled = append(rep.Scheduled, cmd)
	}
	return rep
}

func (s *Scheduler) dispatch(ctx context.Context, cmd Command, ledger *Ledger) error {
	err := s.schedule(ctx, cmd)
	ev := SchedulerEvent{Key: cmd.Key.String(), Lead: cmd.Lead.String(), FireAt: cmd.FireAt}
	if err != nil {
		ev.Error = err.Error()
		s.log.Warn("reminder schedule failed", logx.String("task", ev.Key), logx.String("lead", ev.Lead), logx.Err(err))
		eventbus.Publish(s.bus, eventbus.TopicReminderFailed, ev)
		return err
	}
	ledger.Add(ctx, cmd.Mark())
	s.log.Info("reminder scheduled", logx.String("task", ev.Key), logx.String("lead", ev.Lead), logx.Time("fire_at", cmd.FireAt))
	eventbus.Publish(s.bus, eventbus.TopicReminderScheduled, ev)
	return nil
}

// schedule calls the primitive, turning a panic into a per-command failure.
func (s *Scheduler) schedule(ctx context.Context, cmd Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule panicked: %v", r)
		}
	}()
	return s.prim.Schedule(ctx, cmd)
}
