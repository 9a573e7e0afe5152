package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"coursebell/internal/config"
	"coursebell/internal/eventbus"
	"coursebell/internal/notifier"
	"coursebell/internal/prefs"
	"coursebell/internal/reminder"
	rtsup "coursebell/internal/runtime/supervisor"
	"coursebell/internal/source"
	"coursebell/internal/storage"
	"coursebell/internal/task"
	kit "coursebell/internal/transport"
	"coursebell/internal/transport/console"
	"coursebell/internal/transport/telegram"
	"coursebell/internal/trigger"
	logx "coursebell/pkg/logx"
)

// App owns every long-lived component: config, storage, the reminder ledger,
// the delivery pipeline and the trigger. One App is one session.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter // nil when reminders go to the console
	sender  kit.Sender

	notif  *notifier.Service
	sched  *reminder.Scheduler
	ledger *reminder.Ledger
	prefs  *prefs.Prefs
	src    source.Source
	trig   *trigger.Runner

	now func() time.Time

	// passMu serializes passes: trigger runs, kicks and CLI calls.
	passMu sync.Mutex

	mu       sync.RWMutex
	owners   map[int64]struct{}
	chat     kit.ChatTarget
	lastPass PassResult

	updates chan kit.Message
}

// Option customizes New. Mostly used by tests and the one-shot CLI commands.
type Option func(*options)

type options struct {
	offline bool
	sender  kit.Sender
	src     source.Source
	now     func() time.Time
	out     io.Writer
}

// Offline skips the Telegram transport. Reminders, if any, go to the console.
func Offline() Option { return func(o *options) { o.offline = true } }

// WithSender replaces the transport used for delivery.
func WithSender(s kit.Sender) Option { return func(o *options) { o.sender = s } }

// WithSource replaces the configured course source.
func WithSource(src source.Source) Option { return func(o *options) { o.src = src } }

// WithClock replaces time.Now for passes.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithConsoleOutput sets where the console sender prints reminders.
func WithConsoleOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// PassResult is the outcome of the most recent pass, shown by /status.
type PassResult struct {
	Reason   string
	At       time.Time
	Took     time.Duration
	Lead     reminder.LeadTime
	Tasks    int
	Report   reminder.Report
	FetchErr string
}

// PassEvent is published on the bus after each pass.
type PassEvent struct {
	Reason    string `json:"reason"`
	Lead      string `json:"lead"`
	Tasks     int    `json:"tasks"`
	Scheduled int    `json:"scheduled"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{out: os.Stdout}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	fail := func(err error) (*App, error) {
		if store != nil {
			_ = store.Close()
		}
		logSvc.Close()
		return nil, err
	}

	var kv prefs.KV
	if store != nil {
		kv = store
	}
	pr := prefs.New(kv, cfg.Reminder.LeadTime(), log.With(logx.String("comp", "prefs")))

	var marks reminder.MarkStore
	if cfg.Reminder.PersistMarks && store != nil {
		marks = store
	}
	ledger := reminder.NewLedger(marks, log.With(logx.String("comp", "ledger")))
	if n, err := ledger.Load(context.Background()); err != nil {
		log.Warn("ledger load failed; starting empty", logx.Err(err))
	} else if marks != nil {
		log.Info("ledger loaded", logx.Int("marks", n))
	}

	// Transport
	var ad kit.Adapter
	sender := o.sender
	if sender == nil {
		if !o.offline && strings.TrimSpace(cfg.Telegram.Token) != "" {
			tcfg, err := mapTelegramConfig(cfg)
			if err != nil {
				return fail(err)
			}
			tg, err := telegram.New(tcfg, log.With(logx.String("comp", "telegram")))
			if err != nil {
				return fail(fmt.Errorf("telegram: %w", err))
			}
			ad, sender = tg, tg
		} else {
			sender = console.New(o.out, log.With(logx.String("comp", "console")))
		}
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return fail(err)
	}
	notif := notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")), bus)

	sched := reminder.NewScheduler(notif,
		reminder.WithLogger(log.With(logx.String("comp", "scheduler"))),
		reminder.WithBus(bus),
		reminder.WithConcurrency(cfg.Reminder.Concurrency),
	)

	src := o.src
	if src == nil {
		scfg, err := mapSourceConfig(cfg)
		if err != nil {
			return fail(err)
		}
		src, err = source.New(scfg, log.With(logx.String("comp", "source")))
		if err != nil {
			return fail(err)
		}
	}

	now := o.now
	if now == nil {
		now = time.Now
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sender:  sender,
		notif:   notif,
		sched:   sched,
		ledger:  ledger,
		prefs:   pr,
		src:     src,
		now:     now,
		updates: make(chan kit.Message, 64),
	}
	a.setOwners(cfg.Telegram.OwnerUserIDs)
	a.setChat(kit.ChatTarget{ChatID: pr.Chat(context.Background(), cfg.Telegram.ChatID), ThreadID: cfg.Telegram.ThreadID})

	trig, err := trigger.New(mapTriggerConfig(cfg), a.runTriggered, log.With(logx.String("comp", "trigger")))
	if err != nil {
		return fail(err)
	}
	a.trig = trig
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Bus exposes the event bus for observers.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Ledger is the session's reminder ledger.
func (a *App) Ledger() *reminder.Ledger { return a.ledger }

// LastPass returns the outcome of the most recent pass.
func (a *App) LastPass() PassResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastPass
}

func (a *App) setOwners(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	a.mu.Lock()
	a.owners = m
	a.mu.Unlock()
}

func (a *App) isOwner(id int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.owners[id]
	return ok
}

func (a *App) setChat(t kit.ChatTarget) {
	a.mu.Lock()
	a.chat = t
	a.mu.Unlock()
	a.notif.SetTarget(t)
}

func (a *App) chatTarget() kit.ChatTarget {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.chat
}

// Tasks fetches the feed and returns the ranked task list.
func (a *App) Tasks(ctx context.Context) ([]task.Task, error) {
	feed, err := a.src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.src.Name(), err)
	}
	return task.Aggregate(feed.Lectures, feed.Assignments, a.now()), nil
}

// Plan is a dry run of the next pass: nothing is dispatched and the ledger is
// left untouched.
func (a *App) Plan(ctx context.Context) ([]reminder.Planned, reminder.LeadTime, error) {
	tasks, err := a.Tasks(ctx)
	if err != nil {
		return nil, 0, err
	}
	lead := a.prefs.Lead(ctx)
	return a.sched.Plan(tasks, lead, a.ledger, a.now()), lead, nil
}

// RunPass fetches, aggregates and reconciles once. A fetch failure skips the
// pass and leaves the ledger untouched.
func (a *App) RunPass(ctx context.Context, reason string) (reminder.Report, error) {
	a.passMu.Lock()
	defer a.passMu.Unlock()

	start := time.Now()
	res := PassResult{Reason: reason, At: a.now()}

	feed, err := a.src.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("fetch %s: %w", a.src.Name(), err)
		res.FetchErr = err.Error()
		res.Took = time.Since(start)
		a.recordPass(res)
		a.log.Warn("pass skipped", logx.String("reason", reason), logx.Err(err))
		eventbus.Publish(a.bus, eventbus.TopicPassSkipped, PassEvent{Reason: reason, Error: err.Error()})
		return reminder.Report{}, err
	}

	now := a.now()
	tasks := task.Aggregate(feed.Lectures, feed.Assignments, now)
	lead := a.prefs.Lead(ctx)
	rep := a.sched.Reconcile(ctx, tasks, lead, a.ledger, now)

	res.Lead, res.Tasks, res.Report, res.Took = lead, len(tasks), rep, time.Since(start)
	a.recordPass(res)

	fields := []logx.Field{
		logx.String("reason", reason),
		logx.String("lead", lead.String()),
		logx.Int("tasks", len(tasks)),
		logx.Int("scheduled", len(rep.Scheduled)),
		logx.Int("already", rep.AlreadyScheduled),
		logx.Int("not_yet", rep.NotYet),
		logx.Int("expired", rep.Expired),
		logx.Int("failed", len(rep.Failed)),
		logx.Duration("took", res.Took),
	}
	if len(rep.Scheduled) > 0 || len(rep.Failed) > 0 {
		a.log.Info("pass completed", fields...)
	} else {
		a.log.Debug("pass completed", fields...)
	}
	eventbus.Publish(a.bus, eventbus.TopicPassCompleted, PassEvent{
		Reason:    reason,
		Lead:      lead.String(),
		Tasks:     len(tasks),
		Scheduled: len(rep.Scheduled),
		Failed:    len(rep.Failed),
	})
	return rep, nil
}

func (a *App) runTriggered(ctx context.Context, reason string) {
	_, _ = a.RunPass(ctx, reason)
}

func (a *App) recordPass(res PassResult) {
	a.mu.Lock()
	a.lastPass = res
	a.mu.Unlock()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Reject bad hot reloads before they are committed.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapSourceConfig(cfg)
		return err
	})

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	} else {
		a.log.Warn("notifier disabled; due reminders will fail and be retried")
	}

	if a.adapter != nil {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.dispatchLoop(c, a.updates)
		})
		if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
			a.sup.Go("commands.menu", func(c context.Context) error {
				mctx, cancel := context.WithTimeout(c, 10*time.Second)
				defer cancel()
				if err := mu.UpdateMenuCommands(mctx, menuCommands()); err != nil {
					a.log.Warn("menu update failed", logx.Err(err))
				}
				return nil
			})
		}
		if len(a.cfgm.Get().Telegram.OwnerUserIDs) == 0 {
			a.log.Warn("telegram.owner_user_ids is empty; chat commands are ignored")
		}
	}

	if err := a.trig.Start(a.sup.Context()); err != nil {
		return err
	}

	// Event log at debug level; components log their own warnings.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("topic", e.Topic), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.String("source", a.src.Name()),
		logx.String("lead", a.prefs.Lead(ctx).String()),
		logx.Bool("telegram", a.adapter != nil),
	)
	return nil
}

// applyConfig applies the hot-reloadable sections. Storage and transport
// changes need a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if s == "storage" || s == "source" {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))
	a.setOwners(newCfg.Telegram.OwnerUserIDs)
	a.prefs.SetDefaultLead(newCfg.Reminder.LeadTime())
	if newCfg.Telegram.ChatID != 0 && newCfg.Telegram.ChatID != oldCfg.Telegram.ChatID {
		a.setChat(kit.ChatTarget{ChatID: newCfg.Telegram.ChatID, ThreadID: newCfg.Telegram.ThreadID})
	}

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		prev := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case prev && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !prev && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	if err := a.trig.Apply(mapTriggerConfig(newCfg)); err != nil {
		a.log.Warn("invalid trigger config; keeping previous", logx.Err(err))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		// Never started; the notifier may still have been started on its own.
		c, cancel := context.WithTimeout(ctx, 2*time.Second)
		a.notif.Stop(c)
		cancel()
		err := a.closeStorage()
		a.logs.Close()
		return err
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// The trigger goes first so no pass starts while delivery shuts down.
	// Adapter and notifier are independent of each other.
	step := func(name string, max time.Duration, fn func(context.Context)) func() error {
		return func() error {
			c, cancel := context.WithTimeout(ctx, max)
			defer cancel()
			start := time.Now()
			fn(c)
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
			return nil
		}
	}
	_ = step("trigger", 2*time.Second, a.trig.Stop)()

	var g errgroup.Group
	g.Go(step("notifier", 2*time.Second, a.notif.Stop))
	if a.adapter != nil {
		g.Go(step("adapter", 2*time.Second, func(c context.Context) {
			if err := a.adapter.Stop(c); err != nil {
				a.log.Warn("adapter stop failed", logx.Err(err))
			}
		}))
	}
	_ = g.Wait()

	var errs []error
	if err := a.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.sup.Wait(wctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("supervisor wait", logx.Err(err))
	}

	a.log.Info("stopped")
	a.logs.Close()
	return errors.Join(errs...)
}

func (a *App) closeStorage() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
