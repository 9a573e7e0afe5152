package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"coursebell/internal/eventbus"
	"coursebell/internal/reminder"
	rtsup "coursebell/internal/runtime/supervisor"
	kit "coursebell/internal/transport"
	logx "coursebell/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type job struct {
	cmd    reminder.Command
	id     string
	target kit.ChatTarget
}

// Service implements reminder.Primitive:
// timers + queue + worker pool + rate limit + retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	bus    eventbus.Bus
	now    func() time.Time

	cfg     Config
	limiter *rate.Limiter
	target  kit.ChatTarget

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	armed    map[string]*time.Timer
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	delivered atomic.Int64

	hmu     sync.Mutex
	history []HistoryItem
}

var _ reminder.Primitive = (*Service)(nil)

func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender: sender,
		log:    log,
		bus:    bus,
		now:    time.Now,
		armed:  map[string]*time.Timer{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps limits and retry settings. Worker count and queue size take
// effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	s.cfg = cfg
	// Burst = rate per sec so a pass that fires several reminders at once
	// is not serialized.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// SetTarget sets the chat reminders are delivered to. Already armed
// reminders keep the target they were armed with.
func (s *Service) SetTarget(t kit.ChatTarget) {
	s.mu.Lock()
	s.target = t
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	sup, q, workers := s.sup, s.queue, s.cfg.Workers
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			return nil
		})
	}
}

// Stop stops intake, drops armed timers and drains the queue best effort
// until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	dropped := make([]string, 0, len(s.armed))
	for id, t := range s.armed {
		t.Stop()
		dropped = append(dropped, id)
	}
	s.armed = map[string]*time.Timer{}
	s.mu.Unlock()

	if len(dropped) > 0 {
		s.log.Info("armed reminders dropped on stop", logx.Int("count", len(dropped)))
		for _, id := range dropped {
			eventbus.Publish(s.bus, eventbus.TopicDeliveryDropped, DeliveryEvent{Key: id, At: s.now(), Error: ErrStopped.Error()})
		}
	}

	go func() {
		defer close(done)
		s.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue = nil
		s.sup = nil
		s.stopDone = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Schedule accepts cmd for delivery at cmd.FireAt. A second Schedule for a
// reminder that is still armed is a no-op.
func (s *Service) Schedule(ctx context.Context, cmd reminder.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	id := cmd.Mark().ID()
	if _, ok := s.armed[id]; ok {
		s.mu.Unlock()
		return nil
	}
	j := job{cmd: cmd, id: id, target: s.target}
	if delay := cmd.FireAt.Sub(s.now()); delay > 0 {
		s.armed[id] = time.AfterFunc(delay, func() { s.fire(j) })
		s.mu.Unlock()
		s.log.Debug("reminder armed", logx.String("key", id), logx.Duration("in", delay))
		eventbus.Publish(s.bus, eventbus.TopicDeliveryArmed, s.event(j, 0, nil))
		return nil
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()
	return s.enqueue(q, j)
}

func (s *Service) fire(j job) {
	s.mu.Lock()
	if _, ok := s.armed[j.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.armed, j.id)
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	if err := s.enqueue(q, j); err != nil {
		s.log.Warn("armed reminder lost", logx.String("key", j.id), logx.Err(err))
	}
}

func (s *Service) enqueue(q chan<- job, j job) error {
	select {
	case q <- j:
		return nil
	default:
		eventbus.Publish(s.bus, eventbus.TopicDeliveryDropped, s.event(j, 0, ErrQueueFull))
		return ErrQueueFull
	}
}

func (s *Service) event(j job, attempt int, err error) DeliveryEvent {
	ev := DeliveryEvent{
		Key:     j.cmd.Key.String(),
		Lead:    j.cmd.Lead.String(),
		ChatID:  j.target.ChatID,
		FireAt:  j.cmd.FireAt,
		At:      s.now(),
		Attempt: attempt,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	st := Stats{Armed: len(s.armed)}
	if s.queue != nil {
		st.Queued = len(s.queue)
	}
	s.mu.Unlock()
	st.Delivered = int(s.delivered.Load())
	return st
}

// Supervisor returns the worker supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(text string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: s.now(), Text: text})
	if len(s.history) > 100 {
		s.history = s.history[len(s.history)-100:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, j)
		}
	}
}

func (s *Service) sendWithRetry(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim, sender := s.cfg, s.limiter, s.sender
	s.mu.Unlock()
	if sender == nil {
		return
	}

	text := j.cmd.Title + "\n" + j.cmd.Body
	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := sender.SendText(callCtx, j.target, text)
		cancel()
		if err == nil {
			s.delivered.Add(1)
			s.appendHistory(text)
			s.log.Info("reminder delivered", logx.String("key", j.id), logx.Int("attempt", attempt))
			eventbus.Publish(s.bus, eventbus.TopicDeliverySent, s.event(j, attempt, nil))
			return
		}
		lastErr = err
		s.log.Debug("reminder send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))
		if attempt == maxAttempts {
			break
		}

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	s.log.Warn("reminder delivery failed", logx.String("key", j.id), logx.Int("attempts", maxAttempts), logx.Err(lastErr))
	eventbus.Publish(s.bus, eventbus.TopicDeliveryFailed, s.event(j, maxAttempts, lastErr))
}

// retryDelay is the wait before attempt+1: base*2^(attempt-1), capped, with
// 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return max(d, 0)
}
