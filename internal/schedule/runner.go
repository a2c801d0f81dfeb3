// Package schedule turns "start at time T" requests into a cancellable
// delayed energize followed by a cancellable auto-off, coordinated with
// manual stops.
//
// Every accepted start or stop increments a generation counter under the
// runner's lock. A background episode re-validates its generation under the
// same lock immediately before each call that mutates the relay, so an
// episode that has been superseded never touches the device again.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sweeney/coffee-relay/internal/actuator"
	"github.com/sweeney/coffee-relay/internal/clock"
)

// ErrClosed is returned by Start and StartNow after Close.
var ErrClosed = errors.New("schedule: runner closed")

// DefaultOnDuration is how long the relay stays energized per episode.
const DefaultOnDuration = 10 * time.Minute

// Device is the relay driven by the runner.
type Device interface {
	Energize() error
	DeEnergize() error
	Status() actuator.State
}

// Phase is the lifecycle position of an episode.
type Phase string

const (
	PhaseIdle      Phase = "IDLE" // no live episode
	PhasePending   Phase = "PENDING"
	PhaseActive    Phase = "ACTIVE"
	PhaseCompleted Phase = "COMPLETED"
	PhaseCancelled Phase = "CANCELLED"
	PhaseFailed    Phase = "FAILED"
)

// Snapshot is a point-in-time view of the runner. It is a value type.
type Snapshot struct {
	Generation   uint64
	Phase        Phase
	EpisodeID    string
	ScheduledFor time.Time // zero when idle
	OffAt        time.Time // zero unless active
	OnDuration   time.Duration
}

type episode struct {
	id     string
	gen    uint64
	target time.Time
	offAt  time.Time
	phase  Phase
	cancel context.CancelFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(r *Runner) { r.clock = c } }

// WithNotifier registers the event sink. Notify is called with the runner's
// lock held, so it must not call back into the Runner.
func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l.With().Str("component", "schedule").Logger() }
}

// Runner owns the single live episode.
type Runner struct {
	dev        Device
	onDuration time.Duration
	clock      clock.Clock
	notifier   Notifier
	log        zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	current *episode
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Runner driving dev. A non-positive onDuration selects
// DefaultOnDuration.
func New(dev Device, onDuration time.Duration, opts ...Option) *Runner {
	if onDuration <= 0 {
		onDuration = DefaultOnDuration
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		dev:        dev,
		onDuration: onDuration,
		clock:      clock.Real(),
		log:        zerolog.Nop(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start schedules the relay to energize at the next occurrence of tod and
// returns that instant. Any live episode is superseded. Start does not wait.
func (r *Runner) Start(tod TimeOfDay) (time.Time, error) {
	return r.schedule(func(now time.Time) time.Time { return Resolve(now, tod) })
}

// StartNow schedules an episode that energizes immediately.
func (r *Runner) StartNow() (time.Time, error) {
	return r.schedule(func(now time.Time) time.Time { return now })
}

func (r *Runner) schedule(resolve func(now time.Time) time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return time.Time{}, ErrClosed
	}

	now := r.clock.Now()
	target := resolve(now)

	r.gen++
	if prev := r.supersede(); prev != nil {
		r.log.Info().Uint64("generation", prev.gen).Str("episode", prev.id).Msg("episode superseded")
		r.emit(Event{Type: EventSuperseded, Generation: prev.gen, EpisodeID: prev.id, ScheduledFor: prev.target})
	}

	ctx, cancel := context.WithCancel(r.ctx)
	ep := &episode{
		id:     uuid.NewString(),
		gen:    r.gen,
		target: target,
		phase:  PhasePending,
		cancel: cancel,
	}
	r.current = ep

	// The timer is armed here, not in the goroutine, so the wait is measured
	// from the moment the request was accepted.
	timer := r.clock.NewTimer(target.Sub(now))
	r.wg.Add(1)
	go r.run(ctx, ep, timer)

	r.log.Info().
		Uint64("generation", ep.gen).
		Str("episode", ep.id).
		Time("scheduled_for", target).
		Dur("wait", target.Sub(now)).
		Msg("episode scheduled")
	r.emit(Event{Type: EventScheduled, Generation: ep.gen, EpisodeID: ep.id, ScheduledFor: target})
	return target, nil
}

// Stop cancels any live episode and de-energizes the relay synchronously.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	ev := Event{Type: EventStopped, Generation: r.gen}
	if prev := r.supersede(); prev != nil {
		ev.EpisodeID = prev.id
		ev.ScheduledFor = prev.target
	}

	err := r.dev.DeEnergize()
	if err != nil {
		ev.Err = err.Error()
		r.log.Error().Err(err).Uint64("generation", r.gen).Msg("stop failed")
	} else {
		r.log.Info().Uint64("generation", r.gen).Msg("stopped")
	}
	r.emit(ev)
	return err
}

// Status reads the relay directly. It never waits on a pending episode.
func (r *Runner) Status() actuator.State {
	return r.dev.Status()
}

// Snapshot returns the current generation and live episode.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{Generation: r.gen, Phase: PhaseIdle, OnDuration: r.onDuration}
	if ep := r.current; ep != nil {
		s.Phase = ep.phase
		s.EpisodeID = ep.id
		s.ScheduledFor = ep.target
		s.OffAt = ep.offAt
	}
	return s
}

// Close refuses further starts, cancels the live episode and waits for
// background tasks to exit or ctx to end. The relay and the generation are
// not touched.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.supersede()
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supersede cancels the live episode. Caller holds r.mu.
func (r *Runner) supersede() *episode {
	ep := r.current
	if ep == nil {
		return nil
	}
	ep.cancel()
	ep.phase = PhaseCancelled
	r.current = nil
	return ep
}

// isCurrent is the checkpoint test. Caller holds r.mu.
func (r *Runner) isCurrent(ctx context.Context, ep *episode) bool {
	return ctx.Err() == nil && r.current == ep && ep.gen == r.gen
}

func (r *Runner) run(ctx context.Context, ep *episode, start clock.Timer) {
	defer r.wg.Done()
	defer ep.cancel()

	if !wait(ctx, start) {
		return
	}
	off, ok := r.energize(ctx, ep)
	if !ok {
		return
	}
	if !wait(ctx, off) {
		return
	}
	r.autoOff(ctx, ep)
}

// wait blocks until t fires or ctx is cancelled.
func wait(ctx context.Context, t clock.Timer) bool {
	select {
	case <-t.C():
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

// energize is the first checkpoint. On success it arms the auto-off timer.
func (r *Runner) energize(ctx context.Context, ep *episode) (clock.Timer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isCurrent(ctx, ep) {
		r.log.Debug().Uint64("generation", ep.gen).Msg("stale episode skipped energize")
		return nil, false
	}

	if err := r.dev.Energize(); err != nil {
		ep.phase = PhaseFailed
		r.current = nil
		r.log.Error().Err(err).Uint64("generation", ep.gen).Msg("energize failed, episode abandoned")
		r.emit(Event{Type: EventFault, Generation: ep.gen, EpisodeID: ep.id, ScheduledFor: ep.target, Err: err.Error()})
		return nil, false
	}

	ep.phase = PhaseActive
	ep.offAt = r.clock.Now().Add(r.onDuration)
	timer := r.clock.NewTimer(r.onDuration)
	r.log.Info().Uint64("generation", ep.gen).Time("off_at", ep.offAt).Msg("relay on")
	r.emit(Event{Type: EventEnergized, Generation: ep.gen, EpisodeID: ep.id, ScheduledFor: ep.target})
	return timer, true
}

// autoOff is the second checkpoint.
func (r *Runner) autoOff(ctx context.Context, ep *episode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isCurrent(ctx, ep) {
		r.log.Debug().Uint64("generation", ep.gen).Msg("stale episode skipped auto-off")
		return
	}

	r.current = nil
	if err := r.dev.DeEnergize(); err != nil {
		ep.phase = PhaseFailed
		r.log.Error().Err(err).Uint64("generation", ep.gen).Msg("auto-off failed")
		r.emit(Event{Type: EventFault, Generation: ep.gen, EpisodeID: ep.id, ScheduledFor: ep.target, Err: err.Error()})
		return
	}
	ep.phase = PhaseCompleted
	r.log.Info().Uint64("generation", ep.gen).Msg("relay off after on-duration")
	r.emit(Event{Type: EventAutoOff, Generation: ep.gen, EpisodeID: ep.id, ScheduledFor: ep.target})
}

// emit stamps and forwards ev. Caller holds r.mu.
func (r *Runner) emit(ev Event) {
	if r.notifier == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.clock.Now()
	}
	r.notifier.Notify(ev)
}
