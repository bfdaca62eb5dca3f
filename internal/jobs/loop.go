package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/models"
)

var (
	// ErrInvalidInterval is returned synchronously for a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be a positive number of seconds")
	// ErrPassInFlight is returned when a pass is requested while one runs.
	ErrPassInFlight = errors.New("a reconciliation pass is already running")
)

const loopTag = "reconcile"

// PassFunc runs one reconciliation pass, filling in report. keepGoing
// turns false once the loop is stopped or rescheduled; the pass checks it
// between stages and returns early.
type PassFunc func(ctx context.Context, keepGoing func() bool, report *models.PassReport) error

// Broadcaster receives loop events.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Event is what the loop broadcasts.
type Event struct {
	Type   string             `json:"type"`
	Status *Status            `json:"status,omitempty"`
	Report *models.PassReport `json:"report,omitempty"`
}

// Status is a snapshot of the loop.
type Status struct {
	Running         bool               `json:"running"`
	IntervalSeconds int                `json:"interval_seconds"`
	Generation      uint64             `json:"generation"`
	PassInFlight    bool               `json:"pass_in_flight"`
	LastPass        *models.PassReport `json:"last_pass,omitempty"`
}

// Loop runs reconciliation passes on a repeating schedule that can be
// started, stopped and rescheduled while the process runs.
type Loop struct {
	mu         sync.RWMutex
	running    bool
	interval   int
	unit       time.Duration
	generation uint64
	// stops counts Stop calls; passes outside the schedule end when it moves.
	stops     uint64
	scheduler *gocron.Scheduler

	// passMu is held for the whole of a pass.
	passMu   sync.Mutex
	stateMu  sync.Mutex
	inFlight bool
	last     *models.PassReport

	pass   PassFunc
	events Broadcaster
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoop creates a stopped loop. events may be nil.
func NewLoop(pass PassFunc, intervalSeconds int, events Broadcaster) *Loop {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	s.StartAsync()

	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		interval:  intervalSeconds,
		unit:      time.Second,
		scheduler: s,
		pass:      pass,
		events:    events,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules passes every interval, the first one right away.
// Starting a running loop does nothing.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	if err := l.scheduleLocked(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.running = true
	gen, interval := l.generation, l.interval
	l.mu.Unlock()

	log.Info().Int("interval_seconds", interval).Uint64("generation", gen).Msg("Reconciliation loop started")
	l.announce()
	return nil
}

// Stop cancels the schedule. A pass already running is not interrupted;
// it sees the loop stopped at its next check and returns. Manual and
// single-episode passes are halted the same way, even on a stopped loop.
func (l *Loop) Stop() error {
	l.mu.Lock()
	l.stops++
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.generation++
	err := l.unscheduleLocked()
	l.mu.Unlock()

	log.Info().Msg("Reconciliation loop stopped")
	l.announce()
	return err
}

// ChangeInterval reschedules a running loop with a new interval in one
// step. On a stopped loop it only records the interval.
func (l *Loop) ChangeInterval(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, seconds)
	}

	l.mu.Lock()
	l.interval = seconds
	if l.running {
		if err := l.unscheduleLocked(); err != nil {
			l.mu.Unlock()
			return err
		}
		if err := l.scheduleLocked(); err != nil {
			l.running = false
			l.mu.Unlock()
			l.announce()
			return err
		}
	}
	gen := l.generation
	l.mu.Unlock()

	log.Info().Int("interval_seconds", seconds).Uint64("generation", gen).Msg("Reconciliation interval changed")
	l.announce()
	return nil
}

// GetStatus reports whether the loop is running. It never waits for a pass.
func (l *Loop) GetStatus() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

// Status returns a full snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.RLock()
	s := Status{Running: l.running, IntervalSeconds: l.interval, Generation: l.generation}
	l.mu.RUnlock()

	l.stateMu.Lock()
	s.PassInFlight = l.inFlight
	s.LastPass = l.last
	l.stateMu.Unlock()
	return s
}

// LastPass returns the report of the latest finished pass, or nil.
func (l *Loop) LastPass() *models.PassReport {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.last
}

// TriggerNow starts one pass in the background, outside the schedule.
func (l *Loop) TriggerNow() error {
	return l.RunExclusive("manual", l.pass)
}

// RunExclusive runs fn in the background under the same guard as
// scheduled passes. It fails with ErrPassInFlight if a pass is running.
func (l *Loop) RunExclusive(trigger string, fn PassFunc) error {
	if !l.passMu.TryLock() {
		return ErrPassInFlight
	}
	l.mu.RLock()
	stops := l.stops
	l.mu.RUnlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.passMu.Unlock()
		l.run(trigger, fn, func() bool { return l.notStoppedSince(stops) })
	}()
	return nil
}

// Exclusive runs fn synchronously under the pass guard, so that it never
// overlaps a pass. It fails with ErrPassInFlight instead of waiting.
func (l *Loop) Exclusive(fn func() error) error {
	if !l.passMu.TryLock() {
		return ErrPassInFlight
	}
	defer l.passMu.Unlock()
	return fn()
}

func (l *Loop) notStoppedSince(stops uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stops == stops
}

// Wait blocks until background passes started by RunExclusive finish.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Shutdown stops the loop, cancels a running pass and waits for it.
func (l *Loop) Shutdown() {
	l.Stop()
	l.cancel()
	l.scheduler.Stop()
	l.wg.Wait()
}

func (l *Loop) scheduleLocked() error {
	l.generation++
	gen := l.generation
	every := time.Duration(l.interval) * l.unit
	if _, err := l.scheduler.Every(every).Tag(loopTag).Do(l.tick, gen); err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}
	return nil
}

func (l *Loop) unscheduleLocked() error {
	err := l.scheduler.RemoveByTag(loopTag)
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return err
	}
	return nil
}

// current reports whether ticks of generation gen may still run.
func (l *Loop) current(gen uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running && l.generation == gen
}

func (l *Loop) tick(gen uint64) {
	if !l.current(gen) {
		log.Debug().Uint64("generation", gen).Msg("Skipping stale tick")
		return
	}
	if !l.passMu.TryLock() {
		log.Info().Msg("Previous pass still running, skipping tick")
		return
	}
	defer l.passMu.Unlock()
	l.run("schedule", l.pass, func() bool { return l.current(gen) })
}

// run executes fn and records its report. The caller holds passMu.
func (l *Loop) run(trigger string, fn PassFunc, keepGoing func() bool) {
	report := &models.PassReport{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	logger := log.With().Str("pass_id", report.ID).Str("trigger", trigger).Logger()

	l.stateMu.Lock()
	l.inFlight = true
	l.stateMu.Unlock()

	logger.Info().Msg("Starting reconciliation pass")
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Reconciliation pass panicked")
			report.Error = fmt.Sprintf("pass panicked: %v", r)
		}
		report.FinishedAt = time.Now()

		l.stateMu.Lock()
		l.inFlight = false
		l.last = report
		l.stateMu.Unlock()

		logger.Info().
			Int("created", report.Created).
			Int("discovery_failures", report.DiscoveryFailures).
			Int("fetch_failures", report.FetchFailures).
			Int("submit_failures", report.SubmitFailures).
			Bool("cancelled", report.Cancelled).
			Dur("took", report.FinishedAt.Sub(report.StartedAt)).
			Msg("Finished reconciliation pass")
		if l.events != nil {
			l.events.BroadcastJSON(Event{Type: "pass", Report: report})
		}
	}()

	if err := fn(l.ctx, keepGoing, report); err != nil {
		report.Error = err.Error()
		logger.Error().Err(err).Msg("Reconciliation pass aborted, waiting for the next tick")
	}
}

func (l *Loop) announce() {
	if l.events == nil {
		return
	}
	status := l.Status()
	l.events.BroadcastJSON(Event{Type: "status", Status: &status})
}
