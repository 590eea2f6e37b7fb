// Package syncer drains the local mutation queue against a remote store
// whenever connectivity allows.
package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"nexuserp/backend/internal/domain"
	"nexuserp/backend/internal/localstore"
	"nexuserp/backend/internal/remote"
)

// Connectivity topics published on the event bus. The HTTP API (or any other
// environment probe) publishes these; the driver reacts.
const (
	TopicOnline  = "connectivity.online"
	TopicOffline = "connectivity.offline"
)

type Options struct {
	// MaxAttempts is the number of tries a task gets within one drain pass.
	MaxAttempts int
	// Backoff is the initial delay between in-pass retries; it doubles on
	// each retry.
	Backoff time.Duration
	// DeadLetterAfter is the number of failed passes after which a task is
	// parked in the dead-letter bucket instead of blocking the queue.
	DeadLetterAfter int
	// DrainEvery schedules periodic drain attempts while online, so a halted
	// pass resumes without waiting for the next connectivity event.
	DrainEvery time.Duration
	// StartOnline sets the initial connectivity assumption.
	StartOnline bool
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 250 * time.Millisecond
	}
	if o.DeadLetterAfter < 1 {
		o.DeadLetterAfter = 5
	}
	if o.DrainEvery <= 0 {
		o.DrainEvery = 30 * time.Second
	}
}

// Driver replays queued mutation intents in FIFO order. At most one pass
// runs at a time; passes are skipped entirely while offline.
type Driver struct {
	db     *localstore.DB
	remote remote.Store
	bus    evbus.Bus
	log    zerolog.Logger
	opts   Options

	online  atomic.Bool
	syncing atomic.Bool
	drainMu sync.Mutex
	cron    *cron.Cron
}

func New(db *localstore.DB, remoteStore remote.Store, bus evbus.Bus, logger zerolog.Logger, opts Options) *Driver {
	opts.applyDefaults()

	d := &Driver{
		db:     db,
		remote: remoteStore,
		bus:    bus,
		log:    logger.With().Str("component", "syncer").Str("backend", remoteStore.Name()).Logger(),
		opts:   opts,
	}
	d.online.Store(opts.StartOnline)

	if bus != nil {
		_ = bus.Subscribe(TopicOnline, d.handleOnline)
		_ = bus.Subscribe(TopicOffline, d.handleOffline)
	}
	return d
}

// Start begins the periodic drain schedule.
func (d *Driver) Start() {
	if d.cron != nil {
		return
	}
	d.cron = cron.New()
	_, _ = d.cron.AddFunc("@every "+d.opts.DrainEvery.String(), func() {
		if err := d.Drain(context.Background()); err != nil {
			d.log.Warn().Err(err).Msg("scheduled drain halted")
		}
	})
	d.cron.Start()
}

// Stop halts the periodic schedule and detaches from the bus.
func (d *Driver) Stop() {
	if d.cron != nil {
		d.cron.Stop()
		d.cron = nil
	}
	if d.bus != nil {
		_ = d.bus.Unsubscribe(TopicOnline, d.handleOnline)
		_ = d.bus.Unsubscribe(TopicOffline, d.handleOffline)
	}
}

func (d *Driver) handleOnline()  { d.SetOnline(true) }
func (d *Driver) handleOffline() { d.SetOnline(false) }

// SetOnline records a connectivity transition. Going online triggers an
// immediate drain attempt in the background.
func (d *Driver) SetOnline(online bool) {
	was := d.online.Swap(online)
	if online && !was {
		d.log.Info().Msg("connectivity restored")
		go func() {
			if err := d.Drain(context.Background()); err != nil {
				d.log.Warn().Err(err).Msg("drain after reconnect halted")
			}
		}()
	}
	if !online && was {
		d.log.Info().Msg("connectivity lost, buffering mutations")
	}
}

func (d *Driver) Online() bool { return d.online.Load() }

// Syncing reports whether a drain pass is currently running.
func (d *Driver) Syncing() bool { return d.syncing.Load() }

// Drain replays all pending tasks oldest-first. On a task failure the pass
// halts with the failed task (and everything behind it) still queued, unless
// the task has exhausted its pass budget, in which case it is dead-lettered
// and the pass continues. Re-entrant calls return immediately.
func (d *Driver) Drain(ctx context.Context) error {
	if !d.online.Load() {
		return nil
	}
	if !d.drainMu.TryLock() {
		return nil
	}
	defer d.drainMu.Unlock()

	d.syncing.Store(true)
	defer d.syncing.Store(false)

	tasks, err := d.db.PendingTasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	pass := uuid.NewString()
	log := d.log.With().Str("pass", pass).Logger()
	log.Info().Int("pending", len(tasks)).Msg("drain started")

	for _, task := range tasks {
		if err := d.applyWithRetry(ctx, task); err != nil {
			task.Attempts++
			if task.Attempts >= d.opts.DeadLetterAfter {
				log.Error().Err(err).Uint64("task", task.ID).Int("attempts", task.Attempts).
					Msg("task dead-lettered")
				if dlErr := d.db.MoveToDeadLetter(ctx, task); dlErr != nil {
					return dlErr
				}
				continue
			}
			log.Warn().Err(err).Uint64("task", task.ID).Int("attempts", task.Attempts).
				Msg("task failed, halting pass")
			if upErr := d.db.UpdateTask(ctx, task); upErr != nil {
				return upErr
			}
			return err
		}
		if err := d.db.ClearTask(ctx, task.ID); err != nil {
			return err
		}
	}

	log.Info().Msg("drain finished")
	return nil
}

func (d *Driver) applyWithRetry(ctx context.Context, task domain.SyncTask) error {
	delay := d.opts.Backoff
	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		lastErr = d.remote.Apply(ctx, task)
		if lastErr == nil {
			return nil
		}
		if attempt == d.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// Status is the sync state exposed to the presentation layer.
type Status struct {
	Backend     string `json:"backend"`
	Online      bool   `json:"online"`
	Syncing     bool   `json:"syncing"`
	Pending     int    `json:"pending"`
	DeadLetters int    `json:"deadLetters"`
}

func (d *Driver) Status(ctx context.Context) (Status, error) {
	pending, err := d.db.PendingTasks(ctx)
	if err != nil {
		return Status{}, err
	}
	dead, err := d.db.DeadLetterTasks(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Backend:     d.remote.Name(),
		Online:      d.online.Load(),
		Syncing:     d.syncing.Load(),
		Pending:     len(pending),
		DeadLetters: len(dead),
	}, nil
}
