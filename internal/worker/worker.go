// Package worker runs delayed background jobs. With Postgres the jobs live
// in River; with SQLite an in-process timer scheduler stands in.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
)

// InviteExpiryArgs rejects an invite that is still pending at its deadline.
type InviteExpiryArgs struct {
	InviteID string `json:"invite_id"`
}

// Kind returns the unique job type identifier.
func (InviteExpiryArgs) Kind() string { return "invite_expiry" }

// Expirer is implemented by the invite package.
type Expirer interface {
	// ExpireInvite rejects the invite if it is still pending.
	ExpireInvite(ctx context.Context, inviteID string) error
	// ExpireOverdue rejects every pending invite whose deadline has passed.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type inviteExpiryWorker struct {
	river.WorkerDefaults[InviteExpiryArgs]
	expirer Expirer
	log     *slog.Logger
}

func (w *inviteExpiryWorker) Work(ctx context.Context, job *river.Job[InviteExpiryArgs]) error {
	if err := w.expirer.ExpireInvite(ctx, job.Args.InviteID); err != nil {
		return fmt.Errorf("expire invite %s: %w", job.Args.InviteID, err)
	}
	w.log.Debug("invite expiry job executed", "invite_id", job.Args.InviteID)
	return nil
}

// Queue is the lifecycle exposed by both implementations.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Scheduler enqueues and cancels invite expiry jobs.
type Scheduler interface {
	ScheduleInviteExpiry(ctx context.Context, inviteID string, at time.Time) (string, error)
	Cancel(ctx context.Context, jobID string) error
}

// Runner is a Queue that is also a Scheduler.
type Runner interface {
	Queue
	Scheduler
}

// Client wraps river.Client.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// ScheduleInviteExpiry inserts a job that runs at at. The returned id is the
// River job id.
func (c *Client) ScheduleInviteExpiry(ctx context.Context, inviteID string, at time.Time) (string, error) {
	res, err := c.client.Insert(ctx, InviteExpiryArgs{InviteID: inviteID}, &river.InsertOpts{ScheduledAt: at})
	if err != nil {
		return "", fmt.Errorf("insert invite expiry job: %w", err)
	}
	return strconv.FormatInt(res.Job.ID, 10), nil
}

// Cancel cancels a scheduled job. Unknown ids are ignored.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}
	id, err := strconv.ParseInt(jobID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", jobID, err)
	}
	if _, err := c.client.JobCancel(ctx, id); err != nil && !errors.Is(err, rivertype.ErrNotFound) {
		return fmt.Errorf("cancel job %d: %w", id, err)
	}
	return nil
}

// New creates a Runner appropriate for the given driver.
//   - "postgres": a River client backed by pool.
//   - anything else: a TimerScheduler.
//
// pool may be nil when driver != "postgres".
func New(_ context.Context, pool *pgxpool.Pool, driver string, concurrency int, expirer Expirer, log *slog.Logger) (Runner, error) {
	if driver != "postgres" {
		return NewTimerScheduler(expirer, log), nil
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &inviteExpiryWorker{expirer: expirer, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: concurrency},
		},
		Workers: workers,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}

// TimerScheduler runs jobs on in-process timers. Timers do not survive a
// restart, so Start sweeps invites that expired while the process was down.
type TimerScheduler struct {
	expirer Expirer
	log     *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTimerScheduler creates a TimerScheduler.
func NewTimerScheduler(expirer Expirer, log *slog.Logger) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		expirer: expirer,
		log:     log,
		timers:  make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start sweeps overdue invites.
func (s *TimerScheduler) Start(ctx context.Context) error {
	n, err := s.expirer.ExpireOverdue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sweep overdue invites: %w", err)
	}
	s.log.Info("worker queue running on in-process timers (sqlite driver)", "expired_on_start", n)
	return nil
}

// Stop cancels pending timers and waits for running jobs.
func (s *TimerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleInviteExpiry arms a timer for at.
func (s *TimerScheduler) ScheduleInviteExpiry(_ context.Context, inviteID string, at time.Time) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[id] = time.AfterFunc(time.Until(at), func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		if live {
			s.wg.Add(1)
		}
		s.mu.Unlock()
		if !live {
			return
		}
		defer s.wg.Done()
		if err := s.expirer.ExpireInvite(s.ctx, inviteID); err != nil {
			s.log.Error("invite expiry job failed", "invite_id", inviteID, "err", err)
		}
	})
	return id, nil
}

// Cancel disarms the timer. Unknown ids are ignored.
func (s *TimerScheduler) Cancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[jobID]; ok {
		t.Stop()
		delete(s.timers, jobID)
	}
	return nil
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
