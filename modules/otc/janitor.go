package otc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
)

const sweepConcurrency = 4

type JanitorState int

const (
	JanitorIdle JanitorState = iota
	JanitorRunning
	JanitorStopped
)

func (s JanitorState) String() string {
	switch s {
	case JanitorIdle:
		return "idle"
	case JanitorRunning:
		return "running"
	case JanitorStopped:
		return "stopped"
	}
	return "unknown"
}

// Janitor expires pending deals whose execution window has elapsed,
// releasing their reserved inventory. Lifecycle is an explicit
// Idle -> Running -> Stopped machine: Start is valid once, Stop is
// terminal, and both are safe to race.
type Janitor struct {
	engine        *Engine
	interval      time.Duration
	defaultExpiry time.Duration

	mu     sync.Mutex
	state  JanitorState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJanitor(engine *Engine, interval, defaultExpiry time.Duration) *Janitor {
	return &Janitor{
		engine:        engine,
		interval:      interval,
		defaultExpiry: defaultExpiry,
		state:         JanitorIdle,
	}
}

func (j *Janitor) State() JanitorState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Start launches the sweep loop. It fails if the janitor is already
// running or has been stopped.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JanitorIdle {
		return errors.Newf("janitor cannot start from state %s", j.state)
	}

	ctx, cancel := context.WithCancel(ctx)
	j.state = JanitorRunning
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(ctx)
	return nil
}

// Stop halts the loop and waits for the in-flight sweep to finish.
// Stopping an idle or already-stopped janitor is a no-op.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if j.state != JanitorRunning {
		j.state = JanitorStopped
		j.mu.Unlock()
		return
	}
	j.state = JanitorStopped
	cancel, done := j.cancel, j.done
	j.mu.Unlock()

	cancel()
	<-done
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)
	logger.InfoContext(ctx, "janitor started", slogx.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "janitor stopped")
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "janitor sweep failed", slogx.Error(err))
			}
		}
	}
}

// Sweep fails every pending deal that has outlived its consignment's
// execution window. Exposed so operators can trigger a pass manually.
func (j *Janitor) Sweep(ctx context.Context) error {
	now := j.engine.now().UTC()
	deals, err := j.engine.dg.ListPendingDealsCreatedBefore(ctx, now)
	if err != nil {
		return errors.Wrap(err, "failed to list pending deals")
	}

	// deals belong to distinct consignments almost always, so expiring
	// them concurrently rarely contends on the key lock
	var expired atomic.Int64
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(sweepConcurrency)
	for _, deal := range deals {
		deal := deal
		group.Go(func() error {
			window, err := j.executionWindow(ctx, deal)
			if err != nil {
				logger.WarnContext(ctx, "skipping deal with unresolvable consignment",
					slogx.Error(err), slogx.String("dealId", deal.ID))
				return nil
			}
			if now.Sub(deal.CreatedAt) < window {
				return nil
			}
			if _, err := j.engine.MarkDealFailed(ctx, deal.ID, "execution window expired"); err != nil {
				logger.WarnContext(ctx, "failed to expire deal", slogx.Error(err), slogx.String("dealId", deal.ID))
				return nil
			}
			expired.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return errors.Wrap(err, "sweep aborted")
	}
	if n := expired.Load(); n > 0 {
		logger.InfoContext(ctx, "expired stale deals", slogx.Int64("count", n))
	}
	return nil
}

func (j *Janitor) executionWindow(ctx context.Context, deal entity.Deal) (time.Duration, error) {
	consignment, err := j.engine.dg.GetConsignment(ctx, deal.ConsignmentID)
	if err != nil {
		return 0, err
	}
	if consignment.MaxTimeToExecuteSeconds > 0 {
		return time.Duration(consignment.MaxTimeToExecuteSeconds) * time.Second, nil
	}
	return j.defaultExpiry, nil
}
