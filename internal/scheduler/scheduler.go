package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
)

var ErrClosed = errors.New("scheduler closed")

type Prober interface {
	Probe(ctx context.Context, t domain.Target) (domain.ProbeOutcome, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, t domain.Target, latest domain.ProbeOutcome) []domain.Alert
}

// JobInfo describes one installed timer.
type JobInfo struct {
	TargetID    domain.TargetID `json:"target_id"`
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	IntervalSec int             `json:"interval_sec"`
	Running     bool            `json:"running"`
}

type job struct {
	target domain.Target
	stop   chan struct{}
	done   chan struct{}
	busy   *atomic.Bool
}

// Scheduler keeps one periodic timer per enabled target. Each fire runs
// probe -> append outcome -> evaluate alerts in its own goroutine; a fire
// that would overlap a still-running one for the same target is dropped.
type Scheduler struct {
	log       *zap.Logger
	prober    Prober
	results   repo.ResultStore
	evaluator Evaluator

	// unit is the length of one interval_sec step.
	unit time.Duration

	mu   sync.Mutex
	jobs map[domain.TargetID]*job
	// slots holds the single in-flight flag per target. An entry outlives
	// its job while a run is still going, so a target that is disabled or
	// removed and then installed again never overlaps that run.
	slots  map[domain.TargetID]*atomic.Bool
	closed bool

	runCtx context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

func New(log *zap.Logger, prober Prober, results repo.ResultStore, evaluator Evaluator) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:       log,
		prober:    prober,
		results:   results,
		evaluator: evaluator,
		unit:      time.Second,
		jobs:      make(map[domain.TargetID]*job),
		slots:     make(map[domain.TargetID]*atomic.Bool),
		runCtx:    ctx,
		cancel:    cancel,
	}
}

// Upsert installs or replaces the timer for t. A disabled target is removed.
// The old timer has stopped firing by the time the new one is installed.
func (s *Scheduler) Upsert(t domain.Target) error {
	if t.Enabled {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	old, replacing := s.jobs[t.ID]
	if replacing {
		stopJob(old)
		delete(s.jobs, t.ID)
	}
	if !t.Enabled {
		s.releaseSlot(t.ID)
		if replacing {
			s.log.Info("job_removed", zap.Int64("target_id", int64(t.ID)))
		}
		return nil
	}

	busy, ok := s.slots[t.ID]
	if !ok {
		busy = new(atomic.Bool)
		s.slots[t.ID] = busy
	}

	j := &job{
		target: t,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		busy:   busy,
	}
	s.jobs[t.ID] = j
	go s.loop(j, time.Duration(t.IntervalSec)*s.unit)

	s.log.Info("job_scheduled",
		zap.Int64("target_id", int64(t.ID)),
		zap.String("url", t.URL),
		zap.Int("interval_sec", t.IntervalSec),
	)
	return nil
}

// Remove stops future fires for id. An in-flight run still completes.
func (s *Scheduler) Remove(id domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	stopJob(j)
	delete(s.jobs, id)
	s.releaseSlot(id)
	s.log.Info("job_removed", zap.Int64("target_id", int64(id)))
}

// releaseSlot forgets the in-flight flag of a target without a job once no
// run holds it. Callers hold s.mu.
func (s *Scheduler) releaseSlot(id domain.TargetID) {
	if _, ok := s.jobs[id]; ok {
		return
	}
	if b, ok := s.slots[id]; ok && !b.Load() {
		delete(s.slots, id)
	}
}

// Bootstrap schedules every enabled target. One bad target does not stop
// the others; all failures are returned together.
func (s *Scheduler) Bootstrap(targets []domain.Target) error {
	var errs error
	scheduled := 0
	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		if err := s.Upsert(t); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			s.log.Error("bootstrap_upsert_error",
				zap.Int64("target_id", int64(t.ID)),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("target %d: %w", t.ID, err))
			continue
		}
		scheduled++
	}
	s.log.Info("bootstrap_done", zap.Int("scheduled", scheduled), zap.Int("targets", len(targets)))
	return errs
}

// Shutdown stops every timer, then waits for in-flight runs until ctx is
// done. Runs still going at that point have their context cancelled and are
// waited for before returning ctx.Err().
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, j := range s.jobs {
		stopJob(j)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.log.Info("scheduler_stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		s.log.Warn("scheduler_stopped_with_cancel", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Jobs lists installed timers ordered by target id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{
			TargetID:    j.target.ID,
			Name:        j.target.Name,
			URL:         j.target.URL,
			IntervalSec: j.target.IntervalSec,
			Running:     j.busy.Load(),
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool { return out[i].TargetID < out[k].TargetID })
	return out
}

func stopJob(j *job) {
	close(j.stop)
	<-j.done
}

func (s *Scheduler) loop(j *job, interval time.Duration) {
	defer close(j.done)
	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-tk.C:
			// stop wins over a tick that became ready at the same time
			select {
			case <-j.stop:
				return
			default:
			}
			s.fire(j)
		}
	}
}

func (s *Scheduler) fire(j *job) {
	if !j.busy.CompareAndSwap(false, true) {
		s.log.Info("tick_skipped",
			zap.Int64("target_id", int64(j.target.ID)),
			zap.String("reason", "previous run still in flight"),
		)
		return
	}
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer func() {
			// loops only exist for installed jobs and stop under s.mu
			s.mu.Lock()
			j.busy.Store(false)
			s.releaseSlot(j.target.ID)
			s.mu.Unlock()
		}()
		s.run(s.runCtx, j.target)
	}()
}

func (s *Scheduler) run(ctx context.Context, t domain.Target) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("run_panic", zap.Int64("target_id", int64(t.ID)), zap.Any("panic", r))
		}
	}()

	out, err := s.prober.Probe(ctx, t)
	if err != nil {
		s.log.Error("probe_invalid_target", zap.Int64("target_id", int64(t.ID)), zap.Error(err))
		return
	}
	if err := s.results.AppendOutcome(ctx, &out); err != nil {
		s.log.Error("outcome_append_error",
			zap.Int64("target_id", int64(t.ID)),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("probe_completed",
		zap.Int64("target_id", int64(t.ID)),
		zap.String("url", t.URL),
		zap.Bool("success", out.Success()),
		zap.Int64("status", out.StatusCode.Int64),
		zap.Float64("response_time_ms", out.ResponseTimeMS.Float64),
		zap.String("error", out.Error),
	)
	s.evaluator.Evaluate(ctx, t, out)
}
