// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package trainer runs training jobs asynchronously on a bounded worker
// pool. Submission returns a model id immediately; the run's progress is
// tracked in an in-memory status registry keyed by that id.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dmarceau/rewardly/internal/metrics"
	"github.com/dmarceau/rewardly/internal/models"
	"github.com/dmarceau/rewardly/internal/recommend"
)

// Run states. A run moves pending -> running -> completed or failed and
// never backwards.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrQueueFull is returned when the job queue cannot accept another run.
var ErrQueueFull = errors.New("training queue full")

// ErrRunNotFound is returned when no run exists for a model id.
var ErrRunNotFound = errors.New("training run not found")

// RunStatus is the observable state of one training run.
type RunStatus struct {
	ModelID     string    `json:"model_id"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	NumRewards  int       `json:"num_rewards"`
	Entries     int       `json:"entries,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

type job struct {
	modelID    string
	snapshot   *models.DatasetSnapshot
	numRewards int
}

// Config holds pool sizing and timeout parameters.
type Config struct {
	// Workers is the number of concurrent training goroutines.
	Workers int

	// QueueSize bounds pending jobs; submissions beyond it fail fast with
	// ErrQueueFull instead of blocking the API.
	QueueSize int

	// RunTimeout bounds one training run end to end (0 = no timeout).
	RunTimeout time.Duration
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() Config {
	return Config{
		Workers:    2,
		QueueSize:  16,
		RunTimeout: 10 * time.Minute,
	}
}

// Pool executes training runs. It implements suture.Service: Serve blocks
// running workers until the context is canceled, and a supervisor restart
// resumes draining the queue (queued jobs survive a worker crash because
// the channel outlives Serve).
type Pool struct {
	engine *recommend.Engine
	cfg    Config
	jobs   chan job
	logger zerolog.Logger

	mu       sync.RWMutex
	statuses map[string]*RunStatus
}

// NewPool creates a pool around the engine.
func NewPool(engine *recommend.Engine, cfg Config, logger zerolog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Pool{
		engine:   engine,
		cfg:      cfg,
		jobs:     make(chan job, cfg.QueueSize),
		logger:   logger.With().Str("component", "trainer").Logger(),
		statuses: make(map[string]*RunStatus),
	}
}

// Submit queues a training run and returns its model id without waiting for
// the run to start.
func (p *Pool) Submit(snapshot *models.DatasetSnapshot, numRewards int) (string, error) {
	modelID := uuid.NewString()

	p.mu.Lock()
	p.statuses[modelID] = &RunStatus{
		ModelID:     modelID,
		Status:      StatusPending,
		NumRewards:  numRewards,
		SubmittedAt: time.Now().UTC(),
	}
	p.mu.Unlock()

	select {
	case p.jobs <- job{modelID: modelID, snapshot: snapshot, numRewards: numRewards}:
		metrics.TrainingQueueDepth.Set(float64(len(p.jobs)))
		return modelID, nil
	default:
		p.mu.Lock()
		delete(p.statuses, modelID)
		p.mu.Unlock()
		return "", fmt.Errorf("%w: %d jobs queued", ErrQueueFull, p.cfg.QueueSize)
	}
}

// Status returns a copy of the run status for a model id.
func (p *Pool) Status(modelID string) (RunStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st, ok := p.statuses[modelID]
	if !ok {
		return RunStatus{}, fmt.Errorf("%w: %s", ErrRunNotFound, modelID)
	}
	return *st, nil
}

// Serve runs the workers until ctx is canceled. Implements suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}
	return g.Wait()
}

// String identifies the service in supervisor logs.
func (p *Pool) String() string { return "trainer-pool" }

func (p *Pool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-p.jobs:
			metrics.TrainingQueueDepth.Set(float64(len(p.jobs)))
			p.runJob(ctx, j)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, j job) {
	p.transition(j.modelID, func(st *RunStatus) {
		st.Status = StatusRunning
		st.StartedAt = time.Now().UTC()
	})

	runCtx := ctx
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	set, err := p.engine.Run(runCtx, recommend.RunParams{
		Snapshot:   j.snapshot,
		NumRewards: j.numRewards,
		ModelID:    j.modelID,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("model_id", j.modelID).Msg("training run failed")
		metrics.RecordTrainingRun(StatusFailed, time.Since(start))
		p.transition(j.modelID, func(st *RunStatus) {
			st.Status = StatusFailed
			st.Error = err.Error()
			st.CompletedAt = time.Now().UTC()
		})
		return
	}

	metrics.RecordTrainingRun(StatusCompleted, time.Since(start))
	p.transition(j.modelID, func(st *RunStatus) {
		st.Status = StatusCompleted
		st.Entries = len(set.Entries)
		st.CompletedAt = time.Now().UTC()
	})
}

func (p *Pool) transition(modelID string, fn func(*RunStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.statuses[modelID]; ok {
		fn(st)
	}
}
