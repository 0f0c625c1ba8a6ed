package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"execution-core/pkg/venue"
)

// EngineSource resolves an engine by venue name (typically the gateway
// registry).
type EngineSource interface {
	Engine(name string) (*Engine, error)
}

// ExecutionResult is the outcome of one asynchronous execution.
type ExecutionResult struct {
	ID        string        `json:"id"`
	Venue     string        `json:"venue"`
	Report    Report        `json:"report"`
	Err       error         `json:"-"`
	ErrorMsg  string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// AsyncExecutor runs independent Execute calls on a bounded worker pool.
// Orders never share state, so no coordination beyond the pool is needed.
type AsyncExecutor struct {
	source     EngineSource
	log        *zap.Logger
	resultCh   chan ExecutionResult
	workerPool chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
}

// NewAsyncExecutor creates an async executor with the given worker count.
func NewAsyncExecutor(source EngineSource, workers int, log *zap.Logger) *AsyncExecutor {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AsyncExecutor{
		source:     source,
		log:        log,
		resultCh:   make(chan ExecutionResult, 100),
		workerPool: make(chan struct{}, workers),
	}
}

// ExecuteAsync schedules one execution and returns its submission id, or
// false when the executor is already closed.
func (a *AsyncExecutor) ExecuteAsync(ctx context.Context, venueName string, req venue.OrderRequest) (string, bool) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return "", false
	}
	// Registering under the lock keeps Close from passing wg.Wait and
	// closing the result channel between the check and the send.
	a.wg.Add(1)
	a.mu.Unlock()

	id := uuid.NewString()
	a.workerPool <- struct{}{}

	go func() {
		defer a.wg.Done()
		defer func() { <-a.workerPool }()

		start := time.Now()
		res := ExecutionResult{ID: id, Venue: venueName}

		eng, err := a.source.Engine(venueName)
		if err == nil {
			res.Report, err = eng.Execute(ctx, req)
		}
		res.Err = err
		res.Latency = time.Since(start)
		res.Timestamp = time.Now()
		if err != nil {
			res.ErrorMsg = err.Error()
			a.log.Warn("async execution failed",
				zap.String("id", id),
				zap.String("venue", venueName),
				zap.Error(err))
		}

		select {
		case a.resultCh <- res:
		default:
			a.log.Warn("result channel full, dropping result", zap.String("id", id))
		}
	}()

	return id, true
}

// Results returns the result channel.
func (a *AsyncExecutor) Results() <-chan ExecutionResult {
	return a.resultCh
}

// Pending returns the number of in-flight executions.
func (a *AsyncExecutor) Pending() int {
	return len(a.workerPool)
}

// WaitAll blocks until all scheduled executions finish.
func (a *AsyncExecutor) WaitAll() {
	a.wg.Wait()
}

// Close stops accepting work and waits for in-flight executions.
func (a *AsyncExecutor) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.wg.Wait()
	close(a.resultCh)
}
