package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	log       zerolog.Logger

	// mu guards closing so Submit never sends on a closed queue.
	mu      sync.RWMutex
	closing bool
}

// QueueSize is the number of pending tasks kept before Submit starts dropping.
const QueueSize = 1000

func NewWorkerPool(size int, log zerolog.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	wp := &WorkerPool{
		taskQueue: make(chan Task, QueueSize),
		log:       log,
	}

	// Start the workers
	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done() // signal when worker finished
	for task := range wp.taskQueue {
		if err := task(context.Background()); err != nil {
			wp.log.Error().Err(err).Msg("worker task failed")
		}
	}
}

// Submit queues t and reports whether it was accepted. Tasks are dropped
// once the pool is shutting down or the queue is full.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closing {
		wp.log.Warn().Msg("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		wp.log.Warn().Msg("task queue full, dropping task")
		return false
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closing {
		wp.mu.Unlock()
		return
	}
	wp.closing = true
	close(wp.taskQueue) // Stop accepting new tasks
	wp.mu.Unlock()

	wp.wg.Wait() // Wait for all active workers to finish tasks
}
