package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/service"
)

const deliveryTimeout = 10 * time.Second

// NotificationWorker drains a bounded queue of delivery jobs on one
// goroutine so slow sinks never hold an HTTP request.
type NotificationWorker struct {
	jobs   chan func(context.Context)
	logger *zap.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// StartNotificationWorker starts the worker and routes the service's
// deliveries through it. Stop drains pending jobs.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 100
	}
	w := &NotificationWorker{
		jobs:   make(chan func(context.Context), queueSize),
		logger: logger,
	}
	w.wg.Add(1)
	go w.loop(context.WithoutCancel(ctx))

	if notificationService != nil {
		notificationService.UseExecutor(w)
		notificationService.RegisterHandlers()
	}
	return w
}

// Submit enqueues job without blocking. It reports false when the queue
// is full or the worker has stopped.
func (w *NotificationWorker) Submit(job func(ctx context.Context)) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	for job := range w.jobs {
		w.run(ctx, job)
	}
}

func (w *NotificationWorker) run(ctx context.Context, job func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("notification job panicked", zap.Any("panic", r))
		}
	}()
	jobCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	job(jobCtx)
}
