package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"karmaterra-backend/internal/push/domain"
)

// DispatchJob is one queued push request
type DispatchJob struct {
	Request SendRequest
	// Done is called with the result when the job finishes. Optional.
	Done func(n *domain.Notification, err error)
}

// NotificationSender is the part of Dispatcher the queue needs
type NotificationSender interface {
	Send(ctx context.Context, req SendRequest) (*domain.Notification, error)
}

// DispatchQueue sends notifications in the background with a fixed pool of workers
type DispatchQueue struct {
	sender      NotificationSender
	jobQueue    chan DispatchJob
	workerWg    sync.WaitGroup
	workerCount int
	jobTimeout  time.Duration

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewDispatchQueue creates a new dispatch queue
func NewDispatchQueue(sender NotificationSender, workerCount, queueSize int) *DispatchQueue {
	if workerCount <= 0 {
		workerCount = 3
	}
	if queueSize <= 0 {
		queueSize = 500
	}
	return &DispatchQueue{
		sender:      sender,
		jobQueue:    make(chan DispatchJob, queueSize),
		workerCount: workerCount,
		jobTimeout:  30 * time.Second,
	}
}

// Start starts the dispatch workers
func (q *DispatchQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.stopped {
		return
	}
	for i := 0; i < q.workerCount; i++ {
		q.workerWg.Add(1)
		go q.worker(i)
	}
	q.started = true
	log.Printf("[Dispatch] Started %d workers", q.workerCount)
}

// Stop drains the queue and waits for the workers. Enqueue fails afterwards.
func (q *DispatchQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobQueue)
	q.mu.Unlock()

	q.workerWg.Wait()
	log.Println("[Dispatch] All workers stopped")
}

// Enqueue adds a job without blocking; false means the queue is full or stopped
func (q *DispatchQueue) Enqueue(job DispatchJob) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return false
	}
	select {
	case q.jobQueue <- job:
		return true
	default:
		return false
	}
}

func (q *DispatchQueue) worker(id int) {
	defer q.workerWg.Done()

	for job := range q.jobQueue {
		q.processJob(job)
	}

	log.Printf("[Dispatch] Worker %d stopped", id)
}

func (q *DispatchQueue) processJob(job DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
	defer cancel()

	n, err := q.sender.Send(ctx, job.Request)
	if err != nil {
		log.Printf("[Dispatch] Job for user %s failed: %v", job.Request.UserID, err)
	}
	if job.Done != nil {
		job.Done(n, err)
	}
}
