package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// ErrStopped is returned when a job is submitted after Shutdown
var ErrStopped = errors.New("worker stopped")

// queuedJob is a named job waiting for a pool goroutine
type queuedJob struct {
	name string
	job  Job
}

// Worker runs queued jobs on a fixed pool, fire-and-forget jobs bounded by a
// semaphore, and named jobs on a schedule. Nothing is accepted once Shutdown
// has started: stopMu orders submissions against closing the queue.
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stopMu        sync.RWMutex
	stopped       bool
	queue         chan queuedJob
	asyncSem      chan struct{}
	maxConcurrent int
	stats         WorkerStats
	scheduled     map[string]*ScheduledJobStatus
	statsMu       sync.RWMutex
	closeOnce     sync.Once
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int                  `json:"active_jobs"`
	CompletedJobs int64                `json:"completed_jobs"`
	FailedJobs    int64                `json:"failed_jobs"`
	QueueLength   int                  `json:"queue_length"`
	MaxConcurrent int                  `json:"max_concurrent"`
	Scheduled     []ScheduledJobStatus `json:"scheduled"`
}

// ScheduledJobStatus is the run history of one named scheduled job
type ScheduledJobStatus struct {
	Name        string        `json:"name"`
	Interval    string        `json:"interval"`
	Runs        int64         `json:"runs"`
	Failures    int64         `json:"failures"`
	LastRunAt   *time.Time    `json:"last_run_at"`
	LastElapsed time.Duration `json:"last_elapsed_ns"`
	LastError   string        `json:"last_error,omitempty"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan queuedJob, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
		scheduled:     make(map[string]*ScheduledJobStatus),
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// Enqueue queues a named job for the worker pool. Its runs are recorded under
// name like scheduled runs. When the queue is full the job runs on the
// caller's goroutine.
func (w *Worker) Enqueue(name string, job Job) error {
	w.stopMu.RLock()
	if w.stopped {
		w.stopMu.RUnlock()
		logger.Warn("worker stopped, dropping job", "job", name)
		return ErrStopped
	}
	select {
	case w.queue <- queuedJob{name: name, job: job}:
		w.stopMu.RUnlock()
		return nil
	default:
	}
	w.stopMu.RUnlock()

	logger.Warn("worker queue full, running job synchronously", "job", name)
	return w.runScheduledJobWith(w.ctx, name, job)
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(job Job) {
	w.stopMu.RLock()
	if w.stopped {
		w.stopMu.RUnlock()
		logger.Warn("worker stopped, dropping async job")
		return
	}
	w.wg.Add(1)
	w.stopMu.RUnlock()

	go func() {
		defer w.wg.Done()

		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		w.trackJobStart()
		defer w.trackJobEnd()

		defer func() {
			if r := recover(); r != nil {
				logger.Error("async job panicked", "panic", r)
				w.trackJobFailure()
			}
		}()

		if err := job(w.ctx); err != nil {
			logger.Error("async job failed", "error", err)
			w.trackJobFailure()
		}
	}()
}

// process handles jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case queued, ok := <-w.queue:
			if !ok {
				return
			}
			logger.Debug("running queued job", "worker", workerID, "job", queued.name)
			_ = w.runScheduledJobWith(w.ctx, queued.name, queued.job)
		}
	}
}

// ScheduleEvery runs a named job at fixed intervals. The first run happens after the interval.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, job, false)
}

// ScheduleEveryImmediate runs a named job once at startup, then at fixed intervals, so that a
// restart does not postpone the job by a full interval.
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, job, true)
}

func (w *Worker) schedule(name string, interval time.Duration, job Job, immediate bool) {
	if !w.register(name, interval.String()) {
		return
	}
	go func() {
		defer w.wg.Done()
		if immediate {
			w.runScheduledJob(name, job)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

// ScheduleDaily runs a named job every day at the given offset from local
// midnight, e.g. 2*time.Hour for 02:00.
func (w *Worker) ScheduleDaily(name string, at time.Duration, job Job) {
	if !w.register(name, fmt.Sprintf("daily at %02d:%02d", int(at.Hours())%24, int(at.Minutes())%60)) {
		return
	}
	go func() {
		defer w.wg.Done()
		for {
			timer := time.NewTimer(time.Until(nextDailyRun(time.Now(), at)))
			select {
			case <-w.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

// nextDailyRun returns the first time strictly after now that sits at offset
// at from its day's midnight.
func nextDailyRun(now time.Time, at time.Duration) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := midnight.Add(at)
	if !next.After(now) {
		next = midnight.AddDate(0, 0, 1).Add(at)
	}
	return next
}

// register records a scheduled job and reserves its goroutine in the wait
// group. It reports false once the worker is stopped.
func (w *Worker) register(name, cadence string) bool {
	w.stopMu.RLock()
	defer w.stopMu.RUnlock()
	if w.stopped {
		logger.Warn("worker stopped, not scheduling job", "job", name)
		return false
	}

	w.statsMu.Lock()
	w.scheduled[name] = &ScheduledJobStatus{Name: name, Interval: cadence}
	w.statsMu.Unlock()

	w.wg.Add(1)
	return true
}

// RunNow runs a scheduled job synchronously, outside its schedule
func (w *Worker) RunNow(ctx context.Context, name string, job Job) error {
	return w.runScheduledJobWith(ctx, name, job)
}

func (w *Worker) runScheduledJob(name string, job Job) {
	_ = w.runScheduledJobWith(w.ctx, name, job)
}

func (w *Worker) runScheduledJobWith(ctx context.Context, name string, job Job) (err error) {
	w.trackJobStart()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("scheduled job failed", "job", name, "error", err)
			w.trackJobFailure()
		} else {
			logger.Debug("scheduled job completed", "job", name, "duration", elapsed)
		}
		w.trackScheduledRun(name, start, elapsed, err)
		w.trackJobEnd()
	}()
	return job(ctx)
}

// Shutdown gracefully stops all workers. Jobs still queued are dropped.
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() {
		w.stopMu.Lock()
		w.stopped = true
		w.cancel()
		close(w.queue)
		w.stopMu.Unlock()

		w.wg.Wait()
	})
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	stats.Scheduled = make([]ScheduledJobStatus, 0, len(w.scheduled))
	for _, s := range w.scheduled {
		stats.Scheduled = append(stats.Scheduled, *s)
	}
	sort.Slice(stats.Scheduled, func(i, j int) bool {
		return stats.Scheduled[i].Name < stats.Scheduled[j].Name
	})
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

func (w *Worker) trackJobEnd() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
}

// trackJobFailure counts a failure. Failed jobs are also counted as completed by trackJobEnd.
func (w *Worker) trackJobFailure() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.FailedJobs++
}

func (w *Worker) trackScheduledRun(name string, start time.Time, elapsed time.Duration, err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	status, ok := w.scheduled[name]
	if !ok {
		status = &ScheduledJobStatus{Name: name}
		w.scheduled[name] = status
	}
	status.Runs++
	status.LastRunAt = &start
	status.LastElapsed = elapsed
	status.LastError = ""
	if err != nil {
		status.Failures++
		status.LastError = err.Error()
	}
}
