package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lissa/commissions-api/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job is a unit of background work
type Job func(ctx context.Context) error

type task struct {
	name string
	run  Job
}

// TaskStats is the run history of one named task
type TaskStats struct {
	Name         string        `json:"name"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns"`
	LastError    string        `json:"last_error,omitempty"`
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int         `json:"active_jobs"`
	CompletedJobs int64       `json:"completed_jobs"`
	FailedJobs    int64       `json:"failed_jobs"`
	QueueLength   int         `json:"queue_length"`
	MaxConcurrent int         `json:"max_concurrent"`
	Tasks         []TaskStats `json:"tasks"`
}

// Worker runs queued tasks on a fixed pool and fires scheduled ones.
// Interval schedules use tickers; calendar schedules use cron in the configured location.
type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	queue  chan task
	size   int
	cron   *cron.Cron
	mu     sync.RWMutex
	active int
	done   int64
	failed int64
	byName map[string]*TaskStats
}

// NewWorker starts numWorkers processors. A nil loc means UTC.
func NewWorker(numWorkers int, loc *time.Location) *Worker {
	if loc == nil {
		loc = time.UTC
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan task, 100),
		size:   numWorkers,
		cron:   cron.New(cron.WithLocation(loc)),
		byName: make(map[string]*TaskStats),
	}
	w.cron.Start()

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
	return w
}

// Enqueue hands a named task to the pool. A full queue runs it on the caller's goroutine.
func (w *Worker) Enqueue(name string, job Job) {
	select {
	case w.queue <- task{name: name, run: job}:
	default:
		logger.Warn("[Worker] queue full, running inline", "task", name)
		w.run(task{name: name, run: job})
	}
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t, ok := <-w.queue:
			if !ok {
				return
			}
			logger.Debug("[Worker] picked task", "worker", id, "task", t.name)
			w.run(t)
		}
	}
}

// ScheduleEveryImmediate runs the task once now and then every interval
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	t := task{name: name, run: job}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(t)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.run(t)
			}
		}
	}()
}

// ScheduleCron fires the task on a five-field cron spec, e.g. "0 7 * * *"
func (w *Worker) ScheduleCron(name, spec string, job Job) error {
	t := task{name: name, run: job}
	if _, err := w.cron.AddFunc(spec, func() { w.run(t) }); err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, name, err)
	}
	return nil
}

// run executes a task, recording its outcome. Panics count as failures.
func (w *Worker) run(t task) {
	started := time.Now()
	w.begin()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = t.run(w.ctx)
	}()

	elapsed := time.Since(started)
	w.finish(t.name, started, elapsed, err)
	if err != nil {
		logger.Error("[Worker] task failed", "task", t.name, "error", err, "elapsed", elapsed)
		return
	}
	logger.Info("[Worker] task completed", "task", t.name, "elapsed", elapsed)
}

func (w *Worker) begin() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active++
}

func (w *Worker) finish(name string, started time.Time, elapsed time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active--
	w.done++

	s, ok := w.byName[name]
	if !ok {
		s = &TaskStats{Name: name}
		w.byName[name] = s
	}
	s.Runs++
	s.LastRun = &started
	s.LastDuration = elapsed
	s.LastError = ""
	if err != nil {
		w.failed++
		s.Failures++
		s.LastError = err.Error()
	}
}

// Shutdown stops the schedules, then waits for running tasks
func (w *Worker) Shutdown() {
	<-w.cron.Stop().Done()
	w.cancel()
	close(w.queue)
	w.wg.Wait()
}

// GetStats returns a snapshot of the counters, tasks sorted by name
func (w *Worker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stats := WorkerStats{
		ActiveJobs:    w.active,
		CompletedJobs: w.done,
		FailedJobs:    w.failed,
		QueueLength:   len(w.queue),
		MaxConcurrent: w.size,
		Tasks:         make([]TaskStats, 0, len(w.byName)),
	}
	for _, s := range w.byName {
		stats.Tasks = append(stats.Tasks, *s)
	}
	sort.Slice(stats.Tasks, func(i, j int) bool { return stats.Tasks[i].Name < stats.Tasks[j].Name })
	return stats
}
