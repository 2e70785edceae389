package probe

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	// Formats the overlay accepts, plus webp which CDNs serve behind .jpg URLs
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	errs "pinmark/pkg/errors"
	"pinmark/pkg/logger"
	"pinmark/pkg/ratelimit"
	"pinmark/pkg/retry"
)

// headerLimit is how much of an image is read to find its dimensions
const headerLimit = 1 << 20

// Job is one image to measure
type Job struct {
	URL string
}

// Result is the outcome of a job
type Result struct {
	Job      Job
	Width    int
	Height   int
	Format   string
	Error    error
	Duration time.Duration
}

// Opener returns the body of an image
type Opener interface {
	OpenImage(ctx context.Context, imageURL string) (io.ReadCloser, error)
}

// WorkerPool measures images concurrently
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	opener      Opener
	rateLimiter ratelimit.Limiter
	retry       *retry.Config
	timeout     time.Duration
	logger      logger.Logger
}

// NewWorkerPool creates a pool. Call Start before submitting jobs.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	opener Opener,
	rateLimiter ratelimit.Limiter,
	retryCfg *retry.Config,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		opener:      opener,
		rateLimiter: rateLimiter,
		retry:       retryCfg,
		logger:      log.WithField("component", "probe"),
	}
}

// SetAttemptTimeout bounds each fetch attempt. Zero means no bound.
func (wp *WorkerPool) SetAttemptTimeout(d time.Duration) {
	wp.timeout = d
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting probe workers", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes Results. No
// Submit may run concurrently with or after Stop.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Probe workers stopped")
}

// Abort cancels outstanding work. Stop must still be called.
func (wp *WorkerPool) Abort() {
	wp.cancel()
}

// Submit queues a job
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("probe pool is shutting down")
	}
}

// Results delivers one Result per submitted job
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// QueueSize is the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			// drain so Stop does not block on a full queue
			continue
		}
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := wp.ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	size, err := retry.DoWithResult(wp.ctx, wp.retry, func(ctx context.Context) (probed, error) {
		if err := wp.rateLimiter.Wait(ctx); err != nil {
			return probed{}, err
		}
		return wp.measure(ctx, job.URL)
	})
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		wp.logger.WithError(err).DebugWithFields("Probe failed", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.URL,
		})
		return result
	}

	result.Width, result.Height, result.Format = size.width, size.height, size.format
	wp.logger.DebugWithFields("Probed image", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"width":     result.Width,
		"height":    result.Height,
		"format":    result.Format,
		"duration":  result.Duration,
	})
	return result
}

type probed struct {
	width  int
	height int
	format string
}

func (wp *WorkerPool) measure(ctx context.Context, imageURL string) (probed, error) {
	if wp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.timeout)
		defer cancel()
	}

	body, err := wp.opener.OpenImage(ctx, imageURL)
	if err != nil {
		return probed{}, err
	}
	defer body.Close()

	cfg, format, err := image.DecodeConfig(io.LimitReader(body, headerLimit))
	if err != nil {
		return probed{}, errs.Wrap(errs.ErrorTypeParsing, "unrecognised image", err)
	}
	return probed{width: cfg.Width, height: cfg.Height, format: format}, nil
}
