package imageresizer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Skryldev/image-resizer/config"
	"github.com/Skryldev/image-resizer/core"
	apperrors "github.com/Skryldev/image-resizer/errors"
	"github.com/Skryldev/image-resizer/resize"
)

// Job encapsulates a single unit of work for the worker pool.
type Job struct {
	ID     string
	Ctx    context.Context //nolint:containedctx // intentional for async jobs
	Data   []byte
	Params string
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Data   []byte
	Format core.Format
	Err    error
}

// Transformer runs params-driven transforms over a shared backend.  One
// entity is constructed per request and never shared across goroutines;
// the backend handles its own internal thread-safety.
type Transformer struct {
	cfg     config.Config
	backend core.Backend
	hooks   []core.Hook
	logger  core.Logger
	metrics core.MetricsCollector

	// Worker pool.
	jobQueue chan Job
	wg       sync.WaitGroup
	once     sync.Once
	stopOnce sync.Once
	shutdown chan struct{}

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// NewTransformer creates a Transformer with the given config and backend.
// Call Start() before submitting async jobs; call Stop() when done.
func NewTransformer(cfg config.Config, backend core.Backend) *Transformer {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Transformer{
		cfg:      cfg,
		backend:  backend,
		jobQueue: make(chan Job, queueSize),
		shutdown: make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (t *Transformer) SetLogger(l core.Logger) { t.logger = l }

// SetMetrics attaches a metrics collector.
func (t *Transformer) SetMetrics(m core.MetricsCollector) { t.metrics = m }

// AddHook registers a pipeline hook.
func (t *Transformer) AddHook(h core.Hook) { t.hooks = append(t.hooks, h) }

// Start launches the worker pool.  It is idempotent.
func (t *Transformer) Start() {
	t.once.Do(func() {
		workerCount := t.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			t.wg.Add(1)
			go t.worker()
		}
	})
}

// Stop shuts down all workers and fails any jobs still queued, so waiters
// on a ResultCh are never left hanging.  Idempotent.
func (t *Transformer) Stop() {
	t.stopOnce.Do(func() {
		close(t.shutdown)
		t.wg.Wait()
		for {
			select {
			case job := <-t.jobQueue:
				if job.ResultCh != nil {
					job.ResultCh <- JobResult{
						JobID: job.ID,
						Err:   apperrors.New(apperrors.CategoryInput, "transform.stop", apperrors.ErrShutdown),
					}
				}
			default:
				return
			}
		}
	})
}

// Transform is the primary synchronous API: it constructs an entity from
// data, applies the resize described by params, re-encodes, and returns the
// output bytes.  The entity is always released before returning.
func (t *Transformer) Transform(ctx context.Context, data []byte, params string) ([]byte, core.Format, error) {
	op, err := ResizeFromParams(params)
	if err != nil {
		atomic.AddInt64(&t.errorCount, 1)
		return nil, core.FormatUnknown, err
	}

	img, err := Open(ctx, t.backend, data)
	if err != nil {
		atomic.AddInt64(&t.errorCount, 1)
		return nil, core.FormatUnknown, err
	}
	defer img.Close()

	pl := resize.New().Use(op)
	for _, h := range t.hooks {
		pl.AddHook(h)
	}

	timings, err := pl.Run(ctx, img)
	if err != nil {
		atomic.AddInt64(&t.errorCount, 1)
		return nil, img.Format(), err
	}
	if t.logger != nil {
		for name, d := range timings {
			t.logger.Debug("transform.op", "op", name, "duration_ms", d.Milliseconds())
		}
	}

	out, err := img.Encode(ctx, core.EncodeOptions{
		Quality:     t.cfg.DefaultQuality,
		Compression: t.cfg.PNGCompression,
	})
	if err != nil {
		atomic.AddInt64(&t.errorCount, 1)
		return nil, img.Format(), err
	}

	atomic.AddInt64(&t.processedCount, 1)
	if t.metrics != nil {
		t.metrics.RecordThroughput(int64(len(out)))
	}
	return out, img.Format(), nil
}

// Submit enqueues an async job.  Returns ErrQueueFull if the queue is full
// and ErrShutdown after Stop.
func (t *Transformer) Submit(job Job) error {
	select {
	case <-t.shutdown:
		return apperrors.New(apperrors.CategoryInput, "submit", apperrors.ErrShutdown)
	default:
	}
	select {
	case t.jobQueue <- job:
		return nil
	default:
		return apperrors.New(apperrors.CategoryInput, "submit", apperrors.ErrQueueFull)
	}
}

// Batch transforms multiple inputs concurrently (fan-out / fan-in) with the
// same params.  Each input gets its own entity; results and errors are
// positional.
func (t *Transformer) Batch(ctx context.Context, inputs [][]byte, params string) ([][]byte, []error) {
	results := make([][]byte, len(inputs))
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup

	for i, data := range inputs {
		wg.Add(1)
		go func(idx int, d []byte) {
			defer wg.Done()
			out, _, err := t.Transform(ctx, d, params)
			results[idx] = out
			errs[idx] = err
		}(i, data)
	}
	wg.Wait()
	return results, errs
}

// ProcessedCount returns the total number of successful transforms.
func (t *Transformer) ProcessedCount() int64 { return atomic.LoadInt64(&t.processedCount) }

// ErrorCount returns the total number of transform errors.
func (t *Transformer) ErrorCount() int64 { return atomic.LoadInt64(&t.errorCount) }

// ── worker pool internals ─────────────────────────────────────────────────────

func (t *Transformer) worker() {
	defer t.wg.Done()
	for {
		select {
		case <-t.shutdown:
			return
		case job, ok := <-t.jobQueue:
			if !ok {
				return
			}
			t.processJob(job)
		}
	}
}

func (t *Transformer) processJob(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := t.cfg.JobTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, format, err := t.Transform(ctx, job.Data, job.Params)
	if job.ResultCh != nil {
		job.ResultCh <- JobResult{JobID: job.ID, Data: data, Format: format, Err: err}
	}
}
