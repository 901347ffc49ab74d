package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("dispatch: dispatcher closed")

// Observer counts processed jobs by status.
type Observer interface {
	ObserveDispatch(status string)
}

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
	deleteTimeout           = 5 * time.Second
	deliverTimeout          = 15 * time.Second
)

// Dispatcher routes jobs through a queue to a pool of workers. Callers can
// wait for the reply (Process) or hand it to the ReplySink (Submit).
type Dispatcher struct {
	processor *Processor
	queue     Queue
	sink      ReplySink
	observer  Observer
	logger    *logging.Logger

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // job id -> chan Reply
}

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	consumeOnly      bool
}

// Option configures the dispatcher.
type Option func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) Option {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for Receive calls.
func WithReceiveWaitSeconds(seconds int) Option {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) Option {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// WithoutWorkers builds a producer-only dispatcher for processes that enqueue
// into SQS while a separate worker consumes.
func WithoutWorkers() Option {
	return func(cfg *dispatcherConfig) { cfg.consumeOnly = true }
}

// New wires a queue-backed dispatcher around processor and starts its workers.
func New(processor *Processor, queue Queue, sink ReplySink, observer Observer, logger *logging.Logger, opts ...Option) *Dispatcher {
	if processor == nil {
		panic("dispatch: processor cannot be nil")
	}
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if sink == nil {
		sink = NewLogSink(logger)
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		processor: processor,
		queue:     queue,
		sink:      sink,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	if !cfg.consumeOnly {
		for i := 0; i < cfg.workers; i++ {
			d.wg.Add(1)
			go d.runWorker(i + 1)
		}
	}
	return d
}

// Submit enqueues the job and returns its id. The reply goes to the sink.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (string, error) {
	if d.ctx.Err() != nil {
		return "", ErrDispatcherClosed
	}
	job, body, err := encodeJob(job)
	if err != nil {
		return "", err
	}
	if err := d.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("dispatch: failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Process enqueues the job and blocks until a worker in this process handles
// it or ctx is done.
func (d *Dispatcher) Process(ctx context.Context, job Job) (Reply, error) {
	if d.ctx.Err() != nil {
		return Reply{}, ErrDispatcherClosed
	}
	if d.cfg.consumeOnly {
		return Reply{}, fmt.Errorf("dispatch: no local workers to wait on")
	}
	job, body, err := encodeJob(job)
	if err != nil {
		return Reply{}, err
	}

	resultCh := make(chan Reply, 1)
	d.pending.Store(job.ID, resultCh)
	defer d.pending.Delete(job.ID)

	if err := d.queue.Send(ctx, body); err != nil {
		return Reply{}, fmt.Errorf("dispatch: failed to enqueue job: %w", err)
	}

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-d.ctx.Done():
		return Reply{}, ErrDispatcherClosed
	case reply := <-resultCh:
		return reply, nil
	}
}

// Run blocks until ctx is done, then shuts the dispatcher down. It suits
// worker processes that only consume.
func (d *Dispatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return d.Shutdown(shutdownCtx)
}

// Shutdown stops worker goroutines and waits for in-flight jobs.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	return nil
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive jobs", "error", err, "worker_id", workerID)
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleQueueMessage(msg)
		}
	}
}

func (d *Dispatcher) handleQueueMessage(msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		d.logger.Error("dropping undecodable job", "error", err, "message_id", msg.ID)
		d.deleteMessage(msg)
		d.observe("decode_failed")
		return
	}

	// Handle ignores cancellation, so shutdown waits for the job to finish.
	reply := d.processor.Process(d.ctx, job)
	d.deleteMessage(msg)

	if d.deliverWaiter(job.ID, reply) {
		d.observe("replied")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), deliverTimeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, reply); err != nil {
		d.logger.Error("failed to deliver reply", "error", err, "job_id", job.ID)
		d.observe("sink_failed")
		return
	}
	d.observe("delivered")
}

func (d *Dispatcher) deleteMessage(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := d.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		d.logger.Error("failed to delete job", "error", err, "message_id", msg.ID)
	}
}

func (d *Dispatcher) deliverWaiter(jobID string, reply Reply) bool {
	value, ok := d.pending.Load(jobID)
	if !ok {
		return false
	}
	ch, ok := value.(chan Reply)
	if !ok {
		d.logger.Error("dispatch pending map corrupted", "job_id", jobID)
		d.pending.Delete(jobID)
		return false
	}
	select {
	case ch <- reply:
	default:
	}
	return true
}

func (d *Dispatcher) observe(status string) {
	if d.observer != nil {
		d.observer.ObserveDispatch(status)
	}
}
