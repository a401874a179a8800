package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyq/pkg/logger"
	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// Queue is the part of notifyq.Queue the worker drives.
type Queue interface {
	ClaimDue(ctx context.Context, limit int, opts ...notifyq.ClaimOption) ([]notifyq.Record, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	RecordFailureAndMaybeRetry(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error)
}

// Worker claims due records and hands each one to the Sender registered for
// its channel.
type Worker struct {
	queue    Queue
	senders  map[notifyq.Channel]Sender
	workerID uuid.UUID
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	sem      chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// NewWorker creates a new delivery worker
func NewWorker(queue Queue, opts ...Option) (*Worker, error) {
	if queue == nil {
		return nil, ErrQueueNil
	}

	w := &Worker{
		queue:    queue,
		senders:  make(map[notifyq.Channel]Sender),
		workerID: uuid.New(),
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("dispatch"), logger.WorkerID(w.workerID.String()))

	return w, nil
}

// RegisterSender registers senders by their channel. A later sender for the
// same channel replaces the earlier one. Senders cannot change after Start.
func (w *Worker) RegisterSender(senders ...Sender) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}
	for _, s := range senders {
		if s == nil {
			continue
		}
		if !s.Channel().Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidSender, s.Channel())
		}
		w.senders[s.Channel()] = s
	}
	return nil
}

// Channels lists the channels this worker can deliver.
func (w *Worker) Channels() []notifyq.Channel {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []notifyq.Channel
	for _, ch := range notifyq.Channels {
		if _, ok := w.senders[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Start begins claiming in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}
	if len(w.senders) == 0 {
		return ErrNoSenders
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.sem = make(chan struct{}, w.cfg.MaxConcurrent)
	w.loopDone = make(chan struct{})

	var channels []notifyq.Channel
	for _, ch := range notifyq.Channels {
		if _, ok := w.senders[ch]; ok {
			channels = append(channels, ch)
		}
	}
	go w.run(channels)

	w.logger.Info("worker started",
		slog.Any("channels", channels),
		slog.Int("batch_size", w.cfg.BatchSize),
		slog.Int("max_concurrent", w.cfg.MaxConcurrent))

	return nil
}

// Stop halts claiming and waits for in-flight sends to be reported.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	cancel, loopDone := w.cancel, w.loopDone
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-loopDone

	w.logger.Info("worker stopping, waiting for in-flight sends")
	w.wg.Wait()
	w.logger.Info("worker stopped")

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// WorkerInfo returns information about the worker
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}

// run is the claim loop. It is the only goroutine that adds to wg, so Stop can
// wait for it to exit before waiting on in-flight sends.
func (w *Worker) run(channels []notifyq.Channel) {
	defer close(w.loopDone)

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
		}

		next, err := w.poll(channels)
		if err != nil {
			failures++
			next = w.claimBackoff(failures)
			if w.ctx.Err() == nil {
				w.logger.Error("failed to claim notifications",
					logger.Error(err),
					slog.Int("consecutive_failures", failures),
					slog.Duration("retry_in", next))
			}
		} else {
			failures = 0
		}
		timer.Reset(next)
	}
}

// poll claims as many records as there are free send slots and starts
// delivering them. It returns how long to wait before the next claim.
func (w *Worker) poll(channels []notifyq.Channel) (time.Duration, error) {
	free := cap(w.sem) - len(w.sem)
	if free <= 0 {
		return w.cfg.PollInterval, nil
	}
	limit := min(w.cfg.BatchSize, free)

	records, err := w.queue.ClaimDue(w.ctx, limit, notifyq.WithClaimChannels(channels...))
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		w.sem <- struct{}{}
		w.wg.Add(1)
		go func(rec notifyq.Record) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.deliver(rec)
		}(rec)
	}

	if len(records) == limit {
		// A full batch usually means more is due.
		return 0, nil
	}
	return w.cfg.PollInterval, nil
}

func (w *Worker) claimBackoff(failures int) time.Duration {
	d := w.cfg.PollInterval
	for range failures {
		d *= 2
		if d >= w.cfg.MaxClaimBackoff {
			return w.cfg.MaxClaimBackoff
		}
	}
	return d
}

// deliver sends one claimed record and reports the outcome. Claimed records
// are always reported, even during shutdown, so they do not sit in sending
// until the lease reaper finds them.
func (w *Worker) deliver(rec notifyq.Record) {
	start := time.Now()
	log := w.logger.With(
		logger.NotificationID(rec.ID),
		logger.TenantID(rec.TenantID),
		logger.Channel(rec.Channel.String()),
	)

	sendErr := w.send(rec)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.cfg.SendTimeout)
	defer cancel()

	if sendErr == nil {
		if err := w.queue.MarkSent(ctx, rec.ID); err != nil {
			log.Error("failed to mark notification as sent", logger.Error(err))
			return
		}
		log.Debug("notification sent", logger.Duration(time.Since(start)))
		return
	}

	msg := sendErr.Error()
	if msg == "" {
		msg = "send failed"
	}
	retried, err := w.queue.RecordFailureAndMaybeRetry(ctx, rec.ID, msg)
	if err != nil {
		log.Error("failed to record delivery failure", logger.Error(err), slog.String("send_error", msg))
		return
	}
	log.Warn("notification delivery failed",
		logger.Error(sendErr),
		logger.Attempts(rec.Attempts+1),
		slog.Bool("will_retry", retried),
		logger.Duration(time.Since(start)))
}

func (w *Worker) send(rec notifyq.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSenderPanic, r)
		}
	}()

	sender, ok := w.senders[rec.Channel]
	if !ok {
		return errors.New("no sender registered for channel " + rec.Channel.String())
	}

	// Sends are not tied to the worker lifecycle so shutdown lets them finish.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.cfg.SendTimeout)
	defer cancel()

	return sender.Send(ctx, rec)
}
