package gojob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-integrations/core"
)

// SweepService is the slice of the integrations service the queue
// worker drives.
type SweepService interface {
	RefreshSweepOnce(ctx context.Context) (core.RefreshSweepResult, error)
}

// SweepWorker consumes refresh sweep deliveries and runs one sweep per
// message. Unknown job IDs are dead-lettered instead of retried.
type SweepWorker struct {
	dequeuer core.JobDequeuer
	service  SweepService
	policy   RetryPolicy
	delay    time.Duration
}

func NewSweepWorker(dequeuer core.JobDequeuer, service SweepService, policy RetryPolicy) *SweepWorker {
	return &SweepWorker{
		dequeuer: dequeuer,
		service:  service,
		policy:   policy,
		delay:    5 * time.Second,
	}
}

// Run consumes deliveries until the context is canceled.
func (w *SweepWorker) Run(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.service == nil {
		return fmt.Errorf("gojob: sweep worker requires a dequeuer and a service")
	}
	for {
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.delay):
				continue
			}
		}
		if err := w.handle(ctx, delivery); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (w *SweepWorker) handle(ctx context.Context, delivery core.JobDelivery) error {
	if delivery == nil {
		return nil
	}
	message := delivery.Message()
	if message == nil || message.JobID != JobIDRefreshSweep {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "unexpected job id",
		})
	}
	if _, err := w.service.RefreshSweepOnce(ctx); err != nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			Requeue: true,
			Delay:   w.delay,
			Reason:  err.Error(),
		})
	}
	return delivery.Ack(ctx)
}
