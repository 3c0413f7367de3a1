package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/domain"
)

// InlineDispatcher sends in a goroutine detached from the triggering request.
type InlineDispatcher struct {
	Notifier *Notifier
	Timeout  time.Duration

	wg sync.WaitGroup
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, n domain.OrderNotification) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := d.Notifier.Send(sctx, n); err != nil {
			log.Error().Err(err).Str("session_id", n.SessionID).Msg("order notification failed")
		}
	}()
	return nil
}

// Wait blocks until in-flight sends finish.
func (d *InlineDispatcher) Wait() { d.wg.Wait() }

// AsynqDispatcher enqueues notifications for cmd/printshop-worker.
type AsynqDispatcher struct {
	client *asynq.Client
	queue  string
}

func NewAsynqDispatcher(redisURL, queue string) (*AsynqDispatcher, error) {
	opt, err := RedisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &AsynqDispatcher{client: asynq.NewClient(opt), queue: queue}, nil
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, n domain.OrderNotification) error {
	task, err := NewOrderNotifyTask(n)
	if err != nil {
		return err
	}
	// one task per session; a redelivered dispatch is a no-op
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.MaxRetry(8),
		asynq.TaskID(taskID(n)),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (d *AsynqDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func taskID(n domain.OrderNotification) string {
	if n.FulfillmentFailed {
		return "notify-failed:" + n.SessionID
	}
	return "notify:" + n.SessionID
}
