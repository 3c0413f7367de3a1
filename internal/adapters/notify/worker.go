package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	notifier *Notifier
}

func NewWorker(redisURL, queue string, concurrency int, notifier *Notifier) (*Worker, error) {
	opt, err := RedisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if concurrency < 1 {
		concurrency = 5
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})
	w := &Worker{server: server, mux: asynq.NewServeMux(), notifier: notifier}
	w.mux.HandleFunc(TaskOrderNotify, w.handleOrderNotify)
	return w, nil
}

func (w *Worker) handleOrderNotify(ctx context.Context, task *asynq.Task) error {
	n, err := ParseOrderNotifyPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := w.notifier.Send(ctx, n); err != nil {
		log.Error().Err(err).Str("session_id", n.SessionID).Msg("order notification failed, will retry")
		return err
	}
	return nil
}

// Run processes tasks until ctx is done, then waits for in-flight handlers.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	log.Info().Msg("notification worker started")
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
