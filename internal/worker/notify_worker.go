package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"trialdesk/internal/domain"
	"trialdesk/internal/metrics"
	"trialdesk/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RetryPolicy defines exponential backoff parameters for delivery retries.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the delay before a given attempt (1-based), clamped to
// MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

const (
	queueKey      = "notify:queue"
	deadLetterKey = "notify:deadletter"
)

// NotifyWorker drains queued notifications to the messaging collaborator.
// Tasks go through redis when available so the queue survives restarts, with
// an in-memory channel as fallback. Failed deliveries retry with backoff and
// finally land in a dead-letter key.
type NotifyWorker struct {
	messenger    domain.Messenger
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.NotifyTask
	pollInterval time.Duration
	logger       *zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults. redisClient may be nil;
// the worker then runs purely in memory.
func NewNotifyWorker(messenger domain.Messenger, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		messenger:    messenger,
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.NotifyTask, models.WorkerQueueSize),
		pollInterval: 2 * time.Second,
		logger:       logger,
	}
}

// Enqueue schedules a task via redis or the in-memory queue.
func (w *NotifyWorker) Enqueue(ctx context.Context, task models.NotifyTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	if w.redis != nil {
		raw, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal notify task: %w", err)
		}
		if err := w.redis.LPush(ctx, queueKey, raw).Err(); err == nil {
			return nil
		} else {
			w.logger.Warn().Err(err).Msg("redis enqueue failed, using in-memory queue")
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return fmt.Errorf("notify queue is full")
	}
}

// Start runs the delivery loop until ctx is cancelled.
func (w *NotifyWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().Msg("notify worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("notify worker stopped")
			return
		case task := <-w.queue:
			w.deliver(ctx, task)
		case <-ticker.C:
			w.drainRedis(ctx)
		}
	}
}

func (w *NotifyWorker) drainRedis(ctx context.Context) {
	if w.redis == nil {
		return
	}
	for {
		raw, err := w.redis.RPop(ctx, queueKey).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			w.logger.Warn().Err(err).Msg("redis dequeue failed")
			return
		}

		var task models.NotifyTask
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			w.logger.Error().Err(err).Str("raw", raw).Msg("invalid notify task payload")
			continue
		}
		w.deliver(ctx, task)
	}
}

func (w *NotifyWorker) deliver(ctx context.Context, task models.NotifyTask) {
	for attempt := task.Attempts + 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		err := w.messenger.Send(ctx, task.Phone, task.Message)
		if err == nil {
			metrics.IncNotification("sent")
			return
		}

		w.logger.Warn().Err(err).
			Str("kind", task.Kind).
			Int64("booking_id", task.BookingID).
			Int("attempt", attempt).
			Msg("notification delivery failed")
		metrics.IncNotification("retried")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryPolicy.NextDelay(attempt)):
		}
	}

	metrics.IncNotification("dead")
	w.deadLetter(ctx, task)
}

func (w *NotifyWorker) deadLetter(ctx context.Context, task models.NotifyTask) {
	w.logger.Error().
		Str("kind", task.Kind).
		Int64("booking_id", task.BookingID).
		Msg("notification moved to dead letter")

	if w.redis == nil {
		return
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, raw).Err(); err != nil {
		w.logger.Error().Err(err).Msg("dead letter push failed")
	}
}
