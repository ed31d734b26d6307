package dispatch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Channel names a notification channel
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelMessage Channel = "message"
)

// NotificationJob is one send to one recipient on one channel
type NotificationJob struct {
	Channel   Channel
	Recipient string
	Attempts  int
	send      func(ctx context.Context) error
}

// JobRunner executes notification jobs with a bounded retry policy
type JobRunner struct {
	maxAttempts int
	interval    time.Duration
	metrics     Metrics
	logger      *zap.Logger
}

// NewJobRunner creates a runner. maxAttempts below 1 means a single attempt.
func NewJobRunner(maxAttempts int, interval time.Duration, logger *zap.Logger) *JobRunner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobRunner{maxAttempts: maxAttempts, interval: interval, metrics: nopMetrics{}, logger: logger}
}

// Run executes job until it succeeds, attempts run out or ctx is done.
// The last error is returned; callers log it and carry on.
func (r *JobRunner) Run(ctx context.Context, job *NotificationJob) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), uint64(r.maxAttempts-1)),
		ctx,
	)

	operation := func() error {
		job.Attempts++
		err := job.send(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("Notification attempt failed, retrying",
			zap.String("channel", string(job.Channel)),
			zap.String("recipient", job.Recipient),
			zap.Int("attempt", job.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, policy, notify)
	r.metrics.RecordSend(ctx, string(job.Channel), err == nil, job.Attempts)
	return err
}
