package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/sourcing/internal/domain/shared"
	"github.com/erp/sourcing/internal/domain/sourcing"
	"go.uber.org/zap"
)

// ObjectDeleter removes stored artifact objects
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// AttachmentSweeperConfig holds configuration for the preview attachment sweeper
type AttachmentSweeperConfig struct {
	// Enabled determines if the sweeper is active
	Enabled bool

	// Interval is the time between sweeps
	Interval time.Duration

	// GracePeriod is how long a preview attachment is kept before it is swept
	GracePeriod time.Duration

	// BatchSize caps the attachments removed per sweep
	BatchSize int

	// SweepTimeout is the maximum time for a single sweep
	SweepTimeout time.Duration
}

// DefaultAttachmentSweeperConfig returns default configuration
func DefaultAttachmentSweeperConfig() AttachmentSweeperConfig {
	return AttachmentSweeperConfig{
		Enabled:      true,
		Interval:     time.Hour,
		GracePeriod:  24 * time.Hour,
		BatchSize:    100,
		SweepTimeout: 5 * time.Minute,
	}
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
}

// AttachmentSweeper periodically deletes preview artifacts that never
// became part of a dispatch batch.
type AttachmentSweeper struct {
	attachments sourcing.AttachmentRepository
	storage     ObjectDeleter
	logger      *zap.Logger
	config      AttachmentSweeperConfig
	now         func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewAttachmentSweeper creates a new attachment sweeper
func NewAttachmentSweeper(
	attachments sourcing.AttachmentRepository,
	storage ObjectDeleter,
	logger *zap.Logger,
	config AttachmentSweeperConfig,
) *AttachmentSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultAttachmentSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = defaults.GracePeriod
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &AttachmentSweeper{
		attachments: attachments,
		storage:     storage,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// Start starts the sweep loop
func (s *AttachmentSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Attachment sweeper is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Attachment sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("grace_period", s.config.GracePeriod),
	)
	return nil
}

// Stop gracefully stops the sweeper
func (s *AttachmentSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Attachment sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Attachment sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the sweeper is running
func (s *AttachmentSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerImmediateSweep runs one sweep in the background
func (s *AttachmentSweeper) TriggerImmediateSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.executeSweep(ctx)
	}()
	return nil
}

func (s *AttachmentSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Attachment sweep loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

func (s *AttachmentSweeper) executeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.Sweep(sweepCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Attachment sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	if result.Scanned == 0 {
		return
	}
	s.logger.Info("Attachment sweep completed",
		zap.Duration("duration", duration),
		zap.Int("scanned", result.Scanned),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
	)
}

// Sweep deletes one batch of expired preview attachments. The stored object
// goes first so a failed record delete is retried on the next sweep.
func (s *AttachmentSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := s.now().Add(-s.config.GracePeriod)
	expired, err := s.attachments.FindUnreferencedOlderThan(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(expired)}
	for i := range expired {
		a := &expired[i]
		if !a.IsPreview() {
			continue
		}
		if err := s.storage.Delete(ctx, a.StorageKey); err != nil {
			result.Failed++
			s.logger.Warn("Failed to delete preview object",
				zap.String("attachment_id", a.ID.String()),
				zap.String("storage_key", a.StorageKey),
				zap.Error(err),
			)
			continue
		}
		if err := s.attachments.Delete(ctx, a.ID); err != nil && !errors.Is(err, shared.ErrNotFound) {
			result.Failed++
			s.logger.Warn("Failed to delete preview attachment record",
				zap.String("attachment_id", a.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Deleted++
	}
	return result, nil
}
