package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/genius-academy-api/internal/models"
	"github.com/noah-isme/genius-academy-api/pkg/cache"
	"github.com/noah-isme/genius-academy-api/pkg/jobs"
	"github.com/noah-isme/genius-academy-api/pkg/notify"
)

const relayLockKey = "notifications:relay"

type outboxRepository interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Notification, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error
}

type outboxCounter interface {
	CountByStatus(ctx context.Context) (map[models.NotificationStatus]int, error)
}

type leaseLocker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lease, error)
}

// NotificationConfig tunes the outbox relay and delivery retries.
type NotificationConfig struct {
	Workers       int
	BufferSize    int
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RelayInterval time.Duration
	RelayBatch    int
	RelayLease    time.Duration
}

// delivery is the queued unit of work. sent survives queue retries so a message is
// handed to the provider once per claim even when recording the outcome has to be retried.
type delivery struct {
	n       models.Notification
	sent    bool
	sendErr error
}

// NotificationService moves outbox rows to the email and SMS providers.
// Rows are claimed by a relay that only runs on the replica holding the redis lease,
// then delivered by the worker queue. A row whose outcome is never recorded is claimed
// again once its lease runs out, so delivery is at least once.
type NotificationService struct {
	repo    outboxRepository
	locker  leaseLocker
	mailer  notify.Mailer
	sms     notify.SMSSender
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
	config  NotificationConfig
	now     func() time.Time

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationService constructs the relay and its worker queue. locker may be nil on single-replica setups.
func NewNotificationService(repo outboxRepository, locker leaseLocker, mailer notify.Mailer, sms notify.SMSSender, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 6
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = 10 * time.Minute
	}
	if cfg.RelayInterval <= 0 {
		cfg.RelayInterval = 2 * time.Second
	}
	if cfg.RelayBatch <= 0 {
		cfg.RelayBatch = 25
	}
	if cfg.RelayLease <= 0 {
		cfg.RelayLease = time.Minute
	}
	if mailer == nil {
		mailer = notify.NewLogMailer(logger)
	}
	if sms == nil {
		sms = notify.NewLogSMSSender(logger)
	}

	s := &NotificationService{
		repo:    repo,
		locker:  locker,
		mailer:  mailer,
		sms:     sms,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		now:     time.Now,
		kick:    make(chan struct{}, 1),
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:     cfg.Workers,
		BufferSize:  cfg.BufferSize,
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		Logger:      logger,
		DeadLetter:  s.deadLetter,
	})
	return s
}

// Start launches the workers and the relay loop.
func (s *NotificationService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.queue.Start(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.RelayInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-s.kick:
			}
			if _, err := s.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("notification relay failed", zap.Error(err))
			}
			s.observeBacklog(ctx)
		}
	}()
}

// Stop halts the relay and drains the workers.
func (s *NotificationService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.queue.Stop()
}

// observeBacklog publishes outbox row counts when the repository can report them.
func (s *NotificationService) observeBacklog(ctx context.Context) {
	counter, ok := s.repo.(outboxCounter)
	if !ok || s.metrics == nil {
		return
	}
	counts, err := counter.CountByStatus(ctx)
	if err != nil {
		s.logger.Debug("outbox count failed", zap.Error(err))
		return
	}
	for _, status := range []models.NotificationStatus{models.NotificationPending, models.NotificationDelivered, models.NotificationFailed} {
		s.metrics.SetOutboxRows(string(status), counts[status])
	}
}

// Kick asks the relay to run now instead of waiting for the next tick.
func (s *NotificationService) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// RelayOnce claims due outbox rows and queues them. It returns 0 without touching the
// outbox when another replica holds the relay lease.
func (s *NotificationService) RelayOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		lease, err := s.locker.TryAcquire(ctx, relayLockKey, s.config.RelayLease)
		if err != nil {
			return 0, fmt.Errorf("acquire relay lease: %w", err)
		}
		if lease == nil {
			return 0, nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release relay lease", zap.Error(err))
			}
		}()
	}

	claimed, err := s.repo.ClaimDue(ctx, s.now().UTC(), s.config.RelayLease, s.config.RelayBatch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, n := range claimed {
		job := jobs.Job{ID: n.ID, Type: n.Channel, Payload: &delivery{n: n}}
		if !s.queue.TryEnqueue(job) {
			// Left PENDING; it is claimed again when the lease expires.
			s.logger.Warn("notification queue full", zap.String("notification_id", n.ID))
			continue
		}
		queued++
	}
	return queued, nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(*delivery)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if !d.sent {
		d.sendErr = s.send(ctx, d.n)
		d.sent = true
	}
	return s.record(ctx, d)
}

func (s *NotificationService) send(ctx context.Context, n models.Notification) error {
	if len(n.Body) == 0 {
		return fmt.Errorf("%w: empty body", notify.ErrPermanent)
	}
	switch notify.Channel(n.Channel) {
	case notify.ChannelEmail:
		var msg notify.Email
		if err := json.Unmarshal(n.Body, &msg); err != nil {
			return fmt.Errorf("%w: decode email: %v", notify.ErrPermanent, err)
		}
		return s.mailer.SendEmail(ctx, msg)
	case notify.ChannelSMS:
		var msg notify.SMS
		if err := json.Unmarshal(n.Body, &msg); err != nil {
			return fmt.Errorf("%w: decode sms: %v", notify.ErrPermanent, err)
		}
		return s.sms.SendSMS(ctx, msg)
	}
	return fmt.Errorf("%w: unknown channel %q", notify.ErrPermanent, n.Channel)
}

// record stores the outcome of the send. An error here makes the queue retry only this step.
func (s *NotificationService) record(ctx context.Context, d *delivery) error {
	n := d.n
	now := s.now().UTC()
	fields := []zap.Field{zap.String("notification_id", n.ID), zap.String("channel", n.Channel)}

	if d.sendErr == nil {
		if err := s.repo.MarkDelivered(ctx, n.ID, now); err != nil {
			return err
		}
		s.metrics.NotificationOutcome(n.Channel, "delivered")
		s.logger.Info("notification delivered", fields...)
		return nil
	}

	attempts := n.Attempts + 1
	fields = append(fields, zap.Int("attempts", attempts), zap.Error(d.sendErr))
	if errors.Is(d.sendErr, notify.ErrPermanent) || attempts >= s.config.MaxAttempts {
		if err := s.repo.MarkFailed(ctx, n.ID, attempts, d.sendErr.Error()); err != nil {
			return err
		}
		s.metrics.NotificationOutcome(n.Channel, "failed")
		s.logger.Error("notification failed", fields...)
		return nil
	}

	next := now.Add(jobs.Backoff(s.config.BaseBackoff, s.config.MaxBackoff, attempts))
	if err := s.repo.MarkRetry(ctx, n.ID, attempts, next, d.sendErr.Error()); err != nil {
		return err
	}
	s.metrics.NotificationOutcome(n.Channel, "retry")
	s.logger.Warn("notification delivery failed, will retry", append(fields, zap.Time("next_attempt_at", next))...)
	return nil
}

func (s *NotificationService) deadLetter(_ context.Context, job jobs.Job, err error) {
	s.logger.Error("notification outcome not recorded, row will be claimed again after its lease",
		zap.String("notification_id", job.ID), zap.Error(err))
}
