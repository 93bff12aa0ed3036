package queue

import (
	"context"
	"errors"
	"time"

	"cafe-pos/internal/logger"
	"cafe-pos/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// enqueueAttempts bounds retries of a ticket transaction that lost a race
// for the sequence row or the active-number index.
const enqueueAttempts = 3

// Notifier receives queue changes after they are committed. Delivery is best
// effort: the engine logs and ignores notifier errors.
type Notifier interface {
	QueueChanged(ctx context.Context, e Event) error
}

// Service is the preparation queue engine.
type Service interface {
	Enqueue(ctx context.Context, orderID uuid.UUID, t PreparationType) (*Entry, error)
	MarkReady(ctx context.Context, id uuid.UUID) (*Entry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (*Entry, error)
	RecomputeEstimates(ctx context.Context, t PreparationType) (int, error)
	ListActiveEntries(ctx context.Context, t PreparationType) ([]*Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
}

type service struct {
	repo     Repository
	kitchen  Kitchen
	notifier Notifier
	metrics  *metrics.Queue
	now      func() time.Time
}

type Option func(*service)

func WithKitchen(k Kitchen) Option {
	return func(s *service) { s.kitchen = k }
}

func WithNotifier(n Notifier) Option {
	return func(s *service) { s.notifier = n }
}

func WithMetrics(m *metrics.Queue) Option {
	return func(s *service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a queue engine over repo.
func NewService(repo Repository, opts ...Option) Service {
	s := &service{
		repo:    repo,
		kitchen: DefaultKitchen(),
		metrics: &metrics.Queue{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue issues the next ticket of type t for an order and persists it as
// pending with its estimated wait.
func (s *service) Enqueue(ctx context.Context, orderID uuid.UUID, t PreparationType) (*Entry, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Enqueue"),
		zap.String("order_id", orderID.String()),
		zap.String("preparation_type", string(t)),
	)
	log.Info("Enqueue started")

	if !t.Valid() {
		log.Warn("Enqueue validation failed: invalid preparation type")
		return nil, ErrInvalidPreparationType
	}

	timer := metrics.StartTimer()

	units, err := s.repo.CountOrderUnits(ctx, orderID, t)
	if err != nil {
		log.Error("failed to count order units", zap.Error(err))
		return nil, err
	}
	if units == 0 {
		log.Warn("Enqueue validation failed: nothing to prepare")
		return nil, ErrNothingToPrepare
	}

	var entry *Entry
	for attempt := 1; ; attempt++ {
		entry, err = s.issueTicket(ctx, orderID, t)
		if err == nil {
			break
		}

		if !errors.Is(err, ErrQueueNumberConflict) || attempt >= enqueueAttempts {
			s.metrics.Failures.Inc()
			log.Error("failed to issue ticket", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}

		s.metrics.Conflicts.Inc()
		log.Warn("ticket conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}

	s.metrics.Enqueued.Inc()
	s.publish(ctx, Event{
		Type:            EventEnqueued,
		PreparationType: t,
		EntryID:         &entry.ID,
		QueueNumber:     &entry.QueueNumber,
		Status:          entry.Status,
		OccurredAt:      entry.CreatedAt,
	})

	log.Info("Enqueue success",
		zap.String("entry_id", entry.ID.String()),
		zap.Int("queue_number", entry.QueueNumber),
		zap.Int("estimated_time", entry.EstimatedTime),
		zap.Int("units", units),
		zap.Duration("duration", timer.Duration()),
	)
	return entry, nil
}

// issueTicket runs number assignment, estimation and insert in one
// transaction holding the sequence row lock for t.
func (s *service) issueTicket(ctx context.Context, orderID uuid.UUID, t PreparationType) (*Entry, error) {
	var entry *Entry

	err := s.repo.WithTx(ctx, func(tx Tx) error {
		last, err := tx.LockLastNumber(ctx, t)
		if err != nil {
			return err
		}

		number, err := nextFreeNumber(ctx, tx, t, last)
		if err != nil {
			return err
		}

		active, err := tx.CountActiveUnits(ctx, t)
		if err != nil {
			return err
		}

		estimate, err := s.kitchen.EstimateAtPosition(t, active)
		if err != nil {
			return err
		}

		e := &Entry{
			ID:              uuid.New(),
			OrderID:         orderID,
			QueueNumber:     number,
			PreparationType: t,
			EstimatedTime:   estimate,
			Status:          StatusPending,
			CreatedAt:       s.now(),
		}

		if err := tx.InsertEntry(ctx, e); err != nil {
			return err
		}
		if err := tx.SaveLastNumber(ctx, t, e.QueueNumber); err != nil {
			return err
		}

		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// nextFreeNumber walks the sequence from last, skipping numbers still held by
// pending or ready entries of t, so a ticket left undelivered after the wrap
// does not block the type.
func nextFreeNumber(ctx context.Context, tx Tx, t PreparationType, last *int) (int, error) {
	number := NextQueueNumber(last)
	for i := 0; i < MaxQueueNumber+1; i++ {
		inUse, err := tx.NumberInUse(ctx, t, number)
		if err != nil {
			return 0, err
		}
		if !inUse {
			return number, nil
		}
		number = NextQueueNumber(&number)
	}
	return 0, ErrQueueFull
}

func (s *service) MarkReady(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, "MarkReady", id, StatusPending, StatusReady)
}

func (s *service) MarkDelivered(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, "MarkDelivered", id, StatusReady, StatusDelivered)
}

func (s *service) transition(
	ctx context.Context,
	method string,
	id uuid.UUID,
	from, to Status,
) (*Entry, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", method),
		zap.String("entry_id", id.String()),
	)
	log.Info(method + " started")

	entry, err := s.repo.UpdateStatus(ctx, id, from, to, s.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrEntryNotFound):
			log.Warn("queue entry not found")
		case errors.Is(err, ErrInvalidTransition):
			log.Warn("invalid queue status transition", zap.Error(err))
		default:
			s.metrics.Failures.Inc()
			log.Error("failed to update queue entry status", zap.Error(err))
		}
		return nil, err
	}

	eventType := EventReady
	occurredAt := entry.ReadyAt
	if to == StatusDelivered {
		eventType = EventDelivered
		occurredAt = entry.DeliveredAt
		s.metrics.Delivered.Inc()
	} else {
		s.metrics.Ready.Inc()
	}

	event := Event{
		Type:            eventType,
		PreparationType: entry.PreparationType,
		EntryID:         &entry.ID,
		QueueNumber:     &entry.QueueNumber,
		Status:          entry.Status,
		OccurredAt:      s.now(),
	}
	if occurredAt != nil {
		event.OccurredAt = *occurredAt
	}
	s.publish(ctx, event)

	// A stale estimate is corrected by the next pass, so the transition stands.
	if _, err := s.RecomputeEstimates(ctx, entry.PreparationType); err != nil {
		log.Warn("recompute after transition failed", zap.Error(err))
	}

	log.Info(method+" success",
		zap.Int("queue_number", entry.QueueNumber),
		zap.String("status", string(entry.Status)),
	)
	return entry, nil
}

// RecomputeEstimates re-derives the estimate of every pending entry of type t
// from its FIFO position and returns how many estimates changed.
func (s *service) RecomputeEstimates(ctx context.Context, t PreparationType) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RecomputeEstimates"),
		zap.String("preparation_type", string(t)),
	)

	if !t.Valid() {
		return 0, ErrInvalidPreparationType
	}

	pending, err := s.repo.ListEntries(ctx, t, []Status{StatusPending})
	if err != nil {
		log.Error("failed to list pending entries", zap.Error(err))
		return 0, err
	}

	updated := 0
	for i, e := range pending {
		estimate, err := s.kitchen.EstimateAtPosition(t, i)
		if err != nil {
			return updated, err
		}
		if estimate == e.EstimatedTime {
			continue
		}

		if err := s.repo.UpdateEstimatedTime(ctx, e.ID, estimate); err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				continue
			}
			log.Error("failed to update estimated time",
				zap.String("entry_id", e.ID.String()),
				zap.Error(err),
			)
			return updated, err
		}

		e.EstimatedTime = estimate
		updated++
	}

	s.metrics.Recomputes.Inc()
	s.metrics.EstimatesUpdated.Add(uint64(updated))

	if updated > 0 {
		s.publish(ctx, Event{
			Type:            EventRecomputed,
			PreparationType: t,
			Updated:         updated,
			OccurredAt:      s.now(),
		})
	}

	log.Debug("RecomputeEstimates success",
		zap.Int("pending", len(pending)),
		zap.Int("updated", updated),
	)
	return updated, nil
}

// ListActiveEntries returns pending and ready entries of type t, oldest first.
func (s *service) ListActiveEntries(ctx context.Context, t PreparationType) ([]*Entry, error) {
	if !t.Valid() {
		return nil, ErrInvalidPreparationType
	}

	entries, err := s.repo.ListEntries(ctx, t, ActiveStatuses)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list active entries",
			zap.String("preparation_type", string(t)),
			zap.Error(err),
		)
		return nil, err
	}
	return entries, nil
}

func (s *service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *service) publish(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.QueueChanged(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish queue event",
			zap.String("event", string(e.Type)),
			zap.Error(err),
		)
	}
}
