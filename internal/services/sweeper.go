package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
)

const defaultSweepBatch = 200

type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ExpirationSweeper expires pending payments that are past expiresAt.
type ExpirationSweeper struct {
	db     *gorm.DB
	store  *PaymentStore
	events EventPublisher
	now    func() time.Time
	batch  int
}

func NewExpirationSweeper(db *gorm.DB, events EventPublisher) *ExpirationSweeper {
	if events == nil {
		events = LogPublisher{}
	}
	return &ExpirationSweeper{
		db:     db,
		store:  NewPaymentStore(db),
		events: events,
		now:    time.Now,
		batch:  defaultSweepBatch,
	}
}

func (s *ExpirationSweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep expires every stale pending payment together with its transaction.
// Payments are read in id order, one batch at a time, until a short batch
// comes back. Each payment is its own database transaction, so one failure
// is logged and skipped without stopping the rest, and the id cursor keeps
// a failing row from being picked again in the same pass. A payment that
// left pending between the scan and the update is skipped, which keeps
// repeated sweeps free of further changes.
func (s *ExpirationSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	var cursor uint
	for {
		payments, err := s.store.FindExpiredPending(ctx, now, cursor, s.batch)
		if err != nil {
			return result, err
		}
		result.Scanned += len(payments)

		for i := range payments {
			p := payments[i]
			cursor = p.ID
			s.expire(ctx, p, now, &result)
		}

		if s.batch <= 0 || len(payments) < s.batch {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	if result.Scanned > 0 {
		zap.S().Infow("expiration sweep finished",
			"scanned", result.Scanned,
			"expired", result.Expired,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

func (s *ExpirationSweeper) expire(ctx context.Context, p models.Payment, now time.Time, result *SweepResult) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionTx(tx, &p, models.StatusPending, models.StatusExpired, now)
	})
	switch {
	case errors.Is(err, errStatusMoved):
		result.Skipped++
	case err != nil:
		result.Failed++
		zap.S().Errorw("failed to expire payment",
			"payment_id", p.ID,
			"order_id", p.OrderID,
			"error", err,
		)
	default:
		result.Expired++
		announce(ctx, s.db, s.events, p, models.StatusPending, models.StatusExpired, SourceSweeper, now)
	}
}
