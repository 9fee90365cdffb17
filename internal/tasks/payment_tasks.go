package tasks

import (
	"context"

	"gorm.io/gorm"

	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
)

const (
	ExpirePaymentsTaskName = "expire_payments"
	// ExpirePaymentsRule runs the sweep every five minutes.
	ExpirePaymentsRule = "FREQ=MINUTELY;INTERVAL=5"
)

// Sweeper expires stale pending payments.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// ExpirePaymentsTaskDef is the periodic form of the opportunistic sweep.
type ExpirePaymentsTaskDef struct {
	sweeper Sweeper
}

func NewExpirePaymentsTask(sweeper Sweeper) *ExpirePaymentsTaskDef {
	return &ExpirePaymentsTaskDef{sweeper: sweeper}
}

func (t *ExpirePaymentsTaskDef) TaskID() string {
	return ExpirePaymentsTaskName
}

func (t *ExpirePaymentsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	res, err := t.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"scanned": res.Scanned,
		"expired": res.Expired,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	}, nil
}
