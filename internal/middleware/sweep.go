package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agency_portal_echo/internal/services"
)

type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// OpportunisticSweep expires stale pending payments before the wrapped
// handler runs, at most once per minInterval per process. A failed sweep is
// logged and the request continues. Transaction reads expire the payments
// they return themselves, so the throttle only delays expiry of rows no
// request is looking at.
func OpportunisticSweep(sweeper Sweeper, minInterval time.Duration) echo.MiddlewareFunc {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			mu.Lock()
			due := last.IsZero() || time.Since(last) >= minInterval
			if due {
				last = time.Now()
			}
			mu.Unlock()

			if due {
				if _, err := sweeper.Sweep(c.Request().Context()); err != nil {
					zap.S().Errorw("opportunistic sweep failed", "path", c.Request().URL.Path, "error", err)
				}
			}
			return next(c)
		}
	}
}
