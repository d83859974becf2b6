package reconcile

import (
	"context"
	"time"

	accountservice "github.com/leafybank/backend/internal/account/service"
	"github.com/leafybank/backend/internal/common/logger"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (accountservice.ReconcileReport, error)
}

// Start runs r every interval until ctx is done. Each run is bounded by
// timeout when it is positive.
func Start(ctx context.Context, r Reconciler, interval, timeout time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, r, timeout, log)
		}
	}
}

func runOnce(ctx context.Context, r Reconciler, timeout time.Duration, log *logger.Logger) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := r.Reconcile(runCtx)
	if err != nil {
		log.Errorf("linked accounts reconcile failed: %v", err)
		return
	}
	if report.UsersRepaired > 0 || len(report.OrphanAccounts) > 0 {
		log.Infof("linked accounts reconcile: repaired %d of %d users, %d orphan accounts",
			report.UsersRepaired, report.UsersScanned, len(report.OrphanAccounts))
	}
}
