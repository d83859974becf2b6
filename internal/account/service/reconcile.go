package service

import (
	"context"
	"errors"

	accountrepo "github.com/leafybank/backend/internal/account/repository"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
)

type ReconcileReport struct {
	UsersScanned   int           `json:"users_scanned"`
	UsersRepaired  int           `json:"users_repaired"`
	LinksAdded     int           `json:"links_added"`
	LinksRemoved   int           `json:"links_removed"`
	OrphanAccounts []objectid.ID `json:"orphan_accounts"`
}

// Reconcile rebuilds every user's LinkedAccounts from the owner recorded on
// the accounts. Users are read before accounts so that an account created
// during the pass is either already linked or absent from both reads. Drift
// is repaired with per-id pulls and adds, never a full overwrite, so links
// written concurrently survive. Accounts whose owner no longer exists are
// reported as orphans.
func (s *AccountService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{OrphanAccounts: []objectid.ID{}}

	users, err := s.users.List(ctx)
	if err != nil {
		incrementReconcileRuns("failure")
		return report, storeError(err)
	}
	accounts, err := s.accounts.List(ctx, false)
	if err != nil {
		incrementReconcileRuns("failure")
		return report, storeError(err)
	}

	owned := make(map[objectid.ID][]objectid.ID)
	known := make(map[objectid.ID]struct{}, len(users))
	for _, u := range users {
		known[u.ID] = struct{}{}
	}
	for _, a := range accounts {
		ownerID := a.AccountUser.UserID
		if _, ok := known[ownerID]; !ok {
			report.OrphanAccounts = append(report.OrphanAccounts, a.ID)
			continue
		}
		owned[ownerID] = append(owned[ownerID], a.ID)
	}

	for _, u := range users {
		report.UsersScanned++

		add, remove := diffLinks(u.LinkedAccounts, owned[u.ID])
		if len(add) == 0 && len(remove) == 0 {
			continue
		}

		changed, err := s.users.RepairLinkedAccounts(ctx, u.ID, add, remove)
		if err != nil {
			return s.reconcileFailed(ctx, report, u.ID, err)
		}
		if !changed {
			continue
		}

		// An account deleted after the list was read must not stay linked.
		// Its delete sweep either ran after the repair or the account is
		// already gone here.
		added := len(add)
		for _, id := range add {
			_, err := s.accounts.FindByID(ctx, id)
			if err == nil {
				continue
			}
			if !errors.Is(err, accountrepo.ErrAccountNotFound) {
				return s.reconcileFailed(ctx, report, u.ID, err)
			}
			if _, err := s.users.PullLinkedAccount(ctx, id); err != nil {
				return s.reconcileFailed(ctx, report, u.ID, err)
			}
			added--
			s.log.WithFields(ctx, logger.Fields{
				"user_id":    u.ID.String(),
				"account_id": id.String(),
				"action":     "reconcile_link_withdrawn",
			}).Warn("account deleted during reconcile, link withdrawn")
		}

		report.UsersRepaired++
		report.LinksAdded += added
		report.LinksRemoved += len(remove)
		s.log.WithFields(ctx, logger.Fields{
			"user_id": u.ID.String(),
			"added":   added,
			"removed": len(remove),
			"action":  "linked_accounts_repaired",
		}).Info("linked accounts repaired")
	}

	addLinkedAccountsRepaired(report.UsersRepaired)
	incrementReconcileRuns("success")
	s.log.WithFields(ctx, logger.Fields{
		"users_scanned":  report.UsersScanned,
		"users_repaired": report.UsersRepaired,
		"orphans":        len(report.OrphanAccounts),
		"action":         "reconcile_completed",
	}).Info("linked accounts reconciled")
	return report, nil
}

func (s *AccountService) reconcileFailed(ctx context.Context, report ReconcileReport, userID objectid.ID, err error) (ReconcileReport, error) {
	incrementReconcileRuns("failure")
	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID.String(),
		"action":  "reconcile_user_failed",
	}).Errorf("reconcile linked accounts failed: %v", err)
	return report, storeError(err)
}

// diffLinks returns the ids of want missing from have, in want order, and
// the ids of have missing from want, treating both as sets.
func diffLinks(have, want []objectid.ID) (add, remove []objectid.ID) {
	haveSet := make(map[objectid.ID]struct{}, len(have))
	for _, id := range have {
		haveSet[id] = struct{}{}
	}
	wantSet := make(map[objectid.ID]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
		if _, ok := haveSet[id]; !ok {
			add = append(add, id)
		}
	}
	for id := range haveSet {
		if _, ok := wantSet[id]; !ok {
			remove = append(remove, id)
		}
	}
	return add, remove
}
