package service

import (
	"context"
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	"github.com/leafybank/backend/internal/common/constants"
	commonerrors "github.com/leafybank/backend/internal/common/errors"
	"github.com/leafybank/backend/internal/common/events"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
	userrepo "github.com/leafybank/backend/internal/user/repository"
)

// CreateAccount inserts a new Active account and then adds it to the owner's
// LinkedAccounts. The two writes are not atomic together: when linking fails
// the account already exists, so its id is returned alongside the error.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (objectid.ID, error) {
	if !input.AccountType.Valid() {
		return "", commonerrors.ErrInvalidPayload
	}
	// decimal.NewFromFloat panics on NaN and infinities.
	if math.IsNaN(input.InitialBalance) || math.IsInf(input.InitialBalance, 0) {
		return "", commonerrors.ErrInvalidPayload
	}

	owner, err := s.users.FindOwner(ctx, input.OwnerUserID, input.OwnerUsername)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"user_id":  input.OwnerUserID.String(),
				"username": input.OwnerUsername,
				"action":   "create_account_invalid_owner",
			}).Warn("create account failed: owner not found")
			return "", commonerrors.ErrInvalidOwner
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": input.OwnerUserID.String(),
			"action":  "create_account_owner_lookup_failed",
		}).Errorf("create account failed: owner lookup: %v", err)
		return "", storeError(err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return "", commonerrors.ErrInternalError.WithCause(err)
	}

	account := domain.Account{
		ID:                 id,
		AccountNumber:      input.AccountNumber,
		AccountBank:        constants.DefaultAccountBank,
		AccountStatus:      domain.StatusActive,
		IdentificationType: constants.DefaultIdentificationType,
		AccountDate:        domain.Dates{OpeningDate: s.clock.Now().UTC()},
		AccountType:        input.AccountType,
		AccountBalance:     decimal.NewFromFloat(input.InitialBalance),
		AccountCurrency:    constants.DefaultAccountCurrency,
		AccountDescription: domain.Description(input.AccountType, owner.UserName),
		AccountUser: domain.Owner{
			UserName: owner.UserName,
			UserID:   owner.ID,
		},
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, accountrepo.ErrDuplicateAccount) {
			s.log.WithFields(ctx, logger.Fields{
				"account_number": input.AccountNumber,
				"action":         "create_account_duplicate",
			}).Warn("create account failed: account number already exists")
			return "", commonerrors.ErrDuplicateAccountNumber
		}
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "create_account_insert_failed",
		}).Errorf("create account failed: insert: %v", err)
		return "", storeError(err)
	}

	if err := s.users.AddLinkedAccount(ctx, owner.ID, id); err != nil {
		incrementLinkFailures()
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"user_id":    owner.ID.String(),
			"action":     "create_account_link_failed",
		}).Errorf("account created but not linked to owner: %v", err)
		return id, storeError(err)
	}

	incrementAccountsCreated(account.AccountType)
	s.log.WithFields(ctx, logger.Fields{
		"account_id": id.String(),
		"user_id":    owner.ID.String(),
		"type":       string(account.AccountType),
		"action":     "account_created",
	}).Info("account created")

	s.publish(ctx, events.AccountCreated, id, &account)
	return id, nil
}

// DeleteAccount removes the account and then purges its id from every user's
// LinkedAccounts. It reports false without touching users when no account
// matched. A failed purge is returned as an error next to true.
func (s *AccountService) DeleteAccount(ctx context.Context, id objectid.ID) (bool, error) {
	deleted, err := s.accounts.Delete(ctx, id)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "delete_account_failed",
		}).Errorf("delete account failed: %v", err)
		return false, storeError(err)
	}
	if !deleted {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "delete_account_not_found",
		}).Info("delete account: no account matched")
		return false, nil
	}

	unlinked, err := s.users.PullLinkedAccount(ctx, id)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "delete_account_unlink_failed",
		}).Errorf("account deleted but not unlinked from users: %v", err)
		return true, storeError(err)
	}

	incrementAccountsDeleted()
	s.log.WithFields(ctx, logger.Fields{
		"account_id":     id.String(),
		"users_unlinked": unlinked,
		"action":         "account_deleted",
	}).Info("account deleted")

	s.publish(ctx, events.AccountDeleted, id, nil)
	return true, nil
}

// CloseAccount moves an Active account with a zero balance to Closed and
// reports whether this call closed it. Accounts failing a precondition are
// not written.
func (s *AccountService) CloseAccount(ctx context.Context, id objectid.ID) (bool, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			incrementCloseRejected("not_found")
			s.log.WithFields(ctx, logger.Fields{
				"account_id": id.String(),
				"action":     "close_account_not_found",
			}).Warn("close account failed: account not found")
			return false, nil
		}
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "close_account_lookup_failed",
		}).Errorf("close account failed: lookup: %v", err)
		return false, storeError(err)
	}

	if !account.AccountBalance.IsZero() {
		incrementCloseRejected("nonzero_balance")
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"balance":    account.AccountBalance.String(),
			"action":     "close_account_nonzero_balance",
		}).Warn("close account failed: balance is not zero")
		return false, nil
	}

	if !account.IsActive() {
		incrementCloseRejected("not_active")
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"status":     string(account.AccountStatus),
			"action":     "close_account_not_active",
		}).Info("close account: account is not active")
		return false, nil
	}

	closed, err := s.accounts.Close(ctx, id, s.clock.Now().UTC())
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"action":     "close_account_failed",
		}).Errorf("close account failed: %v", err)
		return false, storeError(err)
	}
	if !closed {
		incrementCloseRejected("not_modified")
		s.log.WithFields(ctx, logger.Fields{
			"account_id": id.String(),
			"status":     string(account.AccountStatus),
			"action":     "close_account_not_modified",
		}).Info("close account: no active account was modified")
		return false, nil
	}

	incrementAccountsClosed()
	s.log.WithFields(ctx, logger.Fields{
		"account_id": id.String(),
		"action":     "account_closed",
	}).Info("account closed")

	s.publish(ctx, events.AccountClosed, id, &account)
	return true, nil
}
