package service

import (
	"context"
	"errors"

	"github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	"github.com/leafybank/backend/internal/common/logger"
)

func (s *AccountService) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.list(ctx, false)
}

func (s *AccountService) GetActiveAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.list(ctx, true)
}

func (s *AccountService) list(ctx context.Context, activeOnly bool) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx, activeOnly)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"active_only": activeOnly,
			"action":      "list_accounts_failed",
		}).Errorf("list accounts failed: %v", err)
		return nil, storeError(err)
	}
	return accounts, nil
}

// GetAccountByNumber reports false when no account carries number.
func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error) {
	return s.byNumber(ctx, number, false)
}

func (s *AccountService) GetActiveAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error) {
	return s.byNumber(ctx, number, true)
}

func (s *AccountService) byNumber(ctx context.Context, number string, activeOnly bool) (domain.Account, bool, error) {
	account, err := s.accounts.FindByNumber(ctx, number, activeOnly)
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			return domain.Account{}, false, nil
		}
		s.log.WithFields(ctx, logger.Fields{
			"account_number": number,
			"active_only":    activeOnly,
			"action":         "find_account_by_number_failed",
		}).Errorf("find account by number failed: %v", err)
		return domain.Account{}, false, storeError(err)
	}
	return account, true, nil
}

func (s *AccountService) GetAccountsForUser(ctx context.Context, ref domain.OwnerRef) ([]domain.Account, error) {
	return s.forOwner(ctx, ref, false)
}

func (s *AccountService) GetActiveAccountsForUser(ctx context.Context, ref domain.OwnerRef) ([]domain.Account, error) {
	return s.forOwner(ctx, ref, true)
}

func (s *AccountService) forOwner(ctx context.Context, ref domain.OwnerRef, activeOnly bool) ([]domain.Account, error) {
	accounts, err := s.accounts.ListByOwner(ctx, ref, activeOnly)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"owner":       ref.String(),
			"active_only": activeOnly,
			"action":      "list_owner_accounts_failed",
		}).Errorf("list accounts for owner failed: %v", err)
		return nil, storeError(err)
	}
	return accounts, nil
}
