package service

import (
	"context"
	"errors"

	commonerrors "github.com/leafybank/backend/internal/common/errors"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/user/domain"
	userrepo "github.com/leafybank/backend/internal/user/repository"
)

type Service interface {
	GetUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, ref domain.Ref) (domain.User, error)
}

type UserService struct {
	repo userrepo.Repository
	log  *logger.Logger
}

func NewUserService(repo userrepo.Repository, log *logger.Logger) *UserService {
	return &UserService{
		repo: repo,
		log:  log,
	}
}

func (s *UserService) GetUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"action": "list_users_failed",
		}).Errorf("list users failed: %v", err)
		return nil, commonerrors.ErrStoreUnavailable.WithCause(err)
	}

	s.log.WithFields(ctx, logger.Fields{
		"count":  len(users),
		"action": "users_listed",
	}).Debug("users listed")
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, ref domain.Ref) (domain.User, error) {
	user, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, userrepo.ErrUserNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"user_ref": ref.String(),
				"action":   "get_user_not_found",
			}).Debug("user not found")
			return domain.User{}, commonerrors.ErrUserNotFound
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_ref": ref.String(),
			"action":   "get_user_failed",
		}).Errorf("get user failed: %v", err)
		return domain.User{}, commonerrors.ErrStoreUnavailable.WithCause(err)
	}
	return user, nil
}
