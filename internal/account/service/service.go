package service

import (
	"context"

	"github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	"github.com/leafybank/backend/internal/common/clock"
	"github.com/leafybank/backend/internal/common/events"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
	userrepo "github.com/leafybank/backend/internal/user/repository"
)

type Service interface {
	CreateAccount(ctx context.Context, input CreateAccountInput) (objectid.ID, error)
	DeleteAccount(ctx context.Context, id objectid.ID) (bool, error)
	CloseAccount(ctx context.Context, id objectid.ID) (bool, error)
	GetAccounts(ctx context.Context) ([]domain.Account, error)
	GetActiveAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error)
	GetActiveAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error)
	GetAccountsForUser(ctx context.Context, ref domain.OwnerRef) ([]domain.Account, error)
	GetActiveAccountsForUser(ctx context.Context, ref domain.OwnerRef) ([]domain.Account, error)
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

// Deps are the collaborators of AccountService. Events may be nil.
type Deps struct {
	Accounts accountrepo.Repository
	Users    userrepo.Repository
	IDs      objectid.Generator
	Clock    clock.Clock
	Events   events.Publisher
	Log      *logger.Logger
}

// AccountService owns every write that spans the accounts and users
// collections. Accounts are authoritative; users' LinkedAccounts is an index
// kept in step on a best-effort basis and rebuilt by Reconcile.
type AccountService struct {
	accounts accountrepo.Repository
	users    userrepo.Repository
	ids      objectid.Generator
	clock    clock.Clock
	events   events.Publisher
	log      *logger.Logger
}

func NewAccountService(deps Deps) *AccountService {
	c := deps.Clock
	if c == nil {
		c = clock.NewRealClock()
	}
	ids := deps.IDs
	if ids == nil {
		ids = objectid.NewGenerator(c)
	}
	return &AccountService{
		accounts: deps.Accounts,
		users:    deps.Users,
		ids:      ids,
		clock:    c,
		events:   deps.Events,
		log:      deps.Log,
	}
}

type CreateAccountInput struct {
	OwnerUsername  string
	OwnerUserID    objectid.ID
	AccountNumber  string
	InitialBalance float64
	AccountType    domain.Type
}
