package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	"github.com/leafybank/backend/internal/common/clock"
	"github.com/leafybank/backend/internal/common/events"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
	"github.com/leafybank/backend/internal/docstore"
	userdomain "github.com/leafybank/backend/internal/user/domain"
	userrepo "github.com/leafybank/backend/internal/user/repository"
)

// mockUserRepo delegates to the embedded repository unless a func is set.
type mockUserRepo struct {
	userrepo.Repository
	findOwnerFunc         func(ctx context.Context, id objectid.ID, username string) (userdomain.User, error)
	addLinkedAccountFunc  func(ctx context.Context, userID, accountID objectid.ID) error
	pullLinkedAccountFunc func(ctx context.Context, accountID objectid.ID) (int64, error)
	pullCalls             int
}

func (m *mockUserRepo) FindOwner(ctx context.Context, id objectid.ID, username string) (userdomain.User, error) {
	if m.findOwnerFunc != nil {
		return m.findOwnerFunc(ctx, id, username)
	}
	return m.Repository.FindOwner(ctx, id, username)
}

func (m *mockUserRepo) AddLinkedAccount(ctx context.Context, userID, accountID objectid.ID) error {
	if m.addLinkedAccountFunc != nil {
		return m.addLinkedAccountFunc(ctx, userID, accountID)
	}
	return m.Repository.AddLinkedAccount(ctx, userID, accountID)
}

func (m *mockUserRepo) PullLinkedAccount(ctx context.Context, accountID objectid.ID) (int64, error) {
	m.pullCalls++
	if m.pullLinkedAccountFunc != nil {
		return m.pullLinkedAccountFunc(ctx, accountID)
	}
	return m.Repository.PullLinkedAccount(ctx, accountID)
}

type mockAccountRepo struct {
	accountrepo.Repository
	listFunc   func(ctx context.Context, activeOnly bool) ([]domain.Account, error)
	closeCalls atomic.Int32
}

func (m *mockAccountRepo) Close(ctx context.Context, id objectid.ID, closedAt time.Time) (bool, error) {
	m.closeCalls.Add(1)
	return m.Repository.Close(ctx, id, closedAt)
}

func (m *mockAccountRepo) List(ctx context.Context, activeOnly bool) ([]domain.Account, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, activeOnly)
	}
	return m.Repository.List(ctx, activeOnly)
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDs) NewID() (objectid.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return objectid.ID(fmt.Sprintf("%024x", 0xa0000+g.next)), nil
}

type mockPublisher struct {
	mu          sync.Mutex
	publishFunc func(ctx context.Context, event events.AccountEvent) error
	published   []events.AccountEvent
}

func (p *mockPublisher) Publish(ctx context.Context, event events.AccountEvent) error {
	p.mu.Lock()
	p.published = append(p.published, event)
	p.mu.Unlock()
	if p.publishFunc != nil {
		return p.publishFunc(ctx, event)
	}
	return nil
}

func (p *mockPublisher) Close() error {
	return nil
}

func (p *mockPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.published))
	for _, e := range p.published {
		out = append(out, e.Type)
	}
	return out
}

var (
	fridaID = objectid.MustParse("65a546ae4a8f64e8f88fb89e")
	graceID = objectid.MustParse("66fe219d625d93a100528224")
	adaID   = objectid.MustParse("671ff0081ec726b417352702")

	testNow = time.Date(2024, 11, 2, 10, 30, 0, 0, time.UTC)
)

type fixture struct {
	svc         *AccountService
	accountDocs docstore.Collection
	userDocs    docstore.Collection
	users       *mockUserRepo
	accounts    *mockAccountRepo
	userReader  userrepo.Repository
	clock       *clock.MockClock
	events      *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := docstore.NewMemoryStore(accountrepo.Spec("accounts"), userrepo.Spec("users"))
	accountDocs := store.Collection("accounts")
	userDocs := store.Collection("users")

	realUsers := userrepo.NewDocRepository(userDocs)
	for _, u := range []userdomain.User{
		{ID: fridaID, UserName: "fridaklo"},
		{ID: graceID, UserName: "gracehop"},
		{ID: adaID, UserName: "adalove"},
	} {
		if err := realUsers.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	log, err := logger.New("", "accounts-test", "error")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	f := &fixture{
		accountDocs: accountDocs,
		userDocs:    userDocs,
		users:       &mockUserRepo{Repository: realUsers},
		accounts:    &mockAccountRepo{Repository: accountrepo.NewDocRepository(accountDocs)},
		userReader:  realUsers,
		clock:       clock.NewMockClock(testNow),
		events:      &mockPublisher{},
	}
	f.svc = NewAccountService(Deps{
		Accounts: f.accounts,
		Users:    f.users,
		IDs:      &sequenceIDs{},
		Clock:    f.clock,
		Events:   f.events,
		Log:      log,
	})
	return f
}

func (f *fixture) create(t *testing.T, owner objectid.ID, username, number string, balance float64) objectid.ID {
	t.Helper()
	id, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername:  username,
		OwnerUserID:    owner,
		AccountNumber:  number,
		InitialBalance: balance,
		AccountType:    domain.TypeChecking,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

func (f *fixture) linked(t *testing.T, userID objectid.ID) []objectid.ID {
	t.Helper()
	u, err := f.userReader.FindByRef(context.Background(), userdomain.ByID{ID: userID})
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	return u.LinkedAccounts
}

func (f *fixture) account(t *testing.T, id objectid.ID) domain.Account {
	t.Helper()
	a, err := f.accounts.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	return a
}

func containsID(ids []objectid.ID, id objectid.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
