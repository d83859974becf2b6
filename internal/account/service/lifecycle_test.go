package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	commonerrors "github.com/leafybank/backend/internal/common/errors"
	"github.com/leafybank/backend/internal/common/events"
	"github.com/leafybank/backend/internal/common/objectid"
	"github.com/leafybank/backend/internal/docstore"
	userdomain "github.com/leafybank/backend/internal/user/domain"
	userrepo "github.com/leafybank/backend/internal/user/repository"
)

func setBalance(t *testing.T, f *fixture, id objectid.ID, balance decimal.Decimal) {
	t.Helper()
	_, err := f.accountDocs.UpdateOne(context.Background(),
		docstore.Where(docstore.Eq(accountrepo.FieldID, id)),
		docstore.Apply(docstore.Set("AccountBalance", balance)),
	)
	if err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

func TestAccountLifecycle_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1 := f.create(t, fridaID, "fridaklo", "123", 100.0)

	accounts, err := f.svc.GetAccountsForUser(ctx, domain.OwnerByID{ID: fridaID})
	if err != nil {
		t.Fatalf("get accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != a1 {
		t.Fatalf("expected [a1], got %+v", accounts)
	}

	closed, err := f.svc.CloseAccount(ctx, a1)
	if err != nil || closed {
		t.Fatalf("close with balance 100: got %v, %v", closed, err)
	}

	setBalance(t, f, a1, decimal.Zero)

	closed, err = f.svc.CloseAccount(ctx, a1)
	if err != nil || !closed {
		t.Fatalf("close with zero balance: got %v, %v", closed, err)
	}
	account := f.account(t, a1)
	if account.AccountStatus != domain.StatusClosed {
		t.Errorf("expected Closed, got %s", account.AccountStatus)
	}
	if account.AccountDate.ClosingDate == nil || !account.AccountDate.ClosingDate.Equal(testNow) {
		t.Errorf("expected closing date %v, got %v", testNow, account.AccountDate.ClosingDate)
	}

	deleted, err := f.svc.DeleteAccount(ctx, a1)
	if err != nil || !deleted {
		t.Fatalf("delete: got %v, %v", deleted, err)
	}

	accounts, err = f.svc.GetAccountsForUser(ctx, domain.OwnerByID{ID: fridaID})
	if err != nil {
		t.Fatalf("get accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected no accounts, got %+v", accounts)
	}
	if len(f.linked(t, fridaID)) != 0 {
		t.Errorf("expected empty LinkedAccounts, got %v", f.linked(t, fridaID))
	}
}

func TestCreateAccount_Defaults(t *testing.T) {
	f := newFixture(t)

	id, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername:  "gracehop",
		OwnerUserID:    graceID,
		AccountNumber:  "555",
		InitialBalance: 250.75,
		AccountType:    domain.TypeSavings,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := f.account(t, id)
	if a.AccountStatus != domain.StatusActive {
		t.Errorf("expected Active, got %s", a.AccountStatus)
	}
	if a.AccountBank != "LeafyBank" || a.AccountCurrency != "EUR" || a.IdentificationType != "AccountNumber" {
		t.Errorf("unexpected defaults: %+v", a)
	}
	if a.AccountDescription != "Savings account for gracehop" {
		t.Errorf("unexpected description %q", a.AccountDescription)
	}
	if !a.AccountDate.OpeningDate.Equal(testNow) || a.AccountDate.ClosingDate != nil {
		t.Errorf("unexpected dates: %+v", a.AccountDate)
	}
	if !a.AccountBalance.Equal(decimal.RequireFromString("250.75")) {
		t.Errorf("unexpected balance %s", a.AccountBalance)
	}
	if a.AccountUser.UserID != graceID || a.AccountUser.UserName != "gracehop" {
		t.Errorf("unexpected owner: %+v", a.AccountUser)
	}
}

func TestCreateAccount_LinksOnlyOwner(t *testing.T) {
	f := newFixture(t)

	id := f.create(t, fridaID, "fridaklo", "111", 10)

	if got := f.linked(t, fridaID); len(got) != 1 || got[0] != id {
		t.Errorf("owner links: %v", got)
	}
	for _, other := range []objectid.ID{graceID, adaID} {
		if containsID(f.linked(t, other), id) {
			t.Errorf("account linked to non-owner %s", other)
		}
	}
}

func TestCreateAccount_InvalidOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		userID   objectid.ID
	}{
		{name: "username of another user", username: "gracehop", userID: fridaID},
		{name: "unknown id", username: "fridaklo", userID: objectid.MustParse("000000000000000000000001")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAccount(ctx, CreateAccountInput{
				OwnerUsername: tt.username,
				OwnerUserID:   tt.userID,
				AccountNumber: "999",
				AccountType:   domain.TypeChecking,
			})
			if !errors.Is(err, commonerrors.ErrInvalidOwner) {
				t.Fatalf("expected ErrInvalidOwner, got %v", err)
			}
		})
	}

	all, err := f.svc.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("get accounts: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("no account may be written, got %d", len(all))
	}
}

func TestCreateAccount_StoresBalanceAsGiven(t *testing.T) {
	f := newFixture(t)

	id := f.create(t, fridaID, "fridaklo", "112", -5.25)

	if got := f.account(t, id).AccountBalance; !got.Equal(decimal.RequireFromString("-5.25")) {
		t.Errorf("expected -5.25, got %s", got)
	}
}

func TestCreateAccount_DuplicateNumber(t *testing.T) {
	f := newFixture(t)
	f.create(t, fridaID, "fridaklo", "200", 0)

	_, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername: "gracehop",
		OwnerUserID:   graceID,
		AccountNumber: "200",
		AccountType:   domain.TypeChecking,
	})
	if !errors.Is(err, commonerrors.ErrDuplicateAccountNumber) {
		t.Fatalf("expected ErrDuplicateAccountNumber, got %v", err)
	}
	if len(f.linked(t, graceID)) != 0 {
		t.Error("duplicate must not be linked")
	}
}

func TestCreateAccount_InvalidType(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername: "fridaklo",
		OwnerUserID:   fridaID,
		AccountNumber: "300",
		AccountType:   domain.Type("Brokerage"),
	})
	if !errors.Is(err, commonerrors.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestCreateAccount_NonFiniteBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
	}{
		{name: "NaN", balance: math.NaN()},
		{name: "positive infinity", balance: math.Inf(1)},
		{name: "negative infinity", balance: math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
				OwnerUsername:  "fridaklo",
				OwnerUserID:    fridaID,
				AccountNumber:  "310",
				InitialBalance: tt.balance,
				AccountType:    domain.TypeChecking,
			})
			if !errors.Is(err, commonerrors.ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			if n, _ := f.accountDocs.Count(context.Background(), docstore.All()); n != 0 {
				t.Errorf("no account may be stored, found %d", n)
			}
		})
	}
}

func TestCreateAccount_LinkFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.users.addLinkedAccountFunc = func(context.Context, objectid.ID, objectid.ID) error {
		return errors.New("connection reset")
	}

	id, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername: "fridaklo",
		OwnerUserID:   fridaID,
		AccountNumber: "400",
		AccountType:   domain.TypeChecking,
	})
	if !errors.Is(err, commonerrors.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if id.IsZero() {
		t.Fatal("expected the created id to be returned")
	}

	if f.account(t, id).AccountStatus != domain.StatusActive {
		t.Error("account must remain after link failure")
	}
	if len(f.linked(t, fridaID)) != 0 {
		t.Error("account must not be linked")
	}
	if len(f.events.published) != 0 {
		t.Error("no event expected after a failed create")
	}
}

func TestCreateAccount_OwnerLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.users.findOwnerFunc = func(context.Context, objectid.ID, string) (userdomain.User, error) {
		return userdomain.User{}, errors.New("connection refused")
	}

	_, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername: "fridaklo",
		OwnerUserID:   fridaID,
		AccountNumber: "401",
		AccountType:   domain.TypeChecking,
	})
	if !errors.Is(err, commonerrors.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestDeleteAccount_PurgesEveryUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, fridaID, "fridaklo", "500", 0)

	if err := f.userReader.AddLinkedAccount(ctx, graceID, id); err != nil {
		t.Fatalf("link stray: %v", err)
	}
	if err := f.userReader.AddLinkedAccount(ctx, adaID, id); err != nil {
		t.Fatalf("link stray: %v", err)
	}

	deleted, err := f.svc.DeleteAccount(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("delete: %v, %v", deleted, err)
	}

	for _, u := range []objectid.ID{fridaID, graceID, adaID} {
		if containsID(f.linked(t, u), id) {
			t.Errorf("user %s still links deleted account", u)
		}
	}
	if _, err := f.accounts.FindByID(ctx, id); !errors.Is(err, accountrepo.ErrAccountNotFound) {
		t.Errorf("expected account to be gone, got %v", err)
	}
}

func TestDeleteAccount_MissingAccountWritesNothing(t *testing.T) {
	f := newFixture(t)

	deleted, err := f.svc.DeleteAccount(context.Background(), objectid.MustParse("aaaaaaaaaaaaaaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatal("expected false for a missing account")
	}
	if f.users.pullCalls != 0 {
		t.Errorf("expected no user writes, got %d", f.users.pullCalls)
	}
	if len(f.events.published) != 0 {
		t.Error("no event expected")
	}
}

func TestDeleteAccount_ClosedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, fridaID, "fridaklo", "501", 0)

	if closed, err := f.svc.CloseAccount(ctx, id); err != nil || !closed {
		t.Fatalf("close: %v, %v", closed, err)
	}
	deleted, err := f.svc.DeleteAccount(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("delete closed: %v, %v", deleted, err)
	}
}

func TestDeleteAccount_UnlinkFailure(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, fridaID, "fridaklo", "502", 0)
	f.users.pullLinkedAccountFunc = func(context.Context, objectid.ID) (int64, error) {
		return 0, errors.New("timeout")
	}

	deleted, err := f.svc.DeleteAccount(context.Background(), id)
	if !deleted {
		t.Error("account delete must still be reported")
	}
	if !errors.Is(err, commonerrors.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCloseAccount_SecondCallReportsFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, fridaID, "fridaklo", "600", 0)

	first, err := f.svc.CloseAccount(ctx, id)
	if err != nil || !first {
		t.Fatalf("first close: %v, %v", first, err)
	}

	f.clock.Advance(time.Hour)
	second, err := f.svc.CloseAccount(ctx, id)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if second {
		t.Error("second close must report false")
	}
	if n := f.accounts.closeCalls.Load(); n != 1 {
		t.Errorf("a closed account must not be written again, got %d close writes", n)
	}

	a := f.account(t, id)
	if a.AccountStatus != domain.StatusClosed {
		t.Errorf("expected Closed, got %s", a.AccountStatus)
	}
	if a.AccountDate.ClosingDate == nil || !a.AccountDate.ClosingDate.Equal(testNow) {
		t.Errorf("closing date must keep the first close, got %v", a.AccountDate.ClosingDate)
	}
}

func TestCloseAccount_NonZeroBalance(t *testing.T) {
	for _, balance := range []string{"0.01", "100", "-0.01", "-42.5"} {
		t.Run(balance, func(t *testing.T) {
			f := newFixture(t)
			id := f.create(t, fridaID, "fridaklo", "700", 0)
			setBalance(t, f, id, decimal.RequireFromString(balance))

			closed, err := f.svc.CloseAccount(context.Background(), id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if closed {
				t.Fatal("expected false")
			}
			a := f.account(t, id)
			if a.AccountStatus != domain.StatusActive || a.AccountDate.ClosingDate != nil {
				t.Errorf("account must be unchanged: %+v", a)
			}
		})
	}
}

func TestCloseAccount_NotFound(t *testing.T) {
	f := newFixture(t)

	closed, err := f.svc.CloseAccount(context.Background(), objectid.MustParse("bbbbbbbbbbbbbbbbbbbbbbbb"))
	if err != nil || closed {
		t.Fatalf("expected false without error, got %v, %v", closed, err)
	}
}

func TestCloseAccount_ConcurrentClosersSucceedOnce(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, fridaID, "fridaklo", "800", 0)

	const closers = 8
	results := make(chan bool, closers)
	for i := 0; i < closers; i++ {
		go func() {
			closed, err := f.svc.CloseAccount(context.Background(), id)
			if err != nil {
				t.Errorf("close: %v", err)
			}
			results <- closed
		}()
	}

	wins := 0
	for i := 0; i < closers; i++ {
		if <-results {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful close, got %d", wins)
	}
}

func TestLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, fridaID, "fridaklo", "900", 0)
	if _, err := f.svc.CloseAccount(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.svc.DeleteAccount(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := f.events.types()
	want := []events.Type{events.AccountCreated, events.AccountClosed, events.AccountDeleted}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if f.events.published[0].OwnerID != fridaID.String() || f.events.published[0].AccountNumber != "900" {
		t.Errorf("unexpected created event: %+v", f.events.published[0])
	}
}

func TestLifecycleEvents_PublishFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.events.publishFunc = func(context.Context, events.AccountEvent) error {
		return errors.New("broker down")
	}

	id, err := f.svc.CreateAccount(context.Background(), CreateAccountInput{
		OwnerUsername: "fridaklo",
		OwnerUserID:   fridaID,
		AccountNumber: "901",
		AccountType:   domain.TypeChecking,
	})
	if err != nil || id.IsZero() {
		t.Fatalf("create must succeed despite publish failure: %v", err)
	}
}

func TestNewAccountService_NilEvents(t *testing.T) {
	f := newFixture(t)
	f.svc.events = nil

	f.create(t, fridaID, "fridaklo", "902", 0)
}

var _ userrepo.Repository = (*mockUserRepo)(nil)
