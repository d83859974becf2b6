package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leafybank/backend/internal/account/domain"
	"github.com/leafybank/backend/internal/common/objectid"
	"github.com/leafybank/backend/internal/docstore"
)

const (
	FieldID            = "_id"
	FieldAccountNumber = "AccountNumber"
	FieldAccountStatus = "AccountStatus"
	FieldClosingDate   = "AccountDate.ClosingDate"
	FieldOwnerID       = "AccountUser.UserId"
	FieldOwnerName     = "AccountUser.UserName"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already exists")
)

// Spec declares the accounts collection with a unique AccountNumber.
func Spec(name string) docstore.CollectionSpec {
	return docstore.CollectionSpec{Name: name, Unique: []string{FieldAccountNumber}}
}

type Repository interface {
	Create(ctx context.Context, account domain.Account) error
	FindByID(ctx context.Context, id objectid.ID) (domain.Account, error)
	FindByNumber(ctx context.Context, number string, activeOnly bool) (domain.Account, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Account, error)
	ListByOwner(ctx context.Context, ref domain.OwnerRef, activeOnly bool) ([]domain.Account, error)
	Delete(ctx context.Context, id objectid.ID) (bool, error)
	Close(ctx context.Context, id objectid.ID, closedAt time.Time) (bool, error)
}

type DocRepository struct {
	accounts docstore.Collection
}

func NewDocRepository(accounts docstore.Collection) *DocRepository {
	return &DocRepository{accounts: accounts}
}

func withStatus(filter docstore.Filter, activeOnly bool) docstore.Filter {
	if !activeOnly {
		return filter
	}
	return filter.And(docstore.Eq(FieldAccountStatus, domain.StatusActive))
}

func (r *DocRepository) Create(ctx context.Context, account domain.Account) error {
	if _, err := r.accounts.InsertOne(ctx, account.ID.String(), account); err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *DocRepository) FindByID(ctx context.Context, id objectid.ID) (domain.Account, error) {
	return r.findOne(ctx, docstore.Where(docstore.Eq(FieldID, id)), "failed to find account by id")
}

func (r *DocRepository) FindByNumber(ctx context.Context, number string, activeOnly bool) (domain.Account, error) {
	filter := withStatus(docstore.Where(docstore.Eq(FieldAccountNumber, number)), activeOnly)
	return r.findOne(ctx, filter, "failed to find account by number")
}

func (r *DocRepository) findOne(ctx context.Context, filter docstore.Filter, msg string) (domain.Account, error) {
	var account domain.Account
	if err := r.accounts.FindOne(ctx, filter, &account); err != nil {
		if errors.Is(err, docstore.ErrNoDocuments) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("%s: %w", msg, err)
	}
	return account, nil
}

func (r *DocRepository) List(ctx context.Context, activeOnly bool) ([]domain.Account, error) {
	return r.find(ctx, withStatus(docstore.All(), activeOnly), "failed to list accounts")
}

func (r *DocRepository) ListByOwner(ctx context.Context, ref domain.OwnerRef, activeOnly bool) ([]domain.Account, error) {
	var filter docstore.Filter
	switch o := ref.(type) {
	case domain.OwnerByID:
		filter = docstore.Where(docstore.Eq(FieldOwnerID, o.ID))
	case domain.OwnerByUsername:
		filter = docstore.Where(docstore.Eq(FieldOwnerName, o.Username))
	default:
		return nil, fmt.Errorf("unsupported owner reference %T", ref)
	}
	return r.find(ctx, withStatus(filter, activeOnly), "failed to list accounts for owner")
}

func (r *DocRepository) find(ctx context.Context, filter docstore.Filter, msg string) ([]domain.Account, error) {
	raw, err := r.accounts.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	accounts, err := docstore.DecodeAll[domain.Account](raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return accounts, nil
}

func (r *DocRepository) Delete(ctx context.Context, id objectid.ID) (bool, error) {
	res, err := r.accounts.DeleteOne(ctx, docstore.Where(docstore.Eq(FieldID, id)))
	if err != nil {
		return false, fmt.Errorf("failed to delete account: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// Close moves an Active account to Closed and stamps the closing date. An
// account that is already Closed is left untouched and reported as false.
func (r *DocRepository) Close(ctx context.Context, id objectid.ID, closedAt time.Time) (bool, error) {
	res, err := r.accounts.UpdateOne(ctx,
		docstore.Where(docstore.Eq(FieldID, id), docstore.Eq(FieldAccountStatus, domain.StatusActive)),
		docstore.Apply(
			docstore.Set(FieldAccountStatus, domain.StatusClosed),
			docstore.Set(FieldClosingDate, closedAt),
		),
	)
	if err != nil {
		return false, fmt.Errorf("failed to close account: %w", err)
	}
	return res.ModifiedCount > 0, nil
}
