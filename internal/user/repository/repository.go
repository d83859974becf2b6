package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/leafybank/backend/internal/common/objectid"
	"github.com/leafybank/backend/internal/docstore"
	"github.com/leafybank/backend/internal/user/domain"
)

const (
	FieldID             = "_id"
	FieldUserName       = "UserName"
	FieldLinkedAccounts = "LinkedAccounts"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// Spec declares the users collection with a unique UserName.
func Spec(name string) docstore.CollectionSpec {
	return docstore.CollectionSpec{Name: name, Unique: []string{FieldUserName}}
}

type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByRef(ctx context.Context, ref domain.Ref) (domain.User, error)
	FindOwner(ctx context.Context, id objectid.ID, username string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	AddLinkedAccount(ctx context.Context, userID, accountID objectid.ID) error
	PullLinkedAccount(ctx context.Context, accountID objectid.ID) (int64, error)
	RepairLinkedAccounts(ctx context.Context, userID objectid.ID, add, remove []objectid.ID) (bool, error)
}

type DocRepository struct {
	users docstore.Collection
}

func NewDocRepository(users docstore.Collection) *DocRepository {
	return &DocRepository{users: users}
}

func (r *DocRepository) Create(ctx context.Context, user domain.User) error {
	if user.LinkedAccounts == nil {
		user.LinkedAccounts = []objectid.ID{}
	}
	if _, err := r.users.InsertOne(ctx, user.ID.String(), user); err != nil {
		if errors.Is(err, docstore.ErrDuplicateKey) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func refFilter(ref domain.Ref) (docstore.Filter, error) {
	switch r := ref.(type) {
	case domain.ByID:
		return docstore.Where(docstore.Eq(FieldID, r.ID)), nil
	case domain.ByUsername:
		return docstore.Where(docstore.Eq(FieldUserName, r.Username)), nil
	default:
		return docstore.Filter{}, fmt.Errorf("unsupported user reference %T", ref)
	}
}

func (r *DocRepository) FindByRef(ctx context.Context, ref domain.Ref) (domain.User, error) {
	filter, err := refFilter(ref)
	if err != nil {
		return domain.User{}, err
	}
	return r.findOne(ctx, filter, "failed to find user")
}

// FindOwner matches on both identifier and username.
func (r *DocRepository) FindOwner(ctx context.Context, id objectid.ID, username string) (domain.User, error) {
	filter := docstore.Where(docstore.Eq(FieldID, id), docstore.Eq(FieldUserName, username))
	return r.findOne(ctx, filter, "failed to find owner")
}

func (r *DocRepository) findOne(ctx context.Context, filter docstore.Filter, msg string) (domain.User, error) {
	var user domain.User
	if err := r.users.FindOne(ctx, filter, &user); err != nil {
		if errors.Is(err, docstore.ErrNoDocuments) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("%s: %w", msg, err)
	}
	return user, nil
}

func (r *DocRepository) List(ctx context.Context) ([]domain.User, error) {
	raw, err := r.users.Find(ctx, docstore.All())
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users, err := docstore.DecodeAll[domain.User](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *DocRepository) AddLinkedAccount(ctx context.Context, userID, accountID objectid.ID) error {
	res, err := r.users.UpdateOne(ctx,
		docstore.Where(docstore.Eq(FieldID, userID)),
		docstore.Apply(docstore.AddToSet(FieldLinkedAccounts, accountID)),
	)
	if err != nil {
		return fmt.Errorf("failed to link account: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PullLinkedAccount removes accountID from every user that lists it and
// returns how many users changed.
func (r *DocRepository) PullLinkedAccount(ctx context.Context, accountID objectid.ID) (int64, error) {
	res, err := r.users.UpdateMany(ctx,
		docstore.Where(docstore.Contains(FieldLinkedAccounts, accountID)),
		docstore.Apply(docstore.Pull(FieldLinkedAccounts, accountID)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink account: %w", err)
	}
	return res.ModifiedCount, nil
}

// RepairLinkedAccounts pulls remove and adds add to the user's LinkedAccounts
// in one update. Ids linked or unlinked by other writers in the meantime are
// left alone.
func (r *DocRepository) RepairLinkedAccounts(ctx context.Context, userID objectid.ID, add, remove []objectid.ID) (bool, error) {
	ops := make([]docstore.Operation, 0, len(add)+len(remove))
	for _, id := range remove {
		ops = append(ops, docstore.Pull(FieldLinkedAccounts, id))
	}
	for _, id := range add {
		ops = append(ops, docstore.AddToSet(FieldLinkedAccounts, id))
	}
	if len(ops) == 0 {
		return false, nil
	}

	res, err := r.users.UpdateOne(ctx,
		docstore.Where(docstore.Eq(FieldID, userID)),
		docstore.Apply(ops...),
	)
	if err != nil {
		return false, fmt.Errorf("failed to repair linked accounts: %w", err)
	}
	return res.ModifiedCount > 0, nil
}
