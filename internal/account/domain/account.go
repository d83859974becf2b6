package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafybank/backend/internal/common/objectid"
)

type Status string

const (
	StatusActive Status = "Active"
	StatusClosed Status = "Closed"
)

type Type string

const (
	TypeChecking Type = "Checking"
	TypeSavings  Type = "Savings"
)

func (t Type) Valid() bool {
	return t == TypeChecking || t == TypeSavings
}

type Dates struct {
	OpeningDate time.Time  `json:"OpeningDate"`
	ClosingDate *time.Time `json:"ClosingDate,omitempty"`
}

// Owner is the owning user as recorded on the account.
type Owner struct {
	UserName string      `json:"UserName"`
	UserID   objectid.ID `json:"UserId"`
}

type Account struct {
	ID                 objectid.ID     `json:"_id"`
	AccountNumber      string          `json:"AccountNumber"`
	AccountBank        string          `json:"AccountBank"`
	AccountStatus      Status          `json:"AccountStatus"`
	IdentificationType string          `json:"AccountIdentificationType"`
	AccountDate        Dates           `json:"AccountDate"`
	AccountType        Type            `json:"AccountType"`
	AccountBalance     decimal.Decimal `json:"AccountBalance"`
	AccountCurrency    string          `json:"AccountCurrency"`
	AccountDescription string          `json:"AccountDescription"`
	AccountUser        Owner           `json:"AccountUser"`
}

func (a Account) IsActive() bool {
	return a.AccountStatus == StatusActive
}

// Description is the default description of a new account.
func Description(t Type, username string) string {
	return string(t) + " account for " + username
}

// OwnerRef selects accounts by the owner's identifier or username.
type OwnerRef interface {
	isOwnerRef()
	String() string
}

type OwnerByID struct {
	ID objectid.ID
}

type OwnerByUsername struct {
	Username string
}

func (OwnerByID) isOwnerRef()       {}
func (OwnerByUsername) isOwnerRef() {}

func (r OwnerByID) String() string       { return "id:" + r.ID.String() }
func (r OwnerByUsername) String() string { return "username:" + r.Username }

// ParseOwnerRef builds OwnerByID when identifier is a valid object id and
// OwnerByUsername otherwise.
func ParseOwnerRef(identifier string) OwnerRef {
	if id, err := objectid.Parse(identifier); err == nil {
		return OwnerByID{ID: id}
	}
	return OwnerByUsername{Username: identifier}
}
