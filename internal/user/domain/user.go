package domain

import (
	"encoding/json"
	"time"

	"github.com/leafybank/backend/internal/common/objectid"
)

type Name struct {
	FirstName  string `json:"FirstName"`
	LastName   string `json:"LastName"`
	NamePrefix string `json:"NamePrefix,omitempty"`
}

type Address struct {
	StreetAndNumber string `json:"StreetAndNumber"`
	PostalCode      string `json:"PostalCode"`
	City            string `json:"City"`
	Country         string `json:"Country"`
	State           string `json:"State,omitempty"`
}

// User is the owner record. LinkedAccounts mirrors the accounts that name this
// user as owner and may briefly diverge from them.
type User struct {
	ID                 objectid.ID       `json:"_id"`
	UserName           string            `json:"UserName"`
	UserEmail          string            `json:"UserEmail,omitempty"`
	UserIdentification string            `json:"UserIdentification,omitempty"`
	Name               Name              `json:"Name"`
	ResidentialStatus  string            `json:"ResidentialStatus,omitempty"`
	CivilStatus        string            `json:"CivilStatus,omitempty"`
	BirthDate          *time.Time        `json:"BirthDate,omitempty"`
	Nationality        string            `json:"Nationality,omitempty"`
	JobTitle           string            `json:"JobTitle,omitempty"`
	UserAddress        Address           `json:"UserAddress"`
	LinkedAccounts     []objectid.ID     `json:"LinkedAccounts"`
	RecentTransactions []json.RawMessage `json:"RecentTransactions"`
}

// Ref selects a user either by identifier or by username.
type Ref interface {
	isUserRef()
	String() string
}

type ByID struct {
	ID objectid.ID
}

type ByUsername struct {
	Username string
}

func (ByID) isUserRef()       {}
func (ByUsername) isUserRef() {}

func (r ByID) String() string       { return "id:" + r.ID.String() }
func (r ByUsername) String() string { return "username:" + r.Username }

// ParseRef builds ByID when identifier is a valid object id and ByUsername
// otherwise.
func ParseRef(identifier string) Ref {
	if id, err := objectid.Parse(identifier); err == nil {
		return ByID{ID: id}
	}
	return ByUsername{Username: identifier}
}
