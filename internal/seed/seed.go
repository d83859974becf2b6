// Package seed loads the demo owners and accounts used in local setups.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	accountdomain "github.com/leafybank/backend/internal/account/domain"
	accountrepo "github.com/leafybank/backend/internal/account/repository"
	"github.com/leafybank/backend/internal/common/constants"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
	userdomain "github.com/leafybank/backend/internal/user/domain"
	userrepo "github.com/leafybank/backend/internal/user/repository"
)

var (
	fridaID  = objectid.MustParse("65a546ae4a8f64e8f88fb89e")
	graceID  = objectid.MustParse("66fe219d625d93a100528224")
	adaID    = objectid.MustParse("671ff0081ec726b417352702")
	claudeID = objectid.MustParse("671ff2451ec726b417352703")

	primaryCheckingID = objectid.MustParse("674dc33d4473ad1e1d4e02d0")
	savingsID         = objectid.MustParse("674dc33d4473ad1e1d4e02d1")
	oldCheckingID     = objectid.MustParse("674dc33d4473ad1e1d4e02d2")
)

// Result counts what Run inserted. Records that already exist are skipped.
type Result struct {
	UsersInserted    int
	UsersSkipped     int
	AccountsInserted int
	AccountsSkipped  int
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := date(year, month, day)
	return &d
}

func Users() []userdomain.User {
	return []userdomain.User{
		{
			ID:                 fridaID,
			UserName:           "fridaklo",
			UserEmail:          "frida.klo@gmail.com",
			UserIdentification: "IDPERSONA01",
			Name:               userdomain.Name{FirstName: "Frida", LastName: "Kahlo", NamePrefix: "Miss"},
			ResidentialStatus:  "Resident",
			CivilStatus:        "Widow",
			BirthDate:          datePtr(1907, time.July, 6),
			Nationality:        "Mexican",
			JobTitle:           "Painter",
			UserAddress: userdomain.Address{
				StreetAndNumber: "Calle de Londres 247",
				PostalCode:      "62240",
				City:            "Mexico City",
				Country:         "Mexico",
				State:           "Mexico City",
			},
			LinkedAccounts:     []objectid.ID{primaryCheckingID, savingsID, oldCheckingID},
			RecentTransactions: []json.RawMessage{},
		},
		{
			ID:                 graceID,
			UserName:           "gracehop",
			UserEmail:          "grace.hopper@gmail.com",
			UserIdentification: "IDPERSONA02",
			Name:               userdomain.Name{FirstName: "Grace", LastName: "Hopper", NamePrefix: "Madam"},
			ResidentialStatus:  "PermanentResident",
			CivilStatus:        "LegallyDivorced",
			BirthDate:          datePtr(1906, time.December, 9),
			Nationality:        "American",
			JobTitle:           "Computer Scientist",
			UserAddress: userdomain.Address{
				StreetAndNumber: "226 W 108th St",
				PostalCode:      "NY 10025",
				City:            "New York City",
				Country:         "USA",
				State:           "New York",
			},
			LinkedAccounts:     []objectid.ID{},
			RecentTransactions: []json.RawMessage{},
		},
		{
			ID:                 adaID,
			UserName:           "adalove",
			UserEmail:          "ada.lovelace@gmail.com",
			UserIdentification: "IDPERSONA03",
			Name:               userdomain.Name{FirstName: "Ada", LastName: "Lovelace", NamePrefix: "Miss"},
			ResidentialStatus:  "NonResident",
			CivilStatus:        "Single",
			BirthDate:          datePtr(1815, time.December, 10),
			Nationality:        "British",
			JobTitle:           "Mathematician",
			UserAddress: userdomain.Address{
				StreetAndNumber: "3 St James's Square",
				PostalCode:      "SW1Y 4JU",
				City:            "London",
				Country:         "UK",
				State:           "England",
			},
			LinkedAccounts:     []objectid.ID{},
			RecentTransactions: []json.RawMessage{},
		},
		{
			ID:                 claudeID,
			UserName:           "claumon",
			UserEmail:          "claude.monet@gmail.com",
			UserIdentification: "IDPERSONA04",
			Name:               userdomain.Name{FirstName: "Claude", LastName: "Monet", NamePrefix: "Mister"},
			ResidentialStatus:  "Resident",
			CivilStatus:        "Married",
			BirthDate:          datePtr(1840, time.November, 14),
			Nationality:        "French",
			JobTitle:           "Painter",
			UserAddress: userdomain.Address{
				StreetAndNumber: "45 Rue Laffitte",
				PostalCode:      "75009",
				City:            "Paris",
				Country:         "France",
				State:           "Île-de-France",
			},
			LinkedAccounts:     []objectid.ID{},
			RecentTransactions: []json.RawMessage{},
		},
	}
}

func Accounts() []accountdomain.Account {
	owner := accountdomain.Owner{UserName: "fridaklo", UserID: fridaID}
	account := func(id objectid.ID, number string, t accountdomain.Type, balance int64, description string, dates accountdomain.Dates) accountdomain.Account {
		status := accountdomain.StatusActive
		if dates.ClosingDate != nil {
			status = accountdomain.StatusClosed
		}
		return accountdomain.Account{
			ID:                 id,
			AccountNumber:      number,
			AccountBank:        constants.DefaultAccountBank,
			AccountStatus:      status,
			IdentificationType: constants.DefaultIdentificationType,
			AccountDate:        dates,
			AccountType:        t,
			AccountBalance:     decimal.NewFromInt(balance),
			AccountCurrency:    constants.DefaultAccountCurrency,
			AccountDescription: description,
			AccountUser:        owner,
		}
	}

	return []accountdomain.Account{
		account(primaryCheckingID, "1234567890", accountdomain.TypeChecking, 2500, "Primary checking account",
			accountdomain.Dates{OpeningDate: date(2023, time.January, 15)}),
		account(savingsID, "9876543210", accountdomain.TypeSavings, 5000, "High-interest savings account",
			accountdomain.Dates{OpeningDate: date(2022, time.June, 10)}),
		account(oldCheckingID, "1122334455", accountdomain.TypeChecking, 0, "Old checking account",
			accountdomain.Dates{OpeningDate: date(2020, time.March, 20), ClosingDate: datePtr(2023, time.February, 28)}),
	}
}

// Run inserts the demo users and accounts, skipping any already present.
func Run(ctx context.Context, users userrepo.Repository, accounts accountrepo.Repository, log *logger.Logger) (Result, error) {
	var res Result

	for _, u := range Users() {
		err := users.Create(ctx, u)
		switch {
		case err == nil:
			res.UsersInserted++
		case errors.Is(err, userrepo.ErrUserAlreadyExists):
			res.UsersSkipped++
		default:
			return res, fmt.Errorf("seed user %s: %w", u.UserName, err)
		}
	}

	for _, a := range Accounts() {
		err := accounts.Create(ctx, a)
		switch {
		case err == nil:
			res.AccountsInserted++
		case errors.Is(err, accountrepo.ErrDuplicateAccount):
			res.AccountsSkipped++
		default:
			return res, fmt.Errorf("seed account %s: %w", a.AccountNumber, err)
		}
	}

	log.Infof("seed finished: users inserted=%d skipped=%d, accounts inserted=%d skipped=%d",
		res.UsersInserted, res.UsersSkipped, res.AccountsInserted, res.AccountsSkipped)
	return res, nil
}
