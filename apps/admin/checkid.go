package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core/identity"
)

var errBadPrefix = errors.New("prefix must be made of 12 digits")

// checkID prints whether value is a valid national ID and, when birthDate is set, the age it gives today.
// The returned error is the first rejection found.
func (cli *commandLine) checkID(value, birthDate string) error {
	if err := identity.ValidateIdentityNumber(null.StringFrom(value)); err != nil {
		fmt.Fprintf(cli.out, "%s: %s\n", value, err.(*identity.Rejection).Message())
		return err
	}
	fmt.Fprintf(cli.out, "%s: valid\n", identity.Normalize(value))

	if birthDate == "" {
		return nil
	}
	birth, err := time.ParseInLocation("2006-01-02", birthDate, time.UTC)
	if err != nil {
		return errors.Wrap(err, "parsing birth date")
	}
	now := cli.nowFunc()
	if err := identity.ValidateBirthDate(null.TimeFrom(birth), now); err != nil {
		fmt.Fprintf(cli.out, "%s: %s\n", birthDate, err.(*identity.Rejection).Message())
		return err
	}
	fmt.Fprintf(cli.out, "age: %s\n", identity.FormatAge(identity.CalculateAge(birth, now)))
	return nil
}

func (cli *commandLine) completeID(prefix string) error {
	id, ok := identity.CompleteIdentityNumber(prefix)
	if !ok {
		return errBadPrefix
	}
	fmt.Fprintln(cli.out, id)
	return nil
}
