// Package identity validates the identifying data of a student record:
// Thai national ID numbers, birth dates, phone numbers and the consistency
// of identities across a student and their siblings.
//
// Every function is pure: the current time is passed in and nothing is read
// from or written to the outside world.
package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/volatiletech/null/v8"
)

// Length is the number of digits of a national ID number.
const Length = 13

const nationalIDField = "national_id"

// Normalize strips whitespace and hyphens from value.
func Normalize(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}

// ValidateIdentityNumber checks that value is a well formed national ID number with a valid check digit.
// Whitespace and hyphens are ignored.
func ValidateIdentityNumber(value null.String) error {
	if !value.Valid {
		return reject(EmptyOrMissing, nationalIDField)
	}
	digits := Normalize(value.String)
	if digits == "" {
		return reject(EmptyOrMissing, nationalIDField)
	}
	if utf8.RuneCountInString(digits) != Length {
		return reject(WrongLength, nationalIDField)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return reject(NonNumeric, nationalIDField)
		}
	}
	if int(digits[Length-1]-'0') != checkDigit(digits[:Length-1]) {
		return reject(ChecksumMismatch, nationalIDField)
	}
	return nil
}

// checkDigit computes the mod 11 check digit of the 12 leading digits.
func checkDigit(prefix string) int {
	var sum int
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (Length - i)
	}
	return (11 - sum%11) % 10
}

// CompleteIdentityNumber appends the check digit to a 12 digit prefix.
// It returns false when prefix is not made of 12 decimal digits.
func CompleteIdentityNumber(prefix string) (string, bool) {
	prefix = Normalize(prefix)
	if len(prefix) != Length-1 {
		return "", false
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] < '0' || prefix[i] > '9' {
			return "", false
		}
	}
	return prefix + string(rune('0'+checkDigit(prefix))), true
}
