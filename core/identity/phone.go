package identity

import (
	"regexp"

	"github.com/volatiletech/null/v8"
)

const phoneField = "phone"

var phoneRegex = regexp.MustCompile(`^(\+66|66|0)[0-9]{8,9}$`)

// ValidatePhoneNumber checks the shape of a Thai phone number. A missing or empty number is valid.
func ValidatePhoneNumber(value null.String) error {
	if !value.Valid {
		return nil
	}
	phone := Normalize(value.String)
	if phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(phone) {
		return reject(BadPhoneFormat, phoneField)
	}
	return nil
}
