package identity

import "fmt"

// Reason tells why a value or a record was rejected.
type Reason int

const (
	EmptyOrMissing Reason = iota + 1
	WrongLength
	NonNumeric
	ChecksumMismatch
	MissingDate
	FutureDate
	ImplausibleAge
	BadPhoneFormat
	DuplicateStudentIdentity
	SiblingMatchesStudent
	SiblingsCollide
)

var reasonNames = map[Reason]string{
	EmptyOrMissing:           "EmptyOrMissing",
	WrongLength:              "WrongLength",
	NonNumeric:               "NonNumeric",
	ChecksumMismatch:         "ChecksumMismatch",
	MissingDate:              "MissingDate",
	FutureDate:               "FutureDate",
	ImplausibleAge:           "ImplausibleAge",
	BadPhoneFormat:           "BadPhoneFormat",
	DuplicateStudentIdentity: "DuplicateStudentIdentity",
	SiblingMatchesStudent:    "SiblingMatchesStudent",
	SiblingsCollide:          "SiblingsCollide",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Rejection is the error returned by every validator of this package.
// Index and OtherIndex are zero-based sibling positions, only meaningful for sibling reasons.
type Rejection struct {
	Reason     Reason
	Field      string
	Index      int
	OtherIndex int
}

func (r *Rejection) Error() string {
	return r.Field + ": " + r.Message()
}

// Message returns the user facing text of the rejection.
func (r *Rejection) Message() string {
	switch r.Reason {
	case EmptyOrMissing:
		return "national ID is required"
	case WrongLength:
		return fmt.Sprintf("national ID must have %d digits", Length)
	case NonNumeric:
		return "national ID must contain digits only"
	case ChecksumMismatch:
		return "national ID is invalid"
	case MissingDate:
		return "birth date is required"
	case FutureDate:
		return "birth date cannot be in the future"
	case ImplausibleAge:
		return "birth date is not plausible"
	case BadPhoneFormat:
		return "invalid phone number format"
	case DuplicateStudentIdentity:
		return "a student with this national ID already exists"
	case SiblingMatchesStudent:
		return fmt.Sprintf("sibling #%d has the same national ID as the student", r.Index+1)
	case SiblingsCollide:
		return fmt.Sprintf("siblings #%d and #%d have the same national ID", r.Index+1, r.OtherIndex+1)
	default:
		return r.Reason.String()
	}
}

// At returns a copy of the rejection reported on field.
func (r *Rejection) At(field string) *Rejection {
	cp := *r
	cp.Field = field
	return &cp
}

func reject(reason Reason, field string) *Rejection {
	return &Rejection{Reason: reason, Field: field}
}
