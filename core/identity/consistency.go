package identity

import (
	"fmt"

	"github.com/volatiletech/null/v8"
)

// Candidate is an identity proposed for a record that is about to be written.
type Candidate struct {
	IdentityNumber string
}

// Index maps the normalized national ID of persisted students to their record ID.
type Index map[string]string

// NewIndex builds an Index from (identity number, record ID) pairs.
func NewIndex(pairs ...[2]string) Index {
	idx := make(Index, len(pairs))
	for _, p := range pairs {
		idx.Add(p[0], p[1])
	}
	return idx
}

// Add registers the record holding identityNumber.
func (idx Index) Add(identityNumber, recordID string) {
	idx[Normalize(identityNumber)] = recordID
}

// Owner returns the record holding identityNumber, if any.
func (idx Index) Owner(identityNumber string) (string, bool) {
	id, ok := idx[Normalize(identityNumber)]
	return id, ok
}

// CheckRecordConsistency looks for identity collisions between a student, their siblings and the
// students already persisted. editingID is the record being edited, absent on creation.
// The checks stop at the first failure, in this order:
//   - the student's identity belongs to another persisted student
//   - a sibling shares the student's identity, lowest sibling first
//   - two siblings share an identity, lowest pair first
func CheckRecordConsistency(student Candidate, siblings []Candidate, existing Index, editingID null.String) error {
	studentID := Normalize(student.IdentityNumber)

	if owner, ok := existing.Owner(studentID); ok {
		if !editingID.Valid || owner != editingID.String {
			return reject(DuplicateStudentIdentity, nationalIDField)
		}
	}

	normalized := make([]string, len(siblings))
	for i, sib := range siblings {
		normalized[i] = Normalize(sib.IdentityNumber)
		if normalized[i] == studentID {
			return &Rejection{
				Reason: SiblingMatchesStudent,
				Field:  siblingField(i),
				Index:  i,
			}
		}
	}

	for i := 0; i < len(normalized); i++ {
		for j := i + 1; j < len(normalized); j++ {
			if normalized[i] == normalized[j] {
				return &Rejection{
					Reason:     SiblingsCollide,
					Field:      siblingField(j),
					Index:      i,
					OtherIndex: j,
				}
			}
		}
	}
	return nil
}

func siblingField(i int) string {
	return fmt.Sprintf("siblings[%d].%s", i, nationalIDField)
}
