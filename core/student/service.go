package student

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/identity"
)

var (
	// errors
	ErrNotFound          = errors.New("student not found")
	ErrNationalIDExists  = errors.New("a student with this national ID already exists")
	ErrStudentCodeExists = errors.New("a student with this student code already exists")

	// DefaultOrdering is the roster order: by grade, then section, then name.
	DefaultOrdering = []core.DBOrdering{
		{Field: "grade", Ascending: true},
		{Field: "section", Ascending: true},
		{Field: "first_name", Ascending: true},
		{Field: "last_name", Ascending: true},
	}

	// OrderingFields maps the accepted `ordering` values to their column.
	OrderingFields = map[string]string{
		"grade":        "grade",
		"section":      "section",
		"first_name":   "first_name",
		"last_name":    "last_name",
		"student_code": "student_code",
		"national_id":  "national_id",
		"created_at":   "created_at",
		"updated_at":   "updated_at",
	}
)

type (
	Repository interface {
		// IdentityIndex returns the students holding any of the given national IDs.
		IdentityIndex(ctx context.Context, nationalIDs ...string) (identity.Index, error)
		// StudentCodeTaken reports whether a student other than exceptID holds code.
		StudentCodeTaken(ctx context.Context, code string, exceptID null.String) (bool, error)
		// CreateStudent inserts the student and its siblings.
		// It returns ErrNationalIDExists or ErrStudentCodeExists on a unique violation.
		CreateStudent(ctx context.Context, s Student) (Student, error)
		// UpdateStudent saves every field of the student except its siblings.
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// ReplaceSiblings deletes all the siblings of the student then inserts the given ones.
		ReplaceSiblings(ctx context.Context, studentID string, siblings []Sibling) ([]Sibling, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of first name, last name, national ID or student code.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		QuerySiblings(ctx context.Context, studentIDs ...string) ([]Sibling, error)
		CountStudentsByGrade(ctx context.Context, filter *QueryFilter) (map[int]int, error)
		DistinctSections(ctx context.Context, grade int) ([]string, error)
		DistinctGrades(ctx context.Context) ([]int, error)
		DeleteStudentsByID(ctx context.Context, ids ...string) error
		// RunInTx runs fn within a transaction. The repository passed to fn is bound to that transaction.
		RunInTx(ctx context.Context, fn func(repo Repository) error) error
	}

	ServiceInterface interface {
		Validate(ctx context.Context, ns NewStudent, editingID null.String) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		ReplaceSiblings(ctx context.Context, id string, nss NewSiblings) ([]Sibling, error)
		Get(ctx context.Context, id string) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Siblings(ctx context.Context, id string) ([]Sibling, error)
		Delete(ctx context.Context, ids ...string) error
		Sections(ctx context.Context, grade int) ([]string, error)
		Grades(ctx context.Context) ([]int, error)
		Stats(ctx context.Context, filter *QueryFilter) (Stats, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// WithClock replaces the clock used to validate birth dates and stamp records.
func (svc *Service) WithClock(now func() time.Time) *Service {
	svc.nowFunc = now
	return svc
}

// Rejection returns the identity rejection carried by err, if any.
func Rejection(err error) (*identity.Rejection, bool) {
	var rej *identity.Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func rejectionError(rej *identity.Rejection) error {
	return core.NewValidationError(rej, core.FieldError{Field: rej.Field, Error: rej.Message()})
}

// checkIdentities runs the identity validators over the record in field order and stops at the first rejection.
func checkIdentities(ns *NewStudent, now time.Time) error {
	if err := identity.ValidateIdentityNumber(ns.NationalID); err != nil {
		return err.(*identity.Rejection).At("national_id")
	}
	if ns.BirthDate.Valid {
		if err := identity.ValidateBirthDate(parseDate(ns.BirthDate), now); err != nil {
			return err.(*identity.Rejection).At("birth_date")
		}
	}
	for _, p := range []struct {
		name   string
		parent *NewParent
	}{{"father", ns.Father}, {"mother", ns.Mother}} {
		if p.parent == nil {
			continue
		}
		if p.parent.NationalID.Valid {
			if err := identity.ValidateIdentityNumber(p.parent.NationalID); err != nil {
				return err.(*identity.Rejection).At(p.name + ".national_id")
			}
		}
		if p.parent.BirthDate.Valid {
			if err := identity.ValidateBirthDate(parseDate(p.parent.BirthDate), now); err != nil {
				return err.(*identity.Rejection).At(p.name + ".birth_date")
			}
		}
		if err := identity.ValidatePhoneNumber(p.parent.Phone); err != nil {
			return err.(*identity.Rejection).At(p.name + ".phone")
		}
	}
	return checkSiblingIdentities(ns.Siblings, now)
}

func checkSiblingIdentities(siblings []NewSibling, now time.Time) error {
	for i, sib := range siblings {
		if err := identity.ValidateIdentityNumber(sib.NationalID); err != nil {
			return err.(*identity.Rejection).At(fmt.Sprintf("siblings[%d].national_id", i))
		}
		if err := identity.ValidateBirthDate(parseDate(sib.BirthDate), now); err != nil {
			return err.(*identity.Rejection).At(fmt.Sprintf("siblings[%d].birth_date", i))
		}
	}
	return nil
}

// checkConsistency looks for identity collisions against the students currently persisted.
func (svc *Service) checkConsistency(ctx context.Context, repo Repository, nationalID string, siblingIDs []string, editingID null.String) error {
	index, err := repo.IdentityIndex(ctx, nationalID)
	if err != nil {
		return errors.Wrap(err, "loading identity index")
	}
	candidates := make([]identity.Candidate, 0, len(siblingIDs))
	for _, id := range siblingIDs {
		candidates = append(candidates, identity.Candidate{IdentityNumber: id})
	}
	if err := identity.CheckRecordConsistency(identity.Candidate{IdentityNumber: nationalID}, candidates, index, editingID); err != nil {
		return rejectionError(err.(*identity.Rejection))
	}
	return nil
}

func studentCodeError() error {
	return core.NewValidationError(ErrStudentCodeExists, core.FieldError{Field: "student_code", Error: ErrStudentCodeExists.Error()})
}

// checkStudentCode rejects a student code already held by another student.
func (svc *Service) checkStudentCode(ctx context.Context, repo Repository, code, editingID null.String) error {
	if !code.Valid {
		return nil
	}
	taken, err := repo.StudentCodeTaken(ctx, code.String, editingID)
	if err != nil {
		return errors.Wrap(err, "checking student code")
	}
	if taken {
		return studentCodeError()
	}
	return nil
}

func (svc *Service) validateRecord(ns *NewStudent) error {
	ns.clean()
	if err := svc.validate.Struct(ns); err != nil {
		return err
	}
	if rej := checkIdentities(ns, svc.nowFunc()); rej != nil {
		return rejectionError(rej.(*identity.Rejection))
	}
	return nil
}

// Validate runs every check of Create (or of Update when editingID is set) without writing anything.
func (svc *Service) Validate(ctx context.Context, ns NewStudent, editingID null.String) error {
	if err := svc.validateRecord(&ns); err != nil {
		return err
	}
	siblingIDs := newSiblingIDs(ns.Siblings)
	if ns.Siblings == nil && editingID.Valid {
		current, err := svc.repo.QuerySiblings(ctx, editingID.String)
		if err != nil {
			return errors.Wrap(err, "querying siblings")
		}
		siblingIDs = siblingIDs[:0]
		for _, sib := range current {
			siblingIDs = append(siblingIDs, sib.NationalID)
		}
	}
	if err := svc.checkConsistency(ctx, svc.repo, identity.Normalize(ns.NationalID.String), siblingIDs, editingID); err != nil {
		return err
	}
	return svc.checkStudentCode(ctx, svc.repo, ns.StudentCode, editingID)
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.validateRecord(&ns); err != nil {
		return Student{}, err
	}

	now := svc.nowFunc().UTC()
	s := ns.student()
	s.NationalID = identity.Normalize(s.NationalID)
	s.Siblings = newSiblings(ns.Siblings, now)
	s.CreatedAt = now
	s.UpdatedAt = now

	var created Student
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		if err := svc.checkConsistency(ctx, repo, s.NationalID, siblingNationalIDs(s.Siblings), null.String{}); err != nil {
			return err
		}
		if err := svc.checkStudentCode(ctx, repo, s.StudentCode, null.String{}); err != nil {
			return err
		}
		var err error
		created, err = repo.CreateStudent(ctx, s)
		return err
	})
	if err != nil {
		return Student{}, svc.trapUniqueErr(err, "creating student")
	}
	return created, nil
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	ns := NewStudent(us)
	if err := svc.validateRecord(&ns); err != nil {
		return Student{}, err
	}

	now := svc.nowFunc().UTC()
	s := ns.student()
	s.ID = id
	s.NationalID = identity.Normalize(s.NationalID)
	s.UpdatedAt = now

	var updated Student
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		orig, err := repo.GetStudent(ctx, id)
		if err != nil {
			return err
		}
		s.CreatedAt = orig.CreatedAt

		siblings := orig.Siblings
		if ns.Siblings != nil {
			siblings = newSiblings(ns.Siblings, now)
		}
		if err = svc.checkConsistency(ctx, repo, s.NationalID, siblingNationalIDs(siblings), null.StringFrom(id)); err != nil {
			return err
		}
		if err = svc.checkStudentCode(ctx, repo, s.StudentCode, null.StringFrom(id)); err != nil {
			return err
		}

		if updated, err = repo.UpdateStudent(ctx, s); err != nil {
			return err
		}
		if ns.Siblings != nil {
			siblings, err = repo.ReplaceSiblings(ctx, id, siblings)
			if err != nil {
				return err
			}
		}
		updated.Siblings = siblings
		return nil
	})
	if err != nil {
		return Student{}, svc.trapUniqueErr(err, "updating student")
	}
	return updated, nil
}

// ReplaceSiblings swaps the whole sibling list of a student.
func (svc *Service) ReplaceSiblings(ctx context.Context, id string, nss NewSiblings) ([]Sibling, error) {
	for i := range nss.Siblings {
		nss.Siblings[i].clean()
	}
	if nss.Siblings == nil {
		nss.Siblings = []NewSibling{}
	}
	if err := svc.validate.Struct(nss); err != nil {
		return nil, err
	}
	now := svc.nowFunc()
	if rej := checkSiblingIdentities(nss.Siblings, now); rej != nil {
		return nil, rejectionError(rej.(*identity.Rejection))
	}

	siblings := newSiblings(nss.Siblings, now.UTC())
	var replaced []Sibling
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		s, err := repo.GetStudent(ctx, id)
		if err != nil {
			return err
		}
		if err = svc.checkConsistency(ctx, repo, s.NationalID, siblingNationalIDs(siblings), null.StringFrom(id)); err != nil {
			return err
		}
		replaced, err = repo.ReplaceSiblings(ctx, id, siblings)
		return err
	})
	if err != nil {
		return nil, svc.trapUniqueErr(err, "replacing siblings")
	}
	return replaced, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	ordering = core.FilterOrderings(ordering, OrderingFields)
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) Siblings(ctx context.Context, id string) ([]Sibling, error) {
	if _, err := svc.repo.GetStudent(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QuerySiblings(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids...)
}

// Sections lists the distinct sections in use, within grade when it is not 0.
func (svc *Service) Sections(ctx context.Context, grade int) ([]string, error) {
	return svc.repo.DistinctSections(ctx, grade)
}

func (svc *Service) Grades(ctx context.Context) ([]int, error) {
	return svc.repo.DistinctGrades(ctx)
}

func (svc *Service) Stats(ctx context.Context, filter *QueryFilter) (Stats, error) {
	counts, err := svc.repo.CountStudentsByGrade(ctx, filter)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting students")
	}
	stats := Stats{ByGrade: counts}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// trapUniqueErr maps a unique violation that raced past the consistency check onto its rejection.
func (svc *Service) trapUniqueErr(err error, msg string) error {
	if errors.Cause(err) == ErrNationalIDExists {
		svc.logger.Warn("national ID unique violation after consistency check", err)
		return rejectionError(&identity.Rejection{Reason: identity.DuplicateStudentIdentity, Field: "national_id"})
	}
	if errors.Cause(err) == ErrStudentCodeExists {
		svc.logger.Warn("student code unique violation after check", err)
		return studentCodeError()
	}
	if _, ok := errors.Cause(err).(*core.ValidationError); ok {
		return err
	}
	if errors.Cause(err) == ErrNotFound {
		return err
	}
	return errors.Wrap(err, msg)
}

func newSiblings(nss []NewSibling, now time.Time) []Sibling {
	siblings := make([]Sibling, 0, len(nss))
	for _, ns := range nss {
		siblings = append(siblings, Sibling{
			NationalID:     identity.Normalize(ns.NationalID.String),
			FirstName:      ns.FirstName,
			LastName:       ns.LastName,
			BirthDate:      parseDate(ns.BirthDate).Time,
			EducationLevel: ns.EducationLevel,
			CreatedAt:      now,
		})
	}
	return siblings
}

func newSiblingIDs(nss []NewSibling) []string {
	ids := make([]string, 0, len(nss))
	for _, ns := range nss {
		ids = append(ids, ns.NationalID.String)
	}
	return ids
}

func siblingNationalIDs(siblings []Sibling) []string {
	ids := make([]string, 0, len(siblings))
	for _, sib := range siblings {
		ids = append(ids, sib.NationalID)
	}
	return ids
}
