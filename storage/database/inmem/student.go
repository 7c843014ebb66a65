package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/identity"
	"github.com/MC-tan/school-database-app/core/student"
)

type studentRepository struct {
	db   *DB
	inTx bool
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func copyStudent(s student.Student) student.Student {
	if s.Father != nil {
		f := *s.Father
		s.Father = &f
	}
	if s.Mother != nil {
		m := *s.Mother
		s.Mother = &m
	}
	if s.Siblings != nil {
		s.Siblings = append([]student.Sibling{}, s.Siblings...)
	}
	return s
}

// write runs fn holding the write locks. Within a transaction the transaction lock is already held.
func (repo *studentRepository) write(fn func() error) error {
	if !repo.inTx {
		repo.db.txMutex.Lock()
		defer repo.db.txMutex.Unlock()
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return fn()
}

func (repo *studentRepository) RunInTx(ctx context.Context, fn func(repo student.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	repo.db.txMutex.Lock()
	defer repo.db.txMutex.Unlock()

	repo.db.mutex.RLock()
	snapshot := make(map[string]student.Student, len(repo.db.students))
	for id, s := range repo.db.students {
		snapshot[id] = copyStudent(s)
	}
	repo.db.mutex.RUnlock()

	if err := fn(&studentRepository{db: repo.db, inTx: true}); err != nil {
		repo.db.mutex.Lock()
		repo.db.students = snapshot
		repo.db.mutex.Unlock()
		return err
	}
	return nil
}

func (repo *studentRepository) IdentityIndex(_ context.Context, nationalIDs ...string) (identity.Index, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(nationalIDs))
	for _, id := range nationalIDs {
		wanted[identity.Normalize(id)] = true
	}
	index := identity.NewIndex()
	for _, s := range repo.db.students {
		if wanted[s.NationalID] {
			index.Add(s.NationalID, s.ID)
		}
	}
	return index, nil
}

// nationalIDTaken reports whether another student holds nationalID. The caller holds the lock.
func (repo *studentRepository) nationalIDTaken(nationalID, exceptID string) bool {
	for _, s := range repo.db.students {
		if s.NationalID == nationalID && s.ID != exceptID {
			return true
		}
	}
	return false
}

// studentCodeTaken reports whether another student holds code. The caller holds the lock.
func (repo *studentRepository) studentCodeTaken(code null.String, exceptID string) bool {
	if !code.Valid {
		return false
	}
	for _, s := range repo.db.students {
		if s.StudentCode.Valid && s.StudentCode.String == code.String && s.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *studentRepository) StudentCodeTaken(_ context.Context, code string, exceptID null.String) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.studentCodeTaken(null.StringFrom(code), exceptID.String), nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student) (student.Student, error) {
	err := repo.write(func() error {
		if repo.nationalIDTaken(s.NationalID, "") {
			return student.ErrNationalIDExists
		}
		if repo.studentCodeTaken(s.StudentCode, "") {
			return student.ErrStudentCodeExists
		}
		s.ID = uuid.New().String()
		s.Siblings = bindSiblings(s.ID, s.Siblings)
		repo.db.students[s.ID] = copyStudent(s)
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	return copyStudent(s), nil
}

func bindSiblings(studentID string, siblings []student.Sibling) []student.Sibling {
	bound := make([]student.Sibling, 0, len(siblings))
	for _, sib := range siblings {
		sib.ID = uuid.New().String()
		sib.StudentID = studentID
		bound = append(bound, sib)
	}
	return bound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student) (student.Student, error) {
	err := repo.write(func() error {
		orig, ok := repo.db.students[s.ID]
		if !ok {
			return student.ErrNotFound
		}
		if repo.nationalIDTaken(s.NationalID, s.ID) {
			return student.ErrNationalIDExists
		}
		if repo.studentCodeTaken(s.StudentCode, s.ID) {
			return student.ErrStudentCodeExists
		}
		saved := copyStudent(s)
		saved.CreatedAt = orig.CreatedAt
		saved.Siblings = orig.Siblings
		repo.db.students[s.ID] = saved
		return nil
	})
	if err != nil {
		return student.Student{}, err
	}
	s.Siblings = nil
	return copyStudent(s), nil
}

func (repo *studentRepository) ReplaceSiblings(_ context.Context, studentID string, siblings []student.Sibling) ([]student.Sibling, error) {
	var bound []student.Sibling
	err := repo.write(func() error {
		s, ok := repo.db.students[studentID]
		if !ok {
			return student.ErrNotFound
		}
		bound = bindSiblings(studentID, siblings)
		s.Siblings = bound
		repo.db.students[studentID] = copyStudent(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append([]student.Sibling{}, bound...), nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	s, ok := repo.db.students[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s = copyStudent(s)
	if s.Siblings == nil {
		s.Siblings = []student.Sibling{}
	}
	return s, nil
}

func matchStudent(s student.Student, filter *student.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !(contains(s.FirstName, filter.Search) || contains(s.LastName, filter.Search) ||
		contains(s.NationalID, filter.Search) || contains(s.StudentCode.String, filter.Search)) {
		return false
	}
	if filter.Grade != 0 && s.Grade != filter.Grade {
		return false
	}
	if filter.Section != "" && s.Section.String != filter.Section {
		return false
	}
	return true
}

func compareStudents(field string, a, b student.Student) int {
	switch field {
	case "grade":
		return compareInts(a.Grade, b.Grade)
	case "section":
		return strings.Compare(a.Section.String, b.Section.String)
	case "first_name":
		return strings.Compare(a.FirstName, b.FirstName)
	case "last_name":
		return strings.Compare(a.LastName, b.LastName)
	case "student_code":
		return strings.Compare(a.StudentCode.String, b.StudentCode.String)
	case "national_id":
		return strings.Compare(a.NationalID, b.NationalID)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		if !matchStudent(s, filter) {
			continue
		}
		s = copyStudent(s)
		s.Siblings = nil
		students = append(students, s)
	}

	sortBy(len(students), func(i, j int) { students[i], students[j] = students[j], students[i] }, ordering,
		func(field string, i, j int) int { return compareStudents(field, students[i], students[j]) },
		func(i, j int) int { return strings.Compare(students[i].ID, students[j].ID) },
	)
	return students, nil
}

func (repo *studentRepository) QuerySiblings(_ context.Context, studentIDs ...string) ([]student.Sibling, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := append([]string{}, studentIDs...)
	sort.Strings(ids)
	siblings := make([]student.Sibling, 0)
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		if s, ok := repo.db.students[id]; ok {
			siblings = append(siblings, s.Siblings...)
		}
	}
	return siblings, nil
}

func (repo *studentRepository) CountStudentsByGrade(_ context.Context, filter *student.QueryFilter) (map[int]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[int]int)
	for _, s := range repo.db.students {
		if matchStudent(s, filter) {
			counts[s.Grade]++
		}
	}
	return counts, nil
}

func (repo *studentRepository) DistinctSections(_ context.Context, grade int) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool)
	sections := make([]string, 0)
	for _, s := range repo.db.students {
		if grade != 0 && s.Grade != grade {
			continue
		}
		if sec := s.Section.String; sec != "" && !seen[sec] {
			seen[sec] = true
			sections = append(sections, sec)
		}
	}
	sort.Strings(sections)
	return sections, nil
}

func (repo *studentRepository) DistinctGrades(_ context.Context) ([]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[int]bool)
	grades := make([]int, 0)
	for _, s := range repo.db.students {
		if !seen[s.Grade] {
			seen[s.Grade] = true
			grades = append(grades, s.Grade)
		}
	}
	sort.Ints(grades)
	return grades, nil
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids ...string) error {
	return repo.write(func() error {
		for _, id := range ids {
			delete(repo.db.students, id)
		}
		return nil
	})
}
