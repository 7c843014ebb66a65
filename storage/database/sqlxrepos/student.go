package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/identity"
	"github.com/MC-tan/school-database-app/core/student"
	"github.com/MC-tan/school-database-app/storage/database"
)

const (
	studentNationalIDKey  = "students_national_id_key"
	studentStudentCodeKey = "students_student_code_key"
)

var (
	parentColumns = []string{"national_id", "title", "first_name", "last_name", "birth_date", "address", "phone", "occupation"}

	studentColumns = append([]string{
		"id", "student_code", "national_id", "title", "first_name", "last_name", "grade", "section",
		"address", "birth_date", "photo_url",
	}, append(prefixed("father_", parentColumns), append(prefixed("mother_", parentColumns), "created_at", "updated_at")...)...)

	siblingColumns = []string{
		"id", "student_id", "position", "national_id", "first_name", "last_name", "birth_date", "education_level", "created_at",
	}
)

func prefixed(prefix string, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, prefix+c)
	}
	return out
}

type parentRow struct {
	NationalID null.String
	Title      null.String
	FirstName  null.String
	LastName   null.String
	BirthDate  null.Time
	Address    null.String
	Phone      null.String
	Occupation null.String
}

func toParentRow(p *student.Parent) parentRow {
	if p == nil {
		return parentRow{}
	}
	return parentRow(*p)
}

func (r parentRow) parent() *student.Parent {
	p := student.Parent(r)
	if p.IsEmpty() {
		return nil
	}
	return &p
}

func (r parentRow) values() []interface{} {
	return []interface{}{r.NationalID, r.Title, r.FirstName, r.LastName, r.BirthDate, r.Address, r.Phone, r.Occupation}
}

type studentRow struct {
	ID          string      `db:"id"`
	StudentCode null.String `db:"student_code"`
	NationalID  string      `db:"national_id"`
	Title       null.String `db:"title"`
	FirstName   string      `db:"first_name"`
	LastName    string      `db:"last_name"`
	Grade       int         `db:"grade"`
	Section     null.String `db:"section"`
	Address     null.String `db:"address"`
	BirthDate   null.Time   `db:"birth_date"`
	PhotoURL    null.String `db:"photo_url"`

	FatherNationalID null.String `db:"father_national_id"`
	FatherTitle      null.String `db:"father_title"`
	FatherFirstName  null.String `db:"father_first_name"`
	FatherLastName   null.String `db:"father_last_name"`
	FatherBirthDate  null.Time   `db:"father_birth_date"`
	FatherAddress    null.String `db:"father_address"`
	FatherPhone      null.String `db:"father_phone"`
	FatherOccupation null.String `db:"father_occupation"`

	MotherNationalID null.String `db:"mother_national_id"`
	MotherTitle      null.String `db:"mother_title"`
	MotherFirstName  null.String `db:"mother_first_name"`
	MotherLastName   null.String `db:"mother_last_name"`
	MotherBirthDate  null.Time   `db:"mother_birth_date"`
	MotherAddress    null.String `db:"mother_address"`
	MotherPhone      null.String `db:"mother_phone"`
	MotherOccupation null.String `db:"mother_occupation"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:          r.ID,
		StudentCode: r.StudentCode,
		NationalID:  r.NationalID,
		Title:       r.Title,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Grade:       r.Grade,
		Section:     r.Section,
		Address:     r.Address,
		BirthDate:   r.BirthDate,
		PhotoURL:    r.PhotoURL,
		Father: parentRow{
			r.FatherNationalID, r.FatherTitle, r.FatherFirstName, r.FatherLastName,
			r.FatherBirthDate, r.FatherAddress, r.FatherPhone, r.FatherOccupation,
		}.parent(),
		Mother: parentRow{
			r.MotherNationalID, r.MotherTitle, r.MotherFirstName, r.MotherLastName,
			r.MotherBirthDate, r.MotherAddress, r.MotherPhone, r.MotherOccupation,
		}.parent(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// studentValues lists the values of s in studentColumns order, the ID first.
func studentValues(s student.Student) []interface{} {
	vals := []interface{}{
		s.ID, s.StudentCode, s.NationalID, s.Title, s.FirstName, s.LastName, s.Grade, s.Section,
		s.Address, s.BirthDate, s.PhotoURL,
	}
	vals = append(vals, toParentRow(s.Father).values()...)
	vals = append(vals, toParentRow(s.Mother).values()...)
	return append(vals, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
}

type siblingRow struct {
	ID             string      `db:"id"`
	StudentID      string      `db:"student_id"`
	Position       int         `db:"position"`
	NationalID     string      `db:"national_id"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	BirthDate      time.Time   `db:"birth_date"`
	EducationLevel null.String `db:"education_level"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (r siblingRow) sibling() student.Sibling {
	return student.Sibling{
		ID:             r.ID,
		StudentID:      r.StudentID,
		NationalID:     r.NationalID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		BirthDate:      r.BirthDate,
		EducationLevel: r.EducationLevel,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type studentRepository struct {
	exec core.DBExecutor
	db   core.DB // nil when bound to a transaction
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db core.DB) *studentRepository {
	return &studentRepository{exec: db, db: db}
}

// trapNoRowsErr maps psql "no rows" err to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) RunInTx(ctx context.Context, fn func(repo student.Repository) error) error {
	if repo.db == nil {
		return fn(repo)
	}
	return database.RunInTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		return fn(studentRepository{exec: tx})
	})
}

func (repo studentRepository) IdentityIndex(ctx context.Context, nationalIDs ...string) (identity.Index, error) {
	index := identity.NewIndex()
	if len(nationalIDs) == 0 {
		return index, nil
	}
	query, args, err := psql.Select("national_id", "id").From("students").
		Where(sq.Eq{"national_id": nationalIDs}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building identity query")
	}
	var rows []struct {
		NationalID string `db:"national_id"`
		ID         string `db:"id"`
	}
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying identities")
	}
	for _, r := range rows {
		index.Add(r.NationalID, r.ID)
	}
	return index, nil
}

// trapUniqueErr maps the unique violations of the students table to their service errors.
func (repo studentRepository) trapUniqueErr(err error, msg string) error {
	switch {
	case database.IsUniqueViolation(err, studentNationalIDKey):
		return student.ErrNationalIDExists
	case database.IsUniqueViolation(err, studentStudentCodeKey):
		return student.ErrStudentCodeExists
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) StudentCodeTaken(ctx context.Context, code string, exceptID null.String) (bool, error) {
	q := psql.Select("COUNT(*)").From("students").Where(sq.Eq{"student_code": code})
	if exceptID.Valid {
		if _, err := uuid.Parse(exceptID.String); err == nil {
			q = q.Where(sq.NotEq{"id": exceptID.String})
		}
	}
	query, args, err := q.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building student code query")
	}
	var n int
	if err = repo.exec.GetContext(ctx, &n, query, args...); err != nil {
		return false, errors.Wrap(err, "checking student code")
	}
	return n > 0, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	s.ID = uuid.New().String()
	query, args, err := psql.Insert("students").Columns(studentColumns...).Values(studentValues(s)...).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building insert student")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return student.Student{}, repo.trapUniqueErr(err, "inserting student")
	}

	if s.Siblings, err = repo.insertSiblings(ctx, s.ID, s.Siblings); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	vals := studentValues(s)
	set := make(map[string]interface{}, len(studentColumns)-1)
	for i, col := range studentColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		set[col] = vals[i]
	}
	query, args, err := psql.Update("students").SetMap(set).Where(sq.Eq{"id": s.ID}).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building update student")
	}
	res, err := repo.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return student.Student{}, repo.trapUniqueErr(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	s.Siblings = nil
	return s, nil
}

func (repo studentRepository) insertSiblings(ctx context.Context, studentID string, siblings []student.Sibling) ([]student.Sibling, error) {
	saved := make([]student.Sibling, 0, len(siblings))
	if len(siblings) == 0 {
		return saved, nil
	}
	q := psql.Insert("siblings").Columns(siblingColumns...)
	for i, sib := range siblings {
		sib.ID = uuid.New().String()
		sib.StudentID = studentID
		q = q.Values(sib.ID, sib.StudentID, i, sib.NationalID, sib.FirstName, sib.LastName,
			sib.BirthDate, sib.EducationLevel, sib.CreatedAt.UTC())
		saved = append(saved, sib)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building insert siblings")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "inserting siblings")
	}
	return saved, nil
}

func (repo studentRepository) ReplaceSiblings(ctx context.Context, studentID string, siblings []student.Sibling) ([]student.Sibling, error) {
	query, args, err := psql.Delete("siblings").Where(sq.Eq{"student_id": studentID}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building delete siblings")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return nil, errors.Wrap(err, "deleting siblings")
	}
	return repo.insertSiblings(ctx, studentID, siblings)
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	query, args, err := psql.Select(studentColumns...).From("students").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building student query")
	}
	var row studentRow
	if err = repo.exec.GetContext(ctx, &row, query, args...); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	s := row.student()
	if s.Siblings, err = repo.QuerySiblings(ctx, id); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func filterStudents(q sq.SelectBuilder, filter *student.QueryFilter) sq.SelectBuilder {
	if filter == nil {
		return q
	}
	// students with a name, national ID or code matching the search keyword
	if filter.Search != "" {
		val := ilike(filter.Search)
		q = q.Where(sq.Or{
			sq.ILike{"first_name": val},
			sq.ILike{"last_name": val},
			sq.ILike{"national_id": val},
			sq.ILike{"student_code": val},
		})
	}
	if filter.Grade != 0 {
		q = q.Where(sq.Eq{"grade": filter.Grade})
	}
	if filter.Section != "" {
		q = q.Where(sq.Eq{"section": filter.Section})
	}
	return q
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	q := filterStudents(psql.Select(studentColumns...).From("students"), filter).OrderBy(orderBy(ordering)...)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building students query")
	}
	var rows []studentRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo studentRepository) QuerySiblings(ctx context.Context, studentIDs ...string) ([]student.Sibling, error) {
	studentIDs = validIDs(studentIDs)
	siblings := make([]student.Sibling, 0)
	if len(studentIDs) == 0 {
		return siblings, nil
	}
	query, args, err := psql.Select(siblingColumns...).From("siblings").
		Where(sq.Eq{"student_id": studentIDs}).
		OrderBy("student_id", "position").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building siblings query")
	}
	var rows []siblingRow
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying siblings")
	}
	for _, r := range rows {
		siblings = append(siblings, r.sibling())
	}
	return siblings, nil
}

func (repo studentRepository) CountStudentsByGrade(ctx context.Context, filter *student.QueryFilter) (map[int]int, error) {
	q := filterStudents(psql.Select("grade", "COUNT(*) AS total").From("students"), filter).GroupBy("grade")
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building count query")
	}
	var rows []struct {
		Grade int `db:"grade"`
		Total int `db:"total"`
	}
	if err = repo.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "counting students")
	}
	counts := make(map[int]int, len(rows))
	for _, r := range rows {
		counts[r.Grade] = r.Total
	}
	return counts, nil
}

func (repo studentRepository) DistinctSections(ctx context.Context, grade int) ([]string, error) {
	q := psql.Select("DISTINCT section").From("students").
		Where(sq.And{sq.NotEq{"section": nil}, sq.NotEq{"section": ""}}).
		OrderBy("section")
	if grade != 0 {
		q = q.Where(sq.Eq{"grade": grade})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building sections query")
	}
	sections := make([]string, 0)
	if err = repo.exec.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	return sections, nil
}

func (repo studentRepository) DistinctGrades(ctx context.Context) ([]int, error) {
	query, args, err := psql.Select("DISTINCT grade").From("students").OrderBy("grade").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building grades query")
	}
	grades := make([]int, 0)
	if err = repo.exec.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return grades, nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids ...string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete("students").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building delete students")
	}
	if _, err = repo.exec.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return nil
}
