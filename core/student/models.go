package student

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/identity"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type Parent struct {
	NationalID null.String `json:"national_id"`
	Title      null.String `json:"title"`
	FirstName  null.String `json:"first_name"`
	LastName   null.String `json:"last_name"`
	BirthDate  null.Time   `json:"birth_date"`
	Address    null.String `json:"address"`
	Phone      null.String `json:"phone"`
	Occupation null.String `json:"occupation"`
}

// IsEmpty reports whether no field of the parent is set.
func (p Parent) IsEmpty() bool {
	return !(p.NationalID.Valid || p.Title.Valid || p.FirstName.Valid || p.LastName.Valid ||
		p.BirthDate.Valid || p.Address.Valid || p.Phone.Valid || p.Occupation.Valid)
}

type Sibling struct {
	ID             string      `json:"id"`
	StudentID      string      `json:"student_id"`
	NationalID     string      `json:"national_id"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	BirthDate      time.Time   `json:"birth_date"`
	EducationLevel null.String `json:"education_level"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
}

type Student struct {
	ID          string      `json:"id"`
	StudentCode null.String `json:"student_code"`
	NationalID  string      `json:"national_id"`
	Title       null.String `json:"title"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Grade       int         `json:"grade"`
	Section     null.String `json:"section"`
	Address     null.String `json:"address"`
	BirthDate   null.Time   `json:"birth_date"`
	PhotoURL    null.String `json:"photo_url"`
	Father      *Parent     `json:"father"`
	Mother      *Parent     `json:"mother"`
	Siblings    []Sibling   `json:"siblings,omitempty"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.Title.String + " " + s.FirstName + " " + s.LastName)
}

// NewParent contains the information about a parent of a new or updated Student.
type NewParent struct {
	NationalID null.String `json:"national_id"`
	Title      null.String `json:"title" validate:"omitempty,max=20"`
	FirstName  null.String `json:"first_name" validate:"omitempty,max=100"`
	LastName   null.String `json:"last_name" validate:"omitempty,max=100"`
	BirthDate  null.String `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Address    null.String `json:"address" validate:"omitempty,max=500"`
	Phone      null.String `json:"phone"`
	Occupation null.String `json:"occupation" validate:"omitempty,max=100"`
}

func (np *NewParent) clean() {
	np.NationalID = core.CleanNullString(np.NationalID)
	np.Title = core.CleanNullString(np.Title)
	np.FirstName = core.CleanNullString(np.FirstName)
	np.LastName = core.CleanNullString(np.LastName)
	np.BirthDate = core.CleanNullString(np.BirthDate)
	np.Address = core.CleanNullString(np.Address)
	np.Phone = core.CleanNullString(np.Phone)
	np.Occupation = core.CleanNullString(np.Occupation)
}

func (np *NewParent) parent() *Parent {
	if np == nil {
		return nil
	}
	p := Parent{
		NationalID: null.NewString(identity.Normalize(np.NationalID.String), np.NationalID.Valid),
		Title:      np.Title,
		FirstName:  np.FirstName,
		LastName:   np.LastName,
		BirthDate:  parseDate(np.BirthDate),
		Address:    np.Address,
		Phone:      np.Phone,
		Occupation: np.Occupation,
	}
	if p.IsEmpty() {
		return nil
	}
	return &p
}

// NewSibling contains the information needed to register a sibling of a Student.
type NewSibling struct {
	NationalID     null.String `json:"national_id"`
	FirstName      string      `json:"first_name" validate:"required,max=100"`
	LastName       string      `json:"last_name" validate:"required,max=100"`
	BirthDate      null.String `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	EducationLevel null.String `json:"education_level" validate:"omitempty,max=100"`
}

func (ns *NewSibling) clean() {
	ns.NationalID = core.CleanNullString(ns.NationalID)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.BirthDate = core.CleanNullString(ns.BirthDate)
	ns.EducationLevel = core.CleanNullString(ns.EducationLevel)
}

// NewSiblings is the proposed sibling list of a Student. It always replaces the current list.
type NewSiblings struct {
	Siblings []NewSibling `json:"siblings" validate:"dive"`
}

// NewStudent contains the information needed to create a new Student.
type NewStudent struct {
	StudentCode null.String  `json:"student_code" validate:"omitempty,max=20,alphanum_"`
	NationalID  null.String  `json:"national_id"`
	Title       null.String  `json:"title" validate:"omitempty,max=20"`
	FirstName   string       `json:"first_name" validate:"required,max=100"`
	LastName    string       `json:"last_name" validate:"required,max=100"`
	Grade       int          `json:"grade" validate:"required,grade"`
	Section     null.String  `json:"section" validate:"omitempty,max=10"`
	Address     null.String  `json:"address" validate:"omitempty,max=500"`
	BirthDate   null.String  `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	PhotoURL    null.String  `json:"photo_url" validate:"omitempty,url"`
	Father      *NewParent   `json:"father"`
	Mother      *NewParent   `json:"mother"`
	Siblings    []NewSibling `json:"siblings" validate:"dive"`
}

func (ns *NewStudent) clean() {
	ns.StudentCode = core.CleanNullString(ns.StudentCode)
	ns.NationalID = core.CleanNullString(ns.NationalID)
	ns.Title = core.CleanNullString(ns.Title)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Section = core.CleanNullString(ns.Section)
	ns.Address = core.CleanNullString(ns.Address)
	ns.BirthDate = core.CleanNullString(ns.BirthDate)
	ns.PhotoURL = core.CleanNullString(ns.PhotoURL)
	if ns.Father != nil {
		ns.Father.clean()
	}
	if ns.Mother != nil {
		ns.Mother.clean()
	}
	for i := range ns.Siblings {
		ns.Siblings[i].clean()
	}
}

func (ns *NewStudent) student() Student {
	return Student{
		StudentCode: ns.StudentCode,
		NationalID:  ns.NationalID.String,
		Title:       ns.Title,
		FirstName:   ns.FirstName,
		LastName:    ns.LastName,
		Grade:       ns.Grade,
		Section:     ns.Section,
		Address:     ns.Address,
		BirthDate:   parseDate(ns.BirthDate),
		PhotoURL:    ns.PhotoURL,
		Father:      ns.Father.parent(),
		Mother:      ns.Mother.parent(),
	}
}

// UpdateStudent defines the new state of an existing Student.
// A nil Siblings list keeps the current siblings, any other value replaces them.
type UpdateStudent NewStudent

type QueryFilter struct {
	Search  string `query:"search"`
	Grade   int    `query:"grade"`
	Section string `query:"section"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Grade == 0 && qf.Section == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Section = core.CleanString(qf.Section)
}

// Stats are the roster counters.
type Stats struct {
	Total   int         `json:"total"`
	ByGrade map[int]int `json:"by_grade"`
}

func parseDate(s null.String) null.Time {
	if !s.Valid {
		return null.Time{}
	}
	t, err := time.ParseInLocation(DateLayout, s.String, time.UTC)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(t)
}
