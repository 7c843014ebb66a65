package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/MC-tan/school-database-app/core/student"
	"github.com/MC-tan/school-database-app/core/user"
	"github.com/MC-tan/school-database-app/services/export"
	"github.com/MC-tan/school-database-app/tests"
)

type studentFixtures struct {
	admin, teacher, naughty, nobody user.User
	anan, bua, chai                 student.Student
	ids                             map[string]string
}

// setupStudents resets the DB then stores three students, Chai having one sibling.
func setupStudents(t *testing.T) studentFixtures {
	db.Reset()
	mailSvc.Reset()

	f := studentFixtures{ids: map[string]string{
		"anan":   validID(t, "110170020748"),
		"bua":    validID(t, "310100123456"),
		"chai":   validID(t, "123456789012"),
		"dao":    validID(t, "356789012345"),
		"new":    validID(t, "510100098765"),
		"father": validID(t, "310100765432"),
		"sib1":   validID(t, "120990012345"),
		"sib2":   validID(t, "120990054321"),
	}}
	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	f.teacher = testutil.CreateUser(t, usrRepo, "Kru Somsri", "somsri", "somsri@test.cd", "", []string{user.RoleTeacher}, true)
	f.naughty = testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleTeacher}, false)
	f.nobody = testutil.CreateUser(t, usrRepo, "Nobody", "nobody", "nobody@test.cd", "", nil, true)

	f.anan = testutil.CreateStudent(t, studentRepo, f.ids["anan"], "Anan", "Srisuk", 1, "1")
	f.bua = testutil.CreateStudent(t, studentRepo, f.ids["bua"], "Bua", "Chaiyo", 1, "2")
	f.chai = testutil.CreateStudent(t, studentRepo, f.ids["chai"], "Chai", "Dee", 3, "1", student.Sibling{
		NationalID: f.ids["dao"],
		FirstName:  "Dao",
		LastName:   "Dee",
		BirthDate:  time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	return f
}

// listed is s the way roster listings return it, without siblings.
func listed(s student.Student) student.Student {
	s.Siblings = nil
	return s
}

func newStudentBody(f studentFixtures) student.NewStudent {
	return student.NewStudent{
		StudentCode: null.StringFrom("S042"),
		NationalID:  null.StringFrom(f.ids["new"]),
		Title:       null.StringFrom("ด.ญ."),
		FirstName:   "Dao",
		LastName:    "Jaidee",
		Grade:       2,
		Section:     null.StringFrom("1"),
		BirthDate:   null.StringFrom("2016-02-29"),
		Father: &student.NewParent{
			NationalID: null.StringFrom(f.ids["father"]),
			FirstName:  null.StringFrom("Somchai"),
			LastName:   null.StringFrom("Jaidee"),
			Phone:      null.StringFrom("081-234-5678"),
		},
		Siblings: []student.NewSibling{{
			NationalID: null.StringFrom(f.ids["sib1"]),
			FirstName:  "Somying",
			LastName:   "Jaidee",
			BirthDate:  null.StringFrom("2012-05-01"),
		}},
	}
}

func fieldErr(field, msg string) map[string]string { return map[string]string{field: msg} }

func Test_studentApi_permissions(t *testing.T) {
	f := setupStudents(t)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, f.naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Staff required", token: getToken(t, f.nobody), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "Teacher allowed", token: getToken(t, f.teacher), wantCode: http.StatusOK, wantData: marchallList(t, listed(f.anan), listed(f.bua), listed(f.chai))},
		{name: "Admin allowed", token: getToken(t, f.admin), wantCode: http.StatusOK, wantData: marchallList(t, listed(f.anan), listed(f.bua), listed(f.chai))},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/api/students"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studentApi_query(t *testing.T) {
	f := setupStudents(t)
	token := getToken(t, f.teacher)
	empty := marchallList(t)
	badGrade := marchallObj(t, fieldErr("grade", "grade must be a number"))

	tests := []httpTest{
		{name: "search by name", path: "/api/students?search=BUA", wantData: marchallList(t, listed(f.bua))},
		{name: "search by last name", path: "/api/students?search=dee", wantData: marchallList(t, listed(f.chai))},
		{name: "search by national ID", path: "/api/students?search=" + f.ids["anan"], wantData: marchallList(t, listed(f.anan))},
		{name: "search (unknown)", path: "/api/students?search=lol", wantData: empty},
		{name: "grade", path: "/api/students?grade=1", wantData: marchallList(t, listed(f.anan), listed(f.bua))},
		{name: "grade & section", path: "/api/students?grade=1&section=2", wantData: marchallList(t, listed(f.bua))},
		{name: "bad grade", path: "/api/students?grade=lol", wantCode: http.StatusBadRequest, wantData: badGrade},
		{name: "order by -first_name", path: "/api/students?ordering=-first_name", wantData: marchallList(t, listed(f.chai), listed(f.bua), listed(f.anan))},
		{
			name: "unknown ordering is ignored", path: "/api/students?ordering=lol%3BDROP%20TABLE%20students",
			wantData: marchallList(t, listed(f.anan), listed(f.bua), listed(f.chai)),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = token
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studentApi_create(t *testing.T) {
	f := setupStudents(t)
	token := getToken(t, f.teacher)

	body := func(mod func(ns *student.NewStudent)) []byte {
		ns := newStudentBody(f)
		mod(&ns)
		return marchallObj(t, ns)
	}
	reqMsg := "this field is required"

	tests := []httpTest{
		{
			name: "required fields", body: []byte("{}"),
			wantData: marchallObj(t, map[string]string{"first_name": reqMsg, "last_name": reqMsg, "grade": reqMsg}),
		},
		{
			name: "grade out of range", body: body(func(ns *student.NewStudent) { ns.Grade = 9 }),
			wantData: marchallObj(t, fieldErr("grade", "grade must be between 1 and 6")),
		},
		{
			name: "missing national ID", body: body(func(ns *student.NewStudent) { ns.NationalID = null.String{} }),
			wantData: marchallObj(t, fieldErr("national_id", "national ID is required")),
		},
		{
			name: "blank national ID", body: body(func(ns *student.NewStudent) { ns.NationalID = null.StringFrom("  ") }),
			wantData: marchallObj(t, fieldErr("national_id", "national ID is required")),
		},
		{
			name: "national ID too short", body: body(func(ns *student.NewStudent) { ns.NationalID = null.StringFrom("12345") }),
			wantData: marchallObj(t, fieldErr("national_id", "national ID must have 13 digits")),
		},
		{
			name: "national ID checksum", body: body(func(ns *student.NewStudent) { ns.NationalID = null.StringFrom("1101700207483") }),
			wantData: marchallObj(t, fieldErr("national_id", "national ID is invalid")),
		},
		{
			name: "birth date in the future", body: body(func(ns *student.NewStudent) { ns.BirthDate = null.StringFrom("2024-06-16") }),
			wantData: marchallObj(t, fieldErr("birth_date", "birth date cannot be in the future")),
		},
		{
			name: "father phone", body: body(func(ns *student.NewStudent) { ns.Father.Phone = null.StringFrom("12345") }),
			wantData: marchallObj(t, fieldErr("father.phone", "invalid phone number format")),
		},
		{
			name: "mother national ID", body: body(func(ns *student.NewStudent) {
				ns.Mother = &student.NewParent{NationalID: null.StringFrom("1101700207483")}
			}),
			wantData: marchallObj(t, fieldErr("mother.national_id", "national ID is invalid")),
		},
		{
			name: "sibling name required", body: body(func(ns *student.NewStudent) { ns.Siblings[0].FirstName = "" }),
			wantData: marchallObj(t, fieldErr("siblings[0].first_name", reqMsg)),
		},
		{
			name: "sibling birth date required", body: body(func(ns *student.NewStudent) { ns.Siblings[0].BirthDate = null.String{} }),
			wantData: marchallObj(t, fieldErr("siblings[0].birth_date", "birth date is required")),
		},
		{
			name: "sibling is the student", body: body(func(ns *student.NewStudent) { ns.Siblings[0].NationalID = ns.NationalID }),
			wantData: marchallObj(t, fieldErr("siblings[0].national_id", "sibling #1 has the same national ID as the student")),
		},
		{
			name: "siblings collide", body: body(func(ns *student.NewStudent) {
				ns.Siblings = append(ns.Siblings, ns.Siblings[0], ns.Siblings[0])
				ns.Siblings[1].NationalID = null.StringFrom(f.ids["sib2"])
			}),
			wantData: marchallObj(t, fieldErr("siblings[2].national_id", "siblings #1 and #3 have the same national ID")),
		},
		{
			name: "student already exists", body: body(func(ns *student.NewStudent) { ns.NationalID = null.StringFrom(f.ids["anan"]) }),
			wantData: marchallObj(t, fieldErr("national_id", "a student with this national ID already exists")),
		},
		{
			name: "student already exists (formatted)", body: body(func(ns *student.NewStudent) {
				id := f.ids["anan"]
				ns.NationalID = null.StringFrom(id[:1] + "-" + id[1:5] + "-" + id[5:10] + "-" + id[10:12] + "-" + id[12:])
			}),
			wantData: marchallObj(t, fieldErr("national_id", "a student with this national ID already exists")),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/students"
		tt.token = token
		tt.wantCode = http.StatusBadRequest

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("created", func(t *testing.T) {
		ns := newStudentBody(f)
		fatherID := f.ids["father"]
		ns.Father.NationalID = null.StringFrom(fatherID[:1] + "-" + fatherID[1:5] + "-" + fatherID[5:10] + "-" + fatherID[10:12] + "-" + fatherID[12:])
		req, rec := newAuthRequest(http.MethodPost, "/api/students", token, marchallObj(t, ns))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got student.Student
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, f.ids["new"], got.NationalID)
		assert.Equal(t, "Dao", got.FirstName)
		assert.Equal(t, 2, got.Grade)
		assert.Equal(t, null.TimeFrom(time.Date(2016, time.February, 29, 0, 0, 0, 0, time.UTC)), got.BirthDate)
		assert.Equal(t, testNow, got.CreatedAt)
		require.NotNil(t, got.Father)
		assert.Equal(t, "Somchai", got.Father.FirstName.String)
		assert.Equal(t, null.StringFrom(fatherID), got.Father.NationalID, "stored without hyphens")
		assert.Nil(t, got.Mother)
		require.Len(t, got.Siblings, 1)
		assert.Equal(t, got.ID, got.Siblings[0].StudentID)
		assert.Equal(t, f.ids["sib1"], got.Siblings[0].NationalID)

		// same record twice
		req, rec = newAuthRequest(http.MethodPost, "/api/students", token, marchallObj(t, newStudentBody(f)))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("national_id", "a student with this national ID already exists")),
		}, rec)

		// another student, same student code
		ns = newStudentBody(f)
		ns.NationalID = null.StringFrom(validID(t, "520200011111"))
		req, rec = newAuthRequest(http.MethodPost, "/api/students", token, marchallObj(t, ns))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("student_code", "a student with this student code already exists")),
		}, rec)
	})
}

func Test_studentApi_validate(t *testing.T) {
	f := setupStudents(t)
	token := getToken(t, f.teacher)

	withID := func(id string) []byte {
		ns := newStudentBody(f)
		ns.NationalID = null.StringFrom(id)
		return marchallObj(t, ns)
	}
	valid := marchallObj(t, map[string]bool{"valid": true})
	duplicate := marchallObj(t, fieldErr("national_id", "a student with this national ID already exists"))

	tests := []httpTest{
		{name: "new student", path: "/api/students/validate", body: withID(f.ids["new"]), wantCode: http.StatusOK, wantData: valid},
		{name: "taken on creation", path: "/api/students/validate", body: withID(f.ids["anan"]), wantCode: http.StatusBadRequest, wantData: duplicate},
		{name: "own ID while editing", path: "/api/students/validate?id=" + f.anan.ID, body: withID(f.ids["anan"]), wantCode: http.StatusOK, wantData: valid},
		{name: "taken while editing", path: "/api/students/validate?id=" + f.bua.ID, body: withID(f.ids["anan"]), wantCode: http.StatusBadRequest, wantData: duplicate},
		{
			name: "invalid", path: "/api/students/validate", body: withID("1101700207483"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, fieldErr("national_id", "national ID is invalid")),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.token = token

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// nothing was written
	req, rec := newAuthRequest(http.MethodGet, "/api/students", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, listed(f.anan), listed(f.bua), listed(f.chai))}, rec)
}

func Test_studentApi_detail(t *testing.T) {
	f := setupStudents(t)
	teacherToken := getToken(t, f.teacher)
	adminToken := getToken(t, f.admin)
	detail := func(s student.Student) string { return "/api/students/" + s.ID }
	notFound := marchallObj(t, httpErr{Error: "not found"})

	update := func(nationalID string, grade int) []byte {
		return marchallObj(t, student.UpdateStudent{
			NationalID: null.StringFrom(nationalID),
			FirstName:  "Anan",
			LastName:   "Srisuk",
			Grade:      grade,
			Section:    null.StringFrom("3"),
		})
	}

	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: detail(f.chai), token: teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, f.chai)},
		{name: "unknown", method: http.MethodGet, path: "/api/students/lol", token: teacherToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "update to a taken national ID", method: http.MethodPut, path: detail(f.anan), token: teacherToken,
			body:     update(f.ids["bua"], 2),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, fieldErr("national_id", "a student with this national ID already exists")),
		},
		{
			name: "update keeps siblings", method: http.MethodPut, path: detail(f.chai), token: teacherToken,
			body: marchallObj(t, student.UpdateStudent{NationalID: null.StringFrom(f.ids["chai"]), FirstName: "Chai", LastName: "Dee", Grade: 4}),
			wantCode: http.StatusOK, extra: f.chai.Siblings,
		},
		{name: "update", method: http.MethodPut, path: detail(f.anan), token: teacherToken, body: update(f.ids["anan"], 2), wantCode: http.StatusOK},
		{name: "teacher cannot delete", method: http.MethodDelete, path: detail(f.bua), token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "admin deletes", method: http.MethodDelete, path: detail(f.bua), token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: detail(f.bua), token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.method == http.MethodPut && tt.wantCode == http.StatusOK {
				var got student.Student
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, testNow, got.UpdatedAt)
				if siblings, ok := tt.extra.([]student.Sibling); ok {
					assert.Equal(t, len(siblings), len(got.Siblings))
					assert.Equal(t, 4, got.Grade)
				} else {
					assert.Equal(t, 2, got.Grade)
					assert.Equal(t, "3", got.Section.String)
				}
			}
		})
	}
}

func Test_studentApi_siblings(t *testing.T) {
	f := setupStudents(t)
	token := getToken(t, f.teacher)
	path := "/api/students/" + f.chai.ID + "/siblings"

	sibling := func(nationalID, name string) student.NewSibling {
		return student.NewSibling{
			NationalID: null.StringFrom(nationalID),
			FirstName:  name,
			LastName:   "Dee",
			BirthDate:  null.StringFrom("2013-08-12"),
		}
	}

	tests := []httpTest{
		{name: "list", method: http.MethodGet, path: path, wantCode: http.StatusOK, wantData: marchallObj(t, f.chai.Siblings)},
		{name: "unknown student", method: http.MethodGet, path: "/api/students/lol/siblings", wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{
			name: "sibling is the student", method: http.MethodPut, path: path,
			body:     marchallObj(t, student.NewSiblings{Siblings: []student.NewSibling{sibling(f.ids["sib1"], "Dao"), sibling(f.ids["chai"], "Chai")}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, fieldErr("siblings[1].national_id", "sibling #2 has the same national ID as the student")),
		},
		{
			name: "siblings collide", method: http.MethodPut, path: path,
			body:     marchallObj(t, student.NewSiblings{Siblings: []student.NewSibling{sibling(f.ids["sib1"], "Dao"), sibling(f.ids["sib1"], "Duan")}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, fieldErr("siblings[1].national_id", "siblings #1 and #2 have the same national ID")),
		},
		{
			name: "name required", method: http.MethodPut, path: path,
			body:     marchallObj(t, student.NewSiblings{Siblings: []student.NewSibling{sibling(f.ids["sib1"], "")}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, fieldErr("siblings[0].first_name", "this field is required")),
		},
		{
			name: "replaced", method: http.MethodPut, path: path,
			body:     marchallObj(t, student.NewSiblings{Siblings: []student.NewSibling{sibling(f.ids["sib1"], "Dao"), sibling(f.ids["sib2"], "Duan")}}),
			wantCode: http.StatusOK, extra: []string{"Dao", "Duan"},
		},
		{name: "cleared", method: http.MethodPut, path: path, body: []byte(`{"siblings":[]}`), wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		tt.token = token

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if names, ok := tt.extra.([]string); ok {
				var got []student.Sibling
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				require.Len(t, got, len(names))
				for i, name := range names {
					assert.Equal(t, name, got[i].FirstName)
					assert.Equal(t, f.chai.ID, got[i].StudentID)
				}
			}
		})
	}
}

func Test_studentApi_lookups(t *testing.T) {
	f := setupStudents(t)
	token := getToken(t, f.teacher)
	badGrade := marchallObj(t, fieldErr("grade", "grade must be a number"))

	tests := []httpTest{
		{name: "stats", path: "/api/students/stats", wantData: []byte(`{"total":3,"by_grade":{"1":2,"3":1}}`)},
		{name: "stats by grade", path: "/api/students/stats?grade=1", wantData: []byte(`{"total":2,"by_grade":{"1":2}}`)},
		{name: "stats by search", path: "/api/students/stats?search=chai", wantData: []byte(`{"total":2,"by_grade":{"1":1,"3":1}}`)},
		{name: "sections", path: "/api/students/sections", wantData: marchallObj(t, []string{"1", "2"})},
		{name: "sections by grade", path: "/api/students/sections?grade=3", wantData: marchallObj(t, []string{"1"})},
		{name: "stats by bad grade", path: "/api/students/stats?grade=lol", wantCode: http.StatusBadRequest, wantData: badGrade},
		{name: "sections by bad grade", path: "/api/students/sections?grade=lol", wantCode: http.StatusBadRequest, wantData: badGrade},
		{name: "export by bad grade", path: "/api/students/export?grade=lol", wantCode: http.StatusBadRequest, wantData: badGrade},
		{name: "grades", path: "/api/students/grades", wantData: marchallObj(t, []int{1, 3})},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = token
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studentApi_export(t *testing.T) {
	f := setupStudents(t)

	req, rec := newAuthRequest(http.MethodGet, "/api/students/export?grade=1", getToken(t, f.teacher))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, exportsvc.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=students_P1_2024-06-15.xlsx", rec.Header().Get("Content-Disposition"))

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	rows, err := book.GetRows(conf.School.ExportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "National ID", rows[0][2])
	assert.Equal(t, []string{f.ids["anan"], "Anan"}, []string{rows[1][2], rows[1][4]})
	assert.Equal(t, []string{f.ids["bua"], "Bua"}, []string{rows[2][2], rows[2][4]})
}

func Test_studentApi_emailExport(t *testing.T) {
	f := setupStudents(t)
	noEmail := testutil.CreateUser(t, usrRepo, "Kru Malee", "malee", "", "", []string{user.RoleTeacher}, true)

	tests := []httpTest{
		{
			name: "no email address", token: getToken(t, noEmail), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, fieldErr("email", "your account has no email address")),
		},
		{
			name: "sent", token: getToken(t, f.teacher), wantCode: http.StatusAccepted,
			wantData: marchallObj(t, map[string]string{"success": "The roster has been sent to your email address."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/students/export/email"

		t.Run(tt.name, func(t *testing.T) {
			mailSvc.Reset()

			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			sent := mailSvc.SentMessages()
			if tt.wantCode != http.StatusAccepted {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, f.teacher.Email, msg.To[0].Address)
			assert.True(t, strings.Contains(msg.TextContent, "3 students"), msg.TextContent)
			require.Len(t, msg.Attachments, 1)
			assert.Equal(t, "students_2024-06-15.xlsx", msg.Attachments[0].Filename)
			assert.Equal(t, exportsvc.ContentType, msg.Attachments[0].ContentType)
			assert.NotZero(t, msg.Attachments[0].Content.Len())
		})
	}
}

func Test_studentApi_destroyMultiple(t *testing.T) {
	f := setupStudents(t)
	path := "/api/students?id=" + f.anan.ID + "&id=" + f.chai.ID

	tests := []httpTest{
		{name: "Admin required", path: path, token: getToken(t, f.teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "no IDs", path: "/api/students", token: getToken(t, f.admin), wantCode: http.StatusNoContent},
		{name: "deleted", path: path, token: getToken(t, f.admin), wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		tt.method = http.MethodDelete

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	req, rec := newAuthRequest(http.MethodGet, "/api/students", getToken(t, f.teacher))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, listed(f.bua))}, rec)
}
