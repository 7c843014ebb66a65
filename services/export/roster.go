// Package exportsvc writes the student roster as an Excel workbook.
package exportsvc

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/MC-tan/school-database-app/core/identity"
	"github.com/MC-tan/school-database-app/core/student"
)

// ContentType is the media type of the workbooks written by WriteRoster.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheetName = "Students"

type column struct {
	title string
	width float64
	value func(no int, s student.Student, now time.Time) interface{}
}

var rosterColumns = []column{
	{title: "No.", width: 8, value: func(no int, _ student.Student, _ time.Time) interface{} { return no }},
	{title: "Student code", width: 15, value: func(_ int, s student.Student, _ time.Time) interface{} { return s.StudentCode.String }},
	{title: "National ID", width: 18, value: func(_ int, s student.Student, _ time.Time) interface{} { return s.NationalID }},
	{title: "Title", width: 10, value: func(_ int, s student.Student, _ time.Time) interface{} { return s.Title.String }},
	{title: "First name", width: 20, value: func(_ int, s student.Student, _ time.Time) interface{} { return s.FirstName }},
	{title: "Last name", width: 20, value: func(_ int, s student.Student, _ time.Time) interface{} { return s.LastName }},
	{title: "Grade", width: 10, value: func(_ int, s student.Student, _ time.Time) interface{} { return GradeLabel(s.Grade) }},
	{title: "Section", width: 10, value: func(_ int, s student.Student, _ time.Time) interface{} { return s.Section.String }},
	{title: "Age", width: 26, value: func(_ int, s student.Student, now time.Time) interface{} {
		if !s.BirthDate.Valid {
			return "-"
		}
		return identity.FormatAge(identity.CalculateAge(s.BirthDate.Time, now))
	}},
	{title: "Created at", width: 20, value: func(_ int, s student.Student, _ time.Time) interface{} {
		return s.CreatedAt.Format("2006-01-02 15:04")
	}},
}

// GradeLabel renders a primary school grade, e.g. "P.3".
func GradeLabel(grade int) string {
	return fmt.Sprintf("P.%d", grade)
}

// WriteRoster writes students to w as an xlsx workbook holding a single sheet.
// Ages are computed at now.
func WriteRoster(w io.Writer, sheetName string, students []student.Student, now time.Time) error {
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}

	for i, col := range rosterColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.Wrap(err, "naming header cell")
		}
		if err = f.SetCellValue(sheetName, cell, col.title); err != nil {
			return errors.Wrap(err, "writing header")
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return errors.Wrap(err, "naming column")
		}
		if err = f.SetColWidth(sheetName, colName, colName, col.width); err != nil {
			return errors.Wrap(err, "sizing column")
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(rosterColumns), 1)
	if err = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for r, s := range students {
		for c, col := range rosterColumns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return errors.Wrap(err, "naming cell")
			}
			if err = f.SetCellValue(sheetName, cell, col.value(r+1, s, now)); err != nil {
				return errors.Wrapf(err, "writing cell %s", cell)
			}
		}
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

// RosterFilename names the export of a roster filtered by filter, e.g. "students_P3_room2_search_som_2024-06-15.xlsx".
func RosterFilename(filter student.QueryFilter, now time.Time) string {
	var b strings.Builder
	b.WriteString("students")
	if filter.Grade != 0 {
		b.WriteString(fmt.Sprintf("_P%d", filter.Grade))
	}
	if section := sanitize(filter.Section); section != "" {
		b.WriteString("_room" + section)
	}
	if search := sanitize(filter.Search); search != "" {
		b.WriteString("_search_" + search)
	}
	b.WriteString("_" + now.Format("2006-01-02") + ".xlsx")
	return b.String()
}

// sanitize keeps letters, digits, dashes and underscores. Spaces become underscores.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.Is(unicode.Mn, r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		}
		return -1
	}, strings.TrimSpace(s))
}
