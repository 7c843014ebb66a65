package student

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/MC-tan/school-database-app/core"
)

var gradeTag = "grade"

// InitValidators registers the student validation tags. Grades are accepted within the configured range.
func InitValidators(validate *validator.Validate, translator ut.Translator, conf core.SchoolConfig) {
	minGrade, maxGrade := conf.MinGrade, conf.MaxGrade
	_ = validate.RegisterValidation(gradeTag, func(fl validator.FieldLevel) bool {
		grade := int(fl.Field().Int())
		return grade >= minGrade && grade <= maxGrade
	})
	core.RegisterCustomTranslation(validate, translator, gradeTag, fmt.Sprintf("grade must be between %d and %d", minGrade, maxGrade))
}
