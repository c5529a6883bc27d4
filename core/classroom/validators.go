package classroom

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/uniforme/core"
)

var (
	genderTag  = "gender"
	genderText = "gender must be MASCULINO or FEMENINO"
)

// InitValidators registers the classroom validators. core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(genderTag, genderValidation)
	core.RegisterCustomTranslation(validate, translator, genderTag, genderText)
}

// Custom Validators

// genderValidation checks that the value is one of the known Genders.
func genderValidation(fl validator.FieldLevel) bool {
	var s string
	switch v := fl.Field().Interface().(type) {
	case Gender:
		s = string(v)
	case string:
		s = v
	default:
		return false
	}
	g, ok := ParseGender(s)
	return ok && string(g) == s
}
