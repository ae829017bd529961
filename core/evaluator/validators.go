package evaluator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
)

var (
	pinTag  = "pin"
	pinText = "a PIN is made of 6 digits"
)

// InitValidators registers the evaluator validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(pinTag, pinValidation)
	core.RegisterCustomTranslation(validate, translator, pinTag, pinText)
}

func pinValidation(fl validator.FieldLevel) bool {
	return ValidPIN(core.CleanString(fl.Field().String()))
}
