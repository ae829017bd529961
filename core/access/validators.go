package access

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core/user"
)

// InitValidators registers the access request validators.
// Translations of the password policy tags are registered by user.InitValidators.
func InitValidators(validate *validator.Validate, _ ut.Translator) {
	validate.RegisterStructValidation(requestStructValidation, NewRequest{})
}

// requestStructValidation applies the password policy to the future school admin's password.
func requestStructValidation(sl validator.StructLevel) {
	if nr, ok := sl.Current().Interface().(NewRequest); ok {
		user.ValidatePassword(nr.Password, sl, nr.ContactName, nr.AdminUsername, nr.ContactEmail)
	}
}
