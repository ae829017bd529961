package school

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
)

var (
	fairDatesTag  = "fairdates"
	fairDatesText = "a fair cannot end before it starts"
)

// InitValidators registers the school validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(fairStructValidation, NewFair{})
	core.RegisterCustomTranslation(validate, translator, fairDatesTag, fairDatesText)
}

// fairStructValidation checks that NewFair.EndsOn is not before NewFair.StartsOn
func fairStructValidation(sl validator.StructLevel) {
	if nf, ok := sl.Current().Interface().(NewFair); ok {
		if !validFairDates(nf.StartsOn, nf.EndsOn) {
			sl.ReportError(nf.EndsOn, "ends_on", "EndsOn", fairDatesTag, "")
		}
	}
}

func validFairDates(startsOn, endsOn time.Time) bool {
	if startsOn.IsZero() || endsOn.IsZero() {
		return true
	}
	return !endsOn.Before(startsOn)
}
