package certificate

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/trezcool/certstudio/core"
)

var (
	designModeTag  = "designmode"
	designModeText = "must be one of freeform, templated"

	duplicateTokenText = "each token can only be defined once"
)

// InitValidators registers the design validation tags on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(designModeTag, designModeValidation)
	core.RegisterCustomTranslation(validate, translator, designModeTag, designModeText)
}

// designModeValidation checks that the field is a known DesignMode
func designModeValidation(fl validator.FieldLevel) bool {
	return DesignMode(fl.Field().String()).IsValid()
}

// ValidatePlaceholders checks every definition and the uniqueness of their tokens.
// Tokens are normalized to their bare name.
func ValidatePlaceholders(validate *validator.Validate, ps Placeholders) error {
	for i := range ps {
		ps[i].Label = core.CleanString(ps[i].Label)
		ps[i].Token = TokenName(ps[i].Token)
		if err := validate.Struct(ps[i]); err != nil {
			return err
		}
	}
	tokens := lo.Map(ps, func(p PlaceholderDefinition, _ int) string { return p.Token })
	if dups := lo.FindDuplicates(tokens); len(dups) > 0 {
		idx := lo.LastIndexOf(tokens, dups[0])
		return core.NewValidationError(nil, core.FieldError{
			Field: "placeholders[" + strconv.Itoa(idx) + "].token",
			Error: duplicateTokenText,
		})
	}
	return nil
}
