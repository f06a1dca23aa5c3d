package group

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
)

var (
	ruleOpTag  = "ruleop"
	ruleOpText = "operator must be one of: >=, <= or ="

	statusTag  = "groupstatus"
	statusText = "invalid group status"
)

// InitValidators registers the group validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(ruleOpTag, func(fl validator.FieldLevel) bool {
		return IsOperator(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, ruleOpTag, ruleOpText)

	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return IsStatus(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
