package user

import (
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"
)

// RegisterValidators adds this package's custom validation tags.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)
}

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	all := make([]string, len(AllRoles))
	copy(all, AllRoles)
	sort.Strings(all)
	for _, role := range roles {
		idx := sort.SearchStrings(all, role)
		if idx >= len(all) || all[idx] != role {
			return false
		}
	}
	return true
}
