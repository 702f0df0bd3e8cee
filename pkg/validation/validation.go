package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"classifieds/pkg/utils"
)

// roleTags are the role values a profile may carry.
var roleTags = map[string]bool{"user": true, "moderator": true, "super-moderator": true}

// New returns a validator with the marketplace tags registered. Field errors
// are keyed by json name.
func New() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("listingname", func(fl validator.FieldLevel) bool {
		return utils.IsListingName(fl.Field().String())
	})
	_ = v.RegisterValidation("nospam", func(fl validator.FieldLevel) bool {
		return !utils.LooksLikeSpam(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return roleTags[strings.ToLower(strings.TrimSpace(fl.Field().String()))]
	})

	return v
}

// FieldErrors turns validator output into one message per field.
func FieldErrors(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = message(field, fe.Tag(), fe.Param())
	}
	return fields
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + param + " characters"
	case "max":
		return field + " must be at most " + param + " characters"
	case "gt":
		return field + " must be greater than " + param
	case "lte":
		return field + " must be at most " + param
	case "oneof":
		return field + " must be one of: " + param
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "listingname":
		return field + " must contain a letter and only letters, digits, spaces or basic punctuation"
	case "nospam":
		return field + " looks like spam"
	case "role":
		return field + " must be user, moderator or super-moderator"
	default:
		return field + " is invalid"
	}
}
