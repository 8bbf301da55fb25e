package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	slugPattern         = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	referralCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,16}$`)
)

// FieldError is a single failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":     "is required",
	"email":        "must be a valid email",
	"min":          "is too short",
	"max":          "is too long",
	"oneof":        "has an unsupported value",
	"slug":         "must contain lower-case letters, digits and dashes",
	"referralcode": "must be 4-16 letters or digits",
	"gtfield":      "must be after the related field",
}

// RegisterGin installs the custom rules on gin's binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return Register(v)
}

// Register adds custom tags and makes errors report JSON field names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("referralcode", func(fl validator.FieldLevel) bool {
		return referralCodePattern.MatchString(fl.Field().String())
	})
}

// IsSlug reports whether s is a valid clinic slug.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Describe flattens validator errors into field messages; ok is false for other errors.
func Describe(err error) ([]FieldError, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = "failed " + e.Tag() + " validation"
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out, true
}
