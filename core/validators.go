package core

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	statusTag  = "status"
	statusText = "invalid status, expected one of Pending, Approved or Rejected"

	degreeTag  = "degree"
	degreeText = "invalid degree, expected one of BachelorDegree, MasterDegree or Doctorate"

	rutTag   = "rut"
	rutText  = "invalid RUT"
	rutRegex = regexp.MustCompile(`^(\d{1,8})-([\dkK])$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Dates are validated as their time.Time, the zero Date as a missing value.
	validate.RegisterCustomTypeFunc(dateValue, Date{})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(statusTag, statusValidation)
	RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(degreeTag, degreeValidation)
	RegisterCustomTranslation(validate, translator, degreeTag, degreeText)

	_ = validate.RegisterValidation(rutTag, rutValidation)
	RegisterCustomTranslation(validate, translator, rutTag, rutText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func dateValue(v reflect.Value) interface{} {
	d, ok := v.Interface().(Date)
	if !ok || d.IsZero() {
		return nil
	}
	return d.Time
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// statusValidation accepts canonical statuses only, inputs must go through ParseStatus first.
func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}

func degreeValidation(fl validator.FieldLevel) bool {
	return Degree(fl.Field().String()).Valid()
}

func rutValidation(fl validator.FieldLevel) bool {
	return ValidRUT(fl.Field().String())
}

// ValidRUT checks a chilean RUT ("12.345.678-5" or "12345678-5") against its check digit.
func ValidRUT(rut string) bool {
	rut = strings.ReplaceAll(strings.TrimSpace(rut), ".", "")
	m := rutRegex.FindStringSubmatch(rut)
	if m == nil {
		return false
	}

	sum, factor := 0, 2
	body := m[1]
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}

	var want string
	switch dv := 11 - sum%11; dv {
	case 11:
		want = "0"
	case 10:
		want = "K"
	default:
		want = strconv.Itoa(dv)
	}
	return strings.ToUpper(m[2]) == want
}
