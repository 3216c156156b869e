package validation

import (
	"reflect"
	"strings"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags & texts
	roleTag  = "role"
	roleText = "{0} must be one of student, teacher or admin"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(roleTag, roleValidation)
	registerTranslation(roleTag, roleText, false)
	registerTranslation(requiredTag, requiredText, true)
}

func registerTranslation(tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// roleValidation accepts a model.Role, a string, or a slice of either.
func roleValidation(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		return model.Role(f.String()).Valid()
	case reflect.Slice, reflect.Array:
		for i := 0; i < f.Len(); i++ {
			if !model.Role(f.Index(i).String()).Valid() {
				return false
			}
		}
		return true
	}
	return false
}

// Check validates v's struct tags and reports failures as an
// *api.ValidationError with one entry per field.
func Check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	ve := &api.ValidationError{Message: "invalid input"}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, api.FieldError{
			Field: fe.Field(),
			Error: fe.Translate(translator),
		})
	}
	return ve
}
