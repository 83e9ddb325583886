package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	processTypeTag  = "process_type"
	processTypeText = "{0} must be one of VALORACION, PROCEDIMIENTO"
	accentFolder    = strings.NewReplacer("Ó", "O", "ó", "O")

	questionTypeTag  = "question_type"
	questionTypeText = "{0} must be one of text, single, multiple"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

// Validator validates request payloads and renders field errors in English.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a validator that reports json field names.
func New() *Validator {
	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	_ = validate.RegisterValidation(processTypeTag, func(fl validator.FieldLevel) bool {
		switch accentFolder.Replace(strings.ToUpper(strings.TrimSpace(fl.Field().String()))) {
		case "VALORACION", "PROCEDIMIENTO":
			return true
		}
		return false
	})
	_ = validate.RegisterValidation(questionTypeTag, func(fl validator.FieldLevel) bool {
		switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
		case "text", "single", "multiple":
			return true
		}
		return false
	})

	v := &Validator{validate: validate, translator: translator}
	v.registerTranslation(processTypeTag, processTypeText, false)
	v.registerTranslation(questionTypeTag, questionTypeText, false)
	v.registerTranslation(requiredTag, requiredText, true)
	return v
}

func (v *Validator) registerTranslation(tag, text string, override bool) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Engine exposes the underlying validator so it can replace gin's binding engine.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Struct validates s and returns field errors keyed by json name.
func (v *Validator) Struct(s interface{}) map[string]string {
	return v.Fields(v.validate.Struct(s))
}

// Fields converts validator errors into a field -> message map. Errors that are
// not validation errors yield nil.
func (v *Validator) Fields(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = fe.StructField()
		}
		fields[name] = fe.Translate(v.translator)
	}
	return fields
}
