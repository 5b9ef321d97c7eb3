// Package validate wraps go-playground/validator with english messages that
// name fields by their json or yaml key
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc
)

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer wire names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"json", "yaml"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerBasename(v, trans)

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

// Issue is the first failing field of a validation run
type Issue struct {
	Field   string
	Message string
}

func (i *Issue) Error() string { return i.Message }

// Struct validates s and returns an *Issue for the first failing field, or
// nil when s is valid
func Struct(s any) error {
	err := Get().Validator.Struct(s)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return err
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Issue{Field: fe.Field(), Message: fe.Translate(Get().Translator)}
	}
	return err
}

// registerBasename adds the basename tag, which rejects values containing a
// path separator
func registerBasename(v *validator.Validate, trans ut.Translator) {
	_ = v.RegisterValidation("basename", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), `/\`)
	})
	_ = v.RegisterTranslation("basename", trans,
		func(ut ut.Translator) error {
			return ut.Add("basename", "{0} must not contain a path separator", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T("basename", fe.Field())
			return msg
		},
	)
}
