// Package validator validates structs by the "validate" field tags.
package validator

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// Validate checks the value against the "validate" struct tags,
// error messages are aggregated and prefixed by the field path.
func Validate(ctx context.Context, value any) error {
	validate, translator := newValidator()
	if err := validate.StructCtx(ctx, value); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return processValidateError(validationErrs, translator)
		}
		panic(err)
	}
	return nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()

	// Register default EN translator
	enLocale := en.New()
	enTranslator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(errors.New("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, enTranslator); err != nil {
		panic(errors.Errorf("translator was not registered: %w", err))
	}

	// Use configKey field name in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("configKey"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return validate, enTranslator
}

func processValidateError(err validator.ValidationErrors, translator ut.Translator) error {
	result := errors.NewMultiError()
	for _, e := range err {
		// Remove struct name (first part) from the namespace
		namespace := ""
		if parts := strings.Split(e.Namespace(), "."); len(parts) > 2 {
			namespace = strings.Join(parts[1:len(parts)-1], ".") + "."
		}
		result.Append(errors.New(fmt.Sprintf("%s%s", namespace, e.Translate(translator))))
	}
	return result.ErrorOrNil()
}
