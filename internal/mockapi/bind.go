package mockapi

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	setupOnce sync.Once
	trans     ut.Translator
)

// setupValidator registers English translations on Gin's binding engine and
// makes validation errors use JSON field names. Idempotent.
func setupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)
	})
}

// bind binds and validates the request body into dst. Returns nil on
// success or a field → messages map matching the envelope's errors shape.
func bind(c *gin.Context, dst any) map[string][]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return translateErrors(err)
	}
	return nil
}

func translateErrors(err error) map[string][]string {
	fields := make(map[string][]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = append(fields[fe.Field()], fe.Translate(trans))
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = []string{err.Error()}
	return fields
}
