package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	commonerrors "github.com/leafybank/backend/internal/common/errors"
	"github.com/leafybank/backend/internal/common/objectid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return objectid.IsValid(fl.Field().String())
	})
	return v
}

// DecodeAndValidate decodes the JSON body into dst and checks its validate
// tags. Both failures are reported as ErrInvalidPayload.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := DecodeJSON(r, dst); err != nil {
		return commonerrors.ErrInvalidPayload.WithCause(err)
	}
	return ValidateStruct(dst)
}

func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return commonerrors.ErrInvalidPayload.WithCause(err)
	}
	return nil
}

func ParseObjectID(s string) (objectid.ID, error) {
	id, err := objectid.Parse(s)
	if err != nil {
		return "", commonerrors.ErrInvalidIdentifier.WithCause(err)
	}
	return id, nil
}

// validationDetails maps each failed field to the rule it broke.
func validationDetails(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	return details
}
