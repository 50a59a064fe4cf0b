package validator

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator plugs go-playground/validator into echo.Echo.Validator.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func (cv *CustomValidator) FormatValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			switch e.Tag() {
			case "required":
				out[field] = field + " is required"
			case "min":
				out[field] = field + " must be at least " + e.Param()
			case "max":
				out[field] = field + " must be at most " + e.Param()
			case "gte":
				out[field] = field + " must be greater than or equal to " + e.Param()
			case "lte":
				out[field] = field + " must be less than or equal to " + e.Param()
			case "oneof":
				out[field] = field + " must be one of: " + e.Param()
			case "uuid":
				out[field] = field + " must be a valid UUID"
			case "latitude", "longitude":
				out[field] = field + " must be a valid " + e.Tag()
			default:
				out[field] = field + " is invalid"
			}
		}
	}

	return out
}

// BindAndValidate binds the request body into dst and validates it with the
// echo instance's validator. Failures are returned as 400 HTTP errors.
func BindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		if cv, ok := c.Echo().Validator.(*CustomValidator); ok {
			if fields := cv.FormatValidationErrors(err); len(fields) > 0 {
				return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
					"message": "validation failed",
					"errors":  fields,
				})
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
