package server

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/railzwaylabs/payrail/internal/connector"
)

// registerValidators teaches gin's binding validator the request tags used by the API:
// json field names in errors and a "connector" tag that checks the registry.
func registerValidators(registry *connector.Registry) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	v.RegisterTagNameFunc(jsonFieldName)
	return v.RegisterValidation("connector", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		if name == "" {
			return true
		}
		_, err := registry.Convert(name)
		return err == nil
	})
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
