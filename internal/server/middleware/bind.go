package middleware

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/cstockton/go-conv"
	"github.com/labstack/echo/v4"
)

// BindAndValidate binds the request body, path params, query and headers into
// req, then validates it. Invalid requests are answered with 400.
func BindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}

	if err := bindHeader(c.Request().Header, req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

// bindHeader decodes http headers into fields tagged `header:"<name>"`.
// Absent headers leave the field untouched.
func bindHeader(header http.Header, dst any) error {
	getValueFn := func(tagValue string) (any, bool) {
		v := header.Get(tagValue)
		return v, v != ""
	}

	return bindStruct(dst, "header", getValueFn)
}

// bindStruct decodes into the fields of dst carrying tagName.
// dst must be a pointer to a struct.
func bindStruct(dst any, tagName string, getValueFn func(tagValue string) (any, bool)) error {
	ptr := reflect.ValueOf(dst)
	if ptr.Kind() != reflect.Ptr {
		return fmt.Errorf("non-pointer passed to bind")
	}

	indirect := reflect.Indirect(ptr)
	structType := indirect.Type()
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("cannot bind into %s", structType)
	}

	for i := 0; i < structType.NumField(); i++ {
		structField := structType.Field(i)
		tagValue := structField.Tag.Get(tagName)
		if tagValue == "-" || tagValue == "" {
			continue
		}

		value, ok := getValueFn(tagValue)
		if !ok {
			continue
		}
		field := indirect.Field(i)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			field = field.Elem()
		}
		if err := conv.Infer(field, value); err != nil {
			return fmt.Errorf("cannot parse %s as %s from: %#v / %s",
				tagValue, field.Type(), value, err)
		}
	}

	return nil
}
