package binder

import (
	"encoding"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// Path creates a path parameter binder using extractor, typically chi.URLParam.
//
// Fields are matched by the `path:"name"` tag; `path:"-"` and untagged
// fields are skipped. Supported field types are strings, integers, bools and
// anything implementing encoding.TextUnmarshaler, such as uuid.UUID.
//
//	type GetRequest struct {
//		ID uuid.UUID `path:"id"`
//	}
//
//	r.Get("/notifications/{id}", handler.Wrap(get, handler.WithBinders[GetRequest](binder.Path(chi.URLParam))))
func Path(extractor func(r *http.Request, key string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrFailedToParsePath)
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a non-nil pointer to struct", ErrFailedToParsePath)
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rv.NumField() {
			field := rv.Field(i)
			sf := rt.Field(i)
			if !field.CanSet() {
				continue
			}

			name, _, _ := strings.Cut(sf.Tag.Get("path"), ",")
			if name == "" || name == "-" {
				continue
			}

			value := extractor(r, name)
			if value == "" {
				continue
			}
			if err := setField(field, value); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrFailedToParsePath, name, err)
			}
		}
		return nil
	}
}

func setField(field reflect.Value, value string) error {
	if field.Addr().Type().Implements(textUnmarshalerType) {
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
