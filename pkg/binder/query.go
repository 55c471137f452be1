package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Query binds fields tagged `query:"name"` from the URL query string.
// Slices accept repeated keys and comma-separated values.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rv, err := structValue(v, ErrFailedToParseQuery)
		if err != nil {
			return err
		}
		values := r.URL.Query()
		return eachTagged(rv, "query", func(field reflect.Value, sf reflect.StructField, name string) error {
			vals, ok := values[name]
			if !ok || len(vals) == 0 {
				return nil
			}
			if err := setFieldValue(field, sf.Type, vals); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrFailedToParseQuery, name, err)
			}
			return nil
		})
	}
}
