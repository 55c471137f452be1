package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Path binds fields tagged `path:"name"` using extractor, typically chi.URLParam.
func Path(extractor func(r *http.Request, key string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: nil extractor", ErrFailedToParsePath)
		}
		rv, err := structValue(v, ErrFailedToParsePath)
		if err != nil {
			return err
		}
		return eachTagged(rv, "path", func(field reflect.Value, sf reflect.StructField, name string) error {
			value := extractor(r, name)
			if value == "" {
				return nil
			}
			if err := setFieldValue(field, sf.Type, []string{value}); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrFailedToParsePath, name, err)
			}
			return nil
		})
	}
}
