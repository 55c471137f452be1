package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/pkg/slug"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-F]{6}$`)

// Validator wraps a configured *playground.Validate. It is safe for
// concurrent use.
type Validator struct {
	validate *playground.Validate
}

// New returns a Validator with JSON field names and the custom tags.
func New() *Validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	must(v.RegisterValidation("subdomain", func(fl playground.FieldLevel) bool {
		return slug.ValidateSubdomain(fl.Field().String()) == nil
	}))
	must(v.RegisterValidation("hexcolor6", func(fl playground.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("objectid", func(fl playground.FieldLevel) bool {
		_, err := bson.ObjectIDFromHex(fl.Field().String())
		return err == nil
	}))

	return &Validator{validate: v}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s. Field failures come back as handler.ValidationError;
// any other error (a non-struct argument, for instance) is returned as is.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := handler.NewValidationError()
	for _, fe := range fieldErrs {
		out.Add(fieldPath(fe), message(fe))
	}
	return out
}

// Validate is Struct with the signature expected by handler.WithValidation.
func (v *Validator) Validate(s any) error {
	return v.Struct(s)
}

// fieldPath drops the root struct name from the namespace, turning
// "createRequest.contact.email" into "contact.email".
func fieldPath(fe playground.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if isText(fe.Kind()) {
			return fmt.Sprintf("must have at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if isText(fe.Kind()) {
			return fmt.Sprintf("must have at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "url", "http_url":
		return "must be a valid URL"
	case "subdomain":
		return "must be 3-30 lowercase letters, digits or internal hyphens and not reserved"
	case "hexcolor6":
		return "must be a color like #1A2B3C"
	case "objectid":
		return "must be a valid id"
	case "dive":
		return "is invalid"
	}
	return "failed " + fe.Tag() + " validation"
}

func isText(k reflect.Kind) bool {
	return k == reflect.String || k == reflect.Slice || k == reflect.Map || k == reflect.Array
}
