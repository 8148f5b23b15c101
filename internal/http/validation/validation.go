package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldErrors map[string]string

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonTagName)
	}
}

// jsonTagName makes validator report fields by their json names, so
// nested errors come out as "shipping_address.city".
func jsonTagName(f reflect.StructField) string {
	name := f.Tag.Get("json")
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	if name == "-" {
		return ""
	}
	if name == "" {
		name = f.Tag.Get("form")
		if i := strings.Index(name, ","); i >= 0 {
			name = name[:i]
		}
	}
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

// FromBindError converts a bind/validation error into a field -> message map.
func FromBindError(err error) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fieldKey(fe.Namespace())] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		out[ute.Field] = "Invalid value type."
		return out
	}

	out["_"] = "Request body is invalid."
	return out
}

// fieldKey drops the root struct name from a validator namespace.
func fieldKey(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required", "required_without":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Must be at least " + param + "."
	case "max":
		return "Must be at most " + param + "."
	case "gte":
		return "Must be greater than or equal to " + param + "."
	case "lte":
		return "Must be less than or equal to " + param + "."
	case "len":
		return "Must be exactly " + param + " characters."
	case "oneof":
		return "Must be one of: " + param + "."
	case "iso3166_1_alpha2":
		return "Enter a two-letter country code."
	case "uuid":
		return "Must be a valid id."
	default:
		return "Invalid value."
	}
}
