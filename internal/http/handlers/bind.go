package handlers

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds and validates a JSON body. On failure it writes the
// error envelope with one entry per failed field and returns false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", bindErrorMessages(err, out))

		return false
	}

	return true
}

// BindForm is the multipart/form counterpart used by the upload endpoints.
func BindForm(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBind(out)

	if err != nil {
		RespondBadRequest(ctx, "Invalid form data", bindErrorMessages(err, out))

		return false
	}

	return true
}

func bindErrorMessages(err error, out interface{}) []string {
	var validatorErrors validator.ValidationErrors

	if errors.As(err, &validatorErrors) {
		msgs := make([]string, 0, len(validatorErrors))

		for _, fieldError := range validatorErrors {
			field := wireFieldName(out, fieldError.StructField())
			msgs = append(msgs, field+" "+validationMessage(fieldError.Tag(), fieldError.Param()))
		}
		return msgs
	}

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return []string{"request body is not valid JSON"}
	}

	var typeError *json.UnmarshalTypeError

	if errors.As(err, &typeError) {
		field := typeError.Field
		if field == "" {
			field = "body"
		}
		return []string{field + " must be of type " + typeError.Type.String()}
	}

	return []string{err.Error()}
}

// wireFieldName maps a struct field back to its json or form tag so
// error messages use the names clients actually sent.
func wireFieldName(out interface{}, structField string) string {
	t := reflect.TypeOf(out)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return structField
	}

	sf, ok := t.FieldByName(structField)

	if !ok {
		return structField
	}

	for _, tagName := range []string{"json", "form"} {
		tag := sf.Tag.Get(tagName)

		name, _, _ := strings.Cut(tag, ",")

		if name != "" && name != "-" {
			return name
		}
	}

	return structField
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	default:
		if param != "" {
			return "failed " + rule + " validation (" + param + ")"
		}
		return "failed " + rule + " validation"
	}
}
