package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Init registers the custom tags on gin's validator engine.
func Init() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return Register(v)
}

// Register adds the "eth_addr" tag to v.
func Register(v *validator.Validate) error {
	return v.RegisterValidation("eth_addr", func(fl validator.FieldLevel) bool {
		return addressPattern.MatchString(fl.Field().String())
	})
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			param := e.Param()

			switch e.Tag() {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
			case "eth_addr":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is not a valid address", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s", field, param))
			case "gt":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be greater than %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s failed on %s", field, e.Tag()))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "invalid request"
}
