package scanner

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"CryptoScreener/internal/model"
)

// ErrInvalidParameters is matched by every parameter validation failure.
var ErrInvalidParameters = errors.New("invalid scan parameters")

// Problem describes one rejected parameter.
type Problem struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a ScanParameters value.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return ErrInvalidParameters.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidParameters }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("timeframe", func(fl validator.FieldLevel) bool {
		return model.Timeframe(fl.Field().String()).IsValid()
	})
	return v
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// ValidateParameters checks p without applying defaults.
func ValidateParameters(p model.ScanParameters) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	problems := make([]Problem, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, Problem{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fe.Field(),
			Message: problemMessage(fe),
		})
	}
	return &ValidationError{Problems: problems}
}

func problemMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gtfield":
		other := fe.Param()
		if sf, ok := reflect.TypeOf(model.ScanParameters{}).FieldByName(other); ok {
			other = jsonName(sf)
		}
		return fmt.Sprintf("%s must be greater than %s", field, other)
	case "timeframe":
		names := make([]string, 0, len(model.Timeframes()))
		for _, tf := range model.Timeframes() {
			names = append(names, string(tf))
		}
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(names, ", "))
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
