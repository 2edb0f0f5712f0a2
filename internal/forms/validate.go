package forms

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// labels overrides the display name derived from a struct field. Ids keep
// their wire names.
var labels = map[string]string{
	"DoctorID":      "doctorId",
	"AppointmentID": "appointment_id",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register installs json field naming and the notblank and email_address
// tags on v. The mock API calls it on gin's binding engine.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonName)
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		return err
	}
	return v.RegisterValidation("email_address", emailAddress)
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func emailAddress(fl validator.FieldLevel) bool {
	return emailPattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

func check(form any) error {
	return Translate(validate.Struct(form))
}

// Translate converts validator failures into a *ValidationError keyed by
// json field name, in struct order. Other errors pass through unchanged.
func Translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var v ValidationError
	for _, fe := range fieldErrs {
		v.Add(fe.Field(), message(fe))
	}
	return v.orNil()
}

func message(fe validator.FieldError) string {
	label := fe.StructField()
	if l, ok := labels[label]; ok {
		label = l
	}
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "email", "email_address":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be %s", label, strings.Join(strings.Fields(fe.Param()), " or "))
	}
	return label + " is invalid"
}
