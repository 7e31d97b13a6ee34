package store

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MsgUsernameMissing = "Username is missing"
	MsgEmailMissing    = "email is missing"
	MsgEmailInvalid    = "email must be valid"
	MsgPasswordMissing = "password is missing"
)

// TextCodeValidation marks rejected user input.
const TextCodeValidation = "VALIDATION_FAILED"

// ValidateUser checks the fields a client must supply. Violations are
// returned as a single go-errors validation error listing every field.
func ValidateUser(u *User) error {
	if u == nil {
		return goerrors.New("user is required", goerrors.CategoryBadInput).WithCode(400)
	}

	err := validation.Errors{
		"username": validation.Validate(u.Username, validation.Required.Error(MsgUsernameMissing)),
		"email": validation.Validate(u.Email,
			validation.Required.Error(MsgEmailMissing),
			is.EmailFormat.Error(MsgEmailInvalid),
		),
		"password": validation.Validate(u.Password, validation.Required.Error(MsgPasswordMissing)),
	}.Filter()

	return toValidationError(err)
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "validation could not run")
	}

	names := make([]string, 0, len(verrs))
	for name := range verrs {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]goerrors.FieldError, 0, len(names))
	for _, name := range names {
		fields = append(fields, goerrors.FieldError{
			Field:   name,
			Message: verrs[name].Error(),
		})
	}

	return goerrors.NewValidation("user validation failed", fields...).
		WithCode(400).
		WithTextCode(TextCodeValidation)
}
