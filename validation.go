package auth

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 16
)

// ValidateStringEquals checks a field against str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// passwordRules applies to every password a principal chooses.
func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(PasswordMinLength, PasswordMaxLength),
	}
}

// ValidationError converts ozzo field errors into a go-errors validation
// error. Other errors are returned untouched.
func ValidationError(err error, message string) error {
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if !errors.As(err, &fields) {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fieldErrors := make([]goerrors.FieldError, 0, len(keys))
	for _, k := range keys {
		if fields[k] == nil {
			continue
		}
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   k,
			Message: fields[k].Error(),
		})
	}

	return goerrors.NewValidation(message, fieldErrors...).
		WithCode(goerrors.CodeBadRequest)
}
