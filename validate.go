package formulacore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

// sharedValidator returns the singleton validator with the engine's custom
// tags registered on first use.
func sharedValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("cellref", func(fl validator.FieldLevel) bool {
			return isPlausibleCellAddress(fl.Field().String())
		})
		_ = validate.RegisterValidation("sheetname", func(fl validator.FieldLevel) bool {
			return isPlausibleSheetName(fl.Field().String())
		})
	})
	return validate
}

// isPlausibleCellAddress checks the coarse shape of a host-supplied address
// string ("A1", "Sheet1!A1", "'My Sheet'!A1:B2") before it ever reaches
// splitSheetQualifier/parseA1Cell, so a malformed address is rejected with an
// InvalidArgument error carrying the validator's message rather than a
// generic parse failure.
func isPlausibleCellAddress(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, _, rest := splitSheetQualifier(s)
	if rest == "" {
		return false
	}
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		left, right := rest[:idx], rest[idx+1:]
		_, lok := parseA1Cell(left)
		_, rok := parseA1Cell(right)
		return lok && rok
	}
	_, ok := parseA1Cell(rest)
	return ok
}

// isPlausibleSheetName rejects names the worksheet table would otherwise
// accept but Excel itself forbids: empty, over-length, or containing any
// of []:*?/\\.
func isPlausibleSheetName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 31 {
		return false
	}
	return !strings.ContainsAny(name, "[]:*?/\\")
}

// addressInput and sheetNameInput let callers get a single user-friendly
// validation error message out of host-supplied strings before they reach
// the workbook's address-resolution path.
type addressInput struct {
	Address string `validate:"required,cellref"`
}

type sheetNameInput struct {
	Name string `validate:"required,sheetname"`
}

func validateAddress(address string) error {
	if err := sharedValidator().Struct(addressInput{Address: address}); err != nil {
		return errInvalidArgument("validateAddress", "invalid cell address %q: %s", address, describeValidationError(err))
	}
	return nil
}

func validateSheetName(name string) error {
	if err := sharedValidator().Struct(sheetNameInput{Name: name}); err != nil {
		return errInvalidArgument("validateSheetName", "invalid sheet name %q: %s", name, describeValidationError(err))
	}
	return nil
}

func describeValidationError(err error) string {
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "invalid input"
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "cellref":
		return "not a recognizable cell or range reference"
	case "sheetname":
		return "must be 1-31 characters and not contain []:*?/\\"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
