package lookup

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateInput trims raw and rejects it when nothing is left
// Whether the text is a resolvable IP or domain is left to the backend
func ValidateInput(raw string) (string, error) {
	query := strings.TrimSpace(raw)
	if err := validate.Var(query, "required"); err != nil {
		return "", ErrEmptyInput
	}
	return query, nil
}
