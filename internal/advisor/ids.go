package advisor

import (
	"regexp"

	"github.com/google/uuid"

	"immigration-advisor/internal/common/errors"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsValidProgramID accepts a UUID or a 24-character hex object id.
func IsValidProgramID(id string) bool {
	if objectIDPattern.MatchString(id) {
		return true
	}
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func ValidateProgramID(id string) error {
	if !IsValidProgramID(id) {
		return errors.NewInvalidProgramIDError(id)
	}
	return nil
}
