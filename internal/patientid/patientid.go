// Package patientid derives patient identifiers from folder names.
package patientid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when a folder name carries no usable identifier.
var ErrInvalidID = errors.New("invalid patient id")

// Parse extracts the patient ID from a folder name. Accepted forms are a bare
// integer ("1234") and an integer followed by a dash and free text
// ("1234-Maria Silva"). IDs must be positive.
func Parse(name string) (int64, error) {
	trimmed := strings.TrimSpace(name)
	if id, err := parsePositive(trimmed); err == nil {
		return id, nil
	}
	head, _, found := strings.Cut(trimmed, "-")
	if found {
		if id, err := parsePositive(strings.TrimSpace(head)); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidID, name)
}

func parsePositive(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
