// Package identifier validates and normalizes Oracle object identifiers
// (table and schema names) before they are interpolated into generated SQL
// for describe_table and list_tables.
package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

const maxLength = 30

var validIdentifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*$`)

// Validate rejects empty, over-length, or non-conforming identifiers and
// returns the uppercased form Oracle's data dictionary expects.
func Validate(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("identifier must not be empty")
	}
	if len(name) > maxLength {
		return "", fmt.Errorf("identifier %q exceeds maximum length of %d", name, maxLength)
	}
	if !validIdentifier.MatchString(name) {
		return "", fmt.Errorf("identifier %q contains invalid characters", name)
	}
	return strings.ToUpper(name), nil
}
