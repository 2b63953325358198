// Package identity handles the anonymous per-installation identifier.
package identity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// canonical is stricter than uuid.Parse, which also accepts braces and urn prefixes.
var canonical = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Valid reports whether id is a canonical random identifier.
func Valid(id string) bool {
	return canonical.MatchString(id)
}

// New returns a fresh random (version 4) identifier.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate identity: %w", err)
	}
	return strings.ToLower(id.String()), nil
}
