package model

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the access level carried in a bearer token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// AllProjects in a token's project list grants every project.
const AllProjects = "*"

// MaxIdentifierLen bounds project, run and scenario identifiers.
const MaxIdentifierLen = 255

// RoleRank returns the numeric rank of a role (higher = more privileges).
// Unknown roles rank below reader.
func RoleRank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleWriter:
		return 2
	case RoleReader:
		return 1
	default:
		return 0
	}
}

// RoleAtLeast returns true if role r has at least the privileges of minRole.
func RoleAtLeast(r, minRole Role) bool {
	return RoleRank(r) >= RoleRank(minRole)
}

// ParseRole converts s to a known role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if RoleRank(r) == 0 {
		return "", fmt.Errorf("unknown role %q (want reader, writer or admin)", s)
	}
	return r, nil
}

// ProjectAllowed reports whether a token scoped to projects may access
// projectID.
func ProjectAllowed(projects []string, projectID string) bool {
	return slices.Contains(projects, AllProjects) || slices.Contains(projects, projectID)
}

// ValidateIdentifier checks a project, run or scenario identifier: 1-255
// bytes, no control characters, no commas, and no leading or trailing
// whitespace. Identifiers travel in comma separated query lists, so an ID
// that does not survive split-and-trim would select other records.
// name is used in the error message.
func ValidateIdentifier(name, id string) error {
	if len(id) == 0 {
		return fmt.Errorf("%s is required", name)
	}
	if len(id) > MaxIdentifierLen {
		return fmt.Errorf("%s must be at most %d characters", name, MaxIdentifierLen)
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x20 || c == 0x7f {
			return fmt.Errorf("%s contains a control character at position %d", name, i)
		}
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("%s must not start or end with whitespace", name)
	}
	if i := strings.IndexByte(id, ','); i >= 0 {
		return fmt.Errorf("%s contains a comma at position %d", name, i)
	}
	return nil
}
