package semver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName is returned for package names that cannot be used safely.
var ErrInvalidName = errors.New("invalid package name")

// maxNameLen matches the registry's documented package name limit.
const maxNameLen = 214

// ValidateName checks that a package name is safe to use as a cache path
// component. The rules are deliberately conservative; registry-specific
// naming conventions are the registry's problem, this only rejects names
// that could escape the store or break filesystem entries.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLen)
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.Contains(name, "..") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q contains path traversal", ErrInvalidName, name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q contains control characters", ErrInvalidName, name)
		}
	}
	return nil
}
