// Package semver parses npm-style version specifiers and resolves them
// against the versions a registry actually publishes.
//
// A specifier is a single comparator ("1.2.3", "^4.17.0", ">=1.0", "1.x"),
// not a full range expression; each dependency edge carries exactly one.
package semver

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Latest is the sentinel version string meaning "newest published version".
const Latest = "latest"

var (
	// ErrInvalidNotation is returned when a version specifier cannot be parsed.
	ErrInvalidNotation = errors.New("invalid version notation")

	// ErrInvalidVersion is returned when no published version satisfies a
	// specifier.
	ErrInvalidVersion = errors.New("invalid or unknown package version")
)

// Op is a comparator operator.
type Op int

const (
	OpExact Op = iota
	OpGreater
	OpGreaterEq
	OpLess
	OpLessEq
	OpTilde
	OpCaret
	OpWildcard
)

// Comparator is one parsed version specifier. Minor and Patch are nil when
// the specifier leaves them out (e.g. "^1" or "1.2"); such partial
// comparators cannot be resolved without the full version list.
type Comparator struct {
	Op    Op
	Major uint64
	Minor *uint64
	Patch *uint64

	// anyMajor marks a bare wildcard ("*", "x"), which pins nothing at all,
	// as opposed to "0.x" which pins the major to zero.
	anyMajor bool
}

// ParsePackageArg splits a "name@specifier" token into the package name and
// its comparator. A missing specifier or a literal "latest" yields a nil
// comparator, meaning latest/unconstrained. Scoped names ("@scope/pkg") are
// supported.
func ParsePackageArg(token string) (string, *Comparator, error) {
	name, raw := splitArg(token)
	if err := ValidateName(name); err != nil {
		return "", nil, err
	}
	if raw == "" || raw == Latest {
		return name, nil, nil
	}
	c, err := ParseComparator(raw)
	if err != nil {
		return "", nil, err
	}
	return name, c, nil
}

func splitArg(token string) (name, raw string) {
	if strings.HasPrefix(token, "@") {
		// Scoped package: the leading @ belongs to the name.
		if i := strings.Index(token[1:], "@"); i >= 0 {
			return token[:i+1], token[i+2:]
		}
		return token, ""
	}
	if i := strings.Index(token, "@"); i >= 0 {
		return token[:i], token[i+1:]
	}
	return token, ""
}

// ParseComparator parses a single npm-style comparator string.
func ParseComparator(raw string) (*Comparator, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return &Comparator{Op: OpWildcard}, nil
	}

	c := &Comparator{Op: OpExact}
	switch {
	case strings.HasPrefix(s, ">="):
		c.Op, s = OpGreaterEq, s[2:]
	case strings.HasPrefix(s, "<="):
		c.Op, s = OpLessEq, s[2:]
	case strings.HasPrefix(s, ">"):
		c.Op, s = OpGreater, s[1:]
	case strings.HasPrefix(s, "<"):
		c.Op, s = OpLess, s[1:]
	case strings.HasPrefix(s, "="):
		s = s[1:]
	case strings.HasPrefix(s, "~"):
		c.Op, s = OpTilde, s[1:]
	case strings.HasPrefix(s, "^"):
		c.Op, s = OpCaret, s[1:]
	}

	s = strings.TrimSpace(s)
	if s == "" || s == "*" || s == "x" || s == "X" {
		c.Op = OpWildcard
		c.anyMajor = true
		return c, nil
	}

	parts := strings.SplitN(s, ".", 3)

	major, err := parseSegment(parts[0])
	if err != nil {
		return nil, err
	}
	if major == nil {
		c.Op = OpWildcard
		c.anyMajor = true
		return c, nil
	}
	c.Major = *major

	if len(parts) > 1 {
		minor, err := parseSegment(parts[1])
		if err != nil {
			return nil, err
		}
		if minor == nil {
			// "1.x": a wildcard pinned to the major.
			if c.Op == OpExact {
				c.Op = OpWildcard
			}
			return c, nil
		}
		c.Minor = minor
	}

	if len(parts) > 2 {
		patch, err := parseSegment(trimMeta(parts[2]))
		if err != nil {
			return nil, err
		}
		if patch == nil {
			if c.Op == OpExact {
				c.Op = OpWildcard
			}
			return c, nil
		}
		c.Patch = patch
	}

	return c, nil
}

// parseSegment parses one dotted segment. Wildcard segments return nil.
func parseSegment(s string) (*uint64, error) {
	if s == "x" || s == "X" || s == "*" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNotation, s)
	}
	return &n, nil
}

// trimMeta drops prerelease/build suffixes from a patch segment ("3-beta.1").
func trimMeta(s string) string {
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		return s[:i]
	}
	return s
}

// ResolveFull resolves c to a concrete version string without consulting the
// registry. A nil comparator resolves to "latest". Greater, GreaterEq and
// Wildcard resolve optimistically to "latest" since the newest version always
// satisfies them. Exact, LessEq, Tilde and Caret with a fully specified
// major.minor.patch resolve to that literal. Everything else — a missing
// minor or patch, or a Less comparator — reports ok=false, meaning the full
// version list must be fetched and ResolvePartial applied.
func (c *Comparator) ResolveFull() (version string, ok bool) {
	if c == nil {
		return Latest, true
	}
	switch c.Op {
	case OpGreater, OpGreaterEq, OpWildcard:
		return Latest, true
	}
	if c.Minor == nil || c.Patch == nil {
		return "", false
	}
	switch c.Op {
	case OpExact, OpLessEq, OpTilde, OpCaret:
		return fmt.Sprintf("%d.%d.%d", c.Major, *c.Minor, *c.Patch), true
	}
	// OpLess: picking "the newest version below X" needs the sorted list.
	return "", false
}

// ResolvePartial picks a concrete version from the published version list.
// It should only be called when ResolveFull reported ok=false.
//
// The list is sorted lexicographically, not by semver precedence ("10.0.0"
// sorts before "2.0.0"). This mirrors the registry-normalization behavior
// the lockfile format was built around and is a documented approximation.
func ResolvePartial(c *Comparator, available []string) (string, error) {
	if len(available) == 0 {
		return "", fmt.Errorf("%w: no published versions", ErrInvalidVersion)
	}

	versions := make([]string, len(available))
	copy(versions, available)
	sort.Strings(versions)

	if c == nil {
		return versions[len(versions)-1], nil
	}

	if c.Op == OpLess && c.Minor != nil && c.Patch != nil {
		target := fmt.Sprintf("%d.%d.%d", c.Major, *c.Minor, *c.Patch)
		idx := -1
		for i, v := range versions {
			if v == target {
				idx = i
				break
			}
		}
		if idx <= 0 {
			return "", fmt.Errorf("%w: no version below %s", ErrInvalidVersion, target)
		}
		return versions[idx-1], nil
	}

	// Scan in reverse so the newest compatible version wins.
	for i := len(versions) - 1; i >= 0; i-- {
		if c.Match(ParseLoose(versions[i])) {
			return versions[i], nil
		}
	}

	return "", fmt.Errorf("%w: no version matches specifier", ErrInvalidVersion)
}

var zeroVersion = goversion.Must(goversion.NewVersion("0.0.0"))

// ParseLoose parses a version string, substituting 0.0.0 for anything the
// registry published that is not parseable.
func ParseLoose(s string) *goversion.Version {
	v, err := goversion.NewVersion(s)
	if err != nil {
		return zeroVersion
	}
	return v
}

// Match reports whether v satisfies the comparator. A nil comparator
// matches everything.
func (c *Comparator) Match(v *goversion.Version) bool {
	if c == nil {
		return true
	}

	lower := c.bound(c.Major, c.Minor, c.Patch)

	switch c.Op {
	case OpExact:
		return c.segmentsEqual(v)
	case OpGreater:
		return v.GreaterThan(lower)
	case OpGreaterEq:
		return v.GreaterThanOrEqual(lower)
	case OpLess:
		return v.LessThan(lower)
	case OpLessEq:
		return v.LessThanOrEqual(lower)
	case OpTilde:
		return v.GreaterThanOrEqual(lower) && v.LessThan(c.tildeUpper())
	case OpCaret:
		return v.GreaterThanOrEqual(lower) && v.LessThan(c.caretUpper())
	case OpWildcard:
		return c.segmentsEqual(v)
	}
	return false
}

// segmentsEqual compares only the segments the specifier pinned, so "1.2"
// matches any 1.2.x and a bare wildcard matches everything.
func (c *Comparator) segmentsEqual(v *goversion.Version) bool {
	if c.anyMajor {
		return true
	}
	segs := v.Segments64()
	if uint64(segs[0]) != c.Major {
		return false
	}
	if c.Minor != nil && uint64(segs[1]) != *c.Minor {
		return false
	}
	if c.Patch != nil && uint64(segs[2]) != *c.Patch {
		return false
	}
	return true
}

func (c *Comparator) bound(major uint64, minor, patch *uint64) *goversion.Version {
	m, p := uint64(0), uint64(0)
	if minor != nil {
		m = *minor
	}
	if patch != nil {
		p = *patch
	}
	return goversion.Must(goversion.NewVersion(fmt.Sprintf("%d.%d.%d", major, m, p)))
}

// tildeUpper is the exclusive upper bound for ~ comparators: the next minor
// when a minor is given, otherwise the next major.
func (c *Comparator) tildeUpper() *goversion.Version {
	if c.Minor != nil {
		next := *c.Minor + 1
		return c.bound(c.Major, &next, nil)
	}
	return c.bound(c.Major+1, nil, nil)
}

// caretUpper is the exclusive upper bound for ^ comparators: the next
// increment of the leftmost non-zero segment.
func (c *Comparator) caretUpper() *goversion.Version {
	switch {
	case c.Major > 0:
		return c.bound(c.Major+1, nil, nil)
	case c.Minor != nil && *c.Minor > 0:
		next := *c.Minor + 1
		return c.bound(0, &next, nil)
	case c.Patch != nil:
		next := *c.Patch + 1
		return c.bound(0, c.Minor, &next)
	}
	return c.bound(1, nil, nil)
}

// Stringify builds the canonical PackageKey form "name@version" used for
// deduplication, cache entries and lockfile naming.
func Stringify(name, version string) string {
	return name + "@" + version
}

// SplitKey is the inverse of Stringify. The split happens on the last "@"
// so scoped package names survive the round trip.
func SplitKey(key string) (name, version string) {
	if i := strings.LastIndex(key, "@"); i > 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// IsLatest reports whether a resolved version string is the latest sentinel.
func IsLatest(version string) bool {
	return version == Latest
}
