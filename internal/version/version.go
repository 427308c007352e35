// Package version implements semantic version arithmetic and the
// __version__ file the release tooling reads and rewrites.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind selects which segment of a version a bump increments.
type Kind string

const (
	Major Kind = "major"
	Minor Kind = "minor"
	Patch Kind = "patch"
)

var (
	ErrInvalidVersion = errors.New("invalid version format")
	ErrInvalidKind    = errors.New("invalid bump kind")
	ErrInvalidTag     = errors.New("invalid release tag")
)

// ParseKind converts a flag or argument into a Kind. An empty string is Patch.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Patch:
		return Patch, nil
	case Minor:
		return Minor, nil
	case Major:
		return Major, nil
	}
	return "", fmt.Errorf("%w: %q (want major, minor or patch)", ErrInvalidKind, s)
}

// Parse validates v and returns it normalized to major.minor.patch.
// Missing trailing segments are treated as zero, so "1.2" is "1.2.0".
func Parse(v string) (string, error) {
	sv, err := parse(v)
	if err != nil {
		return "", err
	}
	return sv.String(), nil
}

func parse(v string) (*semver.Version, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") || strings.HasPrefix(v, "V") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return sv, nil
}

// Bump increments one segment of current and zeroes the segments below it.
// Pre-release and build metadata are dropped.
func Bump(current string, kind Kind) (string, error) {
	sv, err := parse(current)
	if err != nil {
		return "", err
	}

	base, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch()))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, current)
	}

	var next semver.Version
	switch kind {
	case Major:
		next = base.IncMajor()
	case Minor:
		next = base.IncMinor()
	case Patch, "":
		next = base.IncPatch()
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return next.String(), nil
}

// Resolve returns the version a release should use. A non-empty explicit
// version wins over the bump and is only validated.
func Resolve(current string, kind Kind, explicit string) (string, error) {
	if explicit != "" {
		return Parse(explicit)
	}
	return Bump(current, kind)
}

// FromTag strips prefix from a release tag such as "v1.2.3".
func FromTag(tag, prefix string) (string, error) {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "refs/tags/")
	if !strings.HasPrefix(tag, prefix) {
		return "", fmt.Errorf("%w: %q does not start with %q", ErrInvalidTag, tag, prefix)
	}
	v, err := Parse(strings.TrimPrefix(tag, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTag, tag, err)
	}
	return v, nil
}

// Tag is the inverse of FromTag.
func Tag(v, prefix string) string {
	return prefix + v
}
