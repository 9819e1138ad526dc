package versioning

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scheme describes how to compare version strings.
type Scheme string

const (
	// SchemeSemver enforces Semantic Versioning 2.0.0.
	SchemeSemver Scheme = "semver"
	// SchemeLexical compares using lexical ordering only.
	SchemeLexical Scheme = "lexical"
)

type Comparison int

const (
	ComparisonUnknown Comparison = iota
	ComparisonLess
	ComparisonEqual
	ComparisonGreater
)

// Release types accepted by Increment, named after npm's semver.inc.
const (
	ReleaseMajor      = "major"
	ReleaseMinor      = "minor"
	ReleasePatch      = "patch"
	ReleasePremajor   = "premajor"
	ReleasePreminor   = "preminor"
	ReleasePrepatch   = "prepatch"
	ReleasePrerelease = "prerelease"
)

// DefaultVersion is assumed when no manifest declares a version yet.
const DefaultVersion = "0.0.0"

// ErrInvalidRange is returned when a target is neither a version nor a release type.
var ErrInvalidRange = errors.New("invalid semver range")

var semverPattern = regexp.MustCompile(`^(?:[vV])?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?(?:\+([0-9A-Za-z.-]+))?$`)

type identifier struct {
	raw     string
	numeric bool
	num     int
}

// Version represents a parsed semantic version
type Version struct {
	major      int
	minor      int
	patch      int
	pre        []identifier
	build      string
	raw        string // original string representation
	hasVPrefix bool   // whether the original version had a 'v' prefix
}

// Valid reports whether s is a semantic version (a leading v is tolerated).
func Valid(s string) bool {
	_, err := ParseLenient(s)
	return err == nil
}

// Clean trims s and strips a leading v. It returns "" for invalid input.
func Clean(s string) string {
	v, err := ParseLenient(s)
	if err != nil {
		return ""
	}
	return v.Canonical()
}

// ParseLenient parses a version string, accepting an optional v prefix.
func ParseLenient(input string) (*Version, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("empty version")
	}

	matches := semverPattern.FindStringSubmatch(trimmed)
	if len(matches) == 0 {
		return nil, fmt.Errorf("invalid format")
	}

	nums := make([]int, 3)
	for i, name := range []string{"major", "minor", "patch"} {
		seg := matches[i+1]
		if len(seg) > 1 && strings.HasPrefix(seg, "0") {
			return nil, fmt.Errorf("invalid %s segment: leading zeros not allowed", name)
		}
		n, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("segment '%s': %w", seg, err)
		}
		nums[i] = n
	}

	version := &Version{
		major:      nums[0],
		minor:      nums[1],
		patch:      nums[2],
		raw:        trimmed,
		hasVPrefix: strings.HasPrefix(trimmed, "v") || strings.HasPrefix(trimmed, "V"),
	}

	if prerelease := matches[4]; prerelease != "" {
		pre, err := parsePrerelease(prerelease)
		if err != nil {
			return nil, err
		}
		version.pre = pre
	}

	if build := matches[5]; build != "" {
		for _, part := range strings.Split(build, ".") {
			if part == "" {
				return nil, fmt.Errorf("invalid build identifier: empty segment")
			}
		}
		version.build = build
	}

	return version, nil
}

func parsePrerelease(s string) ([]identifier, error) {
	parts := strings.Split(s, ".")
	ids := make([]identifier, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid prerelease identifier: empty segment")
		}
		if !isNumeric(part) {
			ids[i] = identifier{raw: part}
			continue
		}
		if len(part) > 1 && strings.HasPrefix(part, "0") {
			return nil, fmt.Errorf("invalid prerelease identifier: leading zeros not allowed")
		}
		num, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid prerelease identifier '%s': %w", part, err)
		}
		ids[i] = identifier{raw: part, numeric: true, num: num}
	}
	return ids, nil
}

// String returns the version as it was written (or rendered after a bump).
func (v *Version) String() string {
	if v == nil {
		return ""
	}
	return v.raw
}

// Canonical renders MAJOR.MINOR.PATCH[-PRE][+BUILD] without a v prefix.
func (v *Version) Canonical() string {
	if v == nil {
		return ""
	}
	result := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	if len(v.pre) > 0 {
		parts := make([]string, len(v.pre))
		for i, id := range v.pre {
			parts[i] = id.raw
		}
		result += "-" + strings.Join(parts, ".")
	}
	if v.build != "" {
		result += "+" + v.build
	}
	return result
}

// Prerelease reports whether the version carries prerelease identifiers.
func (v *Version) Prerelease() bool { return v != nil && len(v.pre) > 0 }

// Increment returns a new version bumped by release, following npm semver.inc:
// a prerelease of the target release is finalized rather than bumped again
// (1.0.0-rc.1 + major = 1.0.0, 1.2.3-0 + patch = 1.2.3).
func (v *Version) Increment(release string) (*Version, error) {
	if v == nil {
		return nil, errors.New("nil version")
	}
	next := &Version{major: v.major, minor: v.minor, patch: v.patch, hasVPrefix: v.hasVPrefix}

	switch strings.ToLower(strings.TrimSpace(release)) {
	case ReleaseMajor:
		if v.minor != 0 || v.patch != 0 || len(v.pre) == 0 {
			next.major++
		}
		next.minor, next.patch = 0, 0
	case ReleaseMinor:
		if v.patch != 0 || len(v.pre) == 0 {
			next.minor++
		}
		next.patch = 0
	case ReleasePatch:
		if len(v.pre) == 0 {
			next.patch++
		}
	case ReleasePremajor:
		next.major, next.minor, next.patch = v.major+1, 0, 0
		next.pre = []identifier{{raw: "0", numeric: true}}
	case ReleasePreminor:
		next.minor, next.patch = v.minor+1, 0
		next.pre = []identifier{{raw: "0", numeric: true}}
	case ReleasePrepatch:
		next.patch = v.patch + 1
		next.pre = []identifier{{raw: "0", numeric: true}}
	case ReleasePrerelease:
		if len(v.pre) == 0 {
			next.patch = v.patch + 1
			next.pre = []identifier{{raw: "0", numeric: true}}
			break
		}
		next.pre = bumpPrerelease(v.pre)
	default:
		return nil, fmt.Errorf("unknown release type %q", release)
	}

	next.updateRaw()
	return next, nil
}

// bumpPrerelease increments the right-most numeric identifier, or appends .0
// when there is none.
func bumpPrerelease(pre []identifier) []identifier {
	out := append([]identifier(nil), pre...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].numeric {
			out[i].num++
			out[i].raw = strconv.Itoa(out[i].num)
			return out
		}
	}
	return append(out, identifier{raw: "0", numeric: true})
}

// updateRaw updates the raw string representation
func (v *Version) updateRaw() {
	v.raw = v.Canonical()
	if v.hasVPrefix {
		v.raw = "v" + v.raw
	}
}

// Resolve turns a release target into a concrete version. A valid version is
// returned cleaned; anything else is treated as a release type applied to
// current (0.0.0 when empty).
func Resolve(current, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("%w: empty target", ErrInvalidRange)
	}
	if v, err := ParseLenient(target); err == nil {
		return v.Canonical(), nil
	}

	if strings.TrimSpace(current) == "" {
		current = DefaultVersion
	}
	cur, err := ParseLenient(current)
	if err != nil {
		return "", fmt.Errorf("%w: current version %q: %v", ErrInvalidRange, current, err)
	}
	next, err := cur.Increment(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return next.Canonical(), nil
}

// Compare determines ordering between version a and b using the provided scheme.
func Compare(scheme Scheme, a, b string) (Comparison, error) {
	if scheme == SchemeLexical {
		return compareLexical(a, b), nil
	}
	av, err := ParseLenient(a)
	if err != nil {
		return ComparisonUnknown, fmt.Errorf("invalid semver '%s': %w", a, err)
	}
	bv, err := ParseLenient(b)
	if err != nil {
		return ComparisonUnknown, fmt.Errorf("invalid semver '%s': %w", b, err)
	}
	return compareVersions(av, bv), nil
}

func compareInts(a, b int) Comparison {
	switch {
	case a < b:
		return ComparisonLess
	case a > b:
		return ComparisonGreater
	default:
		return ComparisonEqual
	}
}

func compareVersions(a, b *Version) Comparison {
	for _, c := range []Comparison{
		compareInts(a.major, b.major),
		compareInts(a.minor, b.minor),
		compareInts(a.patch, b.patch),
	} {
		if c != ComparisonEqual {
			return c
		}
	}

	if len(a.pre) == 0 && len(b.pre) == 0 {
		return ComparisonEqual
	}
	if len(a.pre) == 0 {
		return ComparisonGreater
	}
	if len(b.pre) == 0 {
		return ComparisonLess
	}

	limit := len(a.pre)
	if len(b.pre) < limit {
		limit = len(b.pre)
	}

	for i := 0; i < limit; i++ {
		ai := a.pre[i]
		bi := b.pre[i]
		if ai.numeric && bi.numeric {
			if c := compareInts(ai.num, bi.num); c != ComparisonEqual {
				return c
			}
			continue
		}
		if ai.numeric && !bi.numeric {
			return ComparisonLess
		}
		if !ai.numeric && bi.numeric {
			return ComparisonGreater
		}
		if cmp := strings.Compare(ai.raw, bi.raw); cmp != 0 {
			if cmp < 0 {
				return ComparisonLess
			}
			return ComparisonGreater
		}
	}

	return compareInts(len(a.pre), len(b.pre))
}

func compareLexical(a, b string) Comparison {
	cmp := strings.Compare(strings.TrimSpace(a), strings.TrimSpace(b))
	if cmp < 0 {
		return ComparisonLess
	}
	if cmp > 0 {
		return ComparisonGreater
	}
	return ComparisonEqual
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
