package models

import (
	"sort"
	"strconv"
	"strings"
)

// Version is a parsed MAJOR.MINOR.PATCH theme version
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a MAJOR.MINOR.PATCH string. Exactly three dot-separated
// non-negative integer components; no prefixes, suffixes, or whitespace.
func ParseVersion(s string) (Version, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, false
	}

	nums := [3]int{}
	for i, part := range parts {
		if part == "" {
			return Version{}, false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return Version{}, false
			}
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, false
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, true
}

// IsValidVersion reports whether s is a well-formed MAJOR.MINOR.PATCH string
func IsValidVersion(s string) bool {
	_, ok := ParseVersion(s)
	return ok
}

// Compare orders two parsed versions: -1, 0, or 1
func (v Version) Compare(other Version) int {
	pairs := [3][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// CompareVersions orders two version strings numerically per component, never
// lexicographically. An unparseable version sorts below every valid one; two
// unparseable versions compare equal.
func CompareVersions(a, b string) int {
	va, okA := ParseVersion(a)
	vb, okB := ParseVersion(b)

	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}

	return va.Compare(vb)
}

// IsNewerVersion reports whether candidate is strictly newer than current
func IsNewerVersion(candidate, current string) bool {
	return CompareVersions(candidate, current) > 0
}

// SortVersions sorts version strings ascending in place; invalid versions
// keep their relative order at the end
func SortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, okI := ParseVersion(versions[i])
		vj, okJ := ParseVersion(versions[j])
		if okI != okJ {
			return okI
		}
		if !okI {
			return false
		}
		return vi.Compare(vj) < 0
	})
}

// LatestVersion returns the highest valid version in the list, or "" when
// none parses
func LatestVersion(versions []string) string {
	latest := ""
	for _, v := range versions {
		if !IsValidVersion(v) {
			continue
		}
		if latest == "" || IsNewerVersion(v, latest) {
			latest = v
		}
	}
	return latest
}
