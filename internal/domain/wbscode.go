package domain

import (
	"strconv"
	"strings"
)

// ParseCode splits a dotted WBS code such as "1.2.3" into its integer
// segments. Every segment must be a non-negative integer.
func ParseCode(code string) ([]int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationErr("wbs code", "code is required")
	}
	parts := strings.Split(code, ".")
	segments := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, validationErr("wbs code", "code %q has an empty segment", code)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return nil, validationErr("wbs code", "segment %q of code %q is not a non-negative integer", p, code)
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, validationErr("wbs code", "segment %q of code %q is out of range", p, code)
		}
		segments = append(segments, n)
	}
	return segments, nil
}

// ValidateCode reports whether code is a well-formed dotted WBS code.
func ValidateCode(code string) error {
	_, err := ParseCode(code)
	return err
}

// CompareCodes orders two dotted codes segment by segment ("1.2" < "1.10").
// Malformed codes fall back to plain string comparison.
func CompareCodes(a, b string) int {
	sa, errA := ParseCode(a)
	sb, errB := ParseCode(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	for i := 0; i < len(sa) && i < len(sb); i++ {
		if sa[i] != sb[i] {
			if sa[i] < sb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(sa) < len(sb):
		return -1
	case len(sa) > len(sb):
		return 1
	}
	return 0
}
