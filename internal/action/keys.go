package action

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// SubKey addresses one representation of a content item: the period, the
// adaptation group inside it and the track inside the group.
type SubKey struct {
	Period int32
	Group  int32
	Track  int32
}

func (k SubKey) String() string {
	return fmt.Sprintf("%d.%d.%d", k.Period, k.Group, k.Track)
}

// ParseSubKey accepts "period.group.track". A bare number is shorthand for
// track n in period 0, group 0.
func ParseSubKey(s string) (SubKey, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 1 && len(parts) != 3 {
		return SubKey{}, fmt.Errorf("invalid sub key %q: want period.group.track", s)
	}
	vals := make([]int32, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil || n < 0 {
			return SubKey{}, fmt.Errorf("invalid sub key %q: %q is not a non-negative integer", s, p)
		}
		vals[i] = int32(n)
	}
	if len(vals) == 1 {
		return SubKey{Track: vals[0]}, nil
	}
	return SubKey{Period: vals[0], Group: vals[1], Track: vals[2]}, nil
}

func ParseSubKeys(values []string) ([]SubKey, error) {
	keys := make([]SubKey, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := ParseSubKey(part)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
	}
	return NormalizeKeys(keys), nil
}

func CompareKeys(a, b SubKey) int {
	if c := cmp.Compare(a.Period, b.Period); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	return cmp.Compare(a.Track, b.Track)
}

// NormalizeKeys returns a sorted copy of keys without duplicates, nil when empty.
func NormalizeKeys(keys []SubKey) []SubKey {
	if len(keys) == 0 {
		return nil
	}
	out := slices.Clone(keys)
	slices.SortFunc(out, CompareKeys)
	return slices.Compact(out)
}

func FormatKeys(keys []SubKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}
