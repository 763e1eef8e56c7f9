package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

// Filter is a list of wells or sites to be analysed. Empty Filter means "everything".
type Filter []string

// ParseFilter splits comma-joined s into Filter.
//
// Blank s is empty Filter. Blank items (like "A01,,A02") are ErrInvalid.
func ParseFilter(s string) (Filter, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return NewFilter(strings.Split(s, ","))
}

// NewFilter makes Filter from items, trimming spaces of each item.
//
// Blank items are ErrInvalid.
func NewFilter(items []string) (Filter, error) {
	if len(items) == 0 {
		return nil, nil
	}
	f := make(Filter, 0, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, domerr.Invalid("filter item #%d is empty: %q", i, strings.Join(items, ","))
		}
		f = append(f, item)
	}
	return f, nil
}

func (f Filter) String() string {
	return strings.Join(f, ",")
}

func (f Filter) clone() Filter {
	if f == nil {
		return nil
	}
	return append(Filter{}, f...)
}

// UnmarshalJSON accepts a comma-joined string, a list of strings or numbers, or null.
func (f *Filter) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*f = nil
		return nil
	}
	if isString(b) {
		s, err := decodeString(b)
		if err != nil {
			return err
		}
		parsed, err := ParseFilter(s)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}

	items := []json.RawMessage{}
	if err := json.Unmarshal(b, &items); err != nil {
		return domerr.Invalid("filter should be string or list: %s", abbrev(bytes.TrimSpace(b)))
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, err := decodeScalar(item)
		if err != nil {
			return err
		}
		strs = append(strs, s)
	}
	parsed, err := NewFilter(strs)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseNumbersAndRanges expands numbers and ranges like "2-5,7,15-17,12"
// into sorted unique numbers, [2 3 4 5 7 12 15 16 17] (as decimal strings).
//
// When s starts with "-", it is returned as the only item without parsing.
func ParseNumbersAndRanges(s string) ([]string, error) {
	if strings.HasPrefix(s, "-") {
		return []string{s}, nil
	}

	numbers := map[int]struct{}{}
	for _, elem := range strings.Split(s, ",") {
		parts := strings.Split(elem, "-")
		bounds := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, domerr.Invalid("%q is not number or range (in %q)", elem, s)
			}
			bounds = append(bounds, n)
		}
		for n := slices.Min(bounds); n <= slices.Max(bounds); n++ {
			numbers[n] = struct{}{}
		}
	}

	sorted := make([]int, 0, len(numbers))
	for n := range numbers {
		sorted = append(sorted, n)
	}
	slices.Sort(sorted)

	ret := make([]string, 0, len(sorted))
	for _, n := range sorted {
		ret = append(ret, strconv.Itoa(n))
	}
	return ret, nil
}

// ExpandRanges expands items written as ranges ("1-3") into each number.
func (f Filter) ExpandRanges() (Filter, error) {
	if len(f) == 0 {
		return nil, nil
	}
	expanded, err := ParseNumbersAndRanges(f.String())
	if err != nil {
		return nil, err
	}
	return NewFilter(expanded)
}
