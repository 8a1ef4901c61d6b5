package series

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPriority is returned when a priority order is not a permutation
// of the source indices.
var ErrInvalidPriority = errors.New("invalid priority order")

// DefaultPriority returns the identity order 0..n-1.
func DefaultPriority(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// ParsePriority parses a comma separated list of source indices such as
// "2,0,1". An empty string yields nil, meaning the default order.
func ParsePriority(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var order []int
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid source index %q", ErrInvalidPriority, field)
		}
		order = append(order, n)
	}
	return order, nil
}

// ValidatePriority checks that order is a permutation of 0..n-1.
func ValidatePriority(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: expected %d entries, got %d", ErrInvalidPriority, n, len(order))
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidPriority, idx, n)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d listed twice", ErrInvalidPriority, idx)
		}
		seen[idx] = true
	}
	return nil
}

// MergePrioritized merges several series into one. Every timestamp present in
// any series appears exactly once in the result and the entry is taken from
// the series that comes first in order among those holding that timestamp.
// order lists series indices from highest to lowest priority.
func MergePrioritized(sources []Series, order []int) (Series, error) {
	if err := ValidatePriority(order, len(sources)); err != nil {
		return Series{}, err
	}

	rank := make([]int, len(sources))
	for r, idx := range order {
		rank[idx] = r
	}

	total := 0
	for _, s := range sources {
		total += s.Len()
	}

	cursors := make([]int, len(sources))
	out := make([]Entry, 0, total)
	for {
		var (
			next  time.Time
			found bool
		)
		for i, s := range sources {
			if cursors[i] >= s.Len() {
				continue
			}
			t := s.entries[cursors[i]].Point.Time
			if !found || t.Before(next) {
				next = t
				found = true
			}
		}
		if !found {
			break
		}

		best := -1
		for i, s := range sources {
			if cursors[i] >= s.Len() || !s.entries[cursors[i]].Point.Time.Equal(next) {
				continue
			}
			if best < 0 || rank[i] < rank[best] {
				best = i
			}
		}
		out = append(out, sources[best].entries[cursors[best]])

		for i, s := range sources {
			if cursors[i] < s.Len() && s.entries[cursors[i]].Point.Time.Equal(next) {
				cursors[i]++
			}
		}
	}

	return Series{entries: out}, nil
}
