package handler

import (
	"slices"
	"strconv"
	"strings"
)

// SlicePatternNames lists the named acquisition interleaves in matching
// order.
var SlicePatternNames = []string{
	"sequential",
	"reversed_sequential",
	"even/odd",
	"reversed_even/odd",
	"odd/even",
	"reversed_odd/even",
	"halves_low_first",
	"reversed_halves_low_first",
	"halves_high_first",
	"reversed_halves_high_first",
}

// SlicePattern returns the table of a named interleave for dz slices:
// table[j] is the acquisition rank of spatial slice j. ok is false for
// unknown names.
func SlicePattern(dz int, name string) (table []int, ok bool) {
	base, reversed := strings.CutPrefix(name, "reversed_")

	var gen func(i int) int
	switch base {
	case "sequential":
		gen = func(i int) int { return i }
	case "even/odd":
		brk := (dz - 2) / 2
		if dz%2 == 1 {
			brk = (dz - 1) / 2
		}
		gen = func(i int) int {
			if i <= brk {
				return 2 * i
			}
			return 2*(i-brk) - 1
		}
	case "odd/even":
		brk := (dz - 2) / 2
		if dz%2 == 1 {
			brk = (dz - 3) / 2
		}
		gen = func(i int) int {
			if i <= brk {
				return 2*i + 1
			}
			return 2 * (i - (brk + 1))
		}
	case "halves_low_first":
		brk := dz / 2
		if dz%2 == 1 {
			brk = (dz + 1) / 2
		}
		gen = func(i int) int {
			if i%2 == 1 {
				return (i-1)/2 + brk
			}
			return i / 2
		}
	case "halves_high_first":
		brk := (dz - 2) / 2
		if dz%2 == 1 {
			brk = (dz - 3) / 2
		}
		gen = func(i int) int {
			if i%2 == 1 {
				return (i - 1) / 2
			}
			return i/2 + brk + 1
		}
	default:
		return nil, false
	}

	table = make([]int, dz)
	for i := 0; i < dz; i++ {
		j := i
		if reversed {
			j = dz - (i + 1)
		}
		table[j] = gen(i)
	}
	return table, true
}

// SlicePatternName returns the first named interleave whose table equals
// table.
func SlicePatternName(table []int) (string, bool) {
	for _, name := range SlicePatternNames {
		std, _ := SlicePattern(len(table), name)
		if slices.Equal(std, table) {
			return name, true
		}
	}
	return "", false
}

// InvertSlicePattern returns the inverse permutation of table.
func InvertSlicePattern(table []int) []int {
	inv := make([]int, len(table))
	for i, v := range table {
		if v >= 0 && v < len(inv) {
			inv[v] = i
		}
	}
	return inv
}

// formatSlicePattern names table, or joins its entries with commas.
func formatSlicePattern(table []int) string {
	if name, ok := SlicePatternName(table); ok {
		return name
	}
	parts := make([]string, len(table))
	for i, v := range table {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
