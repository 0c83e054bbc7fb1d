// Package filter provides stateless, composable predicates over point attributes.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ecopia-map/als_raster/internal/data"
)

// Predicate is a named boolean function over a point. The zero value matches every point.
type Predicate struct {
	match       func(p data.Point) bool
	description string
}

// New wraps fn in a Predicate described by description
func New(description string, fn func(p data.Point) bool) Predicate {
	return Predicate{match: fn, description: description}
}

func (p Predicate) Match(point data.Point) bool {
	if p.match == nil {
		return true
	}
	return p.match(point)
}

func (p Predicate) String() string {
	if p.description == "" {
		return "all"
	}
	return p.description
}

// All matches every point
func All() Predicate {
	return Predicate{}
}

func formatCodes(codes []uint8) string {
	sorted := append([]uint8(nil), codes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = fmt.Sprint(c)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func classSet(codes []uint8) [256]bool {
	var set [256]bool
	for _, c := range codes {
		set[c] = true
	}
	return set
}

func ClassificationIn(codes ...uint8) Predicate {
	set := classSet(codes)
	return New("class in "+formatCodes(codes), func(p data.Point) bool {
		return set[p.Classification]
	})
}

func ClassificationNotIn(codes ...uint8) Predicate {
	if len(codes) == 0 {
		return All()
	}
	set := classSet(codes)
	return New("class not in "+formatCodes(codes), func(p data.Point) bool {
		return !set[p.Classification]
	})
}

func ReturnNumber(n uint8) Predicate {
	return New(fmt.Sprintf("return == %d", n), func(p data.Point) bool {
		return p.ReturnNumber == n
	})
}

func FirstReturn() Predicate {
	return New("first return", data.Point.IsFirstReturn)
}

func LastReturn() Predicate {
	return New("last return", data.Point.IsLastReturn)
}

// ZBelow keeps points strictly lower than max
func ZBelow(max float64) Predicate {
	return New(fmt.Sprintf("z < %g", max), func(p data.Point) bool {
		return p.Z < max
	})
}

// ZAtMost keeps points not above max
func ZAtMost(max float64) Predicate {
	return New(fmt.Sprintf("z <= %g", max), func(p data.Point) bool {
		return p.Z <= max
	})
}

func Within(bounds data.Bounds) Predicate {
	return New(fmt.Sprintf("within [%g %g %g %g]", bounds.XMin, bounds.YMin, bounds.XMax, bounds.YMax),
		func(p data.Point) bool {
			return bounds.Contains(p.X, p.Y)
		})
}

// And matches when every predicate matches. Match-all operands are dropped.
func And(predicates ...Predicate) Predicate {
	return combine(" AND ", predicates, func(matches []func(data.Point) bool) func(data.Point) bool {
		return func(p data.Point) bool {
			for _, m := range matches {
				if !m(p) {
					return false
				}
			}
			return true
		}
	})
}

// Or matches when at least one predicate matches. Or of nothing matches nothing.
func Or(predicates ...Predicate) Predicate {
	for _, p := range predicates {
		if p.match == nil {
			return All()
		}
	}
	if len(predicates) == 0 {
		return New("none", func(data.Point) bool { return false })
	}
	return combine(" OR ", predicates, func(matches []func(data.Point) bool) func(data.Point) bool {
		return func(p data.Point) bool {
			for _, m := range matches {
				if m(p) {
					return true
				}
			}
			return false
		}
	})
}

func Not(predicate Predicate) Predicate {
	return New("NOT ("+predicate.String()+")", func(p data.Point) bool {
		return !predicate.Match(p)
	})
}

func combine(separator string, predicates []Predicate, build func([]func(data.Point) bool) func(data.Point) bool) Predicate {
	matches := make([]func(data.Point) bool, 0, len(predicates))
	descriptions := make([]string, 0, len(predicates))
	for _, p := range predicates {
		if p.match == nil {
			continue
		}
		matches = append(matches, p.match)
		descriptions = append(descriptions, p.String())
	}
	switch len(matches) {
	case 0:
		return All()
	case 1:
		return New(descriptions[0], matches[0])
	}
	for i, d := range descriptions {
		descriptions[i] = "(" + d + ")"
	}
	return New(strings.Join(descriptions, separator), build(matches))
}
