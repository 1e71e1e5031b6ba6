package normalizer

import (
	"fmt"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

// StrengthBucket maps a normalized strength to a coarse band. Grouping uses
// the band rather than the exact value so that 1000 IU and 1200 IU variants
// of the same product stay comparable while 400 IU does not.
func StrengthBucket(s *types.Strength) string {
	if s == nil {
		return ""
	}
	switch s.Unit {
	case "iu":
		return band(s.Value, 1000, 2500, 5000) + "-iu"
	case "mg", "mcg", "g", "kg":
		mg := s.Value
		switch s.Unit {
		case "mcg":
			mg /= 1000
		case "g":
			mg *= 1000
		case "kg":
			mg *= 1e6
		}
		return bandInclusive(mg, 100, 500, 1500) + "-mg"
	case "ml", "l", "dl":
		ml := s.Value
		switch s.Unit {
		case "l":
			ml *= 1000
		case "dl":
			ml *= 100
		}
		return bandInclusive(ml, 50, 250, 1000) + "-ml"
	case "%":
		return bandInclusive(s.Value, 1, 5, 20) + "-pct"
	default:
		return ""
	}
}

// IU bands are half-open on the left so a round 1000 IU lands in medium
// together with the 1200 IU and 2000 IU variants sold next to it.
func band(v, low, medium, high float64) string {
	switch {
	case v < low:
		return "low"
	case v < medium:
		return "medium"
	case v < high:
		return "high"
	default:
		return "ultra"
	}
}

func bandInclusive(v, low, medium, high float64) string {
	switch {
	case v <= low:
		return "low"
	case v <= medium:
		return "medium"
	case v <= high:
		return "high"
	default:
		return "ultra"
	}
}

// FormatStrength renders a strength the way normalized names carry it,
// with no trailing zeros.
func FormatStrength(s *types.Strength) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", trimFloat(s.Value), s.Unit)
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
