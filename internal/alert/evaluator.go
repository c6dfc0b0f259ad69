// Package alert implements the metric-threshold half of the engine:
// condition evaluation, cooldown deduplication and the rule runner.
package alert

import (
	"math"

	"github.com/adwatch/internal/models"
)

// Epsilon is the tolerance for eq/ne comparisons. Metric values pass
// through float math and currency rounding, so exact equality would
// almost never hold.
const Epsilon = 0.01

// Evaluate reports whether value satisfies the comparison against the
// threshold. Unknown comparisons evaluate to false.
func Evaluate(value float64, cmp models.Comparison, threshold float64) bool {
	switch cmp {
	case models.ComparisonGT:
		return value > threshold
	case models.ComparisonLT:
		return value < threshold
	case models.ComparisonGTE:
		return value >= threshold
	case models.ComparisonLTE:
		return value <= threshold
	case models.ComparisonEQ:
		return math.Abs(value-threshold) < Epsilon
	case models.ComparisonNE:
		return math.Abs(value-threshold) >= Epsilon
	default:
		return false
	}
}
