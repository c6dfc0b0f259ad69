package alert

import (
	"testing"

	"github.com/adwatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateComparisons(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		cmp       models.Comparison
		threshold float64
		want      bool
	}{
		{"gt above", 1.5, models.ComparisonGT, 1.0, true},
		{"gt equal", 1.0, models.ComparisonGT, 1.0, false},
		{"lt below", 0.8, models.ComparisonLT, 1.0, true},
		{"lt equal", 1.0, models.ComparisonLT, 1.0, false},
		{"gte equal", 1.0, models.ComparisonGTE, 1.0, true},
		{"gte below", 0.99, models.ComparisonGTE, 1.0, false},
		{"lte equal", 1.0, models.ComparisonLTE, 1.0, true},
		{"lte above", 1.01, models.ComparisonLTE, 1.0, false},
		{"eq within epsilon", 100, models.ComparisonEQ, 100.005, true},
		{"eq outside epsilon", 100, models.ComparisonEQ, 100.02, false},
		{"eq exact", 100, models.ComparisonEQ, 100, true},
		{"ne within epsilon", 100, models.ComparisonNE, 100.005, false},
		{"ne outside epsilon", 100, models.ComparisonNE, 100.02, true},
		{"unknown comparison", 100, "between", 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.value, tt.cmp, tt.threshold))
		})
	}
}

func TestFormatMetricValue(t *testing.T) {
	assert.Equal(t, "$12.50", FormatMetricValue(models.MetricSpend, 12.5))
	assert.Equal(t, "$0.75", FormatMetricValue(models.MetricCPC, 0.75))
	assert.Equal(t, "1.25%", FormatMetricValue(models.MetricCTR, 1.25))
	assert.Equal(t, "0.80x", FormatMetricValue(models.MetricROAS, 0.8))
	assert.Equal(t, "15000", FormatMetricValue(models.MetricImpressions, 15000))
	assert.Equal(t, "42", FormatMetricValue(models.MetricClicks, 42))
}

func TestFormatMessage(t *testing.T) {
	rule := &models.AlertRule{
		Name:       "Low ROAS",
		Metric:     models.MetricROAS,
		Comparison: models.ComparisonLT,
		Threshold:  1.0,
	}
	snap := &models.MetricSnapshot{
		EntityType:  "campaign",
		EntityName:  "Summer Sale",
		AccountName: "Acme Ads",
	}

	msg := FormatMessage(rule, snap, 0.8)
	assert.Contains(t, msg, "Low ROAS")
	assert.Contains(t, msg, "is below")
	assert.Contains(t, msg, "1.00x")
	assert.Contains(t, msg, "0.80x")
	assert.Contains(t, msg, `campaign "Summer Sale"`)
}
