package alert

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/adwatch/internal/models"
)

// FormatMetricValue renders a metric value in its unit: currency for
// spend/cpa/cpc/cpm, percentage for ctr, ratio for roas, raw count for
// impressions/clicks.
func FormatMetricValue(m models.Metric, v float64) string {
	switch m {
	case models.MetricSpend, models.MetricCPA, models.MetricCPC, models.MetricCPM:
		return fmt.Sprintf("$%.2f", v)
	case models.MetricCTR:
		return fmt.Sprintf("%.2f%%", v)
	case models.MetricROAS:
		return fmt.Sprintf("%.2fx", v)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func comparisonWords(cmp models.Comparison) string {
	switch cmp {
	case models.ComparisonGT:
		return "is above"
	case models.ComparisonLT:
		return "is below"
	case models.ComparisonGTE:
		return "is at or above"
	case models.ComparisonLTE:
		return "is at or below"
	case models.ComparisonEQ:
		return "equals"
	case models.ComparisonNE:
		return "differs from"
	default:
		return string(cmp)
	}
}

var alertEmailTmpl = template.Must(template.New("alert_email").Parse(
	"<h3>{{.RuleName}}</h3><p>{{.Message}}</p>"))

// RenderAlertEmail produces the HTML body for an alert email. Rule and
// entity names come from users, so they pass through html/template rather
// than string formatting.
func RenderAlertEmail(n *models.AlertNotification) (string, error) {
	var buf bytes.Buffer
	if err := alertEmailTmpl.Execute(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatMessage renders the human-readable notification text for a fired
// rule against one entity.
func FormatMessage(rule *models.AlertRule, snap *models.MetricSnapshot, value float64) string {
	return fmt.Sprintf("%s: %s %s %s for %s %q (account %s), current value %s",
		rule.Name,
		rule.Metric,
		comparisonWords(rule.Comparison),
		FormatMetricValue(rule.Metric, rule.Threshold),
		snap.EntityType,
		snap.EntityName,
		snap.AccountName,
		FormatMetricValue(rule.Metric, value),
	)
}
