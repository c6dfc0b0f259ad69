package models

// MetricSnapshot holds one entity's current measured values for a rule's
// scope. It is supplied by the metric source and read-only for the duration
// of one evaluation pass. A nil metric value means the metric is unavailable
// for the entity, which the runner treats as "do not evaluate".
type MetricSnapshot struct {
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	EntityName  string `json:"entity_name"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`

	Spend       *float64 `json:"spend"`
	Impressions *float64 `json:"impressions"`
	Clicks      *float64 `json:"clicks"`
	CPA         *float64 `json:"cpa"`
	ROAS        *float64 `json:"roas"`
	CTR         *float64 `json:"ctr"`
	CPC         *float64 `json:"cpc"`
	CPM         *float64 `json:"cpm"`
}

// Value returns the snapshot's value for the given metric, or nil when the
// metric is unavailable.
func (s *MetricSnapshot) Value(m Metric) *float64 {
	switch m {
	case MetricSpend:
		return s.Spend
	case MetricImpressions:
		return s.Impressions
	case MetricClicks:
		return s.Clicks
	case MetricCPA:
		return s.CPA
	case MetricROAS:
		return s.ROAS
	case MetricCTR:
		return s.CTR
	case MetricCPC:
		return s.CPC
	case MetricCPM:
		return s.CPM
	default:
		return nil
	}
}
