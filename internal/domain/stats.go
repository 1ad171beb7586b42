package domain

// StatsSnapshot is a broadcast's statistics as the provider reports them.
// Rates are percentages (18.09 means 18.09%).
type StatsSnapshot struct {
	Recipients    int     `json:"recipients"`
	Opens         int     `json:"emails_opened"`
	TotalClicks   int     `json:"total_clicks"`
	OpenRatePct   float64 `json:"open_rate"`
	ClickRatePct  float64 `json:"click_rate"`
	ContentClicks *int    `json:"content_clicks,omitempty"`
}

// NormalizedStats is the store-facing form. Rates are fractions in [0,1].
type NormalizedStats struct {
	Recipients        int     `json:"recipients"`
	Opens             int     `json:"opens"`
	Clicks            int     `json:"clicks"`
	TotalClicks       int     `json:"total_clicks"`
	OpenRate          float64 `json:"open_rate"`
	ClickRate         float64 `json:"click_rate"`
	ClickToOpenRate   float64 `json:"click_to_open_rate"`
	ContentClicksUsed bool    `json:"content_clicks_used"`
}
