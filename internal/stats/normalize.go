// Package stats converts provider broadcast statistics into the fractional
// form stored on documents.
package stats

import (
	"math"

	"github.com/ignite/kitsync/internal/domain"
)

// Normalize converts a provider snapshot. Percentages become fractions and
// all rates are rounded to 4 decimal places. The click-to-open ratio uses
// content clicks when the snapshot carries them and total clicks otherwise;
// zero opens yields a zero ratio.
func Normalize(s domain.StatsSnapshot) domain.NormalizedStats {
	clicks := s.TotalClicks
	usedContent := false
	if s.ContentClicks != nil {
		clicks = *s.ContentClicks
		usedContent = true
	}

	var ctor float64
	if s.Opens > 0 {
		ctor = round4(float64(clicks) / float64(s.Opens))
	}

	return domain.NormalizedStats{
		Recipients:        s.Recipients,
		Opens:             s.Opens,
		Clicks:            clicks,
		TotalClicks:       s.TotalClicks,
		OpenRate:          round4(s.OpenRatePct / 100),
		ClickRate:         round4(s.ClickRatePct / 100),
		ClickToOpenRate:   ctor,
		ContentClicksUsed: usedContent,
	}
}

func round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10000) / 10000
}
