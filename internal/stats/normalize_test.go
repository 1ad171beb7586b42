package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/kitsync/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNormalizeScenario(t *testing.T) {
	got := Normalize(domain.StatsSnapshot{
		Recipients:  100,
		Opens:       20,
		TotalClicks: 5,
		OpenRatePct: 20.0,
	})

	assert.Equal(t, 100, got.Recipients)
	assert.Equal(t, 20, got.Opens)
	assert.Equal(t, 5, got.Clicks)
	assert.Equal(t, 5, got.TotalClicks)
	assert.Equal(t, 0.2, got.OpenRate)
	assert.Equal(t, 0.25, got.ClickToOpenRate)
	assert.False(t, got.ContentClicksUsed)
}

func TestNormalizeOpenRateRounding(t *testing.T) {
	got := Normalize(domain.StatsSnapshot{OpenRatePct: 18.09, ClickRatePct: 2.456789})
	assert.Equal(t, 0.1809, got.OpenRate)
	assert.Equal(t, 0.0246, got.ClickRate)
}

func TestNormalizeZeroOpens(t *testing.T) {
	for _, clicks := range []int{0, 1, 50, 1 << 20} {
		got := Normalize(domain.StatsSnapshot{Opens: 0, TotalClicks: clicks})
		assert.Equal(t, 0.0, got.ClickToOpenRate)
	}
}

func TestNormalizeContentClicks(t *testing.T) {
	got := Normalize(domain.StatsSnapshot{
		Recipients:    1000,
		Opens:         300,
		TotalClicks:   90,
		ContentClicks: intPtr(45),
	})
	assert.Equal(t, 45, got.Clicks)
	assert.Equal(t, 90, got.TotalClicks)
	assert.Equal(t, 0.15, got.ClickToOpenRate)
	assert.True(t, got.ContentClicksUsed)
}

func TestNormalizeCTORRounding(t *testing.T) {
	got := Normalize(domain.StatsSnapshot{Opens: 3, TotalClicks: 1})
	assert.Equal(t, 0.3333, got.ClickToOpenRate)
}
