package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/event"
)

var now = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func today(sev event.Severity, service int64) Input {
	return Input{ServiceID: service, Severity: sev, EventDate: now.Format(event.DateLayout)}
}

func TestCalculateEmpty(t *testing.T) {
	s := Calculate(nil, now)
	assert.Equal(t, 0, s.Level)
	assert.Equal(t, "Early warning", s.Position)
	assert.Equal(t, "green", s.Color)
	assert.Equal(t, 0, s.EventCount)
	assert.Equal(t, 0, s.ServiceCount)
	assert.Equal(t, now, s.LastUpdated)
}

func TestCalculateRecentEvents(t *testing.T) {
	// 2 minor events: 2 / 2 * 10 = 10
	s := Calculate([]Input{today(event.Minor, 1), today(event.Minor, 1)}, now)
	assert.Equal(t, 10, s.Level)
	assert.Equal(t, 2, s.EventCount)

	// critical + major + critical = 14 -> 70
	s = Calculate([]Input{today(event.Critical, 1), today(event.Major, 1), today(event.Critical, 2)}, now)
	assert.Equal(t, 70, s.Level)
	assert.Equal(t, "Severe enshittification", s.Position)
	assert.Equal(t, "red", s.Color)
	assert.Equal(t, 2, s.ServiceCount)
}

func TestCalculateDecay(t *testing.T) {
	old := Input{ServiceID: 1, Severity: event.Major, EventDate: "2022-06-01"}
	// Just over two years: 4 * 0.6 / 2 * 10 = 12
	assert.Equal(t, 12, Calculate([]Input{old}, now).Level)
	assert.Equal(t, 20, Calculate([]Input{today(event.Major, 1)}, now).Level)
}

func TestCalculateDecreasesAcrossEachYearBoundary(t *testing.T) {
	// critical = 5: 5 * factor / 2 * 10
	tests := []struct {
		date string
		want int
	}{
		{"2024-01-15", 25}, // under a year
		{"2022-12-15", 20}, // 1.5 years
		{"2021-12-15", 15}, // 2.5 years
		{"2020-12-15", 10}, // 3.5 years
	}
	prev := 101
	for _, tt := range tests {
		got := Calculate([]Input{{ServiceID: 1, Severity: event.Critical, EventDate: tt.date}}, now).Level
		assert.Equal(t, tt.want, got, tt.date)
		assert.Less(t, got, prev, tt.date)
		prev = got
	}
}

func TestCalculateCapsAt100(t *testing.T) {
	var events []Input
	for range 30 {
		events = append(events, today(event.Critical, 1))
	}
	s := Calculate(events, now)
	assert.Equal(t, 100, s.Level)
	assert.Equal(t, "Critical / Terminal", s.Position)
	assert.Equal(t, "darkred", s.Color)
}

func TestCalculateFutureDateCountsAsNew(t *testing.T) {
	future := Input{ServiceID: 1, Severity: event.Major, EventDate: "2030-01-01"}
	assert.Equal(t, 20, Calculate([]Input{future}, now).Level)
}

func TestCalculateUnknownSeverityScoresZero(t *testing.T) {
	s := Calculate([]Input{{ServiceID: 1, Severity: "weird", EventDate: "2024-01-01"}}, now)
	assert.Equal(t, 0, s.Level)
	assert.Equal(t, 1, s.EventCount)
}

func TestDecayFactor(t *testing.T) {
	tests := []struct {
		age  float64
		want float64
	}{
		{0, 1.0}, {0.9, 1.0},
		{1.0, 0.8}, {1.9, 0.8},
		{2.0, 0.6}, {2.9, 0.6},
		{3.0, 0.4}, {10, 0.4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecayFactor(tt.age), "age %v", tt.age)
	}
}

func TestBands(t *testing.T) {
	tests := []struct {
		level           int
		position, color string
	}{
		{0, "Early warning", "green"},
		{20, "Early warning", "green"},
		{21, "Noticeable decline", "yellow"},
		{40, "Noticeable decline", "yellow"},
		{41, "Significant degradation", "orange"},
		{60, "Significant degradation", "orange"},
		{61, "Severe enshittification", "red"},
		{80, "Severe enshittification", "red"},
		{81, "Critical / Terminal", "darkred"},
		{100, "Critical / Terminal", "darkred"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.position, PositionLabel(tt.level), "level %d", tt.level)
		assert.Equal(t, tt.color, ColorForLevel(tt.level), "level %d", tt.level)
	}
}

func TestFromEventsSkipsDisputed(t *testing.T) {
	inputs := FromEvents([]database.Event{
		{ServiceID: 1, Severity: "major", EventDate: "2024-01-01", Confidence: "verified"},
		{ServiceID: 1, Severity: "critical", EventDate: "2024-01-01", Confidence: "disputed"},
		{ServiceID: 2, Severity: "minor", EventDate: "2023-01-01", Confidence: "unverified"},
	})
	assert.Equal(t, []Input{
		{ServiceID: 1, Severity: event.Major, EventDate: "2024-01-01"},
		{ServiceID: 2, Severity: event.Minor, EventDate: "2023-01-01"},
	}, inputs)
}
