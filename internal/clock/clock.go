// Package clock turns stored events into the single decay level shown on the
// front page.
package clock

import (
	"math"
	"time"

	"github.com/TobiSchelling/decayclock/internal/database"
	"github.com/TobiSchelling/decayclock/internal/event"
	"github.com/TobiSchelling/decayclock/internal/verify"
)

const (
	yearLength = 365.25 * 24 * time.Hour
	// normalization scales the weighted severity sum onto 0..100.
	normalization = 2.0
	maxLevel      = 100
)

// Input is the part of a stored event the clock needs.
type Input struct {
	ServiceID int64
	Severity  event.Severity
	EventDate string
}

// State is the computed gauge reading.
type State struct {
	Level        int
	Position     string
	Color        string
	EventCount   int
	ServiceCount int
	LastUpdated  time.Time
}

// FromEvents converts stored events. Disputed events do not count towards
// the level.
func FromEvents(events []database.Event) []Input {
	inputs := make([]Input, 0, len(events))
	for _, e := range events {
		if e.Confidence == string(verify.Disputed) {
			continue
		}
		inputs = append(inputs, Input{
			ServiceID: e.ServiceID,
			Severity:  event.Severity(e.Severity),
			EventDate: e.EventDate,
		})
	}
	return inputs
}

// Calculate weighs each event's severity by its age and normalises the sum to
// a level between 0 and 100.
func Calculate(events []Input, now time.Time) State {
	total := 0.0
	services := make(map[int64]struct{})
	for _, e := range events {
		total += float64(e.Severity.Score()) * DecayFactor(ageYears(e.EventDate, now))
		services[e.ServiceID] = struct{}{}
	}

	level := int(math.Round(total / normalization * 10))
	level = min(max(level, 0), maxLevel)

	return State{
		Level:        level,
		Position:     PositionLabel(level),
		Color:        ColorForLevel(level),
		EventCount:   len(events),
		ServiceCount: len(services),
		LastUpdated:  now,
	}
}

// DecayFactor is the weight of an event that is ageYears old.
func DecayFactor(ageYears float64) float64 {
	switch {
	case ageYears < 1:
		return 1.0
	case ageYears < 2:
		return 0.8
	case ageYears < 3:
		return 0.6
	default:
		return 0.4
	}
}

// PositionLabel names the band a level falls into.
func PositionLabel(level int) string {
	switch {
	case level <= 20:
		return "Early warning"
	case level <= 40:
		return "Noticeable decline"
	case level <= 60:
		return "Significant degradation"
	case level <= 80:
		return "Severe enshittification"
	default:
		return "Critical / Terminal"
	}
}

// ColorForLevel is the gauge colour for a level.
func ColorForLevel(level int) string {
	switch {
	case level <= 20:
		return "green"
	case level <= 40:
		return "yellow"
	case level <= 60:
		return "orange"
	case level <= 80:
		return "red"
	default:
		return "darkred"
	}
}

// ageYears is the age of an event in years. Future and unparseable dates
// count as brand new.
func ageYears(date string, now time.Time) float64 {
	d, err := time.Parse(event.DateLayout, date)
	if err != nil {
		return 0
	}
	return max(0, float64(now.Sub(d))/float64(yearLength))
}
