// Package event holds the domain types shared by the research, verification
// and persistence layers: severities, categories and the raw event shape that
// providers emit.
package event

import "time"

// DateLayout is the day-precision layout used for event dates on the wire and
// in the database.
const DateLayout = "2006-01-02"

// Severity is the ordered impact level of an event.
type Severity string

const (
	Minor       Severity = "minor"
	Moderate    Severity = "moderate"
	Significant Severity = "significant"
	Major       Severity = "major"
	Critical    Severity = "critical"
)

// DefaultSeverity replaces severities outside the enumeration.
const DefaultSeverity = Moderate

// Severities lists every severity from least to most severe.
var Severities = []Severity{Minor, Moderate, Significant, Major, Critical}

// Valid reports whether s is one of the five known severities.
func (s Severity) Valid() bool {
	return s.Score() > 0
}

// Score maps minor..critical to 1..5. Unknown severities score 0.
func (s Severity) Score() int {
	switch s {
	case Minor:
		return 1
	case Moderate:
		return 2
	case Significant:
		return 3
	case Major:
		return 4
	case Critical:
		return 5
	}
	return 0
}

// Category tags what kind of decline an event represents.
type Category string

const (
	CategoryPaywall      Category = "Paywall"
	CategoryPrivacy      Category = "Privacy"
	CategoryAPI          Category = "API"
	CategoryAds          Category = "Ads"
	CategoryUX           Category = "UX"
	CategoryAlgorithm    Category = "Algorithm"
	CategoryMonetization Category = "Monetization"
	CategoryTerms        Category = "Terms"
	CategoryOther        Category = "Other"
)

// Categories lists the closed set of categories.
var Categories = []Category{
	CategoryPaywall, CategoryPrivacy, CategoryAPI, CategoryAds, CategoryUX,
	CategoryAlgorithm, CategoryMonetization, CategoryTerms, CategoryOther,
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// SelfConfidence is the confidence tier a provider reports for its own event.
type SelfConfidence string

const (
	ConfidenceHigh   SelfConfidence = "high"
	ConfidenceMedium SelfConfidence = "medium"
	ConfidenceLow    SelfConfidence = "low"
)

// Service describes the researched platform.
type Service struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Raw is one candidate event as emitted by a provider, after validation.
type Raw struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	EventDate   string         `json:"event_date"`
	Severity    Severity       `json:"severity"`
	Category    Category       `json:"event_type"`
	SourceURL   *string        `json:"source_url"`
	Confidence  SelfConfidence `json:"confidence"`
}

// Date parses EventDate. Events that passed validation always parse; anything
// else yields the zero time.
func (r Raw) Date() time.Time {
	t, err := time.Parse(DateLayout, r.EventDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Text is the combined title and description used for relevance checks.
func (r Raw) Text() string {
	return r.Title + " " + r.Description
}

// Response is a validated provider answer: the subject plus its events.
type Response struct {
	Service Service `json:"service"`
	Events  []Raw   `json:"events"`
}
