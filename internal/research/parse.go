package research

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/TobiSchelling/decayclock/internal/event"
	"github.com/TobiSchelling/decayclock/internal/llm"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// fields is a JSON object whose values are decoded lazily, so every field can
// be type-checked before anything is trusted.
type fields map[string]json.RawMessage

// ParseResponse turns provider text into a validated response. It decodes,
// validates the structure and then normalises recoverable values: unknown
// severities and categories are coerced to defaults and low-confidence
// events are dropped. Structural defects reject the whole response.
func ParseResponse(text string, now time.Time) (*event.Response, error) {
	body := []byte(llm.ExtractJSON(text))
	if !json.Valid(body) {
		return nil, parseError("Failed to parse JSON response", nil)
	}

	var root fields
	if err := json.Unmarshal(body, &root); err != nil || root == nil {
		return nil, validationError("Response is not an object")
	}

	service, err := parseService(root)
	if err != nil {
		return nil, err
	}

	rawEvents, err := eventList(root)
	if err != nil {
		return nil, err
	}

	events := make([]event.Raw, 0, len(rawEvents))
	for i, raw := range rawEvents {
		e, err := parseEvent(raw, i, now)
		if err != nil {
			return nil, err
		}
		if e.Confidence == event.ConfidenceLow {
			continue
		}
		events = append(events, e)
	}

	return &event.Response{Service: service, Events: events}, nil
}

func parseService(root fields) (event.Service, error) {
	var svc fields
	if !object(root["service"], &svc) {
		return event.Service{}, validationError("Missing or invalid service object")
	}

	name, ok := stringField(svc, "name")
	if !ok || strings.TrimSpace(name) == "" {
		return event.Service{}, validationError("Service name is required")
	}
	description, ok := stringField(svc, "description")
	if !ok {
		return event.Service{}, validationError("Service description is required")
	}
	category, ok := stringField(svc, "category")
	if !ok {
		return event.Service{}, validationError("Service category is required")
	}

	return event.Service{Name: name, Description: description, Category: category}, nil
}

func eventList(root fields) ([]json.RawMessage, error) {
	raw, ok := root["events"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, validationError("Events must be an array")
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, validationError("Events must be an array")
	}
	if len(list) == 0 {
		return nil, validationError("At least one event is required")
	}
	return list, nil
}

func parseEvent(raw json.RawMessage, index int, now time.Time) (event.Raw, error) {
	var f fields
	if !object(raw, &f) {
		return event.Raw{}, validationError("Event %d is not an object", index)
	}

	title, ok := stringField(f, "title")
	if !ok || strings.TrimSpace(title) == "" {
		return event.Raw{}, validationError("Event %d is missing title", index)
	}
	description, ok := stringField(f, "description")
	if !ok || strings.TrimSpace(description) == "" {
		return event.Raw{}, validationError("Event %d is missing description", index)
	}
	date, ok := stringField(f, "event_date")
	if !ok || !validDate(date, now) {
		return event.Raw{}, validationError("Event %d has invalid date format (expected YYYY-MM-DD)", index)
	}
	severity, ok := stringField(f, "severity")
	if !ok {
		return event.Raw{}, validationError("Event %d is missing severity", index)
	}

	category, _ := stringField(f, "event_type")
	confidence, _ := stringField(f, "confidence")

	e := event.Raw{
		Title:       title,
		Description: description,
		EventDate:   date,
		Severity:    normalizeSeverity(severity),
		Category:    normalizeCategory(category),
		Confidence:  event.SelfConfidence(strings.ToLower(strings.TrimSpace(confidence))),
	}
	if src, ok := stringField(f, "source_url"); ok && strings.TrimSpace(src) != "" {
		src = strings.TrimSpace(src)
		e.SourceURL = &src
	}
	return e, nil
}

// validDate accepts strict YYYY-MM-DD calendar dates that are not in the
// future.
func validDate(s string, now time.Time) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	d, err := time.Parse(event.DateLayout, s)
	if err != nil {
		return false
	}
	return !d.After(now)
}

func normalizeSeverity(s string) event.Severity {
	sev := event.Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Valid() {
		return sev
	}
	return event.DefaultSeverity
}

func normalizeCategory(s string) event.Category {
	s = strings.TrimSpace(s)
	for _, c := range event.Categories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return event.CategoryOther
}

// object decodes raw into out only when raw is a JSON object.
func object(raw json.RawMessage, out *fields) bool {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// stringField returns f[key] when it is a JSON string. Null, numbers and
// other types are reported as missing.
func stringField(f fields, key string) (string, bool) {
	raw, ok := f[key]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
