// Package platform decides whether a piece of text is specifically about a
// target platform, rather than a parent company or sibling product.
package platform

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/TobiSchelling/decayclock/internal/event"
)

// shortAlias is the longest name or alias that must match as a whole word.
// Names like "x" or "fb" would otherwise match inside almost any text.
const shortAlias = 3

var aliases = map[string][]string{
	"facebook":  {"fb", "facebook"},
	"instagram": {"ig", "instagram", "insta"},
	"twitter":   {"x", "twitter"},
	"youtube":   {"yt", "youtube"},
	"tiktok":    {"tiktok", "tt"},
	"snapchat":  {"snap", "snapchat"},
	"linkedin":  {"li", "linkedin"},
	"reddit":    {"reddit"},
	"whatsapp":  {"whatsapp", "wa"},
	"netflix":   {"netflix"},
	"spotify":   {"spotify"},
	"amazon":    {"amazon", "amz"},
	"google":    {"google"},
	"apple":     {"apple"},
	"microsoft": {"microsoft", "ms"},
	"meta":      {"meta"},
}

var siblings = map[string][]string{
	"facebook":  {"instagram", "whatsapp", "meta", "oculus", "threads"},
	"instagram": {"facebook", "whatsapp", "meta", "threads"},
	"whatsapp":  {"facebook", "instagram", "meta"},
	"meta":      {"facebook", "instagram", "whatsapp", "oculus", "threads"},
	"youtube":   {"google"},
	"google":    {"youtube", "android", "chrome"},
}

// canonicalByAlias maps every alias back to its table entry, so "x" and
// "ig" resolve to twitter and instagram.
var canonicalByAlias = func() map[string]string {
	m := make(map[string]string)
	for key, names := range aliases {
		m[key] = key
		for _, a := range names {
			m[a] = key
		}
	}
	return m
}()

// canonical returns the table key for a platform name or alias, or the
// normalized name when the platform is not in the table.
func canonical(platform string) string {
	name := normalize(platform)
	if key, ok := canonicalByAlias[name]; ok {
		return key
	}
	return name
}

// Aliases returns the names the platform is known by, including the platform
// name itself. A platform given by one of its aliases gets the full entry.
// Unknown platforms only have their own name.
func Aliases(platform string) []string {
	name := normalize(platform)
	out := []string{name}
	for _, a := range aliases[canonical(name)] {
		if a != name {
			out = append(out, a)
		}
	}
	return out
}

// Siblings returns the related entities that must not be credited to the
// platform.
func Siblings(platform string) []string {
	return siblings[canonical(platform)]
}

// MentionsPlatform reports whether text names the platform or one of its
// aliases, case-insensitively. Names of shortAlias characters or fewer,
// including the platform name itself, must appear as whole words.
func MentionsPlatform(text, platform string) bool {
	lower := strings.ToLower(text)
	for _, a := range Aliases(platform) {
		if a == "" {
			continue
		}
		if utf8.RuneCountInString(a) <= shortAlias {
			if containsWord(lower, a) {
				return true
			}
			continue
		}
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}

// MentionsSibling reports whether text names a sibling of the platform while
// the platform itself never appears as a standalone word. A substring hit on
// the platform name (say "facebook" inside a crawler name) is not enough to
// keep an event that is really about a sibling.
func MentionsSibling(text, platform string) bool {
	related := Siblings(platform)
	if len(related) == 0 {
		return false
	}
	lower := strings.ToLower(text)

	for _, a := range Aliases(platform) {
		if a != "" && containsWord(lower, a) {
			return false
		}
	}

	for _, sib := range related {
		for _, a := range Aliases(sib) {
			if containsWord(lower, a) {
				return true
			}
		}
	}
	return false
}

// Relevant applies the must-mention rule and then the sibling-exclusion rule.
func Relevant(text, platform string) bool {
	if !MentionsPlatform(text, platform) {
		return false
	}
	return !MentionsSibling(text, platform)
}

// FilterEvents keeps the events whose title and description are relevant to
// the platform. The input slice is not modified.
func FilterEvents(events []event.Raw, platform string) []event.Raw {
	out := make([]event.Raw, 0, len(events))
	for _, e := range events {
		if Relevant(e.Text(), platform) {
			out = append(out, e)
		}
	}
	return out
}

func normalize(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// wordPatterns caches one compiled whole-word pattern per alias.
var wordPatterns sync.Map

func containsWord(lowerText, word string) bool {
	if cached, ok := wordPatterns.Load(word); ok {
		return cached.(*regexp.Regexp).MatchString(lowerText)
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	actual, _ := wordPatterns.LoadOrStore(word, re)
	return actual.(*regexp.Regexp).MatchString(lowerText)
}
