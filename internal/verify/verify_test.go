package verify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/decayclock/internal/event"
)

func ev(title, desc, date string, sev event.Severity, cat event.Category) event.Raw {
	return event.Raw{
		Title:       title,
		Description: desc,
		EventDate:   date,
		Severity:    sev,
		Category:    cat,
		Confidence:  event.ConfidenceHigh,
	}
}

func ok(name string, events ...event.Raw) ProviderResult {
	return ProviderResult{
		ProviderID:   name,
		ProviderName: name,
		Response: &event.Response{
			Service: event.Service{Name: "Service from " + name, Description: "desc", Category: "social_media"},
			Events:  events,
		},
	}
}

func failed(name string) ProviderResult {
	return ProviderResult{ProviderID: name, ProviderName: name, Err: errors.New("boom")}
}

func TestWordOverlap(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, WordOverlap("API pricing introduced", "Twitter API pricing changes"), 1e-9)
	assert.Equal(t, 0.0, WordOverlap("", "anything here"))
	// Words of two characters or fewer are ignored.
	assert.Equal(t, 0.0, WordOverlap("an ad is up", "an ad is up"))
	assert.Equal(t, 1.0, WordOverlap("Feed CHANGES", "feed changes again"))
}

func TestWordOverlapCountsCharactersNotBytes(t *testing.T) {
	// Two-character CJK words are several bytes each but still too short.
	assert.Equal(t, 0.0, WordOverlap("广告 增加", "广告 增加"))
	assert.Equal(t, 1.0, WordOverlap("Über Gebühr", "über gebühr"))
}

func TestEventsMatchReflexive(t *testing.T) {
	e := ev("Reddit API pricing", "Reddit charged third-party apps", "2023-06-01", event.Major, event.CategoryAPI)
	assert.True(t, EventsMatch(e, e))
}

func TestEventsMatchRequiresSameMonth(t *testing.T) {
	a := ev("Reddit API pricing", "x", "2023-06-30", event.Major, event.CategoryAPI)
	b := ev("Reddit API pricing", "x", "2023-07-01", event.Major, event.CategoryAPI)
	c := ev("Reddit API pricing", "x", "2022-06-15", event.Major, event.CategoryAPI)
	assert.False(t, EventsMatch(a, b))
	assert.False(t, EventsMatch(a, c))
}

func TestEventsMatchCategoryWildcard(t *testing.T) {
	a := ev("Reddit API pricing", "x", "2023-06-01", event.Major, event.CategoryAPI)
	b := ev("Reddit API pricing", "x", "2023-06-09", event.Major, event.CategoryOther)
	c := ev("Reddit API pricing", "x", "2023-06-09", event.Major, event.CategoryAds)
	assert.True(t, EventsMatch(a, b))
	assert.True(t, EventsMatch(b, c))
	assert.False(t, EventsMatch(a, c))
}

func TestEventsMatchDescriptionNeedsEqualSeverity(t *testing.T) {
	desc := "Reddit started charging developers for access to its data"
	a := ev("Developer access charged", desc, "2023-04-18", event.Major, event.CategoryAPI)
	b := ev("Pricing for the data interface", desc, "2023-04-20", event.Major, event.CategoryAPI)
	c := ev("Pricing for the data interface", desc, "2023-04-20", event.Critical, event.CategoryAPI)
	assert.True(t, EventsMatch(a, b))
	assert.False(t, EventsMatch(a, c))
}

func TestDetermineConfidence(t *testing.T) {
	cases := []struct {
		agree, total int
		want         Confidence
	}{
		{1, 1, Likely},
		{1, 2, Unverified},
		{2, 2, Verified},
		{2, 3, Likely},
		{3, 3, Verified},
		{3, 5, Verified},
		{1, 4, Unverified},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DetermineConfidence(c.agree, c.total), "agree=%d total=%d", c.agree, c.total)
	}
}

func TestSingleProviderNeverVerified(t *testing.T) {
	res := CrossVerify([]ProviderResult{
		ok("solo",
			ev("Netflix password sharing crackdown", "Netflix charged for extra members", "2023-05-23", event.Major, event.CategoryPaywall),
			ev("Netflix removed basic plan", "Netflix dropped the cheapest ad-free tier", "2023-07-19", event.Significant, event.CategoryMonetization),
		),
	}, "Netflix")

	require.Len(t, res.Events, 2)
	for _, e := range res.Events {
		assert.Equal(t, Likely, e.Verification.Confidence)
		assert.Equal(t, 100, e.Verification.ConsensusScore)
		assert.Equal(t, []string{"solo"}, e.Verification.AgreedBy)
	}
	assert.Equal(t, 0, res.Metadata.VerifiedEventCount)
	assert.Equal(t, 100, res.Metadata.ConsensusScore)
}

func TestThreeProvidersAllAgree(t *testing.T) {
	res := CrossVerify([]ProviderResult{
		ok("a", ev("Spotify raised premium price", "Spotify increased Premium", "2023-07-24", event.Significant, event.CategoryMonetization)),
		ok("b", ev("Spotify premium price raised", "Spotify hikes prices", "2023-07-25", event.Significant, event.CategoryMonetization)),
		ok("c", ev("Spotify Premium price increase", "Spotify price hike in US", "2023-07-01", event.Major, event.CategoryOther)),
	}, "Spotify")

	require.Len(t, res.Events, 1)
	got := res.Events[0]
	assert.Equal(t, Verified, got.Verification.Confidence)
	assert.Equal(t, 100, got.Verification.ConsensusScore)
	assert.Equal(t, []string{"a", "b", "c"}, got.Verification.AgreedBy)
	assert.Equal(t, event.Significant, got.Severity)
	assert.Equal(t, "Spotify raised premium price", got.Title)
	assert.Equal(t, 1, res.Metadata.VerifiedEventCount)
	assert.Equal(t, 1, res.Metadata.TotalEventCount)
}

func TestSingleSourceEventDroppedWhenCorroborationPossible(t *testing.T) {
	shared := func() event.Raw {
		return ev("Reddit API pricing announced", "Reddit charges apps", "2023-04-18", event.Major, event.CategoryAPI)
	}
	res := CrossVerify([]ProviderResult{
		ok("a", shared(), ev("Reddit blackout protest", "Subreddits went dark on Reddit", "2023-06-12", event.Moderate, event.CategoryTerms)),
		ok("b", shared()),
		ok("c", shared()),
	}, "Reddit")

	require.Len(t, res.Events, 1)
	assert.Equal(t, "Reddit API pricing announced", res.Events[0].Title)
	for _, e := range res.Events {
		assert.NotEqual(t, Unverified, e.Verification.Confidence)
	}
}

func TestOnlyOneProviderFoundItWithThreeQueried(t *testing.T) {
	lonely := ev("Twitter removed legacy checkmarks", "Twitter dropped legacy verification", "2023-04-20", event.Significant, event.CategoryPaywall)
	res := CrossVerify([]ProviderResult{
		ok("a", lonely),
		ok("b", ev("Twitter rate limited reading", "Twitter capped posts per day", "2023-07-01", event.Major, event.CategoryUX)),
		ok("c", ev("Twitter rebranded to X", "Twitter renamed the service", "2023-07-23", event.Minor, event.CategoryUX)),
	}, "Twitter")

	for _, e := range res.Events {
		assert.NotEqual(t, lonely.Title, e.Title)
	}
	assert.Empty(t, res.Events)
	assert.Equal(t, 0, res.Metadata.ConsensusScore)
	assert.Equal(t, []string{"a", "b", "c"}, res.Metadata.ProvidersSucceeded)
}

func TestTwoProviderNearDuplicateMerges(t *testing.T) {
	a := ev("API pricing introduced", "Twitter ended free API access", "2023-02-10", event.Major, event.CategoryAPI)
	b := ev("Twitter API pricing changes", "Twitter moved the API to paid tiers", "2023-02-20", event.Significant, event.CategoryAPI)

	res := CrossVerify([]ProviderResult{ok("A", a), ok("B", b)}, "Twitter")

	require.Len(t, res.Events, 1)
	got := res.Events[0]
	assert.Equal(t, Verified, got.Verification.Confidence)
	assert.Equal(t, 100, got.Verification.ConsensusScore)
	assert.Equal(t, event.Major, got.Severity, "tie resolves to the representative's severity")
	assert.Equal(t, "API pricing introduced", got.Title)
	assert.Equal(t, "2023-02-10", got.EventDate)
}

func TestMajoritySeverityWins(t *testing.T) {
	res := CrossVerify([]ProviderResult{
		ok("a", ev("Spotify raised premium price", "Spotify", "2024-06-03", event.Minor, event.CategoryMonetization)),
		ok("b", ev("Spotify premium price raised", "Spotify", "2024-06-04", event.Major, event.CategoryMonetization)),
		ok("c", ev("Spotify premium price raised again", "Spotify", "2024-06-05", event.Major, event.CategoryMonetization)),
	}, "Spotify")

	require.Len(t, res.Events, 1)
	assert.Equal(t, event.Major, res.Events[0].Severity)
	assert.Equal(t, "Spotify raised premium price", res.Events[0].Title)
}

func TestNonTransitiveMatchingFollowsRepresentative(t *testing.T) {
	// A matches B and B matches C, but A does not match C. Groups only test
	// against their representative, so C starts its own group.
	a := ev("ads feed timeline changes", "Reddit altered homepage layout drastically", "2024-03-02", event.Moderate, event.CategoryUX)
	b := ev("feed timeline ranking shift", "Reddit reordered posts using engagement", "2024-03-10", event.Moderate, event.CategoryUX)
	c := ev("ranking shift sponsored posts", "Reddit introduced promoted content everywhere", "2024-03-20", event.Moderate, event.CategoryUX)

	require.True(t, EventsMatch(a, b))
	require.True(t, EventsMatch(b, c))
	require.False(t, EventsMatch(a, c))

	res := CrossVerify([]ProviderResult{ok("solo", a, b, c)}, "Reddit")
	require.Len(t, res.Events, 2)
	assert.Equal(t, a.Title, res.Events[0].Title)
	assert.Equal(t, c.Title, res.Events[1].Title)
}

func TestGroupingIsDeterministic(t *testing.T) {
	input := func() []ProviderResult {
		return []ProviderResult{
			ok("a",
				ev("YouTube removed dislike counts", "YouTube hid dislikes", "2021-11-10", event.Significant, event.CategoryUX),
				ev("YouTube unskippable ads", "YouTube added more ads", "2022-09-01", event.Major, event.CategoryAds),
			),
			ok("b",
				ev("YouTube dislike counts hidden", "YouTube hid dislikes", "2021-11-11", event.Significant, event.CategoryUX),
				ev("YouTube ad blocker crackdown", "YouTube blocked ad blockers", "2023-10-01", event.Major, event.CategoryAds),
			),
		}
	}
	first := CrossVerify(input(), "YouTube")
	second := CrossVerify(input(), "YouTube")
	assert.Equal(t, first, second)
}

func TestSameProviderCountsOnce(t *testing.T) {
	res := CrossVerify([]ProviderResult{
		ok("a",
			ev("Netflix ads tier launched", "Netflix added ads", "2022-11-03", event.Significant, event.CategoryAds),
			ev("Netflix ads tier launches", "Netflix added ads", "2022-11-04", event.Significant, event.CategoryAds),
		),
		ok("b", ev("Netflix password sharing fee", "Netflix charged households", "2023-05-23", event.Major, event.CategoryPaywall)),
	}, "Netflix")

	// The duplicate pair only has one distinct provider: unverified, dropped.
	for _, e := range res.Events {
		assert.NotEqual(t, "Netflix ads tier launched", e.Title)
	}
}

func TestFailedProvidersAndServiceSelection(t *testing.T) {
	shared := ev("Amazon Prime Video ads by default", "Amazon added ads to Prime Video", "2024-01-29", event.Significant, event.CategoryAds)
	res := CrossVerify([]ProviderResult{
		failed("first"),
		ok("second", shared),
		ok("third", shared),
	}, "Amazon")

	assert.Equal(t, "Service from second", res.Service.Name)
	assert.Equal(t, []string{"first", "second", "third"}, res.Metadata.ProvidersQueried)
	assert.Equal(t, []string{"second", "third"}, res.Metadata.ProvidersSucceeded)
	require.Len(t, res.Events, 1)
	assert.Equal(t, Verified, res.Events[0].Verification.Confidence)
}

func TestNoSuccessfulResults(t *testing.T) {
	res := CrossVerify([]ProviderResult{failed("a")}, "Reddit")
	assert.Empty(t, res.Events)
	assert.Equal(t, "Unknown", res.Service.Name)
	assert.Equal(t, 0, res.Metadata.ConsensusScore)
}

func TestIrrelevantEventsFilteredAndInputUntouched(t *testing.T) {
	input := []ProviderResult{ok("a",
		ev("Facebook feed ads doubled", "Facebook inserted ads", "2022-01-05", event.Moderate, event.CategoryAds),
		ev("Instagram Reels forced", "Short videos everywhere", "2022-07-01", event.Moderate, event.CategoryUX),
	)}
	res := CrossVerify(input, "Facebook")
	require.Len(t, res.Events, 1)
	assert.Len(t, input[0].Response.Events, 2)
}

func TestEventsSortedByDate(t *testing.T) {
	res := CrossVerify([]ProviderResult{ok("a",
		ev("Reddit blackout", "Reddit protest", "2023-06-12", event.Moderate, event.CategoryTerms),
		ev("Reddit IPO", "Reddit went public", "2024-03-21", event.Minor, event.CategoryOther),
		ev("Reddit API pricing", "Reddit charges apps", "2023-04-18", event.Major, event.CategoryAPI),
	)}, "Reddit")

	require.Len(t, res.Events, 3)
	assert.Equal(t, "2023-04-18", res.Events[0].EventDate)
	assert.Equal(t, "2023-06-12", res.Events[1].EventDate)
	assert.Equal(t, "2024-03-21", res.Events[2].EventDate)
}

func TestOverallConsensusIsMean(t *testing.T) {
	sharedAll := ev("Twitter Blue checkmarks paid", "Twitter sold verification", "2022-11-09", event.Major, event.CategoryPaywall)
	sharedTwo := ev("Twitter API free tier ended", "Twitter ended free API access", "2023-02-09", event.Major, event.CategoryAPI)
	res := CrossVerify([]ProviderResult{
		ok("a", sharedAll, sharedTwo),
		ok("b", sharedAll, sharedTwo),
		ok("c", sharedAll),
	}, "Twitter")

	require.Len(t, res.Events, 2)
	assert.Equal(t, 100, res.Events[0].Verification.ConsensusScore)
	assert.Equal(t, 67, res.Events[1].Verification.ConsensusScore)
	assert.Equal(t, Likely, res.Events[1].Verification.Confidence)
	assert.Equal(t, 84, res.Metadata.ConsensusScore)
	assert.Equal(t, 1, res.Metadata.VerifiedEventCount)
}
