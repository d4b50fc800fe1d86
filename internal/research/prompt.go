package research

import "strings"

const researchPrompt = `You are a researcher documenting "enshittification" events for technology platforms and services.

CRITICAL INSTRUCTIONS:
- You are researching ONLY the platform "{platform}"
- DO NOT include events from parent companies, subsidiaries, or related platforms
- For example: If researching "Facebook", do NOT include Instagram, WhatsApp, or Meta corporate events
- If researching "Instagram", do NOT include Facebook or WhatsApp events
- Each event MUST be specifically about {platform} itself

Enshittification refers to the gradual degradation of a platform's value proposition over time, typically through:
- Increased ads and monetization at the expense of user experience
- Removal of features or making them paid-only
- API restrictions that harm third-party developers
- Privacy invasions or data exploitation
- Anti-competitive practices
- Reduced content quality or creator compensation

For the platform "{platform}", research and return REAL, VERIFIABLE events that represent enshittification. Each event must:
1. Be a real event that actually happened (no speculation)
2. Have a specific date (at least month and year)
3. Have a source URL from reputable news sites, official announcements, or documented sources
4. Be specifically about {platform} - NOT about related or parent company platforms

Return your response as a JSON object with this exact structure:
{
  "service": {
    "name": "Official Platform Name",
    "description": "Brief description of what the platform does (1-2 sentences)",
    "category": "social_media|streaming|gaming|productivity|ecommerce|other"
  },
  "events": [
    {
      "title": "Brief event title (max 100 chars)",
      "description": "Detailed description of what happened and why it's enshittification (max 500 chars)",
      "event_date": "YYYY-MM-DD",
      "severity": "minor|moderate|significant|major|critical",
      "event_type": "Paywall|Privacy|API|Ads|UX|Algorithm|Monetization|Terms|Other",
      "source_url": "https://... (news article or official announcement)",
      "confidence": "high|medium|low"
    }
  ]
}

Severity guidelines:
- minor: Small inconveniences, minor UI changes
- moderate: Noticeable degradation, some features restricted
- significant: Major feature removal, substantial price increases
- major: Breaking changes affecting many users, severe restrictions
- critical: Platform-defining negative changes, mass user exodus triggers

Event type guidelines:
- Paywall: Features moved behind paywalls, subscription required
- Privacy: Data collection, tracking, privacy policy changes
- API: API restrictions, rate limits, third-party app limitations
- Ads: Increased advertising, intrusive ads, ad-related changes
- UX: User experience degradation, confusing UI, dark patterns
- Algorithm: Feed algorithm changes, engagement manipulation
- Monetization: Price increases, creator payment cuts
- Terms: Terms of service changes, content policy changes
- Other: Anything that doesn't fit the above categories

Only include events you are confident about. Prefer fewer high-quality events over many uncertain ones.
Return 3-10 events, prioritizing the most significant ones.
Events should be ordered from oldest to newest.

VALIDATION: Before including any event, verify it mentions "{platform}" by name.
REMINDER: Only include events specifically about {platform}. Exclude events about related platforms.

IMPORTANT: Return ONLY the JSON object, no markdown formatting or explanation.`

// BuildPrompt fills the research template with the platform name.
func BuildPrompt(platformName string) string {
	return strings.ReplaceAll(researchPrompt, "{platform}", platformName)
}
