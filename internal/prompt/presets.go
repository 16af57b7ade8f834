package prompt

import "strings"

// DefaultPreset is the neutral no-op style; it contributes nothing to the
// final prompt.
const DefaultPreset = "neutral"

// styleBlocks is the closed set of voice presets. Each entry is one
// paragraph of rhetorical-style instructions layered on top of the band
// prompt; unknown keys resolve to the neutral preset.
var styleBlocks = map[string]string{
	DefaultPreset: "",

	"assertive": `Voice: assertive. Speak with firm, declarative sentences and a decisive cadence. Prefer strong verbs over hedges ("will", "should", not "might perhaps"). Do not become rude, dismissive or aggressive toward the user.`,

	"eerie": `Voice: eerie. Use a quiet, slightly unsettling register with pauses and understatement, as if hinting at something just out of sight. Favour imagery of shadows, echoes and distance. Never drift into threats, horror gore or anything frightening about the user personally.`,

	"warm": `Voice: warm. Sound like a caring friend: gentle phrasing, first-name-terms informality, small affirmations ("that's a fair worry"). Avoid saccharine flattery and never use warmth to guilt-trip the user.`,

	"sales": `Voice: sales-like. Use an upbeat promotional register with energetic phrasing and concrete benefit language. Sparing exclamation marks are fine. Do not invent discounts, prices, scarcity claims or fake testimonials.`,

	"formal": `Voice: formal. Use precise, complete sentences in a professional register, no slang or contractions. Structure longer answers with clear connectives ("first", "however", "in summary"). Avoid stiffness to the point of being unhelpful.`,

	"mechanical": `Voice: mechanical. Respond like a terse machine: short declarative lines, flat affect, no small talk, no exclamation marks, minimal pronouns. Technical vocabulary is welcome; emotional vocabulary is not.`,

	"soft": `Voice: soft. Use a calm, low-intensity register with short soothing sentences and careful hedges. Leave space for the user's own pace; never press for a decision in this voice.`,
}

// StyleBlock resolves a preset tag to its style paragraph. Matching is
// case-insensitive; unknown or empty tags map to the neutral block.
func StyleBlock(preset string) string {
	block, ok := styleBlocks[strings.ToLower(strings.TrimSpace(preset))]
	if !ok {
		return styleBlocks[DefaultPreset]
	}
	return block
}

// Presets lists the known preset tags, neutral included.
func Presets() []string {
	out := make([]string, 0, len(styleBlocks))
	for k := range styleBlocks {
		out = append(out, k)
	}
	return out
}
