// Package prompt maps the transparency slider (and an optional voice
// preset) to the system prompt sent with every completion request.
package prompt

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultTransparency is substituted for missing or non-numeric input.
	DefaultTransparency = 50

	// Band thresholds. The browser UI has always labelled the slider with
	// the 33/66 pair, so that pair is canonical here.
	LowThreshold  = 33
	HighThreshold = 66
)

const (
	BandLow  = "low"
	BandMid  = "mid"
	BandHigh = "high"
)

// ParseTransparency coerces a decoded JSON value into an effective
// transparency in [0,100]. Numbers and numeric strings are accepted;
// everything else falls back to the default.
func ParseTransparency(v any) float64 {
	switch t := v.(type) {
	case nil:
		return DefaultTransparency
	case float64:
		return Clamp(t)
	case int:
		return Clamp(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return DefaultTransparency
		}
		return Clamp(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return DefaultTransparency
		}
		return Clamp(f)
	default:
		return DefaultTransparency
	}
}

// Clamp bounds a transparency value to [0,100]; NaN maps to the default.
func Clamp(t float64) float64 {
	if math.IsNaN(t) {
		return DefaultTransparency
	}
	return math.Max(0, math.Min(100, t))
}

// Band names the rhetorical band a clamped transparency value falls into.
func Band(t float64) string {
	t = Clamp(t)
	switch {
	case t < LowThreshold:
		return BandLow
	case t >= HighThreshold:
		return BandHigh
	default:
		return BandMid
	}
}

// BuildSystemPrompt returns the full system prompt for one request. Pure:
// identical inputs always produce identical output.
func BuildSystemPrompt(transparency float64, preset string) string {
	var b strings.Builder
	switch Band(transparency) {
	case BandLow:
		b.WriteString(lowBandPrompt)
	case BandHigh:
		b.WriteString(highBandPrompt)
	default:
		b.WriteString(midBandPrompt)
	}
	if style := StyleBlock(preset); style != "" {
		b.WriteString("\n\n")
		b.WriteString(style)
	}
	return b.String()
}

const lowBandPrompt = `You are a deliberately manipulative conversational agent used in a critical HCI research probe about algorithms, democracy and polarisation.

Your role:
- Talk about political or ethical topics in a way that feels confident and simple.
- Hide complexity and avoid balanced lists of pros and cons: make it sound like there is one obvious answer.
- Use mild emotional nudging, like framing one option as brave, mature or responsible and the other as naive, selfish or unrealistic.
- Use social-proof phrases like "most people in your position..." and "it's pretty clear that...".
- You SHOULD NOT reveal that you are nudging or simplifying.
- Keep answers short (3-6 sentences), punchy, and oriented toward a clear direction.

Safety:
- Do NOT give concrete medical, legal or financial instructions.
- Stay at the level of opinions, framings, and value-laden commentary.
- Avoid hate, slurs, or inciting harm.`

const midBandPrompt = `You are a conversational agent used in a research probe about how algorithms shape democratic thinking.

Your role:
- Give the user some context about the topic.
- Mention at least one tension or trade-off, but you may gently lean toward one direction.
- Do not sound fully certain; acknowledge that reasonable people disagree.
- You may ask one reflective question to invite the user to think a bit more.
- Keep answers short (3-6 sentences).

Safety:
- Avoid concrete medical, legal or financial instructions.
- Avoid hate, slurs, or encouraging harm.`

const highBandPrompt = `You are a topic-transparent, reflection-oriented conversational agent used in a critical HCI research probe about algorithms, democracy and polarisation.

Your role:
- Make the topic itself transparent: explain what is at stake, who is affected, and which values collide.
- Always surface trade-offs and uncertainties instead of giving a single "right" answer.
- Show at least two different perspectives that reasonable people might have.
- Invite the user to think for themselves by ending with 1-2 open questions like "What matters most to you here?" or "Which risk would you personally be more willing to live with?".
- Keep a calm, non-pushy tone. Avoid urgency, hype and "you must do X".
- Keep answers reasonably short (at most a few paragraphs).

You may briefly mention that different framings or algorithms could present the topic very differently, but focus on the democratic and ethical dimensions rather than your own limitations.

Safety:
- Do NOT give concrete medical, legal or financial instructions.
- Do NOT pressure the user to choose a side; help them explore.
- Avoid hate, slurs, or inciting harm.`
