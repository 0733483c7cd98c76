// Package snippet pulls a short, human-sounding quote out of an interview
// answer. It is used to build acknowledgments without calling the generation
// backend, so it must stay a pure text scan.
package snippet

import (
	"regexp"
	"strings"
)

const (
	maxLen        = 70
	wordsEachSide = 4
	ellipsis      = "…"
)

// Keyword buckets scanned in order: driving technique, on-track incident,
// setup/equipment vocabulary. All lowercase.
var buckets = [][]string{
	{
		"trail braking", "left-foot braking", "left foot braking",
		"late apex", "early apex", "double apex", "heel-toe", "heel toe",
		"throttle modulation", "rotation", "lift-off", "lift off",
		"scandinavian flick", "handbrake", "feathering the throttle",
		"line choice", "braking point", "turn-in", "turn in", "apex", "exit speed",
	},
	{
		"spin", "half-spin", "cone", "red flag", "off-course", "off course",
		"save", "slide", "snap oversteer", "tank slapper", "big moment",
		"launch", "start", "finish", "holeshot", "hairpin", "chicane", "delta",
	},
	{
		"tires", "tyres", "tire pressures", "pressure", "sway bar", "anti-roll bar",
		"arb", "camber", "toe", "caster", "coilovers", "springs", "dampers",
		"alignment", "pad", "pads", "brake pads", "rotors", "intake", "exhaust",
		"tune", "map", "ecu", "wing", "spoiler", "splitter", "diffuser", "aero",
		"limited-slip", "lsd", "gear", "gearing",
	},
}

var tokenRe = regexp.MustCompile(`\S+`)

// Extract returns a bounded window of original-case text centered on the
// first keyword match, or a bounded prefix of the normalized input when no
// keyword matches. The result is never longer than 70 characters plus an
// ellipsis marker.
func Extract(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, bucket := range buckets {
		for _, kw := range bucket {
			if pos := strings.Index(lower, kw); pos != -1 {
				return windowPhrase(text, pos, pos+len(kw))
			}
		}
	}
	return truncate(normalize(text))
}

func windowPhrase(src string, matchStart, matchEnd int) string {
	tokens := tokenRe.FindAllStringIndex(src, -1)
	tokenIdx := -1
	for i, m := range tokens {
		if m[0] <= matchStart && matchStart < m[1] {
			tokenIdx = i
			break
		}
	}
	var phrase string
	if tokenIdx == -1 {
		phrase = src[matchStart:matchEnd]
	} else {
		lo := tokenIdx - wordsEachSide
		if lo < 0 {
			lo = 0
		}
		hi := tokenIdx + wordsEachSide
		if hi > len(tokens)-1 {
			hi = len(tokens) - 1
		}
		phrase = src[tokens[lo][0]:tokens[hi][1]]
	}
	return truncate(normalize(phrase))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + ellipsis
}
