package interview

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/pitlane/pkg/session"
	"github.com/go-go-golems/pitlane/pkg/snippet"
)

// Each generation call site lives here together with its deterministic
// fallback. Callers never see an adapter error: unavailable and malformed
// responses both land on the fallback, and fallbacks never return empty
// strings.

const (
	fallbackAck        = "Got it—thanks for sharing."
	fallbackFollowup   = "What specific detail or feeling stands out from that moment?"
	fallbackRecapTitle = "Race Day Recap"
	followupLengthGate = 40
	maxSubjectNameLen  = 40
)

// interviewerTurn produces the acknowledgment and the next planned question.
func (e *Engine) interviewerTurn(ctx context.Context, history []session.Turn, stage int) (ack, question string) {
	ack, question = fallbackAck, e.pickVariant(stage)
	if e.gen == nil {
		return ack, question
	}
	var out interviewerFields
	if err := e.gen.Generate(ctx, buildInterviewerMessages(history, e.catalog.Stage(stage)), &out); err != nil {
		log.Warn().Err(err).Str("component", "interview").Int("stage", stage).Msg("interviewer generation failed, using fallback")
		return ack, question
	}
	if strings.TrimSpace(out.Ack) != "" {
		ack = out.Ack
	}
	if strings.TrimSpace(out.NextQuestion) != "" {
		question = out.NextQuestion
	}
	return ack, question
}

// followupQuestion produces the one-shot digression question.
func (e *Engine) followupQuestion(ctx context.Context, lastQ, lastA string) string {
	if e.gen == nil {
		return fallbackFollowup
	}
	var out followupFields
	if err := e.gen.Generate(ctx, buildFollowupMessages(lastQ, lastA), &out); err != nil {
		log.Warn().Err(err).Str("component", "interview").Msg("follow-up generation failed, using fallback")
		return fallbackFollowup
	}
	if strings.TrimSpace(out.NextQuestion) == "" {
		return fallbackFollowup
	}
	return out.NextQuestion
}

// followupAck builds the bridging acknowledgment from the most interesting
// snippet of the answer. Pure text work, no generation.
func (e *Engine) followupAck(answer string) string {
	if s := snippet.Extract(answer); s != "" {
		return fmt.Sprintf("Oh, '%s' is interesting — tell me more on this.", s)
	}
	return "Oh, that's interesting — tell me more on this."
}

// shouldFollowUp is the follow-up decision oracle. Primary path is a
// constrained classification; the fallback is a length heuristic
// approximating "non-trivial answer".
func (e *Engine) shouldFollowUp(ctx context.Context, answer string) bool {
	if e.gen != nil {
		var out classifyFields
		if err := e.gen.Generate(ctx, buildClassifyMessages(answer), &out); err == nil {
			return out.FollowUp
		} else {
			log.Warn().Err(err).Str("component", "interview").Msg("follow-up classification failed, using length heuristic")
		}
	}
	return len(strings.TrimSpace(answer)) > followupLengthGate
}

var namePatternRe = regexp.MustCompile(`(?i)\b(?:my name(?:'s| is)|i am|i'm|im|this is|call me|name's)[\s:]+([A-Za-z][A-Za-z'-]*)`)

// extractName pulls the subject's name from an identity-stage answer, via
// generation or a pattern over common self-introduction phrasings.
func (e *Engine) extractName(ctx context.Context, answer string) string {
	if e.gen != nil {
		var out nameFields
		if err := e.gen.Generate(ctx, buildNameMessages(answer), &out); err == nil {
			if name := strings.TrimSpace(out.Name); name != "" && len(name) <= maxSubjectNameLen {
				return name
			}
		} else {
			log.Warn().Err(err).Str("component", "interview").Msg("name extraction failed, using pattern fallback")
		}
	}
	m := namePatternRe.FindStringSubmatch(answer)
	if m == nil {
		return ""
	}
	return capitalize(m[1])
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// assembleRecap folds the transcript into the final titled narrative. The
// fallback concatenates every question and answer in order and cannot fail.
func (e *Engine) assembleRecap(ctx context.Context, history []session.Turn) (title, recap string) {
	if e.gen != nil {
		var out recapFields
		if err := e.gen.Generate(ctx, buildRecapMessages(history), &out); err == nil {
			if strings.TrimSpace(out.Title) != "" && strings.TrimSpace(out.Recap) != "" {
				return out.Title, out.Recap
			}
		} else {
			log.Warn().Err(err).Str("component", "interview").Msg("recap generation failed, using fallback")
		}
	}
	parts := make([]string, 0, len(history))
	for _, t := range history {
		parts = append(parts, t.Question+"\n"+t.Answer)
	}
	return fallbackRecapTitle, strings.Join(parts, "\n\n")
}
