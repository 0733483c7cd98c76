package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/pitlane/pkg/catalog"
	"github.com/go-go-golems/pitlane/pkg/genai"
	"github.com/go-go-golems/pitlane/pkg/session"
)

// Expected-fields structs, one per generation call site. The adapter decodes
// strictly into these, so the model contract is exactly the named fields.

type interviewerFields struct {
	Ack          string `json:"ack"`
	NextQuestion string `json:"next_question"`
}

type followupFields struct {
	NextQuestion string `json:"next_question"`
}

type classifyFields struct {
	FollowUp bool `json:"follow_up"`
}

type nameFields struct {
	Name string `json:"name"`
}

type recapFields struct {
	Title string `json:"title"`
	Recap string `json:"recap"`
}

const interviewerSystem = `You are a fun, supportive post-race interviewer persona called 'Pit Lane Pal'.
Tone: upbeat, witty, concise; use light motorsport metaphors; never snarky.
For EACH turn: (1) write a short acknowledgment that ALSO adds one playful, helpful comment (max 3 sentences, no emoji),
(2) ask EXACTLY ONE next question that follows the provided direction and avoids repeating past topics,
(3) keep the whole reply brief.
Never stack multiple questions. Avoid saying 'great' more than once per interview.
Return ONLY valid JSON with keys: ack, next_question.`

const followupSystem = `You are 'Pit Lane Pal', asking a SINGLE follow-up question based ONLY on the user's most recent answer.
Goal: pull one SPECIFIC detail (e.g., a number, section, technique) OR a feeling (e.g., frustration, excitement).
Rules: keep it short (one sentence), no multi-part, no emojis, no repeating earlier questions. Return JSON with key: next_question.`

const classifySystem = `You decide whether a post-race interview answer deserves ONE short follow-up question.
Return true only if the answer contains at least one of: a described struggle or challenge, a setup/equipment change together with its effect, a clear emotional shift, a concrete performance metric, or a named technique.
Otherwise return false. Bare facts (a name, an equipment model with no elaboration) are false.
Return JSON with key: follow_up (boolean).`

const nameSystem = `Extract the speaker's first name from their self-introduction.
Return JSON with key: name. If no name is present, return an empty string.`

const recapSystem = `You are a writer who turns structured Q&A into a tight, readable racer recap (180-280 words).
Write the recap in the driver's first-person voice (use 'I'), past tense.
Use only facts present verbatim in the interview; never invent numbers or names.
Shape: setting, highlight, challenge, performance snapshot, takeaway/plan, closed by a single reflective line.
Keep it positive, and preserve key details (car, highlight, challenge, lesson, plan).
Return JSON with keys: title, recap. Title should be short and energetic (<= 60 chars).`

// transcriptContext renders the last few Q/A lines for prompt context.
func transcriptContext(history []session.Turn) string {
	lines := make([]string, 0, len(history)*2)
	for _, t := range history {
		lines = append(lines, "Q: "+t.Question, "A: "+t.Answer)
	}
	if len(lines) > 12 {
		lines = lines[len(lines)-12:]
	}
	return strings.Join(lines, "\n")
}

func buildInterviewerMessages(history []session.Turn, stage catalog.Stage) []genai.Message {
	instruction := "Context transcript so far (Q and A):\n" + transcriptContext(history) + "\n\n" +
		fmt.Sprintf("Next step direction: %s\n", stage.Directive) +
		"In the 'Pit Lane Pal' voice, write a brief acknowledgment + one understanding, useful comment (max 3 sentences, no emoji).\n" +
		"Then ask exactly one next question that advances the interview per the direction and does NOT repeat earlier questions.\n" +
		"Output JSON with keys: ack, next_question."
	return []genai.Message{
		{Role: genai.RoleSystem, Content: interviewerSystem},
		{Role: genai.RoleUser, Content: instruction},
	}
}

func buildFollowupMessages(lastQuestion, lastAnswer string) []genai.Message {
	instruction := "From the last answer, ask ONE targeted follow-up to capture a specific detail or feeling.\n" +
		"Do not repeat the last question or introduce a new topic.\n" +
		"Return JSON with key: next_question.\n\n" +
		fmt.Sprintf("Last Q: %s\nLast A: %s\n", lastQuestion, lastAnswer)
	return []genai.Message{
		{Role: genai.RoleSystem, Content: followupSystem},
		{Role: genai.RoleUser, Content: instruction},
	}
}

func buildClassifyMessages(answer string) []genai.Message {
	return []genai.Message{
		{Role: genai.RoleSystem, Content: classifySystem},
		{Role: genai.RoleUser, Content: "Answer:\n" + answer},
	}
}

func buildNameMessages(answer string) []genai.Message {
	return []genai.Message{
		{Role: genai.RoleSystem, Content: nameSystem},
		{Role: genai.RoleUser, Content: "Introduction:\n" + answer},
	}
}

func buildRecapMessages(history []session.Turn) []genai.Message {
	structured := map[string]session.Turn{}
	for i, t := range history {
		structured[fmt.Sprintf("step_%d", i+1)] = t
	}
	b, _ := json.Marshal(structured)
	return []genai.Message{
		{Role: genai.RoleSystem, Content: recapSystem},
		{Role: genai.RoleUser, Content: "Please write the recap in the driver's first-person perspective from this interview: " + string(b)},
	}
}
