// Package session holds per-subject interview state and the store that
// serializes access to it.
package session

import "time"

// Phase is the explicit dialogue state tag. Together with Stage it forms the
// state MAIN(i) | FOLLOWUP_PENDING(i) | COMPLETE.
type Phase int

const (
	// PhaseMain means the subject is answering the planned question for Stage.
	PhaseMain Phase = iota
	// PhaseFollowUp means a one-shot follow-up for Stage is outstanding.
	PhaseFollowUp
	// PhaseComplete is terminal; Stage equals the catalog length.
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseMain:
		return "main"
	case PhaseFollowUp:
		return "followup_pending"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Turn records one asked question and its raw answer. Turns are immutable
// once appended to a session's history.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session is the mutable per-subject conversation state. All mutation happens
// under the store's per-session lock; callers outside Update only ever see
// snapshots.
type Session struct {
	ID          string
	Phase       Phase
	Stage       int
	History     []Turn
	SubjectName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Init resets a session to its initial values, keeping ID and CreatedAt.
func (s *Session) Init() {
	s.Phase = PhaseMain
	s.Stage = 0
	s.History = nil
	s.SubjectName = ""
}

// Append records a completed turn.
func (s *Session) Append(question, answer string) {
	s.History = append(s.History, Turn{Question: question, Answer: answer})
}

// Clone returns a deep copy. The store mutates clones and swaps them in only
// when the whole transition succeeded.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]Turn(nil), s.History...)
	return &out
}
