// Package interview implements the guided interview dialogue engine: a small
// state machine that walks a subject through the storyline catalog, branches
// into at most one adaptive follow-up per stage, and folds the transcript
// into a recap at the end.
package interview

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/pitlane/pkg/archive"
	"github.com/go-go-golems/pitlane/pkg/catalog"
	"github.com/go-go-golems/pitlane/pkg/genai"
	"github.com/go-go-golems/pitlane/pkg/session"
)

// DefaultTailExclusion is the number of trailing stages that never trigger a
// follow-up, bounding how long the interview can run once it enters the tail.
const DefaultTailExclusion = 3

// ErrNoSession is returned when an operation needs an existing session.
var ErrNoSession = errors.New("no interview session")

// ErrInterviewComplete is returned for answers (or finish requests) against a
// session that already reached the terminal state.
var ErrInterviewComplete = errors.New("interview already complete")

// Notifier observes committed transitions, e.g. to fan out to websocket
// clients. Implementations must not block.
type Notifier interface {
	TurnRecorded(sessionID string, turn session.Turn, stage int)
	InterviewCompleted(sessionID, title string)
}

// Engine orchestrates sessions, the storyline, the generation adapter, and
// the archive. All per-session work happens inside the store's per-key lock,
// so a session never sees interleaved transitions.
type Engine struct {
	catalog *catalog.Catalog
	store   session.Store
	gen     genai.Adapter // nil when the collaborator is absent
	archive archive.Store
	notify  Notifier
	tail    int
	randInt func(n int) int
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier attaches a transition observer.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notify = n } }

// WithTailExclusion overrides the follow-up tail exclusion count.
func WithTailExclusion(k int) Option { return func(e *Engine) { e.tail = k } }

// WithRand overrides fallback variant selection, for tests.
func WithRand(f func(n int) int) Option { return func(e *Engine) { e.randInt = f } }

// WithClock overrides the time source, for tests.
func WithClock(f func() time.Time) Option { return func(e *Engine) { e.now = f } }

func New(cat *catalog.Catalog, store session.Store, gen genai.Adapter, arch archive.Store, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		store:   store,
		gen:     gen,
		archive: arch,
		tail:    DefaultTailExclusion,
		randInt: rand.Intn,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartResult is the payload for a (re)initialized interview.
type StartResult struct {
	Ack         string `json:"ack"`
	Question    string `json:"question"`
	Stage       int    `json:"stage"`
	TotalStages int    `json:"total_stages"`
}

// TurnResult is the payload for an answer submission or a forced finish.
// When Done is true, Title and Recap carry the final artifact; SaveError is
// set when the recap was produced but could not be archived.
type TurnResult struct {
	Done        bool   `json:"done"`
	Ack         string `json:"ack,omitempty"`
	Question    string `json:"question,omitempty"`
	Stage       int    `json:"stage"`
	TotalStages int    `json:"total_stages"`
	Title       string `json:"title,omitempty"`
	Recap       string `json:"recap,omitempty"`
	ArchiveRef  string `json:"archive_ref,omitempty"`
	SaveError   string `json:"save_error,omitempty"`
}

// Start (re)initializes the session to the first stage and returns the
// opening question.
func (e *Engine) Start(ctx context.Context, id string) (StartResult, error) {
	_ = ctx
	var res StartResult
	err := e.store.UpdateOrCreate(id, func(s *session.Session) error {
		s.Init()
		res = StartResult{
			Ack:         "",
			Question:    e.pickVariant(0),
			Stage:       0,
			TotalStages: e.catalog.Len(),
		}
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}
	log.Info().Str("component", "interview").Str("session_id", id).Msg("interview started")
	return res, nil
}

// Answer applies the dialogue transition for a new answer: record the turn,
// resolve or open a follow-up, advance the stage, and on the terminal
// transition assemble and archive the recap.
func (e *Engine) Answer(ctx context.Context, id, answer, shownQuestion string) (TurnResult, error) {
	var res TurnResult
	var after []func()
	err := e.store.Update(id, func(s *session.Session) error {
		after = after[:0]
		if s.Phase == session.PhaseComplete {
			return ErrInterviewComplete
		}

		lastQ := strings.TrimSpace(shownQuestion)
		if lastQ == "" {
			// tolerate clients that do not echo the question back
			lastQ = e.catalog.Stage(s.Stage).Variants[0]
		}
		s.Append(lastQ, answer)
		turn := s.History[len(s.History)-1]
		stage := s.Stage
		after = append(after, func() { e.notifyTurn(id, turn, stage) })

		if s.Stage == e.catalog.IdentityStage() && s.SubjectName == "" {
			if name := e.extractName(ctx, answer); name != "" {
				s.SubjectName = name
				log.Debug().Str("component", "interview").Str("session_id", id).Str("subject", name).Msg("captured subject name")
			}
		}

		if s.Phase == session.PhaseFollowUp {
			// a follow-up answer always advances the main stage
			s.Phase = session.PhaseMain
			return e.advance(ctx, id, s, &res, &after)
		}

		if e.followUpEligible(s.Stage) && e.shouldFollowUp(ctx, answer) {
			s.Phase = session.PhaseFollowUp
			res = TurnResult{
				Done:        false,
				Ack:         e.followupAck(answer),
				Question:    e.followupQuestion(ctx, lastQ, answer),
				Stage:       s.Stage,
				TotalStages: e.catalog.Len(),
			}
			return nil
		}
		return e.advance(ctx, id, s, &res, &after)
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return TurnResult{}, errors.Wrap(ErrNoSession, id)
		}
		return TurnResult{}, err
	}
	for _, f := range after {
		f()
	}
	return res, nil
}

// advance moves to the next main stage or completes the interview.
func (e *Engine) advance(ctx context.Context, id string, s *session.Session, res *TurnResult, after *[]func()) error {
	s.Stage++
	if s.Stage >= e.catalog.Len() {
		return e.complete(ctx, id, s, res, after)
	}
	ack, question := e.interviewerTurn(ctx, s.History, s.Stage)
	*res = TurnResult{
		Done:        false,
		Ack:         ack,
		Question:    question,
		Stage:       s.Stage,
		TotalStages: e.catalog.Len(),
	}
	return nil
}

// complete performs the terminal transition: assemble the recap, archive it,
// and report a persistence failure distinctly while still returning the
// artifact.
func (e *Engine) complete(ctx context.Context, id string, s *session.Session, res *TurnResult, after *[]func()) error {
	s.Phase = session.PhaseComplete
	s.Stage = e.catalog.Len()

	title, recap := e.assembleRecap(ctx, s.History)
	*res = TurnResult{
		Done:        true,
		Stage:       s.Stage,
		TotalStages: e.catalog.Len(),
		Title:       title,
		Recap:       recap,
	}

	rec := archive.Record{
		SessionID: id,
		Subject:   subjectOrUnknown(s.SubjectName),
		Title:     title,
		Recap:     recap,
		Turns:     append([]session.Turn(nil), s.History...),
		CreatedAt: e.now(),
	}
	if e.archive == nil {
		res.SaveError = "no archive configured"
	} else if ref, err := e.archive.Save(ctx, rec); err != nil {
		log.Error().Err(err).Str("component", "interview").Str("session_id", id).Msg("archiving interview failed")
		res.SaveError = err.Error()
	} else {
		res.ArchiveRef = ref
	}

	*after = append(*after, func() { e.notifyComplete(id, title) })
	log.Info().Str("component", "interview").Str("session_id", id).Int("turns", len(s.History)).Msg("interview complete")
	return nil
}

// Finish forces the terminal transition from any non-terminal state using
// only the history accumulated so far.
func (e *Engine) Finish(ctx context.Context, id string) (TurnResult, error) {
	var res TurnResult
	var after []func()
	err := e.store.Update(id, func(s *session.Session) error {
		after = after[:0]
		if s.Phase == session.PhaseComplete {
			return ErrInterviewComplete
		}
		return e.complete(ctx, id, s, &res, &after)
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return TurnResult{}, errors.Wrap(ErrNoSession, id)
		}
		return TurnResult{}, err
	}
	for _, f := range after {
		f()
	}
	return res, nil
}

// SaveResult is the payload of an explicit save request.
type SaveResult struct {
	Saved      bool   `json:"saved"`
	ArchiveRef string `json:"archive_ref,omitempty"`
	Title      string `json:"title"`
	Recap      string `json:"recap"`
}

// Save re-assembles a recap from the accumulated history and archives it,
// without changing dialogue state. An optional subject name override takes
// precedence over the captured one.
func (e *Engine) Save(ctx context.Context, id, subjectOverride string) (SaveResult, error) {
	snap, ok := e.store.Snapshot(id)
	if !ok {
		return SaveResult{}, errors.Wrap(ErrNoSession, id)
	}
	title, recap := e.assembleRecap(ctx, snap.History)
	subject := strings.TrimSpace(subjectOverride)
	if subject == "" {
		subject = snap.SubjectName
	}
	if e.archive == nil {
		return SaveResult{}, errors.New("no archive configured")
	}
	ref, err := e.archive.Save(ctx, archive.Record{
		SessionID: id,
		Subject:   subjectOrUnknown(subject),
		Title:     title,
		Recap:     recap,
		Turns:     snap.History,
		CreatedAt: e.now(),
	})
	if err != nil {
		return SaveResult{}, errors.Wrap(err, "archive interview")
	}
	return SaveResult{Saved: true, ArchiveRef: ref, Title: title, Recap: recap}, nil
}

// Reset deletes the session outright. Resetting an absent session is a no-op.
func (e *Engine) Reset(id string) {
	e.store.Delete(id)
	log.Debug().Str("component", "interview").Str("session_id", id).Msg("interview reset")
}

// TotalStages returns the storyline length N.
func (e *Engine) TotalStages() int { return e.catalog.Len() }

// followUpEligible reports whether a stage sits inside the leading window in
// which a follow-up may be triggered.
func (e *Engine) followUpEligible(stage int) bool {
	return stage < e.catalog.Len()-e.tail
}

// pickVariant selects a fallback question variant uniformly at random, with
// replacement. Repeats across adjacent uses are permitted by design.
func (e *Engine) pickVariant(stage int) string {
	variants := e.catalog.Stage(stage).Variants
	return variants[e.randInt(len(variants))]
}

func (e *Engine) notifyTurn(id string, turn session.Turn, stage int) {
	if e.notify != nil {
		e.notify.TurnRecorded(id, turn, stage)
	}
}

func (e *Engine) notifyComplete(id, title string) {
	if e.notify != nil {
		e.notify.InterviewCompleted(id, title)
	}
}

func subjectOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return "unknown"
	}
	return name
}
