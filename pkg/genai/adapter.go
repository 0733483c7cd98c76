// Package genai is the boundary to the text-generation collaborator. Every
// call site hands the adapter a role-tagged message list and a pointer to a
// JSON-tagged struct describing the exact fields it expects back; anything
// else the model says is a malformed response. Callers own their fallbacks —
// no error from this package is ever shown to the subject.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/geppetto/pkg/inference/engine"
	"github.com/go-go-golems/geppetto/pkg/turns"
)

// ErrUnavailable means the collaborator is unreachable or unconfigured.
var ErrUnavailable = errors.New("generation unavailable")

// MalformedResponseError means the collaborator replied but not in the
// expected shape. Callers treat it identically to ErrUnavailable.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed generation response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Role tags a message in the instruction list.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one instructional or contextual message.
type Message struct {
	Role    Role
	Content string
}

// Adapter generates the named fields of out (a pointer to a JSON-tagged
// struct) from the given messages, or fails with ErrUnavailable or a
// *MalformedResponseError.
type Adapter interface {
	Generate(ctx context.Context, msgs []Message, out any) error
}

// EngineAdapter runs requests through a geppetto inference engine. The model
// is prompted to answer with a single JSON object; the reply is decoded
// strictly into the caller's expected-fields struct.
type EngineAdapter struct {
	eng     engine.Engine
	timeout time.Duration
}

var _ Adapter = (*EngineAdapter)(nil)

// NewEngineAdapter wraps eng. A timeout of zero means the caller's context
// governs the call alone; otherwise every Generate is bounded by timeout and
// a deadline hit surfaces as ErrUnavailable.
func NewEngineAdapter(eng engine.Engine, timeout time.Duration) *EngineAdapter {
	return &EngineAdapter{eng: eng, timeout: timeout}
}

func (a *EngineAdapter) Generate(ctx context.Context, msgs []Message, out any) error {
	if a == nil || a.eng == nil {
		return ErrUnavailable
	}
	seed := &turns.Turn{}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			turns.AppendBlock(seed, turns.NewSystemTextBlock(m.Content))
		default:
			turns.AppendBlock(seed, turns.NewUserTextBlock(m.Content))
		}
	}

	runCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	updated, err := a.eng.RunInference(runCtx, seed)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "run inference: %v", err)
	}

	raw, ok := lastAssistantText(updated)
	if !ok {
		return &MalformedResponseError{Err: errors.New("no assistant text in response")}
	}
	return decodeFields(raw, out)
}

// lastAssistantText returns the text payload of the last assistant block.
func lastAssistantText(t *turns.Turn) (string, bool) {
	if t == nil {
		return "", false
	}
	for i := len(t.Blocks) - 1; i >= 0; i-- {
		b := t.Blocks[i]
		if b.Role != turns.RoleAssistant || b.Payload == nil {
			continue
		}
		if s, ok := b.Payload[turns.PayloadKeyText].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// decodeFields strictly unmarshals a JSON object into the expected-fields
// struct. Code fences are tolerated; unknown fields are not.
func decodeFields(raw string, out any) error {
	s := stripFences(strings.TrimSpace(raw))
	if !strings.HasPrefix(s, "{") {
		return &MalformedResponseError{Raw: raw, Err: errors.New("response is not a JSON object")}
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &MalformedResponseError{Raw: raw, Err: err}
	}
	return nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
