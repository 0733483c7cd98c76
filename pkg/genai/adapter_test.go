package genai

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/geppetto/pkg/turns"
)

type fakeEngine struct {
	reply string
	err   error
	seen  *turns.Turn
}

func (f *fakeEngine) RunInference(ctx context.Context, t *turns.Turn) (*turns.Turn, error) {
	f.seen = t
	if f.err != nil {
		return nil, f.err
	}
	out := &turns.Turn{Blocks: append([]turns.Block(nil), t.Blocks...)}
	turns.AppendBlock(out, turns.NewAssistantTextBlock(f.reply))
	return out, nil
}

type ackFields struct {
	Ack          string `json:"ack"`
	NextQuestion string `json:"next_question"`
}

func TestGenerateDecodesExpectedFields(t *testing.T) {
	fe := &fakeEngine{reply: `{"ack":"Nice line!","next_question":"What came next?"}`}
	a := NewEngineAdapter(fe, 0)

	var out ackFields
	err := a.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "transcript"},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, "Nice line!", out.Ack)
	require.Equal(t, "What came next?", out.NextQuestion)
	require.Len(t, fe.seen.Blocks, 2)
}

func TestGenerateToleratesCodeFences(t *testing.T) {
	fe := &fakeEngine{reply: "```json\n{\"ack\":\"ok\",\"next_question\":\"q\"}\n```"}
	a := NewEngineAdapter(fe, 0)

	var out ackFields
	require.NoError(t, a.Generate(context.Background(), nil, &out))
	require.Equal(t, "ok", out.Ack)
}

func TestGenerateRejectsUnexpectedFields(t *testing.T) {
	fe := &fakeEngine{reply: `{"ack":"ok","next_question":"q","mood":"chipper"}`}
	a := NewEngineAdapter(fe, 0)

	var out ackFields
	err := a.Generate(context.Background(), nil, &out)
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestGenerateRejectsNonJSON(t *testing.T) {
	fe := &fakeEngine{reply: "Sure! Here is your acknowledgment."}
	a := NewEngineAdapter(fe, 0)

	var out ackFields
	err := a.Generate(context.Background(), nil, &out)
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestGenerateEngineErrorIsUnavailable(t *testing.T) {
	fe := &fakeEngine{err: errors.New("connection refused")}
	a := NewEngineAdapter(fe, 0)

	var out ackFields
	err := a.Generate(context.Background(), nil, &out)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNilAdapterIsUnavailable(t *testing.T) {
	var a *EngineAdapter
	var out ackFields
	require.ErrorIs(t, a.Generate(context.Background(), nil, &out), ErrUnavailable)
}
