package genai

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/geppetto/pkg/inference/engine/factory"
	"github.com/go-go-golems/geppetto/pkg/steps/ai/settings"
)

// NewAdapterFromStepSettings builds an EngineAdapter from geppetto step
// settings. When no AI provider is configured it returns (nil, nil): a nil
// adapter is the "collaborator absent" state and every caller falls back to
// its deterministic path.
func NewAdapterFromStepSettings(ss *settings.StepSettings, timeout time.Duration) (*EngineAdapter, error) {
	if ss == nil || ss.Chat == nil || ss.Chat.ApiType == nil {
		log.Info().Str("component", "genai").Msg("no AI provider configured, running with deterministic fallbacks")
		return nil, nil
	}
	eng, err := factory.NewEngineFromStepSettings(ss)
	if err != nil {
		return nil, errors.Wrap(err, "engine init failed")
	}
	return NewEngineAdapter(eng, timeout), nil
}
