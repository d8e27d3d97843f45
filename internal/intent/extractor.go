package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

// Instruction is the fixed system prompt sent with every transcript.
const Instruction = `You extract music preferences from a listener's request.
Reply with ONLY a flat JSON object using any of these keys: "mood", "genre", "era", "tempo", "energy".
Every value is a short string. Leave a key out entirely when the request does not mention it; never guess.
Example: "90s alternative rock classics" -> {"genre": "alternative rock", "era": "90s"}`

// Model is the language-model collaborator.
type Model interface {
	// InferIntent sends instruction and transcript to the model and returns its raw reply.
	InferIntent(ctx context.Context, instruction, transcript string) (string, error)
}

// Extractor turns transcripts into intents.
type Extractor struct {
	model   Model
	timeout time.Duration
	logger  *log.Logger
}

// NewExtractor creates an [Extractor]. A zero timeout leaves the caller's deadline in charge.
func NewExtractor(model Model, timeout time.Duration, logger *log.Logger) *Extractor {
	return &Extractor{model: model, timeout: timeout, logger: shared.DiscardLogger(logger)}
}

// Extract infers an intent from transcript.
//
// A blank transcript fails with [shared.ErrEmptyInput]. A model error or unreadable reply is not an error: the
// result carries only the transcript fallback. Running out the per-call timeout fails with [shared.ErrTimeout].
func (e *Extractor) Extract(ctx context.Context, transcript string) (models.Intent, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return models.Intent{}, fmt.Errorf("%w: transcript is blank", shared.ErrEmptyInput)
	}
	fallback := models.FallbackIntent(transcript)

	if e.model == nil {
		e.logger.Warn("no intent model configured, using transcript only")
		return fallback, nil
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	raw, err := e.model.InferIntent(callCtx, Instruction, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return models.Intent{}, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return models.Intent{}, fmt.Errorf("%w: intent model did not answer within %v", shared.ErrTimeout, e.timeout)
		}
		e.logger.Warn("intent model failed, using transcript only", "error", err)
		return fallback, nil
	}

	intent, err := Parse(raw)
	if err != nil {
		e.logger.Warn("unreadable intent model output, using transcript only", "error", err)
		return fallback, nil
	}
	intent.Fallback = transcript

	e.logger.Debug("extracted intent", "facets", intent.FacetMap())
	return intent, nil
}
