// Package inference turns free text into a seven-dimension state estimate
// via the remote service's three-step object protocol.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/maiiam/maiiam/internal/remote"
	"github.com/maiiam/maiiam/internal/state"
)

// inputObjectName is the short-lived object the raw text is stored under.
// It is reused across inferences; the server overwrites it on each call.
const inputObjectName = "user_input"

// RemoteService is the subset of the remote client the engine needs.
type RemoteService interface {
	InputData(ctx context.Context, objectName string, rows []string) error
	ApplyPrompt(ctx context.Context, objectNames []string, prompt string, inputs []remote.PromptInput) error
	ReturnData(ctx context.Context, objectName, returnType string) (string, error)
}

// Tracker records created server-side object names for later cleanup.
type Tracker interface {
	Track(name string)
}

// Analysis is one successful classification: a full seven-dimension vector
// and a suggested intervention.
type Analysis struct {
	Vector     state.Vector
	Suggestion string
}

// Engine runs the state-inference protocol: store the input as a named
// object, apply the classification prompt into a second named object, then
// retrieve and parse the result.
type Engine struct {
	remote  RemoteService
	objects Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Engine using the given remote service and object tracker.
func New(svc RemoteService, objects Tracker) *Engine {
	return &Engine{
		remote:  svc,
		objects: objects,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// Infer classifies text. The three remote calls run strictly in sequence,
// each gated on the previous call's success. It returns (nil, nil) when the
// retrieved payload does not parse as the expected schema, which callers
// must treat as "no update", keeping their previous vector. A non-nil error
// means transport failure.
func (e *Engine) Infer(ctx context.Context, text string) (*Analysis, error) {
	resultObject := fmt.Sprintf("state_analysis_%d", e.now().UnixMilli())

	// Track both names up front so a mid-protocol failure cannot leak an
	// untracked artifact.
	e.objects.Track(inputObjectName)
	e.objects.Track(resultObject)

	if err := e.remote.InputData(ctx, inputObjectName, []string{text}); err != nil {
		return nil, fmt.Errorf("storing input: %w", err)
	}

	inputs := []remote.PromptInput{{ObjectName: inputObjectName, Mode: "use_individually"}}
	if err := e.remote.ApplyPrompt(ctx, []string{resultObject}, classificationPrompt, inputs); err != nil {
		return nil, fmt.Errorf("applying classification prompt: %w", err)
	}

	raw, err := e.remote.ReturnData(ctx, resultObject, remote.ReturnRawText)
	if err != nil {
		return nil, fmt.Errorf("retrieving analysis: %w", err)
	}

	analysis := parseAnalysis(raw)
	if analysis == nil {
		e.logger.Warn("analysis result did not match expected schema", "object", resultObject)
	}
	return analysis, nil
}

// parseAnalysis decodes the raw model output. Missing dimension keys default
// to 0, out-of-range scores are clamped, and anything that is not a JSON
// object yields nil. A non-nil result always carries all seven keys.
func parseAnalysis(raw string) *Analysis {
	// A bare JSON null decodes into the struct without error; only an
	// actual object counts as a usable analysis.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return nil
	}

	var payload struct {
		state.Vector
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return &Analysis{
		Vector:     payload.Vector.Clamp(),
		Suggestion: payload.Suggestion,
	}
}
