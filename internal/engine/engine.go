package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/latency"
	"github.com/llmsim/llmsim/internal/providers"
	"github.com/llmsim/llmsim/internal/types"
)

// SimulationEngine orchestrates a request through chaos, validation,
// generation, and scheduling. It owns the generator, latency simulator,
// chaos engine, and state; the config is held behind a read/write lock and
// is replaced atomically on update.
type SimulationEngine struct {
	mu      sync.RWMutex
	cfg     *config.Config
	lat     *latency.Simulator
	chaos   *ChaosEngine
	gen     *Generator
	state   *State
	started time.Time

	// requestSeq derives per-request sub-seeds so concurrent requests stay
	// deterministic under a fixed base seed.
	requestSeq atomic.Uint64
}

// New creates an engine from a validated configuration.
func New(cfg *config.Config) *SimulationEngine {
	e := &SimulationEngine{
		cfg:     cfg,
		state:   NewState(),
		started: time.Now(),
	}
	e.rebuild(cfg)
	return e
}

func (e *SimulationEngine) rebuild(cfg *config.Config) {
	if cfg.Seed != nil {
		e.lat = latency.NewSeededSimulator(cfg.Latency, *cfg.Seed)
	} else {
		e.lat = latency.NewSimulator(cfg.Latency)
	}
	e.chaos = NewChaosEngine(cfg.Chaos)
	e.gen = NewGenerator(cfg.Seed)
}

// Config returns the current configuration handle. Callers must treat it as
// immutable.
func (e *SimulationEngine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig validates the new configuration, then atomically replaces the
// held config and rebuilds the latency simulator, chaos engine, and
// generator. The generator is re-seeded iff the new config carries a seed.
func (e *SimulationEngine) UpdateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return apierr.Config("invalid config: %v", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.rebuild(cfg)
	return nil
}

// Chaos returns the live chaos engine.
func (e *SimulationEngine) Chaos() *ChaosEngine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chaos
}

// SetChaosEnabled flips the chaos enable switch in a copied config.
func (e *SimulationEngine) SetChaosEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg := *e.cfg
	cfg.Chaos.Enabled = enabled
	e.cfg = &cfg
	e.chaos = NewChaosEngine(cfg.Chaos)
}

// Uptime returns the engine uptime.
func (e *SimulationEngine) Uptime() time.Duration {
	return time.Since(e.started)
}

// Stats returns the statistics snapshot.
func (e *SimulationEngine) Stats() Stats {
	return e.state.Stats()
}

// ResetStats clears the statistics.
func (e *SimulationEngine) ResetStats() {
	e.state.Reset()
}

func (e *SimulationEngine) snapshot() (*config.Config, *latency.Simulator, *ChaosEngine, *Generator) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.lat, e.chaos, e.gen
}

// newCompletionID mints a chatcmpl id from a v4 UUID with hyphens stripped.
func newCompletionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "chatcmpl-" + raw[:24]
}

// NewMessageID mints an Anthropic-style message id.
func NewMessageID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "msg_" + raw[:24]
}

// sleep waits for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// preflight runs the shared chat pipeline head: chaos, model lookup,
// validation, context limit. It returns the model config and the derived
// request id on success.
func (e *SimulationEngine) preflight(req *types.ChatRequest, endpoint string) (config.ModelConfig, uint64, *apierr.Error) {
	cfg, _, chaos, _ := e.snapshot()
	reqID := e.requestSeq.Add(1)

	e.state.IncrementRequests()

	if err := chaos.MaybeInject(req.Model, endpoint); err != nil {
		e.state.IncrementErrors()
		return config.ModelConfig{}, 0, err
	}

	model, ok := cfg.GetModel(req.Model)
	if !ok {
		e.state.IncrementErrors()
		return config.ModelConfig{}, 0, apierr.ModelNotFound(req.Model)
	}

	if err := req.Validate(); err != nil {
		e.state.IncrementErrors()
		return config.ModelConfig{}, 0, apierr.Validation("", "%s", err.Error())
	}

	if inputTokens := req.EstimateInputTokens(); inputTokens > model.ContextLength {
		e.state.IncrementErrors()
		return config.ModelConfig{}, 0, apierr.ContextLengthExceeded(inputTokens, model.ContextLength)
	}

	return model, reqID, nil
}

func effectiveMaxTokens(req *types.ChatRequest, model config.ModelConfig) int {
	max := req.EffectiveMaxTokens()
	if model.MaxOutputTokens > 0 && max > model.MaxOutputTokens {
		max = model.MaxOutputTokens
	}
	return max
}

// ChatCompletion runs the non-streaming chat pipeline and sleeps for the
// schedule-derived TTFT plus overhead before returning.
func (e *SimulationEngine) ChatCompletion(ctx context.Context, req *types.ChatRequest) (types.ChatResponse, *apierr.Error) {
	start := time.Now()

	model, reqID, aerr := e.preflight(req, "/chat/completions")
	if aerr != nil {
		return types.ChatResponse{}, aerr
	}
	_, lat, chaos, gen := e.snapshot()

	content, outputTokens := gen.Generate(req.Messages, effectiveMaxTokens(req, model), model.Generation, reqID)
	inputTokens := req.EstimateInputTokens()

	delay := lat.SampleTTFT(model.LatencyProfile, reqID) + lat.Overhead(model.LatencyProfile)
	if err := sleep(ctx, delay); err != nil {
		e.state.IncrementErrors()
		chaos.RecordFailure(req.Model)
		return types.ChatResponse{}, apierr.Internal("request canceled")
	}

	resp := types.NewChatResponse(newCompletionID(), req.Model, content, config.Version, types.NewUsage(inputTokens, outputTokens))

	e.state.RecordLatency(time.Since(start))
	e.state.AddTokens(uint64(inputTokens), uint64(outputTokens))
	chaos.RecordSuccess(req.Model)

	return resp, nil
}

// StreamingResponse is the engine's handoff to the streaming renderer: the
// tokenized content with its timing schedule. The renderer owns the sleeps.
type StreamingResponse struct {
	ID       string
	Model    string
	Tokens   []string
	Schedule latency.Schedule
	Usage    types.Usage
}

// ChatCompletionStream runs the chat pipeline for a streaming request.
// It performs no sleeping; the caller times the emission from the schedule.
func (e *SimulationEngine) ChatCompletionStream(req *types.ChatRequest) (*StreamingResponse, *apierr.Error) {
	model, reqID, aerr := e.preflight(req, "/chat/completions")
	if aerr != nil {
		return nil, aerr
	}
	if !model.SupportsStreaming {
		e.state.IncrementErrors()
		return nil, apierr.Validation("stream", "model %s does not support streaming", req.Model)
	}
	_, lat, _, gen := e.snapshot()

	content, outputTokens := gen.Generate(req.Messages, effectiveMaxTokens(req, model), model.Generation, reqID)
	inputTokens := req.EstimateInputTokens()

	tokens := gen.Tokenize(content)
	schedule := lat.GenerateSchedule(len(tokens), model.LatencyProfile, reqID)

	e.state.AddTokens(uint64(inputTokens), uint64(outputTokens))

	return &StreamingResponse{
		ID:       newCompletionID(),
		Model:    req.Model,
		Tokens:   tokens,
		Schedule: schedule,
		Usage:    types.NewUsage(inputTokens, outputTokens),
	}, nil
}

// Embeddings runs the embeddings pipeline: one deterministic vector per
// input, then a TTFT sleep with no overhead.
func (e *SimulationEngine) Embeddings(ctx context.Context, req *types.EmbeddingsRequest) (types.EmbeddingsResponse, *apierr.Error) {
	start := time.Now()
	cfg, lat, chaos, gen := e.snapshot()
	reqID := e.requestSeq.Add(1)

	e.state.IncrementRequests()

	if err := chaos.MaybeInject(req.Model, "/embeddings"); err != nil {
		e.state.IncrementErrors()
		return types.EmbeddingsResponse{}, err
	}

	model, ok := cfg.GetModel(req.Model)
	if !ok {
		e.state.IncrementErrors()
		return types.EmbeddingsResponse{}, apierr.ModelNotFound(req.Model)
	}
	if !model.IsEmbedding {
		e.state.IncrementErrors()
		return types.EmbeddingsResponse{}, apierr.Validation("model", "model %s is not an embedding model", req.Model)
	}
	if len(req.Input) == 0 {
		e.state.IncrementErrors()
		return types.EmbeddingsResponse{}, apierr.Validation("input", "input cannot be empty")
	}

	dimensions := model.EmbeddingDimensions
	if req.Dimensions != nil && *req.Dimensions > 0 {
		dimensions = *req.Dimensions
	}

	vectors := make([][]float32, 0, len(req.Input))
	totalTokens := 0
	for _, input := range req.Input {
		vectors = append(vectors, gen.GenerateEmbedding(dimensions, input))
		tokens := len(input) / 4
		if tokens < 1 {
			tokens = 1
		}
		totalTokens += tokens
	}

	if err := sleep(ctx, lat.SampleTTFT(model.LatencyProfile, reqID)); err != nil {
		e.state.IncrementErrors()
		return types.EmbeddingsResponse{}, apierr.Internal("request canceled")
	}

	resp := types.NewEmbeddingsResponse(req.Model, vectors, totalTokens)

	e.state.RecordLatency(time.Since(start))
	e.state.AddTokens(uint64(totalTokens), 0)
	chaos.RecordSuccess(req.Model)

	return resp, nil
}

// ownedBy resolves a model's provider string, falling back to pattern
// detection when the config omits it.
func ownedBy(id string, m config.ModelConfig) string {
	if m.Provider != "" {
		return string(m.Provider)
	}
	return string(providers.Detect(id))
}

// ListModels returns the configured models as wire objects.
func (e *SimulationEngine) ListModels() types.ModelsResponse {
	cfg := e.Config()
	data := make([]types.ModelObject, 0, len(cfg.Models))
	for id, m := range cfg.Models {
		data = append(data, types.NewModelObject(id, ownedBy(id, m)))
	}
	return types.ModelsResponse{Object: "list", Data: data}
}

// GetModel returns one model as a wire object, or false when unknown.
func (e *SimulationEngine) GetModel(id string) (types.ModelObject, bool) {
	cfg := e.Config()
	m, ok := cfg.GetModel(id)
	if !ok {
		return types.ModelObject{}, false
	}
	return types.NewModelObject(id, ownedBy(id, m)), true
}

// ModelExists reports whether the model is configured.
func (e *SimulationEngine) ModelExists(id string) bool {
	_, ok := e.Config().GetModel(id)
	return ok
}

// RecordStreamOutcome finalizes state for a streaming request after the
// renderer finishes or the client disconnects.
func (e *SimulationEngine) RecordStreamOutcome(model string, elapsed time.Duration, completed bool) {
	e.state.RecordLatency(elapsed)
	chaos := e.Chaos()
	if completed {
		chaos.RecordSuccess(model)
	} else {
		chaos.RecordFailure(model)
	}
}
