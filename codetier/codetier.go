// Package codetier orchestrates the Code tier: resolve source, compile,
// consult the artifact cache, run the selected sandbox backend, and shape
// the uniform function.Result.
package codetier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/runforge/execengine/cache/artifactcache"
	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/execid"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/sandbox"
	"github.com/runforge/execengine/sourceload"
	"github.com/runforge/execengine/telemetry"
)

// DefaultTimeoutMs is applied when a CodeSpec-bearing FunctionDefinition
// declares no timeout.
const DefaultTimeoutMs = 5000

// Tier runs Code-tier executions end to end.
type Tier struct {
	Bindings  sourceload.Bindings
	Artifacts *artifactcache.Cache
	Router    *sandbox.Router
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

// New constructs a Tier. logger/metrics may be nil and default to no-ops.
func New(bindings sourceload.Bindings, artifacts *artifactcache.Cache, router *sandbox.Router, logger telemetry.Logger, metrics telemetry.Metrics) *Tier {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Tier{Bindings: bindings, Artifacts: artifacts, Router: router, Logger: logger, Metrics: metrics}
}

// Execute runs def against input and returns the uniform function.Result.
// def.Type must be function.TypeCode and def.Code must be non-nil.
func (t *Tier) Execute(ctx context.Context, def *function.FunctionDefinition, input any) *function.Result {
	start := time.Now()
	executionID := execid.New()

	result := &function.Result{
		ExecutionID:     executionID,
		FunctionID:      def.ID,
		FunctionVersion: def.Version,
		Metadata:        function.Metadata{StartedAt: start},
	}

	timeoutMs, err := execid.ParseDuration(def.Timeout)
	if err != nil || timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}

	inputBytes, _ := json.Marshal(input)

	source, err := sourceload.Load(ctx, def.Code.Source, t.Bindings)
	if err != nil {
		return t.fail(result, start, function.FromError(err))
	}

	// The timeout window opens once the source is loaded: loading does not
	// count against it, while compilation and the policy checks do.
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	artifact, cacheHit, err := t.compile(ctx, def.Code.Language, source)
	if err != nil {
		return t.fail(result, start, function.FromError(err))
	}

	policy := sandbox.Policy{
		AllowedGlobals: def.Code.Sandbox.AllowedGlobals,
		MemoryLimitMb:  def.Code.Sandbox.Runtime.MemoryLimitMb,
		CPULimitMs:     def.Code.Sandbox.Runtime.CPULimitMs,
	}
	if err := sandbox.CheckPolicy(artifact.Code, policy); err != nil {
		return t.fail(result, start, function.FromError(err))
	}

	outcome, isolateName, err := t.Router.Run(ctx, artifact, input, def.Code.Sandbox, deadline)
	if err != nil {
		status := function.StatusFailed
		fe := function.FromError(err)
		if fe.Name == function.ErrTimeout || strings.Contains(strings.ToLower(fe.Message), "timeout") {
			status = function.StatusTimeout
		}
		result.Status = status
		result.Error = fe
		if fe.PartialResult != nil {
			result.Output = fe.PartialResult
		}
		t.fillMetrics(result, start, inputBytes, nil)
		return result
	}

	outBytes, _ := json.Marshal(outcome.Output)
	result.Status = function.StatusCompleted
	result.Output = outcome.Output
	result.Code = &function.CodeResult{
		Language:        def.Code.Language,
		IsolateType:     isolateName,
		MemoryUsedBytes: outcome.MemoryUsedBytes,
		CPUTimeMs:       outcome.CPUTimeMs,
		Deterministic:   outcome.Deterministic,
		CacheHit:        cacheHit,
	}
	t.fillMetrics(result, start, inputBytes, outBytes)
	return result
}

func (t *Tier) compile(ctx context.Context, language, source string) (compile.Artifact, bool, error) {
	if t.Artifacts != nil {
		if cached, ok, err := t.Artifacts.Get(ctx, language, source); err == nil && ok {
			t.Metrics.IncCounter("artifact_cache_hit", map[string]string{"language": language})
			return cached, true, nil
		}
	}
	t.Metrics.IncCounter("artifact_cache_miss", map[string]string{"language": language})
	artifact, err := compile.Compile(language, source)
	if err != nil {
		return compile.Artifact{}, false, err
	}
	if t.Artifacts != nil {
		_ = t.Artifacts.Put(ctx, language, source, artifact)
	}
	return artifact, false, nil
}

func (t *Tier) fail(result *function.Result, start time.Time, fe *function.Error) *function.Result {
	result.Status = function.StatusFailed
	result.Error = fe
	t.fillMetrics(result, start, nil, nil)
	return result
}

func (t *Tier) fillMetrics(result *function.Result, start time.Time, inputBytes, outputBytes []byte) {
	completed := time.Now()
	result.Metadata.CompletedAt = &completed
	result.Metrics = function.Metrics{
		DurationMs:      completed.Sub(start).Milliseconds(),
		InputSizeBytes:  len(inputBytes),
		OutputSizeBytes: len(outputBytes),
	}
}
