package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"video-rag-be/internal/pkg/logger"
	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/guardrail"
	"video-rag-be/pkg/llm"
	"video-rag-be/pkg/transcript"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "Pipeline"

var (
	// ErrInternal wraps unexpected faults. Callers should show a generic message.
	ErrInternal = errors.New("pipeline: internal error")
	// ErrStateCorrupted means an invariant on State was broken mid-run.
	ErrStateCorrupted = errors.New("pipeline: state corrupted")
)

// Validator is the part of guardrail.Validator the orchestrator needs.
type Validator interface {
	Validate(ctx context.Context, snippet *blobcache.Blob, draft, label string) (guardrail.Result, error)
	Thresholds() guardrail.Thresholds
}

// Observer is told about every completed stage, in order. It receives a
// copy of the state.
type Observer interface {
	StageCompleted(ctx context.Context, stage Stage, st State)
}

type ObserverFunc func(ctx context.Context, stage Stage, st State)

func (f ObserverFunc) StageCompleted(ctx context.Context, stage Stage, st State) {
	f(ctx, stage, st)
}

type Models struct {
	Label     string
	Route     string
	Synthesis string
}

type Config struct {
	MaxAttempts     int
	WindowSeconds   float64
	MinContextChars int
	Models          Models
	CleanupTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		WindowSeconds:   transcript.DefaultWindowSeconds,
		MinContextChars: 50,
		Models: Models{
			Label:     "gemini-2.5-flash",
			Route:     "gemini-2.5-flash",
			Synthesis: "gemini-2.5-pro",
		},
		CleanupTimeout: 5 * time.Second,
	}
}

// Result is what the caller shows the user.
type Result struct {
	Answer        string  `json:"answer"`
	Confidence    float64 `json:"confidence"`
	Attempts      int     `json:"attempts"`
	Passed        bool    `json:"passed"`
	VisualLabel   string  `json:"visual_label"`
	HasTranscript bool    `json:"has_transcript"`
	UsedToolData  bool    `json:"used_tool_data"`
}

// Orchestrator runs the stage graph for one request at a time per call;
// it holds no per-request state and is safe to share.
type Orchestrator struct {
	cache       blobcache.Cache
	caller      llm.Completer
	transcripts transcript.Source
	validator   Validator
	cfg         Config
	logger      logger.ILogger
	tracer      trace.Tracer
}

func New(cache blobcache.Cache, caller llm.Completer, transcripts transcript.Source, validator Validator, cfg Config, log logger.ILogger) (*Orchestrator, error) {
	if cache == nil || caller == nil || transcripts == nil || validator == nil {
		return nil, errors.New("pipeline: cache, caller, transcripts and validator are required")
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = def.WindowSeconds
	}
	if cfg.MinContextChars <= 0 {
		cfg.MinContextChars = def.MinContextChars
	}
	if cfg.Models.Label == "" {
		cfg.Models.Label = def.Models.Label
	}
	if cfg.Models.Route == "" {
		cfg.Models.Route = def.Models.Route
	}
	if cfg.Models.Synthesis == "" {
		cfg.Models.Synthesis = def.Models.Synthesis
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = def.CleanupTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Orchestrator{
		cache:       cache,
		caller:      caller,
		transcripts: transcripts,
		validator:   validator,
		cfg:         cfg,
		logger:      log,
		tracer:      otel.Tracer("video-rag-be/pipeline"),
	}, nil
}

func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Run drives st from Label to Accept. Both image refs are deleted from the
// cache when Run returns, whatever the outcome. Expected external failures
// never surface as errors; only cancellation, broken invariants and panics do.
func (o *Orchestrator) Run(ctx context.Context, st *State, obs Observer) (res Result, err error) {
	if st == nil {
		return Result{}, fmt.Errorf("%w: nil state", ErrStateCorrupted)
	}
	in := st.Input()

	ctx, span := o.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("video.id", in.VideoID),
	))
	defer span.End()

	defer o.cleanup(ctx, in)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(module, "Pipeline panicked", map[string]interface{}{
				"session_id": in.SessionID,
				"panic":      fmt.Sprint(r),
				"stack":      string(debug.Stack()),
			})
			res, err = Result{}, fmt.Errorf("%w: %v", ErrInternal, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	thresholds := o.validator.Thresholds()
	stage := StageLabel
	for stage != StageAccept {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		o.runStage(ctx, stage, st)
		if obs != nil {
			obs.StageCompleted(ctx, stage, *st)
		}

		decision := DecisionAccept
		if stage == StageValidate {
			if err := o.checkInvariants(st); err != nil {
				return Result{}, err
			}
			band := thresholds.For(st.VisualLabel)
			decision = Decide(st.ValidationScore, st.CorrectionAttempts, o.cfg.MaxAttempts, band)
			o.logger.Info(module, "Routing decision", map[string]interface{}{
				"session_id": in.SessionID,
				"score":      st.ValidationScore,
				"upper":      band.Upper,
				"attempts":   st.CorrectionAttempts,
				"decision":   decision.String(),
			})
		}
		stage = Next(stage, decision)
	}

	res = o.finalize(st, thresholds)
	span.SetAttributes(
		attribute.Int("pipeline.attempts", res.Attempts),
		attribute.Float64("pipeline.confidence", res.Confidence),
	)
	return res, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, st *State) {
	ctx, span := o.tracer.Start(ctx, "pipeline."+stage.String())
	defer span.End()

	started := time.Now()
	switch stage {
	case StageLabel:
		o.runLabel(ctx, st)
	case StageTemporal:
		o.runTemporal(ctx, st)
	case StageRoute:
		o.runRoute(ctx, st)
	case StageSynthesize:
		o.runSynthesize(ctx, st)
	case StageValidate:
		o.runValidate(ctx, st)
	}

	o.logger.Debug(module, "Stage completed", map[string]interface{}{
		"session_id": st.input.SessionID,
		"stage":      stage.String(),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
}

func (o *Orchestrator) checkInvariants(st *State) error {
	if st.ValidationScore < 0 || st.ValidationScore > 1 {
		return fmt.Errorf("%w: validation score %v outside [0,1]", ErrStateCorrupted, st.ValidationScore)
	}
	if st.CorrectionAttempts < 1 || st.CorrectionAttempts > o.cfg.MaxAttempts {
		return fmt.Errorf("%w: correction attempts %d outside [1,%d]", ErrStateCorrupted, st.CorrectionAttempts, o.cfg.MaxAttempts)
	}
	return nil
}

func (o *Orchestrator) finalize(st *State, thresholds guardrail.Thresholds) Result {
	res := Result{
		Answer:        st.DraftAnswer,
		Confidence:    st.ValidationScore,
		Attempts:      st.CorrectionAttempts,
		Passed:        st.ValidationScore >= thresholds.For(st.VisualLabel).Upper,
		VisualLabel:   st.VisualLabel,
		HasTranscript: st.HasTranscript,
		UsedToolData:  st.ToolData != "",
	}
	if res.Answer == "" {
		res.Answer = FallbackAnswer
		res.Confidence = 0
		res.Passed = false
	}
	return res
}

// cleanup runs on a context detached from cancellation so a client
// disconnect still releases the session's blobs.
func (o *Orchestrator) cleanup(ctx context.Context, in Input) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CleanupTimeout)
	defer cancel()
	if err := o.cache.Delete(cctx, in.FullFrameRef, in.SnippetRef); err != nil {
		o.logger.Error(module, "Blob cleanup failed", map[string]interface{}{
			"session_id": in.SessionID,
			"error":      err.Error(),
		})
	}
}
