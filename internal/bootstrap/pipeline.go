package bootstrap

import (
	"fmt"
	"log"
	"time"

	"video-rag-be/internal/config"
	"video-rag-be/internal/pkg/logger"
	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/gateway"
	"video-rag-be/pkg/guardrail"
	"video-rag-be/pkg/llm/factory"
	"video-rag-be/pkg/pipeline"
	"video-rag-be/pkg/similarity"
	"video-rag-be/pkg/transcript"
)

// Thresholds builds the validator bands from configuration.
func Thresholds(cfg *config.Config) guardrail.Thresholds {
	t := guardrail.DefaultThresholds()
	t.Abstract = guardrail.Band{Upper: cfg.Pipeline.AbstractUpper, Lower: cfg.Pipeline.AbstractLower}
	t.Photographic = guardrail.Band{Upper: cfg.Pipeline.PhotoUpper, Lower: cfg.Pipeline.PhotoLower}
	return t
}

// NewOrchestrator wires the gateway, similarity backend, validator and
// transcript source into a pipeline over cache. The REST server and the
// framectl CLI share it.
func NewOrchestrator(cfg *config.Config, cache blobcache.Cache, sysLogger logger.ILogger) (*pipeline.Orchestrator, error) {
	baseURL := cfg.Ai.GeminiBaseURL
	flash, pro, judge := cfg.Ai.FlashModel, cfg.Ai.ProModel, cfg.Ai.JudgeModel
	if cfg.Ai.LLMProvider == "ollama" {
		baseURL = cfg.Ai.OllamaBaseURL
		flash, pro, judge = cfg.Ai.OllamaModel, cfg.Ai.OllamaModel, cfg.Ai.OllamaModel
	}

	invoker, err := factory.NewInvoker(cfg.Ai.LLMProvider, baseURL)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using LLM Provider: %s (flash=%s, pro=%s)", cfg.Ai.LLMProvider, flash, pro)

	gw, err := gateway.New(gateway.Config{
		Credentials: cfg.Keys.Gemini,
		MaxAttempts: cfg.Pipeline.GatewayMaxAttempts,
		BaseDelay:   cfg.Pipeline.GatewayBaseDelay,
	}, invoker, gateway.WithLogger(logger.NewIsolatedLogger(cfg.App.GatewayLogPath)))
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	log.Printf("[INFO] Gateway ready with %d credential(s)", gw.Size())

	scorer, err := similarity.NewBackend(cfg.Ai.SimilarityProvider, cfg.Keys.Jina, cfg.Ai.SigLIPURL)
	if err != nil {
		return nil, err
	}

	validator, err := guardrail.NewValidator(gw, scorer, guardrail.Config{
		CaptionModel: flash,
		JudgeModel:   judge,
		Thresholds:   Thresholds(cfg),
	}, sysLogger)
	if err != nil {
		return nil, err
	}

	yt := transcript.NewYouTubeSource()
	yt.Languages = cfg.Pipeline.TranscriptLanguages
	if cfg.Pipeline.TranscriptTries > 0 {
		yt.MaxTries = uint(cfg.Pipeline.TranscriptTries)
	}
	source := transcript.NewCachedSource(yt, 10*time.Minute)

	return pipeline.New(cache, gw, source, validator, pipeline.Config{
		MaxAttempts:   cfg.Pipeline.MaxCorrectionAttempts,
		WindowSeconds: cfg.Pipeline.WindowSeconds,
		Models: pipeline.Models{
			Label:     flash,
			Route:     flash,
			Synthesis: pro,
		},
	}, sysLogger)
}
