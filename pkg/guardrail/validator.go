package guardrail

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"video-rag-be/internal/pkg/logger"
	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/llm"
	"video-rag-be/pkg/similarity"
	"video-rag-be/pkg/utils"
)

const module = "Guardrail"

// Tier names the layer that settled a validation.
type Tier int

const (
	TierThreshold Tier = iota + 1 // similarity fell outside the gray zone
	TierArbiter                   // the judge model decided
)

func (t Tier) String() string {
	switch t {
	case TierThreshold:
		return "threshold"
	case TierArbiter:
		return "arbiter"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Validate call.
type Result struct {
	Score        float64 `json:"score"`
	Similarity   float64 `json:"similarity"`
	Caption      string  `json:"caption"`
	Band         Band    `json:"band"`
	Tier         Tier    `json:"tier"`
	Accepted     bool    `json:"accepted"`
	JudgeInvoked bool    `json:"judge_invoked"`
	JudgeFailed  bool    `json:"judge_failed"`
}

type Config struct {
	CaptionModel string
	JudgeModel   string
	Thresholds   Thresholds
	// Epsilon is subtracted from the lower bound when the judge disagrees.
	Epsilon float64
}

// Validator scores a draft answer against the snippet it describes.
// It keeps no state between calls.
type Validator struct {
	caller     llm.Completer
	scorer     similarity.Scorer
	thresholds Thresholds
	caption    string
	judge      string
	epsilon    float64
	logger     logger.ILogger
}

func NewValidator(caller llm.Completer, scorer similarity.Scorer, cfg Config, log logger.ILogger) (*Validator, error) {
	if caller == nil || scorer == nil {
		return nil, errors.New("guardrail: caller and scorer are required")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("guardrail: %w", err)
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.01
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Validator{
		caller:     caller,
		scorer:     scorer,
		thresholds: cfg.Thresholds,
		caption:    cfg.CaptionModel,
		judge:      cfg.JudgeModel,
		epsilon:    cfg.Epsilon,
		logger:     log,
	}, nil
}

func (v *Validator) Thresholds() Thresholds {
	return v.thresholds
}

// Validate runs caption extraction, the numeric check, the threshold gate
// and, for gray-zone scores only, the judge. The returned Score is always
// within [0, 1]. An error is returned only when the similarity backend fails.
func (v *Validator) Validate(ctx context.Context, snippet *blobcache.Blob, draft, label string) (Result, error) {
	if snippet == nil || len(snippet.Data) == 0 {
		return Result{}, errors.New("guardrail: empty snippet")
	}

	caption := v.extractCaption(ctx, draft, label)

	raw, err := v.scorer.Similarity(ctx, snippet.Data, caption)
	if err != nil {
		return Result{}, fmt.Errorf("similarity: %w", err)
	}
	sim := similarity.Clamp01(raw)
	band := v.thresholds.For(label)

	res := Result{Similarity: sim, Caption: caption, Band: band, Tier: TierThreshold}

	switch {
	case sim >= band.Upper:
		res.Score, res.Accepted = sim, true
	case sim < band.Lower:
		res.Score, res.Accepted = sim, false
	default:
		res.Tier = TierArbiter
		res.JudgeInvoked = true
		agree, judgeErr := v.askJudge(ctx, snippet, draft)
		if judgeErr != nil {
			res.JudgeFailed = true
			v.logger.Warn(module, "Judge call failed, treating as agreement", map[string]interface{}{
				"error": judgeErr.Error(),
			})
		}
		if agree {
			res.Score, res.Accepted = math.Max(sim, band.Upper), true
		} else {
			res.Score, res.Accepted = band.Lower-v.epsilon, false
		}
	}
	res.Score = similarity.Clamp01(res.Score)

	v.logger.Info(module, "Draft validated", map[string]interface{}{
		"label":      label,
		"caption":    caption,
		"similarity": sim,
		"upper":      band.Upper,
		"lower":      band.Lower,
		"tier":       res.Tier.String(),
		"score":      res.Score,
		"accepted":   res.Accepted,
	})
	return res, nil
}

func (v *Validator) extractCaption(ctx context.Context, draft, label string) string {
	prompt := fmt.Sprintf(`Extract ONLY a 3-5 word literal visual description of the main object from this answer.
No analysis, just what it physically looks like.

Answer: %s

Example outputs: "Python code in dark IDE", "star network topology diagram", "red circuit board"
Respond with ONLY the description:`, utils.Truncate(draft, 300))

	out, err := v.caller.Call(ctx, llm.NewRequest(v.caption, []llm.Part{llm.Text(prompt)}, llm.WithTemperature(0)))
	caption := strings.Trim(strings.TrimSpace(out), `"`)
	if err != nil || caption == "" {
		return label
	}
	return caption
}

// askJudge returns agree=true on any failure.
func (v *Validator) askJudge(ctx context.Context, snippet *blobcache.Blob, draft string) (bool, error) {
	prompt := fmt.Sprintf(`You are an independent visual verification judge. Your ONLY job is to determine if the following answer accurately describes what is shown in the provided image.

ANSWER TO VERIFY: "%s"

Rules:
1. Look at the image carefully and independently.
2. Do NOT assume the answer is correct.
3. Check if the key visual elements in the image match the answer's claims.
4. Respond with ONLY "AGREE" or "DISAGREE" followed by a one-sentence explanation.`, draft)

	out, err := v.caller.Call(ctx, llm.NewRequest(v.judge, []llm.Part{
		llm.Image(snippet.Data, snippet.MIMEType),
		llm.Text(prompt),
	}, llm.WithTemperature(0)))
	if err != nil {
		return true, err
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "AGREE"), nil
}
