package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/guardrail"
	"video-rag-be/pkg/llm"
	"video-rag-be/pkg/transcript"
	"video-rag-be/pkg/utils"
)

// Fallback values written when a stage cannot do its job.
const (
	LabelUnknown        = "unknown visual content"
	ContextNoTranscript = "[No transcript available for this video]"
	ContextFetchFailed  = "[Transcript fetch failed on retry]"
	ContextNotInWindow  = "[No relevant transcript found in temporal window]"
	DraftImagesMissing  = "Failed to retrieve image data from cache."
	FallbackAnswer      = "I was unable to determine a confident answer for this visual context."
	NeutralScore        = 0.5
)

func isContextSentinel(s string) bool {
	switch s {
	case ContextNoTranscript, ContextFetchFailed, ContextNotInWindow:
		return true
	}
	return false
}

// needsExternal is the cheap half of the route decision.
func needsExternal(text string, minChars int) bool {
	return text == "" || len([]rune(text)) < minChars || isContextSentinel(text)
}

func (o *Orchestrator) fetchBlob(ctx context.Context, ref blobcache.Ref) *blobcache.Blob {
	blob, err := blobcache.Fetch(ctx, o.cache, ref)
	if err != nil {
		o.logger.Warn(module, "Blob fetch failed", map[string]interface{}{"ref": string(ref), "error": err.Error()})
		return nil
	}
	return blob
}

// runLabel classifies the snippet and probes transcript availability in
// parallel. Without a snippet the label is a sentinel and the transcript
// is treated as unavailable.
func (o *Orchestrator) runLabel(ctx context.Context, st *State) {
	in := st.Input()

	snippet := o.fetchBlob(ctx, in.SnippetRef)
	if snippet == nil {
		st.VisualLabel = LabelUnknown
		st.HasTranscript = false
		return
	}

	var (
		label     string
		available bool
		wg        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out, err := o.caller.Call(ctx, llm.NewRequest(o.cfg.Models.Label, []llm.Part{
			llm.Image(snippet.Data, snippet.MIMEType),
			llm.Text(labelPrompt),
		}))
		switch {
		case err != nil:
			label = fmt.Sprintf("visual content (classification failed: %s)", utils.ErrorSnippet(err, 50))
		case strings.TrimSpace(out) == "":
			label = LabelUnknown
		default:
			label = strings.TrimSpace(out)
		}
	}()
	go func() {
		defer wg.Done()
		_, err := o.transcripts.Fetch(ctx, in.VideoID)
		available = err == nil
		if err != nil {
			o.logger.Info(module, "Transcript unavailable", map[string]interface{}{"video_id": in.VideoID, "error": err.Error()})
		}
	}()
	wg.Wait()

	st.VisualLabel = label
	st.HasTranscript = available
}

func (o *Orchestrator) runTemporal(ctx context.Context, st *State) {
	if !st.HasTranscript {
		st.TranscriptContext = ContextNoTranscript
		return
	}

	in := st.Input()
	entries, err := o.transcripts.Fetch(ctx, in.VideoID)
	if err != nil || len(entries) == 0 {
		st.TranscriptContext = ContextFetchFailed
		return
	}

	text := transcript.RankText(entries, st.VisualLabel, in.Query, in.Timestamp, o.cfg.WindowSeconds)
	if text == "" {
		text = ContextNotInWindow
	}
	st.TranscriptContext = text
}

// runRoute decides whether supplementary knowledge is needed and fetches it.
func (o *Orchestrator) runRoute(ctx context.Context, st *State) {
	in := st.Input()

	needs := needsExternal(st.TranscriptContext, o.cfg.MinContextChars)
	if !needs {
		out, err := o.caller.Call(ctx, llm.NewRequest(o.cfg.Models.Route, []llm.Part{
			llm.Text(sufficiencyPrompt(st.VisualLabel, st.TranscriptContext, in.Query)),
		}, llm.WithTemperature(0)))
		if err == nil && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "NO") {
			needs = true
		}
	}

	if !needs {
		st.ToolData = ""
		return
	}

	out, err := o.caller.Call(ctx, llm.NewRequest(o.cfg.Models.Route, []llm.Part{
		llm.Text(supplementPrompt(st.VisualLabel, in.Query)),
	}))
	if err != nil {
		st.ToolData = fmt.Sprintf("[External search failed: %s]", utils.ErrorSnippet(err, 100))
		return
	}
	st.ToolData = strings.TrimSpace(out)
}

// runSynthesize writes a draft and always advances CorrectionAttempts by one.
func (o *Orchestrator) runSynthesize(ctx context.Context, st *State) {
	defer func() { st.CorrectionAttempts++ }()

	in := st.Input()
	full := o.fetchBlob(ctx, in.FullFrameRef)
	snippet := o.fetchBlob(ctx, in.SnippetRef)
	if full == nil || snippet == nil {
		st.DraftAnswer = DraftImagesMissing
		return
	}

	out, err := o.caller.Call(ctx, llm.NewRequest(o.cfg.Models.Synthesis, []llm.Part{
		llm.Image(full.Data, full.MIMEType),
		llm.Image(snippet.Data, snippet.MIMEType),
		llm.Text(synthesisPrompt(st)),
	}))
	if err != nil {
		st.DraftAnswer = "Synthesis failed: " + utils.ErrorSnippet(err, 200)
		return
	}
	st.DraftAnswer = strings.TrimSpace(out)
}

// runValidate scores the draft. A missing snippet or a broken similarity
// backend yields the neutral score instead of blocking.
func (o *Orchestrator) runValidate(ctx context.Context, st *State) {
	in := st.Input()
	snippet := o.fetchBlob(ctx, in.SnippetRef)
	if snippet == nil {
		st.ValidationScore = NeutralScore
		st.LastValidation = guardrail.Result{Score: NeutralScore}
		return
	}

	res, err := o.validator.Validate(ctx, snippet, st.DraftAnswer, st.VisualLabel)
	if err != nil {
		o.logger.Warn(module, "Validator failed, using neutral score", map[string]interface{}{
			"session_id": in.SessionID,
			"error":      err.Error(),
		})
		st.ValidationScore = NeutralScore
		st.LastValidation = guardrail.Result{Score: NeutralScore}
		return
	}
	st.ValidationScore = res.Score
	st.LastValidation = res
}
