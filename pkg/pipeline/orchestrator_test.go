package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/guardrail"
	"video-rag-be/pkg/llm"
	"video-rag-be/pkg/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu sync.Mutex

	label    string
	labelErr error

	sufficiency    string
	sufficiencyErr error
	supplement     string
	supplementErr  error

	drafts   []string
	synthErr error
	panicMsg string

	synthPrompts     []string
	sufficiencyCalls int
	supplementCalls  int
}

func lastText(req llm.Request) string {
	for i := len(req.Parts) - 1; i >= 0; i-- {
		if !req.Parts[i].IsImage() {
			return req.Parts[i].Text
		}
	}
	return ""
}

func (f *fakeLLM) Call(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := lastText(req)
	switch req.Model {
	case "label":
		return f.label, f.labelErr
	case "route":
		if strings.HasPrefix(prompt, "Given this transcript") {
			f.sufficiencyCalls++
			return f.sufficiency, f.sufficiencyErr
		}
		f.supplementCalls++
		return f.supplement, f.supplementErr
	case "synth":
		if f.panicMsg != "" {
			panic(f.panicMsg)
		}
		f.synthPrompts = append(f.synthPrompts, prompt)
		if f.synthErr != nil {
			return "", f.synthErr
		}
		i := len(f.synthPrompts) - 1
		if i >= len(f.drafts) {
			i = len(f.drafts) - 1
		}
		return f.drafts[i], nil
	}
	return "", errors.New("unexpected model " + req.Model)
}

type fakeSource struct {
	mu      sync.Mutex
	entries []transcript.Entry
	err     error
	calls   int
}

func (f *fakeSource) Fetch(context.Context, string) ([]transcript.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.entries, f.err
}

type fakeValidator struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeValidator) Validate(_ context.Context, _ *blobcache.Blob, _ string, _ string) (guardrail.Result, error) {
	f.calls++
	if f.err != nil {
		return guardrail.Result{}, f.err
	}
	i := f.calls - 1
	if i >= len(f.scores) {
		i = len(f.scores) - 1
	}
	return guardrail.Result{Score: f.scores[i]}, nil
}

func (f *fakeValidator) Thresholds() guardrail.Thresholds {
	return guardrail.DefaultThresholds()
}

type fixture struct {
	cache     *blobcache.MemoryCache
	llm       *fakeLLM
	source    *fakeSource
	validator *fakeValidator
	orch      *Orchestrator
}

func longTranscript() []transcript.Entry {
	return []transcript.Entry{
		{Text: "today we look at how a variable is declared inside the loop body", Start: 40},
		{Text: "and here the counter variable gets incremented on every pass", Start: 55},
		{Text: "much later content", Start: 900},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cache:     blobcache.NewMemoryCache(),
		llm:       &fakeLLM{label: "python code", sufficiency: "YES", supplement: "extra facts", drafts: []string{"draft"}},
		source:    &fakeSource{entries: longTranscript()},
		validator: &fakeValidator{scores: []float64{0.9}},
	}
	cfg := DefaultConfig()
	cfg.Models = Models{Label: "label", Route: "route", Synthesis: "synth"}
	orch, err := New(f.cache, f.llm, f.source, f.validator, cfg, nil)
	require.NoError(t, err)
	f.orch = orch
	return f
}

func (f *fixture) state(t *testing.T, storeImages bool) *State {
	t.Helper()
	in := validInput()
	if storeImages {
		ctx := context.Background()
		require.NoError(t, f.cache.Put(ctx, in.FullFrameRef, []byte("full"), time.Minute))
		require.NoError(t, f.cache.Put(ctx, in.SnippetRef, []byte("snippet"), time.Minute))
	}
	st, err := NewState(in)
	require.NoError(t, err)
	return st
}

func TestRun_AcceptsOnFirstPass(t *testing.T) {
	f := newFixture(t)
	var stages []Stage
	obs := ObserverFunc(func(_ context.Context, s Stage, _ State) { stages = append(stages, s) })

	res, err := f.orch.Run(context.Background(), f.state(t, true), obs)
	require.NoError(t, err)

	assert.Equal(t, "draft", res.Answer)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Passed)
	assert.True(t, res.HasTranscript)
	assert.Equal(t, []Stage{StageLabel, StageTemporal, StageRoute, StageSynthesize, StageValidate}, stages)
	assert.Equal(t, 0, f.cache.Len())
}

func TestRun_AcceptsBestGuessAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.llm.drafts = []string{"first", "second", "third"}
	f.validator.scores = []float64{0.1, 0.15, 0.18}

	var attempts []int
	obs := ObserverFunc(func(_ context.Context, s Stage, st State) {
		if s == StageValidate {
			attempts = append(attempts, st.CorrectionAttempts)
		}
	})

	res, err := f.orch.Run(context.Background(), f.state(t, true), obs)
	require.NoError(t, err)

	assert.Equal(t, "third", res.Answer)
	assert.Equal(t, 0.18, res.Confidence)
	assert.Equal(t, 3, res.Attempts)
	assert.False(t, res.Passed)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, 3, f.validator.calls)
	assert.Len(t, f.llm.synthPrompts, 3)
}

func TestRun_CorrectionNoticeNamesAttemptAndScore(t *testing.T) {
	f := newFixture(t)
	f.llm.drafts = []string{"first", "second"}
	f.validator.scores = []float64{0.1, 0.8}

	_, err := f.orch.Run(context.Background(), f.state(t, true), nil)
	require.NoError(t, err)

	require.Len(t, f.llm.synthPrompts, 2)
	assert.NotContains(t, f.llm.synthPrompts[0], "CORRECTION ATTEMPT")
	assert.Contains(t, f.llm.synthPrompts[1], "CORRECTION ATTEMPT #1")
	assert.Contains(t, f.llm.synthPrompts[1], "Previous validation score: 0.10")
}

func TestRun_MissingSnippetUsesSentinelsAndNeutralScore(t *testing.T) {
	f := newFixture(t)

	var validateScores []float64
	obs := ObserverFunc(func(_ context.Context, s Stage, st State) {
		if s == StageValidate {
			validateScores = append(validateScores, st.ValidationScore)
		}
		if s == StageLabel {
			assert.Equal(t, LabelUnknown, st.VisualLabel)
			assert.False(t, st.HasTranscript)
		}
		if s == StageTemporal {
			assert.Equal(t, ContextNoTranscript, st.TranscriptContext)
		}
	})

	res, err := f.orch.Run(context.Background(), f.state(t, false), obs)
	require.NoError(t, err)

	assert.Equal(t, DraftImagesMissing, res.Answer)
	assert.Equal(t, NeutralScore, res.Confidence)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, validateScores)
	assert.Equal(t, 0, f.validator.calls)
	assert.Equal(t, 0, f.source.calls)
}

func TestRunValidate_SnippetGoneScoresNeutral(t *testing.T) {
	f := newFixture(t)
	st := f.state(t, true)
	st.VisualLabel = "photograph of a dog"
	st.DraftAnswer = "a cat"
	require.NoError(t, f.cache.Delete(context.Background(), st.Input().SnippetRef))

	f.orch.runValidate(context.Background(), st)
	assert.Equal(t, 0.5, st.ValidationScore)
	assert.Equal(t, 0, f.validator.calls)
}

func TestRun_ValidatorErrorScoresNeutral(t *testing.T) {
	f := newFixture(t)
	f.validator.err = errors.New("similarity backend unavailable")

	res, err := f.orch.Run(context.Background(), f.state(t, true), nil)
	require.NoError(t, err)
	// "python code" is abstract, upper 0.50, so neutral passes
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, 1, res.Attempts)
}

func TestRun_SynthesisFailureBecomesDraftAndCounts(t *testing.T) {
	f := newFixture(t)
	f.llm.synthErr = errors.New("upstream 500: internal")

	res, err := f.orch.Run(context.Background(), f.state(t, true), nil)
	require.NoError(t, err)
	assert.Equal(t, "Synthesis failed: upstream 500: internal", res.Answer)
	assert.Equal(t, 1, res.Attempts)
}

func TestRun_LabelFailureSentinel(t *testing.T) {
	f := newFixture(t)
	f.llm.labelErr = errors.New("permission denied for this api key, please check your configuration")

	var label string
	obs := ObserverFunc(func(_ context.Context, s Stage, st State) {
		if s == StageLabel {
			label = st.VisualLabel
		}
	})
	_, err := f.orch.Run(context.Background(), f.state(t, true), obs)
	require.NoError(t, err)
	assert.Equal(t, "visual content (classification failed: permission denied for this api key, please check y)", label)
}

// waitingCaller holds the label call until the transcript probe has started.
type waitingCaller struct {
	llm.Completer
	probed <-chan struct{}
}

func (c waitingCaller) Call(ctx context.Context, req llm.Request) (string, error) {
	select {
	case <-c.probed:
		return c.Completer.Call(ctx, req)
	case <-time.After(2 * time.Second):
		return "", errors.New("transcript probe never started")
	}
}

type signallingSource struct {
	Source transcript.Source
	once   sync.Once
	probed chan struct{}
}

func (s *signallingSource) Fetch(ctx context.Context, videoID string) ([]transcript.Entry, error) {
	s.once.Do(func() { close(s.probed) })
	return s.Source.Fetch(ctx, videoID)
}

func TestRunLabel_ClassifiesWhileProbingTranscript(t *testing.T) {
	f := newFixture(t)
	src := &signallingSource{Source: f.source, probed: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.Models = Models{Label: "label", Route: "route", Synthesis: "synth"}
	orch, err := New(f.cache, waitingCaller{Completer: f.llm, probed: src.probed}, src, f.validator, cfg, nil)
	require.NoError(t, err)

	st := f.state(t, true)
	orch.runLabel(context.Background(), st)

	assert.Equal(t, "python code", st.VisualLabel)
	assert.True(t, st.HasTranscript)
	assert.Equal(t, 1, f.source.calls)
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name           string
		context        string
		sufficiency    string
		sufficiencyErr error
		supplementErr  error
		wantTool       string
		wantCheck      int
	}{
		{"sentinel triggers", ContextNoTranscript, "YES", nil, nil, "extra facts", 0},
		{"short context triggers", "too short", "YES", nil, nil, "extra facts", 0},
		{"sufficient context", strings.Repeat("loop variable ", 10), "YES", nil, nil, "", 1},
		{"insufficient context", strings.Repeat("loop variable ", 10), "NO.", nil, nil, "extra facts", 1},
		{"check failure does not trigger", strings.Repeat("loop variable ", 10), "", errors.New("boom"), nil, "", 1},
		{"supplement failure", "", "", nil, errors.New("quota"), "[External search failed: quota]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.llm.sufficiency = tt.sufficiency
			f.llm.sufficiencyErr = tt.sufficiencyErr
			f.llm.supplementErr = tt.supplementErr

			st := f.state(t, true)
			st.VisualLabel = "python code"
			st.TranscriptContext = tt.context
			f.orch.runRoute(context.Background(), st)

			assert.Equal(t, tt.wantTool, st.ToolData)
			assert.Equal(t, tt.wantCheck, f.llm.sufficiencyCalls)
		})
	}
}

func TestTemporal(t *testing.T) {
	f := newFixture(t)
	st := f.state(t, true)
	st.VisualLabel = "python code"

	st.HasTranscript = true
	f.orch.runTemporal(context.Background(), st)
	assert.True(t, strings.HasPrefix(st.TranscriptContext, "today we look at how a variable"))
	assert.NotContains(t, st.TranscriptContext, "much later content")

	f.source.entries = []transcript.Entry{{Text: "far away", Start: 5000}}
	f.orch.runTemporal(context.Background(), st)
	assert.Equal(t, ContextNotInWindow, st.TranscriptContext)

	f.source.err = transcript.ErrNoTranscript
	f.orch.runTemporal(context.Background(), st)
	assert.Equal(t, ContextFetchFailed, st.TranscriptContext)
}

func TestRun_CancelledStillCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Run(ctx, f.state(t, true), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.cache.Len())
}

func TestRun_PanicBecomesInternalError(t *testing.T) {
	f := newFixture(t)
	f.llm.panicMsg = "nil map write"

	_, err := f.orch.Run(context.Background(), f.state(t, true), nil)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, 0, f.cache.Len())
}

func TestRun_AttemptsNeverExceedMax(t *testing.T) {
	for _, max := range []int{1, 2, 3, 5} {
		f := newFixture(t)
		f.orch.cfg.MaxAttempts = max
		f.validator.scores = []float64{0.0}

		var seen []int
		obs := ObserverFunc(func(_ context.Context, s Stage, st State) {
			seen = append(seen, st.CorrectionAttempts)
		})
		res, err := f.orch.Run(context.Background(), f.state(t, true), obs)
		require.NoError(t, err)
		assert.Equal(t, max, res.Attempts)
		for i := 1; i < len(seen); i++ {
			assert.GreaterOrEqual(t, seen[i], seen[i-1])
			assert.LessOrEqual(t, seen[i], max)
		}
	}
}
