package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"video-rag-be/internal/dto"
	"video-rag-be/internal/entity"
	"video-rag-be/internal/pkg/logger"
	"video-rag-be/internal/repository/contract"
	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/events"
	"video-rag-be/pkg/imageutil"
	"video-rag-be/pkg/pipeline"
	"video-rag-be/pkg/progress"

	"github.com/google/uuid"
)

const module = "RAG_SERVICE"

// GenericErrorMessage is all a client learns about an internal fault.
const GenericErrorMessage = "Something went wrong while analyzing this frame. Please try again."

const (
	thoughtStoreFrame = "Storing captured frame..."
	thoughtCrop       = "Extracting selected region..."
	thoughtInit       = "Initializing AI agent..."
)

var stageThoughts = map[pipeline.Stage]string{
	pipeline.StageLabel:      "Categorizing visual context...",
	pipeline.StageTemporal:   "Syncing transcript timelines...",
	pipeline.StageRoute:      "Evaluating external knowledge sources...",
	pipeline.StageSynthesize: "Synthesizing answer from all context...",
	pipeline.StageValidate:   "Running hallucination guardrail...",
}

var ErrHistoryDisabled = errors.New("answer history is disabled")

// Runner executes one pipeline pass; *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, st *pipeline.State, obs pipeline.Observer) (pipeline.Result, error)
}

// EventPublisher emits lifecycle events; *nats.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IRagService interface {
	// Stream runs one question and hands every progress event to emit, in
	// order, ending with a complete or error event. An emit error is taken
	// as a client disconnect and cancels the run.
	Stream(ctx context.Context, req *dto.QueryPayload, emit func(progress.Event) error) error
	History(ctx context.Context, videoID string, limit int) ([]*dto.InteractionResponse, error)
}

type ragService struct {
	cache     blobcache.Cache
	cacheTTL  time.Duration
	runner    Runner
	bus       *progress.Bus
	history   contract.InteractionRepository
	publisher EventPublisher
	logger    logger.ILogger
}

func NewRagService(
	cache blobcache.Cache,
	cacheTTL time.Duration,
	runner Runner,
	bus *progress.Bus,
	history contract.InteractionRepository,
	publisher EventPublisher,
	log logger.ILogger,
) IRagService {
	if cacheTTL <= 0 {
		cacheTTL = blobcache.DefaultTTL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ragService{
		cache:     cache,
		cacheTTL:  cacheTTL,
		runner:    runner,
		bus:       bus,
		history:   history,
		publisher: publisher,
		logger:    log,
	}
}

// NewSessionID returns a short random id used to key cache entries and
// progress topics.
func NewSessionID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:12]
}

func (s *ragService) Stream(ctx context.Context, req *dto.QueryPayload, emit func(progress.Event) error) error {
	sid := NewSessionID()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := s.bus.Subscribe(runCtx, sid)
	if err != nil {
		return fmt.Errorf("subscribe progress: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(runCtx, sid, req)
	}()

	var emitErr error
	for ev := range updates {
		if err := emit(ev); err != nil {
			emitErr = err
			s.logger.Warn(module, "Client went away, cancelling run", map[string]interface{}{
				"session_id": sid,
				"error":      err.Error(),
			})
			break
		}
		if ev.Terminal() {
			break
		}
	}

	cancel()
	<-done
	return emitErr
}

func (s *ragService) run(ctx context.Context, sid string, req *dto.QueryPayload) {
	fullRef := blobcache.SessionRef(sid, blobcache.KindFull)
	snippetRef := blobcache.SessionRef(sid, blobcache.KindSnippet)
	started := time.Now()

	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := blobcache.CleanupSession(cctx, s.cache, sid); err != nil {
			s.logger.Error(module, "Session cleanup failed", map[string]interface{}{"session_id": sid, "error": err.Error()})
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, sid, req, fmt.Errorf("%w: %v", pipeline.ErrInternal, r), string(debug.Stack()))
		}
	}()

	s.logger.Info(module, "Request received", map[string]interface{}{
		"session_id": sid,
		"video_id":   req.VideoId,
		"timestamp":  req.Timestamp,
		"bbox":       req.BBox,
		"frame_len":  len(req.FullFrameB64),
	})

	s.publish(sid, progress.Thought("", thoughtStoreFrame))
	frame, err := imageutil.DecodeBase64(req.FullFrameB64)
	if err != nil {
		s.fail(ctx, sid, req, fmt.Errorf("decode frame: %w", err), "")
		return
	}
	fullBytes, err := imageutil.EncodeJPEG(frame)
	if err != nil {
		s.fail(ctx, sid, req, fmt.Errorf("encode frame: %w", err), "")
		return
	}
	if err := s.cache.Put(ctx, fullRef, fullBytes, s.cacheTTL); err != nil {
		s.fail(ctx, sid, req, fmt.Errorf("store frame: %w", err), "")
		return
	}

	s.publish(sid, progress.Thought("", thoughtCrop))
	bbox, err := pipeline.BBoxFromSlice(req.BBox)
	if err != nil {
		s.fail(ctx, sid, req, err, "")
		return
	}
	snippet, err := imageutil.Crop(frame, bbox.X, bbox.Y, bbox.W, bbox.H)
	if err != nil {
		s.fail(ctx, sid, req, fmt.Errorf("crop snippet: %w", err), "")
		return
	}
	snippetBytes, err := imageutil.EncodeJPEG(snippet)
	if err != nil {
		s.fail(ctx, sid, req, fmt.Errorf("encode snippet: %w", err), "")
		return
	}
	if err := s.cache.Put(ctx, snippetRef, snippetBytes, s.cacheTTL); err != nil {
		s.fail(ctx, sid, req, fmt.Errorf("store snippet: %w", err), "")
		return
	}

	s.publish(sid, progress.Thought("", thoughtInit))
	st, err := pipeline.NewState(pipeline.Input{
		SessionID:    sid,
		VideoID:      req.VideoId,
		Query:        req.Query,
		Timestamp:    req.Timestamp,
		FullFrameRef: fullRef,
		SnippetRef:   snippetRef,
		BBox:         bbox,
	})
	if err != nil {
		s.fail(ctx, sid, req, err, "")
		return
	}

	observer := pipeline.ObserverFunc(func(_ context.Context, stage pipeline.Stage, _ pipeline.State) {
		s.publish(sid, progress.Thought(stage.String(), stageThoughts[stage]))
	})

	res, err := s.runner.Run(ctx, st, observer)
	if err != nil {
		s.fail(ctx, sid, req, err, "")
		return
	}

	s.publish(sid, progress.Complete(res.Answer, res.Confidence, res.Attempts))
	s.logger.Info(module, "Answer delivered", map[string]interface{}{
		"session_id": sid,
		"confidence": res.Confidence,
		"attempts":   res.Attempts,
		"passed":     res.Passed,
		"elapsed_ms": time.Since(started).Milliseconds(),
	})

	s.record(ctx, sid, req, bbox, res, time.Since(started))
}

func (s *ragService) publish(sid string, ev progress.Event) {
	if err := s.bus.Publish(sid, ev); err != nil {
		s.logger.Warn(module, "Progress publish failed", map[string]interface{}{"session_id": sid, "error": err.Error()})
	}
}

// fail logs the full cause and sends the client a generic error event.
func (s *ragService) fail(ctx context.Context, sid string, req *dto.QueryPayload, cause error, stack string) {
	details := map[string]interface{}{
		"session_id": sid,
		"video_id":   req.VideoId,
		"error":      cause.Error(),
	}
	if stack != "" {
		details["stack"] = stack
	}
	s.logger.Error(module, "Run failed", details)
	s.publish(sid, progress.Failure(GenericErrorMessage))

	if s.publisher != nil {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), events.Failed(sid, req.VideoId, cause.Error())); err != nil {
			s.logger.Warn(module, "Failed to publish failure event", map[string]interface{}{"session_id": sid, "error": err.Error()})
		}
	}
}

// record stores the interaction and announces it. Neither affects the
// answer already sent.
func (s *ragService) record(ctx context.Context, sid string, req *dto.QueryPayload, bbox pipeline.BBox, res pipeline.Result, took time.Duration) {
	ctx = context.WithoutCancel(ctx)

	if s.history != nil {
		err := s.history.Create(ctx, &entity.Interaction{
			SessionId:     sid,
			VideoId:       req.VideoId,
			Timestamp:     req.Timestamp,
			Query:         req.Query,
			BBox:          [4]float64{bbox.X, bbox.Y, bbox.W, bbox.H},
			VisualLabel:   res.VisualLabel,
			Answer:        res.Answer,
			Confidence:    res.Confidence,
			Attempts:      res.Attempts,
			Passed:        res.Passed,
			HasTranscript: res.HasTranscript,
			UsedToolData:  res.UsedToolData,
			Duration:      took,
		})
		if err != nil {
			s.logger.Warn(module, "Failed to save interaction", map[string]interface{}{"session_id": sid, "error": err.Error()})
		}
	}

	if s.publisher != nil {
		evt := events.Answered(sid, req.VideoId, req.Timestamp, res.Confidence, res.Attempts, res.Passed)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn(module, "Failed to publish answered event", map[string]interface{}{"session_id": sid, "error": err.Error()})
		}
	}
}

func (s *ragService) History(ctx context.Context, videoID string, limit int) ([]*dto.InteractionResponse, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.history.FindRecentByVideo(ctx, videoID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.InteractionResponse, 0, len(rows))
	for _, r := range rows {
		result = append(result, &dto.InteractionResponse{
			Id:            r.Id,
			SessionId:     r.SessionId,
			VideoId:       r.VideoId,
			Timestamp:     r.Timestamp,
			Query:         r.Query,
			BBox:          r.BBox,
			VisualLabel:   r.VisualLabel,
			Answer:        r.Answer,
			Confidence:    r.Confidence,
			Attempts:      r.Attempts,
			Passed:        r.Passed,
			HasTranscript: r.HasTranscript,
			UsedToolData:  r.UsedToolData,
			DurationMs:    r.Duration.Milliseconds(),
			CreatedAt:     r.CreatedAt,
		})
	}
	return result, nil
}
