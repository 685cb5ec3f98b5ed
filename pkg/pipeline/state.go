package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"video-rag-be/pkg/blobcache"
	"video-rag-be/pkg/guardrail"
)

// BBox is the user's selection in frame pixels, origin top-left.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func BBoxFromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 values, got %d", len(v))
	}
	b := BBox{X: v[0], Y: v[1], W: v[2], H: v[3]}
	return b, b.Validate()
}

func (b BBox) Validate() error {
	for _, v := range []float64{b.X, b.Y, b.W, b.H} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bbox coordinates must be finite and non-negative: %+v", b)
		}
	}
	return nil
}

// Input is the identity and evidence of one request. It is fixed once the
// State is created.
type Input struct {
	SessionID    string
	VideoID      string
	Query        string
	Timestamp    float64
	FullFrameRef blobcache.Ref
	SnippetRef   blobcache.Ref
	BBox         BBox
}

func (in Input) Validate() error {
	var errs []error
	if strings.TrimSpace(in.SessionID) == "" {
		errs = append(errs, errors.New("session id is required"))
	}
	if strings.TrimSpace(in.VideoID) == "" {
		errs = append(errs, errors.New("video id is required"))
	}
	if strings.TrimSpace(in.Query) == "" {
		errs = append(errs, errors.New("query is required"))
	}
	if in.Timestamp < 0 || math.IsNaN(in.Timestamp) || math.IsInf(in.Timestamp, 0) {
		errs = append(errs, fmt.Errorf("timestamp must be a non-negative number, got %v", in.Timestamp))
	}
	if in.FullFrameRef == "" || in.SnippetRef == "" {
		errs = append(errs, errors.New("both image refs are required"))
	}
	if err := in.BBox.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// State is threaded through every stage of one request. It holds cache
// refs only; image bytes are fetched per stage and never kept here.
type State struct {
	input Input

	HasTranscript      bool
	TranscriptContext  string
	VisualLabel        string
	ToolData           string
	DraftAnswer        string
	ValidationScore    float64
	CorrectionAttempts int
	LastValidation     guardrail.Result
}

func NewState(in Input) (*State, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline input: %w", err)
	}
	return &State{input: in}, nil
}

// Input returns a copy of the immutable request fields.
func (s *State) Input() Input {
	return s.input
}
