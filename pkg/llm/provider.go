package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRateLimited marks a failure the gateway may retry on another credential.
var ErrRateLimited = errors.New("rate limit exceeded")

// Part is one element of a multimodal request: either text or inline image bytes.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

func Text(s string) Part {
	return Part{Text: s}
}

func Image(data []byte, mimeType string) Part {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return Part{MIMEType: mimeType, Data: data}
}

func (p Part) IsImage() bool {
	return len(p.Data) > 0
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// Request addresses one model with an ordered list of parts.
type Request struct {
	Model   string
	Parts   []Part
	Options Options
}

func NewRequest(model string, parts []Part, opts ...Option) Request {
	options := Options{Temperature: 0.4}
	for _, opt := range opts {
		opt(&options)
	}
	return Request{Model: model, Parts: parts, Options: options}
}

// Invoker performs a single completion call with an explicit credential.
// Credential selection and retries belong to the caller.
type Invoker interface {
	Invoke(ctx context.Context, credential string, req Request) (string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match 429 / RESOURCE_EXHAUSTED replies.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests || strings.Contains(e.Body, "RESOURCE_EXHAUSTED") {
		return ErrRateLimited
	}
	return nil
}

// IsRateLimited reports whether err is a rate-limit-class failure. Errors
// from SDKs that only carry text are matched on "429" and "RESOURCE_EXHAUSTED".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// Completer is the credential-free call surface the pipeline depends on.
// The gateway implements it on top of an Invoker.
type Completer interface {
	Call(ctx context.Context, req Request) (string, error)
}
