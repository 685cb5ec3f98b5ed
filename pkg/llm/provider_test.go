package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrRateLimited, true},
		{"wrapped status 429", fmt.Errorf("call: %w", &StatusError{Provider: "gemini", Code: 429}), true},
		{"resource exhausted body", &StatusError{Provider: "gemini", Code: 400, Body: `{"status":"RESOURCE_EXHAUSTED"}`}, true},
		{"plain text 429", errors.New("upstream said 429 Too Many Requests"), true},
		{"auth failure", &StatusError{Provider: "gemini", Code: 401, Body: "API key not valid"}, false},
		{"generic", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

func TestNewRequest_AppliesOptions(t *testing.T) {
	req := NewRequest("m", []Part{Text("hi"), Image([]byte{1}, "")}, WithTemperature(0.1), WithMaxTokens(64))
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, 0.1, req.Options.Temperature)
	assert.Equal(t, 64, req.Options.MaxTokens)
	assert.False(t, req.Parts[0].IsImage())
	assert.True(t, req.Parts[1].IsImage())
	assert.Equal(t, "image/jpeg", req.Parts[1].MIMEType)
}
