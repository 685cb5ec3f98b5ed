package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"video-rag-be/internal/dto"
	"video-rag-be/internal/pkg/serverutils"
	"video-rag-be/internal/service"
	"video-rag-be/pkg/progress"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRagService struct {
	events  []progress.Event
	got     *dto.QueryPayload
	history []*dto.InteractionResponse
	histErr error
}

func (f *fakeRagService) Stream(_ context.Context, req *dto.QueryPayload, emit func(progress.Event) error) error {
	f.got = req
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRagService) History(context.Context, string, int) ([]*dto.InteractionResponse, error) {
	return f.history, f.histErr
}

func newTestApp(svc service.IRagService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	c := NewRagController(svc, nil)
	app.Get("/health", c.Health)
	c.RegisterRoutes(app.Group("/api"), serverutils.JwtMiddleware(""))
	return app
}

const validBody = `{"video_id":"dQw4w9WgXcQ","timestamp":61.5,"bbox":[10,20,300,150],"query":"what is this?","full_frame_b64":"AAAA"}`

func TestStream_WritesServerSentEvents(t *testing.T) {
	svc := &fakeRagService{events: []progress.Event{
		progress.Thought("", "Storing captured frame..."),
		progress.Complete("It is a loop.", 0.8, 1),
	}}
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/rag/v1/stream", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	frames := strings.Split(strings.TrimSpace(string(body)), "\n\n")
	require.Len(t, frames, 3)
	assert.Equal(t, `data: {"status":"processing","thought":"Storing captured frame..."}`, frames[0])
	assert.Contains(t, frames[1], `"status":"complete"`)
	assert.Contains(t, frames[1], `"confidence":0.8`)
	assert.Equal(t, "data: [DONE]", frames[2])

	require.NotNil(t, svc.got)
	assert.Equal(t, []float64{10, 20, 300, 150}, svc.got.BBox)
}

func TestStream_RejectsBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing query", `{"video_id":"v","timestamp":1,"bbox":[0,0,1,1],"full_frame_b64":"AAAA"}`},
		{"short bbox", `{"video_id":"v","timestamp":1,"bbox":[0,0,1],"query":"q","full_frame_b64":"AAAA"}`},
		{"negative bbox", `{"video_id":"v","timestamp":1,"bbox":[0,-4,1,1],"query":"q","full_frame_b64":"AAAA"}`},
		{"negative timestamp", `{"video_id":"v","timestamp":-1,"bbox":[0,0,1,1],"query":"q","full_frame_b64":"AAAA"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRagService{}
			app := newTestApp(svc)

			req := httptest.NewRequest("POST", "/api/rag/v1/stream", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, 400, resp.StatusCode)
			assert.Nil(t, svc.got)
		})
	}
}

func TestHistory(t *testing.T) {
	svc := &fakeRagService{history: []*dto.InteractionResponse{{VideoId: "vid", Answer: "a"}}}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rag/v1/history/vid?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Success bool                       `json:"success"`
		Data    []*dto.InteractionResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "a", body.Data[0].Answer)
}

func TestHistory_Disabled(t *testing.T) {
	app := newTestApp(&fakeRagService{histErr: service.ErrHistoryDisabled})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rag/v1/history/vid", nil))
	require.NoError(t, err)

	assert.Equal(t, 503, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	app := newTestApp(&fakeRagService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)

	b, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok","service":"video-rag-be"}`, string(b))
}
