package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrack = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="10.0" dur="4.2">intro</text>
<text start="50.5" dur="3">explains &amp;amp; loop</text>
<text start="70" dur="2.5">explains   variable</text>
</transcript>`

func testSource(url string) *YouTubeSource {
	s := NewYouTubeSource()
	s.BaseURL = url
	s.InitialInterval = time.Millisecond
	s.MaxInterval = 5 * time.Millisecond
	return s
}

func TestYouTubeSource_ParsesTrack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid123", r.URL.Query().Get("v"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		_, _ = w.Write([]byte(sampleTrack))
	}))
	defer server.Close()

	entries, err := testSource(server.URL).Fetch(context.Background(), "vid123")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Text: "intro", Start: 10, Duration: 4.2}, entries[0])
	assert.Equal(t, "explains & loop", entries[1].Text)
	assert.Equal(t, "explains variable", entries[2].Text)
}

func TestYouTubeSource_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleTrack))
	}))
	defer server.Close()

	entries, err := testSource(server.URL).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, int32(3), hits.Load())
}

func TestYouTubeSource_EmptyTrackIsPermanent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	_, err := testSource(server.URL).Fetch(context.Background(), "vid")
	assert.ErrorIs(t, err, ErrNoTranscript)
	assert.Equal(t, int32(1), hits.Load())
}

func TestYouTubeSource_GivesUpAfterMaxTries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testSource(server.URL).Fetch(context.Background(), "vid")
	assert.Error(t, err)
	assert.Equal(t, int32(4), hits.Load())
}

type countingSource struct {
	calls   int
	entries []Entry
	err     error
}

func (c *countingSource) Fetch(context.Context, string) ([]Entry, error) {
	c.calls++
	return c.entries, c.err
}

func TestCachedSource_MemoisesSuccessOnly(t *testing.T) {
	inner := &countingSource{entries: scenarioEntries()}
	cached := NewCachedSource(inner, time.Minute)

	_, err := cached.Fetch(context.Background(), "a")
	require.NoError(t, err)
	_, err = cached.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	failing := &countingSource{err: ErrNoTranscript}
	cachedFailing := NewCachedSource(failing, time.Minute)
	_, _ = cachedFailing.Fetch(context.Background(), "b")
	_, _ = cachedFailing.Fetch(context.Background(), "b")
	assert.Equal(t, 2, failing.calls)
}
