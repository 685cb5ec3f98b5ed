package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	gocache "github.com/patrickmn/go-cache"
)

// ErrNoTranscript means the video has no caption track to fetch.
var ErrNoTranscript = errors.New("transcript: not available")

// Source fetches a raw transcript for a video.
type Source interface {
	Fetch(ctx context.Context, videoID string) ([]Entry, error)
}

// YouTubeSource reads the public timedtext XML track. Scraping endpoints
// are flaky, so transient failures are retried with exponential backoff.
type YouTubeSource struct {
	BaseURL         string
	Languages       []string
	Client          *http.Client
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var _ Source = (*YouTubeSource)(nil)

func NewYouTubeSource() *YouTubeSource {
	return &YouTubeSource{
		BaseURL:         "https://www.youtube.com/api/timedtext",
		Languages:       []string{"en"},
		Client:          &http.Client{Timeout: 15 * time.Second},
		MaxTries:        4,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Lines   []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func (s *YouTubeSource) Fetch(ctx context.Context, videoID string) ([]Entry, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, fmt.Errorf("%w: empty video id", ErrNoTranscript)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.InitialInterval
	exp.MaxInterval = s.MaxInterval

	var lastLangErr error
	for _, lang := range s.Languages {
		entries, err := backoff.Retry(ctx, func() ([]Entry, error) {
			return s.fetchOnce(ctx, videoID, lang)
		}, backoff.WithBackOff(exp), backoff.WithMaxTries(s.MaxTries))
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, ErrNoTranscript) {
			return nil, err
		}
		lastLangErr = err
		exp.Reset()
	}
	return nil, lastLangErr
}

func (s *YouTubeSource) fetchOnce(ctx context.Context, videoID, lang string) ([]Entry, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read timedtext: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s (%s)", ErrNoTranscript, videoID, lang))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("timedtext status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("timedtext status %d: %s", resp.StatusCode, string(body)))
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s (%s)", ErrNoTranscript, videoID, lang))
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode timedtext: %w", err))
	}

	entries := make([]Entry, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		text := strings.Join(strings.Fields(html.UnescapeString(line.Body)), " ")
		if text == "" {
			continue
		}
		entries = append(entries, Entry{Text: text, Start: start, Duration: dur})
	}
	if len(entries) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s (%s)", ErrNoTranscript, videoID, lang))
	}
	return entries, nil
}

// CachedSource memoises successful fetches so the availability probe and
// the ranking stage share one network round trip.
type CachedSource struct {
	next  Source
	cache *gocache.Cache
}

var _ Source = (*CachedSource)(nil)

func NewCachedSource(next Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedSource) Fetch(ctx context.Context, videoID string) ([]Entry, error) {
	if x, found := c.cache.Get(videoID); found {
		return x.([]Entry), nil
	}
	entries, err := c.next.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(videoID, entries, gocache.DefaultExpiration)
	return entries, nil
}
