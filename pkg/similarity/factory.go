package similarity

import (
	"context"
	"errors"
	"fmt"
)

// NewBackend returns a lazily initialised scorer for provider ("siglip" or
// "jina"). The SigLIP sidecar is health-checked on first use.
func NewBackend(provider, jinaAPIKey, siglipURL string) (*Lazy, error) {
	switch provider {
	case "siglip":
		return NewLazy(func(ctx context.Context) (Scorer, error) {
			s := NewSigLIPScorer(siglipURL)
			if err := s.Ping(ctx); err != nil {
				return nil, err
			}
			return s, nil
		}), nil
	case "", "jina":
		return NewLazy(func(context.Context) (Scorer, error) {
			if jinaAPIKey == "" {
				return nil, errors.New("JINA_API_KEY is not set")
			}
			return NewJinaScorer(jinaAPIKey), nil
		}), nil
	default:
		return nil, fmt.Errorf("unsupported similarity provider: %s", provider)
	}
}
