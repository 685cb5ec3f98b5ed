package similarity

import (
	"context"
	"fmt"
	"sync"
)

// Lazy builds its Scorer on first use. A failed initialisation is not
// cached; the next call tries again.
type Lazy struct {
	mu     sync.Mutex
	init   func(ctx context.Context) (Scorer, error)
	scorer Scorer
}

var _ Scorer = (*Lazy)(nil)

func NewLazy(init func(ctx context.Context) (Scorer, error)) *Lazy {
	return &Lazy{init: init}
}

func (l *Lazy) get(ctx context.Context) (Scorer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.scorer != nil {
		return l.scorer, nil
	}
	s, err := l.init(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if s == nil {
		return nil, ErrUnavailable
	}
	l.scorer = s
	return s, nil
}

// Ready reports whether the backend has been initialised.
func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scorer != nil
}

func (l *Lazy) Similarity(ctx context.Context, image []byte, text string) (float64, error) {
	s, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Similarity(ctx, image, text)
}
