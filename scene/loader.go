package scene

import (
	"context"
	"fmt"
	"sync"

	"github.com/milk9111/sandbox/logger"
)

// Loader fetches shared scenes. Only the most recently started load may
// apply its result; an older one that finishes later gets ErrSuperseded.
type Loader struct {
	client Client

	mu         sync.Mutex
	generation uint64
}

func NewLoader(client Client) *Loader {
	return &Loader{client: client}
}

// Load fetches id and hands the document to apply, unless another Load
// started in the meantime. apply runs with the loader's lock held.
func (l *Loader) Load(ctx context.Context, id string, apply func(Document) error) error {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.mu.Unlock()

	doc, err := l.client.GetScene(ctx, id)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation {
		logger.Log.WithField("scene", id).Debug("scene: dropping stale load")
		return fmt.Errorf("scene: load %s: %w", id, ErrSuperseded)
	}
	return apply(doc)
}

// Generation is the number of loads started so far.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}
