package skill

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalHandler is a capability bound in-process. Handlers must be
// asynchronous and cooperative — they receive the call's context and must
// honor cancellation.
type LocalHandler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// localExecutors holds handlers keyed by LocalHandlerID, separate from the
// Registry so a handler can be swapped (e.g. in tests) without touching
// registration metadata.
type localExecutors struct {
	mu       sync.RWMutex
	handlers map[string]LocalHandler
}

func newLocalExecutors() *localExecutors {
	return &localExecutors{handlers: make(map[string]LocalHandler)}
}

func (l *localExecutors) bind(handlerID string, h LocalHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[handlerID] = h
}

func (l *localExecutors) get(handlerID string) (LocalHandler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.handlers[handlerID]
	return h, ok
}
