package transport

import "sync"

// Progress is one frame on the one-way progress back-channel (spec.md §3).
type Progress struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Phase    string `json:"phase"`
}

const (
	PhaseSync        = "sync"
	PhasePipeline    = "pipeline"
	PhaseEnrichment  = "enrichment"
	PhaseAggregation = "aggregation"
	PhaseDone        = "done"
	PhaseError       = "error"
)

// Broadcaster fans a single stream of progress frames out to every current
// subscriber (the stdio transport has none; the HTTP/SSE transport has one
// per open /events connection). The zero value is ready to use.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Progress]struct{}
}

// Subscribe registers a new listener with the given buffer depth and returns
// an unsubscribe function.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Progress, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[chan Progress]struct{})
	}
	ch := make(chan Progress, buffer)
	b.subs[ch] = struct{}{}
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Publish fans p out to every current subscriber. A frame is dropped for a
// subscriber whose buffer is full rather than blocking the pipeline; a
// stuck SSE client must not stall the engine's own progress.
func (b *Broadcaster) Publish(p Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- p:
		default:
		}
	}
}
