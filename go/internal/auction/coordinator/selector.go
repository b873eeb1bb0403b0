package coordinator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Selector picks the next player from the AVAILABLE candidates.
type Selector interface {
	Pick(candidates []uuid.UUID) (uuid.UUID, bool)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(candidates []uuid.UUID) (uuid.UUID, bool)

func (f SelectorFunc) Pick(candidates []uuid.UUID) (uuid.UUID, bool) {
	return f(candidates)
}

// RandomSelector picks uniformly at random.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector constructs a RandomSelector with its own source. A zero
// seed uses the current time.
func NewRandomSelector(seed int64) *RandomSelector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

// Pick implements Selector.
func (s *RandomSelector) Pick(candidates []uuid.UUID) (uuid.UUID, bool) {
	if len(candidates) == 0 {
		return uuid.Nil, false
	}
	s.mu.Lock()
	i := s.rng.Intn(len(candidates))
	s.mu.Unlock()
	return candidates[i], true
}

// FirstSelector always picks the first candidate.
var FirstSelector = SelectorFunc(func(candidates []uuid.UUID) (uuid.UUID, bool) {
	if len(candidates) == 0 {
		return uuid.Nil, false
	}
	return candidates[0], true
})
