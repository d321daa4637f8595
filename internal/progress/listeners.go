package progress

import (
	"sync"

	"github.com/chronochess/progress/internal/models"
)

// Listener receives the full achievement record on unlock or claim.
type Listener func(models.Achievement)

// listenerSet decouples the tracker from its consumers: the currency
// awarder and the UI subscribe here instead of being imported.
type listenerSet struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]Listener
}

func newListenerSet() *listenerSet {
	return &listenerSet{fns: make(map[int]Listener)}
}

// add registers fn and returns its unsubscribe function.
func (s *listenerSet) add(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *listenerSet) notify(a models.Achievement) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}
