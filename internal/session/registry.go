package session

import (
	"sync"
	"time"

	"github.com/getohub/morrisapi/internal/apperror"
	"github.com/getohub/morrisapi/internal/entity"
)

// Registry owns the process-wide mapping from session id to live session
// entity. Entities are fully constructed before they become visible, and
// creation never broadcasts anything; that is the caller's job once the
// triggering protocol step completed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entity.Session),
		now:      time.Now,
	}
}

// GetOrCreate - returns the session for the id, lazily creating it with
// waiting-phase defaults when it does not exist yet.
func (that *Registry) GetOrCreate(id string) *entity.Session {
	that.mu.RLock()
	existing, ok := that.sessions[id]
	that.mu.RUnlock()

	if ok {
		return existing
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// Another caller may have won the race between the two locks.
	if existing, ok = that.sessions[id]; ok {
		return existing
	}

	created := entity.NewSession(id, that.now())
	that.sessions[id] = created

	return created
}

// Get - returns the session for the id or ErrSessionNotFound.
func (that *Registry) Get(id string) (*entity.Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	existing, ok := that.sessions[id]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	return existing, nil
}

// Remove - drops the session from the registry. Removing an absent id is a
// no-op; late events racing a removal are expected traffic.
func (that *Registry) Remove(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, id)
}

// All - returns the live sessions at the time of the call.
func (that *Registry) All() []*entity.Session {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sessions := make([]*entity.Session, 0, len(that.sessions))
	for _, existing := range that.sessions {
		sessions = append(sessions, existing)
	}

	return sessions
}

// Len - returns the number of live sessions.
func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}
