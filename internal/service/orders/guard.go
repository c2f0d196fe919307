package orders

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// sessionGuard сериализует read-modify-write последовательности одной сессии
// и не допускает двух одновременных созданий заказа.
type sessionGuard struct {
	inflight *semaphore.Weighted
	mu       sync.Mutex
	refs     int
}

type sessionGuards struct {
	mu      sync.Mutex
	entries map[string]*sessionGuard
}

func newSessionGuards() *sessionGuards {
	return &sessionGuards{entries: make(map[string]*sessionGuard)}
}

// acquire возвращает guard сессии; каждый вызов обязан закончиться release.
func (g *sessionGuards) acquire(sessionID string) *sessionGuard {
	g.mu.Lock()
	defer g.mu.Unlock()

	guard, ok := g.entries[sessionID]
	if !ok {
		guard = &sessionGuard{inflight: semaphore.NewWeighted(1)}
		g.entries[sessionID] = guard
	}
	guard.refs++
	return guard
}

func (g *sessionGuards) release(sessionID string, guard *sessionGuard) {
	g.mu.Lock()
	defer g.mu.Unlock()

	guard.refs--
	if guard.refs <= 0 {
		delete(g.entries, sessionID)
	}
}

func (g *sessionGuards) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
