package http

import (
	"sync"

	"github.com/aretw0/lectern/pkg/domain"
)

// subscriberBuffer is how many frames a slow subscriber may lag before frames are dropped.
const subscriberBuffer = 64

func sessionKey(userID, courseID string) string {
	return userID + "\x00" + courseID
}

// StreamManager fans the frames of a session out to its watchers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Frame]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan domain.Frame]struct{}),
	}
}

// Subscribe registers a watcher of key. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(key string) (<-chan domain.Frame, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Frame, subscriberBuffer)
	if _, ok := sm.subscribers[key]; !ok {
		sm.subscribers[key] = make(map[chan domain.Frame]struct{})
	}
	sm.subscribers[key][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			subs := sm.subscribers[key]
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, key)
			}
		})
	}
}

// Broadcast delivers f to every watcher of key, dropping it for watchers whose buffer is full.
func (sm *StreamManager) Broadcast(key string, f domain.Frame) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers[key] {
		select {
		case ch <- f:
		default:
		}
	}
}

// Watchers returns the number of watchers of key.
func (sm *StreamManager) Watchers(key string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[key])
}
