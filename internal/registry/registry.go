// Package registry tracks live duplex channels keyed by user and fans
// alert payloads out to them.
package registry

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tripdeck/concierge/internal/metrics"
)

// AnonKey buckets unauthenticated channels.
const AnonKey = "anon"

// Channel is the send side of one duplex connection. *websocket.Conn
// satisfies it.
type Channel interface {
	WriteJSON(v any) error
}

// Registry is the in-memory user→channels mapping. The mutex guards the
// map only; sends always happen on a snapshot taken outside the lock so a
// slow consumer can never block registration.
type Registry struct {
	mu          sync.Mutex
	connections map[string][]Channel
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{connections: make(map[string][]Channel)}
}

func key(userID string) string {
	if userID == "" {
		return AnonKey
	}
	return userID
}

// Connect registers a channel under the user's bucket.
func (r *Registry) Connect(ch Channel, userID string) {
	r.mu.Lock()
	r.connections[key(userID)] = append(r.connections[key(userID)], ch)
	r.mu.Unlock()
	metrics.ActiveConnections.Inc()
}

// Disconnect removes a channel; empty buckets are deleted.
func (r *Registry) Disconnect(ch Channel, userID string) {
	k := key(userID)
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.connections[k]
	for i, c := range bucket {
		if c == ch {
			r.connections[k] = append(bucket[:i], bucket[i+1:]...)
			metrics.ActiveConnections.Dec()
			break
		}
	}
	if len(r.connections[k]) == 0 {
		delete(r.connections, k)
	}
}

// Broadcast sends the payload to the user's channels, or to every channel
// when userID is empty. The snapshot is taken under the mutex; sends
// happen outside it, and a failed send never aborts delivery to siblings.
func (r *Registry) Broadcast(payload any, userID string) {
	var targets []Channel
	r.mu.Lock()
	if userID == "" {
		for _, bucket := range r.connections {
			targets = append(targets, bucket...)
		}
	} else {
		targets = append(targets, r.connections[key(userID)]...)
	}
	r.mu.Unlock()

	for _, ch := range targets {
		if err := ch.WriteJSON(payload); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("channel send failed")
		}
	}
}

// Size reports the number of live channels, used by health reporting.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, bucket := range r.connections {
		n += len(bucket)
	}
	return n
}
