package session

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Entry describes one live session unit.
type Entry struct {
	// ID is the unit's session id.
	ID string
	// Username is empty while the session is anonymous.
	Username string
	// RemoteAddr is the peer address reported by the transport.
	RemoteAddr string
	// ConnectedAt is when the unit started.
	ConnectedAt time.Time
}

// Registry tracks all live session units by id and username.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry // session id → entry
	byName  map[string]string // username → session id
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		byName:  make(map[string]string),
	}
}

// Add registers a unit.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an error if the id is already registered.
func (r *Registry) Add(id, remoteAddr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("session %q already registered", id)
	}
	r.entries[id] = &Entry{ID: id, RemoteAddr: remoteAddr, ConnectedAt: time.Now()}
	return nil
}

// Remove unregisters a unit.
//
// Postcondition: The unit is removed from all tracking. Returns an error if not found.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}
	if e.Username != "" && r.byName[e.Username] == id {
		delete(r.byName, e.Username)
	}
	delete(r.entries, id)
	return nil
}

// SetUsername records the unit's authenticated username; "" marks it anonymous.
//
// Postcondition: Returns an error if the id is not registered.
func (r *Registry) SetUsername(id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}
	if e.Username == username {
		return nil
	}
	if e.Username != "" && r.byName[e.Username] == id {
		delete(r.byName, e.Username)
	}
	e.Username = username
	if username != "" {
		r.byName[username] = id
	}
	return nil
}

// GetByUsername returns a copy of the entry bound to username.
func (r *Registry) GetByUsername(username string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[username]
	if !ok {
		return Entry{}, false
	}
	return *r.entries[id], true
}

// Usernames returns the authenticated usernames, sorted.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Count returns the number of live units.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// AuthenticatedCount returns the number of live units bound to a username.
func (r *Registry) AuthenticatedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
