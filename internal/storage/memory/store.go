// Package memory provides an in-process profile store used by tests and the
// development server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/k6mud/internal/game/player"
)

// ProfileStore keeps player profiles in a map guarded by a mutex.
//
// It satisfies the same contract as postgres.ProfileRepository, including the
// atomic false-to-true transition of MarkConnected.
type ProfileStore struct {
	mu       sync.Mutex
	nextID   int64
	profiles map[string]*player.Profile
}

// NewProfileStore returns an empty ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*player.Profile)}
}

// Create adds a profile with a bcrypt-hashed password.
//
// Postcondition: Returns the created Profile, or player.ErrProfileExists if the
// username is taken.
func (s *ProfileStore) Create(ctx context.Context, username, password string, locationRoomID int) (player.Profile, error) {
	if err := ctx.Err(); err != nil {
		return player.Profile{}, err
	}
	// Hash outside the lock; bcrypt is slow.
	hash, err := player.HashPassword(password)
	if err != nil {
		return player.Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[username]; ok {
		return player.Profile{}, player.ErrProfileExists
	}
	s.nextID++
	p := &player.Profile{
		ID:             s.nextID,
		Username:       username,
		PasswordHash:   hash,
		LocationRoomID: locationRoomID,
		CreatedAt:      time.Now().UTC(),
	}
	s.profiles[username] = p
	return *p, nil
}

// GetByUsername returns a copy of the stored profile or player.ErrProfileNotFound.
func (s *ProfileStore) GetByUsername(ctx context.Context, username string) (player.Profile, error) {
	if err := ctx.Err(); err != nil {
		return player.Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[username]
	if !ok {
		return player.Profile{}, player.ErrProfileNotFound
	}
	return *p, nil
}

// MarkConnected sets the connected flag if it is currently clear.
func (s *ProfileStore) MarkConnected(ctx context.Context, username string) error {
	return s.update(ctx, username, func(p *player.Profile) error {
		if p.Connected {
			return player.ErrAlreadyConnected
		}
		p.Connected = true
		return nil
	})
}

// MarkDisconnected clears the connected flag.
func (s *ProfileStore) MarkDisconnected(ctx context.Context, username string) error {
	return s.update(ctx, username, func(p *player.Profile) error {
		p.Connected = false
		return nil
	})
}

// UpdateLocation stores the player's current room.
func (s *ProfileStore) UpdateLocation(ctx context.Context, username string, roomID int) error {
	return s.update(ctx, username, func(p *player.Profile) error {
		p.LocationRoomID = roomID
		return nil
	})
}

// ConnectedInRoom returns connected usernames located in roomID, sorted.
func (s *ProfileStore) ConnectedInRoom(ctx context.Context, roomID int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Connected && p.LocationRoomID == roomID {
			names = append(names, p.Username)
		}
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names, nil
}

// Connected returns every connected username, sorted.
func (s *ProfileStore) Connected(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Connected {
			names = append(names, p.Username)
		}
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names, nil
}

// ResetConnections clears every connected flag and reports how many were set.
func (s *ProfileStore) ResetConnections(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.profiles {
		if p.Connected {
			p.Connected = false
			n++
		}
	}
	return n, nil
}

func (s *ProfileStore) update(ctx context.Context, username string, fn func(*player.Profile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[username]
	if !ok {
		return player.ErrProfileNotFound
	}
	return fn(p)
}
