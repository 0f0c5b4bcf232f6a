package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/k6mud/internal/game/player"
)

// PresenceStore lists and clears persisted connected flags.
type PresenceStore interface {
	Connected(ctx context.Context) ([]string, error)
	MarkDisconnected(ctx context.Context, username string) error
}

// PresenceSweeper clears connected flags that no live session in the
// registry owns. A flag is released only after two consecutive sweeps find it
// orphaned, so a login that has not reached the registry yet is left alone.
//
// The registry only sees this process, so the sweeper is for single-node
// deployments.
type PresenceSweeper struct {
	store    PresenceStore
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	suspects map[string]struct{}

	quit     chan struct{}
	stopOnce sync.Once
}

// NewPresenceSweeper creates a sweeper running every interval.
//
// Precondition: store, registry and logger are non-nil; interval > 0.
func NewPresenceSweeper(store PresenceStore, registry *Registry, interval time.Duration, logger *zap.Logger) *PresenceSweeper {
	return &PresenceSweeper{
		store:    store,
		registry: registry,
		interval: interval,
		logger:   logger,
		suspects: make(map[string]struct{}),
		quit:     make(chan struct{}),
	}
}

// Sweep runs one pass and returns the usernames it released.
func (s *PresenceSweeper) Sweep(ctx context.Context) ([]string, error) {
	connected, err := s.store.Connected(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing connected players: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{})
	var released []string
	for _, name := range connected {
		if _, live := s.registry.GetByUsername(name); live {
			continue
		}
		if _, seen := s.suspects[name]; !seen {
			next[name] = struct{}{}
			continue
		}
		err := s.store.MarkDisconnected(ctx, name)
		if err != nil && !errors.Is(err, player.ErrProfileNotFound) {
			s.logger.Warn("releasing presence", zap.String("username", name), zap.Error(err))
			next[name] = struct{}{}
			continue
		}
		released = append(released, name)
	}
	s.suspects = next

	if len(released) > 0 {
		s.logger.Info("released orphaned presence", zap.Strings("usernames", released))
	}
	return released, nil
}

// Start sweeps every interval until Stop is called.
func (s *PresenceSweeper) Start() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("presence sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-s.quit:
			return nil
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("presence sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Stop ends Start. Safe to call more than once.
func (s *PresenceSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
}
