package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/picguess/picguess-backend/internal"
)

// Clock abstracts wall-clock reads so room lifetimes and elapsed-time
// scoring are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Registry is the process-wide table of live rooms. It owns room creation
// and time-based eviction; everything else goes through the room itself.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	clock     Clock
	retention time.Duration
	log       zerolog.Logger
}

func NewRegistry(clock Clock, retention time.Duration, logger zerolog.Logger) *Registry {
	if retention <= 0 {
		retention = internal.RoomRetention
	}
	return &Registry{
		rooms:     make(map[string]*Room),
		clock:     clock,
		retention: retention,
		log:       logger.With().Str("component", "registry").Logger(),
	}
}

// Create makes a new room in the setup state with a fresh id and host
// token.
func (reg *Registry) Create(settings internal.Settings) *Room {
	if settings.RoundDurationMs <= 0 {
		settings.RoundDurationMs = internal.DefaultRoundDuration.Milliseconds()
	}
	if settings.TotalRounds <= 0 {
		settings.TotalRounds = internal.DefaultTotalRounds
	}

	room := newRoom(uuid.NewString(), uuid.NewString(), settings, reg.clock, reg.log)

	reg.mu.Lock()
	reg.rooms[room.ID()] = room
	reg.mu.Unlock()

	reg.log.Info().Str("room", room.ID()).Msg("room created")
	return room
}

func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[id]
	return room, ok
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// SweepExpired shuts down and removes every room past the retention
// window, regardless of its state. Shutdown cancels the room's pending
// timers before the room is dropped, so no callback can touch a removed
// room.
func (reg *Registry) SweepExpired() int {
	now := reg.clock.Now()

	reg.mu.Lock()
	expired := make([]*Room, 0)
	for id, room := range reg.rooms {
		if now.Sub(room.CreatedAt()) > reg.retention {
			expired = append(expired, room)
			delete(reg.rooms, id)
		}
	}
	reg.mu.Unlock()

	for _, room := range expired {
		room.Shutdown()
		reg.log.Info().Str("room", room.ID()).Msg("room evicted")
	}
	return len(expired)
}

// Run sweeps on an interval until the context is cancelled, then shuts
// down every remaining room.
func (reg *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reg.SweepExpired()
		case <-ctx.Done():
			reg.mu.Lock()
			for id, room := range reg.rooms {
				room.Shutdown()
				delete(reg.rooms, id)
			}
			reg.mu.Unlock()
			return
		}
	}
}
