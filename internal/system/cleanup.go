package system

import (
	"time"

	"github.com/l1jgo/scenes/internal/core/ecs"
	coresys "github.com/l1jgo/scenes/internal/core/system"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end,
// which is what completes pending scene unloads.
// Phase 4 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
}

func NewCleanupSystem(world *ecs.World, log *zap.Logger) *CleanupSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if s.world.Pending() == 0 {
		return
	}
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.log.Debug("scene objects destroyed", zap.Int("count", n))
	}
}
