package system

import (
	"context"
	"time"

	"github.com/l1jgo/scenes/internal/core/event"
	coresys "github.com/l1jgo/scenes/internal/core/system"
	"github.com/l1jgo/scenes/internal/persist"
	"go.uber.org/zap"
)

// JournalWriter persists a batch of transitions. *persist.JournalRepo is the
// production implementation.
type JournalWriter interface {
	WriteBatch(ctx context.Context, entries []persist.JournalEntry) error
}

// JournalSystem buffers lifecycle events and writes them out every
// flushInterval ticks. A failed write keeps the batch for the next flush.
// Phase 3 (Persist).
type JournalSystem struct {
	writer        JournalWriter
	host          string
	flushInterval int
	timeout       time.Duration
	counter       int
	buf           []persist.JournalEntry
	subs          []event.Subscription
	bus           *event.Bus
	log           *zap.Logger
}

// maxBuffered caps the backlog kept while the database is unreachable.
const maxBuffered = 4096

func NewJournalSystem(writer JournalWriter, host string, flushInterval int, log *zap.Logger) *JournalSystem {
	if flushInterval < 1 {
		flushInterval = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &JournalSystem{
		writer:        writer,
		host:          host,
		flushInterval: flushInterval,
		timeout:       5 * time.Second,
		buf:           make([]persist.JournalEntry, 0, 64),
		log:           log,
	}
}

// Attach starts recording every lifecycle event published on bus.
func (s *JournalSystem) Attach(bus *event.Bus) {
	s.bus = bus
	s.subs = bus.SubscribeAll(s.record)
}

func (s *JournalSystem) record(ev event.Event) {
	if len(s.buf) >= maxBuffered {
		s.log.Warn("journal backlog full, dropping oldest entry")
		s.buf = s.buf[1:]
	}
	s.buf = append(s.buf, persist.JournalEntry{
		CallID:     ev.CallID,
		Kind:       ev.Kind.String(),
		SceneID:    ev.SceneID,
		OccurredAt: ev.At,
		Host:       s.host,
	})
}

// Buffered returns the number of entries waiting for a flush.
func (s *JournalSystem) Buffered() int { return len(s.buf) }

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	s.counter++
	if s.counter < s.flushInterval {
		return
	}
	s.counter = 0
	s.Flush(context.Background())
}

// Flush writes the buffered entries now.
func (s *JournalSystem) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.writer.WriteBatch(ctx, s.buf); err != nil {
		s.log.Error("journal flush failed", zap.Int("entries", len(s.buf)), zap.Error(err))
		return err
	}
	s.log.Debug("journal flushed", zap.Int("entries", len(s.buf)))
	s.buf = s.buf[:0]
	return nil
}

// Close unsubscribes and writes whatever is left.
func (s *JournalSystem) Close(ctx context.Context) error {
	if s.bus != nil {
		for _, sub := range s.subs {
			s.bus.Unsubscribe(sub)
		}
		s.subs = nil
		s.bus = nil
	}
	return s.Flush(ctx)
}
