package reminders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ferris-bot/pkg/metrics"

	"github.com/google/uuid"
)

// Scheduler runs reminders in memory. They do not survive a restart.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[uuid.UUID]*time.Timer
	wg      sync.WaitGroup
}

func NewScheduler(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule calls fire once after d unless the scheduler is stopped first.
func (s *Scheduler) Schedule(d time.Duration, fire func(ctx context.Context)) uuid.UUID {
	id := uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return id
	}
	s.wg.Add(1)
	s.pending[id] = time.AfterFunc(d, func() {
		defer s.wg.Done()
		if !s.remove(id) {
			return
		}
		slog.Debug("reminders: firing reminder", slog.String("reminder.id", id.String()))
		fire(s.ctx)
	})
	metrics.Reminders.Inc()
	return id
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending reminder and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, timer := range s.pending {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.pending, id)
		metrics.Reminders.Dec()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	metrics.Reminders.Dec()
	return true
}
