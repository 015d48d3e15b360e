package chat

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultRevealInterval is the tick interval between revealed characters.
const DefaultRevealInterval = 15 * time.Millisecond

type revealJob struct {
	turnID int64
	text   string
	onTick func(prefix string)
	onDone func()
}

// RevealScheduler replays an already-fully-known reply one character per
// tick, for visual parity with the streaming path. At most one reveal runs
// at a time; further requests queue FIFO. Prefixes are cut on rune
// boundaries so multi-byte text is never split mid-character.
type RevealScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	queue    []*revealJob
	active   *revealJob
	stop     chan struct{}
	closed   bool
}

// NewRevealScheduler creates a scheduler with the given tick interval.
// A non-positive interval falls back to DefaultRevealInterval.
func NewRevealScheduler(interval time.Duration) *RevealScheduler {
	if interval <= 0 {
		interval = DefaultRevealInterval
	}
	return &RevealScheduler{interval: interval}
}

// Schedule enqueues a reveal for the given turn. onTick receives the
// revealed prefix after every tick; onDone fires once the full text has
// been revealed. Re-scheduling a turn whose reveal is still active is a
// caller bug and is dropped with a warning.
func (s *RevealScheduler) Schedule(turnID int64, text string, onTick func(prefix string), onDone func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.active != nil && s.active.turnID == turnID {
		slog.Warn("reveal.schedule ignored: reveal already active for turn", "turn_id", turnID)
		return
	}

	job := &revealJob{turnID: turnID, text: text, onTick: onTick, onDone: onDone}
	if s.active != nil {
		s.queue = append(s.queue, job)
		return
	}
	s.startLocked(job)
}

// CancelActive stops the running reveal immediately. Queued reveals are
// not dropped: the next one starts right away. Only Close drains the queue.
func (s *RevealScheduler) CancelActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	s.cancelActiveLocked()
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.startLocked(next)
	}
}

// Close cancels the active reveal and drops all queued jobs. The
// scheduler accepts no further work afterwards.
func (s *RevealScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	s.cancelActiveLocked()
}

func (s *RevealScheduler) cancelActiveLocked() {
	if s.active == nil {
		return
	}
	close(s.stop)
	s.active = nil
	s.stop = nil
}

// startLocked begins a job. Caller holds s.mu.
func (s *RevealScheduler) startLocked(job *revealJob) {
	stop := make(chan struct{})
	s.active = job
	s.stop = stop
	go s.run(job, stop)
}

func (s *RevealScheduler) run(job *revealJob, stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	runes := []rune(job.text)
	for i := 1; i <= len(runes); i++ {
		select {
		case <-ticker.C:
			job.onTick(string(runes[:i]))
		case <-stop:
			return
		}
	}

	job.onDone()

	s.mu.Lock()
	if s.active != job {
		// Cancelled concurrently with completion; the cancel path already
		// cleared the slot.
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.stop = nil
	if !s.closed && len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.startLocked(next)
	}
	s.mu.Unlock()
}
