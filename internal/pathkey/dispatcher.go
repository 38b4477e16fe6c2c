package pathkey

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultDispatchWorkers = 2
	DefaultDispatchQueue   = 256
	DefaultEventTimeout    = 10 * time.Second
)

// AnswerRecorder handles one answer event.
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, ev AnswerEvent) error
}

// Dispatcher runs Trigger B off the answer path. Dispatch never waits on the
// recorder; errors are logged and dropped.
type Dispatcher struct {
	recorder AnswerRecorder
	queue    chan AnswerEvent
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(recorder AnswerRecorder, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = DefaultDispatchWorkers
	}
	if queueSize < 1 {
		queueSize = DefaultDispatchQueue
	}
	if timeout <= 0 {
		timeout = DefaultEventTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		recorder: recorder,
		queue:    make(chan AnswerEvent, queueSize),
		timeout:  timeout,
		logger:   logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Dispatch enqueues ev and reports whether it was accepted. A full queue or a
// closed dispatcher drops the event.
func (d *Dispatcher) Dispatch(ev AnswerEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.logger.Warn("answer event dropped, queue full",
			"session", ev.SessionID, "player", ev.PlayerID, "question", ev.QuestionID)
		return false
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.handle(ev)
	}
}

func (d *Dispatcher) handle(ev AnswerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("answer event panicked", "session", ev.SessionID, "player", ev.PlayerID, "panic", rec)
		}
	}()
	if err := d.recorder.RecordAnswer(ctx, ev); err != nil {
		d.logger.Error("answer event failed",
			"session", ev.SessionID, "player", ev.PlayerID, "question", ev.QuestionID, "error", err)
	}
}
