package backupmgr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/logging"
)

// stepFunc runs one slice of a cooperative task. It must not block. It
// returns how long the task sleeps before its next step, or done.
type stepFunc func(now time.Time) (wait time.Duration, done bool)

type task struct {
	name    string
	readyAt time.Time
	step    stepFunc
	done    bool
}

// loop is a single-context cooperative scheduler. Every task step runs inside
// Tick, one Tick at a time.
type loop struct {
	clock Clock
	log   *slog.Logger

	tickMu sync.Mutex
	mu     sync.Mutex
	tasks  []*task
}

func newLoop(clock Clock, log *slog.Logger) *loop {
	return &loop{clock: clock, log: log}
}

// spawn adds a task that is ready immediately. Tasks spawned from inside a
// step first run on the following Tick.
func (l *loop) spawn(name string, step stepFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, &task{name: name, readyAt: l.clock.Now(), step: step})
	l.log.Log(context.Background(), logging.LevelTrace, "task spawned", "task", name)
}

// Tick runs every task whose ready time has passed and returns how many ran.
func (l *loop) Tick() int {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	now := l.clock.Now()
	l.mu.Lock()
	var ready []*task
	for _, t := range l.tasks {
		if !t.readyAt.After(now) {
			ready = append(ready, t)
		}
	}
	l.mu.Unlock()

	for _, t := range ready {
		wait, done := t.step(now)
		l.mu.Lock()
		t.done = done
		t.readyAt = now.Add(wait)
		l.mu.Unlock()
	}

	l.mu.Lock()
	alive := l.tasks[:0]
	for _, t := range l.tasks {
		if t.done {
			l.log.Log(context.Background(), logging.LevelTrace, "task finished", "task", t.name)
			continue
		}
		alive = append(alive, t)
	}
	for i := len(alive); i < len(l.tasks); i++ {
		l.tasks[i] = nil
	}
	l.tasks = alive
	l.mu.Unlock()

	return len(ready)
}

// Pending returns the number of live tasks.
func (l *loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// run drives Tick from a ticker until ctx is done.
func (l *loop) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}
