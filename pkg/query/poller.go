package query

import (
	"sync"
	"time"
)

// Poller runs delayed tasks keyed by id. Scheduling an id that already has a
// pending task replaces it, so a task that reschedules itself after each run
// repeats until it is cancelled.
type Poller struct {
	mu      sync.Mutex
	tasks   map[string]*pollTask
	stopped bool
	wg      sync.WaitGroup
}

type pollTask struct {
	timer *time.Timer
}

// NewPoller creates an idle poller.
func NewPoller() *Poller {
	return &Poller{tasks: make(map[string]*pollTask)}
}

// Schedule runs fn once after the given delay unless id is cancelled or
// rescheduled first. Returns false if the poller is stopped.
func (p *Poller) Schedule(id string, after time.Duration, fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}

	task := &pollTask{}
	p.wg.Add(1)
	task.timer = time.AfterFunc(after, func() {
		defer p.wg.Done()
		p.mu.Lock()
		if p.tasks[id] != task {
			p.mu.Unlock()
			return
		}
		delete(p.tasks, id)
		p.mu.Unlock()
		fn()
	})

	if old, ok := p.tasks[id]; ok {
		p.stopLocked(old)
	}
	p.tasks[id] = task
	return true
}

// Cancel drops the pending task for id. A task already running finishes.
func (p *Poller) Cancel(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if task, ok := p.tasks[id]; ok {
		p.stopLocked(task)
		delete(p.tasks, id)
	}
}

// Active reports whether id has a pending task.
func (p *Poller) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[id]
	return ok
}

// Len returns the number of pending tasks.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Stop cancels every pending task, refuses new ones and waits for running
// tasks to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	for id, task := range p.tasks {
		p.stopLocked(task)
		delete(p.tasks, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Must be called with lock held.
func (p *Poller) stopLocked(task *pollTask) {
	if task.timer.Stop() {
		p.wg.Done()
	}
}
