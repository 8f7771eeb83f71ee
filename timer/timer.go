// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type task struct {
	id       int64
	runAt    time.Time
	interval time.Duration
	fn       func()
	index    int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	return q[i].runAt.Before(q[j].runAt)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x interface{}) {
	n := len(*q)
	t := x.(*task)
	t.index = n
	*q = append(*q, t)
}

func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	t.index = -1
	*q = old[0 : n-1]
	return t
}

// Scheduler runs delayed and repeating callbacks with cancellation by id.
// Callbacks fire on their own goroutine; callers that need serialized
// execution forward them into their own dispatch loop.
type Scheduler struct {
	queue      taskQueue
	mutex      sync.Mutex
	nextID     int64
	resolution time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

// NewScheduler creates a scheduler that checks for due tasks every
// resolution interval.
func NewScheduler(resolution time.Duration) *Scheduler {
	s := &Scheduler{
		queue:      make(taskQueue, 0),
		nextID:     1,
		resolution: resolution,
		done:       make(chan struct{}),
	}
	heap.Init(&s.queue)
	go s.run()
	return s
}

// After schedules fn to run once after delay and returns a cancellation id.
func (s *Scheduler) After(delay time.Duration, fn func()) int64 {
	return s.add(delay, 0, fn)
}

// Every schedules fn to run repeatedly at the given interval, first firing
// one interval from now.
func (s *Scheduler) Every(interval time.Duration, fn func()) int64 {
	return s.add(interval, interval, fn)
}

func (s *Scheduler) add(delay, interval time.Duration, fn func()) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t := &task{
		id:       s.nextID,
		runAt:    time.Now().Add(delay),
		interval: interval,
		fn:       fn,
	}
	s.nextID++

	heap.Push(&s.queue, t)
	return t.id
}

// Cancel removes a pending task. Cancelling an already-fired one-shot task is
// a no-op.
func (s *Scheduler) Cancel(id int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, t := range s.queue {
		if t.id == id {
			heap.Remove(&s.queue, i)
			break
		}
	}
}

// Stop shuts the scheduler down. Pending tasks never fire.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, due := range s.collectDue() {
				go due.fn()
			}
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) collectDue() []*task {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	var due []*task
	for s.queue.Len() > 0 {
		t := s.queue[0]
		if t.runAt.After(now) {
			break
		}
		heap.Pop(&s.queue)
		due = append(due, t)

		if t.interval > 0 {
			t.runAt = now.Add(t.interval)
			heap.Push(&s.queue, t)
		}
	}
	return due
}
