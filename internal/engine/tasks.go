package engine

import "sync"

// TaskQueue hands work from other goroutines to the simulation goroutine.
// It is the only part of the engine safe for concurrent use.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue adds a task to run on the simulation goroutine.
func (q *TaskQueue) Enqueue(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Execute runs up to budget queued tasks in FIFO order (budget <= 0 runs
// all). Returns the number run.
func (q *TaskQueue) Execute(budget int) int {
	q.mu.Lock()
	n := len(q.tasks)
	if budget > 0 && budget < n {
		n = budget
	}
	batch := q.tasks[:n:n]
	q.tasks = q.tasks[n:]
	q.mu.Unlock()

	for _, task := range batch {
		task()
	}
	return n
}

// Len is the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
